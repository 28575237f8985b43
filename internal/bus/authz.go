// Package bus contains the definitions of the messages passed across NATS.
package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/uselagoon/keycloak-authz/internal/authz"
)

const (
	// SubjectEvaluate defines the NATS subject for policy evaluation queries.
	SubjectEvaluate = "keycloak.authz.evaluate"
)

// ErrEvaluation is returned by Evaluate when the server replied with an
// error.
var ErrEvaluation = errors.New("evaluation failed")

// EvaluationQuery defines the structure of a policy evaluation query. The
// identity is given either as an access Token issued by the realm, or as the
// UserID of a stored user.
type EvaluationQuery struct {
	RequestID string
	Realm     string
	// ResourceServer is the clientId of the resource server.
	ResourceServer string
	Token          string `json:",omitempty"`
	UserID         string `json:",omitempty"`
	// ClientID is the clientId the identity authenticated through. For
	// tokens it must match the authorized party if set.
	ClientID    string                    `json:",omitempty"`
	Permissions []authz.PermissionRequest `json:",omitempty"`
	Attributes  map[string][]string       `json:",omitempty"`
}

// LogValue implements the slog.LogValuer interface. The token is omitted.
func (q EvaluationQuery) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("requestID", q.RequestID),
		slog.String("realm", q.Realm),
		slog.String("resourceServer", q.ResourceServer),
		slog.String("userID", q.UserID),
		slog.Bool("token", q.Token != ""),
		slog.String("clientID", q.ClientID),
		slog.Int("permissions", len(q.Permissions)),
	)
}

// EvaluationResponse defines the structure of the reply to an
// EvaluationQuery. Error is set if the query could not be evaluated.
type EvaluationResponse struct {
	Granted     bool
	Permissions []authz.GrantedPermission `json:",omitempty"`
	Error       string                    `json:",omitempty"`
}

// NATSClient is a NATS client.
type NATSClient struct {
	conn       *nats.Conn
	reqTimeout time.Duration
}

// NewNATSClient constructs a new NATS client which connects to the given
// srvAddr. It logs to the given log, and calls the given context.CancelFunc
// when the NATS connection closes.
//
// The idea is that when the connection closes on the other end, this function
// must be called again to construct a new client.
func NewNATSClient(
	srvAddr string,
	reqTimeout time.Duration,
	log *slog.Logger,
	cancel context.CancelFunc,
) (*NATSClient, error) {
	// get nats server connection
	conn, err := nats.Connect(
		srvAddr,
		nats.Name("keycloak-authz-client"),
		// cancel upstream context on connection close
		nats.ClosedHandler(func(_ *nats.Conn) {
			log.Error("nats connection closed")
			cancel()
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn("nats disconnected", slog.Any("error", err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("nats reconnected", slog.String("url", nc.ConnectedUrl()))
		}))
	if err != nil {
		return nil, fmt.Errorf("couldn't connect to NATS server: %v", err)
	}
	return &NATSClient{
		conn:       conn,
		reqTimeout: reqTimeout,
	}, nil
}

// Close calls Close() on the underlying NATS connection.
func (c *NATSClient) Close() {
	c.conn.Close()
}

// Evaluate sends the query to the authorization server and returns its
// decision. A RequestID is generated if the query has none.
func (c *NATSClient) Evaluate(
	ctx context.Context,
	query EvaluationQuery,
) (*EvaluationResponse, error) {
	if query.RequestID == "" {
		query.RequestID = uuid.NewString()
	}
	queryData, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("couldn't marshal NATS request: %v", err)
	}
	ctx, cancel := context.WithTimeout(ctx, c.reqTimeout)
	defer cancel()
	msg, err := c.conn.RequestWithContext(ctx, SubjectEvaluate, queryData)
	if err != nil {
		return nil, fmt.Errorf("couldn't make NATS request: %v", err)
	}
	var response EvaluationResponse
	if err := json.Unmarshal(msg.Data, &response); err != nil {
		return nil, fmt.Errorf("couldn't unmarshal response: %v", err)
	}
	if response.Error != "" {
		return &response, fmt.Errorf("%w: %s", ErrEvaluation, response.Error)
	}
	return &response, nil
}
