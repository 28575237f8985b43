package authzapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/uselagoon/keycloak-authz/internal/authz"
	"github.com/uselagoon/keycloak-authz/internal/bus"
	"github.com/uselagoon/keycloak-authz/internal/realm"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var (
	requestsCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "authzapi_requests_total",
		Help: "The total number of evaluation queries received by result",
	}, []string{"result"})
)

var (
	// ErrMalformed is returned for queries missing required fields.
	ErrMalformed = errors.New("malformed query")
	// ErrUnavailable is returned when the query needs a source of
	// identities which is not configured.
	ErrUnavailable = errors.New("identity source unavailable")
	// ErrInvalidToken is returned for access tokens which fail validation.
	ErrInvalidToken = errors.New("invalid access token")
)

// Server evaluates queries against the policies held in an authz.Store.
type Server struct {
	log       *slog.Logger
	store     authz.Store
	evaluator *authz.Evaluator
	tokens    TokenService
	realms    RealmService
	now       func() time.Time
}

// Option is a functional option argument to NewServer().
type Option func(*Server)

// WithTokenService enables queries carrying access tokens.
func WithTokenService(t TokenService) Option {
	return func(s *Server) {
		s.tokens = t
	}
}

// WithRealmService enables queries for stored users, and resolution of
// resource servers in stored realms.
func WithRealmService(r RealmService) Option {
	return func(s *Server) {
		s.realms = r
	}
}

// WithClock sets the source of the evaluation time.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		s.now = now
	}
}

// NewServer returns a Server evaluating with ev over the policies in store.
// The directory of ev is replaced per query by the service the query's
// identity was resolved through.
func NewServer(
	log *slog.Logger,
	store authz.Store,
	ev *authz.Evaluator,
	options ...Option,
) *Server {
	s := &Server{
		log:       log,
		store:     store,
		evaluator: ev,
		now:       time.Now,
	}
	for _, option := range options {
		option(s)
	}
	return s
}

// identity returns the identity the query is evaluated for, and the
// directory of the realm the identity belongs to.
func (s *Server) identity(
	ctx context.Context,
	query *bus.EvaluationQuery,
) (*authz.Identity, authz.Directory, error) {
	if query.Token != "" {
		if s.tokens == nil || s.tokens.Realm() != query.Realm {
			return nil, nil, fmt.Errorf("%w: no token issuer for realm %s",
				ErrUnavailable, query.Realm)
		}
		identity, err := s.tokens.ParseAccessToken(query.Token, query.ClientID)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
		}
		return identity, s.tokens, nil
	}
	if s.realms == nil {
		return nil, nil, fmt.Errorf("%w: no stored realms", ErrUnavailable)
	}
	r, err := s.realms.RealmByName(ctx, query.Realm)
	if err != nil {
		return nil, nil, err
	}
	identity, err := s.realms.Identity(ctx, r.ID, query.UserID, query.ClientID)
	if err != nil {
		return nil, nil, err
	}
	return identity, s.realms, nil
}

// resourceServer returns the resource server of the client with the
// clientId given in the query. Stored realms are consulted before the token
// issuer.
func (s *Server) resourceServer(
	ctx context.Context,
	query *bus.EvaluationQuery,
) (*authz.ResourceServer, error) {
	var id string
	if s.realms != nil {
		r, err := s.realms.RealmByName(ctx, query.Realm)
		if err == nil {
			var c *realm.Client
			c, err = s.realms.ClientByClientID(ctx, r.ID, query.ResourceServer)
			if err == nil {
				id = c.ID
			}
		}
		if err != nil && !errors.Is(err, realm.ErrNotFound) {
			return nil, err
		}
	}
	if id == "" && s.tokens != nil && s.tokens.Realm() == query.Realm {
		var err error
		if id, err = s.tokens.ClientUUID(ctx, query.ResourceServer); err != nil {
			return nil, err
		}
	}
	if id == "" {
		return nil, fmt.Errorf("%w: client %s in realm %s",
			authz.ErrNotFound, query.ResourceServer, query.Realm)
	}
	return s.store.ResourceServerByClientID(ctx, id)
}

// Evaluate evaluates a single query.
func (s *Server) Evaluate(
	ctx context.Context,
	query *bus.EvaluationQuery,
) (*authz.Decision, error) {
	if query.Realm == "" || query.ResourceServer == "" {
		return nil, fmt.Errorf("%w: missing realm or resource server", ErrMalformed)
	}
	if (query.Token == "") == (query.UserID == "") {
		return nil, fmt.Errorf("%w: exactly one of token and user ID required",
			ErrMalformed)
	}
	identity, dir, err := s.identity(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("couldn't get identity: %w", err)
	}
	rs, err := s.resourceServer(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("couldn't get resource server: %w", err)
	}
	attrs := query.Attributes
	if _, ok := attrs[authz.AttrRealmName]; !ok {
		attrs = map[string][]string{authz.AttrRealmName: {query.Realm}}
		for k, v := range query.Attributes {
			attrs[k] = v
		}
	}
	// policies resolve identifiers in the realm the identity came from
	return s.evaluator.WithDirectory(dir).Evaluate(ctx, rs,
		authz.NewContext(identity, s.now(), attrs), query.Permissions)
}

// reply publishes the response to msg, logging failures.
func reply(log *slog.Logger, c *nats.Conn, msg *nats.Msg, res bus.EvaluationResponse) {
	data, err := json.Marshal(res)
	if err != nil {
		log.Error("couldn't marshal response", slog.Any("error", err))
		return
	}
	if err = c.Publish(msg.Reply, data); err != nil {
		log.Error("couldn't publish reply", slog.Any("error", err))
	}
}

func (s *Server) handler(ctx context.Context, c *nats.Conn) nats.MsgHandler {
	return func(msg *nats.Msg) {
		// set up tracing
		ctx, span := otel.Tracer(pkgName).Start(ctx, bus.SubjectEvaluate)
		defer span.End()
		var query bus.EvaluationQuery
		if err := json.Unmarshal(msg.Data, &query); err != nil {
			requestsCounter.WithLabelValues("malformed").Inc()
			s.log.Warn("couldn't unmarshal query", slog.Any("error", err))
			reply(s.log, c, msg, bus.EvaluationResponse{Error: ErrMalformed.Error()})
			return
		}
		log := s.log.With(slog.Any("query", query))
		span.SetAttributes(
			attribute.String("realm", query.Realm),
			attribute.String("resourceServer", query.ResourceServer))
		decision, err := s.Evaluate(ctx, &query)
		if err != nil {
			span.RecordError(err)
			switch {
			case errors.Is(err, ErrMalformed):
				requestsCounter.WithLabelValues("malformed").Inc()
				log.Warn("malformed evaluation query", slog.Any("error", err))
			case errors.Is(err, authz.ErrNotFound), errors.Is(err, realm.ErrNotFound),
				errors.Is(err, realm.ErrUserDisabled), errors.Is(err, ErrUnavailable),
				errors.Is(err, ErrInvalidToken):
				requestsCounter.WithLabelValues("rejected").Inc()
				log.Info("rejected evaluation query", slog.Any("error", err))
			default:
				requestsCounter.WithLabelValues("error").Inc()
				log.Error("couldn't evaluate query", slog.Any("error", err))
			}
			reply(log, c, msg, bus.EvaluationResponse{Error: err.Error()})
			return
		}
		if decision.Granted {
			requestsCounter.WithLabelValues("granted").Inc()
		} else {
			requestsCounter.WithLabelValues("denied").Inc()
		}
		log.Debug("evaluated query", slog.Bool("granted", decision.Granted))
		reply(log, c, msg, bus.EvaluationResponse{
			Granted:     decision.Granted,
			Permissions: decision.Permissions,
		})
	}
}
