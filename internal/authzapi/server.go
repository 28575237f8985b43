// Package authzapi implements the NATS policy evaluation service.
package authzapi

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nats-io/nats.go"
	"github.com/uselagoon/keycloak-authz/internal/bus"
)

const (
	queue   = "authzapi"
	pkgName = "github.com/uselagoon/keycloak-authz/internal/authzapi"
)

// ServeNATS serves evaluation queries received over NATS until ctx is
// cancelled. If the NATS connection closes stop is called.
func ServeNATS(
	ctx context.Context,
	stop context.CancelFunc,
	log *slog.Logger,
	s *Server,
	natsURL string,
) error {
	// setup synchronisation
	wg := sync.WaitGroup{}
	wg.Add(1)
	// connect to NATS server
	nc, err := nats.Connect(natsURL,
		nats.Name("keycloak-authz"),
		// synchronise exiting ServeNATS()
		nats.ClosedHandler(func(_ *nats.Conn) {
			log.Error("nats connection closed")
			stop()
			wg.Done()
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn("nats disconnected", slog.Any("error", err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("nats reconnected", slog.String("url", nc.ConnectedUrl()))
		}))
	if err != nil {
		return fmt.Errorf("couldn't connect to NATS server: %v", err)
	}
	defer nc.Close()
	// set up request/response callback
	_, err = nc.QueueSubscribe(bus.SubjectEvaluate, queue, s.handler(ctx, nc))
	if err != nil {
		return fmt.Errorf("couldn't subscribe to queue: %v", err)
	}
	// wait for context cancellation
	<-ctx.Done()
	// drain and log errors
	if err := nc.Drain(); err != nil {
		log.Warn("couldn't drain connection", slog.Any("error", err))
	}
	// wait for connection to close
	wg.Wait()
	return nil
}
