// Package metrics implements the prometheus metrics server.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

// Handler returns the metrics HTTP handler.
func Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// Serve starts serving prometheus metrics on addr in a goroutine of eg. The
// server shuts down when ctx is done.
func Serve(ctx context.Context, eg *errgroup.Group, log *slog.Logger, addr string) {
	s := http.Server{
		Addr:         addr,
		Handler:      Handler(),
		ReadTimeout:  16 * time.Second,
		WriteTimeout: 16 * time.Second,
	}
	eg.Go(func() error {
		if err := s.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server did not shut down cleanly: %v", err)
		}
		return nil
	})
	eg.Go(func() error {
		<-ctx.Done()
		// the shutdown context must outlive ctx
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 8*time.Second)
		defer cancel()
		if err := s.Shutdown(shutdownCtx); err != nil {
			log.Warn("couldn't shut down metrics server", slog.Any("error", err))
		}
		return nil
	})
}
