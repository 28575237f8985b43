// Package signalctx provides a context which is cancelled by process
// signals, for commands which run to completion.
package signalctx

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// GetContext returns a context which is cancelled on the first interrupt or
// SIGTERM. A second signal exits the process with status 130. The returned
// function stops the signal handling and should be deferred in Run().
func GetContext() (context.Context, func()) {
	ctx, cancel := context.WithCancel(context.Background())
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-signalChan:
			cancel()
		case <-ctx.Done():
			return
		}
		<-signalChan
		os.Exit(130) // https://tldp.org/LDP/abs/html/exitcodes.html
	}()
	return ctx, func() { signal.Stop(signalChan); cancel() }
}
