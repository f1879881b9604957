package signals

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/dennishilgert/actionpack/pkg/logger"
)

var (
	log = logger.NewLogger("actionpack.signals")

	shutdownSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}

	onlyOneSignalHandler = make(chan struct{})
)

// Context returns a context which will be canceled when either the SIGINT
// or SIGTERM signal is caught. If either signal is caught a second time,
// the program is terminated immediately with exit code 1.
func Context() context.Context {
	// panics when called twice
	close(onlyOneSignalHandler)

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, shutdownSignals...)

	go func() {
		sig := <-sigCh
		log.Infof("received signal '%s'; beginning shutdown", sig)
		cancel()
		sig = <-sigCh
		log.Fatalf("received signal '%s' during shutdown; exiting immediately", sig)
	}()

	return ctx
}
