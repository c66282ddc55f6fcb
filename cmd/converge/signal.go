package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// signalContext returns a context that is cancelled on SIGINT or SIGTERM.
//
// The first signal cancels the context so that no new provider calls are
// issued while in-flight calls run to completion. A second signal terminates
// the process immediately.
func signalContext(ctx context.Context) context.Context {
	ctx, cancel := context.WithCancel(ctx)

	go func() {
		sig := make(chan os.Signal, 2)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

		s := <-sig
		fmt.Fprintf(os.Stderr, "\nReceived %s, stopping. Operations in flight will finish first.\n", s)
		fmt.Fprintln(os.Stderr, "Interrupt again to terminate immediately.")
		cancel()

		<-sig
		os.Exit(1)
	}()

	return ctx
}
