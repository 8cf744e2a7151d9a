// Package main is the yanggaeng command line client. It inspects and drains
// the offline pending queue, imports legacy records and runs image analysis
// against the same data directory the desktop service uses.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// Version is set at build time
var Version = "0.1.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
