package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/tansive/httprpc/internal/cli"
)

func main() {
	// Interrupts cancel in-flight calls.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cli.Execute(ctx)
}
