package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/AlexTsimba/traffboard-sub001/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		logging.LogError(logging.FromContext(ctx), "traffctl failed", err)
		os.Exit(1)
	}
}
