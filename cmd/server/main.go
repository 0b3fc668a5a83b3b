package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/openpledge/sponsorships/internal/app/runtime"
	"github.com/openpledge/sponsorships/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	log := logger.NewDefault("server")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := runtime.NewApplication(ctx)
	if err != nil {
		log.WithError(err).Error("failed to initialise application")
		os.Exit(1)
	}

	if err := application.Run(ctx); err != nil {
		log.WithError(err).Error("application terminated")
		_ = application.Shutdown(context.Background())
		os.Exit(1)
	}

	if err := application.Shutdown(context.Background()); err != nil {
		log.WithError(err).Error("shutdown failed")
		os.Exit(1)
	}
}
