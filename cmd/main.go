package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"jobboard-messaging/handler"
	"jobboard-messaging/internal/app"
	"jobboard-messaging/internal/config"
)

func main() {
	ctx := context.Background()

	// ---- Configuration (read only here) ----
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		slog.Error("failed to load configuration", "err", err)
		os.Exit(1)
	}
	logger := cfg.Logging.NewLogger(os.Stdout)
	slog.SetDefault(logger)

	// ---- Clients ----
	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to build application", "err", err)
		os.Exit(1)
	}
	defer a.Close()

	// ---- Handler ----
	h, err := handler.NewHandler(a.Service, a.Verifier, handler.WithLogger(logger))
	if err != nil {
		logger.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	lambda.Start(h.Handle)
}
