package main

import (
	"context"
	"log"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/FACorreiaa/medical-record/internal/pkg/config"
	"github.com/FACorreiaa/medical-record/internal/pkg/logger"
	"github.com/FACorreiaa/medical-record/internal/server"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Error loading .env file, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	appLogger, err := logger.New(cfg.Server.Environment, zap.String("service", cfg.Observability.ServiceName))
	if err != nil {
		return err
	}
	defer func() { _ = appLogger.Sync() }()

	otelShutdown, err := server.InitObservability(cfg, appLogger)
	if err != nil {
		return err
	}
	defer func() {
		if err := otelShutdown(context.Background()); err != nil {
			appLogger.Error("Failed to shutdown OpenTelemetry", zap.Error(err))
		}
	}()

	ctx := context.Background()
	srv, err := server.New(ctx, cfg, appLogger)
	if err != nil {
		return err
	}
	defer srv.Close()

	if err := srv.Run(ctx); err != nil {
		appLogger.Error("Server error", zap.Error(err))
		return err
	}

	appLogger.Info("Graceful shutdown complete")
	return nil
}
