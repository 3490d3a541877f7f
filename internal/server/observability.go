package server

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/FACorreiaa/medical-record/internal/app/observability/metrics"
	"github.com/FACorreiaa/medical-record/internal/app/observability/tracer"
	"github.com/FACorreiaa/medical-record/internal/pkg/config"
)

// ObservabilityShutdownFunc is the function type returned by InitObservability
type ObservabilityShutdownFunc func(context.Context) error

// InitObservability installs the OpenTelemetry providers and creates the
// application instruments against them.
func InitObservability(cfg *config.Config, logger *zap.Logger) (ObservabilityShutdownFunc, error) {
	otelShutdown, err := tracer.InitOtelProviders(
		cfg.Observability.ServiceName,
		cfg.Observability.OTLPEndpoint,
		cfg.Server.MetricsAddr,
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	metrics.InitAppMetrics()
	logger.Info("Observability initialized", zap.String("metrics_endpoint", cfg.Server.MetricsAddr+"/metrics"))

	return otelShutdown, nil
}
