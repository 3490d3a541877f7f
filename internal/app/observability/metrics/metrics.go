package metrics

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// AppMetrics holds the application's metric instruments.
type AppMetrics struct {
	HTTPRequestsTotal      metric.Int64Counter
	HTTPRequestDuration    metric.Float64Histogram
	AuthRequestsTotal      metric.Int64Counter
	AuthRateLimitedTotal   metric.Int64Counter
	TokensIssuedTotal      metric.Int64Counter
	DBQueryDurationSeconds metric.Float64Histogram
	DBQueryErrorsTotal     metric.Int64Counter
}

var (
	appMetrics *AppMetrics
	once       sync.Once
)

// InitAppMetrics creates the instruments from the global MeterProvider.
// Call it after the provider is installed. Until then otel hands out no-op
// instruments, which keeps tests free of setup.
func InitAppMetrics() {
	once.Do(func() {
		appMetrics = newAppMetrics(otel.GetMeterProvider().Meter("medical-record-api"))
	})
}

func newAppMetrics(meter metric.Meter) *AppMetrics {
	m := &AppMetrics{}

	// Instrument constructors only fail on invalid names; they return a
	// usable no-op instrument alongside the error.
	m.HTTPRequestsTotal, _ = meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests completed"),
		metric.WithUnit("{request}"),
	)
	m.HTTPRequestDuration, _ = meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("Duration of HTTP requests in seconds"),
		metric.WithUnit("s"),
	)
	m.AuthRequestsTotal, _ = meter.Int64Counter(
		"auth_requests_total",
		metric.WithDescription("Authentication requests by endpoint and outcome"),
		metric.WithUnit("{request}"),
	)
	m.AuthRateLimitedTotal, _ = meter.Int64Counter(
		"auth_rate_limited_total",
		metric.WithDescription("Login attempts rejected by the rate limiter"),
		metric.WithUnit("{request}"),
	)
	m.TokensIssuedTotal, _ = meter.Int64Counter(
		"tokens_issued_total",
		metric.WithDescription("Session tokens minted"),
		metric.WithUnit("{token}"),
	)
	m.DBQueryDurationSeconds, _ = meter.Float64Histogram(
		"db_query_duration_seconds",
		metric.WithDescription("Duration of database queries in seconds"),
		metric.WithUnit("s"),
	)
	m.DBQueryErrorsTotal, _ = meter.Int64Counter(
		"db_query_errors_total",
		metric.WithDescription("Total number of database query errors"),
		metric.WithUnit("{error}"),
	)

	return m
}

// Get returns the process instruments, initializing them on first use.
func Get() *AppMetrics {
	InitAppMetrics()
	return appMetrics
}
