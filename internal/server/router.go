package server

import (
	"fmt"
	"net/http"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/FACorreiaa/medical-record/internal/app/middleware"
	"github.com/FACorreiaa/medical-record/internal/routes"
)

// SetupRouter builds the engine with the middleware chain and every route.
// Only the configured proxies may set the client address through
// X-Forwarded-For; with none configured ClientIP is the socket peer.
func SetupRouter(deps routes.Dependencies) (*gin.Engine, error) {
	if deps.Config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if err := r.SetTrustedProxies(deps.Config.Server.TrustedProxies); err != nil {
		return nil, fmt.Errorf("invalid trusted proxies: %w", err)
	}
	r.Use(ginzap.GinzapWithConfig(deps.Logger, &ginzap.Config{
		UTC:        true,
		TimeFormat: time.RFC3339,
		Context:    zapContextFunc(),
		SkipPaths:  []string{"/health"},
	}))
	r.Use(ginzap.CustomRecoveryWithZap(deps.Logger, true, func(c *gin.Context, _ any) {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
	}))
	r.Use(otelgin.Middleware(deps.Config.Observability.ServiceName))
	r.Use(middleware.MetricsMiddleware())
	r.Use(middleware.SecurityMiddleware())
	r.Use(middleware.CORSMiddleware(deps.Config.Server.AllowedOrigins))
	r.Use(middleware.ErrorHandler(deps.Logger))

	routes.Setup(r, deps)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	})

	return r, nil
}

// zapContextFunc adds request and trace identifiers to the access log.
// Request bodies are never logged since they carry passwords.
func zapContextFunc() ginzap.Fn {
	return func(c *gin.Context) []zapcore.Field {
		fields := []zapcore.Field{}

		if requestID := c.GetHeader("X-Request-Id"); requestID != "" {
			fields = append(fields, zap.String("request_id", requestID))
		}

		if span := trace.SpanFromContext(c.Request.Context()); span.SpanContext().IsValid() {
			fields = append(fields,
				zap.String("trace_id", span.SpanContext().TraceID().String()),
				zap.String("span_id", span.SpanContext().SpanID().String()),
			)
		}

		if user := middleware.GetUserFromContext(c); user != nil {
			fields = append(fields, zap.String("user_id", user.ID.String()))
		}

		return fields
	}
}
