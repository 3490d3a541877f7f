package routes

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/FACorreiaa/medical-record/internal/app/domain/auth"
	"github.com/FACorreiaa/medical-record/internal/app/domain/health"
	"github.com/FACorreiaa/medical-record/internal/app/domain/labreports"
	"github.com/FACorreiaa/medical-record/internal/app/domain/records"
	"github.com/FACorreiaa/medical-record/internal/app/middleware"
	database "github.com/FACorreiaa/medical-record/internal/db"
	"github.com/FACorreiaa/medical-record/internal/pkg/config"
	"github.com/FACorreiaa/medical-record/internal/pkg/ratelimit"
)

// Dependencies are the process-wide collaborators the handlers are built
// from.
type Dependencies struct {
	DB           database.DBTX
	Config       *config.Config
	Logger       *zap.Logger
	LoginLimiter *ratelimit.Limiter
}

type AppHandlers struct {
	Health     *health.Handler
	Auth       *auth.AuthHandlers
	Records    *records.Handler
	LabReports *labreports.Handler

	requireAuth  gin.HandlerFunc
	loginLimiter gin.HandlerFunc
}

func Setup(r *gin.Engine, deps Dependencies) {
	handlers := setupDependencies(deps)
	setupRouter(r, handlers)
}

func setupDependencies(deps Dependencies) *AppHandlers {
	log := deps.Logger
	cfg := deps.Config

	tokens := auth.NewTokenIssuer(cfg.JWT.SecretKey, cfg.JWT.TokenTTL)
	carrier := auth.NewSessionCarrier(cfg.IsProduction(), cfg.JWT.TokenTTL)
	authRepo := auth.NewPostgresAuthRepo(deps.DB, log)
	authService := auth.NewAuthService(authRepo, tokens, cfg.Auth.BcryptCost, log)

	recordsService := records.NewService(records.NewPostgresRepository(deps.DB, log), log)
	labReportsService := labreports.NewService(labreports.NewPostgresRepository(deps.DB, log), log)

	return &AppHandlers{
		Health:       health.NewHandler(),
		Auth:         auth.NewAuthHandlers(authService, carrier, log),
		Records:      records.NewHandler(recordsService, log),
		LabReports:   labreports.NewHandler(labReportsService, log),
		requireAuth:  auth.Middleware(authService, carrier),
		loginLimiter: middleware.RateLimit(deps.LoginLimiter, log),
	}
}

func setupRouter(r *gin.Engine, h *AppHandlers) {
	h.Health.RegisterRoutes(r)

	api := r.Group("/api")
	{
		h.Auth.RegisterRoutes(api.Group("/auth"), h.requireAuth, h.loginLimiter)
		h.Records.RegisterRoutes(api, h.requireAuth)
		h.LabReports.RegisterRoutes(api, h.requireAuth)
	}
}
