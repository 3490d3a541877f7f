package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	database "github.com/FACorreiaa/medical-record/internal/db"
	"github.com/FACorreiaa/medical-record/internal/pkg/config"
	"github.com/FACorreiaa/medical-record/internal/pkg/ratelimit"
	"github.com/FACorreiaa/medical-record/internal/routes"
)

// Server holds the dependencies for the HTTP server
type Server struct {
	cfg    *config.Config
	logger *zap.Logger
	dbPool *pgxpool.Pool
	redis  *redis.Client
	router http.Handler
}

// New connects to Postgres, applies migrations and builds the router.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Server, error) {
	s := &Server{
		cfg:    cfg,
		logger: logger,
	}

	dbPool, err := s.setupDatabase(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to setup database: %w", err)
	}
	s.dbPool = dbPool

	router, err := SetupRouter(routes.Dependencies{
		DB:           dbPool,
		Config:       cfg,
		Logger:       logger,
		LoginLimiter: s.loginLimiter(ctx),
	})
	if err != nil {
		s.Close()
		return nil, err
	}
	s.router = router

	return s, nil
}

func (s *Server) setupDatabase(ctx context.Context) (*pgxpool.Pool, error) {
	s.logger.Info("Setting up database connection and migrations")
	pg := s.cfg.Repositories.Postgres

	pool, err := database.Init(ctx, pg, s.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database pool: %w", err)
	}

	if !database.WaitForDB(ctx, pool, s.logger) {
		pool.Close()
		return nil, fmt.Errorf("database is not reachable")
	}

	if err = database.RunMigrations(pg.ConnectionURL(), s.logger); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	s.logger.Info("Database setup completed successfully")
	return pool, nil
}

// loginLimiter counts attempts in Redis when REDIS_ADDR is set and
// reachable, otherwise in process memory.
func (s *Server) loginLimiter(ctx context.Context) *ratelimit.Limiter {
	auth := s.cfg.Auth
	var store ratelimit.Store = ratelimit.NewMemoryStore(auth.LoginRateWindow)

	if rc := s.cfg.Repositories.Redis; rc.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     rc.Addr,
			Password: rc.Password,
			DB:       rc.DB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			s.logger.Warn("Redis unavailable, login limits are per process", zap.String("addr", rc.Addr), zap.Error(err))
			_ = client.Close()
		} else {
			s.logger.Info("Login rate limit backed by Redis", zap.String("addr", rc.Addr))
			s.redis = client
			store = ratelimit.NewRedisStore(client)
		}
	}

	return ratelimit.NewLimiter(store, "login", auth.LoginRateLimit, auth.LoginRateWindow)
}

// HTTPServer creates and configures the HTTP server
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:              ":" + s.cfg.Server.Port,
		Handler:           s.router,
		IdleTimeout:       time.Minute,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
	}
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return s.router
}

// Close closes all server resources
func (s *Server) Close() {
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Warn("Failed to close Redis client", zap.Error(err))
		}
	}
	if s.dbPool != nil {
		s.dbPool.Close()
	}
}
