package server

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

// Run serves the API, and the pprof endpoint when configured, until ctx is
// cancelled or SIGINT/SIGTERM arrives. In-flight requests get
// shutdownTimeout to finish.
func (s *Server) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	servers := []*http.Server{s.HTTPServer()}
	if s.cfg.Server.PprofAddr != "" {
		servers = append(servers, PprofServer(s.cfg.Server.PprofAddr))
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, srv := range servers {
		g.Go(func() error {
			s.logger.Info("Server starting", zap.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		stop()
		s.logger.Info("Shutting down gracefully")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		var shutdownErr error
		for _, srv := range servers {
			if err := srv.Shutdown(shutdownCtx); err != nil {
				s.logger.Error("Server forced to shutdown", zap.String("addr", srv.Addr), zap.Error(err))
				shutdownErr = errors.Join(shutdownErr, err)
			}
		}
		return shutdownErr
	})

	err := g.Wait()
	s.logger.Info("Server exiting")
	return err
}
