// Package httpapi is the HTTP transport of the accounts service: gin routes,
// request parsing, token cookies, auth middleware and the JSON envelopes.
package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/accounts/internal/logging"
	"github.com/dmitrijs2005/accounts/internal/server/config"
	"github.com/gin-gonic/gin"
)

const shutdownTimeout = 10 * time.Second

type Server struct {
	address string
	engine  *gin.Engine
	logger  logging.Logger
}

func NewServer(cfg *config.Config, users UserService, l logging.Logger) *Server {
	if cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}

	logger := l.With("module", "http_server")
	h := NewHandler(users, CookieOptions{
		Secure:     cfg.CookieSecure,
		AccessTTL:  cfg.AccessTokenValidityDuration,
		RefreshTTL: cfg.RefreshTokenValidityDuration,
	}, cfg.UploadTempDir, logger)

	return &Server{
		address: cfg.ListenAddr,
		engine:  NewRouter(h, logger),
		logger:  logger,
	}
}

// Handler exposes the router, mostly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.serve(ctx, listen)
}

func (s *Server) serve(ctx context.Context, listen net.Listener) error {
	srv := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	stopped := make(chan error, 1)
	go func() {
		<-ctx.Done()
		s.logger.Info(context.Background(), "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		stopped <- srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return <-stopped
}
