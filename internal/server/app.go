// Package server initializes and runs the accounts server. It selects the
// storage backend, runs schema migrations, wires the user service to the
// object store and serves the HTTP API until a termination signal arrives.
package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/accounts/internal/logging"
	"github.com/dmitrijs2005/accounts/internal/server/auth"
	"github.com/dmitrijs2005/accounts/internal/server/config"
	"github.com/dmitrijs2005/accounts/internal/server/httpapi"
	"github.com/dmitrijs2005/accounts/internal/server/media"
	"github.com/dmitrijs2005/accounts/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/accounts/internal/server/services"
	"github.com/dmitrijs2005/accounts/internal/server/store"
)

type App struct {
	config      *config.Config
	logger      logging.Logger
	repomanager repomanager.RepositoryManager
	server      *httpapi.Server
}

// newRepositoryManager is a seam for tests.
var newRepositoryManager = repomanager.New

// newUploader is a seam for tests.
var newUploader = func(ctx context.Context, cfg *config.Config, prefix string, l logging.Logger) (services.Uploader, error) {
	return media.NewS3Uploader(ctx, cfg, prefix, l)
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	return newApp(ctx, c, logging.New(os.Stdout, c.Env))
}

func newApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	rm, err := newRepositoryManager(ctx, c.DatabaseDSN, c.MongoDatabase)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	if err := rm.RunMigrations(ctx); err != nil {
		_ = rm.Close(ctx)
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	avatars, err := newUploader(ctx, c, "avatars", logger)
	if err != nil {
		_ = rm.Close(ctx)
		return nil, fmt.Errorf("media init error: %w", err)
	}
	covers, err := newUploader(ctx, c, "covers", logger)
	if err != nil {
		_ = rm.Close(ctx)
		return nil, fmt.Errorf("media init error: %w", err)
	}

	st := store.NewUserStore(rm.Users(), auth.NewBcryptHasher(0))
	us := services.NewUserService(st, auth.NewIssuer(c), avatars, covers, logger)

	return &App{
		config:      c,
		logger:      logger,
		repomanager: rm,
		server:      httpapi.NewServer(c, us, logger),
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run serves until ctx is cancelled or a termination signal arrives, then
// releases the storage backend.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "env", app.config.Env)

	app.initSignalHandler(cancelFunc)

	err := app.server.Run(ctx)
	if err != nil {
		app.logger.Error(ctx, "http server failed", "error", err)
	}

	if cerr := app.repomanager.Close(context.Background()); cerr != nil {
		app.logger.Error(ctx, "closing storage failed", "error", cerr)
	}

	app.logger.Info(ctx, "App stopped")
	return err
}
