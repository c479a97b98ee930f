// Package server serves the dialogue player over HTTP and WebSocket.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"SourceAcademyGame/internal/checkpoint"
	"SourceAcademyGame/internal/game"
	"SourceAcademyGame/internal/storage/sqlite"
)

const shutdownTimeout = 5 * time.Second

// App owns the long-lived server state: the checkpoint, the store and the
// connected players.
type App struct {
	cfg      Config
	logger   *zap.Logger
	provider *checkpoint.Provider
	store    *sqlite.Store
	hub      *game.Hub
}

// NewApp loads the checkpoint and opens the store. An empty DBPath runs
// without persistence.
func NewApp(cfg Config, logger *zap.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	provider, err := checkpoint.NewProvider(cfg.CheckpointPath, logger.Named("checkpoint"))
	if err != nil {
		return nil, err
	}
	a := &App{
		cfg:      cfg,
		logger:   logger,
		provider: provider,
		hub:      game.NewHub(),
	}
	if cfg.DBPath != "" {
		if cfg.DBPath != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
				return nil, fmt.Errorf("create data dir: %w", err)
			}
		}
		store, err := sqlite.Open(cfg.DBPath)
		if err != nil {
			return nil, err
		}
		a.store = store
	}
	return a, nil
}

// Close releases the store.
func (a *App) Close() error {
	return a.store.Close()
}

// Players returns the number of connected players.
func (a *App) Players() int {
	return a.hub.Count()
}

// Run serves HTTP until ctx is done, reloading the checkpoint on change
// when watching is enabled.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	srv := &http.Server{
		Addr:              a.cfg.Addr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		// Websocket handlers outlive Shutdown, so they watch this context.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}
	if a.cfg.Watch {
		g.Go(func() error {
			return checkpoint.Watch(ctx, a.provider)
		})
	}
	g.Go(func() error {
		a.logger.Info("starting web server",
			zap.String("addr", a.cfg.Addr),
			zap.String("checkpoint", a.provider.Path()),
			zap.String("policy", a.cfg.SessionPolicy().String()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// StartApp builds the app from cfg and serves until ctx is done.
func StartApp(ctx context.Context, cfg Config, logger *zap.Logger) error {
	app, err := NewApp(cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()
	return app.Run(ctx)
}
