// Package app wires the Vocalis subsystems into a running application.
//
// New connects configuration and providers to the HTTP server, Run executes
// until the context is cancelled, and Shutdown tears resources down in order.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/Ddhuet/Vocalis/internal/config"
	"github.com/Ddhuet/Vocalis/internal/health"
	"github.com/Ddhuet/Vocalis/internal/observe"
	"github.com/Ddhuet/Vocalis/internal/server"
)

// App owns the server lifecycle and the resources behind it.
type App struct {
	cfg *config.Config
	srv *server.Server

	// closers are called in order during Shutdown.
	closers []func() error

	stopOnce sync.Once
}

// Option is a functional option for New.
type Option func(*App)

// WithCloser registers a cleanup function run during Shutdown, after the
// HTTP server has stopped. Closers run in registration order.
func WithCloser(fn func() error) Option {
	return func(a *App) { a.closers = append(a.closers, fn) }
}

// New wires the providers and configuration into a ready-to-run App.
func New(cfg *config.Config, providers server.Providers, opts ...Option) (*App, error) {
	a := &App{cfg: cfg}
	for _, o := range opts {
		o(a)
	}

	checkers := []health.Checker{
		{Name: "stt", Check: func(context.Context) error {
			if providers.STT == nil {
				return errors.New("no recognition model loaded")
			}
			return nil
		}},
		{Name: "llm", Check: func(context.Context) error {
			if providers.LLM == nil {
				return errors.New("no LLM provider configured")
			}
			return nil
		}},
	}
	if providers.TTS != nil {
		checkers = append(checkers, health.Checker{
			Name:  "tts",
			Check: func(context.Context) error { return nil },
		})
	}

	srv, err := server.New(cfg, providers,
		server.WithMetrics(observe.DefaultMetrics()),
		server.WithHealthCheckers(checkers...),
	)
	if err != nil {
		return nil, fmt.Errorf("app: create server: %w", err)
	}
	a.srv = srv

	return a, nil
}

// Run serves until ctx is cancelled. It returns the server error, or
// context.Canceled on a clean shutdown.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.srv.ListenAndServe(ctx)
	})

	slog.Info("app running", "listen_addr", a.cfg.Server.ListenAddr)
	return g.Wait()
}

// Shutdown runs registered closers. The HTTP server itself stops when the
// Run context is cancelled; Shutdown handles what remains (model handles,
// telemetry exporters).
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))
		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}
		slog.Info("shutdown complete")
	})
	return shutdownErr
}
