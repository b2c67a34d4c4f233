// Package app initializes and holds long-lived application services.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/courtside/rankings/internal/api"
	"github.com/courtside/rankings/internal/auth"
	"github.com/courtside/rankings/internal/clock"
	"github.com/courtside/rankings/internal/config"
	"github.com/courtside/rankings/internal/fetcher"
	"github.com/courtside/rankings/internal/logging"
	"github.com/courtside/rankings/internal/rankings"
	"github.com/courtside/rankings/internal/scheduler"
	"github.com/courtside/rankings/internal/scraper"
	"github.com/courtside/rankings/internal/store"
	"github.com/courtside/rankings/internal/telemetry"
)

// App wires the fetcher, parser, store, scheduler, and HTTP server
// together. It is initialized once at startup and shut down via Close.
type App struct {
	cfg     config.Config
	loggers *logging.Loggers
	fetcher fetcher.Fetcher
	store   store.Store
	orch    *scraper.Orchestrator
	sched   *scheduler.Scheduler
	server  *http.Server
}

// New builds the full service from configuration. It fails fast when
// any dependency cannot be initialized.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	loggers := logging.New(cfg.Logging.Dir, cfg.Logging.Development)
	log := loggers.App
	log.Info("initializing services")

	telemetry.Init()

	st, err := store.NewPostgres(ctx, store.PostgresConfig{
		DSN:             cfg.DB.DSN,
		MaxConns:        cfg.DB.MaxConns,
		MinConns:        cfg.DB.MinConns,
		MaxConnLifetime: cfg.DB.MaxConnLifetime,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("initialize store: %w", err)
	}

	var f fetcher.Fetcher
	switch cfg.Fetch.Mode {
	case "headless":
		log.Info("using headless browser fetcher")
		f, err = fetcher.NewChromedp(fetcher.ChromedpConfig{
			UserAgent:          cfg.Fetch.UserAgent,
			ViewportWidth:      cfg.Fetch.ViewportWidth,
			ViewportHeight:     cfg.Fetch.ViewportHeight,
			ChallengeWait:      cfg.Fetch.ChallengeWait,
			ChallengeExtraWait: cfg.Fetch.ChallengeExtraWait,
			FetchTimeout:       cfg.Fetch.Timeout,
		}, loggers.Scraping)
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("initialize headless fetcher: %w", err)
		}
	case "static":
		log.Info("using static HTTP fetcher")
		f = fetcher.NewStatic(fetcher.StaticConfig{
			UserAgent: cfg.Fetch.UserAgent,
			Timeout:   cfg.Fetch.Timeout,
		}, loggers.Scraping)
	default:
		st.Close()
		return nil, fmt.Errorf("unknown fetch mode: %s", cfg.Fetch.Mode)
	}

	parser := rankings.NewParser(loggers.Scraping)
	orch := scraper.New(f, parser, st, cfg.Scrape.URL, loggers.Scraping)

	sched := scheduler.New(orch, clock.System{}, scheduler.Config{
		WeeklySpec: cfg.Schedule.WeeklySpec,
		RetryDelay: cfg.Schedule.RetryDelay,
	}, log)

	apiServer := api.NewServer(st, sched, auth.NewVerifier(cfg.Auth.JWTSecret), api.Config{
		AuthEnabled:    cfg.Auth.Enabled,
		RequestTimeout: cfg.Server.RequestTimeout,
		UpdateTimeout:  cfg.Server.UpdateTimeout,
	}, log)

	log.Info("services initialized")

	return &App{
		cfg:     cfg,
		loggers: loggers,
		fetcher: f,
		store:   st,
		orch:    orch,
		sched:   sched,
		server: &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
			Handler: apiServer.Handler(),
		},
	}, nil
}

// Logger returns the application logger.
func (a *App) Logger() *zap.Logger {
	return a.loggers.App
}

// RunOnce performs a single update cycle. Used by the update command.
func (a *App) RunOnce(ctx context.Context) scraper.Outcome {
	return a.orch.Run(ctx)
}

// Run starts the scheduler and HTTP server, populates an empty table,
// and blocks until ctx is canceled or the server fails.
func (a *App) Run(ctx context.Context) error {
	log := a.loggers.App

	if err := a.sched.Start(); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	// Cold start: an empty table means we have never scraped, so run
	// a cycle immediately rather than waiting for Monday.
	count, err := a.store.Count(ctx)
	if err != nil {
		log.Warn("could not read player count on startup", zap.Error(err))
	} else if count == 0 {
		log.Info("players table empty, running initial update")
		outcome := a.sched.TriggerNow(ctx)
		if !outcome.Success {
			log.Warn("initial update failed", zap.String("reason", outcome.Reason))
		}
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", zap.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		log.Warn("http server shutdown", zap.Error(err))
	}
	return nil
}

// Close releases all resources held by the App.
func (a *App) Close() {
	log := a.loggers.App
	log.Info("shutting down services")
	a.sched.Stop()
	closeFetcher(a.fetcher, log)
	a.store.Close()
	a.loggers.Sync()
}

func closeFetcher(f fetcher.Fetcher, log *zap.Logger) {
	if c, ok := f.(interface{ Close() }); ok {
		c.Close()
		return
	}
	if c, ok := f.(interface{ Close() error }); ok {
		if err := c.Close(); err != nil {
			log.Warn("closing fetcher", zap.Error(err))
		}
	}
}

var _ scheduler.CycleRunner = (*scraper.Orchestrator)(nil)
