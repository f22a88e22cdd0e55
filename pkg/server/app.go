package server

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	mid "CoinPulse/internal/middleware"
	"CoinPulse/internal/repository"
	"CoinPulse/internal/service/sources"
	"CoinPulse/internal/usecase"
	"CoinPulse/pkg/cache"
	"CoinPulse/pkg/config"
	xhttp "CoinPulse/pkg/http"
	applogger "CoinPulse/pkg/logger"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	logger     *applogger.Logger
	scheduler  *usecase.UpdateScheduler
	stream     *sources.StreamSource
	pipeline   *mid.TradePipeline
	journal    *usecase.TradeJournal
	settings   *repository.SettingsRepository
	cache      cache.Service
	httpServer *xhttp.Server
}

// New creates a new App instance with all dependencies. stream and cache
// may be nil.
func New(
	cfg *config.Config,
	logger *applogger.Logger,
	scheduler *usecase.UpdateScheduler,
	stream *sources.StreamSource,
	pipeline *mid.TradePipeline,
	journal *usecase.TradeJournal,
	settings *repository.SettingsRepository,
	c cache.Service,
	httpServer *xhttp.Server,
) *App {
	return &App{
		cfg:        cfg,
		logger:     logger,
		scheduler:  scheduler,
		stream:     stream,
		pipeline:   pipeline,
		journal:    journal,
		settings:   settings,
		cache:      c,
		httpServer: httpServer,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.RunContext(ctx)
}

// RunContext starts every background worker and blocks until ctx is done.
func (a *App) RunContext(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := a.settings.Load(ctx); err != nil {
		a.logger.Warn("settings restore failed, using defaults", applogger.Error(err))
	}

	a.pipeline.Start(ctx)
	a.logger.Info("trade journal started", applogger.String("backend", a.journal.Backend()))

	if a.stream != nil {
		go func() {
			if err := a.stream.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Error("market stream stopped", applogger.Error(err))
			}
		}()
	}

	schedDone := make(chan struct{})
	go func() {
		defer close(schedDone)
		if err := a.scheduler.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			a.logger.Error("update scheduler stopped", applogger.Error(err))
		}
	}()
	a.logger.Info("update scheduler started", applogger.Strings("symbols", a.scheduler.Symbols()))

	// Start HTTP server
	if err := a.httpServer.Start(); err != nil {
		a.logger.Error("http server start error", applogger.Error(err))
		return err
	}

	<-ctx.Done()
	a.logger.Info("shutdown signal received")

	cancel()
	<-schedDone
	return a.shutdown()
}

// shutdown gracefully stops all services.
func (a *App) shutdown() error {
	a.logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.httpServer.ShutdownTimeout())
	defer cancel()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.logger.Error("http shutdown error", applogger.Error(err))
	}

	// flushes buffered trades before the backends close
	a.pipeline.Stop()
	a.journal.Close()

	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Warn("cache close error", applogger.Error(err))
		}
	}

	a.logger.Info("shutdown complete")
	return nil
}
