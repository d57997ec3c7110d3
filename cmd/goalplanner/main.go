package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"goalplanner/internal/cli"
	apphttp "goalplanner/internal/http"
	"goalplanner/internal/log"
	"goalplanner/internal/store"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, log.ComponentApp)

	logger.Info("Starting goalplanner", "port", cfg.Port, "backend", cfg.DataBackend)

	result := cli.OpenBackend(context.Background(), logger, cfg)

	storeOpts := []store.Option{store.WithLogger(logger)}
	serverOpts := []apphttp.Option{
		apphttp.WithLogger(logger),
		apphttp.WithRateLimit(cfg.RateLimitPerMinute),
	}

	journal := cli.OpenJournal(logger, cfg.JournalDBPath)
	if journal != nil {
		storeOpts = append(storeOpts, store.WithObserver(journal))
		serverOpts = append(serverOpts, apphttp.WithActivity(journal))
	}

	events := cli.ConnectAMQP(logger, cfg, false)
	if events != nil {
		storeOpts = append(storeOpts, store.WithObserver(events))
	}

	st := store.New(result.Backend, storeOpts...)

	fetchCtx, cancelFetch := context.WithTimeout(context.Background(), cfg.GoalsAPITimeout)
	if err := st.FetchAll(fetchCtx); err != nil {
		logger.Warn("Initial goal fetch failed, serving an empty collection", "error", err)
	}
	cancelFetch()

	srv := apphttp.NewServer(":"+cfg.Port, st, serverOpts...)
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		if events != nil {
			if err := events.Close(); err != nil {
				logger.Warn("AMQP close error", "error", err)
			}
		}
		if journal != nil {
			if err := journal.Close(); err != nil {
				logger.Warn("Journal close error", "error", err)
			}
		}
		if result.Cleanup != nil {
			if err := result.Cleanup(); err != nil {
				logger.Warn("Backend cleanup error", "error", err)
			}
		}
	})

	logger.Info("Server listening", "addr", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
