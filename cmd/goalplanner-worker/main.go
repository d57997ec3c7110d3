// Command goalplanner-worker consumes goal events and keeps the spreadsheet
// snapshot current, with a periodic sync covering missed messages.
package main

import (
	"context"
	"errors"
	"os"
	"time"

	"goalplanner/internal/cli"
	"goalplanner/internal/config"
	"goalplanner/internal/log"
	"goalplanner/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig((*config.Config).ValidateWorker)
	logger := cli.SetupLogger(cfg, log.ComponentWorker)

	logger.Info("Starting goalplanner-worker", "backend", cfg.DataBackend, "interval", cfg.SyncInterval.String())

	runCtx, stop := context.WithCancel(context.Background())
	defer stop()

	result := cli.OpenBackend(runCtx, logger, cfg)
	exporter := cli.NewSheetExporter(runCtx, logger, cfg)
	events := cli.ConnectAMQP(logger, cfg, true)

	syncWorker := worker.NewSyncWorker(result.Backend, exporter, logger)

	// Catch up on anything changed while the worker was down.
	if _, err := syncWorker.Sync(runCtx, "startup"); err != nil {
		logger.Error("Startup sync failed", "error", err)
	}

	go func() {
		err := events.ConsumeGoalEvents(runCtx, syncWorker.HandleGoalEvent)
		// Closing the connection on shutdown also ends consumption.
		if err != nil && runCtx.Err() == nil && !errors.Is(err, context.Canceled) {
			logger.Error("Message consumption failed", "error", err)
			os.Exit(1)
		}
	}()
	go syncWorker.RunPeriodic(runCtx, cfg.SyncInterval)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(context.Context) {
		stop()
		if err := events.Close(); err != nil {
			logger.Warn("AMQP close error", "error", err)
		}
		if result.Cleanup != nil {
			if err := result.Cleanup(); err != nil {
				logger.Warn("Backend cleanup error", "error", err)
			}
		}
	})

	cli.WaitForShutdown(ctx, done)
	last, syncs := syncWorker.Stats()
	logger.Info("Worker stopped", "syncs", syncs, "last_sync", last)
}
