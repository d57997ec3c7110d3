// Package worker keeps a spreadsheet snapshot of the goals in step with the
// goal events published by the web app.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"goalplanner/internal/amqp"
	"goalplanner/internal/core"
	"goalplanner/internal/goals"
	"goalplanner/internal/log"
	"goalplanner/internal/sheets"
)

// SyncWorker re-exports the whole collection whenever it is told something changed.
type SyncWorker struct {
	lister   goals.GoalLister
	exporter sheets.GoalExporter
	logger   *log.Logger
	now      func() time.Time

	mu       sync.Mutex
	lastSync time.Time
	syncs    int
}

func NewSyncWorker(lister goals.GoalLister, exporter sheets.GoalExporter, logger *log.Logger) *SyncWorker {
	if logger == nil {
		logger = log.Wrap(nil, log.ComponentWorker)
	}
	return &SyncWorker{lister: lister, exporter: exporter, logger: logger, now: time.Now}
}

// Sync fetches the goals and exports them. Concurrent calls run one at a time.
func (w *SyncWorker) Sync(ctx context.Context, reason string) (sheets.Result, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	start := w.now()
	list, err := w.lister.ListGoals(ctx)
	if err != nil {
		return sheets.Result{}, fmt.Errorf("list goals: %w", err)
	}
	res, err := w.exporter.Export(ctx, list, core.Today(start))
	if err != nil {
		return sheets.Result{}, fmt.Errorf("export goals: %w", err)
	}

	w.lastSync = start
	w.syncs++
	w.logger.InfoContext(ctx, "Sheet synced",
		log.FieldOperation, log.OpExport,
		log.FieldCount, len(list),
		"reason", reason,
		"range", res.Range,
		log.FieldDuration, w.now().Sub(start).Milliseconds())
	return res, nil
}

// HandleGoalEvent is the AMQP handler: any goal change triggers a full sync.
func (w *SyncWorker) HandleGoalEvent(ctx context.Context, msg *amqp.GoalEventMessage) error {
	w.logger.DebugContext(ctx, "Goal event received",
		log.FieldEvent, msg.Event,
		log.FieldGoalID, msg.GoalID)
	_, err := w.Sync(ctx, msg.Event)
	return err
}

// RunPeriodic syncs every interval until ctx is done, covering missed messages.
func (w *SyncWorker) RunPeriodic(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.Sync(ctx, "periodic"); err != nil {
				w.logger.ErrorContext(ctx, "Periodic sync failed", log.FieldError, err.Error())
			}
		}
	}
}

// Stats returns when the last successful sync started and how many have run.
func (w *SyncWorker) Stats() (time.Time, int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastSync, w.syncs
}
