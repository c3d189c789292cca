package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"budget/internal/amqp"
	"budget/internal/core"
	"budget/internal/dataset"
	applog "budget/internal/log"
	"budget/internal/services"
)

// Refresher rebuilds the stored dataset.
type Refresher interface {
	Refresh(ctx context.Context, requestID, reason string) (*dataset.Report, error)
	NeedsInitialLoad(ctx context.Context) (bool, error)
}

var _ Refresher = (*services.RefreshService)(nil)

// RefreshWorker runs dataset refreshes on request and on a schedule.
type RefreshWorker struct {
	refresher Refresher
	interval  time.Duration
	logger    *applog.Logger
}

// NewRefreshWorker creates a worker. A zero interval disables the schedule.
func NewRefreshWorker(refresher Refresher, interval time.Duration) *RefreshWorker {
	return &RefreshWorker{
		refresher: refresher,
		interval:  interval,
		logger:    applog.ForComponent(applog.ComponentWorker),
	}
}

// HandleRefreshMessage processes a single refresh request from AMQP. An
// empty source is acknowledged, since retrying cannot fix it.
func (w *RefreshWorker) HandleRefreshMessage(ctx context.Context, msg *amqp.RefreshRequestMessage) error {
	w.logger.InfoContext(ctx, "Processing refresh message",
		applog.FieldRequestID, msg.RequestID,
		applog.FieldReason, msg.Reason,
		"queued_for", time.Since(msg.Timestamp).Round(time.Millisecond))

	_, err := w.refresher.Refresh(ctx, msg.RequestID, msg.Reason)
	if errors.Is(err, core.ErrEmptyDataset) {
		w.logger.WarnContext(ctx, "Refresh produced no data, dropping request",
			applog.FieldRequestID, msg.RequestID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("refresh %s: %w", msg.RequestID, err)
	}
	return nil
}

// InitialLoad refreshes once when the store is still empty.
func (w *RefreshWorker) InitialLoad(ctx context.Context) error {
	need, err := w.refresher.NeedsInitialLoad(ctx)
	if err != nil {
		return fmt.Errorf("check stored periods: %w", err)
	}
	if !need {
		w.logger.InfoContext(ctx, "Dataset already loaded, skipping startup refresh")
		return nil
	}
	w.logger.InfoContext(ctx, "Dataset empty, running startup refresh")
	if _, err := w.refresher.Refresh(ctx, "", amqp.ReasonStartup); err != nil {
		return fmt.Errorf("startup refresh: %w", err)
	}
	return nil
}

// Run refreshes on every tick until ctx is cancelled.
func (w *RefreshWorker) Run(ctx context.Context) error {
	if w.interval <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.InfoContext(ctx, "Refresh schedule started", "interval", w.interval)
	for {
		select {
		case <-ctx.Done():
			w.logger.InfoContext(ctx, "Refresh schedule stopped")
			return ctx.Err()
		case <-ticker.C:
			if _, err := w.refresher.Refresh(ctx, "", amqp.ReasonScheduled); err != nil && ctx.Err() == nil {
				w.logger.ErrorContext(ctx, "Scheduled refresh failed", applog.FieldError, err)
			}
		}
	}
}
