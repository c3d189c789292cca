package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"budget/internal/core"
	"budget/internal/dataset"
	applog "budget/internal/log"
	"budget/internal/sheets"
	"budget/internal/storage"

	"github.com/google/uuid"
)

// DatasetStore is the persistence used by the services.
type DatasetStore interface {
	ReplaceDataset(ctx context.Context, ds core.Dataset) error
	LoadDataset(ctx context.Context) (core.Dataset, error)
	ListPeriodHistory(ctx context.Context, category string) ([]storage.HistoryPoint, error)
	CountPeriods(ctx context.Context) (int, error)
	RecordRefresh(ctx context.Context, run storage.RefreshRun) (int64, error)
	LastRefresh(ctx context.Context) (storage.RefreshRun, bool, error)
}

var _ DatasetStore = (*storage.SQLiteRepository)(nil)

// RefreshService rebuilds the stored dataset from the raw period source.
type RefreshService struct {
	source    sheets.Source
	assembler *dataset.Assembler
	store     DatasetStore
	logger    *applog.Logger

	// Refreshes replace the whole dataset and must not interleave.
	mu sync.Mutex
}

func NewRefreshService(source sheets.Source, assembler *dataset.Assembler, store DatasetStore) *RefreshService {
	return &RefreshService{
		source:    source,
		assembler: assembler,
		store:     store,
		logger:    applog.ForComponent(applog.ComponentRefresh),
	}
}

// Refresh lists the source tabs, assembles them and replaces the stored
// dataset. An empty result is never written. requestID may be empty.
func (s *RefreshService) Refresh(ctx context.Context, requestID, reason string) (*dataset.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if requestID == "" {
		requestID = uuid.NewString()
	}
	run := storage.RefreshRun{
		RequestID: requestID,
		Reason:    reason,
		StartedAt: time.Now(),
	}
	logger := s.logger.With(applog.FieldRequestID, requestID, applog.FieldReason, reason)
	logger.InfoContext(ctx, "Refresh started")

	tabs, err := s.source.ListTabs(ctx)
	if err != nil {
		s.finish(ctx, run, storage.RefreshFailed)
		return nil, fmt.Errorf("list tabs: %w", err)
	}

	ds, report, err := s.assembler.Assemble(ctx, tabs)
	if err != nil {
		s.finish(ctx, run, storage.RefreshFailed)
		return nil, err
	}
	run.Failures = len(report.Failures)

	if len(ds) == 0 {
		s.finish(ctx, run, storage.RefreshSkipped)
		logger.WarnContext(ctx, "Source produced no periods, keeping stored dataset",
			"tabs", len(tabs),
			applog.FieldFailures, run.Failures)
		return report, fmt.Errorf("%w: source produced no periods", core.ErrEmptyDataset)
	}

	if err := s.store.ReplaceDataset(ctx, ds); err != nil {
		s.finish(ctx, run, storage.RefreshFailed)
		return report, fmt.Errorf("store dataset: %w", err)
	}
	run.Periods = len(ds)

	status := storage.RefreshOK
	if run.Failures > 0 {
		status = storage.RefreshPartial
	}
	s.finish(ctx, run, status)

	logger.InfoContext(ctx, "Refresh completed",
		applog.FieldPeriods, run.Periods,
		applog.FieldFailures, run.Failures,
		"status", status,
		"duration", report.Duration)
	return report, nil
}

func (s *RefreshService) finish(ctx context.Context, run storage.RefreshRun, status string) {
	run.Status = status
	run.FinishedAt = time.Now()
	// The audit row is written even when the refresh context was cancelled.
	if _, err := s.store.RecordRefresh(context.WithoutCancel(ctx), run); err != nil {
		s.logger.ErrorContext(ctx, "Failed to record refresh run",
			applog.FieldRequestID, run.RequestID,
			applog.FieldError, err)
	}
}

// NeedsInitialLoad reports whether the store holds no periods yet.
func (s *RefreshService) NeedsInitialLoad(ctx context.Context) (bool, error) {
	n, err := s.store.CountPeriods(ctx)
	if err != nil {
		return false, err
	}
	return n == 0, nil
}
