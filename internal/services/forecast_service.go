package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"budget/internal/core"
	"budget/internal/forecast"
	"budget/internal/storage"
)

// ForecastService answers read queries over the stored dataset.
type ForecastService struct {
	store      DatasetStore
	forecaster *forecast.Forecaster
	now        func() time.Time
}

func NewForecastService(store DatasetStore, forecaster *forecast.Forecaster) *ForecastService {
	return &ForecastService{store: store, forecaster: forecaster, now: time.Now}
}

// ParseTarget parses a month label such as "Apr2024" or "april". Labels
// without a year refer to the current year.
func (s *ForecastService) ParseTarget(label string) (core.Period, error) {
	p, ok := core.ParsePeriodAt(label, s.now())
	if !ok {
		return core.Period{}, fmt.Errorf("%w: month %q", core.ErrNotParseable, label)
	}
	return p, nil
}

// Estimate forecasts the month named by label.
func (s *ForecastService) Estimate(ctx context.Context, label string, residents int) (core.ForecastResult, error) {
	target, err := s.ParseTarget(label)
	if err != nil {
		return core.ForecastResult{}, err
	}
	return s.Forecast(ctx, target, residents)
}

// Forecast forecasts target from the stored dataset.
func (s *ForecastService) Forecast(ctx context.Context, target core.Period, residents int) (core.ForecastResult, error) {
	ds, err := s.store.LoadDataset(ctx)
	if err != nil {
		return core.ForecastResult{}, fmt.Errorf("load dataset: %w", err)
	}
	return s.forecaster.Forecast(ctx, ds, target, residents)
}

// Dataset returns the stored dataset, most recent period first.
func (s *ForecastService) Dataset(ctx context.Context) (core.Dataset, error) {
	ds, err := s.store.LoadDataset(ctx)
	if err != nil {
		return nil, fmt.Errorf("load dataset: %w", err)
	}
	return ds.SortedByPeriodDesc(), nil
}

// History returns the stored series of one category.
func (s *ForecastService) History(ctx context.Context, category string) ([]storage.HistoryPoint, error) {
	return s.store.ListPeriodHistory(ctx, strings.ToLower(strings.TrimSpace(category)))
}

// LastRefresh returns the most recent refresh run, if any.
func (s *ForecastService) LastRefresh(ctx context.Context) (storage.RefreshRun, bool, error) {
	return s.store.LastRefresh(ctx)
}
