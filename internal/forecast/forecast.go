// Package forecast predicts the expenses of a future period with one linear
// trend per category.
package forecast

import (
	"context"
	"fmt"
	"time"

	"budget/internal/core"
	applog "budget/internal/log"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// Forecaster fits every expense category of a dataset independently.
type Forecaster struct {
	now    func() time.Time
	logger *applog.Logger
}

// New creates a forecaster using the wall clock.
func New() *Forecaster {
	return NewWithClock(time.Now)
}

// NewWithClock creates a forecaster whose notion of the current period comes
// from now.
func NewWithClock(now func() time.Time) *Forecaster {
	return &Forecaster{
		now:    now,
		logger: applog.ForComponent(applog.ComponentForecast),
	}
}

// estimate is the result slot of one category.
type estimate struct {
	value   decimal.Decimal
	omitted bool
}

// Forecast predicts every category of ds at target. residents scales the
// regression by household size when positive; zero leaves it out.
func (f *Forecaster) Forecast(ctx context.Context, ds core.Dataset, target core.Period, residents int) (core.ForecastResult, error) {
	if !target.Valid() {
		return core.ForecastResult{}, fmt.Errorf("%w: %v", core.ErrInvalidPeriod, target)
	}
	if current := core.PeriodOf(f.now()); target.Before(current) {
		return core.ForecastResult{}, fmt.Errorf("%w: %s is before %s", core.ErrTargetInPast, target, current)
	}
	if residents < 0 {
		return core.ForecastResult{}, fmt.Errorf("%w: %d", core.ErrInvalidResidents, residents)
	}
	if len(ds) == 0 {
		return core.ForecastResult{}, core.ErrEmptyDataset
	}

	predictors := func(r core.ExpenseRecord) []float64 {
		x := []float64{float64(r.Period.Year), float64(r.Period.Month)}
		if residents > 0 {
			x = append(x, float64(r.NumResidents()))
		}
		return x
	}
	at := []float64{float64(target.Year), float64(target.Month)}
	if residents > 0 {
		at = append(at, float64(residents))
	}

	categories := ds.Categories()
	slots := make([]estimate, len(categories))

	g, gctx := errgroup.WithContext(ctx)
	for i, category := range categories {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			col := buildColumn(ds, category, predictors)
			if col.omitted {
				slots[i] = estimate{omitted: true}
				return nil
			}
			value, err := predictColumn(col, at)
			if err != nil {
				return fmt.Errorf("category %q: %w", category, err)
			}
			slots[i] = estimate{value: decimal.NewFromFloat(value).Round(2)}
			f.logger.DebugContext(gctx, "Fitted category",
				applog.FieldCategory, category,
				"points", len(col.points),
				"outliers", col.outliers,
				"imputed", col.imputed)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return core.ForecastResult{}, err
	}

	result := core.ForecastResult{
		Period:    target,
		Residents: residents,
		Estimates: make(map[string]decimal.Decimal, len(categories)),
	}
	for i, category := range categories {
		if slots[i].omitted {
			result.Omitted = append(result.Omitted, category)
			continue
		}
		result.Estimates[category] = slots[i].value
	}

	f.logger.InfoContext(ctx, "Forecast computed",
		applog.FieldPeriod, target.String(),
		applog.FieldResidents, residents,
		applog.FieldPeriods, len(ds),
		"categories", len(result.Estimates),
		"omitted", len(result.Omitted))
	return result, nil
}

// ForecastCurrent forecasts the current period.
func (f *Forecaster) ForecastCurrent(ctx context.Context, ds core.Dataset, residents int) (core.ForecastResult, error) {
	return f.Forecast(ctx, ds, core.PeriodOf(f.now()), residents)
}

func predictColumn(col column, at []float64) (float64, error) {
	if col.distinct() < 2 {
		return col.meanY(), nil
	}
	m, err := fitOLS(col.points)
	if err != nil {
		return 0, err
	}
	return m.predict(at), nil
}
