package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"budget/internal/core"
	applog "budget/internal/log"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

// Refresh run outcomes.
const (
	RefreshOK      = "ok"
	RefreshPartial = "partial"
	RefreshFailed  = "failed"
	RefreshSkipped = "skipped"
)

// RefreshRun is the audit record of one dataset refresh.
type RefreshRun struct {
	ID         int64     `json:"id"`
	RequestID  string    `json:"request_id"`
	Reason     string    `json:"reason"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Periods    int       `json:"periods"`
	Failures   int       `json:"failures"`
	Status     string    `json:"status"`
}

// HistoryPoint is one period of a category series. Present is false when the
// sheet had the category without a parseable amount.
type HistoryPoint struct {
	Period  core.Period
	Amount  decimal.Decimal
	Present bool
}

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	logger  *applog.Logger
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
		logger:  applog.ForComponent(applog.ComponentStorage),
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks the database connection.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// ReplaceDataset atomically replaces the stored dataset with ds.
func (r *SQLiteRepository) ReplaceDataset(ctx context.Context, ds core.Dataset) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	q := r.queries.WithTx(tx)
	if err := q.DeleteAllExpenses(ctx); err != nil {
		return fmt.Errorf("clear expenses: %w", err)
	}
	if err := q.DeleteAllPeriods(ctx); err != nil {
		return fmt.Errorf("clear periods: %w", err)
	}

	loadedAt := formatTime(time.Now())
	for _, rec := range ds {
		residents := rec.Residents
		if residents == nil {
			residents = []string{}
		}
		residentsJSON, err := json.Marshal(residents)
		if err != nil {
			return fmt.Errorf("encode residents of %s: %w", rec.Period, err)
		}
		id, err := q.InsertPeriod(ctx, InsertPeriodParams{
			SourceID:     rec.SourceID,
			Year:         int64(rec.Period.Year),
			Month:        int64(rec.Period.Month),
			NumResidents: int64(rec.NumResidents()),
			Residents:    string(residentsJSON),
			LoadedAt:     loadedAt,
		})
		if err != nil {
			return fmt.Errorf("insert period %s: %w", rec.Period, err)
		}
		for category, amount := range rec.Expenses {
			if err := q.InsertExpense(ctx, PeriodExpense{
				PeriodID: id,
				Category: category,
				Amount:   sql.NullString{String: amount.String(), Valid: true},
			}); err != nil {
				return fmt.Errorf("insert %s of %s: %w", category, rec.Period, err)
			}
		}
		for _, category := range rec.Missing {
			if _, ok := rec.Expenses[category]; ok {
				continue
			}
			if err := q.InsertExpense(ctx, PeriodExpense{PeriodID: id, Category: category}); err != nil {
				return fmt.Errorf("insert missing %s of %s: %w", category, rec.Period, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit dataset: %w", err)
	}
	r.logger.InfoContext(ctx, "Dataset replaced", applog.FieldPeriods, len(ds))
	return nil
}

// LoadDataset reads the stored dataset, one record per stored period.
func (r *SQLiteRepository) LoadDataset(ctx context.Context) (core.Dataset, error) {
	periods, err := r.queries.ListPeriods(ctx)
	if err != nil {
		return nil, fmt.Errorf("list periods: %w", err)
	}
	expenses, err := r.queries.ListExpenses(ctx)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}

	index := make(map[int64]int, len(periods))
	ds := make(core.Dataset, 0, len(periods))
	for _, p := range periods {
		var residents []string
		if err := json.Unmarshal([]byte(p.Residents), &residents); err != nil {
			return nil, fmt.Errorf("decode residents of period %d: %w", p.ID, err)
		}
		index[p.ID] = len(ds)
		ds = append(ds, core.ExpenseRecord{
			Period:    core.NewPeriod(int(p.Year), int(p.Month)),
			SourceID:  p.SourceID,
			Expenses:  map[string]decimal.Decimal{},
			Residents: residents,
		})
	}

	for _, e := range expenses {
		i, ok := index[e.PeriodID]
		if !ok {
			continue
		}
		if !e.Amount.Valid {
			ds[i].Missing = append(ds[i].Missing, e.Category)
			continue
		}
		amount, err := decimal.NewFromString(e.Amount.String)
		if err != nil {
			return nil, fmt.Errorf("decode %s amount %q: %w", e.Category, e.Amount.String, err)
		}
		ds[i].Expenses[e.Category] = amount
	}
	return ds, nil
}

// ListPeriodHistory returns the series of one category in period order.
func (r *SQLiteRepository) ListPeriodHistory(ctx context.Context, category string) ([]HistoryPoint, error) {
	rows, err := r.queries.CategoryHistory(ctx, category)
	if err != nil {
		return nil, fmt.Errorf("category history %s: %w", category, err)
	}
	out := make([]HistoryPoint, 0, len(rows))
	for _, row := range rows {
		point := HistoryPoint{Period: core.NewPeriod(int(row.Year), int(row.Month))}
		if row.Amount.Valid {
			amount, err := decimal.NewFromString(row.Amount.String)
			if err != nil {
				return nil, fmt.Errorf("decode %s amount %q: %w", category, row.Amount.String, err)
			}
			point.Amount = amount
			point.Present = true
		}
		out = append(out, point)
	}
	return out, nil
}

// CountPeriods returns the number of stored periods.
func (r *SQLiteRepository) CountPeriods(ctx context.Context) (int, error) {
	n, err := r.queries.CountPeriods(ctx)
	if err != nil {
		return 0, fmt.Errorf("count periods: %w", err)
	}
	return int(n), nil
}

// RecordRefresh stores the audit record of a refresh and returns its id.
func (r *SQLiteRepository) RecordRefresh(ctx context.Context, run RefreshRun) (int64, error) {
	id, err := r.queries.InsertRefreshRun(ctx, RefreshRunRow{
		RequestID:  run.RequestID,
		Reason:     run.Reason,
		StartedAt:  formatTime(run.StartedAt),
		FinishedAt: formatTime(run.FinishedAt),
		Periods:    int64(run.Periods),
		Failures:   int64(run.Failures),
		Status:     run.Status,
	})
	if err != nil {
		return 0, fmt.Errorf("record refresh: %w", err)
	}
	return id, nil
}

// LastRefresh returns the most recent refresh run, if any.
func (r *SQLiteRepository) LastRefresh(ctx context.Context) (RefreshRun, bool, error) {
	row, err := r.queries.LastRefreshRun(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return RefreshRun{}, false, nil
	}
	if err != nil {
		return RefreshRun{}, false, fmt.Errorf("last refresh: %w", err)
	}
	started, err := parseTime(row.StartedAt)
	if err != nil {
		return RefreshRun{}, false, err
	}
	finished, err := parseTime(row.FinishedAt)
	if err != nil {
		return RefreshRun{}, false, err
	}
	return RefreshRun{
		ID:         row.ID,
		RequestID:  row.RequestID,
		Reason:     row.Reason,
		StartedAt:  started,
		FinishedAt: finished,
		Periods:    int(row.Periods),
		Failures:   int(row.Failures),
		Status:     row.Status,
	}, true, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}
