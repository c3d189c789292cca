package storage

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

// Period mirrors a row of the periods table.
type Period struct {
	ID           int64
	SourceID     string
	Year         int64
	Month        int64
	NumResidents int64
	Residents    string
	LoadedAt     string
}

// PeriodExpense mirrors a row of the period_expenses table.
type PeriodExpense struct {
	PeriodID int64
	Category string
	Amount   sql.NullString
}

// RefreshRunRow mirrors a row of the refresh_runs table.
type RefreshRunRow struct {
	ID         int64
	RequestID  string
	Reason     string
	StartedAt  string
	FinishedAt string
	Periods    int64
	Failures   int64
	Status     string
}

const deleteAllExpenses = `DELETE FROM period_expenses`

func (q *Queries) DeleteAllExpenses(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, deleteAllExpenses)
	return err
}

const deleteAllPeriods = `DELETE FROM periods`

func (q *Queries) DeleteAllPeriods(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, deleteAllPeriods)
	return err
}

const insertPeriod = `INSERT INTO periods (source_id, year, month, num_residents, residents, loaded_at)
VALUES (?, ?, ?, ?, ?, ?)
RETURNING id`

type InsertPeriodParams struct {
	SourceID     string
	Year         int64
	Month        int64
	NumResidents int64
	Residents    string
	LoadedAt     string
}

func (q *Queries) InsertPeriod(ctx context.Context, arg InsertPeriodParams) (int64, error) {
	row := q.db.QueryRowContext(ctx, insertPeriod,
		arg.SourceID,
		arg.Year,
		arg.Month,
		arg.NumResidents,
		arg.Residents,
		arg.LoadedAt,
	)
	var id int64
	err := row.Scan(&id)
	return id, err
}

const insertExpense = `INSERT INTO period_expenses (period_id, category, amount) VALUES (?, ?, ?)`

func (q *Queries) InsertExpense(ctx context.Context, arg PeriodExpense) error {
	_, err := q.db.ExecContext(ctx, insertExpense, arg.PeriodID, arg.Category, arg.Amount)
	return err
}

const listPeriods = `SELECT id, source_id, year, month, num_residents, residents, loaded_at
FROM periods
ORDER BY year, month, id`

func (q *Queries) ListPeriods(ctx context.Context) ([]Period, error) {
	rows, err := q.db.QueryContext(ctx, listPeriods)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Period
	for rows.Next() {
		var i Period
		if err := rows.Scan(
			&i.ID,
			&i.SourceID,
			&i.Year,
			&i.Month,
			&i.NumResidents,
			&i.Residents,
			&i.LoadedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listExpenses = `SELECT period_id, category, amount FROM period_expenses ORDER BY period_id, category`

func (q *Queries) ListExpenses(ctx context.Context) ([]PeriodExpense, error) {
	rows, err := q.db.QueryContext(ctx, listExpenses)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []PeriodExpense
	for rows.Next() {
		var i PeriodExpense
		if err := rows.Scan(&i.PeriodID, &i.Category, &i.Amount); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const categoryHistory = `SELECT p.year, p.month, e.amount
FROM period_expenses e
JOIN periods p ON p.id = e.period_id
WHERE e.category = ?
ORDER BY p.year, p.month, p.id`

type CategoryHistoryRow struct {
	Year   int64
	Month  int64
	Amount sql.NullString
}

func (q *Queries) CategoryHistory(ctx context.Context, category string) ([]CategoryHistoryRow, error) {
	rows, err := q.db.QueryContext(ctx, categoryHistory, category)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []CategoryHistoryRow
	for rows.Next() {
		var i CategoryHistoryRow
		if err := rows.Scan(&i.Year, &i.Month, &i.Amount); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const countPeriods = `SELECT COUNT(*) FROM periods`

func (q *Queries) CountPeriods(ctx context.Context) (int64, error) {
	row := q.db.QueryRowContext(ctx, countPeriods)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const insertRefreshRun = `INSERT INTO refresh_runs (request_id, reason, started_at, finished_at, periods, failures, status)
VALUES (?, ?, ?, ?, ?, ?, ?)
RETURNING id`

func (q *Queries) InsertRefreshRun(ctx context.Context, arg RefreshRunRow) (int64, error) {
	row := q.db.QueryRowContext(ctx, insertRefreshRun,
		arg.RequestID,
		arg.Reason,
		arg.StartedAt,
		arg.FinishedAt,
		arg.Periods,
		arg.Failures,
		arg.Status,
	)
	var id int64
	err := row.Scan(&id)
	return id, err
}

const lastRefreshRun = `SELECT id, request_id, reason, started_at, finished_at, periods, failures, status
FROM refresh_runs
ORDER BY id DESC
LIMIT 1`

func (q *Queries) LastRefreshRun(ctx context.Context) (RefreshRunRow, error) {
	row := q.db.QueryRowContext(ctx, lastRefreshRun)
	var i RefreshRunRow
	err := row.Scan(
		&i.ID,
		&i.RequestID,
		&i.Reason,
		&i.StartedAt,
		&i.FinishedAt,
		&i.Periods,
		&i.Failures,
		&i.Status,
	)
	return i, err
}
