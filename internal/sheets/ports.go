package sheets

import (
	"context"
	"errors"

	"budget/internal/core"
)

// ErrTabNotFound is returned by a PeriodFetcher for an unknown tab.
var ErrTabNotFound = errors.New("tab not found")

// Ports for raw period sources.
type (
	// TabLister enumerates the period tabs of a spreadsheet.
	TabLister interface {
		ListTabs(ctx context.Context) ([]core.Tab, error)
	}

	// PeriodFetcher retrieves the raw cells of a single period tab.
	PeriodFetcher interface {
		FetchPeriod(ctx context.Context, tab core.Tab) (core.RawPeriod, error)
	}

	// Source is a complete raw period source.
	Source interface {
		TabLister
		PeriodFetcher
	}
)
