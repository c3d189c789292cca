package backend

import (
	"context"
	"fmt"

	"budget/internal/core"
	applog "budget/internal/log"
	gsheet "budget/internal/sheets/google"
	"budget/internal/sheets/memory"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *applog.Logger
}

// NewFactory creates a new source factory
func NewFactory() Factory {
	return &DefaultFactory{
		logger: applog.ForComponent(applog.ComponentBackend),
	}
}

// CreateSource implements Factory.CreateSource
func (f *DefaultFactory) CreateSource(ctx context.Context, config Config, layout core.Layout) (*SourceResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if err := layout.Validate(); err != nil {
		return nil, fmt.Errorf("invalid layout: %w", err)
	}

	switch config.Type {
	case SheetsBackend:
		return f.createSheetsSource(ctx, config, layout)
	case MemoryBackend:
		return f.createMemorySource(ctx, config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSheetsSource(ctx context.Context, config Config, layout core.Layout) (*SourceResult, error) {
	creds, err := config.Credentials()
	if err != nil {
		return nil, err
	}
	cli, err := gsheet.New(ctx, gsheet.Options{
		SpreadsheetID: config.GoogleSpreadsheetID,
		Layout:        layout,
		Credentials:   creds,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}

	f.logger.InfoContext(ctx, "Initialized Google Sheets source",
		applog.FieldSpreadsheet, config.GoogleSpreadsheetID,
		"service_account", len(creds.ServiceAccountJSON) > 0)

	return &SourceResult{Source: cli, Type: SheetsBackend}, nil
}

func (f *DefaultFactory) createMemorySource(ctx context.Context, config Config) (*SourceResult, error) {
	store, err := memory.NewFromDir(config.DataDirectory)
	if err != nil {
		return nil, fmt.Errorf("failed to load memory source: %w", err)
	}

	f.logger.InfoContext(ctx, "Initialized memory source",
		"data_directory", config.DataDirectory,
		applog.FieldPeriods, len(store.Raws()))

	return &SourceResult{Source: store, Type: MemoryBackend}, nil
}
