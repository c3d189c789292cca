package backend

import (
	"context"

	"budget/internal/core"
	"budget/internal/sheets"
)

// SourceResult contains the raw period source and the backend that produced it
type SourceResult struct {
	Source sheets.Source
	Type   BackendType
}

// Factory creates raw period sources based on configuration
type Factory interface {
	// CreateSource creates a source instance based on the provided config
	CreateSource(ctx context.Context, config Config, layout core.Layout) (*SourceResult, error)
}

// Config holds configuration for source creation
type Config struct {
	// Backend type
	Type BackendType

	// Google Sheets specific
	GoogleSpreadsheetID      string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
	GoogleOAuthClientFile    string
	GoogleOAuthTokenFile     string
	GoogleOAuthClientJSON    string
	GoogleOAuthTokenJSON     string

	// Memory backend specific
	DataDirectory string
}

// BackendType represents the type of raw period source
type BackendType string

const (
	SheetsBackend BackendType = "sheets"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SheetsBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
