package http

import (
	"encoding/json"
	"net/http"
	"time"

	"budget/internal/core"
	applog "budget/internal/log"
	"budget/internal/middleware/trace"
	"budget/internal/storage"

	"github.com/shopspring/decimal"
)

type recordResponse struct {
	Period       string                     `json:"period"`
	Label        string                     `json:"label"`
	SourceID     string                     `json:"source_id"`
	Residents    []string                   `json:"residents"`
	NumResidents int                        `json:"num_residents"`
	Expenses     map[string]decimal.Decimal `json:"expenses"`
	Missing      []string                   `json:"missing,omitempty"`
}

type datasetResponse struct {
	Periods    int              `json:"periods"`
	Categories []string         `json:"categories"`
	Records    []recordResponse `json:"records"`
}

type forecastResponse struct {
	Period    string                     `json:"period"`
	Label     string                     `json:"label"`
	Residents int                        `json:"residents"`
	Estimates map[string]decimal.Decimal `json:"estimates"`
	Total     decimal.Decimal            `json:"total"`
	Omitted   []string                   `json:"omitted,omitempty"`
	Cached    bool                       `json:"cached"`
}

type historyPointResponse struct {
	Period string `json:"period"`
	Label  string `json:"label"`
	// Amount is null when the sheet had no parseable value.
	Amount *decimal.Decimal `json:"amount"`
}

type historyResponse struct {
	Category string                 `json:"category"`
	Points   []historyPointResponse `json:"points"`
}

type refreshResponse struct {
	RequestID string `json:"request_id"`
	Reason    string `json:"reason"`
	Status    string `json:"status"`
}

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

type healthResponse struct {
	Status   string    `json:"status"`
	Time     time.Time `json:"time"`
	Requests int64     `json:"requests"`
}

func newRecordResponse(r core.ExpenseRecord) recordResponse {
	expenses := make(map[string]decimal.Decimal, len(r.Expenses))
	for k, v := range r.Expenses {
		expenses[k] = v
	}
	residents := r.Residents
	if residents == nil {
		residents = []string{}
	}
	return recordResponse{
		Period:       r.Period.Key(),
		Label:        r.Period.String(),
		SourceID:     r.SourceID,
		Residents:    residents,
		NumResidents: r.NumResidents(),
		Expenses:     expenses,
		Missing:      r.Missing,
	}
}

func newDatasetResponse(ds core.Dataset) datasetResponse {
	records := make([]recordResponse, 0, len(ds))
	for _, r := range ds {
		records = append(records, newRecordResponse(r))
	}
	return datasetResponse{
		Periods:    len(ds),
		Categories: ds.Categories(),
		Records:    records,
	}
}

func newForecastResponse(f core.ForecastResult, cached bool) forecastResponse {
	return forecastResponse{
		Period:    f.Period.Key(),
		Label:     f.Period.String(),
		Residents: f.Residents,
		Estimates: f.Estimates,
		Total:     f.Total(),
		Omitted:   f.Omitted,
		Cached:    cached,
	}
}

func newHistoryResponse(category string, points []storage.HistoryPoint) historyResponse {
	out := historyResponse{Category: category, Points: make([]historyPointResponse, 0, len(points))}
	for _, p := range points {
		hp := historyPointResponse{Period: p.Period.Key(), Label: p.Period.String()}
		if p.Present {
			amount := p.Amount
			hp.Amount = &amount
		}
		out.Points = append(out.Points, hp)
	}
	return out
}

// writeJSON encodes v with the given status.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Failed to encode response",
			applog.FieldPath, r.URL.Path,
			applog.FieldError, err)
	}
}

// writeError sends a JSON error carrying the request id.
func writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	writeJSON(w, r, status, errorResponse{
		Error:     message,
		RequestID: trace.GetRequestID(r.Context()),
	})
}
