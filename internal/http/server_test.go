package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"budget/internal/core"
	"budget/internal/middleware/ratelimit"
	"budget/internal/services"
	"budget/internal/storage"

	"github.com/shopspring/decimal"
)

type fakeReader struct {
	mu        sync.Mutex
	ds        core.Dataset
	history   map[string][]storage.HistoryPoint
	run       storage.RefreshRun
	hasRun    bool
	forecasts int
	err       error
}

func (f *fakeReader) ParseTarget(label string) (core.Period, error) {
	p, ok := core.ParsePeriodAt(label, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	if !ok {
		return core.Period{}, core.ErrNotParseable
	}
	return p, nil
}

func (f *fakeReader) Forecast(_ context.Context, target core.Period, residents int) (core.ForecastResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.forecasts++
	if f.err != nil {
		return core.ForecastResult{}, f.err
	}
	return core.ForecastResult{
		Period:    target,
		Residents: residents,
		Estimates: map[string]decimal.Decimal{
			"rent":  decimal.RequireFromString("1200.50"),
			"power": decimal.RequireFromString("80.25"),
		},
		Omitted: []string{"water"},
	}, nil
}

func (f *fakeReader) Dataset(context.Context) (core.Dataset, error) { return f.ds, nil }

func (f *fakeReader) History(_ context.Context, category string) ([]storage.HistoryPoint, error) {
	return f.history[category], nil
}

func (f *fakeReader) LastRefresh(context.Context) (storage.RefreshRun, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.run, f.hasRun, nil
}

func (f *fakeReader) setRun(id int64) {
	f.mu.Lock()
	f.run = storage.RefreshRun{ID: id, Status: storage.RefreshOK}
	f.hasRun = true
	f.mu.Unlock()
}

func (f *fakeReader) forecastCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.forecasts
}

type fakeRequester struct {
	reasons []string
	err     error
}

func (f *fakeRequester) RequestRefresh(_ context.Context, reason string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.reasons = append(f.reasons, reason)
	return "req-1", nil
}

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

func newTestServer(t *testing.T, reader DatasetReader, opts Options) *Server {
	t.Helper()
	srv := NewServer(":0", reader, opts)
	srv.now = func() time.Time { return time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC) }
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv
}

func do(t *testing.T, srv *Server, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, httptest.NewRequest(method, target, nil))
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return v
}

func TestHealthAndReady(t *testing.T) {
	srv := newTestServer(t, &fakeReader{}, Options{Pinger: fakePinger{}})
	if rr := do(t, srv, http.MethodGet, "/healthz"); rr.Code != http.StatusOK {
		t.Fatalf("healthz status=%d", rr.Code)
	}
	if rr := do(t, srv, http.MethodGet, "/readyz"); rr.Code != http.StatusOK {
		t.Fatalf("readyz status=%d", rr.Code)
	}

	down := newTestServer(t, &fakeReader{}, Options{Pinger: fakePinger{err: errors.New("db closed")}})
	rr := do(t, down, http.MethodGet, "/readyz")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz status=%d, want 503", rr.Code)
	}
	if body := decode[errorResponse](t, rr); body.RequestID == "" {
		t.Fatalf("error response must carry the request id")
	}
}

func TestDatasetEndpoint(t *testing.T) {
	reader := &fakeReader{ds: core.Dataset{{
		Period:    core.NewPeriod(2024, 1),
		SourceID:  "s1",
		Expenses:  map[string]decimal.Decimal{"rent": decimal.NewFromInt(1000)},
		Missing:   []string{"water"},
		Residents: []string{"a", "b"},
	}}}
	srv := newTestServer(t, reader, Options{})

	rr := do(t, srv, http.MethodGet, "/api/dataset")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Fatalf("content type = %q", ct)
	}
	if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("security headers missing")
	}
	body := decode[datasetResponse](t, rr)
	if body.Periods != 1 || body.Records[0].Period != "2024-01" || body.Records[0].NumResidents != 2 {
		t.Fatalf("unexpected body %+v", body)
	}
	if got := body.Records[0].Expenses["rent"]; !got.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("rent = %s", got)
	}
	if len(body.Categories) != 2 {
		t.Fatalf("categories = %v, want rent and water", body.Categories)
	}

	if rr := do(t, srv, http.MethodPost, "/api/dataset"); rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST status=%d, want 405", rr.Code)
	}
}

func TestForecastEndpoint(t *testing.T) {
	tests := []struct {
		name   string
		query  string
		err    error
		status int
	}{
		{"ok", "month=Apr2024&residents=3", nil, http.StatusOK},
		{"default month", "residents=0", nil, http.StatusOK},
		{"missing residents", "month=Apr2024", nil, http.StatusBadRequest},
		{"negative residents", "month=Apr2024&residents=-1", nil, http.StatusBadRequest},
		{"bad month", "month=Smarch&residents=2", nil, http.StatusBadRequest},
		{"past", "month=Jan2020&residents=2", core.ErrTargetInPast, http.StatusUnprocessableEntity},
		{"empty", "month=Apr2024&residents=2", core.ErrEmptyDataset, http.StatusNotFound},
		{"internal", "month=Apr2024&residents=2", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, &fakeReader{err: tt.err}, Options{})
			rr := do(t, srv, http.MethodGet, "/api/forecast?"+tt.query)
			if rr.Code != tt.status {
				t.Fatalf("status=%d, want %d, body=%s", rr.Code, tt.status, rr.Body.String())
			}
		})
	}
}

func TestForecastBody(t *testing.T) {
	srv := newTestServer(t, &fakeReader{}, Options{})
	rr := do(t, srv, http.MethodGet, "/api/forecast?month="+url.QueryEscape("april 2024")+"&residents=3")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	body := decode[forecastResponse](t, rr)
	if body.Period != "2024-04" || body.Residents != 3 || body.Cached {
		t.Fatalf("unexpected body %+v", body)
	}
	if !body.Total.Equal(decimal.RequireFromString("1280.75")) {
		t.Fatalf("total = %s", body.Total)
	}
	if len(body.Omitted) != 1 || body.Omitted[0] != "water" {
		t.Fatalf("omitted = %v", body.Omitted)
	}
}

func TestForecastCacheFollowsRefreshRuns(t *testing.T) {
	reader := &fakeReader{}
	reader.setRun(1)
	srv := newTestServer(t, reader, Options{})

	const target = "/api/forecast?month=May2024&residents=2"
	do(t, srv, http.MethodGet, target)
	rr := do(t, srv, http.MethodGet, target)
	if !decode[forecastResponse](t, rr).Cached {
		t.Fatalf("second request should be served from cache")
	}
	if got := reader.forecastCalls(); got != 1 {
		t.Fatalf("forecast calls = %d, want 1", got)
	}

	reader.setRun(2)
	rr = do(t, srv, http.MethodGet, target)
	if decode[forecastResponse](t, rr).Cached {
		t.Fatalf("a new refresh run must bypass the cache")
	}

	srv.InvalidateForecasts()
	do(t, srv, http.MethodGet, target)
	if got := reader.forecastCalls(); got != 3 {
		t.Fatalf("forecast calls = %d, want 3", got)
	}
	if stats := srv.CacheStats(); stats.Hits != 1 {
		t.Fatalf("cache stats = %+v", stats)
	}
}

func TestHistoryEndpoint(t *testing.T) {
	reader := &fakeReader{history: map[string][]storage.HistoryPoint{
		"rent": {
			{Period: core.NewPeriod(2023, 1), Amount: decimal.NewFromInt(900), Present: true},
			{Period: core.NewPeriod(2023, 2)},
		},
	}}
	srv := newTestServer(t, reader, Options{})

	rr := do(t, srv, http.MethodGet, "/api/history?category=%20RENT%20")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	body := decode[historyResponse](t, rr)
	if body.Category != "rent" || len(body.Points) != 2 {
		t.Fatalf("unexpected body %+v", body)
	}
	if body.Points[0].Amount == nil || !body.Points[0].Amount.Equal(decimal.NewFromInt(900)) {
		t.Fatalf("first amount = %v", body.Points[0].Amount)
	}
	if body.Points[1].Amount != nil {
		t.Fatalf("missing amount must be null")
	}

	if rr := do(t, srv, http.MethodGet, "/api/history"); rr.Code != http.StatusBadRequest {
		t.Fatalf("missing category status=%d", rr.Code)
	}
	if rr := do(t, srv, http.MethodGet, "/api/history?category=gas"); rr.Code != http.StatusNotFound {
		t.Fatalf("unknown category status=%d", rr.Code)
	}
}

func TestLastRefreshEndpoint(t *testing.T) {
	reader := &fakeReader{}
	srv := newTestServer(t, reader, Options{})
	if rr := do(t, srv, http.MethodGet, "/api/refresh/last"); rr.Code != http.StatusNotFound {
		t.Fatalf("status=%d, want 404", rr.Code)
	}
	reader.setRun(7)
	rr := do(t, srv, http.MethodGet, "/api/refresh/last")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	if run := decode[storage.RefreshRun](t, rr); run.ID != 7 {
		t.Fatalf("run = %+v", run)
	}
}

func TestRequestRefreshEndpoint(t *testing.T) {
	t.Run("no publisher", func(t *testing.T) {
		srv := newTestServer(t, &fakeReader{}, Options{})
		if rr := do(t, srv, http.MethodPost, "/api/refresh"); rr.Code != http.StatusServiceUnavailable {
			t.Fatalf("status=%d, want 503", rr.Code)
		}
	})

	t.Run("queued", func(t *testing.T) {
		req := &fakeRequester{}
		srv := newTestServer(t, &fakeReader{}, Options{Requester: req})
		rr := do(t, srv, http.MethodPost, "/api/refresh?reason=Manual")
		if rr.Code != http.StatusAccepted {
			t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
		}
		body := decode[refreshResponse](t, rr)
		if body.RequestID != "req-1" || body.Status != "queued" || req.reasons[0] != "manual" {
			t.Fatalf("unexpected body %+v reasons %v", body, req.reasons)
		}
	})

	t.Run("publisher error", func(t *testing.T) {
		srv := newTestServer(t, &fakeReader{}, Options{Requester: &fakeRequester{err: services.ErrNoPublisher}})
		if rr := do(t, srv, http.MethodPost, "/api/refresh"); rr.Code != http.StatusServiceUnavailable {
			t.Fatalf("status=%d, want 503", rr.Code)
		}
	})

	t.Run("rate limited", func(t *testing.T) {
		srv := newTestServer(t, &fakeReader{}, Options{
			Requester:    &fakeRequester{},
			RefreshLimit: ratelimit.Config{Requests: 1, Window: time.Minute},
		})
		do(t, srv, http.MethodPost, "/api/refresh")
		if rr := do(t, srv, http.MethodPost, "/api/refresh"); rr.Code != http.StatusTooManyRequests {
			t.Fatalf("status=%d, want 429", rr.Code)
		}
	})
}

func TestParseForecastParams(t *testing.T) {
	tests := []struct {
		name    string
		query   url.Values
		want    ForecastParams
		wantErr error
	}{
		{"full", url.Values{"month": {" Apr2024 "}, "residents": {"3"}}, ForecastParams{Month: "Apr2024", Residents: 3}, nil},
		{"zero residents", url.Values{"residents": {"0"}}, ForecastParams{}, nil},
		{"missing", url.Values{}, ForecastParams{}, ErrMissingParam},
		{"not a number", url.Values{"residents": {"three"}}, ForecastParams{}, ErrInvalidParam},
		{"control chars stripped", url.Values{"month": {"Apr\x002024"}, "residents": {"1"}}, ForecastParams{Month: "Apr2024", Residents: 1}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseForecastParams(tt.query)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr == nil && got != tt.want {
				t.Fatalf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}
