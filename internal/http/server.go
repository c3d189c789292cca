package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"budget/internal/cache"
	"budget/internal/core"
	"budget/internal/middleware/ratelimit"
	"budget/internal/middleware/security"
	"budget/internal/middleware/trace"
	"budget/internal/storage"
)

// DatasetReader answers the read queries of the API.
type DatasetReader interface {
	ParseTarget(label string) (core.Period, error)
	Forecast(ctx context.Context, target core.Period, residents int) (core.ForecastResult, error)
	Dataset(ctx context.Context) (core.Dataset, error)
	History(ctx context.Context, category string) ([]storage.HistoryPoint, error)
	LastRefresh(ctx context.Context) (storage.RefreshRun, bool, error)
}

// RefreshRequester queues an asynchronous dataset refresh.
type RefreshRequester interface {
	RequestRefresh(ctx context.Context, reason string) (string, error)
}

// Pinger reports whether the dataset store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options configures optional collaborators and tuning of the server.
type Options struct {
	// Requester enables POST /api/refresh when set.
	Requester RefreshRequester
	// Pinger backs /readyz when set.
	Pinger Pinger

	CacheSize       int
	CacheTTL        time.Duration
	CleanupInterval time.Duration
	RefreshLimit    ratelimit.Config
}

func (o *Options) applyDefaults() {
	if o.CacheSize <= 0 {
		o.CacheSize = 128
	}
	if o.CacheTTL <= 0 {
		o.CacheTTL = 10 * time.Minute
	}
	if o.CleanupInterval <= 0 {
		o.CleanupInterval = 10 * time.Minute
	}
}

type Server struct {
	http.Server
	reader    DatasetReader
	requester RefreshRequester
	pinger    Pinger
	now       func() time.Time

	// Forecasts are cached per target, residents and refresh run.
	forecastCache *cache.LRUCache[core.ForecastResult]
	tracer        *trace.Middleware
	limiter       *ratelimit.Limiter

	stopBackground context.CancelFunc
	shutdownOnce   sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, reader DatasetReader, opts Options) *Server {
	opts.applyDefaults()

	ipResolver := security.NewClientIPResolver()
	mux := http.NewServeMux()

	s := &Server{
		reader:        reader,
		requester:     opts.Requester,
		pinger:        opts.Pinger,
		now:           time.Now,
		forecastCache: cache.NewLRUCache[core.ForecastResult](opts.CacheSize, opts.CacheTTL),
		tracer:        trace.NewMiddleware(ipResolver.ClientIP),
		limiter:       ratelimit.NewLimiter(opts.RefreshLimit),
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /api/dataset", s.handleDataset)
	mux.HandleFunc("GET /api/forecast", s.handleForecast)
	mux.HandleFunc("GET /api/history", s.handleHistory)
	mux.HandleFunc("GET /api/refresh/last", s.handleLastRefresh)
	mux.Handle("POST /api/refresh", s.limiter.Middleware(ipResolver.ClientIP, s.handleRateLimited)(
		http.HandlerFunc(s.handleRequestRefresh)))

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.tracer.Middleware(headers.Middleware(mux)),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.stopBackground = cancel
	go cache.NewJanitor(s.forecastCache).Run(ctx, opts.CleanupInterval)
	go s.limiter.Run(ctx, opts.CleanupInterval)

	return s
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.stopBackground()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// InvalidateForecasts drops every cached forecast.
func (s *Server) InvalidateForecasts() {
	s.forecastCache.Purge()
}

// CacheStats exposes the forecast cache counters.
func (s *Server) CacheStats() cache.Stats {
	return s.forecastCache.Stats()
}
