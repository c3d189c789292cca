package dataset

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"budget/internal/core"
	applog "budget/internal/log"
	"budget/internal/sheets"

	"golang.org/x/sync/errgroup"
)

// Config holds configuration for the assembler worker pool
type Config struct {
	// Workers bounds the number of concurrent fetches (default: 8)
	Workers int

	// TaskTimeout bounds a single fetch and build (default: 30s)
	TaskTimeout time.Duration
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Workers:     8,
		TaskTimeout: 30 * time.Second,
	}
}

// Failure describes a tab that could not be fetched.
type Failure struct {
	SourceID string
	Label    string
	Err      error
}

func (f Failure) Error() string {
	return fmt.Sprintf("tab %q (%s): %v", f.Label, f.SourceID, f.Err)
}

func (f Failure) Unwrap() error { return f.Err }

// Report summarizes one assembly run.
type Report struct {
	Requested  int
	Excluded   []string // labels skipped by the layout exclusion list
	Skipped    []string // labels that are not periods
	Built      int
	Failures   []Failure
	Duplicates []core.Period
	Duration   time.Duration
}

// Err joins every failure into a single error, or nil when none occurred.
func (r *Report) Err() error {
	if r == nil || len(r.Failures) == 0 {
		return nil
	}
	errs := make([]error, len(r.Failures))
	for i, f := range r.Failures {
		errs[i] = f
	}
	return errors.Join(errs...)
}

// Assembler fans tab fetches out to a bounded pool and collects the records.
type Assembler struct {
	layout  core.Layout
	builder *Builder
	fetcher sheets.PeriodFetcher
	config  Config
	logger  *applog.Logger
}

// NewAssembler creates a new assembler. fetcher may be nil when only
// AssembleRaw is used.
func NewAssembler(layout core.Layout, fetcher sheets.PeriodFetcher, config Config) *Assembler {
	def := DefaultConfig()
	if config.Workers <= 0 {
		config.Workers = def.Workers
	}
	if config.TaskTimeout <= 0 {
		config.TaskTimeout = def.TaskTimeout
	}
	return &Assembler{
		layout:  layout,
		builder: NewBuilder(layout),
		fetcher: fetcher,
		config:  config,
		logger:  applog.ForComponent(applog.ComponentAssembler),
	}
}

// accumulator is the single merge point for concurrent tasks.
type accumulator struct {
	mu       sync.Mutex
	records  core.Dataset
	failures []Failure
}

func (a *accumulator) add(rec core.ExpenseRecord) {
	a.mu.Lock()
	a.records = append(a.records, rec)
	a.mu.Unlock()
}

func (a *accumulator) fail(f Failure) {
	a.mu.Lock()
	a.failures = append(a.failures, f)
	a.mu.Unlock()
}

// Assemble fetches and builds every tab. Failed tabs are reported, not
// returned as an error; the error is non-nil only when ctx is cancelled.
func (a *Assembler) Assemble(ctx context.Context, tabs []core.Tab) (core.Dataset, *Report, error) {
	if a.fetcher == nil {
		return nil, nil, fmt.Errorf("assembler has no period fetcher")
	}
	return a.run(ctx, len(tabs), func(i int) (string, string) {
		return tabs[i].SourceID, tabs[i].Title
	}, func(ctx context.Context, i int) (core.RawPeriod, error) {
		return a.fetcher.FetchPeriod(ctx, tabs[i])
	})
}

// AssembleRaw runs the same pipeline over already fetched tabs.
func (a *Assembler) AssembleRaw(ctx context.Context, raws []core.RawPeriod) (core.Dataset, *Report, error) {
	return a.run(ctx, len(raws), func(i int) (string, string) {
		return raws[i].SourceID, raws[i].Label
	}, func(_ context.Context, i int) (core.RawPeriod, error) {
		return raws[i], nil
	})
}

func (a *Assembler) run(
	ctx context.Context,
	n int,
	identify func(int) (string, string),
	fetch func(context.Context, int) (core.RawPeriod, error),
) (core.Dataset, *Report, error) {
	start := time.Now()
	report := &Report{Requested: n}
	acc := &accumulator{}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.config.Workers)

	for i := 0; i < n; i++ {
		sourceID, label := identify(i)
		if a.layout.IsExcluded(label) {
			report.Excluded = append(report.Excluded, label)
			continue
		}
		// Titles that are not periods never reach the source.
		if _, ok := core.ParsePeriodAt(label, a.builder.now()); !ok {
			report.Skipped = append(report.Skipped, label)
			continue
		}

		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			taskCtx, cancel := context.WithTimeout(gctx, a.config.TaskTimeout)
			defer cancel()

			raw, err := fetch(taskCtx, i)
			if err != nil {
				acc.fail(Failure{SourceID: sourceID, Label: label, Err: err})
				a.logger.WarnContext(ctx, "Failed to fetch period",
					applog.FieldSourceID, sourceID,
					applog.FieldLabel, label,
					applog.FieldError, err)
				return nil
			}
			if raw.SourceID == "" {
				raw.SourceID = sourceID
			}
			if raw.Label == "" {
				raw.Label = label
			}
			rec, ok := a.builder.Build(raw)
			if !ok {
				return nil
			}
			acc.add(rec)
			return nil
		})
	}

	// Tasks never return errors, so Wait only synchronizes.
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, nil, fmt.Errorf("assembly cancelled: %w", err)
	}

	sort.Slice(acc.failures, func(i, j int) bool {
		return acc.failures[i].SourceID < acc.failures[j].SourceID
	})
	report.Failures = acc.failures
	report.Built = len(acc.records)
	report.Duplicates = duplicates(acc.records)
	report.Duration = time.Since(start)

	for _, p := range report.Duplicates {
		a.logger.WarnContext(ctx, "Duplicate period in dataset", applog.FieldPeriod, p.String())
	}
	if len(report.Failures) > 0 {
		a.logger.WarnContext(ctx, "Assembly completed with failures",
			applog.FieldFailures, len(report.Failures),
			applog.FieldError, report.Err())
	}
	a.logger.InfoContext(ctx, "Assembled dataset",
		applog.FieldPeriods, report.Built,
		"requested", report.Requested,
		"excluded", len(report.Excluded),
		"skipped", len(report.Skipped),
		"duration", report.Duration)

	return acc.records, report, nil
}

func duplicates(ds core.Dataset) []core.Period {
	counts := make(map[core.Period]int, len(ds))
	for _, r := range ds {
		counts[r.Period]++
	}
	var out []core.Period
	for p, c := range counts {
		if c > 1 {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}
