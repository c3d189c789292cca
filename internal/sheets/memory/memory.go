// Package memory is an in-process raw period source, optionally seeded from a
// JSON file. It backs offline use and tests.
package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"budget/internal/core"
	ports "budget/internal/sheets"
)

// SeedFile is the file NewFromDir looks for.
const SeedFile = "periods.json"

type Store struct {
	mu    sync.Mutex
	order []string
	raws  map[string]core.RawPeriod
	fail  map[string]error
}

var _ ports.Source = (*Store)(nil)

// seedPeriod is the JSON shape of one tab in the seed file.
type seedPeriod struct {
	SourceID  string            `json:"source_id"`
	Label     string            `json:"label"`
	Expenses  []core.LabelValue `json:"expenses"`
	Residents []string          `json:"residents"`
	Groceries []string          `json:"groceries,omitempty"`
}

func New(raws ...core.RawPeriod) *Store {
	s := &Store{raws: map[string]core.RawPeriod{}, fail: map[string]error{}}
	for _, r := range raws {
		s.Add(r)
	}
	return s
}

// NewFromDir loads base/periods.json. A missing file yields an empty store.
func NewFromDir(base string) (*Store, error) {
	return NewFromFile(filepath.Join(base, SeedFile))
}

// NewFromFile loads a JSON array of periods. A missing file yields an empty store.
func NewFromFile(path string) (*Store, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var seed []seedPeriod
	if err := json.Unmarshal(b, &seed); err != nil {
		return nil, fmt.Errorf("parse seed file %s: %w", path, err)
	}
	s := New()
	for i, p := range seed {
		id := p.SourceID
		if id == "" {
			id = fmt.Sprintf("mem:%d", i+1)
		}
		s.Add(core.RawPeriod{
			SourceID:       id,
			Label:          p.Label,
			ExpensePairs:   p.Expenses,
			ResidentLabels: p.Residents,
			GroceryCells:   p.Groceries,
		})
	}
	return s, nil
}

// Add stores or replaces a tab.
func (s *Store) Add(raw core.RawPeriod) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.raws[raw.SourceID]; !ok {
		s.order = append(s.order, raw.SourceID)
	}
	s.raws[raw.SourceID] = raw
}

// Fail makes every fetch of sourceID return err. A nil err clears it.
func (s *Store) Fail(sourceID string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.fail, sourceID)
		return
	}
	s.fail[sourceID] = err
}

// ListTabs returns the tabs in insertion order.
func (s *Store) ListTabs(_ context.Context) ([]core.Tab, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tabs := make([]core.Tab, 0, len(s.order))
	for _, id := range s.order {
		tabs = append(tabs, core.Tab{SourceID: id, Title: s.raws[id].Label})
	}
	return tabs, nil
}

func (s *Store) FetchPeriod(ctx context.Context, tab core.Tab) (core.RawPeriod, error) {
	if err := ctx.Err(); err != nil {
		return core.RawPeriod{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail[tab.SourceID]; err != nil {
		return core.RawPeriod{}, err
	}
	raw, ok := s.raws[tab.SourceID]
	if !ok {
		return core.RawPeriod{}, fmt.Errorf("%w: %s", ports.ErrTabNotFound, tab.SourceID)
	}
	return raw, nil
}

// Raws returns a snapshot of every stored tab in insertion order.
func (s *Store) Raws() []core.RawPeriod {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.RawPeriod, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.raws[id])
	}
	return out
}
