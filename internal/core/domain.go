package core

import (
	"errors"
	"sort"

	"github.com/shopspring/decimal"
)

// Well-known expense categories. Any other lowercase label found in a sheet
// is carried through as its own category.
const (
	CategoryRent      = "rent"
	CategoryGroceries = "groceries"
)

type (
	// Tab is one worksheet as listed by a raw period source.
	Tab struct {
		SourceID string
		Title    string
	}

	// LabelValue is a category label cell next to its amount cell.
	LabelValue struct {
		Label string
		Value string
	}

	// RawPeriod is the unparsed cell content of one period tab.
	RawPeriod struct {
		SourceID       string
		Label          string
		ExpensePairs   []LabelValue
		ResidentLabels []string
		GroceryCells   []string
	}

	// ExpenseRecord is the normalized row for a single period.
	ExpenseRecord struct {
		Period    Period
		SourceID  string
		Expenses  map[string]decimal.Decimal // lowercase category -> amount
		Missing   []string                   // categories present in the sheet without a parseable amount
		Residents []string
	}

	// Dataset is a collection of records in no particular order.
	Dataset []ExpenseRecord

	// ForecastResult is the synthetic record predicted for a target period.
	ForecastResult struct {
		Period    Period
		Residents int // 0 when the forecast ignores the resident count
		Estimates map[string]decimal.Decimal
		Omitted   []string // categories without any usable value
	}
)

var (
	ErrNotParseable      = errors.New("not parseable")
	ErrInvalidPeriod     = errors.New("invalid period")
	ErrTargetInPast      = errors.New("target period is in the past")
	ErrInvalidResidents  = errors.New("invalid number of residents")
	ErrEmptyDataset      = errors.New("empty dataset")
	ErrOverlappingRanges = errors.New("overlapping grocery ranges")
)

// NumResidents returns the number of residents recorded for the period.
func (r ExpenseRecord) NumResidents() int {
	return len(r.Residents)
}

// Amount returns the amount for a category and whether it is present.
func (r ExpenseRecord) Amount(category string) (decimal.Decimal, bool) {
	d, ok := r.Expenses[category]
	return d, ok
}

// Categories returns the categories of the record, including missing ones, sorted.
func (r ExpenseRecord) Categories() []string {
	seen := make(map[string]struct{}, len(r.Expenses)+len(r.Missing))
	for c := range r.Expenses {
		seen[c] = struct{}{}
	}
	for _, c := range r.Missing {
		seen[c] = struct{}{}
	}
	return sortedKeys(seen)
}

// Categories returns the sorted union of categories over all records.
func (d Dataset) Categories() []string {
	seen := map[string]struct{}{}
	for _, r := range d {
		for c := range r.Expenses {
			seen[c] = struct{}{}
		}
		for _, c := range r.Missing {
			seen[c] = struct{}{}
		}
	}
	return sortedKeys(seen)
}

// SortedByPeriodDesc returns a copy ordered from the most recent period,
// ties broken by source id.
func (d Dataset) SortedByPeriodDesc() Dataset {
	out := make(Dataset, len(d))
	copy(out, d)
	sort.SliceStable(out, func(i, j int) bool {
		if c := out[i].Period.Compare(out[j].Period); c != 0 {
			return c > 0
		}
		return out[i].SourceID < out[j].SourceID
	})
	return out
}

// Latest returns the record with the most recent period.
func (d Dataset) Latest() (ExpenseRecord, bool) {
	if len(d) == 0 {
		return ExpenseRecord{}, false
	}
	return d.SortedByPeriodDesc()[0], true
}

// Categories returns the estimated categories, sorted.
func (f ForecastResult) Categories() []string {
	seen := make(map[string]struct{}, len(f.Estimates))
	for c := range f.Estimates {
		seen[c] = struct{}{}
	}
	return sortedKeys(seen)
}

// Total sums every estimate.
func (f ForecastResult) Total() decimal.Decimal {
	total := decimal.Zero
	for _, v := range f.Estimates {
		total = total.Add(v)
	}
	return total
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
