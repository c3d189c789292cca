package core

import (
	"fmt"
	"sort"
)

// MonthRange is the half-open interval [Start, End) of periods.
type MonthRange struct {
	Start Period
	End   Period
}

// Contains reports whether p lies in the range, start inclusive and end exclusive.
func (r MonthRange) Contains(p Period) bool {
	return !p.Before(r.Start) && p.Before(r.End)
}

// Overlaps reports whether the two ranges share at least one period.
func (r MonthRange) Overlaps(o MonthRange) bool {
	return r.Start.Before(o.End) && o.Start.Before(r.End)
}

func (r MonthRange) String() string {
	return fmt.Sprintf("[%s, %s)", r.Start, r.End)
}

// GroceryLocationRule points at the grocery cells of every tab whose period
// falls in Range.
type GroceryLocationRule struct {
	Range MonthRange
	A1    string
}

// Layout describes where the figures live in each period tab. It is static
// configuration built once at startup.
type Layout struct {
	ExpensesA1  string
	ResidentsA1 string
	Grocery     []GroceryLocationRule
	// RentSplit holds tab ids whose rent cell is a per-resident share.
	RentSplit map[string]struct{}
	// Excluded holds raw tab titles that are never processed.
	Excluded map[string]struct{}
}

// DefaultLayout returns the layout of the household spreadsheet. The grocery
// cell moved several times over the years.
func DefaultLayout() Layout {
	return Layout{
		ExpensesA1:  "A2:B6",
		ResidentsA1: "B1:E1",
		Grocery: []GroceryLocationRule{
			{Range: MonthRange{Start: NewPeriod(2020, 3), End: NewPeriod(2020, 8)}, A1: "B7:D7"},
			{Range: MonthRange{Start: NewPeriod(2020, 9), End: NewPeriod(2021, 2)}, A1: "F7"},
			{Range: MonthRange{Start: NewPeriod(2021, 2), End: NewPeriod(2021, 3)}, A1: "M7"},
			{Range: MonthRange{Start: NewPeriod(2021, 3), End: NewPeriod(2021, 4)}, A1: "F7"},
			{Range: MonthRange{Start: NewPeriod(2021, 4), End: NewPeriod(2021, 5)}, A1: "M2"},
			{Range: MonthRange{Start: NewPeriod(2021, 8), End: NewPeriod(2022, 5)}, A1: "L2"},
			{Range: MonthRange{Start: NewPeriod(2022, 5), End: NewPeriod(2022, 9)}, A1: "D7"},
			{Range: MonthRange{Start: NewPeriod(2022, 10), End: NewPeriod(2035, 1)}, A1: "E7"},
		},
		RentSplit: newSet("2064860783", "944604678", "74019485"),
		Excluded:  newSet("Aug2020", "Sept2022"),
	}
}

// GroceryA1 returns the grocery cell range for the period, if any rule applies.
func (l Layout) GroceryA1(p Period) (string, bool) {
	for _, rule := range l.Grocery {
		if rule.Range.Contains(p) {
			return rule.A1, true
		}
	}
	return "", false
}

// SplitsRent reports whether the tab records rent per resident.
func (l Layout) SplitsRent(sourceID string) bool {
	_, ok := l.RentSplit[sourceID]
	return ok
}

// IsExcluded reports whether a raw tab title is excluded from processing.
func (l Layout) IsExcluded(label string) bool {
	_, ok := l.Excluded[label]
	return ok
}

// Validate checks the static tables. Overlapping grocery ranges would make
// the lookup ambiguous and are rejected.
func (l Layout) Validate() error {
	if l.ExpensesA1 == "" {
		return fmt.Errorf("layout: expenses range is empty")
	}
	if l.ResidentsA1 == "" {
		return fmt.Errorf("layout: residents range is empty")
	}
	rules := make([]GroceryLocationRule, len(l.Grocery))
	copy(rules, l.Grocery)
	for _, r := range rules {
		if !r.Range.Start.Valid() || !r.Range.End.Valid() || !r.Range.Start.Before(r.Range.End) {
			return fmt.Errorf("layout: invalid grocery range %s", r.Range)
		}
		if r.A1 == "" {
			return fmt.Errorf("layout: grocery range %s has no cell location", r.Range)
		}
	}
	sort.Slice(rules, func(i, j int) bool { return rules[i].Range.Start.Before(rules[j].Range.Start) })
	for i := 1; i < len(rules); i++ {
		if rules[i-1].Range.Overlaps(rules[i].Range) {
			return fmt.Errorf("%w: %s and %s", ErrOverlappingRanges, rules[i-1].Range, rules[i].Range)
		}
	}
	return nil
}

func newSet(values ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}
