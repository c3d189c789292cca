// Package dataset turns raw period tabs into a normalized expense dataset.
package dataset

import (
	"slices"
	"strings"
	"time"

	"budget/internal/core"

	"github.com/shopspring/decimal"
)

// Builder converts the raw cells of one period tab into an ExpenseRecord.
type Builder struct {
	layout core.Layout
	now    func() time.Time
}

// NewBuilder returns a builder applying the given layout rules.
func NewBuilder(layout core.Layout) *Builder {
	return &Builder{layout: layout, now: time.Now}
}

// Build normalizes raw. It returns false when the tab label is not a period,
// in which case the tab must be dropped silently.
func (b *Builder) Build(raw core.RawPeriod) (core.ExpenseRecord, bool) {
	period, ok := core.ParsePeriodAt(raw.Label, b.now())
	if !ok {
		return core.ExpenseRecord{}, false
	}

	rec := core.ExpenseRecord{
		Period:    period,
		SourceID:  raw.SourceID,
		Expenses:  make(map[string]decimal.Decimal, len(raw.ExpensePairs)+1),
		Residents: residents(raw.ResidentLabels),
	}

	missing := map[string]bool{}
	for _, pair := range raw.ExpensePairs {
		category := strings.ToLower(strings.TrimSpace(pair.Label))
		if category == "" {
			continue
		}
		// Later cells win, as they would in a row-wise dict update.
		if amount, ok := core.ParseMoney(pair.Value); ok {
			rec.Expenses[category] = amount
			delete(missing, category)
		} else {
			delete(rec.Expenses, category)
			missing[category] = true
		}
	}

	if b.layout.SplitsRent(raw.SourceID) {
		if rent, ok := rec.Expenses[core.CategoryRent]; ok {
			rec.Expenses[core.CategoryRent] = rent.Mul(decimal.NewFromInt(int64(rec.NumResidents())))
		}
	}

	if _, ok := b.layout.GroceryA1(period); ok {
		if total, ok := sumMoney(raw.GroceryCells); ok {
			rec.Expenses[core.CategoryGroceries] = total
			delete(missing, core.CategoryGroceries)
		} else if _, present := rec.Expenses[core.CategoryGroceries]; !present {
			missing[core.CategoryGroceries] = true
		}
	}

	for category := range missing {
		rec.Missing = append(rec.Missing, category)
	}
	slices.Sort(rec.Missing)
	return rec, true
}

func residents(labels []string) []string {
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		out = append(out, l)
	}
	return out
}

// sumMoney adds every parseable cell. It reports false when no cell parses.
func sumMoney(cells []string) (decimal.Decimal, bool) {
	total := decimal.Zero
	parsed := 0
	for _, c := range cells {
		if v, ok := core.ParseMoney(c); ok {
			total = total.Add(v)
			parsed++
		}
	}
	return total, parsed > 0
}
