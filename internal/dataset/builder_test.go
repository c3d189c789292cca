package dataset

import (
	"testing"
	"time"

	"budget/internal/core"

	"github.com/shopspring/decimal"
)

func newTestBuilder() *Builder {
	b := NewBuilder(core.DefaultLayout())
	b.now = func() time.Time { return time.Date(2023, 6, 15, 0, 0, 0, 0, time.UTC) }
	return b
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestBuildSkipsNonPeriodLabels(t *testing.T) {
	b := newTestBuilder()
	for _, label := range []string{"Summary", "", "Sept2022", "feb202020"} {
		if _, ok := b.Build(core.RawPeriod{SourceID: "1", Label: label}); ok {
			t.Errorf("Build(%q) should skip", label)
		}
	}
}

func TestBuildRentSplit(t *testing.T) {
	b := newTestBuilder()
	raw := core.RawPeriod{
		SourceID:       "2064860783",
		Label:          "Jan2019",
		ExpensePairs:   []core.LabelValue{{Label: "Rent", Value: "$1,000.00"}},
		ResidentLabels: []string{"A", "B", "C", "D"},
	}
	rec, ok := b.Build(raw)
	if !ok {
		t.Fatal("expected record")
	}
	if got := rec.Expenses[core.CategoryRent]; !got.Equal(dec("4000")) {
		t.Fatalf("rent = %s, want 4000", got)
	}
	if rec.NumResidents() != 4 {
		t.Fatalf("residents = %d, want 4", rec.NumResidents())
	}

	raw.SourceID = "123"
	rec, _ = b.Build(raw)
	if got := rec.Expenses[core.CategoryRent]; !got.Equal(dec("1000")) {
		t.Fatalf("rent without split = %s, want 1000", got)
	}
}

func TestBuildNormalizesCategories(t *testing.T) {
	b := newTestBuilder()
	rec, ok := b.Build(core.RawPeriod{
		SourceID: "9",
		Label:    " Dec 2021 ",
		ExpensePairs: []core.LabelValue{
			{Label: "  Electric ", Value: "$80.12"},
			{Label: "Water", Value: "n/a"},
			{Label: "", Value: "$12"},
			{Label: "Internet", Value: "60"},
		},
		ResidentLabels: []string{"Ann", " ", "", "Bo"},
	})
	if !ok {
		t.Fatal("expected record")
	}
	if rec.Period != core.NewPeriod(2021, 12) {
		t.Fatalf("period = %v", rec.Period)
	}
	if got := rec.Expenses["electric"]; !got.Equal(dec("80.12")) {
		t.Fatalf("electric = %s", got)
	}
	if _, ok := rec.Expenses["water"]; ok {
		t.Fatal("unparseable water must not be an amount")
	}
	if len(rec.Missing) != 1 || rec.Missing[0] != "water" {
		t.Fatalf("missing = %v, want [water]", rec.Missing)
	}
	if len(rec.Expenses) != 2 {
		t.Fatalf("expenses = %v", rec.Expenses)
	}
	if rec.NumResidents() != 2 {
		t.Fatalf("residents = %v", rec.Residents)
	}
}

func TestBuildGroceries(t *testing.T) {
	b := newTestBuilder()
	cases := []struct {
		name    string
		label   string
		cells   []string
		want    string
		missing bool
		absent  bool
	}{
		{"summed cells", "Apr2020", []string{"$10.50", "$20", "abc"}, "30.50", false, false},
		{"single cell", "Nov2022", []string{"$300"}, "300", false, false},
		{"no parseable cell", "Nov2022", []string{"", "x"}, "", true, false},
		{"no rule for period", "Jun2021", []string{"$99"}, "", false, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, ok := b.Build(core.RawPeriod{SourceID: "1", Label: tc.label, GroceryCells: tc.cells})
			if !ok {
				t.Fatal("expected record")
			}
			got, present := rec.Expenses[core.CategoryGroceries]
			switch {
			case tc.absent:
				if present || len(rec.Missing) != 0 {
					t.Fatalf("groceries should be omitted, got %s missing=%v", got, rec.Missing)
				}
			case tc.missing:
				if present || len(rec.Missing) != 1 || rec.Missing[0] != core.CategoryGroceries {
					t.Fatalf("groceries should be missing, got %s missing=%v", got, rec.Missing)
				}
			default:
				if !present || !got.Equal(dec(tc.want)) {
					t.Fatalf("groceries = %s, want %s", got, tc.want)
				}
			}
		})
	}
}
