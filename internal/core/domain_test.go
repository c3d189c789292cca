package core

import (
	"reflect"
	"testing"

	"github.com/shopspring/decimal"
)

func TestDatasetCategoriesIncludesMissing(t *testing.T) {
	ds := Dataset{
		{Period: NewPeriod(2021, 1), Expenses: map[string]decimal.Decimal{"rent": decimal.NewFromInt(1000)}},
		{Period: NewPeriod(2021, 2), Expenses: map[string]decimal.Decimal{"power": decimal.NewFromInt(50)}, Missing: []string{"water"}},
	}
	want := []string{"power", "rent", "water"}
	if got := ds.Categories(); !reflect.DeepEqual(got, want) {
		t.Fatalf("Categories() = %v, want %v", got, want)
	}
}

func TestDatasetSortedByPeriodDesc(t *testing.T) {
	ds := Dataset{
		{Period: NewPeriod(2020, 5), SourceID: "b"},
		{Period: NewPeriod(2021, 1), SourceID: "a"},
		{Period: NewPeriod(2020, 5), SourceID: "a"},
	}
	sorted := ds.SortedByPeriodDesc()
	got := []string{sorted[0].SourceID, sorted[1].SourceID, sorted[2].SourceID}
	if !reflect.DeepEqual(got, []string{"a", "a", "b"}) || sorted[0].Period != NewPeriod(2021, 1) {
		t.Fatalf("unexpected order: %+v", sorted)
	}
	if ds[0].SourceID != "b" {
		t.Fatal("SortedByPeriodDesc must not reorder the receiver")
	}
	latest, ok := ds.Latest()
	if !ok || latest.Period != NewPeriod(2021, 1) {
		t.Fatalf("Latest() = %+v, %v", latest, ok)
	}
}

func TestForecastResultTotal(t *testing.T) {
	f := ForecastResult{Estimates: map[string]decimal.Decimal{
		"rent":  decimal.RequireFromString("1200.50"),
		"power": decimal.RequireFromString("80.25"),
	}}
	if !f.Total().Equal(decimal.RequireFromString("1280.75")) {
		t.Fatalf("Total() = %s", f.Total())
	}
	if got := f.Categories(); !reflect.DeepEqual(got, []string{"power", "rent"}) {
		t.Fatalf("Categories() = %v", got)
	}
}
