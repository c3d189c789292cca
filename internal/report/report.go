// Package report renders datasets, forecasts and category histories as
// aligned text tables for the command line.
package report

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"budget/internal/core"
	"budget/internal/storage"
)

const (
	// missingCell marks a category present in the sheet without a usable amount.
	missingCell = "-"
	minWidth    = 4
	padding     = 2
)

func newWriter(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, minWidth, 0, padding, ' ', 0)
}

func row(cells ...string) string {
	return strings.Join(cells, "\t") + "\t\n"
}

// Dataset writes one row per period, most recent first.
func Dataset(w io.Writer, ds core.Dataset) error {
	categories := ds.Categories()
	tw := newWriter(w)

	header := append([]string{"PERIOD", "SOURCE", "RESIDENTS"}, upper(categories)...)
	fmt.Fprint(tw, row(header...))

	for _, r := range ds.SortedByPeriodDesc() {
		missing := make(map[string]struct{}, len(r.Missing))
		for _, c := range r.Missing {
			missing[c] = struct{}{}
		}
		cells := []string{r.Period.String(), r.SourceID, strconv.Itoa(r.NumResidents())}
		for _, c := range categories {
			if v, ok := r.Amount(c); ok {
				cells = append(cells, core.FormatMoney(v))
			} else if _, ok := missing[c]; ok {
				cells = append(cells, missingCell)
			} else {
				cells = append(cells, "")
			}
		}
		fmt.Fprint(tw, row(cells...))
	}
	return tw.Flush()
}

// Forecast writes one row per estimated category followed by the total.
func Forecast(w io.Writer, f core.ForecastResult) error {
	residents := "any"
	if f.Residents > 0 {
		residents = strconv.Itoa(f.Residents)
	}
	if _, err := fmt.Fprintf(w, "Estimate for %s (residents: %s)\n", f.Period, residents); err != nil {
		return err
	}

	tw := newWriter(w)
	fmt.Fprint(tw, row("CATEGORY", "AMOUNT"))
	for _, c := range f.Categories() {
		fmt.Fprint(tw, row(c, core.FormatMoney(f.Estimates[c])))
	}
	fmt.Fprint(tw, row("total", core.FormatMoney(f.Total())))
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(f.Omitted) > 0 {
		_, err := fmt.Fprintf(w, "No usable data for: %s\n", strings.Join(f.Omitted, ", "))
		return err
	}
	return nil
}

// History writes a month by year pivot of one category.
func History(w io.Writer, category string, points []storage.HistoryPoint) error {
	if _, err := fmt.Fprintf(w, "Monthly %s costs:\n", category); err != nil {
		return err
	}

	cells := make(map[core.Period]string, len(points))
	years := map[int]struct{}{}
	for _, p := range points {
		years[p.Period.Year] = struct{}{}
		if p.Present {
			cells[p.Period] = core.FormatMoney(p.Amount)
		} else {
			cells[p.Period] = missingCell
		}
	}
	sortedYears := make([]int, 0, len(years))
	for y := range years {
		sortedYears = append(sortedYears, y)
	}
	sort.Ints(sortedYears)

	tw := newWriter(w)
	header := []string{"MONTH"}
	for _, y := range sortedYears {
		header = append(header, strconv.Itoa(y))
	}
	fmt.Fprint(tw, row(header...))

	for month := 1; month <= 12; month++ {
		line := []string{monthName(month)}
		seen := false
		for _, y := range sortedYears {
			v, ok := cells[core.NewPeriod(y, month)]
			seen = seen || ok
			line = append(line, v)
		}
		if seen {
			fmt.Fprint(tw, row(line...))
		}
	}
	return tw.Flush()
}

// monthName returns the three-letter name used in period labels.
func monthName(month int) string {
	label := core.NewPeriod(2000, month).String()
	name, _, _ := strings.Cut(label, " ")
	return name
}

func upper(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strings.ToUpper(v)
	}
	return out
}
