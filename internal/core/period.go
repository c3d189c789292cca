package core

import (
	"fmt"
	"strings"
	"time"
	"unicode"
)

// Period identifies one billing month.
type Period struct {
	Year  int
	Month int // 1-12
}

var monthNames = [12]string{
	"january", "february", "march", "april", "may", "june",
	"july", "august", "september", "october", "november", "december",
}

// NewPeriod returns the period for the given year and month.
func NewPeriod(year, month int) Period {
	return Period{Year: year, Month: month}
}

// PeriodOf returns the period containing t.
func PeriodOf(t time.Time) Period {
	return Period{Year: t.Year(), Month: int(t.Month())}
}

// Valid reports whether the month is within 1..12 and the year is positive.
func (p Period) Valid() bool {
	return p.Year > 0 && p.Month >= 1 && p.Month <= 12
}

// Time returns midnight UTC on the first day of the period.
func (p Period) Time() time.Time {
	return time.Date(p.Year, time.Month(p.Month), 1, 0, 0, 0, 0, time.UTC)
}

// Compare returns -1, 0 or +1 depending on whether p is before, equal to or after o.
func (p Period) Compare(o Period) int {
	switch {
	case p.Year < o.Year:
		return -1
	case p.Year > o.Year:
		return 1
	case p.Month < o.Month:
		return -1
	case p.Month > o.Month:
		return 1
	}
	return 0
}

func (p Period) Before(o Period) bool { return p.Compare(o) < 0 }

func (p Period) After(o Period) bool { return p.Compare(o) > 0 }

// String formats the period as "Jan 2020".
func (p Period) String() string {
	if !p.Valid() {
		return fmt.Sprintf("%04d-%02d", p.Year, p.Month)
	}
	name := monthNames[p.Month-1]
	return fmt.Sprintf("%s %d", strings.ToUpper(name[:1])+name[1:3], p.Year)
}

// Key formats the period as "2020-01", suitable for sorting and map keys.
func (p Period) Key() string {
	return fmt.Sprintf("%04d-%02d", p.Year, p.Month)
}

// ParsePeriod parses a sheet title or user supplied month label.
// See ParsePeriodAt.
func ParsePeriod(label string) (Period, bool) {
	return ParsePeriodAt(label, time.Now())
}

// ParsePeriodAt parses labels such as "Apr2020", "April 2020", "apr" or
// "APRIL". Whitespace is ignored and matching is case-insensitive. Forms
// without a year resolve to the year of now.
//
// The forms are tried in order: abbreviated month with year, full month with
// year, abbreviated month alone, full month alone. The year must be exactly
// four digits.
func ParsePeriodAt(label string, now time.Time) (Period, bool) {
	s := strings.ToLower(stripSpace(label))
	if s == "" {
		return Period{}, false
	}

	for _, full := range []bool{false, true} {
		if month, rest, ok := matchMonth(s, full); ok {
			if year, ok := parseYear(rest); ok {
				return Period{Year: year, Month: month}, true
			}
		}
	}
	for _, full := range []bool{false, true} {
		if month, rest, ok := matchMonth(s, full); ok && rest == "" {
			return Period{Year: now.Year(), Month: month}, true
		}
	}
	return Period{}, false
}

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

// matchMonth matches a leading month token and returns the remainder.
func matchMonth(s string, full bool) (int, string, bool) {
	for i, name := range monthNames {
		token := name
		if !full {
			token = name[:3]
		}
		if strings.HasPrefix(s, token) {
			return i + 1, s[len(token):], true
		}
	}
	return 0, "", false
}

func parseYear(s string) (int, bool) {
	if len(s) != 4 {
		return 0, false
	}
	year := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return 0, false
		}
		year = year*10 + int(c-'0')
	}
	if year == 0 {
		return 0, false
	}
	return year, true
}
