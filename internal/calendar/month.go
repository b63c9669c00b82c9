package calendar

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"regattacal/internal/config"
)

// YearMonth is a calendar month, formatted "2026-07".
type YearMonth struct {
	Year  int
	Month time.Month
}

var yearMonthPattern = regexp.MustCompile(`^(\d{4})-(\d{1,2})$`)

// ParseYearMonth parses "YYYY-MM".
func ParseYearMonth(s string) (YearMonth, bool) {
	m := yearMonthPattern.FindStringSubmatch(s)
	if m == nil {
		return YearMonth{}, false
	}
	y, _ := strconv.Atoi(m[1])
	mo, _ := strconv.Atoi(m[2])
	if mo < 1 || mo > 12 {
		return YearMonth{}, false
	}
	return YearMonth{Year: y, Month: time.Month(mo)}, true
}

func (ym YearMonth) String() string {
	return fmt.Sprintf("%04d-%02d", ym.Year, int(ym.Month))
}

// Label is the display form, e.g. "July 2026".
func (ym YearMonth) Label() string {
	return fmt.Sprintf("%s %d", ym.Month, ym.Year)
}

// AddMonths moves n months forward (or back when negative).
func (ym YearMonth) AddMonths(n int) YearMonth {
	t := time.Date(ym.Year, ym.Month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, n, 0)
	return YearMonth{Year: t.Year(), Month: t.Month()}
}

// Before reports whether ym is earlier than other.
func (ym YearMonth) Before(other YearMonth) bool {
	if ym.Year != other.Year {
		return ym.Year < other.Year
	}
	return ym.Month < other.Month
}

// First returns midnight UTC on the first day of the month.
func (ym YearMonth) First() time.Time {
	return time.Date(ym.Year, ym.Month, 1, 0, 0, 0, 0, time.UTC)
}

// Season is the range of months the calendar can show.
type Season struct {
	First   YearMonth
	Last    YearMonth
	Default YearMonth
}

// SeasonFromConfig reads the season block. Malformed or inverted bounds fall
// back to the calendar year of the default month.
func SeasonFromConfig(c config.SeasonConfig) Season {
	def, ok := ParseYearMonth(c.Default)
	if !ok {
		def = YearMonth{Year: 2026, Month: time.April}
	}
	first, ok := ParseYearMonth(c.First)
	if !ok {
		first = YearMonth{Year: def.Year, Month: time.January}
	}
	last, ok := ParseYearMonth(c.Last)
	if !ok {
		last = YearMonth{Year: def.Year, Month: time.December}
	}
	if last.Before(first) {
		first, last = last, first
	}
	s := Season{First: first, Last: last}
	s.Default = s.Clamp(def)
	return s
}

// Clamp pulls ym into the season.
func (s Season) Clamp(ym YearMonth) YearMonth {
	if ym.Before(s.First) {
		return s.First
	}
	if s.Last.Before(ym) {
		return s.Last
	}
	return ym
}

// ParseMonth resolves a month query parameter: empty or malformed input
// selects the season default, anything else is clamped to the season.
func ParseMonth(raw string, s Season) YearMonth {
	ym, ok := ParseYearMonth(raw)
	if !ok {
		return s.Default
	}
	return s.Clamp(ym)
}

// Prev returns the previous month if it is still in season.
func (s Season) Prev(ym YearMonth) (YearMonth, bool) {
	p := ym.AddMonths(-1)
	if p.Before(s.First) {
		return YearMonth{}, false
	}
	return p, true
}

// Next returns the following month if it is still in season.
func (s Season) Next(ym YearMonth) (YearMonth, bool) {
	n := ym.AddMonths(1)
	if s.Last.Before(n) {
		return YearMonth{}, false
	}
	return n, true
}
