package normalize

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"regattacal/internal/model"
)

// DateOrder is the tie-break used when an A/B/YYYY date is valid either way
// round (both parts <= 12).
type DateOrder int

const (
	// MonthFirst reads 03/04/2026 as 4 March.
	MonthFirst DateOrder = iota
	// DayFirst reads 03/04/2026 as 3 April.
	DayFirst
)

// ParseDateOrder maps the config values "mdy" and "dmy" to a DateOrder.
// Anything else is MonthFirst.
func ParseDateOrder(s string) DateOrder {
	if strings.EqualFold(strings.TrimSpace(s), "dmy") {
		return DayFirst
	}
	return MonthFirst
}

func (o DateOrder) String() string {
	if o == DayFirst {
		return "dmy"
	}
	return "mdy"
}

var (
	isoPattern     = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	serialPattern  = regexp.MustCompile(`^\d+(?:\.\d+)?$`)
	ordinalPattern = regexp.MustCompile(`(?i)(\d{1,2})(st|nd|rd|th)\b`)
	numericPattern = regexp.MustCompile(`^(\d{1,2})[/.-](\d{1,2})[/.-](\d{4})$`)
)

// serialEpoch is day zero of spreadsheet serial dates. Dec 30 rather than
// Dec 31 absorbs the fictitious 1900-02-29 that Lotus and Excel count.
var serialEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

// maxSerial is 9999-12-31.
const maxSerial = 2958465

// freeFormLayouts is tried before handing a string to dateparse. These are
// the shapes the association's sheets actually use.
var freeFormLayouts = []string{
	"2 January 2006",
	"2 Jan 2006",
	"January 2 2006",
	"January 2, 2006",
	"Jan 2 2006",
	"Jan 2, 2006",
	"Monday 2 January 2006",
	"Monday, 2 January 2006",
	"Mon 2 Jan 2006",
	"Mon, 2 Jan 2006",
	"Monday, January 2, 2006",
	"Mon, Jan 2, 2006",
	"2006/01/02",
	"2006/1/2",
}

// ResolveDate converts a raw date cell into ISO YYYY-MM-DD using the default
// month-first tie-break. It reports false when no rule applies.
func ResolveDate(raw string) (string, bool) {
	return Normalizer{}.ResolveDate(raw)
}

// ResolveDate converts a raw date cell into ISO YYYY-MM-DD. Rules are tried
// in order and the first success wins:
//
//  1. already YYYY-MM-DD (and a real calendar date)
//  2. spreadsheet serial number, fraction truncated
//  3. free-form text after stripping ordinal suffixes ("1st June 2026")
//  4. A/B/YYYY or A-B-YYYY with day/month disambiguation
//
// Strings shaped like rule 4 skip rule 3 so that the disambiguation below
// stays in charge of them.
func (n Normalizer) ResolveDate(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", false
	}

	if isoPattern.MatchString(s) {
		if _, err := time.Parse(model.ISODate, s); err != nil {
			return "", false
		}
		return s, true
	}

	if serialPattern.MatchString(s) {
		return fromSerial(s)
	}

	s = ordinalPattern.ReplaceAllString(s, "$1")
	s = strings.Join(strings.Fields(s), " ")

	if m := numericPattern.FindStringSubmatch(s); m != nil {
		return fromNumeric(m, n.DateOrder)
	}

	if t, ok := parseFreeForm(s, n.DateOrder); ok {
		return t.Format(model.ISODate), true
	}

	return "", false
}

func fromSerial(s string) (string, bool) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) {
		return "", false
	}
	days := math.Floor(f)
	if days > maxSerial {
		return "", false
	}
	return serialEpoch.AddDate(0, 0, int(days)).Format(model.ISODate), true
}

// parseFreeForm covers everything the numeric path does not. order still
// matters here for shapes like 2-digit years ("09/05/26").
func parseFreeForm(s string, order DateOrder) (time.Time, bool) {
	for _, layout := range freeFormLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}

	t, err := dateparse.ParseIn(s, time.UTC, dateparse.PreferMonthFirst(order == MonthFirst))
	if err != nil {
		return time.Time{}, false
	}
	// dateparse happily returns year 0 for inputs without a year.
	if t.Year() < 1000 || t.Year() > 9999 {
		return time.Time{}, false
	}
	return t, true
}

// fromNumeric applies the A/B/YYYY disambiguation:
//   - A > 12 and B <= 12: A is the day
//   - B > 12 and A <= 12: B is the day
//   - otherwise the preferred order first, then the other one
func fromNumeric(m []string, order DateOrder) (string, bool) {
	a, _ := strconv.Atoi(m[1])
	b, _ := strconv.Atoi(m[2])
	year, _ := strconv.Atoi(m[3])

	if a > 12 && b <= 12 {
		return buildISO(year, b, a)
	}
	if b > 12 && a <= 12 {
		return buildISO(year, a, b)
	}

	first, second := [2]int{a, b}, [2]int{b, a}
	if order == DayFirst {
		first, second = second, first
	}
	if iso, ok := buildISO(year, first[0], first[1]); ok {
		return iso, true
	}
	return buildISO(year, second[0], second[1])
}

// buildISO returns the ISO form of year/month/day if that date exists, i.e.
// time.Date does not have to normalize it.
func buildISO(year, month, day int) (string, bool) {
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return "", false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || int(t.Month()) != month || t.Day() != day {
		return "", false
	}
	return t.Format(model.ISODate), true
}

var headerDatePattern = regexp.MustCompile(`(?i)^(\d{1,2}(st|nd|rd|th)?\s+\w+\s+\d{4}|\d{4}-\d{2}-\d{2})`)

// looksLikeDate reports whether a header token is really the first cell of a
// data row.
func looksLikeDate(token string) bool {
	token = strings.TrimSpace(token)
	return headerDatePattern.MatchString(token) || numericPattern.MatchString(token)
}
