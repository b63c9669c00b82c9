package calendar

import (
	"strings"
	"time"

	"regattacal/internal/model"
)

// Day is one cell of a month grid.
type Day struct {
	Date    string              `json:"date"`
	Day     int                 `json:"day"`
	Events  []model.EventRecord `json:"events"`
	Today   bool                `json:"today,omitempty"`
	Weekend bool                `json:"weekend,omitempty"`
}

// Grid is a month laid out in weeks of seven cells. Blank cells before the
// first and after the last day of the month are nil.
type Grid struct {
	Month    string   `json:"month"`
	Label    string   `json:"label"`
	Weekdays []string `json:"weekdays"`
	Weeks    [][]*Day `json:"weeks"`
	Prev     string   `json:"prev,omitempty"`
	Next     string   `json:"next,omitempty"`
}

// ParseWeekStart maps the config value "sunday" to time.Sunday; anything else
// is Monday.
func ParseWeekStart(s string) time.Weekday {
	if strings.EqualFold(strings.TrimSpace(s), "sunday") {
		return time.Sunday
	}
	return time.Monday
}

// Month lays out ym with weeks starting on weekStart. today is compared by
// calendar date only, in its own location.
func Month(ym YearMonth, weekStart time.Weekday, ix *Index, today time.Time) Grid {
	first := ym.First()
	daysInMonth := first.AddDate(0, 1, -1).Day()
	todayKey := ""
	if !today.IsZero() {
		todayKey = today.Format(model.ISODate)
	}

	g := Grid{
		Month:    ym.String(),
		Label:    ym.Label(),
		Weekdays: weekdayNames(weekStart),
	}

	lead := (int(first.Weekday()) - int(weekStart) + 7) % 7
	week := make([]*Day, 0, 7)
	for i := 0; i < lead; i++ {
		week = append(week, nil)
	}

	for d := 1; d <= daysInMonth; d++ {
		date := time.Date(ym.Year, ym.Month, d, 0, 0, 0, 0, time.UTC)
		key := date.Format(model.ISODate)
		wd := date.Weekday()

		week = append(week, &Day{
			Date:    key,
			Day:     d,
			Events:  ix.On(key),
			Today:   key == todayKey,
			Weekend: wd == time.Saturday || wd == time.Sunday,
		})
		if len(week) == 7 {
			g.Weeks = append(g.Weeks, week)
			week = make([]*Day, 0, 7)
		}
	}

	if len(week) > 0 {
		for len(week) < 7 {
			week = append(week, nil)
		}
		g.Weeks = append(g.Weeks, week)
	}

	return g
}

// MonthInSeason is Month plus prev/next links bounded by the season.
func MonthInSeason(ym YearMonth, s Season, weekStart time.Weekday, ix *Index, today time.Time) Grid {
	g := Month(ym, weekStart, ix, today)
	if p, ok := s.Prev(ym); ok {
		g.Prev = p.String()
	}
	if n, ok := s.Next(ym); ok {
		g.Next = n.String()
	}
	return g
}

func weekdayNames(start time.Weekday) []string {
	out := make([]string, 7)
	for i := range out {
		out[i] = time.Weekday((int(start) + i) % 7).String()[:3]
	}
	return out
}
