package calendar

import (
	"io"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"regattacal/internal/model"
)

// ICSOptions controls the exported feed.
type ICSOptions struct {
	// Name is shown by calendar clients (X-WR-CALNAME).
	Name string
	// Timezone is advertised as X-WR-TIMEZONE when set.
	Timezone string
	// Now stamps DTSTAMP. Zero means time.Now.
	Now time.Time
}

// WriteICS writes records as all-day VEVENTs. The UID is the record ID, so a
// re-export of the same sheet yields the same UIDs. Duplicate rows get
// suffixed UIDs (see model.UniqueIDs) and are all written.
func WriteICS(w io.Writer, records []model.EventRecord, opts ICSOptions) error {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	cal := ical.NewCalendarFor("regattacal")
	cal.SetMethod(ical.MethodPublish)
	if opts.Name != "" {
		cal.SetXWRCalName(opts.Name)
	}
	if opts.Timezone != "" {
		cal.SetXWRTimezone(opts.Timezone)
	}

	uids := model.UniqueIDs(records)
	for i, r := range records {
		start := r.Time()
		if start.IsZero() {
			continue
		}

		ev := cal.AddEvent(uids[i])
		ev.SetDtStampTime(now)
		ev.SetAllDayStartAt(start)
		ev.SetAllDayEndAt(start.AddDate(0, 0, 1))
		ev.SetSummary(r.Name)
		if r.Location != "" {
			ev.SetLocation(r.Location)
		}
		if desc := describe(r); desc != "" {
			ev.SetDescription(desc)
		}
		if isAbsoluteURL(r.DocumentURL) {
			ev.SetURL(r.DocumentURL)
		}
	}

	return cal.SerializeTo(w)
}

// describe is the event body: "HWT: 12:30" plus the document link.
func describe(r model.EventRecord) string {
	var parts []string
	if r.HWT != "" {
		parts = append(parts, r.Caption()+": "+r.HWT)
	}
	if r.DocumentURL != "" {
		parts = append(parts, "Sailing instructions: "+r.DocumentURL)
	}
	return strings.Join(parts, "\n")
}

func isAbsoluteURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
