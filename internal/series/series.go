// Package series expands recurring club fixtures, such as Wednesday evening
// racing, into calendar records.
package series

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	"regattacal/internal/config"
	appLog "regattacal/internal/log"
	"regattacal/internal/model"
	"regattacal/internal/normalize"
)

const defaultMaxPerSeries = 500

// Definition is one recurring fixture.
type Definition struct {
	Name     string
	Location string
	HWT      string
	Colour   string
	// RRule is an RFC 5545 rule, optionally preceded by a DTSTART line:
	//
	//	DTSTART:20260506T180000Z
	//	RRULE:FREQ=WEEKLY;BYDAY=WE;UNTIL=20260826T235959Z
	RRule string
	// Start is the first date (any format the date resolver accepts). It is
	// required when RRule carries no DTSTART.
	Start string
	// ExDates lists dates with no racing.
	ExDates []string
}

// FromConfig converts config entries into definitions.
func FromConfig(entries []config.SeriesConfig) []Definition {
	out := make([]Definition, 0, len(entries))
	for _, e := range entries {
		out = append(out, Definition{
			Name:     e.Name,
			Location: e.Location,
			HWT:      e.HWT,
			Colour:   e.Colour,
			RRule:    e.RRule,
			Start:    e.Start,
			ExDates:  e.ExDates,
		})
	}
	return out
}

// Options bounds an expansion. From and To are inclusive.
type Options struct {
	From time.Time
	To   time.Time
	// MaxPerSeries caps occurrences per definition. Zero means 500.
	MaxPerSeries int
	// Normalizer resolves Start and ExDates, so they follow the configured
	// date order like the sheet does.
	Normalizer normalize.Normalizer
}

// Result holds the expanded records and the names of series that hit the cap.
type Result struct {
	Records   []model.EventRecord
	Truncated []string
	// Skipped names definitions that could not be expanded.
	Skipped []string
}

// Expand turns definitions into records dated within [From, To]. Broken
// definitions are logged and skipped; they never fail the whole expansion.
func Expand(defs []Definition, opts Options) (Result, error) {
	var result Result

	if opts.To.Before(opts.From) {
		return result, errors.New("series: To is before From")
	}
	if opts.MaxPerSeries <= 0 {
		opts.MaxPerSeries = defaultMaxPerSeries
	}

	for _, def := range defs {
		records, hitCap, err := expandOne(def, opts)
		if err != nil {
			appLog.Error("series: skipping definition", err, "name", def.Name, "rrule", def.RRule)
			result.Skipped = append(result.Skipped, def.Name)
			continue
		}
		if hitCap {
			result.Truncated = append(result.Truncated, def.Name)
			appLog.Error("series: truncated occurrences due to cap",
				errors.New("max occurrences reached"),
				"name", def.Name,
				"cap", opts.MaxPerSeries,
			)
		}
		result.Records = append(result.Records, records...)
	}

	normalize.SortByDate(result.Records)
	return result, nil
}

func expandOne(def Definition, opts Options) ([]model.EventRecord, bool, error) {
	name := strings.TrimSpace(def.Name)
	if name == "" {
		return nil, false, errors.New("missing name")
	}

	opt, err := rrule.StrToROption(strings.TrimSpace(def.RRule))
	if err != nil {
		return nil, false, fmt.Errorf("parsing rrule: %w", err)
	}
	if opt.Dtstart.IsZero() {
		iso, ok := opts.Normalizer.ResolveDate(def.Start)
		if !ok {
			return nil, false, fmt.Errorf("rrule has no DTSTART and start %q is not a date", def.Start)
		}
		start, _ := time.Parse(model.ISODate, iso)
		opt.Dtstart = start
	}

	r, err := rrule.NewRRule(*opt)
	if err != nil {
		return nil, false, fmt.Errorf("building rrule: %w", err)
	}

	var set rrule.Set
	set.RRule(r)

	// EXDATE must match an occurrence exactly, so exclusions take the
	// DTSTART time of day.
	dt := opt.Dtstart
	for _, raw := range def.ExDates {
		iso, ok := opts.Normalizer.ResolveDate(raw)
		if !ok {
			appLog.Debug("series: ignoring unparseable exdate", "name", name, "exdate", raw)
			continue
		}
		day, _ := time.Parse(model.ISODate, iso)
		set.ExDate(time.Date(day.Year(), day.Month(), day.Day(), dt.Hour(), dt.Minute(), dt.Second(), 0, dt.Location()))
	}

	times := set.Between(opts.From.In(dt.Location()), opts.To.In(dt.Location()), true)

	hitCap := false
	if len(times) > opts.MaxPerSeries {
		times = times[:opts.MaxPerSeries]
		hitCap = true
	}

	out := make([]model.EventRecord, 0, len(times))
	for _, t := range times {
		out = append(out, model.EventRecord{
			Date:     t.Format(model.ISODate),
			Name:     name,
			Location: strings.TrimSpace(def.Location),
			HWT:      strings.TrimSpace(def.HWT),
			Colour:   strings.TrimSpace(def.Colour),
			Source:   model.SourceSeries,
		})
	}
	return out, hitCap, nil
}
