// Package calendar groups event records by day and renders them as month
// grids and iCalendar feeds.
package calendar

import (
	"sort"

	"regattacal/internal/model"
)

// Index maps ISO dates to the records on that date. Records keep the order
// in which they were added.
type Index struct {
	byDate map[string][]model.EventRecord
	dates  []string
}

// Group builds an Index. Records without a date are ignored.
func Group(records []model.EventRecord) *Index {
	ix := &Index{byDate: make(map[string][]model.EventRecord)}
	for _, r := range records {
		if r.Date == "" {
			continue
		}
		if _, ok := ix.byDate[r.Date]; !ok {
			ix.dates = append(ix.dates, r.Date)
		}
		ix.byDate[r.Date] = append(ix.byDate[r.Date], r)
	}
	sort.Strings(ix.dates)
	return ix
}

// Dates returns every date with at least one record, ascending.
func (ix *Index) Dates() []string {
	if ix == nil {
		return nil
	}
	out := make([]string, len(ix.dates))
	copy(out, ix.dates)
	return out
}

// On returns the records on date, or nil.
func (ix *Index) On(date string) []model.EventRecord {
	if ix == nil {
		return nil
	}
	recs := ix.byDate[date]
	if len(recs) == 0 {
		return nil
	}
	out := make([]model.EventRecord, len(recs))
	copy(out, recs)
	return out
}

// Len is the number of distinct dates.
func (ix *Index) Len() int {
	if ix == nil {
		return 0
	}
	return len(ix.dates)
}

// Map returns a copy of the index as a plain map, e.g. for JSON output.
func (ix *Index) Map() map[string][]model.EventRecord {
	out := make(map[string][]model.EventRecord)
	if ix == nil {
		return out
	}
	for _, d := range ix.dates {
		out[d] = ix.On(d)
	}
	return out
}

// Between returns the records dated within [from, to] in date order. Empty
// bounds are open.
func (ix *Index) Between(from, to string) []model.EventRecord {
	if ix == nil {
		return nil
	}
	var out []model.EventRecord
	for _, d := range ix.dates {
		if from != "" && d < from {
			continue
		}
		if to != "" && d > to {
			break
		}
		out = append(out, ix.byDate[d]...)
	}
	return out
}
