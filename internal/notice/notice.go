// Package notice builds the Notice of Race / Sailing Instructions board: one
// entry per event with the document to view or download, when there is one.
package notice

import (
	"sort"
	"strings"

	"regattacal/internal/calendar"
	"regattacal/internal/model"
	"regattacal/internal/normalize"
	"regattacal/internal/textsim"
)

// MatchThreshold is the lowest similarity accepted for a fuzzy directory match.
const MatchThreshold = 0.6

// How a document was found.
const (
	MatchRecord  = "record"
	MatchExact   = "exact"
	MatchUpper   = "upper"
	MatchSimilar = "similar"
)

// Directory maps a club code or location to its document URL.
type Directory map[string]string

// Item is one entry on the board.
type Item struct {
	ID          string `json:"id"`
	Date        string `json:"date"`
	Title       string `json:"title"`
	Name        string `json:"name"`
	Location    string `json:"location,omitempty"`
	Caption     string `json:"caption"`
	HWT         string `json:"hwt,omitempty"`
	DocumentURL string `json:"documentUrl,omitempty"`
	Available   bool   `json:"available"`
	Match       string `json:"match,omitempty"`
}

// Build lists records chronologically with their resolved documents. The
// input slice is not modified.
func Build(records []model.EventRecord, docs Directory) []Item {
	sorted := make([]model.EventRecord, len(records))
	copy(sorted, records)
	normalize.SortByDate(sorted)

	ids := model.UniqueIDs(sorted)
	items := make([]Item, 0, len(sorted))
	for i, r := range sorted {
		url, how := docs.Resolve(r)
		items = append(items, Item{
			ID:          ids[i],
			Date:        r.Date,
			Title:       r.Name + " - " + calendar.FormatOrdinal(r.Date),
			Name:        r.Name,
			Location:    r.Location,
			Caption:     r.Caption(),
			HWT:         r.HWT,
			DocumentURL: url,
			Available:   url != "",
			Match:       how,
		})
	}
	return items
}

// Resolve finds the document for r:
//
//  1. the record's own DocumentURL
//  2. a directory key equal to the location, then to the name
//  3. the same keys upper-cased
//  4. the directory key most similar to the location or name, if it scores
//     at least MatchThreshold
//
// It returns "" when nothing matches.
func (d Directory) Resolve(r model.EventRecord) (url, how string) {
	if r.DocumentURL != "" {
		return r.DocumentURL, MatchRecord
	}
	if len(d) == 0 {
		return "", ""
	}

	keys := nonEmpty(r.Location, r.Name)
	for _, k := range keys {
		if u := d[k]; u != "" {
			return u, MatchExact
		}
	}
	for _, k := range keys {
		if u := d[strings.ToUpper(k)]; u != "" {
			return u, MatchUpper
		}
	}

	names := make([]string, 0, len(d))
	for k := range d {
		names = append(names, k)
	}
	sort.Strings(names)

	bestKey, bestScore := "", 0.0
	for _, k := range keys {
		if key, score := textsim.Best(k, names); score > bestScore {
			bestKey, bestScore = key, score
		}
	}
	if bestScore >= MatchThreshold {
		return d[bestKey], MatchSimilar
	}
	return "", ""
}

func nonEmpty(values ...string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
