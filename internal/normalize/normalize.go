package normalize

import (
	"encoding/csv"
	"errors"
	"io"
	"sort"
	"strings"

	appLog "regattacal/internal/log"
	"regattacal/internal/model"
)

// Canonical fields and the header synonyms accepted for each, in priority
// order. Header names are compared after trimming and lowercasing.
var synonyms = map[string][]string{
	"date":     {"date", "day", "event date", "start date"},
	"name":     {"name", "event", "title"},
	"location": {"location", "club"},
	"hwt":      {"hwt", "time"},
	"tide":     {"tide"},
	"document": {"pdfurl", "pdf url", "si", "url"},
	"colour":   {"colour", "color"},
}

// positional is the column layout assumed for sheets without a header row.
var positional = []string{"date", "name", "location", "hwt", "tide", "document"}

// Stats summarises a single Parse call. Dropped rows are never errors; they
// are only counted here.
type Stats struct {
	Rows           int    `json:"rows"`
	Kept           int    `json:"kept"`
	MissingName    int    `json:"missing_name"`
	UnresolvedDate int    `json:"unresolved_date"`
	Positional     bool   `json:"positional"`
	ReadError      string `json:"read_error,omitempty"`
}

// Dropped is the number of rows that did not become records.
func (s Stats) Dropped() int {
	return s.MissingName + s.UnresolvedDate
}

// Normalizer turns spreadsheet CSV exports into event records. The zero value
// is ready to use and resolves ambiguous dates month-first.
type Normalizer struct {
	DateOrder DateOrder
}

// Parse normalizes CSV text with the default Normalizer.
func Parse(text string) ([]model.EventRecord, Stats) {
	return Normalizer{}.Parse(text)
}

// Parse converts CSV text into records sorted by date (stable).
//
//   - The first row is taken as a header unless there are no data rows after
//     it or its first cell looks like a date; in that case every row is data
//     and columns map positionally to date, name, location, hwt, tide, url.
//   - Header names are matched through synonyms (see synonyms).
//   - Rows without a resolvable date or a name are dropped and counted.
//
// Parse holds no state between calls.
func (n Normalizer) Parse(text string) ([]model.EventRecord, Stats) {
	var stats Stats

	rows, err := readRows(text)
	if err != nil {
		// Keep whatever was read before the malformed line.
		stats.ReadError = err.Error()
		appLog.Error("csv read stopped early", err, "rows_read", len(rows))
	}

	if len(rows) == 1 && n.isHeaderOnly(firstCell(rows)) {
		return []model.EventRecord{}, stats
	}

	var fields []map[string]string
	if len(rows) < 2 || looksLikeDate(firstCell(rows)) {
		stats.Positional = true
		fields = mapPositional(rows)
	} else {
		fields = mapByHeader(rows[0], rows[1:])
	}

	out := make([]model.EventRecord, 0, len(fields))
	for i, f := range fields {
		stats.Rows++

		name := f["name"]
		if name == "" {
			stats.MissingName++
			appLog.Debug("row dropped: missing name", "row", i+1)
			continue
		}
		iso, ok := n.ResolveDate(f["date"])
		if !ok {
			stats.UnresolvedDate++
			appLog.Debug("row dropped: unresolved date", "row", i+1, "date", f["date"], "name", name)
			continue
		}

		out = append(out, model.EventRecord{
			Date:        iso,
			Name:        name,
			Location:    f["location"],
			HWT:         f["hwt"],
			Tide:        f["tide"],
			DocumentURL: f["document"],
			Colour:      f["colour"],
		})
	}
	stats.Kept = len(out)

	SortByDate(out)
	return out, stats
}

// SortByDate orders records by ISO date, keeping the relative order of
// records that share a date. ISO dates compare correctly as strings.
func SortByDate(records []model.EventRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Date < records[j].Date
	})
}

// readRows reads every CSV record. Blank lines are skipped by encoding/csv;
// ragged rows and stray quotes are tolerated. On a syntax error the rows read
// so far are returned with the error.
func readRows(text string) ([][]string, error) {
	text = strings.TrimPrefix(text, "\ufeff")

	r := csv.NewReader(strings.NewReader(text))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var rows [][]string
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return rows, err
		}
		rows = append(rows, rec)
	}
}

// isHeaderOnly reports whether the first cell of a lone row is a column name
// rather than a date, i.e. the sheet has a header and no data rows.
func (n Normalizer) isHeaderOnly(cell string) bool {
	if looksLikeDate(cell) {
		return false
	}
	_, ok := n.ResolveDate(cell)
	return !ok
}

func firstCell(rows [][]string) string {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return ""
	}
	return rows[0][0]
}

func mapPositional(rows [][]string) []map[string]string {
	out := make([]map[string]string, 0, len(rows))
	for _, row := range rows {
		f := make(map[string]string, len(positional))
		for i, key := range positional {
			if i < len(row) {
				f[key] = strings.TrimSpace(row[i])
			}
		}
		out = append(out, f)
	}
	return out
}

func mapByHeader(header []string, rows [][]string) []map[string]string {
	// Column indexes per normalized header name. Duplicate names keep every
	// index so the first non-empty cell wins.
	columns := make(map[string][]int, len(header))
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(h))
		columns[key] = append(columns[key], i)
	}

	out := make([]map[string]string, 0, len(rows))
	for _, row := range rows {
		f := make(map[string]string, len(synonyms))
		for field, names := range synonyms {
			f[field] = lookup(row, columns, names)
		}
		out = append(out, f)
	}
	return out
}

// lookup returns the first non-empty trimmed cell among the given header
// names, in priority order.
func lookup(row []string, columns map[string][]int, names []string) string {
	for _, name := range names {
		for _, idx := range columns[name] {
			if idx >= len(row) {
				continue
			}
			if v := strings.TrimSpace(row[idx]); v != "" {
				return v
			}
		}
	}
	return ""
}
