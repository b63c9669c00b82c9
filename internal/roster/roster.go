// Package roster holds the competitor list: a generic header CSV sheet that
// can be searched, sorted, paged and merged across tabs.
package roster

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// SheetColumn names the origin tab of each row after Merge.
const SheetColumn = "Sheet"

// Row maps header names to cell values.
type Row map[string]string

// Table is a parsed sheet. Headers keep sheet order.
type Table struct {
	Headers []string `json:"headers"`
	Rows    []Row    `json:"rows"`
}

// NamedTable is a Table together with the name of the tab it came from.
type NamedTable struct {
	Name  string
	Table Table
}

// Parse reads header CSV. Blank lines and rows whose cells are all empty are
// skipped; short rows leave the missing cells empty. Blank header cells are
// named "Column N" and duplicates get a "_1", "_2" suffix.
func Parse(text string) (Table, error) {
	r := csv.NewReader(strings.NewReader(strings.TrimPrefix(text, "\ufeff")))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return Table{Headers: []string{}, Rows: []Row{}}, nil
	}
	if err != nil {
		return Table{}, fmt.Errorf("reading header: %w", err)
	}

	t := Table{Headers: uniqueHeaders(header), Rows: []Row{}}
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return t, fmt.Errorf("reading row %d: %w", len(t.Rows)+2, err)
		}
		if allBlank(rec) {
			continue
		}
		row := make(Row, len(t.Headers))
		for i, h := range t.Headers {
			if i < len(rec) {
				row[h] = rec[i]
			} else {
				row[h] = ""
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

func uniqueHeaders(raw []string) []string {
	out := make([]string, 0, len(raw))
	seen := make(map[string]int, len(raw))
	for i, h := range raw {
		h = strings.TrimSpace(h)
		if h == "" {
			h = fmt.Sprintf("Column %d", i+1)
		}
		name := h
		if n := seen[h]; n > 0 {
			name = fmt.Sprintf("%s_%d", h, n)
		}
		seen[h]++
		out = append(out, name)
	}
	return out
}

func allBlank(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// Merge unions several tabs into one table. Headers are taken in first-seen
// order, then SheetColumn is appended and set on every row.
func Merge(tabs []NamedTable) Table {
	out := Table{Headers: []string{}, Rows: []Row{}}
	seen := make(map[string]bool)
	for _, tab := range tabs {
		for _, h := range tab.Table.Headers {
			if !seen[h] {
				seen[h] = true
				out.Headers = append(out.Headers, h)
			}
		}
	}
	if !seen[SheetColumn] {
		out.Headers = append(out.Headers, SheetColumn)
	}

	for _, tab := range tabs {
		for _, row := range tab.Table.Rows {
			cp := make(Row, len(row)+1)
			for k, v := range row {
				cp[k] = v
			}
			cp[SheetColumn] = tab.Name
			out.Rows = append(out.Rows, cp)
		}
	}
	return out
}

// Filter keeps rows where any header's cell contains q, ignoring case. An
// empty query keeps everything.
func (t Table) Filter(q string) Table {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return t
	}
	out := Table{Headers: t.Headers, Rows: []Row{}}
	for _, row := range t.Rows {
		for _, h := range t.Headers {
			if strings.Contains(strings.ToLower(row[h]), q) {
				out.Rows = append(out.Rows, row)
				break
			}
		}
	}
	return out
}

// Sort orders rows by col. When both cells hold a number (after dropping
// everything but digits, '.' and '-') they compare numerically; otherwise
// they compare as case-insensitive text. Equal rows keep their order. An
// empty col returns t unchanged.
func (t Table) Sort(col string, desc bool) Table {
	if col == "" {
		return t
	}
	rows := make([]Row, len(t.Rows))
	copy(rows, t.Rows)

	sort.SliceStable(rows, func(i, j int) bool {
		c := compareCells(rows[i][col], rows[j][col])
		if desc {
			return c > 0
		}
		return c < 0
	})
	return Table{Headers: t.Headers, Rows: rows}
}

var (
	nonNumeric    = regexp.MustCompile(`[^0-9.\-]`)
	leadingNumber = regexp.MustCompile(`^-?(\d+\.?\d*|\.\d+)`)
)

// numericValue reads the leading number of s once everything but digits, '.'
// and '-' has been removed. "12 pts" is 12, "1.2.3" is 1.2, "DNF" is not a
// number.
func numericValue(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	m := leadingNumber.FindString(nonNumeric.ReplaceAllString(s, ""))
	if m == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSuffix(m, "."), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func compareCells(a, b string) int {
	na, aok := numericValue(a)
	nb, bok := numericValue(b)
	if aok && bok {
		switch {
		case na < nb:
			return -1
		case na > nb:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(strings.ToLower(strings.TrimSpace(a)), strings.ToLower(strings.TrimSpace(b)))
}
