// Package fallback serves a static events file when the events sheet cannot
// be fetched. The file uses the same JSON layout the calendar site bundled:
//
//	[{"date": "2026-07-12", "name": "Spring Series", "location": "Quoile",
//	  "hwt": "11:00", "tide": "HWT", "pdfUrl": "/pdfs/foo.pdf"}]
package fallback

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	appLog "regattacal/internal/log"
	"regattacal/internal/model"
	"regattacal/internal/normalize"
)

//go:embed data/events.json
var bundled []byte

// entry is one object of the events file. documentUrl and color are read as
// aliases of pdfUrl and colour.
type entry struct {
	Date        string `json:"date"`
	Name        string `json:"name"`
	Location    string `json:"location,omitempty"`
	HWT         string `json:"hwt,omitempty"`
	Tide        string `json:"tide,omitempty"`
	PdfURL      string `json:"pdfUrl,omitempty"`
	DocumentURL string `json:"documentUrl,omitempty"`
	Colour      string `json:"colour,omitempty"`
	Color       string `json:"color,omitempty"`
}

// JSONFile reads events from Path, or from the bundled file when Path is
// empty. The zero value serves the bundled events.
type JSONFile struct {
	Path      string
	DateOrder normalize.DateOrder
}

// Events loads, normalizes and sorts the file's events. Entries without a name
// or a resolvable date are dropped.
func (f JSONFile) Events(ctx context.Context) ([]model.EventRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data := bundled
	if f.Path != "" {
		b, err := os.ReadFile(f.Path)
		if err != nil {
			return nil, fmt.Errorf("reading fallback events: %w", err)
		}
		data = b
	}

	records, err := f.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("parsing fallback events %s: %w", f.describe(), err)
	}
	return records, nil
}

// Decode converts the JSON array in data into records.
func (f JSONFile) Decode(data []byte) ([]model.EventRecord, error) {
	var entries []entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}

	n := normalize.Normalizer{DateOrder: f.DateOrder}
	out := make([]model.EventRecord, 0, len(entries))
	for i, e := range entries {
		name := strings.TrimSpace(e.Name)
		iso, ok := n.ResolveDate(e.Date)
		if name == "" || !ok {
			appLog.Debug("fallback entry dropped", "index", i, "date", e.Date, "name", e.Name)
			continue
		}
		out = append(out, model.EventRecord{
			Date:        iso,
			Name:        name,
			Location:    strings.TrimSpace(e.Location),
			HWT:         strings.TrimSpace(e.HWT),
			Tide:        strings.TrimSpace(e.Tide),
			DocumentURL: firstNonEmpty(e.PdfURL, e.DocumentURL),
			Colour:      firstNonEmpty(e.Colour, e.Color),
			Source:      model.SourceFallback,
		})
	}
	normalize.SortByDate(out)
	return out, nil
}

func (f JSONFile) describe() string {
	if f.Path == "" {
		return "(bundled)"
	}
	return f.Path
}

// Write stores records at path in the events file layout. The file is
// replaced atomically.
func Write(path string, records []model.EventRecord) error {
	if path == "" {
		return errors.New("fallback path is empty")
	}

	entries := make([]entry, 0, len(records))
	for _, r := range records {
		entries = append(entries, entry{
			Date:     r.Date,
			Name:     r.Name,
			Location: r.Location,
			HWT:      r.HWT,
			Tide:     r.Tide,
			PdfURL:   r.DocumentURL,
			Colour:   r.Colour,
		})
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding events: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".events-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
