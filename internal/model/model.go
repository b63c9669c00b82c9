package model

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ISODate is the canonical layout for EventRecord.Date.
const ISODate = "2006-01-02"

// Record sources.
const (
	SourceSheet    = "sheet"
	SourceFallback = "fallback"
	SourceSeries   = "series"
)

// recordNamespace scopes the name-based UUIDs produced by EventRecord.ID.
var recordNamespace = uuid.MustParse("6f1d2c3a-8b5e-4c71-9a0d-2f6e4b8c1d37")

// EventRecord is a single regatta calendar entry after normalization.
//
// Date and Name are always set. Optional fields are empty when the source
// had nothing for them; omitempty keeps them off the wire so consumers can
// tell "absent" from a value.
type EventRecord struct {
	Date        string `json:"date"`
	Name        string `json:"name"`
	Location    string `json:"location,omitempty"`
	HWT         string `json:"hwt,omitempty"`
	Tide        string `json:"tide,omitempty"`
	DocumentURL string `json:"documentUrl,omitempty"`
	Colour      string `json:"colour,omitempty"`
	Source      string `json:"source,omitempty"`
}

// ID returns a deterministic identifier derived from every field that tells
// two events apart: date, name, location, tide time, tide and document. The
// same row fetched twice yields the same ID.
func (e EventRecord) ID() string {
	key := strings.Join([]string{
		e.Date,
		fold(e.Name),
		fold(e.Location),
		fold(e.HWT),
		fold(e.Tide),
		strings.TrimSpace(e.DocumentURL),
	}, "|")
	return uuid.NewSHA1(recordNamespace, []byte(key)).String()
}

func fold(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// UniqueIDs returns one ID per record, in order. Records that still share an
// ID (duplicate rows) get a "-2", "-3", ... suffix on each repeat so none of
// them is lost downstream.
func UniqueIDs(records []EventRecord) []string {
	ids := make([]string, len(records))
	seen := make(map[string]int, len(records))
	for i, r := range records {
		id := r.ID()
		seen[id]++
		if n := seen[id]; n > 1 {
			id = id + "-" + strconv.Itoa(n)
		}
		ids[i] = id
	}
	return ids
}

// HasDocument reports whether a sailing-instructions document is available.
func (e EventRecord) HasDocument() bool {
	return e.DocumentURL != ""
}

// Caption is the label shown next to HWT: the tide label when present.
func (e EventRecord) Caption() string {
	if e.Tide != "" {
		return e.Tide
	}
	return "HWT"
}

// Time returns Date as midnight UTC. The zero time is returned when Date is
// not in ISO form.
func (e EventRecord) Time() time.Time {
	t, err := time.Parse(ISODate, e.Date)
	if err != nil {
		return time.Time{}
	}
	return t
}
