package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"regattacal/internal/model"
	"regattacal/internal/normalize"
)

// OutputFormat specifies the output format.
type OutputFormat string

const (
	FormatText OutputFormat = "text"
	FormatJSON OutputFormat = "json"
)

// ParseFormat validates a --format value.
func ParseFormat(s string) (OutputFormat, error) {
	f := OutputFormat(strings.ToLower(strings.TrimSpace(s)))
	if f != FormatText && f != FormatJSON {
		return "", fmt.Errorf("invalid format: %s (must be 'text' or 'json')", s)
	}
	return f, nil
}

// FetchResult is one normalization pass.
type FetchResult struct {
	Source    string              `json:"source"`
	FetchedAt time.Time           `json:"fetched_at"`
	FromCache bool                `json:"from_cache,omitempty"`
	Records   []model.EventRecord `json:"records"`
	Stats     normalize.Stats     `json:"stats"`
}

// WriteOutput writes the result in the specified format.
func WriteOutput(w io.Writer, result *FetchResult, format OutputFormat, verbose bool) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, result)
	case FormatText:
		return writeText(w, result, verbose)
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

func writeJSON(w io.Writer, result *FetchResult) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

func writeText(w io.Writer, result *FetchResult, verbose bool) error {
	if len(result.Records) == 0 {
		fmt.Fprintln(w, "No events found.")
	} else {
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		for _, r := range result.Records {
			hwt := ""
			if r.HWT != "" {
				hwt = r.Caption() + " " + r.HWT
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Date, r.Name, r.Location, hwt)
			if verbose {
				fmt.Fprintf(tw, "\t  ID: %s\t\t\n", r.ID())
				if r.DocumentURL != "" {
					fmt.Fprintf(tw, "\t  SI: %s\t\t\n", r.DocumentURL)
				}
			}
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	s := result.Stats
	fmt.Fprintf(w, "\nTotal: %d events from %d rows", s.Kept, s.Rows)
	if s.Dropped() > 0 {
		fmt.Fprintf(w, ", %d dropped (%d without a name, %d with an unresolved date)",
			s.Dropped(), s.MissingName, s.UnresolvedDate)
	}
	fmt.Fprintln(w)
	if verbose {
		layout := "header"
		if s.Positional {
			layout = "positional"
		}
		fmt.Fprintf(w, "Source: %s (%s columns)\n", result.Source, layout)
		if s.ReadError != "" {
			fmt.Fprintf(w, "Read error: %s\n", s.ReadError)
		}
	}
	return nil
}
