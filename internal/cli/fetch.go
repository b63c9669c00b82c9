package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"regattacal/internal/config"
	"regattacal/internal/fallback"
	appLog "regattacal/internal/log"
	"regattacal/internal/normalize"
	"regattacal/internal/sheet"
)

// sourceFlags selects where a one-shot command reads CSV from.
type sourceFlags struct {
	url       string
	file      string
	dateOrder string
}

func (f *sourceFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.url, "url", "", "Sheet share link or CSV URL (defaults to the configured events sheet)")
	cmd.Flags().StringVar(&f.file, "file", "", "Read CSV from a local file instead of fetching")
	cmd.Flags().StringVar(&f.dateOrder, "date-order", "", "Ambiguous date order override: mdy or dmy")
	cmd.MarkFlagsMutuallyExclusive("url", "file")
}

// read returns the CSV text and a label for it. Fetches bypass the disk cache
// so the output always reflects the live sheet.
func (f *sourceFlags) read(ctx context.Context, cfg *config.Config) (text, label string, fromCache bool, err error) {
	if f.file != "" {
		b, err := os.ReadFile(f.file)
		if err != nil {
			return "", "", false, fmt.Errorf("reading %s: %w", f.file, err)
		}
		return string(b), f.file, false, nil
	}

	src := eventSource(cfg)
	if f.url != "" {
		src = sheet.Source{ID: "cli", URL: sheet.ExportURL(f.url)}
	}
	if src.URL == "" {
		return "", "", false, errors.New("no events source: pass --url or --file, or set events.url in the config")
	}

	res, err := sheet.NewFetcher("", cfg.FetchTimeout).Fetch(ctx, src)
	if err != nil {
		return "", "", false, fmt.Errorf("fetching events: %w", err)
	}
	return string(res.Body), appLog.RedactURL(src.URL), res.FromCache, nil
}

func (f *sourceFlags) normalizer(cfg *config.Config) normalize.Normalizer {
	order := cfg.DateOrder
	if f.dateOrder != "" {
		order = f.dateOrder
	}
	return normalize.Normalizer{DateOrder: normalize.ParseDateOrder(order)}
}

func newFetchCmd(root *rootOptions) *cobra.Command {
	var (
		src     sourceFlags
		format  string
		verbose bool
	)

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch and normalize the events sheet once and print the result",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, err := ParseFormat(format)
			if err != nil {
				return err
			}
			cfg, err := root.load(false, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if verbose {
				appLog.SetLevel(appLog.LevelDebug)
			}

			text, label, fromCache, err := src.read(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			records, stats := src.normalizer(cfg).Parse(text)

			return WriteOutput(cmd.OutOrStdout(), &FetchResult{
				Source:    label,
				FetchedAt: time.Now().UTC(),
				FromCache: fromCache,
				Records:   records,
				Stats:     stats,
			}, out, verbose)
		},
	}

	src.register(cmd)
	cmd.Flags().StringVar(&format, "format", "text", "Output format: text or json")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "Show record IDs, documents and debug logging")
	return cmd
}

func newImportCmd(root *rootOptions) *cobra.Command {
	var (
		src sourceFlags
		out string
	)

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Write the fallback events file from the sheet or a CSV file",
		Long: `Normalizes the events sheet (or a local CSV export) and writes it in the
fallback events format. The file is served when the sheet is unreachable.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.load(false, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if out == "" {
				out = cfg.FallbackFile
			}
			if out == "" {
				return errors.New("no output path: pass --out or set fallback_file in the config")
			}

			text, label, _, err := src.read(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			records, stats := src.normalizer(cfg).Parse(text)
			if len(records) == 0 {
				return fmt.Errorf("no events in %s; refusing to write an empty fallback file", label)
			}
			if err := fallback.Write(out, records); err != nil {
				return fmt.Errorf("writing %s: %w", out, err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d events to %s (%d rows dropped)\n", len(records), out, stats.Dropped())
			return nil
		},
	}

	src.register(cmd)
	cmd.Flags().StringVar(&out, "out", "", "Output path (defaults to fallback_file from the config)")
	return cmd
}
