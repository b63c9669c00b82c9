package cli

import (
	"io"

	"github.com/spf13/cobra"

	"regattacal/internal/calendar"
	"regattacal/internal/config"
	"regattacal/internal/fallback"
	"regattacal/internal/feed"
	appLog "regattacal/internal/log"
	"regattacal/internal/normalize"
	"regattacal/internal/roster"
	"regattacal/internal/series"
	"regattacal/internal/sheet"
)

const (
	ExitSuccess = 0
	ExitError   = 1
)

const defaultConfigPath = "/etc/regattacal/config.yaml"

// rootOptions holds the persistent flags.
type rootOptions struct {
	configPath string
	logLevel   string
}

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "regattacal",
		Short: "Regatta calendar service for a sailing association's events sheet",
		Long: `regattacal reads a sailing association's regatta fixtures from a shared
spreadsheet, normalizes them into dated events and serves them as a JSON API,
an iCalendar feed and a printable month calendar.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", defaultConfigPath, "Path to config file")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level override: debug, info or error")

	cmd.AddCommand(
		newServeCmd(opts),
		newFetchCmd(opts),
		newImportCmd(opts),
		newCaptureCmd(opts),
	)
	return cmd
}

// load reads the config and sets up logging. Only serve creates a missing
// config file; the one-shot commands fall back to defaults.
func (o *rootOptions) load(create bool, logOut io.Writer) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if create {
		cfg, err = config.Load(o.configPath)
	} else {
		cfg, err = config.LoadOptional(o.configPath)
	}
	if err != nil {
		return nil, err
	}

	level := cfg.LogLevel
	if o.logLevel != "" {
		level = o.logLevel
	}
	appLog.Setup(logOut, appLog.Format(cfg.LogFormat), appLog.ParseLevel(level))
	return cfg, nil
}

func dateOrder(cfg *config.Config) normalize.DateOrder {
	return normalize.ParseDateOrder(cfg.DateOrder)
}

// eventSource is the configured events sheet as a CSV export source.
func eventSource(cfg *config.Config) sheet.Source {
	return sheet.Source{ID: cfg.Events.ID, URL: sheet.ExportURL(cfg.Events.URL)}
}

// newFeed wires the feed service: cached sheet fetcher, fallback file and
// recurring series expanded over the season.
func newFeed(cfg *config.Config) *feed.Service {
	season := calendar.SeasonFromConfig(cfg.Season)
	return feed.New(feed.Options{
		Source:     eventSource(cfg),
		Fetcher:    sheet.NewFetcher(cfg.CacheDir, cfg.FetchTimeout),
		Normalizer: normalize.Normalizer{DateOrder: dateOrder(cfg)},
		Fallback:   fallback.JSONFile{Path: cfg.FallbackFile, DateOrder: dateOrder(cfg)},
		Series:     series.FromConfig(cfg.Series),
		SeriesFrom: season.First.First(),
		SeriesTo:   season.Last.AddMonths(1).First().AddDate(0, 0, -1),
	})
}

// newRoster returns nil when no competitors sheet is configured.
func newRoster(cfg *config.Config) *roster.Loader {
	id := sheet.SpreadsheetID(cfg.Competitors.SheetID)
	if id == "" {
		return nil
	}
	return &roster.Loader{
		Fetcher:    sheet.NewFetcher(cfg.CacheDir, cfg.FetchTimeout),
		SheetID:    id,
		DefaultGID: cfg.Competitors.DefaultGID,
	}
}
