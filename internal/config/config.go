package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// NOTE: This file provides the configuration model and full YAML-based
// load/save behavior, including first-run config creation and 0600
// permissions. A handful of fields can be overridden from the environment
// (see applyEnv) so container deployments don't need to mount a file.

const (
	defaultListen       = "127.0.0.1:8080"
	defaultTimezone     = "Europe/London"
	defaultRefreshCron  = "*/15 * * * *"
	defaultFetchTimeout = 10 * time.Second
	defaultCacheDir     = "./var/sheet-cache"
	defaultDateOrder    = "mdy"

	defaultSeasonFirst   = "2026-01"
	defaultSeasonLast    = "2026-12"
	defaultSeasonDefault = "2026-04"
)

// defaultDocuments is the association's sailing instructions directory,
// keyed by club code.
var defaultDocuments = map[string]string{
	"NSC":      "https://www.strangfordloughregattas.co.uk/documents/NSC2025.pdf",
	"QYC":      "https://www.strangfordloughregattas.co.uk/documents/QYC2025.pdf",
	"KSC":      "https://www.strangfordloughregattas.co.uk/documents/KSC2025.pdf",
	"Bar Buoy": "https://www.strangfordloughregattas.co.uk/documents/BarBuoy2025.pdf",
	"SSC":      "https://www.strangfordloughregattas.co.uk/documents/SSC2025.pdf",
	"PSC":      "https://www.strangfordloughregattas.co.uk/documents/PSC2025.pdf",
	"PTR":      "https://www.strangfordloughregattas.co.uk/documents/PTR2025.pdf",
	"KYC":      "https://www.strangfordloughregattas.co.uk/documents/KYC2025.pdf",
	"EDYC":     "https://www.strangfordloughregattas.co.uk/documents/EDYC2025v2.pdf",
	"SLYC":     "https://www.strangfordloughregattas.co.uk/documents/slycv52025.pdf",
}

// SheetConfig describes the events spreadsheet.
type SheetConfig struct {
	// URL is a Google Sheets share link or an export URL. Share links are
	// rewritten to the CSV export form at fetch time.
	URL string `yaml:"url" json:"url"`
	// ID is an internal identifier used for logging and cache keys.
	ID string `yaml:"id" json:"id"`
}

// CompetitorsConfig describes the competitor list spreadsheet.
type CompetitorsConfig struct {
	// SheetID is the stable spreadsheet identifier (the /d/<id>/ part).
	SheetID string `yaml:"sheet_id" json:"sheet_id"`
	// DefaultGID is used when no tab is requested.
	DefaultGID string `yaml:"default_gid" json:"default_gid"`
	// PageSize is the default number of rows per page.
	PageSize int `yaml:"page_size" json:"page_size"`
}

// SeasonConfig bounds the months the calendar will show. Months are
// formatted YYYY-MM.
type SeasonConfig struct {
	First   string `yaml:"first" json:"first"`
	Last    string `yaml:"last" json:"last"`
	Default string `yaml:"default" json:"default"`
}

// SeriesConfig declares a recurring club series, e.g. Wednesday evening
// racing, expanded with an RRULE.
type SeriesConfig struct {
	Name     string   `yaml:"name" json:"name"`
	Location string   `yaml:"location" json:"location"`
	HWT      string   `yaml:"hwt" json:"hwt"`
	Colour   string   `yaml:"colour" json:"colour"`
	RRule    string   `yaml:"rrule" json:"rrule"`
	// Start is the first date when RRule has no DTSTART.
	Start    string   `yaml:"start" json:"start"`
	ExDates  []string `yaml:"exdates" json:"exdates"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA timezone used to decide "today" on the calendar.
	Timezone string `yaml:"timezone" json:"timezone"`

	// WeekStart controls which weekday is treated as the first day of the week
	// in calendar views. Supported values:
	//   - "monday" (default)
	//   - "sunday"
	WeekStart string `yaml:"week_start" json:"week_start"`

	// RefreshCron is a cron-style schedule string (e.g. "*/15 * * * *")
	// used for periodic feed refresh.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// FetchTimeout bounds a single spreadsheet fetch.
	FetchTimeout time.Duration `yaml:"fetch_timeout" json:"fetch_timeout"`

	// DateOrder is the tie-break for ambiguous A/B/YYYY dates: "mdy"
	// (default) or "dmy".
	DateOrder string `yaml:"date_order" json:"date_order"`

	// Events is the events spreadsheet.
	Events SheetConfig `yaml:"events" json:"events"`

	// Competitors is the competitor list spreadsheet.
	Competitors CompetitorsConfig `yaml:"competitors" json:"competitors"`

	// CacheDir holds per-URL HTTP cache entries.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	// FallbackFile is a JSON events file served when the sheet is
	// unreachable. Empty means the events bundled into the binary.
	FallbackFile string `yaml:"fallback_file" json:"fallback_file"`

	Season SeasonConfig `yaml:"season" json:"season"`

	// Documents maps a club code or location (e.g. "QYC") to its sailing
	// instructions document URL.
	Documents map[string]string `yaml:"documents" json:"documents"`

	// Series is the list of recurring fixtures merged into the feed.
	Series []SeriesConfig `yaml:"series" json:"series"`

	// CORSOrigins is the list of allowed cross-origin request origins.
	CORSOrigins []string `yaml:"cors_origins" json:"cors_origins"`

	LogLevel  string `yaml:"log_level" json:"log_level"`
	LogFormat string `yaml:"log_format" json:"log_format"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:       defaultListen,
		Timezone:     defaultTimezone,
		WeekStart:    "monday",
		RefreshCron:  defaultRefreshCron,
		FetchTimeout: defaultFetchTimeout,
		DateOrder:    defaultDateOrder,
		Events: SheetConfig{
			ID: "events",
		},
		Competitors: CompetitorsConfig{
			DefaultGID: "0",
			PageSize:   25,
		},
		CacheDir: defaultCacheDir,
		Season: SeasonConfig{
			First:   defaultSeasonFirst,
			Last:    defaultSeasonLast,
			Default: defaultSeasonDefault,
		},
		Documents:   copyDocuments(defaultDocuments),
		Series:      []SeriesConfig{},
		CORSOrigins: []string{"http://localhost:5173"},
		LogLevel:    "info",
		LogFormat:   "text",
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	switch c.WeekStart {
	case "monday", "sunday":
		// ok
	default:
		// Unknown value; fall back to monday to avoid surprising layouts.
		c.WeekStart = "monday"
	}
	if c.RefreshCron == "" {
		c.RefreshCron = defaultRefreshCron
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = defaultFetchTimeout
	}
	switch strings.ToLower(c.DateOrder) {
	case "mdy", "dmy":
		c.DateOrder = strings.ToLower(c.DateOrder)
	default:
		c.DateOrder = defaultDateOrder
	}
	if c.Events.ID == "" {
		c.Events.ID = "events"
	}
	if c.Competitors.DefaultGID == "" {
		c.Competitors.DefaultGID = "0"
	}
	if c.Competitors.PageSize <= 0 {
		c.Competitors.PageSize = 25
	}
	if c.CacheDir == "" {
		c.CacheDir = defaultCacheDir
	}
	if c.Season.First == "" {
		c.Season.First = defaultSeasonFirst
	}
	if c.Season.Last == "" {
		c.Season.Last = defaultSeasonLast
	}
	if c.Season.Default == "" {
		c.Season.Default = defaultSeasonDefault
	}
	if c.Documents == nil {
		c.Documents = map[string]string{}
	}
	if c.Series == nil {
		c.Series = []SeriesConfig{}
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat != "json" {
		c.LogFormat = "text"
	}
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
//   - Environment overrides are applied last in both cases.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				applyEnv(cfg)
				return cfg, err
			}
			applyEnv(cfg)
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	cfg.Normalize()
	applyEnv(&cfg)

	return &cfg, nil
}

// LoadOptional is Load for one-shot commands: a missing file yields the
// defaults (plus environment overrides) and nothing is written.
func LoadOptional(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}
	cfg := DefaultConfig()
	applyEnv(cfg)
	return cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	// Atomic write: write to temp file in same directory then rename.
	tmp, err := os.CreateTemp(dir, ".regattacal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	// Ensure we clean up temp file on error.
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}

// Location resolves Timezone, falling back to time.Local when it is unknown.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

func copyDocuments(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// applyEnv overrides selected fields from REGATTACAL_* environment variables.
func applyEnv(c *Config) {
	c.Listen = getEnv("REGATTACAL_LISTEN", c.Listen)
	c.LogLevel = getEnv("REGATTACAL_LOG_LEVEL", c.LogLevel)
	c.Events.URL = getEnv("REGATTACAL_EVENTS_URL", c.Events.URL)
	if origins := os.Getenv("REGATTACAL_CORS_ORIGINS"); origins != "" {
		c.CORSOrigins = splitCSV(origins)
	}
}

// getEnv returns the value of the environment variable named by key,
// or fallback if the variable is not set or is empty.
func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// splitCSV splits a comma-separated string into a trimmed slice, ignoring empty entries.
func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if t := strings.TrimSpace(part); t != "" {
			out = append(out, t)
		}
	}
	return out
}
