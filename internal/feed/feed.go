// Package feed keeps the current view of the events sheet: it fetches,
// normalizes and indexes the sheet, falls back to a static source when the
// sheet is unreachable, and swaps the result in as one snapshot.
package feed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"regattacal/internal/calendar"
	appLog "regattacal/internal/log"
	"regattacal/internal/model"
	"regattacal/internal/normalize"
	"regattacal/internal/series"
	"regattacal/internal/sheet"
)

// ErrNoSource is returned by Refresh when neither a sheet URL nor a fallback
// is configured.
var ErrNoSource = errors.New("no events source configured")

// FallbackSource supplies events when the sheet cannot be fetched.
type FallbackSource interface {
	Events(ctx context.Context) ([]model.EventRecord, error)
}

// Fetcher downloads the sheet. *sheet.Fetcher implements it.
type Fetcher interface {
	Fetch(ctx context.Context, src sheet.Source) (sheet.Result, error)
}

// Options configures a Service.
type Options struct {
	// Source is the events sheet. URL must already be a CSV endpoint.
	Source     sheet.Source
	Fetcher    Fetcher
	Normalizer normalize.Normalizer
	// Fallback is optional.
	Fallback FallbackSource
	// Series are merged into every snapshot, expanded within
	// [SeriesFrom, SeriesTo].
	Series     []series.Definition
	SeriesFrom time.Time
	SeriesTo   time.Time
	// Now is used for timestamps. Defaults to time.Now.
	Now func() time.Time
}

// Snapshot is an immutable view of the feed. Records are sorted by date.
type Snapshot struct {
	Records       []model.EventRecord `json:"records"`
	Index         *calendar.Index     `json:"-"`
	Stats         normalize.Stats     `json:"stats"`
	UsingFallback bool                `json:"using_fallback"`
	FromCache     bool                `json:"from_cache"`
	SeriesCount   int                 `json:"series_count"`
	FetchedAt     time.Time           `json:"fetched_at"`
	LastAttempt   time.Time           `json:"last_attempt"`
	LastError     string              `json:"last_error,omitempty"`
}

// Ready reports whether a refresh has ever succeeded.
func (s Snapshot) Ready() bool {
	return !s.FetchedAt.IsZero()
}

// Service owns the current snapshot.
type Service struct {
	opts Options

	mu   sync.RWMutex
	snap Snapshot

	cronMu sync.Mutex
	cron   *cron.Cron
}

// New creates a Service with an empty snapshot.
func New(opts Options) *Service {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		opts: opts,
		snap: Snapshot{Index: calendar.Group(nil)},
	}
}

// Snapshot returns the current snapshot. Callers must not modify its slices.
func (s *Service) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Refresh rebuilds the snapshot.
//
//   - The sheet is fetched once. A transport failure switches to the
//     fallback source, if there is one, and marks the snapshot UsingFallback.
//   - When there is no usable source the previous snapshot is kept, only
//     LastAttempt and LastError change, and the error is returned.
//
// Concurrent calls are not coalesced; the last one to finish wins.
func (s *Service) Refresh(ctx context.Context) error {
	started := s.opts.Now()

	records, stats, fromCache, usingFallback, err := s.load(ctx)
	if err != nil {
		s.mu.Lock()
		s.snap.LastAttempt = started
		s.snap.LastError = err.Error()
		s.mu.Unlock()
		return err
	}

	seriesCount := 0
	if len(s.opts.Series) > 0 {
		res, serr := series.Expand(s.opts.Series, series.Options{
			From:       s.opts.SeriesFrom,
			To:         s.opts.SeriesTo,
			Normalizer: s.opts.Normalizer,
		})
		if serr != nil {
			appLog.Error("series expansion failed", serr)
		} else {
			seriesCount = len(res.Records)
			records = append(records, res.Records...)
		}
	}
	normalize.SortByDate(records)

	next := Snapshot{
		Records:       records,
		Index:         calendar.Group(records),
		Stats:         stats,
		UsingFallback: usingFallback,
		FromCache:     fromCache,
		SeriesCount:   seriesCount,
		FetchedAt:     s.opts.Now(),
		LastAttempt:   started,
	}

	s.mu.Lock()
	s.snap = next
	s.mu.Unlock()

	appLog.Info("feed refreshed",
		"records", len(records),
		"dropped", stats.Dropped(),
		"series", seriesCount,
		"using_fallback", usingFallback,
		"from_cache", fromCache,
	)
	return nil
}

func (s *Service) load(ctx context.Context) (records []model.EventRecord, stats normalize.Stats, fromCache, usingFallback bool, err error) {
	if s.opts.Source.URL == "" || s.opts.Fetcher == nil {
		if s.opts.Fallback == nil {
			return nil, stats, false, false, ErrNoSource
		}
		records, err = s.opts.Fallback.Events(ctx)
		if err != nil {
			return nil, stats, false, false, fmt.Errorf("loading fallback events: %w", err)
		}
		stats.Rows, stats.Kept = len(records), len(records)
		return records, stats, false, true, nil
	}

	res, ferr := s.opts.Fetcher.Fetch(ctx, s.opts.Source)
	if ferr != nil {
		if !errors.Is(ferr, sheet.ErrTransport) || s.opts.Fallback == nil {
			return nil, stats, false, false, ferr
		}
		appLog.Error("events sheet unavailable, using fallback", ferr, "id", s.opts.Source.ID)

		records, err = s.opts.Fallback.Events(ctx)
		if err != nil {
			return nil, stats, false, false, errors.Join(ferr, fmt.Errorf("loading fallback events: %w", err))
		}
		stats.Rows, stats.Kept = len(records), len(records)
		return records, stats, false, true, nil
	}

	records, stats = s.opts.Normalizer.Parse(string(res.Body))
	for i := range records {
		records[i].Source = model.SourceSheet
	}
	return records, stats, res.FromCache, false, nil
}
