package feed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"regattacal/internal/model"
	"regattacal/internal/normalize"
	"regattacal/internal/series"
	"regattacal/internal/sheet"
)

type fakeFetcher struct {
	mu    sync.Mutex
	body  string
	err   error
	calls int
}

func (f *fakeFetcher) Fetch(_ context.Context, src sheet.Source) (sheet.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return sheet.Result{}, f.err
	}
	return sheet.Result{Source: src, Body: []byte(f.body)}, nil
}

func (f *fakeFetcher) set(body string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.body, f.err = body, err
}

type fakeFallback struct {
	records []model.EventRecord
	err     error
}

func (f fakeFallback) Events(context.Context) ([]model.EventRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]model.EventRecord, len(f.records))
	for i, r := range f.records {
		r.Source = model.SourceFallback
		out[i] = r
	}
	return out, nil
}

const sheetCSV = `Date,Event,Venue,HWT
2026-07-12,Summer Regatta,QYC,14:05
2026-06-01,Opening Race,SSC,09:00
,No date,KSC,
`

var transportErr = fmt.Errorf("%w: connection refused", sheet.ErrTransport)

func fixedNow() time.Time {
	return time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
}

func newService(f Fetcher, fb FallbackSource) *Service {
	return New(Options{
		Source:   sheet.Source{ID: "events", URL: "https://sheet.example/export?format=csv"},
		Fetcher:  f,
		Fallback: fb,
		Now:      fixedNow,
	})
}

func dates(records []model.EventRecord) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.Date)
	}
	return out
}

func TestRefresh_sheet(t *testing.T) {
	svc := newService(&fakeFetcher{body: sheetCSV}, nil)

	require.False(t, svc.Snapshot().Ready())
	require.NoError(t, svc.Refresh(context.Background()))

	snap := svc.Snapshot()
	require.True(t, snap.Ready())
	require.False(t, snap.UsingFallback)
	require.Equal(t, []string{"2026-06-01", "2026-07-12"}, dates(snap.Records))
	require.Equal(t, 3, snap.Stats.Rows)
	require.Equal(t, 1, snap.Stats.Dropped())
	require.Equal(t, fixedNow(), snap.FetchedAt)
	require.Empty(t, snap.LastError)

	for _, r := range snap.Records {
		require.Equal(t, model.SourceSheet, r.Source)
	}
	require.Len(t, snap.Index.On("2026-07-12"), 1)
	require.Equal(t, "Summer Regatta", snap.Index.On("2026-07-12")[0].Name)
}

func TestRefresh_transportErrorUsesFallback(t *testing.T) {
	fb := fakeFallback{records: []model.EventRecord{{Date: "2026-08-01", Name: "Bundled"}}}
	svc := newService(&fakeFetcher{err: transportErr}, fb)

	require.NoError(t, svc.Refresh(context.Background()))

	snap := svc.Snapshot()
	require.True(t, snap.UsingFallback)
	require.Equal(t, []string{"2026-08-01"}, dates(snap.Records))
	require.Equal(t, model.SourceFallback, snap.Records[0].Source)
	require.Equal(t, 1, snap.Stats.Kept)
}

func TestRefresh_failureKeepsPreviousSnapshot(t *testing.T) {
	f := &fakeFetcher{body: sheetCSV}
	svc := newService(f, nil)
	require.NoError(t, svc.Refresh(context.Background()))
	before := svc.Snapshot()

	f.set("", transportErr)
	err := svc.Refresh(context.Background())
	require.ErrorIs(t, err, sheet.ErrTransport)

	after := svc.Snapshot()
	require.Equal(t, before.Records, after.Records)
	require.Equal(t, before.FetchedAt, after.FetchedAt)
	require.Contains(t, after.LastError, "connection refused")
	require.True(t, after.Ready())
}

func TestRefresh_fallbackAlsoFails(t *testing.T) {
	svc := newService(&fakeFetcher{err: transportErr}, fakeFallback{err: errors.New("bad json")})

	err := svc.Refresh(context.Background())
	require.ErrorIs(t, err, sheet.ErrTransport)
	require.ErrorContains(t, err, "bad json")
	require.False(t, svc.Snapshot().Ready())
}

func TestRefresh_nonTransportErrorSkipsFallback(t *testing.T) {
	boom := errors.New("boom")
	fb := fakeFallback{records: []model.EventRecord{{Date: "2026-08-01", Name: "Bundled"}}}
	svc := newService(&fakeFetcher{err: boom}, fb)

	require.ErrorIs(t, svc.Refresh(context.Background()), boom)
	require.Empty(t, svc.Snapshot().Records)
}

func TestRefresh_noURL(t *testing.T) {
	fb := fakeFallback{records: []model.EventRecord{{Date: "2026-08-01", Name: "Bundled"}}}
	f := &fakeFetcher{body: sheetCSV}
	svc := New(Options{Fetcher: f, Fallback: fb, Now: fixedNow})

	require.NoError(t, svc.Refresh(context.Background()))
	require.True(t, svc.Snapshot().UsingFallback)
	require.Zero(t, f.calls)

	empty := New(Options{Fetcher: f})
	require.ErrorIs(t, empty.Refresh(context.Background()), ErrNoSource)
}

func TestRefresh_mergesSeries(t *testing.T) {
	svc := New(Options{
		Source:  sheet.Source{ID: "events", URL: "https://sheet.example/csv"},
		Fetcher: &fakeFetcher{body: sheetCSV},
		Series: []series.Definition{{
			Name:  "Wednesday Evening",
			RRule: "FREQ=WEEKLY;BYDAY=WE;COUNT=2",
			Start: "2026-06-03",
		}},
		SeriesFrom: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		SeriesTo:   time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC),
		Now:        fixedNow,
	})

	require.NoError(t, svc.Refresh(context.Background()))
	snap := svc.Snapshot()
	require.Equal(t, 2, snap.SeriesCount)
	require.Equal(t, []string{"2026-06-01", "2026-06-03", "2026-06-10", "2026-07-12"}, dates(snap.Records))
	require.Equal(t, model.SourceSeries, snap.Records[1].Source)
}

func TestRefresh_dateOrder(t *testing.T) {
	svc := New(Options{
		Source:     sheet.Source{ID: "events", URL: "https://sheet.example/csv"},
		Fetcher:    &fakeFetcher{body: "Date,Event\n09/05/2026,Spring\n"},
		Normalizer: normalize.Normalizer{DateOrder: normalize.DayFirst},
	})
	require.NoError(t, svc.Refresh(context.Background()))
	require.Equal(t, []string{"2026-05-09"}, dates(svc.Snapshot().Records))
}

func TestRefresh_concurrentReaders(t *testing.T) {
	svc := newService(&fakeFetcher{body: sheetCSV}, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = svc.Refresh(context.Background())
		}()
		go func() {
			defer wg.Done()
			snap := svc.Snapshot()
			if snap.Ready() && len(snap.Records) != 2 {
				t.Errorf("torn snapshot: %d records", len(snap.Records))
			}
		}()
	}
	wg.Wait()
	require.Len(t, svc.Snapshot().Records, 2)
}

func TestStartStop(t *testing.T) {
	svc := newService(&fakeFetcher{body: sheetCSV}, nil)

	require.Error(t, svc.Start("not a cron spec", time.UTC, time.Second))
	require.True(t, svc.NextRun().IsZero())

	require.NoError(t, svc.Start("*/5 * * * *", time.UTC, time.Second))
	require.Error(t, svc.Start("*/5 * * * *", time.UTC, time.Second))
	require.False(t, svc.NextRun().IsZero())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	svc.Stop(ctx)
	require.True(t, svc.NextRun().IsZero())

	// Stopping twice is harmless.
	svc.Stop(ctx)
}
