package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"regattacal/internal/calendar"
	"regattacal/internal/config"
	"regattacal/internal/feed"
	"regattacal/internal/model"
	"regattacal/internal/normalize"
	"regattacal/internal/roster"
	"regattacal/internal/sheet"
)

type stubFeed struct {
	mu         sync.Mutex
	snap       feed.Snapshot
	refreshErr error
	refreshes  int
}

func (f *stubFeed) Snapshot() feed.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap
}

func (f *stubFeed) Refresh(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshes++
	return f.refreshErr
}

type stubRoster struct {
	tables map[string]roster.Table
	all    roster.Table
	err    error
	loads  int
}

func (r *stubRoster) Load(_ context.Context, ref string) (roster.Table, error) {
	r.loads++
	if r.err != nil {
		return roster.Table{}, r.err
	}
	return r.tables[ref], nil
}

func (r *stubRoster) LoadAll(context.Context) (roster.Table, error) {
	r.loads++
	return r.all, r.err
}

func (r *stubRoster) Tabs(context.Context) ([]sheet.Tab, error) {
	return []sheet.Tab{{GID: "0", Name: "Dinghies"}, {GID: "9", Name: "Keelboats"}}, r.err
}

var testRecords = []model.EventRecord{
	{Date: "2026-06-20", Name: "Midsummer Race", Location: "SSC", Source: model.SourceSheet},
	{Date: "2026-07-12", Name: "Summer Regatta", Location: "QYC", HWT: "14:05", Source: model.SourceSheet},
	{Date: "2026-07-12", Name: "Junior Day", Location: "Nowhere", Source: model.SourceSheet},
	{Date: "2026-08-01", Name: "Lough Cup", Location: "KYC", Tide: "LWT", HWT: "09:10", Source: model.SourceSheet},
}

func snapshotOf(records []model.EventRecord) feed.Snapshot {
	return feed.Snapshot{
		Records:   records,
		Index:     calendar.Group(records),
		Stats:     normalize.Stats{Rows: len(records) + 1, Kept: len(records), UnresolvedDate: 1},
		FetchedAt: time.Date(2026, 7, 12, 9, 0, 0, 0, time.UTC),
	}
}

func newTestServer(t *testing.T, mutate func(*config.Config)) (*Server, *stubFeed, *stubRoster) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Timezone = "UTC"
	if mutate != nil {
		mutate(cfg)
	}

	f := &stubFeed{snap: snapshotOf(testRecords)}
	r := &stubRoster{tables: map[string]roster.Table{}}
	s := NewServer(cfg, f, r)
	s.now = func() time.Time { return time.Date(2026, 7, 12, 10, 0, 0, 0, time.UTC) }
	return s, f, r
}

func do(t *testing.T, h http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func errorBody(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	decode(t, rec, &body)
	return body.Error
}

func TestHealth(t *testing.T) {
	s, _, _ := newTestServer(t, nil)
	rec := do(t, s.Handler(), http.MethodGet, "/health")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "OK", rec.Body.String())
}

func TestBasicAuth(t *testing.T) {
	s, _, _ := newTestServer(t, func(c *config.Config) {
		c.BasicAuth = &config.BasicAuthConfig{Username: "race", Password: "officer"}
	})
	h := s.Handler()

	require.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/health").Code)

	rec := do(t, h, http.MethodGet, "/api/events")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Contains(t, rec.Header().Get("WWW-Authenticate"), "Basic")

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	req.SetBasicAuth("race", "officer")
	ok := httptest.NewRecorder()
	h.ServeHTTP(ok, req)
	require.Equal(t, http.StatusOK, ok.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/events", nil)
	req.SetBasicAuth("race", "wrong")
	bad := httptest.NewRecorder()
	h.ServeHTTP(bad, req)
	require.Equal(t, http.StatusUnauthorized, bad.Code)
}

func TestBasicAuth_emptyCredentialsDisable(t *testing.T) {
	s, _, _ := newTestServer(t, func(c *config.Config) {
		c.BasicAuth = &config.BasicAuthConfig{Username: "race"}
	})
	require.Equal(t, http.StatusOK, do(t, s.Handler(), http.MethodGet, "/api/events").Code)
}

func TestCORS(t *testing.T) {
	s, _, _ := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/events", nil)
	req.Header.Set("Origin", "https://elsewhere.example")
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestEvents(t *testing.T) {
	s, _, _ := newTestServer(t, nil)
	h := s.Handler()

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{name: "all", query: "", want: []string{"Midsummer Race", "Summer Regatta", "Junior Day", "Lough Cup"}},
		{name: "iso range", query: "?from=2026-07-01&to=2026-07-31", want: []string{"Summer Regatta", "Junior Day"}},
		{name: "ordinal from", query: "?from=1st%20August%202026", want: []string{"Lough Cup"}},
		{name: "to only", query: "?to=2026-06-30", want: []string{"Midsummer Race"}},
		{name: "empty range", query: "?from=2026-09-01", want: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodGet, "/api/events"+tt.query)
			require.Equal(t, http.StatusOK, rec.Code)

			var body eventsResponse
			decode(t, rec, &body)
			got := make([]string, 0, len(body.Records))
			for _, r := range body.Records {
				got = append(got, r.Name)
			}
			require.Equal(t, tt.want, got)
			require.Equal(t, 1, body.Stats.UnresolvedDate)
		})
	}
}

func TestEvents_badBounds(t *testing.T) {
	s, _, _ := newTestServer(t, nil)
	h := s.Handler()

	rec := do(t, h, http.MethodGet, "/api/events?from=someday")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "unrecognised from date", errorBody(t, rec))

	rec = do(t, h, http.MethodGet, "/api/events?from=2026-08-01&to=2026-07-01")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEventsByDate(t *testing.T) {
	s, _, _ := newTestServer(t, nil)
	rec := do(t, s.Handler(), http.MethodGet, "/api/events/by-date")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string][]model.EventRecord
	decode(t, rec, &body)
	require.Len(t, body, 3)
	require.Len(t, body["2026-07-12"], 2)
	require.Equal(t, "Summer Regatta", body["2026-07-12"][0].Name)
}

func TestEventsOn(t *testing.T) {
	s, _, _ := newTestServer(t, nil)
	h := s.Handler()

	rec := do(t, h, http.MethodGet, "/api/events/12th%20July%202026")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Date    string              `json:"date"`
		Label   string              `json:"label"`
		Records []model.EventRecord `json:"records"`
	}
	decode(t, rec, &body)
	require.Equal(t, "2026-07-12", body.Date)
	require.Equal(t, "12th July 2026", body.Label)
	require.Len(t, body.Records, 2)

	rec = do(t, h, http.MethodGet, "/api/events/2026-07-13")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"records":[]`)

	rec = do(t, h, http.MethodGet, "/api/events/not-a-date")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "unrecognised date", errorBody(t, rec))
}

func TestCalendar(t *testing.T) {
	s, _, _ := newTestServer(t, nil)
	h := s.Handler()

	rec := do(t, h, http.MethodGet, "/api/calendar?month=2026-07")
	require.Equal(t, http.StatusOK, rec.Code)
	var g calendar.Grid
	decode(t, rec, &g)
	require.Equal(t, "2026-07", g.Month)
	require.Equal(t, "July 2026", g.Label)
	require.Equal(t, "2026-06", g.Prev)
	require.Equal(t, "2026-08", g.Next)
	require.Equal(t, "Mon", g.Weekdays[0])

	var today *calendar.Day
	for _, week := range g.Weeks {
		for _, d := range week {
			if d != nil && d.Today {
				today = d
			}
		}
	}
	require.NotNil(t, today)
	require.Equal(t, "2026-07-12", today.Date)
	require.Len(t, today.Events, 2)

	var def calendar.Grid
	decode(t, do(t, h, http.MethodGet, "/api/calendar"), &def)
	require.Equal(t, "2026-04", def.Month)

	var late calendar.Grid
	decode(t, do(t, h, http.MethodGet, "/api/calendar?month=2031-02"), &late)
	require.Equal(t, "2026-12", late.Month)
	require.Empty(t, late.Next)
}

func TestNotices(t *testing.T) {
	s, _, _ := newTestServer(t, nil)
	rec := do(t, s.Handler(), http.MethodGet, "/api/notices")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Items []struct {
			Title       string `json:"title"`
			DocumentURL string `json:"documentUrl"`
			Available   bool   `json:"available"`
			Caption     string `json:"caption"`
		} `json:"items"`
	}
	decode(t, rec, &body)
	require.Len(t, body.Items, 4)
	require.Equal(t, "Summer Regatta - 12th July 2026", body.Items[1].Title)
	require.True(t, body.Items[1].Available)
	require.Contains(t, body.Items[1].DocumentURL, "QYC")
	require.False(t, body.Items[2].Available)
	require.Equal(t, "LWT", body.Items[3].Caption)
}

func TestRefresh(t *testing.T) {
	s, f, _ := newTestServer(t, nil)
	h := s.Handler()

	rec := do(t, h, http.MethodPost, "/api/refresh")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, f.refreshes)

	f.refreshErr = fmt.Errorf("%w: connection refused", sheet.ErrTransport)
	rec = do(t, h, http.MethodPost, "/api/refresh")
	require.Equal(t, http.StatusBadGateway, rec.Code)
	require.Contains(t, errorBody(t, rec), "connection refused")

	rec = do(t, h, http.MethodGet, "/api/refresh")
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestICS(t *testing.T) {
	s, _, _ := newTestServer(t, nil)
	rec := do(t, s.Handler(), http.MethodGet, "/calendar.ics")
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/calendar"))

	body := rec.Body.String()
	require.Contains(t, body, "BEGIN:VCALENDAR")
	require.Contains(t, body, "SUMMARY:Summer Regatta")
	require.Equal(t, 4, strings.Count(body, "BEGIN:VEVENT"))
}

func TestCalendarPage(t *testing.T) {
	s, f, _ := newTestServer(t, nil)
	f.snap.UsingFallback = true

	rec := do(t, s.Handler(), http.MethodGet, "/calendar?month=2026-07")
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/html"))

	body := rec.Body.String()
	require.Contains(t, body, `data-ready="true"`)
	require.Contains(t, body, "July 2026")
	require.Contains(t, body, "Summer Regatta")
	require.Contains(t, body, "HWT: 14:05")
	require.Contains(t, body, `data-date="2026-07-12"`)
	require.Contains(t, body, "bundled fixture list")
}

func TestCompetitors(t *testing.T) {
	s, _, r := newTestServer(t, nil)
	h := s.Handler()

	dinghies, err := roster.Parse("Helm,Class,Sail No\nAnna,Laser,207\nBen,RS200,1450\nCara,Laser,99\n")
	require.NoError(t, err)
	r.tables[""] = dinghies
	r.tables["Juniors"] = roster.Table{Headers: []string{"Helm"}, Rows: []roster.Row{{"Helm": "Dot"}}}
	r.all = roster.Merge([]roster.NamedTable{{Name: "Dinghies", Table: dinghies}})

	rec := do(t, h, http.MethodGet, "/api/competitors?q=laser&sort=Sail%20No&dir=desc")
	require.Equal(t, http.StatusOK, rec.Code)
	var body competitorsResponse
	decode(t, rec, &body)
	require.Equal(t, []string{"Helm", "Class", "Sail No"}, body.Headers)
	require.Equal(t, 2, body.TotalRows)
	require.Equal(t, "Anna", body.Rows[0]["Helm"])
	require.Equal(t, "Cara", body.Rows[1]["Helm"])
	require.True(t, body.Desc)

	rec = do(t, h, http.MethodGet, "/api/competitors?size=1&page=2&sort=Helm")
	decode(t, rec, &body)
	require.Equal(t, 2, body.Page.Page)
	require.Equal(t, 3, body.TotalPages)
	require.Equal(t, "Ben", body.Rows[0]["Helm"])

	rec = do(t, h, http.MethodGet, "/api/competitors?tab=Juniors")
	decode(t, rec, &body)
	require.Equal(t, "Dot", body.Rows[0]["Helm"])

	rec = do(t, h, http.MethodGet, "/api/competitors?all=true")
	decode(t, rec, &body)
	require.True(t, body.All)
	require.Contains(t, body.Headers, roster.SheetColumn)

	// The default tab was loaded once and then served from memory.
	require.Equal(t, 3, r.loads)
}

func TestCompetitors_errors(t *testing.T) {
	s, _, r := newTestServer(t, nil)
	r.err = fmt.Errorf("%w: 404", sheet.ErrTransport)

	rec := do(t, s.Handler(), http.MethodGet, "/api/competitors")
	require.Equal(t, http.StatusBadGateway, rec.Code)

	rec = do(t, s.Handler(), http.MethodGet, "/api/competitors/tabs")
	require.Equal(t, http.StatusBadGateway, rec.Code)

	cfg := config.DefaultConfig()
	noRoster := NewServer(cfg, &stubFeed{snap: snapshotOf(nil)}, nil)
	rec = do(t, noRoster.Handler(), http.MethodGet, "/api/competitors")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestCompetitorTabs(t *testing.T) {
	s, _, _ := newTestServer(t, nil)
	rec := do(t, s.Handler(), http.MethodGet, "/api/competitors/tabs")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "Keelboats")
}

func TestNotFound(t *testing.T) {
	s, _, _ := newTestServer(t, nil)
	rec := do(t, s.Handler(), http.MethodGet, "/api/nope")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "not found", errorBody(t, rec))
}

func TestEmptySnapshot(t *testing.T) {
	cfg := config.DefaultConfig()
	s := NewServer(cfg, &stubFeed{}, nil)
	h := s.Handler()

	rec := do(t, h, http.MethodGet, "/api/events")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"records":[]`)

	rec = do(t, h, http.MethodGet, "/api/events/by-date")
	require.Equal(t, "{}\n", rec.Body.String())
}
