package web

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"regattacal/internal/calendar"
	appLog "regattacal/internal/log"
	"regattacal/internal/model"
	"regattacal/internal/normalize"
	"regattacal/internal/notice"
)

// eventsResponse is the JSON response shape for /api/events.
type eventsResponse struct {
	Records       []model.EventRecord `json:"records"`
	Stats         normalize.Stats     `json:"stats"`
	UsingFallback bool                `json:"using_fallback"`
	FromCache     bool                `json:"from_cache"`
	FetchedAt     time.Time           `json:"fetched_at"`
	LastError     string              `json:"last_error,omitempty"`
	From          string              `json:"from,omitempty"`
	To            string              `json:"to,omitempty"`
}

// handleEvents returns the normalized records.
//
// GET /api/events?from=&to=
//   - from, to: optional inclusive bounds, any format the date resolver
//     accepts ("2026-07-01", "1st July 2026", "07/01/2026").
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, ok := s.resolveBound(q.Get("from"))
	if !ok {
		writeError(w, http.StatusBadRequest, "unrecognised from date")
		return
	}
	to, ok := s.resolveBound(q.Get("to"))
	if !ok {
		writeError(w, http.StatusBadRequest, "unrecognised to date")
		return
	}
	if from != "" && to != "" && to < from {
		writeError(w, http.StatusBadRequest, "to is before from")
		return
	}

	snap := s.feed.Snapshot()
	records := snap.Records
	if from != "" || to != "" {
		records = snap.Index.Between(from, to)
	}
	if records == nil {
		records = []model.EventRecord{}
	}

	writeJSON(w, http.StatusOK, eventsResponse{
		Records:       records,
		Stats:         snap.Stats,
		UsingFallback: snap.UsingFallback,
		FromCache:     snap.FromCache,
		FetchedAt:     snap.FetchedAt,
		LastError:     snap.LastError,
		From:          from,
		To:            to,
	})
}

func (s *Server) resolveBound(raw string) (string, bool) {
	if strings.TrimSpace(raw) == "" {
		return "", true
	}
	return s.dates.ResolveDate(raw)
}

// handleEventsByDate returns the date-keyed index.
func (s *Server) handleEventsByDate(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.feed.Snapshot().Index.Map())
}

// handleEventsOn returns the records on one date.
func (s *Server) handleEventsOn(w http.ResponseWriter, r *http.Request) {
	date, ok := s.dates.ResolveDate(chi.URLParam(r, "date"))
	if !ok {
		writeError(w, http.StatusBadRequest, "unrecognised date")
		return
	}

	records := s.feed.Snapshot().Index.On(date)
	if records == nil {
		records = []model.EventRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"date":    date,
		"label":   calendar.FormatOrdinal(date),
		"records": records,
	})
}

// handleCalendar returns the month grid for ?month=YYYY-MM, clamped to the
// season.
func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.monthGrid(r.URL.Query().Get("month")))
}

func (s *Server) monthGrid(month string) calendar.Grid {
	ym := calendar.ParseMonth(month, s.season)
	return calendar.MonthInSeason(ym, s.season, s.weekStart, s.feed.Snapshot().Index, s.today())
}

// handleNotices returns the sailing instructions board.
func (s *Server) handleNotices(w http.ResponseWriter, _ *http.Request) {
	items := notice.Build(s.feed.Snapshot().Records, s.docs)
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// handleRefresh re-reads the sheet now. A failed fetch leaves the served
// snapshot as it was.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.feed.Refresh(r.Context()); err != nil {
		appLog.Error("manual refresh failed", err)
		writeError(w, upstreamStatus(err), err.Error())
		return
	}
	snap := s.feed.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"records":        len(snap.Records),
		"stats":          snap.Stats,
		"using_fallback": snap.UsingFallback,
		"fetched_at":     snap.FetchedAt,
	})
}

// handleICS serves every record as an all-day iCalendar feed.
func (s *Server) handleICS(w http.ResponseWriter, _ *http.Request) {
	snap := s.feed.Snapshot()
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `inline; filename="regattas.ics"`)
	err := calendar.WriteICS(w, snap.Records, calendar.ICSOptions{
		Name:     "Regatta Calendar",
		Timezone: s.loc.String(),
		Now:      s.now(),
	})
	if err != nil {
		appLog.Error("failed to write ICS feed", err)
	}
}
