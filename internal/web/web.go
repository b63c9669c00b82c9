package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"regattacal/internal/calendar"
	"regattacal/internal/config"
	"regattacal/internal/feed"
	appLog "regattacal/internal/log"
	"regattacal/internal/normalize"
	"regattacal/internal/notice"
	"regattacal/internal/roster"
	"regattacal/internal/sheet"
)

// EventFeed is the part of *feed.Service the HTTP layer needs.
type EventFeed interface {
	Snapshot() feed.Snapshot
	Refresh(ctx context.Context) error
}

// Roster loads competitor tabs. *roster.Loader implements it.
type Roster interface {
	Load(ctx context.Context, ref string) (roster.Table, error)
	LoadAll(ctx context.Context) (roster.Table, error)
	Tabs(ctx context.Context) ([]sheet.Tab, error)
}

// Server provides the JSON API, the iCalendar feed and the printable
// calendar page.
type Server struct {
	cfg       *config.Config
	feed      EventFeed
	roster    Roster
	docs      notice.Directory
	season    calendar.Season
	weekStart time.Weekday
	loc       *time.Location
	dates     normalize.Normalizer
	now       func() time.Time

	// Competitor tabs change rarely and each load is a full spreadsheet
	// export, so loaded tables are kept for a short while.
	rosterMu    sync.RWMutex
	rosterCache map[string]rosterCache
}

type rosterCache struct {
	table     roster.Table
	updatedAt time.Time
}

const rosterCacheTTL = time.Minute

// NewServer constructs a new Server. competitors may be nil, in which case
// the competitor endpoints answer 503.
func NewServer(cfg *config.Config, events EventFeed, competitors Roster) *Server {
	return &Server{
		cfg:         cfg,
		feed:        events,
		roster:      competitors,
		docs:        notice.Directory(cfg.Documents),
		season:      calendar.SeasonFromConfig(cfg.Season),
		weekStart:   calendar.ParseWeekStart(cfg.WeekStart),
		loc:         cfg.Location(),
		dates:       normalize.Normalizer{DateOrder: normalize.ParseDateOrder(cfg.DateOrder)},
		now:         time.Now,
		rosterCache: make(map[string]rosterCache),
	}
}

// Handler returns the router with the middleware stack applied.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(slogLogger(appLog.Logger()))
	r.Use(chimiddleware.Recoverer)
	r.Use(corsHandler(s.cfg.CORSOrigins))
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		r.Use(s.basicAuth)
	}

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/events", s.handleEvents)
		r.Get("/events/by-date", s.handleEventsByDate)
		r.Get("/events/{date}", s.handleEventsOn)
		r.Get("/calendar", s.handleCalendar)
		r.Get("/notices", s.handleNotices)
		r.Get("/competitors", s.handleCompetitors)
		r.Get("/competitors/tabs", s.handleCompetitorTabs)
		r.Post("/refresh", s.handleRefresh)
	})

	r.Get("/calendar.ics", s.handleICS)
	r.Get("/calendar", s.handleCalendarPage)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}

// Run serves on cfg.Listen until ctx is cancelled, then shuts down and gives
// in-flight requests up to 15 seconds to finish.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Listen,
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	appLog.Info("shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// today is the current date in the configured timezone.
func (s *Server) today() time.Time {
	return s.now().In(s.loc)
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func parseBool(s string) bool {
	b, err := strconv.ParseBool(s)
	return err == nil && b
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}

// upstreamStatus maps a sheet error to the HTTP status reported to callers.
func upstreamStatus(err error) int {
	switch {
	case errors.Is(err, sheet.ErrTransport):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
