package web

import (
	"context"
	"net/http"
	"strings"

	appLog "regattacal/internal/log"
	"regattacal/internal/roster"
)

const allTabsKey = "*all"

// competitorsResponse is one page of the competitor list.
type competitorsResponse struct {
	Headers []string `json:"headers"`
	Tab     string   `json:"tab,omitempty"`
	All     bool     `json:"all"`
	Query   string   `json:"q,omitempty"`
	Sort    string   `json:"sort,omitempty"`
	Desc    bool     `json:"desc"`
	roster.Page
}

// handleCompetitors serves the competitor list.
//
// GET /api/competitors?tab=&all=&q=&sort=&dir=&page=&size=
//   - tab:  gid or tab name; empty selects the configured default tab
//   - all:  merge every tab, adding a Sheet column
//   - q:    case-insensitive substring filter over every column
//   - sort: column name; dir=desc reverses
func (s *Server) handleCompetitors(w http.ResponseWriter, r *http.Request) {
	if s.roster == nil {
		writeError(w, http.StatusServiceUnavailable, "competitors sheet is not configured")
		return
	}

	q := r.URL.Query()
	all := parseBool(q.Get("all"))
	tab := strings.TrimSpace(q.Get("tab"))

	table, err := s.loadRoster(r.Context(), tab, all)
	if err != nil {
		appLog.Error("competitors load failed", err, "tab", tab, "all", all)
		writeError(w, upstreamStatus(err), err.Error())
		return
	}

	query := q.Get("q")
	sortCol := q.Get("sort")
	desc := strings.EqualFold(q.Get("dir"), "desc")
	table = table.Filter(query).Sort(sortCol, desc)

	size := parseIntDefault(q.Get("size"), s.cfg.Competitors.PageSize)
	page := roster.Paginate(table.Rows, parseIntDefault(q.Get("page"), 1), size)

	writeJSON(w, http.StatusOK, competitorsResponse{
		Headers: table.Headers,
		Tab:     tab,
		All:     all,
		Query:   query,
		Sort:    sortCol,
		Desc:    desc,
		Page:    page,
	})
}

// handleCompetitorTabs lists the competitor spreadsheet's tabs.
func (s *Server) handleCompetitorTabs(w http.ResponseWriter, r *http.Request) {
	if s.roster == nil {
		writeError(w, http.StatusServiceUnavailable, "competitors sheet is not configured")
		return
	}
	tabs, err := s.roster.Tabs(r.Context())
	if err != nil {
		appLog.Error("competitor tabs load failed", err)
		writeError(w, upstreamStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tabs": tabs})
}

func (s *Server) loadRoster(ctx context.Context, tab string, all bool) (roster.Table, error) {
	key := tab
	if all {
		key = allTabsKey
	}

	now := s.now()
	s.rosterMu.RLock()
	c, ok := s.rosterCache[key]
	s.rosterMu.RUnlock()
	if ok && now.Sub(c.updatedAt) < rosterCacheTTL {
		return c.table, nil
	}

	var (
		table roster.Table
		err   error
	)
	if all {
		table, err = s.roster.LoadAll(ctx)
	} else {
		table, err = s.roster.Load(ctx, tab)
	}
	if err != nil {
		return roster.Table{}, err
	}

	s.rosterMu.Lock()
	s.rosterCache[key] = rosterCache{table: table, updatedAt: now}
	s.rosterMu.Unlock()
	return table, nil
}
