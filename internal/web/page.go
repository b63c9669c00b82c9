package web

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"

	"regattacal/internal/calendar"
	appLog "regattacal/internal/log"
)

//go:embed templates/calendar.html
var templateFS embed.FS

var calendarPage = template.Must(template.ParseFS(templateFS, "templates/calendar.html"))

type calendarPageData struct {
	Grid          calendar.Grid
	UsingFallback bool
}

// handleCalendarPage renders the month grid as a standalone HTML page. The
// poster capture waits for its data-ready attribute.
func (s *Server) handleCalendarPage(w http.ResponseWriter, r *http.Request) {
	data := calendarPageData{
		Grid:          s.monthGrid(r.URL.Query().Get("month")),
		UsingFallback: s.feed.Snapshot().UsingFallback,
	}

	var buf bytes.Buffer
	if err := calendarPage.Execute(&buf, data); err != nil {
		appLog.Error("failed to render calendar page", err)
		writeError(w, http.StatusInternalServerError, "failed to render calendar")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}
