package web

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"
	"strconv"
	"time"

	appLog "menucal/internal/log"
	"menucal/internal/model"
)

//go:embed templates/header.html
var headerFS embed.FS

var headerTmpl = template.Must(template.ParseFS(headerFS, "templates/header.html"))

// schoolDays is how many days from the week start the header lists.
const schoolDays = 5

type headerDay struct {
	Weekday string
	Date    string
}

type headerPage struct {
	Week  int
	Range string
	Days  []headerDay
}

func buildHeaderPage(start time.Time, week int) headerPage {
	page := headerPage{Week: week}
	for i := 0; i < schoolDays; i++ {
		d := start.AddDate(0, 0, i)
		page.Days = append(page.Days, headerDay{
			Weekday: d.Weekday().String(),
			Date:    d.Format("2 Jan"),
		})
	}
	last := start.AddDate(0, 0, schoolDays-1)
	page.Range = start.Format("2 Jan") + " - " + last.Format("2 Jan 2006")
	return page
}

// handleHeader renders the dates header for one template week. Headless
// Chromium waits for [data-ready="true"] before taking the screenshot.
//
// GET /header?start=2024-01-15&week=3
func (s *Server) handleHeader(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start, err := model.ParseDate(q.Get("start"))
	if err != nil {
		http.Error(w, "start must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	week, err := strconv.Atoi(q.Get("week"))
	if err != nil || week < 1 || week > 4 {
		http.Error(w, "week must be 1-4", http.StatusBadRequest)
		return
	}

	var buf bytes.Buffer
	if err := headerTmpl.Execute(&buf, buildHeaderPage(start, week)); err != nil {
		appLog.Error("render header page failed", err)
		http.Error(w, "failed to render header", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(buf.Bytes())
}
