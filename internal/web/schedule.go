package web

import (
	"errors"
	"net/http"
	"time"

	"menucal/internal/feed"
	appLog "menucal/internal/log"
	"menucal/internal/mailer"
	"menucal/internal/menu"
	"menucal/internal/model"
	"menucal/internal/period"
	"menucal/internal/store"
)

const (
	defaultUpcoming = 6
	feedPeriods     = 26
	feedCacheTTL    = 5 * time.Minute
)

type nextPeriodResponse struct {
	Configured bool              `json:"configured"`
	Today      string            `json:"today"`
	Next       *menu.Next        `json:"next,omitempty"`
	LastSent   *store.SendRecord `json:"last_sent,omitempty"`
	Error      string            `json:"error,omitempty"`
	Field      string            `json:"field,omitempty"`
}

func (s *Server) handleNextPeriod(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	today := s.menu.Today()
	resp := nextPeriodResponse{Today: today.Format(model.DateLayout)}

	next, err := s.menu.NextMenu(ctx, today)
	var cfgErr *period.ConfigError
	switch {
	case errors.Is(err, period.ErrNotConfigured):
		writeJSON(w, http.StatusOK, resp)
		return
	case errors.As(err, &cfgErr):
		resp.Configured = true
		resp.Error = cfgErr.Error()
		resp.Field = cfgErr.Field
		writeJSON(w, http.StatusUnprocessableEntity, resp)
		return
	case err != nil:
		appLog.Error("api next-period failed", err)
		writeError(w, http.StatusInternalServerError, "failed to compute next period")
		return
	}

	resp.Configured = true
	resp.Next = next
	if rec, err := s.store.LastSent(ctx); err == nil {
		resp.LastSent = rec
	} else if !errors.Is(err, store.ErrNotFound) {
		appLog.Error("api next-period: last sent lookup failed", err)
	}
	writeJSON(w, http.StatusOK, resp)
}

type settingsResponse struct {
	Configured bool            `json:"configured"`
	Settings   *model.Settings `json:"settings,omitempty"`
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	st, err := s.store.LatestSettings(r.Context())
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusOK, settingsResponse{})
		return
	}
	if err != nil {
		appLog.Error("api settings: load failed", err)
		writeError(w, http.StatusInternalServerError, "failed to load settings")
		return
	}
	writeJSON(w, http.StatusOK, settingsResponse{Configured: true, Settings: st})
}

type settingsRequest struct {
	model.RawSchedule
	Recipients []string `json:"recipients"`
}

func (s *Server) handleSaveSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	st, err := s.menu.UpdateSettings(r.Context(), req.RawSchedule, req.Recipients)
	var (
		cfgErr  *period.ConfigError
		rcptErr *menu.RecipientError
	)
	switch {
	case errors.As(err, &cfgErr):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": cfgErr.Error(), "field": cfgErr.Field})
		return
	case errors.As(err, &rcptErr):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": rcptErr.Error(), "field": "recipients"})
		return
	case err != nil:
		appLog.Error("api settings: save failed", err)
		writeError(w, http.StatusInternalServerError, "failed to save settings")
		return
	}

	s.invalidateFeed()
	writeJSON(w, http.StatusOK, settingsResponse{Configured: true, Settings: st})
}

type upcomingPeriod struct {
	model.MenuPeriod
	EndDate   string `json:"end_date"`
	MenuType  string `json:"menu_type"`
	DateRange string `json:"date_range"`
}

func (s *Server) handleUpcoming(w http.ResponseWriter, r *http.Request) {
	count := parseIntDefault(r.URL.Query().Get("count"), defaultUpcoming)
	if count <= 0 {
		count = defaultUpcoming
	}

	cfg, _, err := s.menu.Schedule(r.Context())
	if errors.Is(err, period.ErrNotConfigured) {
		writeJSON(w, http.StatusOK, map[string]any{"configured": false, "periods": []upcomingPeriod{}})
		return
	}
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	periods, err := period.Upcoming(s.menu.Today(), cfg, count)
	if err != nil {
		appLog.Error("api upcoming failed", err)
		writeError(w, http.StatusInternalServerError, "failed to list upcoming periods")
		return
	}

	out := make([]upcomingPeriod, 0, len(periods))
	for _, p := range periods {
		out = append(out, upcomingPeriod{
			MenuPeriod: p,
			EndDate:    p.EndDate().Format(model.DateLayout),
			MenuType:   p.MenuType(),
			DateRange:  mailer.DateRange(p),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"configured": true, "periods": out})
}

func (s *Server) handleScheduleICS(w http.ResponseWriter, r *http.Request) {
	today := s.menu.Today()
	now := time.Now()

	s.feedMu.RLock()
	fc := s.feedCache
	s.feedMu.RUnlock()
	if fc != nil && fc.today.Equal(today) && now.Sub(fc.updatedAt) < feedCacheTTL {
		writeCalendar(w, fc.body)
		return
	}

	cfg, _, err := s.menu.Schedule(r.Context())
	if errors.Is(err, period.ErrNotConfigured) {
		writeError(w, http.StatusNotFound, "schedule not configured")
		return
	}
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	periods, err := period.Upcoming(today, cfg, feedPeriods)
	if err != nil {
		appLog.Error("api schedule.ics failed", err)
		writeError(w, http.StatusInternalServerError, "failed to build feed")
		return
	}

	body := feed.Build(periods, now)
	s.feedMu.Lock()
	s.feedCache = &feedCache{body: body, today: today, updatedAt: now}
	s.feedMu.Unlock()

	writeCalendar(w, body)
}

func writeCalendar(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `inline; filename="menu-schedule.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}
