package web

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	appLog "menucal/internal/log"
	"menucal/internal/mailer"
	"menucal/internal/menu"
	"menucal/internal/model"
	"menucal/internal/notify"
	"menucal/internal/period"
	"menucal/internal/store"
)

type serviceStateResponse struct {
	Active      bool       `json:"active"`
	DebugMode   bool       `json:"debug_mode"`
	SMTPEnabled bool       `json:"smtp_enabled"`
	NextCheck   *time.Time `json:"next_check,omitempty"`
}

type toggleRequest struct {
	Enabled *bool `json:"enabled"`
}

func (s *Server) handleServiceState(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	active, err := s.store.ServiceActive(ctx)
	if err != nil {
		appLog.Error("api service-state failed", err)
		writeError(w, http.StatusInternalServerError, "failed to read service state")
		return
	}
	debug, err := s.store.DebugMode(ctx)
	if err != nil {
		appLog.Error("api service-state failed", err)
		writeError(w, http.StatusInternalServerError, "failed to read debug mode")
		return
	}

	resp := serviceStateResponse{
		Active:      active,
		DebugMode:   debug,
		SMTPEnabled: s.mailer != nil,
	}
	if s.scheduler != nil {
		if next := s.scheduler.Next(); !next.IsZero() {
			resp.NextCheck = &next
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSetServiceState(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req toggleRequest
	if err := decodeJSON(w, r, &req); err != nil || req.Enabled == nil {
		writeError(w, http.StatusBadRequest, `expected {"enabled": true|false}`)
		return
	}
	if err := s.store.SetServiceActive(ctx, *req.Enabled); err != nil {
		appLog.Error("api service-state: update failed", err)
		writeError(w, http.StatusInternalServerError, "failed to update service state")
		return
	}

	details := "Menu service paused"
	if *req.Enabled {
		details = "Menu service started"
	}
	s.record(ctx, notify.Event{Action: "service_state", Details: details, Status: model.StatusSuccess})
	s.handleServiceState(w, r)
}

func (s *Server) handleDebugMode(w http.ResponseWriter, r *http.Request) {
	debug, err := s.store.DebugMode(r.Context())
	if err != nil {
		appLog.Error("api debug-mode failed", err)
		writeError(w, http.StatusInternalServerError, "failed to read debug mode")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"enabled": debug})
}

func (s *Server) handleSetDebugMode(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req toggleRequest
	if err := decodeJSON(w, r, &req); err != nil || req.Enabled == nil {
		writeError(w, http.StatusBadRequest, `expected {"enabled": true|false}`)
		return
	}
	if err := s.store.SetDebugMode(ctx, *req.Enabled); err != nil {
		appLog.Error("api debug-mode: update failed", err)
		writeError(w, http.StatusInternalServerError, "failed to update debug mode")
		return
	}

	status := model.StatusSuccess
	details := "Debug mode disabled"
	if *req.Enabled {
		status = model.StatusWarning
		details = "Debug mode enabled: every check sends the next menu"
	}
	s.record(ctx, notify.Event{Action: "debug_mode", Details: details, Status: status})
	writeJSON(w, http.StatusOK, map[string]bool{"enabled": *req.Enabled})
}

func (s *Server) handleForceSend(w http.ResponseWriter, r *http.Request) {
	p, err := s.menu.ForceSend(r.Context(), s.menu.Today())
	if err != nil {
		var (
			missing *menu.MissingTemplatesError
			cfgErr  *period.ConfigError
		)
		switch {
		case errors.Is(err, period.ErrNotConfigured):
			writeError(w, http.StatusConflict, "schedule not configured")
		case errors.As(err, &cfgErr):
			writeError(w, http.StatusConflict, cfgErr.Error())
		case errors.As(err, &missing):
			writeError(w, http.StatusConflict, missing.Error())
		case errors.Is(err, menu.ErrMailDisabled):
			writeError(w, http.StatusServiceUnavailable, err.Error())
		case errors.Is(err, mailer.ErrNoRecipients):
			writeError(w, http.StatusBadRequest, "no recipients configured")
		default:
			writeError(w, http.StatusBadGateway, "failed to send menu: "+err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sent": true, "period": p, "menu_type": p.MenuType()})
}

type testEmailRequest struct {
	To string `json:"to"`
}

// handleTestEmail sends a plain test message to the given address, or to
// the saved recipients when none is given.
func (s *Server) handleTestEmail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if s.mailer == nil {
		writeError(w, http.StatusServiceUnavailable, menu.ErrMailDisabled.Error())
		return
	}

	var req testEmailRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	var to []string
	if strings.TrimSpace(req.To) != "" {
		clean, err := menu.ValidateRecipients([]string{req.To})
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		to = clean
	} else {
		st, err := s.store.LatestSettings(ctx)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusInternalServerError, "failed to load settings")
			return
		}
		if st != nil {
			to = st.Recipients
		}
	}
	if len(to) == 0 {
		writeError(w, http.StatusBadRequest, "no recipients configured")
		return
	}

	body := fmt.Sprintf("This is a test email from the menu service, sent %s.\n\nIf you received it, menu emails will reach you too.\n",
		time.Now().Format(time.RFC1123))
	if err := s.mailer.SendText(ctx, to, "Menu service test email", body); err != nil {
		s.record(ctx, notify.Event{Action: "test_email", Details: err.Error(), Status: model.StatusError})
		writeError(w, http.StatusBadGateway, "failed to send test email: "+err.Error())
		return
	}
	s.record(ctx, notify.Event{
		Action:  "test_email",
		Details: fmt.Sprintf("Test email sent to %s", strings.Join(to, ", ")),
		Status:  model.StatusSuccess,
	})
	writeJSON(w, http.StatusOK, map[string]any{"sent": true, "to": to})
}

func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	limit := parseIntDefault(r.URL.Query().Get("limit"), 50)
	if limit > 500 {
		limit = 500
	}
	entries, err := s.store.RecentActivity(r.Context(), limit)
	if err != nil {
		appLog.Error("api activity failed", err)
		writeError(w, http.StatusInternalServerError, "failed to load activity")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"activity": entries})
}

// handleClearActivity empties the log and leaves a single entry recording
// the clear, atomically.
func (s *Server) handleClearActivity(w http.ResponseWriter, r *http.Request) {
	var cleared int64
	err := s.store.InTx(r.Context(), func(tx *store.Store) error {
		n, err := tx.ClearActivity(r.Context())
		if err != nil {
			return err
		}
		cleared = n
		return tx.LogActivity(r.Context(), &model.Activity{
			Action:  "activity_cleared",
			Details: fmt.Sprintf("Cleared %d entries", n),
			Status:  model.StatusSuccess,
		})
	})
	if err != nil {
		appLog.Error("api activity clear failed", err)
		writeError(w, http.StatusInternalServerError, "failed to clear activity")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cleared": cleared})
}
