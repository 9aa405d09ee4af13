// Package web serves the dashboard, its JSON API and the dates header page
// that headless Chromium captures.
package web

import (
	"context"
	"crypto/subtle"
	"embed"
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"menucal/internal/asset"
	"menucal/internal/config"
	appLog "menucal/internal/log"
	"menucal/internal/menu"
	"menucal/internal/notify"
	"menucal/internal/store"
)

// TextSender is satisfied by *mailer.Mailer.
type TextSender interface {
	SendText(ctx context.Context, to []string, subject, body string) error
}

// Scheduler reports when the next automatic check runs; *worker.Worker
// satisfies it.
type Scheduler interface {
	Next() time.Time
}

// Deps are the collaborators a Server needs. Mailer, Scheduler and
// Notifier may be nil.
type Deps struct {
	Config    *config.Config
	Store     *store.Store
	Blobs     *asset.Blobs
	Menu      *menu.Service
	Mailer    TextSender
	Scheduler Scheduler
	Notifier  notify.Notifier
}

// Server provides the dashboard and HTTP API.
type Server struct {
	cfg       *config.Config
	store     *store.Store
	blobs     *asset.Blobs
	menu      *menu.Service
	mailer    TextSender
	scheduler Scheduler
	notifier  notify.Notifier
	mux       *http.ServeMux

	// The ICS feed only changes when settings are saved or the day rolls
	// over, so it is cached and dropped on every settings write.
	feedMu    sync.RWMutex
	feedCache *feedCache
}

type feedCache struct {
	body      string
	today     time.Time
	updatedAt time.Time
}

// embeddedStatic holds the single-page dashboard.
//
//go:embed all:static
var embeddedStatic embed.FS

func NewServer(d Deps) *Server {
	s := &Server{
		cfg:       d.Config,
		store:     d.Store,
		blobs:     d.Blobs,
		menu:      d.Menu,
		mailer:    d.Mailer,
		scheduler: d.Scheduler,
		notifier:  d.Notifier,
		mux:       http.NewServeMux(),
	}
	if s.notifier == nil {
		s.notifier = notify.Func(func(context.Context, notify.Event) error { return nil })
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		h = s.basicAuthMiddleware(h)
	}
	return logRequests(h)
}

func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware guards everything except /health and the /header page
// (headless Chromium fetches it without credentials).
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" || r.URL.Path == "/header" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="Menucal", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		started := time.Now()
		next.ServeHTTP(rec, r)
		appLog.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(started).Round(time.Microsecond),
		)
	})
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /header", s.handleHeader)

	s.mux.HandleFunc("GET /api/next-period", s.handleNextPeriod)
	s.mux.HandleFunc("GET /api/settings", s.handleGetSettings)
	s.mux.HandleFunc("POST /api/settings", s.handleSaveSettings)
	s.mux.HandleFunc("GET /api/upcoming", s.handleUpcoming)
	s.mux.HandleFunc("GET /api/schedule.ics", s.handleScheduleICS)

	s.mux.HandleFunc("GET /api/templates", s.handleListTemplates)
	s.mux.HandleFunc("POST /api/templates", s.handleUploadTemplate)
	s.mux.HandleFunc("DELETE /api/templates", s.handleDeleteTemplate)
	s.mux.HandleFunc("GET /api/templates/image", s.handleTemplateImage)
	s.mux.HandleFunc("GET /api/preview", s.handlePreview)
	s.mux.HandleFunc("GET /artifacts/{name}", s.handleArtifact)

	s.mux.HandleFunc("GET /api/service-state", s.handleServiceState)
	s.mux.HandleFunc("POST /api/service-state", s.handleSetServiceState)
	s.mux.HandleFunc("GET /api/debug-mode", s.handleDebugMode)
	s.mux.HandleFunc("POST /api/debug-mode", s.handleSetDebugMode)
	s.mux.HandleFunc("POST /api/force-send", s.handleForceSend)
	s.mux.HandleFunc("POST /api/test-email", s.handleTestEmail)

	s.mux.HandleFunc("GET /api/activity", s.handleActivity)
	s.mux.HandleFunc("POST /api/activity/clear", s.handleClearActivity)

	s.mux.Handle("/", s.staticFileServer())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		appLog.Error("health check: database unreachable", err)
		http.Error(w, "database unavailable", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// staticFileServer serves the embedded dashboard. Unknown /api paths get a
// plain 404 rather than HTML.
func (s *Server) staticFileServer() http.Handler {
	sub, err := fs.Sub(embeddedStatic, "static")
	if err != nil {
		appLog.Error("failed to initialize embedded static filesystem", err)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "static UI not available", http.StatusServiceUnavailable)
		})
	}

	fileServer := http.FileServer(http.FS(sub))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		if path == "/api" || strings.HasPrefix(path, "/api/") {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		fileServer.ServeHTTP(w, r)
	})
}

// record writes a dashboard action to the activity log and alert channels.
func (s *Server) record(ctx context.Context, ev notify.Event) {
	if err := s.notifier.Notify(ctx, ev); err != nil {
		appLog.Error("record activity failed", err, "action", ev.Action)
	}
}

func (s *Server) invalidateFeed() {
	s.feedMu.Lock()
	s.feedCache = nil
	s.feedMu.Unlock()
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

// decodeJSON reads a small JSON request body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.New("invalid JSON body: " + err.Error())
	}
	return nil
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
