package web

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"menucal/internal/asset"
	"menucal/internal/composite"
	appLog "menucal/internal/log"
	"menucal/internal/menu"
	"menucal/internal/model"
	"menucal/internal/notify"
	"menucal/internal/store"
)

const maxUploadBytes = 20 << 20

type templateDTO struct {
	model.Template
	Remote   bool   `json:"remote"`
	ImageURL string `json:"image_url"`
}

func templateImageURL(season string, week int) string {
	return fmt.Sprintf("/api/templates/image?season=%s&week=%d", season, week)
}

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.ListTemplates(r.Context())
	if err != nil {
		appLog.Error("api templates: list failed", err)
		writeError(w, http.StatusInternalServerError, "failed to list templates")
		return
	}
	out := make([]templateDTO, 0, len(list))
	for _, t := range list {
		out = append(out, templateDTO{
			Template: t,
			Remote:   asset.IsRemote(t.Ref),
			ImageURL: templateImageURL(t.Season, t.Week),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"templates": out})
}

// parseSlot validates a (season, week) pair. The dates header lives in
// season "dates" as week 0; menu templates use weeks 1-4.
func parseSlot(seasonRaw, weekRaw string) (string, int, error) {
	seasonRaw = strings.ToLower(strings.TrimSpace(seasonRaw))
	if seasonRaw == model.DatesSeason {
		if weekRaw != "" && weekRaw != "0" {
			return "", 0, errors.New("the dates header uses week 0")
		}
		return model.DatesSeason, 0, nil
	}
	season, err := model.ParseSeason(seasonRaw)
	if err != nil {
		return "", 0, errors.New("season must be summer, winter or dates")
	}
	week, err := strconv.Atoi(strings.TrimSpace(weekRaw))
	if err != nil || week < 1 || week > 4 {
		return "", 0, errors.New("week must be 1-4")
	}
	return string(season), week, nil
}

// imageExt sniffs data and returns the file extension for its format.
func imageExt(data []byte) (string, error) {
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	if format == "jpeg" {
		return ".jpg", nil
	}
	return "." + format, nil
}

// handleUploadTemplate accepts multipart form fields season, week and
// either file (an image upload) or url (a remotely hosted image).
func (s *Server) handleUploadTemplate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}

	season, week, err := parseSlot(r.FormValue("season"), r.FormValue("week"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var ref string
	if remote := strings.TrimSpace(r.FormValue("url")); remote != "" {
		if !asset.IsRemote(remote) {
			writeError(w, http.StatusBadRequest, "url must be http(s)")
			return
		}
		data, err := s.blobs.Load(ctx, remote)
		if err != nil {
			writeError(w, http.StatusBadGateway, "failed to fetch template: "+err.Error())
			return
		}
		if _, err := imageExt(data); err != nil {
			writeError(w, http.StatusBadRequest, "url does not point at a supported image")
			return
		}
		ref = remote
	} else {
		file, _, err := r.FormFile("file")
		if err != nil {
			writeError(w, http.StatusBadRequest, "file or url is required")
			return
		}
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			writeError(w, http.StatusBadRequest, "failed to read upload")
			return
		}
		ext, err := imageExt(data)
		if err != nil {
			writeError(w, http.StatusBadRequest, "file is not a supported image")
			return
		}
		if ref, err = s.blobs.PutTemplate(data, ext); err != nil {
			appLog.Error("api templates: store upload failed", err)
			writeError(w, http.StatusInternalServerError, "failed to store template")
			return
		}
	}

	tpl := &model.Template{Season: season, Week: week, Ref: ref}
	previous, err := s.store.PutTemplate(ctx, tpl)
	if err != nil {
		appLog.Error("api templates: save failed", err)
		_ = s.blobs.Delete(ref)
		writeError(w, http.StatusInternalServerError, "failed to save template")
		return
	}
	if previous != "" && previous != ref {
		if err := s.blobs.Delete(previous); err != nil {
			appLog.Warn("api templates: old blob not removed", "ref", previous, "err", err)
		}
	}

	s.record(ctx, notify.Event{
		Action:  "template_uploaded",
		Details: fmt.Sprintf("%s week %d", season, week),
		Status:  model.StatusSuccess,
		Routine: true,
	})
	writeJSON(w, http.StatusCreated, templateDTO{
		Template: *tpl,
		Remote:   asset.IsRemote(ref),
		ImageURL: templateImageURL(season, week),
	})
}

func (s *Server) handleDeleteTemplate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	season, week, err := parseSlot(q.Get("season"), q.Get("week"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ref, err := s.store.DeleteTemplate(ctx, season, week)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "template not found")
		return
	}
	if err != nil {
		appLog.Error("api templates: delete failed", err)
		writeError(w, http.StatusInternalServerError, "failed to delete template")
		return
	}
	if err := s.blobs.Delete(ref); err != nil {
		appLog.Warn("api templates: blob not removed", "ref", ref, "err", err)
	}

	s.record(ctx, notify.Event{
		Action:  "template_deleted",
		Details: fmt.Sprintf("%s week %d", season, week),
		Status:  model.StatusSuccess,
		Routine: true,
	})
	writeJSON(w, http.StatusOK, map[string]any{"deleted": true})
}

func (s *Server) handleTemplateImage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	season, week, err := parseSlot(q.Get("season"), q.Get("week"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	tpl, err := s.store.GetTemplate(ctx, season, week)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "template not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load template")
		return
	}
	data, err := s.blobs.Load(ctx, tpl.Ref)
	if err != nil {
		appLog.Error("api templates: load image failed", err, "ref", tpl.Ref)
		writeError(w, http.StatusBadGateway, "failed to load template image")
		return
	}
	http.ServeContent(w, r, "", tpl.CreatedAt, bytes.NewReader(data))
}

// handlePreview merges one template week with its dates header.
//
// GET /api/preview?season=summer&week=1&date=2024-01-15
//   - date: first day of the week shown in the header (default today)
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	season, err := model.ParseSeason(q.Get("season"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "season must be summer or winter")
		return
	}
	week, err := strconv.Atoi(q.Get("week"))
	if err != nil || week < 1 || week > 4 {
		writeError(w, http.StatusBadRequest, "week must be 1-4")
		return
	}
	start := s.menu.Today()
	if raw := q.Get("date"); raw != "" {
		if start, err = model.ParseDate(raw); err != nil {
			writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
	}

	ref, png, err := s.menu.Preview(r.Context(), season, week, start)
	if err != nil {
		status, msg := previewErrorStatus(err)
		if status >= http.StatusInternalServerError {
			appLog.Error("api preview failed", err, "season", season, "week", week)
		}
		writeError(w, status, msg)
		return
	}

	s.record(r.Context(), notify.Event{
		Action:  "menu_preview",
		Details: fmt.Sprintf("%s week %d starting %s", season, week, start.Format(model.DateLayout)),
		Status:  model.StatusSuccess,
		Routine: true,
	})
	w.Header().Set("X-Artifact-URL", "/"+ref)
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

func previewErrorStatus(err error) (int, string) {
	var (
		missing *menu.MissingTemplatesError
		invalid *composite.InvalidImageError
		compErr *composite.CompositingError
	)
	switch {
	case errors.As(err, &missing):
		return http.StatusNotFound, missing.Error()
	case errors.As(err, &invalid):
		return http.StatusUnprocessableEntity, invalid.Error()
	case errors.As(err, &compErr):
		return http.StatusUnprocessableEntity, compErr.Error()
	default:
		return http.StatusInternalServerError, "failed to generate preview"
	}
}

func (s *Server) handleArtifact(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	path, err := s.blobs.Path(asset.ArtifactsDir + "/" + name)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid artifact name")
		return
	}
	w.Header().Set("Cache-Control", "public, max-age="+strconv.Itoa(int((24*time.Hour).Seconds())))
	http.ServeFile(w, r, path)
}
