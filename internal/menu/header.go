package menu

import (
	"context"
	"errors"
	"time"

	"menucal/internal/model"
	"menucal/internal/store"
)

// StoredHeader serves the uploaded dates image (the "dates" slot, week 0)
// for every week.
type StoredHeader struct {
	Templates TemplateStore
	Blobs     Blobs
}

func (h *StoredHeader) RenderHeader(ctx context.Context, _ time.Time, _ int) ([]byte, error) {
	tpl, err := h.Templates.GetTemplate(ctx, model.DatesSeason, 0)
	if errors.Is(err, store.ErrNotFound) {
		return nil, &MissingTemplatesError{Labels: []string{templateLabel(model.DatesSeason, 0)}}
	}
	if err != nil {
		return nil, err
	}
	return h.Blobs.Load(ctx, tpl.Ref)
}

// Available reports whether a dates image has been uploaded.
func (h *StoredHeader) Available(ctx context.Context) (bool, error) {
	_, err := h.Templates.GetTemplate(ctx, model.DatesSeason, 0)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}
