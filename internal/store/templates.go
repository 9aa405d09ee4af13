package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"menucal/internal/model"
)

// PutTemplate creates or replaces the template for (season, week) and
// returns the ref it replaced, if any.
func (s *Store) PutTemplate(ctx context.Context, t *model.Template) (string, error) {
	previous := ""
	old, err := s.GetTemplate(ctx, t.Season, t.Week)
	switch {
	case err == nil:
		previous = old.Ref
	case !errors.Is(err, ErrNotFound):
		return "", err
	}

	t.CreatedAt = s.timestamp()
	_, err = s.conn.ExecContext(ctx, `
		INSERT INTO menu_templates (season, week, ref, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (season, week) DO UPDATE SET ref = excluded.ref, created_at = excluded.created_at
	`, t.Season, t.Week, t.Ref, t.CreatedAt)
	if err != nil {
		return "", fmt.Errorf("store: upsert template: %w", err)
	}

	saved, err := s.GetTemplate(ctx, t.Season, t.Week)
	if err != nil {
		return "", err
	}
	t.ID = saved.ID
	return previous, nil
}

func (s *Store) GetTemplate(ctx context.Context, season string, week int) (*model.Template, error) {
	t := &model.Template{}
	err := s.conn.QueryRowContext(ctx, `
		SELECT id, season, week, ref, created_at
		FROM menu_templates
		WHERE season = ? AND week = ?
	`, season, week).Scan(&t.ID, &t.Season, &t.Week, &t.Ref, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get template: %w", err)
	}
	return t, nil
}

// ListTemplates returns all templates ordered by season then week.
func (s *Store) ListTemplates(ctx context.Context) ([]model.Template, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, season, week, ref, created_at
		FROM menu_templates
		ORDER BY season, week
	`)
	if err != nil {
		return nil, fmt.Errorf("store: list templates: %w", err)
	}
	defer rows.Close()

	out := []model.Template{}
	for rows.Next() {
		var t model.Template
		if err := rows.Scan(&t.ID, &t.Season, &t.Week, &t.Ref, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scan template: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// DeleteTemplate removes the template and returns its ref so the caller can
// drop the blob.
func (s *Store) DeleteTemplate(ctx context.Context, season string, week int) (string, error) {
	t, err := s.GetTemplate(ctx, season, week)
	if err != nil {
		return "", err
	}
	if _, err := s.conn.ExecContext(ctx, `DELETE FROM menu_templates WHERE id = ?`, t.ID); err != nil {
		return "", fmt.Errorf("store: delete template: %w", err)
	}
	return t.Ref, nil
}
