package store

import (
	"context"
	"fmt"

	"menucal/internal/model"
)

const defaultActivityLimit = 50

func (s *Store) LogActivity(ctx context.Context, a *model.Activity) error {
	if a.Status == "" {
		a.Status = model.StatusSuccess
	}
	a.CreatedAt = s.timestamp()

	res, err := s.conn.ExecContext(ctx, `
		INSERT INTO activity_log (action, details, status, created_at)
		VALUES (?, ?, ?, ?)
	`, a.Action, a.Details, string(a.Status), a.CreatedAt)
	if err != nil {
		return fmt.Errorf("store: insert activity: %w", err)
	}
	a.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("store: activity id: %w", err)
	}
	return nil
}

// RecentActivity returns up to limit entries, newest first.
func (s *Store) RecentActivity(ctx context.Context, limit int) ([]model.Activity, error) {
	if limit <= 0 {
		limit = defaultActivityLimit
	}
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, action, details, status, created_at
		FROM activity_log
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list activity: %w", err)
	}
	defer rows.Close()

	out := []model.Activity{}
	for rows.Next() {
		var (
			a      model.Activity
			status string
		)
		if err := rows.Scan(&a.ID, &a.Action, &a.Details, &status, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scan activity: %w", err)
		}
		a.Status = model.ActivityStatus(status)
		out = append(out, a)
	}
	return out, rows.Err()
}

// ClearActivity deletes every entry and reports how many were removed.
func (s *Store) ClearActivity(ctx context.Context) (int64, error) {
	res, err := s.conn.ExecContext(ctx, `DELETE FROM activity_log`)
	if err != nil {
		return 0, fmt.Errorf("store: clear activity: %w", err)
	}
	return res.RowsAffected()
}
