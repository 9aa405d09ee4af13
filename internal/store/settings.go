package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"menucal/internal/model"
)

// SaveSettings appends a settings row. Older rows are kept as history; the
// newest row is the current configuration.
func (s *Store) SaveSettings(ctx context.Context, st *model.Settings) error {
	recipients := st.Recipients
	if recipients == nil {
		recipients = []string{}
	}
	recipientsJSON, err := json.Marshal(recipients)
	if err != nil {
		return fmt.Errorf("store: marshal recipients: %w", err)
	}

	var change sql.NullString
	if st.Schedule.SeasonChangeDate != "" {
		change = sql.NullString{String: st.Schedule.SeasonChangeDate, Valid: true}
	}

	createdAt := s.timestamp()
	res, err := s.conn.ExecContext(ctx, `
		INSERT INTO menu_settings (anchor_date, lead_days, season, season_change_date, recipient_emails, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		st.Schedule.AnchorDate,
		st.Schedule.LeadDays,
		st.Schedule.Season,
		change,
		string(recipientsJSON),
		createdAt,
	)
	if err != nil {
		return fmt.Errorf("store: insert settings: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("store: settings id: %w", err)
	}
	st.ID = id
	st.CreatedAt = createdAt
	return nil
}

// LatestSettings returns the newest settings row or ErrNotFound.
func (s *Store) LatestSettings(ctx context.Context) (*model.Settings, error) {
	st := &model.Settings{}
	var (
		change         sql.NullString
		recipientsJSON string
	)
	err := s.conn.QueryRowContext(ctx, `
		SELECT id, anchor_date, lead_days, season, season_change_date, recipient_emails, created_at
		FROM menu_settings
		ORDER BY id DESC
		LIMIT 1
	`).Scan(
		&st.ID,
		&st.Schedule.AnchorDate,
		&st.Schedule.LeadDays,
		&st.Schedule.Season,
		&change,
		&recipientsJSON,
		&st.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get settings: %w", err)
	}

	st.Schedule.SeasonChangeDate = change.String
	if err := json.Unmarshal([]byte(recipientsJSON), &st.Recipients); err != nil {
		return nil, fmt.Errorf("store: unmarshal recipients: %w", err)
	}
	return st, nil
}
