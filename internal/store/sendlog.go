package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"menucal/internal/model"
)

// SendRecord is one delivered period.
type SendRecord struct {
	PeriodStart string    `json:"period_start"`
	Season      string    `json:"season"`
	WeekPair    string    `json:"week_pair"`
	Recipients  int       `json:"recipients"`
	Forced      bool      `json:"forced"`
	SentAt      time.Time `json:"sent_at"`
}

// MarkSent records a delivery for p. A scheduled send clears an earlier
// forced flag for the same period; a forced resend never sets it again.
func (s *Store) MarkSent(ctx context.Context, p model.MenuPeriod, recipients int, forced bool) error {
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO send_log (period_start, season, week_pair, recipients, forced, sent_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (period_start) DO UPDATE SET
			recipients = excluded.recipients,
			forced = MIN(send_log.forced, excluded.forced),
			sent_at = excluded.sent_at
	`,
		p.PeriodStart.Format(model.DateLayout),
		string(p.Season),
		string(p.WeekPair),
		recipients,
		forced,
		s.timestamp(),
	)
	if err != nil {
		return fmt.Errorf("store: mark sent: %w", err)
	}
	return nil
}

// WasSent reports whether the period starting at start had its scheduled
// send. Forced sends do not count.
func (s *Store) WasSent(ctx context.Context, start time.Time) (bool, error) {
	var n int
	err := s.conn.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM send_log WHERE period_start = ? AND forced = 0
	`, start.Format(model.DateLayout)).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("store: was sent: %w", err)
	}
	return n > 0, nil
}

// LastSent returns the most recent delivery or ErrNotFound.
func (s *Store) LastSent(ctx context.Context) (*SendRecord, error) {
	r := &SendRecord{}
	err := s.conn.QueryRowContext(ctx, `
		SELECT period_start, season, week_pair, recipients, forced, sent_at
		FROM send_log
		ORDER BY sent_at DESC
		LIMIT 1
	`).Scan(&r.PeriodStart, &r.Season, &r.WeekPair, &r.Recipients, &r.Forced, &r.SentAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: last sent: %w", err)
	}
	return r, nil
}
