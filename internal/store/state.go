package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
)

const (
	keyServiceActive = "service_active"
	keyDebugMode     = "debug_mode"
)

// ServiceActive reports whether scheduled sending is enabled. A fresh
// install starts paused.
func (s *Store) ServiceActive(ctx context.Context) (bool, error) {
	return s.flag(ctx, keyServiceActive)
}

func (s *Store) SetServiceActive(ctx context.Context, active bool) error {
	return s.setFlag(ctx, keyServiceActive, active)
}

// DebugMode makes every check send immediately, ignoring the send date.
func (s *Store) DebugMode(ctx context.Context) (bool, error) {
	return s.flag(ctx, keyDebugMode)
}

func (s *Store) SetDebugMode(ctx context.Context, on bool) error {
	return s.setFlag(ctx, keyDebugMode, on)
}

func (s *Store) flag(ctx context.Context, key string) (bool, error) {
	var raw string
	err := s.conn.QueryRowContext(ctx, `SELECT value FROM service_state WHERE key = ?`, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("store: get %s: %w", key, err)
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("store: parse %s=%q: %w", key, raw, err)
	}
	return v, nil
}

func (s *Store) setFlag(ctx context.Context, key string, v bool) error {
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO service_state (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, strconv.FormatBool(v), s.timestamp())
	if err != nil {
		return fmt.Errorf("store: set %s: %w", key, err)
	}
	return nil
}
