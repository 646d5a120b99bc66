package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"
)

// Setting is an operator-editable key/value pair (business hours, transfer
// destination, voicemail greeting and so on).
type Setting struct {
	Key       string    `json:"setting_key"`
	Value     string    `json:"setting_value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Setting returns the value for a key, or the empty string when unset.
// Read errors are logged rather than returned so callers can always fall back
// to their defaults.
func (s *Store) Setting(key string) string {
	var value string
	err := s.db.QueryRow(
		"SELECT setting_value FROM system_settings WHERE setting_key = ?", key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return ""
	}
	if err != nil {
		log.Printf("[store] failed to read setting %q: %v", key, err)
		return ""
	}
	return value
}

// SetSetting upserts a setting.
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO system_settings (setting_key, setting_value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(setting_key) DO UPDATE SET setting_value = excluded.setting_value, updated_at = excluded.updated_at
	`, key, value, time.Now().UTC().Unix())
	if err != nil {
		return fmt.Errorf("set setting %q: %w", key, err)
	}
	return nil
}

// AllSettings lists every setting ordered by key.
func (s *Store) AllSettings(ctx context.Context) ([]Setting, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT setting_key, setting_value, updated_at
		FROM system_settings ORDER BY setting_key
	`)
	if err != nil {
		return nil, fmt.Errorf("query settings: %w", err)
	}
	defer rows.Close()

	settings := make([]Setting, 0, 16)
	for rows.Next() {
		var (
			s         Setting
			updatedAt int64
		)
		if err := rows.Scan(&s.Key, &s.Value, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan setting: %w", err)
		}
		s.UpdatedAt = time.Unix(updatedAt, 0).UTC()
		settings = append(settings, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate settings: %w", err)
	}
	return settings, nil
}
