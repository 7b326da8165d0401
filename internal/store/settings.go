package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Setting keys.
const (
	SettingTuning = "tuning"
)

// SettingsRepository reads and writes JSON-encoded settings.
type SettingsRepository struct {
	db *sql.DB
}

// Settings returns the settings repository for this store.
func (s *Store) Settings() *SettingsRepository {
	return &SettingsRepository{db: s.db}
}

// Get returns the raw value stored under key.
func (r *SettingsRepository) Get(key string) (json.RawMessage, error) {
	var value string
	err := r.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return json.RawMessage(value), nil
}

// Set stores a raw JSON value under key, replacing any previous value.
func (r *SettingsRepository) Set(key string, value json.RawMessage) error {
	if !json.Valid(value) {
		return fmt.Errorf("setting %q: value is not valid JSON", key)
	}
	_, err := r.db.Exec(
		`INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, string(value), time.Now(),
	)
	return err
}

// Load decodes the value stored under key into v.
func (r *SettingsRepository) Load(key string, v any) error {
	raw, err := r.Get(key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode setting %q: %w", key, err)
	}
	return nil
}

// Save encodes v and stores it under key.
func (r *SettingsRepository) Save(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode setting %q: %w", key, err)
	}
	return r.Set(key, raw)
}

// Delete removes the value stored under key.
func (r *SettingsRepository) Delete(key string) error {
	result, err := r.db.Exec(`DELETE FROM settings WHERE key = ?`, key)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}
