package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
)

// KVEntry is a cached value with its write time, used for freshness checks
// such as the one-hour recommendation window.
type KVEntry struct {
	Key       string          `json:"key"`
	Value     json.RawMessage `json:"value"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// GetValue reads a cache entry. Returns pgx.ErrNoRows when the key is
// absent.
func (s *Store) GetValue(ctx context.Context, key string) (*KVEntry, error) {
	var e KVEntry
	var value []byte
	err := s.db.QueryRow(ctx, `
		SELECT key, value, updated_at FROM kv_cache WHERE key = $1
	`, key).Scan(&e.Key, &value, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	e.Value = json.RawMessage(value)
	return &e, nil
}

// SetValue writes a cache entry, replacing any previous value.
func (s *Store) SetValue(ctx context.Context, key string, value json.RawMessage) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO kv_cache (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`, key, value)
	return err
}

// DeleteValue removes a cache entry. Missing keys are not an error.
func (s *Store) DeleteValue(ctx context.Context, key string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM kv_cache WHERE key = $1`, key)
	return err
}

// IsNotFound reports whether err is the row-missing sentinel, so callers
// don't import pgx for the comparison.
func IsNotFound(err error) bool {
	return err == pgx.ErrNoRows
}
