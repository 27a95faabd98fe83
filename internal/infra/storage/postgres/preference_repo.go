package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// PreferenceRepo implements storage.PreferenceStore using PostgreSQL.
type PreferenceRepo struct {
	db *DB
}

// NewPreferenceRepo creates a new PostgreSQL preference repository.
func NewPreferenceRepo(db *DB) *PreferenceRepo {
	return &PreferenceRepo{db: db}
}

// Get retrieves a preference value.
func (r *PreferenceRepo) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := r.db.GetContext(ctx, &value, `SELECT value FROM wallet_preferences WHERE key = $1`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get preference: %w", err)
	}
	return value, true, nil
}

// Set stores a preference value.
func (r *PreferenceRepo) Set(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO wallet_preferences (key, value, updated_at) VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to set preference: %w", err)
	}
	return nil
}

// Delete removes a preference.
func (r *PreferenceRepo) Delete(ctx context.Context, key string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM wallet_preferences WHERE key = $1`, key); err != nil {
		return fmt.Errorf("failed to delete preference: %w", err)
	}
	return nil
}
