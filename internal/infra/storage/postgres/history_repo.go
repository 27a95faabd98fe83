package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vietddude/walletsync/internal/core/domain"
)

// HistoryRepo implements storage.TransactionHistoryRepository using PostgreSQL.
type HistoryRepo struct {
	db *DB
}

// NewHistoryRepo creates a new PostgreSQL transaction history repository.
func NewHistoryRepo(db *DB) *HistoryRepo {
	return &HistoryRepo{db: db}
}

// Save upserts a completed transaction.
func (r *HistoryRepo) Save(ctx context.Context, rec *domain.TransactionRecord) error {
	query := `
		INSERT INTO transaction_history (
			tx_id, network, tx_type, status, chain_status, error_message, error_code, script_id, created_at, completed_at
		) VALUES (
			:tx_id, :network, :tx_type, :status, :chain_status, :error_message, :error_code, :script_id, :created_at, :completed_at
		)
		ON CONFLICT (tx_id) DO UPDATE SET
			status = EXCLUDED.status,
			chain_status = EXCLUDED.chain_status,
			error_message = EXCLUDED.error_message,
			error_code = EXCLUDED.error_code,
			completed_at = EXCLUDED.completed_at
	`
	if _, err := r.db.NamedExecContext(ctx, query, rec); err != nil {
		return fmt.Errorf("failed to save transaction record: %w", err)
	}
	return nil
}

const selectHistory = `
	SELECT tx_id, network, tx_type, status, chain_status, error_message, error_code, script_id, created_at, completed_at
	FROM transaction_history
`

// GetByID retrieves a record by transaction id.
func (r *HistoryRepo) GetByID(ctx context.Context, id string) (*domain.TransactionRecord, error) {
	var rec domain.TransactionRecord
	err := r.db.GetContext(ctx, &rec, selectHistory+` WHERE tx_id = $1`, domain.NormalizeTxID(id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction record: %w", err)
	}
	return &rec, nil
}

// ListRecent retrieves the newest records for a network.
func (r *HistoryRepo) ListRecent(ctx context.Context, network domain.Network, limit int) ([]*domain.TransactionRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var recs []*domain.TransactionRecord
	err := r.db.SelectContext(ctx, &recs,
		selectHistory+` WHERE network = $1 ORDER BY completed_at DESC LIMIT $2`,
		string(network), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list transaction records: %w", err)
	}
	return recs, nil
}

// DeleteOlderThan prunes records completed before the cutoff.
func (r *HistoryRepo) DeleteOlderThan(ctx context.Context, network domain.Network, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM transaction_history WHERE network = $1 AND completed_at < $2`,
		string(network), before,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old transaction records: %w", err)
	}
	return res.RowsAffected()
}
