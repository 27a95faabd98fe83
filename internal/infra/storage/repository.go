package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/vietddude/walletsync/internal/core/domain"
)

// PreferenceStore persists small session values (selected account, network,
// filters) as strings.
type PreferenceStore interface {
	// Get returns the value for key; found is false when unset
	Get(ctx context.Context, key string) (value string, found bool, err error)

	// Set stores value under key
	Set(ctx context.Context, key, value string) error

	// Delete removes key; missing keys are not an error
	Delete(ctx context.Context, key string) error
}

// TokenCache keeps the last activated-token snapshot per address so a
// session can render before the first refresh completes.
type TokenCache interface {
	// SaveTokens replaces the snapshot for (network, address)
	SaveTokens(ctx context.Context, network domain.Network, addr domain.Address, tokens []domain.Token) error

	// LoadTokens returns the snapshot; found is false when none is cached
	LoadTokens(ctx context.Context, network domain.Network, addr domain.Address) (tokens []domain.Token, found bool, err error)
}

// TransactionHistoryRepository stores completed transactions.
type TransactionHistoryRepository interface {
	// Save inserts or replaces a record
	Save(ctx context.Context, rec *domain.TransactionRecord) error

	// GetByID returns nil, nil when the id is unknown
	GetByID(ctx context.Context, id string) (*domain.TransactionRecord, error)

	// ListRecent returns up to limit records on network, newest first
	ListRecent(ctx context.Context, network domain.Network, limit int) ([]*domain.TransactionRecord, error)

	// DeleteOlderThan removes records completed before the cutoff
	DeleteOlderThan(ctx context.Context, network domain.Network, before time.Time) (int64, error)
}

// Preference keys
const (
	KeyNetwork     = "network"
	KeyTokenFilter = "token_filter"
)

func KeySelectedAccount(uid string) string {
	return fmt.Sprintf("selected_account:%s", uid)
}

func KeyPublicKey(uid string) string {
	return fmt.Sprintf("public_key:%s", uid)
}

func KeyCustomTokens(network domain.Network) string {
	return fmt.Sprintf("custom_tokens:%s", network)
}
