package chain

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/vietddude/walletsync/internal/core/domain"
)

// Ledger defines the ledger-native chain access the wallet needs.
// Signing and transaction submission live outside this boundary.
type Ledger interface {
	// FetchAccount returns the on-chain account with its keys and balance
	FetchAccount(ctx context.Context, addr domain.Address) (*Account, error)

	// FindAccountsByKey returns every account on this network that lists
	// publicKey as an active full-weight key
	FindAccountsByKey(ctx context.Context, publicKey string) ([]*domain.MainAccount, error)

	// AvailableBalances returns the spendable FLOW of each address in one
	// script call. Keyed by Address.String()
	AvailableBalances(ctx context.Context, addrs []domain.Address) (map[string]decimal.Decimal, error)

	// SubscribeTransactionStatus streams status updates for one transaction
	SubscribeTransactionStatus(ctx context.Context, txID string) (Subscription, error)
}

// Subscription is a live status stream. Updates is closed when the stream
// ends; Close is safe to call more than once.
type Subscription interface {
	Updates() <-chan domain.TransactionResult
	Close() error
}

// Account is the raw ledger account state.
type Account struct {
	Address domain.Address
	Balance decimal.Decimal
	Keys    []domain.AccountKey
}

// EVM defines the EVM JSON-RPC access the wallet needs.
type EVM interface {
	// NativeBalance returns the FLOW balance of an EVM address in whole units
	NativeBalance(ctx context.Context, addr domain.Address) (decimal.Decimal, error)
}
