package events

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/vietddude/walletsync/internal/core/domain"
)

// Type names a cross-component signal.
type Type string

const (
	NetworkChanged           Type = "network_changed"
	AccountsLoaded           Type = "accounts_loaded"
	SelectedAccountChanged   Type = "selected_account_changed"
	ChildAccountRemoved      Type = "child_account_removed"
	WalletDataUpdated        Type = "wallet_data_updated"
	NFTChangedByMoving       Type = "nft_changed_by_moving"
	NFTCollectionsChanged    Type = "nft_collections_changed"
	DomainClaimed            Type = "domain_claimed"
	StakingChanged           Type = "staking_changed"
	TransactionsChanged      Type = "transactions_changed"
	TransactionStatusChanged Type = "transaction_status_changed"
	StorageInsufficient      Type = "storage_insufficient"
	WillResetWallet          Type = "will_reset_wallet"
	DidResetWallet           Type = "did_reset_wallet"
)

// Event is one message on the bus. Data holds one of the payload structs
// below, matching Type.
type Event struct {
	Type Type
	Data any
	At   time.Time
}

// Subscriber receives events.
type Subscriber chan Event

type NetworkChange struct {
	From domain.Network
	To   domain.Network
}

type AccountSelection struct {
	Network  domain.Network
	Selected domain.SelectedAccount
}

type ChildRemoval struct {
	Main  domain.Address
	Child domain.Address
}

type TransactionUpdate struct {
	Record domain.TransactionRecord
}

// TxEffect names the sealed transaction behind a side-effect event.
type TxEffect struct {
	TxID string
	Type domain.TxType
}

type StorageAlert struct {
	TxID           string
	MinimumBalance decimal.Decimal
}
