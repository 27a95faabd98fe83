package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"
)

// TxType tags what a submitted transaction does. It selects the side effect
// run once the transaction completes.
type TxType int

const (
	TxCommon TxType = iota
	TxTransferCoin
	TxAddToken
	TxAddCollection
	TxTransferNFT
	TxFCL
	TxClaimDomain
	TxStakeFlow
	TxUnlinkAccount
	TxEditChildAccount
	TxMoveAsset
)

var txTypeNames = [...]string{
	"common", "transferCoin", "addToken", "addCollection", "transferNFT",
	"fclTransaction", "claimDomain", "stakeFlow", "unlinkAccount",
	"editChildAccount", "moveAsset",
}

func (t TxType) String() string {
	if int(t) < 0 || int(t) >= len(txTypeNames) {
		return fmt.Sprintf("TxType(%d)", int(t))
	}
	return txTypeNames[t]
}

// ParseTxType is the inverse of String.
func ParseTxType(s string) (TxType, error) {
	for i, n := range txTypeNames {
		if n == s {
			return TxType(i), nil
		}
	}
	return 0, fmt.Errorf("unknown transaction type %q", s)
}

// ChainStatus is the raw transaction status reported by the chain. Values
// are ordered; comparisons like >= StatusSealed are meaningful.
type ChainStatus int

const (
	StatusUnknown ChainStatus = iota
	StatusPending
	StatusFinalized
	StatusExecuted
	StatusSealed
	StatusExpired
)

var chainStatusNames = [...]string{"unknown", "pending", "finalized", "executed", "sealed", "expired"}

func (s ChainStatus) String() string {
	if int(s) < 0 || int(s) >= len(chainStatusNames) {
		return "unknown"
	}
	return chainStatusNames[s]
}

// ParseChainStatus accepts names case-insensitively. Unrecognized input is
// StatusUnknown.
func ParseChainStatus(s string) ChainStatus {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, n := range chainStatusNames {
		if n == s {
			return ChainStatus(i)
		}
	}
	return StatusUnknown
}

// InternalStatus is the wallet's view of a transaction.
type InternalStatus string

const (
	InternalPending InternalStatus = "pending"
	InternalSuccess InternalStatus = "success"
	InternalFailed  InternalStatus = "failed"
)

// DeriveInternalStatus maps a chain status to the wallet status. Anything
// below executed is pending. Expired transactions never ran and count as failed.
func DeriveInternalStatus(status ChainStatus, failed bool) InternalStatus {
	if status < StatusExecuted {
		return InternalPending
	}
	if failed || status == StatusExpired {
		return InternalFailed
	}
	return InternalSuccess
}

// TransactionResult is one status update from the chain.
type TransactionResult struct {
	Status       ChainStatus
	ErrorMessage string
	ErrorCode    int
}

// Failed reports whether the chain reported an execution error.
func (r TransactionResult) Failed() bool {
	return r.ErrorMessage != "" || r.ErrorCode != 0
}

// TransactionHolder tracks one submitted transaction until it completes.
type TransactionHolder struct {
	ID        string
	Network   Network
	CreatedAt time.Time
	Type      TxType
	Payload   []byte // JSON, shape depends on Type
	ScriptID  string

	mu       sync.RWMutex
	status   ChainStatus
	internal InternalStatus
	errMsg   string
}

// NewTransactionHolder builds a pending holder. The id is normalized to lower
// case without 0x prefix.
func NewTransactionHolder(id string, network Network, typ TxType, payload []byte, scriptID string) *TransactionHolder {
	return &TransactionHolder{
		ID:        NormalizeTxID(id),
		Network:   network,
		CreatedAt: time.Now(),
		Type:      typ,
		Payload:   payload,
		ScriptID:  scriptID,
		status:    StatusPending,
		internal:  InternalPending,
	}
}

// NormalizeTxID strips the 0x prefix and lower-cases id.
func NormalizeTxID(id string) string {
	id = strings.TrimSpace(id)
	id = strings.TrimPrefix(strings.TrimPrefix(id, "0x"), "0X")
	return strings.ToLower(id)
}

// Apply records a chain update and returns the derived internal status.
func (h *TransactionHolder) Apply(r TransactionResult) InternalStatus {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.status = r.Status
	h.internal = DeriveInternalStatus(r.Status, r.Failed())
	h.errMsg = r.ErrorMessage
	return h.internal
}

func (h *TransactionHolder) Status() ChainStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.status
}

func (h *TransactionHolder) InternalStatus() InternalStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.internal
}

func (h *TransactionHolder) ErrorMessage() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.errMsg
}

// Snapshot returns a serializable view of the holder.
func (h *TransactionHolder) Snapshot() TransactionRecord {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return TransactionRecord{
		ID:           h.ID,
		Network:      h.Network,
		Type:         h.Type.String(),
		Status:       h.internal,
		ChainStatus:  h.status.String(),
		ErrorMessage: h.errMsg,
		ErrorCode:    ParseErrorCode(h.errMsg),
		ScriptID:     h.ScriptID,
		CreatedAt:    h.CreatedAt,
	}
}

// TransactionRecord is the history entry written when a holder completes.
type TransactionRecord struct {
	ID           string         `json:"id"            db:"tx_id"`
	Network      Network        `json:"network"       db:"network"`
	Type         string         `json:"type"          db:"tx_type"`
	Status       InternalStatus `json:"status"        db:"status"`
	ChainStatus  string         `json:"chainStatus"   db:"chain_status"`
	ErrorMessage string         `json:"errorMessage"  db:"error_message"`
	ErrorCode    int            `json:"errorCode"     db:"error_code"`
	ScriptID     string         `json:"scriptId"      db:"script_id"`
	CreatedAt    time.Time      `json:"createdAt"     db:"created_at"`
	CompletedAt  time.Time      `json:"completedAt"   db:"completed_at"`
}

// DecodePayload decodes a holder payload into T.
func DecodePayload[T any](h *TransactionHolder) (T, error) {
	var v T
	if len(h.Payload) == 0 {
		return v, fmt.Errorf("transaction %s has no payload", h.ID)
	}
	if err := json.Unmarshal(h.Payload, &v); err != nil {
		return v, fmt.Errorf("decode %s payload: %w", h.Type, err)
	}
	return v, nil
}

// AddTokenPayload is attached to TxAddToken.
type AddTokenPayload struct {
	Symbol          string `json:"symbol"`
	ContractName    string `json:"contractName"`
	ContractAddress string `json:"contractAddress"`
}

// AddCollectionPayload is attached to TxAddCollection.
type AddCollectionPayload struct {
	ContractName string `json:"contractName"`
	Name         string `json:"name"`
}

// TransferNFTPayload is attached to TxTransferNFT.
type TransferNFTPayload struct {
	NFT struct {
		ID string `json:"id"`
	} `json:"nft"`
	From string `json:"from"`
	To   string `json:"to"`
}
