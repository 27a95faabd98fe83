package transaction

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vietddude/walletsync/internal/core/domain"
	"github.com/vietddude/walletsync/internal/core/events"
	"github.com/vietddude/walletsync/internal/infra/storage"
	"github.com/vietddude/walletsync/internal/wallet/metrics"
)

// WalletRefresher reloads the selected account's tokens and info.
type WalletRefresher interface {
	FetchWalletDatas(ctx context.Context) error
}

// StakingRefresher reloads staking state.
type StakingRefresher interface {
	Refresh(ctx context.Context) error
}

// StakingFunc adapts a function to StakingRefresher.
type StakingFunc func(ctx context.Context) error

func (f StakingFunc) Refresh(ctx context.Context) error { return f(ctx) }

// ChildAccountRemover drops an unlinked child from the account graph.
type ChildAccountRemover interface {
	RemoveChildAccount(ctx context.Context, child domain.Address) bool
}

// StorageBalance reports the FLOW needed to cover account storage.
type StorageBalance interface {
	MinimumStorageBalance() decimal.Decimal
}

type Deps struct {
	Sources  map[domain.Network]StatusSource
	Wallet   WalletRefresher
	Staking  StakingRefresher
	Children ChildAccountRemover
	Storage  StorageBalance
	History  storage.TransactionHistoryRepository
	Bus      *events.Bus
}

// FixedStorageFallback is reported as the minimum storage balance when no
// account info is wired.
var FixedStorageFallback = decimal.RequireFromString("0.001")

type entry struct {
	holder *domain.TransactionHolder
	cancel context.CancelFunc
}

// Manager tracks submitted transactions until the chain reports a terminal
// status, then runs the completion side effect for the transaction type.
// All holder state changes happen under mu.
type Manager struct {
	Deps
	log *slog.Logger

	mu      sync.Mutex
	holders []*entry // newest first

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewManager(deps Deps, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		Deps:   deps,
		log:    log.With("component", "transactions"),
		ctx:    ctx,
		cancel: cancel,
	}
}

// NewTransaction starts tracking h. It returns false without error when a
// holder with the same id is already tracked.
func (m *Manager) NewTransaction(ctx context.Context, h *domain.TransactionHolder) (bool, error) {
	source, ok := m.Sources[h.Network]
	if !ok {
		return false, fmt.Errorf("%w: %s", domain.ErrUnsupportedNetwork, h.Network)
	}

	m.mu.Lock()
	if m.index(h.ID) >= 0 {
		m.mu.Unlock()
		m.log.Debug("Transaction already tracked", "tx", h.ID)
		return false, nil
	}
	watchCtx, cancel := context.WithCancel(m.ctx)
	e := &entry{holder: h, cancel: cancel}
	m.holders = slices.Insert(m.holders, 0, e)
	metrics.PendingTransactions.Set(float64(len(m.holders)))
	m.mu.Unlock()

	m.log.Info("Tracking transaction", "tx", h.ID, "type", h.Type, "network", h.Network)
	m.Bus.Publish(events.TransactionsChanged, nil)

	// the stream outlives ctx; only terminal status, Reset or Close end it
	sub, err := source.SubscribeTransactionStatus(watchCtx, h.ID)
	if err != nil {
		cancel()
		m.remove(h.ID)
		m.Bus.Publish(events.TransactionsChanged, nil)
		return false, fmt.Errorf("subscribe to %s: %w", h.ID, err)
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		watch(watchCtx, h.ID, sub, m.onStatus)
	}()
	return true, nil
}

// onStatus applies one chain update. Updates for ids no longer tracked are
// ignored, so a holder completes at most once.
func (m *Manager) onStatus(id string, r domain.TransactionResult) {
	m.mu.Lock()
	i := m.index(id)
	if i < 0 {
		m.mu.Unlock()
		return
	}
	e := m.holders[i]
	status := e.holder.Apply(r)
	if status == domain.InternalPending {
		rec := e.holder.Snapshot()
		m.mu.Unlock()
		m.log.Debug("Transaction status changed", "tx", id, "status", r.Status)
		m.Bus.Publish(events.TransactionStatusChanged, events.TransactionUpdate{Record: rec})
		return
	}
	m.holders = slices.Delete(m.holders, i, i+1)
	e.cancel()
	metrics.PendingTransactions.Set(float64(len(m.holders)))
	m.mu.Unlock()

	m.complete(e.holder, r)
}

func (m *Manager) complete(h *domain.TransactionHolder, r domain.TransactionResult) {
	rec := h.Snapshot()
	rec.CompletedAt = time.Now()
	if r.ErrorCode != 0 {
		rec.ErrorCode = r.ErrorCode
	}

	metrics.TransactionsCompleted.WithLabelValues(rec.Type, string(rec.Status)).Inc()
	if m.History != nil {
		if err := m.History.Save(m.ctx, &rec); err != nil {
			m.log.Warn("Failed to record transaction", "tx", h.ID, "error", err)
		}
	}

	m.Bus.Publish(events.TransactionsChanged, nil)
	m.Bus.Publish(events.TransactionStatusChanged, events.TransactionUpdate{Record: rec})

	if rec.Status == domain.InternalFailed {
		m.fail(h, rec)
		return
	}

	m.log.Info("Transaction sealed", "tx", h.ID, "type", h.Type)
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		if err := m.dispatch(m.ctx, h); err != nil {
			m.log.Warn("Completion handler failed", "tx", h.ID, "type", h.Type, "error", err)
		}
	}()
}

func (m *Manager) fail(h *domain.TransactionHolder, rec domain.TransactionRecord) {
	scriptID := h.ScriptID
	if scriptID == "" {
		scriptID = "empty"
	}
	err := &domain.TransactionFailedError{
		TxID:     h.ID,
		Code:     rec.ErrorCode,
		Message:  rec.ErrorMessage,
		ScriptID: scriptID,
	}
	m.log.Error("Transaction failed", "tx", h.ID, "type", h.Type, "script_id", scriptID, "code", err.Code, "error", err)

	if err.StorageExceeded() {
		minimum := FixedStorageFallback
		if m.Storage != nil {
			minimum = m.Storage.MinimumStorageBalance()
		}
		m.Bus.Publish(events.StorageInsufficient, events.StorageAlert{TxID: h.ID, MinimumBalance: minimum})
	}
}

// dispatch runs the side effect for a sealed transaction.
func (m *Manager) dispatch(ctx context.Context, h *domain.TransactionHolder) error {
	switch h.Type {
	case domain.TxAddToken, domain.TxCommon:
		if m.Wallet == nil {
			return nil
		}
		return m.Wallet.FetchWalletDatas(ctx)
	case domain.TxAddCollection:
		m.Bus.Publish(events.NFTCollectionsChanged, events.TxEffect{TxID: h.ID, Type: h.Type})
	case domain.TxTransferNFT, domain.TxMoveAsset:
		m.Bus.Publish(events.NFTChangedByMoving, events.TxEffect{TxID: h.ID, Type: h.Type})
	case domain.TxStakeFlow:
		// staked amounts come from the staking views; the wallet only
		// reloads the main account's balance and storage
		m.Bus.Publish(events.StakingChanged, events.TxEffect{TxID: h.ID, Type: h.Type})
		if m.Staking == nil {
			return nil
		}
		return m.Staking.Refresh(ctx)
	case domain.TxUnlinkAccount:
		child, err := domain.DecodePayload[domain.ChildAccount](h)
		if err != nil {
			return err
		}
		if m.Children != nil && !m.Children.RemoveChildAccount(ctx, child.Address) {
			m.log.Debug("Unlinked child not in graph", "child", child.Address)
		}
	case domain.TxClaimDomain:
		m.Bus.Publish(events.DomainClaimed, events.TxEffect{TxID: h.ID, Type: h.Type})
	}
	return nil
}

// Reset drops every holder without waiting for its subscription.
func (m *Manager) Reset() {
	m.mu.Lock()
	dropped := m.holders
	m.holders = nil
	metrics.PendingTransactions.Set(0)
	m.mu.Unlock()

	for _, e := range dropped {
		e.cancel()
	}
	if len(dropped) > 0 {
		m.log.Info("Dropped pending transactions", "count", len(dropped))
		m.Bus.Publish(events.TransactionsChanged, nil)
	}
}

// Run resets the manager on wallet reset until ctx is done.
func (m *Manager) Run(ctx context.Context) {
	id, sub := m.Bus.Subscribe(4, events.WillResetWallet)
	defer m.Bus.Unsubscribe(id)

	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-sub:
			if !ok {
				return
			}
			m.Reset()
		}
	}
}

// Close stops every subscription and waits for running handlers.
func (m *Manager) Close() {
	m.cancel()
	m.wg.Wait()
}

func (m *Manager) remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i := m.index(id); i >= 0 {
		m.holders[i].cancel()
		m.holders = slices.Delete(m.holders, i, i+1)
		metrics.PendingTransactions.Set(float64(len(m.holders)))
	}
}

func (m *Manager) index(id string) int {
	id = domain.NormalizeTxID(id)
	return slices.IndexFunc(m.holders, func(e *entry) bool { return e.holder.ID == id })
}
