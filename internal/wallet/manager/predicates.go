package manager

import (
	"github.com/shopspring/decimal"

	"github.com/vietddude/walletsync/internal/core/domain"
)

var (
	MinFlowBalance = decimal.RequireFromString("0.001")
	FixedMoveFee   = decimal.RequireFromString("0.001")

	defaultTransactionFee = decimal.RequireFromString("0.001")
)

// MinimumStorageThreshold is the free storage, in bytes, below which the
// account is reported as short on storage.
const MinimumStorageThreshold = 10000

// AverageTransactionFee is zero when gas is sponsored.
func (m *Manager) AverageTransactionFee() decimal.Decimal {
	if m.cfg.FreeGas {
		return decimal.Zero
	}
	return defaultTransactionFee
}

// flowAccountInfo returns the account info when the selection is the
// ledger main account.
func (m *Manager) flowAccountInfo() (*domain.AccountInfo, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.selected == nil || m.selected.Type != domain.AccountMain || m.selected.Address.Kind() != domain.KindLedger {
		return nil, false
	}
	if m.accountInfo == nil {
		return nil, false
	}
	info := *m.accountInfo
	return &info, true
}

// MinimumStorageBalance is the FLOW reserved for storage plus one move fee.
func (m *Manager) MinimumStorageBalance() decimal.Decimal {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.accountInfo == nil {
		return FixedMoveFee
	}
	return m.accountInfo.StorageFlow.Add(FixedMoveFee)
}

func (m *Manager) IsStorageInsufficient() bool {
	info, ok := m.flowAccountInfo()
	if !ok {
		return false
	}
	if info.StorageCapacity < info.StorageUsed {
		return true
	}
	return info.StorageCapacity-info.StorageUsed < MinimumStorageThreshold
}

func (m *Manager) IsBalanceInsufficient() bool {
	info, ok := m.flowAccountInfo()
	if !ok {
		return false
	}
	return info.Balance.LessThan(MinFlowBalance)
}

// IsBalanceInsufficientFor reports whether spending amount leaves less than
// one average fee of available balance.
func (m *Manager) IsBalanceInsufficientFor(amount decimal.Decimal) bool {
	info, ok := m.flowAccountInfo()
	if !ok {
		return false
	}
	return info.AvailableBalance.Sub(amount).LessThan(m.AverageTransactionFee())
}

// IsFlowInsufficientFor reports whether spending amount drops the balance
// below the account minimum.
func (m *Manager) IsFlowInsufficientFor(amount decimal.Decimal) bool {
	info, ok := m.flowAccountInfo()
	if !ok {
		return false
	}
	return info.Balance.Sub(amount).LessThan(MinFlowBalance)
}
