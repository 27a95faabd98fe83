package transaction

import (
	"github.com/vietddude/walletsync/internal/core/domain"
)

// Holders returns a snapshot of the tracked transactions, newest first.
func (m *Manager) Holders() []domain.TransactionRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.TransactionRecord, len(m.holders))
	for i, e := range m.holders {
		out[i] = e.holder.Snapshot()
	}
	return out
}

// IsExist reports whether id is tracked. The 0x prefix is optional.
func (m *Manager) IsExist(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.index(id) >= 0
}

func (m *Manager) IsTokenEnabling(symbol string) bool {
	return m.any(domain.TxAddToken, func(h *domain.TransactionHolder) bool {
		p, err := domain.DecodePayload[domain.AddTokenPayload](h)
		return err == nil && p.Symbol == symbol
	})
}

func (m *Manager) IsCollectionEnabling(contractName string) bool {
	return m.any(domain.TxAddCollection, func(h *domain.TransactionHolder) bool {
		p, err := domain.DecodePayload[domain.AddCollectionPayload](h)
		return err == nil && p.ContractName == contractName
	})
}

func (m *Manager) IsNFTTransferring(nftID string) bool {
	return m.any(domain.TxTransferNFT, func(h *domain.TransactionHolder) bool {
		p, err := domain.DecodePayload[domain.TransferNFTPayload](h)
		return err == nil && p.NFT.ID == nftID
	})
}

func (m *Manager) any(typ domain.TxType, match func(*domain.TransactionHolder) bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.holders {
		if e.holder.Type == typ && match(e.holder) {
			return true
		}
	}
	return false
}
