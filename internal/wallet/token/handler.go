package token

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/vietddude/walletsync/internal/core/domain"
	"github.com/vietddude/walletsync/internal/infra/chain"
)

// ProviderFactory builds a provider for an address family on a network.
type ProviderFactory func(kind domain.AddressKind, network domain.Network) (Provider, error)

// NewFactory returns the default factory. evm may miss a network; EVM
// providers for it then skip the native balance.
func NewFactory(backend Backend, evm map[domain.Network]chain.EVM, currency string, concurrency int, log *slog.Logger) ProviderFactory {
	return func(kind domain.AddressKind, network domain.Network) (Provider, error) {
		switch kind {
		case domain.KindLedger:
			return NewCadenceProvider(network, backend, currency, concurrency, log), nil
		case domain.KindEVM:
			return NewEVMProvider(network, backend, evm[network], currency, log), nil
		}
		return nil, fmt.Errorf("no provider for %s addresses", kind)
	}
}

type providerKey struct {
	kind    domain.AddressKind
	network domain.Network
}

// Handler routes token queries to the provider for the address family and
// network, and memoizes spendable FLOW balances.
type Handler struct {
	factory ProviderFactory
	ledgers map[domain.Network]chain.Ledger
	log     *slog.Logger

	mu        sync.RWMutex
	providers map[providerKey]Provider

	balMu    sync.RWMutex
	balances map[string]decimal.Decimal
}

func NewHandler(factory ProviderFactory, ledgers map[domain.Network]chain.Ledger, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		factory:   factory,
		ledgers:   ledgers,
		log:       log,
		providers: make(map[providerKey]Provider),
		balances:  make(map[string]decimal.Decimal),
	}
}

// Provider returns the cached provider for (kind, network), building one
// on a miss. ignoreCache discards the cached one first.
func (h *Handler) Provider(kind domain.AddressKind, network domain.Network, ignoreCache bool) (Provider, error) {
	key := providerKey{kind: kind, network: network}

	if !ignoreCache {
		h.mu.RLock()
		p, ok := h.providers[key]
		h.mu.RUnlock()
		if ok {
			return p, nil
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if p, ok := h.providers[key]; ok && !ignoreCache {
		return p, nil
	}
	p, err := h.factory(kind, network)
	if err != nil {
		return nil, err
	}
	h.providers[key] = p
	return p, nil
}

func (h *Handler) provider(addr domain.Address, network domain.Network, ignoreCache bool) (Provider, error) {
	return h.Provider(addr.Kind(), network, ignoreCache)
}

func (h *Handler) SupportedTokens(ctx context.Context, addr domain.Address, network domain.Network, ignoreCache bool) ([]domain.Token, error) {
	p, err := h.provider(addr, network, ignoreCache)
	if err != nil {
		return nil, err
	}
	return p.SupportedTokens(ctx)
}

func (h *Handler) ActivatedTokens(ctx context.Context, addr domain.Address, network domain.Network, ignoreCache bool) ([]domain.Token, error) {
	p, err := h.provider(addr, network, ignoreCache)
	if err != nil {
		return nil, err
	}
	return p.ActivatedTokens(ctx, addr)
}

func (h *Handler) FTBalance(ctx context.Context, addr domain.Address, network domain.Network, ignoreCache bool) ([]domain.Token, error) {
	p, err := h.provider(addr, network, ignoreCache)
	if err != nil {
		return nil, err
	}
	return p.FTBalance(ctx, addr)
}

func (h *Handler) FTBalanceWithID(ctx context.Context, addr domain.Address, network domain.Network, id string) (*domain.Token, error) {
	p, err := h.provider(addr, network, false)
	if err != nil {
		return nil, err
	}
	return p.FTBalanceWithID(ctx, addr, id)
}

func (h *Handler) NFTCollections(ctx context.Context, addr domain.Address, network domain.Network) ([]domain.NFTCollection, error) {
	p, err := h.provider(addr, network, false)
	if err != nil {
		return nil, err
	}
	return p.NFTCollections(ctx, addr)
}

func (h *Handler) NFTCollectionPage(ctx context.Context, addr domain.Address, network domain.Network, collectionID, offset string) (*domain.NFTPage, error) {
	p, err := h.provider(addr, network, false)
	if err != nil {
		return nil, err
	}
	return p.NFTCollectionPage(ctx, addr, collectionID, offset)
}

func (h *Handler) AllNFTsUnderCollection(ctx context.Context, addr domain.Address, network domain.Network, collectionID string, onProgress ProgressFunc) ([]domain.NFT, error) {
	p, err := h.provider(addr, network, false)
	if err != nil {
		return nil, err
	}
	return p.AllNFTsUnderCollection(ctx, addr, collectionID, onProgress)
}

// AvailableFlowBalance returns spendable FLOW for addrs. Only addresses
// missing from the memo are fetched unless forceReload is set.
func (h *Handler) AvailableFlowBalance(ctx context.Context, network domain.Network, addrs []domain.Address, forceReload bool) (map[string]decimal.Decimal, error) {
	ledger, ok := h.ledgers[network]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedNetwork, network)
	}

	var missing []domain.Address
	h.balMu.RLock()
	for _, a := range addrs {
		if _, ok := h.balances[a.String()]; forceReload || !ok {
			missing = append(missing, a)
		}
	}
	h.balMu.RUnlock()

	if len(missing) > 0 {
		fetched, err := ledger.AvailableBalances(ctx, missing)
		if err != nil {
			return nil, fmt.Errorf("fetch available balances: %w", err)
		}
		h.balMu.Lock()
		maps.Copy(h.balances, fetched)
		h.balMu.Unlock()
	}

	out := make(map[string]decimal.Decimal, len(addrs))
	h.balMu.RLock()
	defer h.balMu.RUnlock()
	for _, a := range addrs {
		if v, ok := h.balances[a.String()]; ok {
			out[a.String()] = v
		}
	}
	return out, nil
}

// FlowTokenModel returns the built-in FLOW token metadata.
func (h *Handler) FlowTokenModel(network domain.Network) domain.Token {
	return domain.FlowToken(network)
}

// Reset drops cached providers and balances.
func (h *Handler) Reset() {
	h.mu.Lock()
	clear(h.providers)
	h.mu.Unlock()

	h.balMu.Lock()
	clear(h.balances)
	h.balMu.Unlock()
}
