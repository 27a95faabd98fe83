package token

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/vietddude/walletsync/internal/core/domain"
	"github.com/vietddude/walletsync/internal/wallet/metrics"
)

const (
	CadencePageSize = 50
	EVMPageSize     = 30

	registryTimeout = 30 * time.Second
)

// ProgressFunc receives the cumulative NFT count fetched so far and the
// collection total.
type ProgressFunc func(done, total int)

// Provider fetches token and NFT holdings for one address family on one
// network.
type Provider interface {
	Kind() domain.AddressKind
	Network() domain.Network
	PageSize() int

	// SupportedTokens returns the token registry. Fetched once per provider.
	SupportedTokens(ctx context.Context) ([]domain.Token, error)

	// ActivatedTokens returns the tokens held by addr merged with registry metadata.
	ActivatedTokens(ctx context.Context, addr domain.Address) ([]domain.Token, error)

	// FTBalance returns held tokens with a positive balance, largest first.
	FTBalance(ctx context.Context, addr domain.Address) ([]domain.Token, error)
	FTBalanceWithID(ctx context.Context, addr domain.Address, id string) (*domain.Token, error)

	NFTCollections(ctx context.Context, addr domain.Address) ([]domain.NFTCollection, error)
	NFTCollectionPage(ctx context.Context, addr domain.Address, collectionID, offset string) (*domain.NFTPage, error)
	AllNFTsUnderCollection(ctx context.Context, addr domain.Address, collectionID string, onProgress ProgressFunc) ([]domain.NFT, error)
}

// Backend is the REST surface the providers read from.
type Backend interface {
	TokenRegistry(ctx context.Context, kind domain.AddressKind, network domain.Network) ([]domain.Token, error)
	CadenceHoldings(ctx context.Context, addr domain.Address, network domain.Network, currency string) (*domain.Holdings, error)
	EVMHoldings(ctx context.Context, addr domain.Address, network domain.Network, currency string) (*domain.Holdings, error)
	NFTCollections(ctx context.Context, addr domain.Address, network domain.Network) ([]domain.NFTCollection, error)
	NFTCollectionPage(ctx context.Context, addr domain.Address, network domain.Network, collectionID, offset string, limit int) (*domain.NFTPage, error)
}

// base holds what both providers share: the memoized registry and the
// collection lookups.
type base struct {
	family   string
	kind     domain.AddressKind
	network  domain.Network
	currency string
	pageSize int
	backend  Backend
	log      *slog.Logger

	group    singleflight.Group
	mu       sync.RWMutex
	registry []domain.Token
	loaded   bool
}

func newBase(family string, kind domain.AddressKind, network domain.Network, pageSize int, backend Backend, currency string, log *slog.Logger) *base {
	if log == nil {
		log = slog.Default()
	}
	return &base{
		family:   family,
		kind:     kind,
		network:  network,
		currency: currency,
		pageSize: pageSize,
		backend:  backend,
		log:      log.With("provider", family, "network", network),
	}
}

func (b *base) Kind() domain.AddressKind { return b.kind }
func (b *base) Network() domain.Network  { return b.network }
func (b *base) PageSize() int            { return b.pageSize }

func (b *base) fail(op string, err error) error {
	metrics.ProviderFetches.WithLabelValues(b.family, op, "error").Inc()
	return &domain.ProviderFetchError{Provider: b.family, Op: op, Err: err}
}

func (b *base) ok(op string) {
	metrics.ProviderFetches.WithLabelValues(b.family, op, "ok").Inc()
}

func (b *base) cachedRegistry() ([]domain.Token, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.loaded {
		return nil, false
	}
	return slices.Clone(b.registry), true
}

// SupportedTokens returns the registry. Concurrent first callers share one
// request; failures are not memoized. The shared request is detached from
// any single caller, so one caller giving up does not fail the others.
func (b *base) SupportedTokens(ctx context.Context) ([]domain.Token, error) {
	if tokens, ok := b.cachedRegistry(); ok {
		return tokens, nil
	}

	ch := b.group.DoChan("registry", func() (any, error) {
		if _, ok := b.cachedRegistry(); ok {
			return nil, nil
		}
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), registryTimeout)
		defer cancel()
		tokens, err := b.backend.TokenRegistry(fetchCtx, b.kind, b.network)
		if err != nil {
			return nil, err
		}
		b.mu.Lock()
		b.registry = tokens
		b.loaded = true
		b.mu.Unlock()
		return nil, nil
	})

	var err error
	select {
	case <-ctx.Done():
		err = ctx.Err()
	case res := <-ch:
		err = res.Err
	}
	if err != nil {
		return nil, b.fail("supported_tokens", err)
	}
	b.ok("supported_tokens")

	tokens, _ := b.cachedRegistry()
	return tokens, nil
}

func (b *base) NFTCollections(ctx context.Context, addr domain.Address) ([]domain.NFTCollection, error) {
	cols, err := b.backend.NFTCollections(ctx, addr, b.network)
	if err != nil {
		return nil, b.fail("nft_collections", err)
	}
	b.ok("nft_collections")

	slices.SortStableFunc(cols, func(x, y domain.NFTCollection) int {
		return y.Count - x.Count
	})
	return cols, nil
}

func (b *base) NFTCollectionPage(ctx context.Context, addr domain.Address, collectionID, offset string) (*domain.NFTPage, error) {
	page, err := b.backend.NFTCollectionPage(ctx, addr, b.network, collectionID, offset, b.pageSize)
	metrics.NFTPages.WithLabelValues(b.family, metrics.Result(err)).Inc()
	if err != nil {
		return nil, &domain.ProviderFetchError{Provider: b.family, Op: "nft_page", Err: err}
	}
	return page, nil
}

// collection finds collectionID among the collections held by addr.
func (b *base) collection(ctx context.Context, addr domain.Address, collectionID string) (*domain.NFTCollection, error) {
	cols, err := b.NFTCollections(ctx, addr)
	if err != nil {
		return nil, err
	}
	for i := range cols {
		if cols[i].ID == collectionID {
			return &cols[i], nil
		}
	}
	return nil, &domain.CollectionNotFoundError{Address: addr, CollectionID: collectionID}
}

// positiveByBalance keeps tokens with a balance above zero, largest first.
// Equal balances keep their input order.
func positiveByBalance(tokens []domain.Token) []domain.Token {
	out := make([]domain.Token, 0, len(tokens))
	for _, t := range tokens {
		if t.Balance.IsPositive() {
			out = append(out, t)
		}
	}
	slices.SortStableFunc(out, func(a, b domain.Token) int {
		return b.Balance.Cmp(a.Balance)
	})
	return out
}

func findByID(tokens []domain.Token, id string) *domain.Token {
	for i := range tokens {
		if tokens[i].ID == id {
			t := tokens[i]
			return &t
		}
	}
	return nil
}
