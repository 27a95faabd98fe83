package token

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/vietddude/walletsync/internal/core/domain"
)

var _ Provider = (*CadenceProvider)(nil)

// CadenceProvider serves ledger addresses.
type CadenceProvider struct {
	*base
	concurrency int
}

func NewCadenceProvider(network domain.Network, backend Backend, currency string, concurrency int, log *slog.Logger) *CadenceProvider {
	if concurrency <= 0 {
		concurrency = 8
	}
	return &CadenceProvider{
		base:        newBase("cadence", domain.KindLedger, network, CadencePageSize, backend, currency, log),
		concurrency: concurrency,
	}
}

// ActivatedTokens merges holdings with registry metadata by vault
// identifier. Holdings without metadata are returned as reported. The FLOW
// token carries the spendable balance after storage reservation.
func (p *CadenceProvider) ActivatedTokens(ctx context.Context, addr domain.Address) ([]domain.Token, error) {
	if addr.Kind() != domain.KindLedger {
		return nil, fmt.Errorf("%w: %s", domain.ErrAccountTypeMismatch, addr)
	}

	holdings, err := p.backend.CadenceHoldings(ctx, addr, p.network, p.currency)
	if err != nil {
		return nil, p.fail("activated_tokens", err)
	}
	registry, err := p.SupportedTokens(ctx)
	if err != nil {
		return nil, err
	}
	p.ok("activated_tokens")

	meta := make(map[string]domain.Token, len(registry))
	for _, t := range registry {
		meta[t.ID] = t
	}

	out := make([]domain.Token, 0, len(holdings.Tokens))
	for _, held := range holdings.Tokens {
		t := held
		if m, ok := meta[held.ID]; ok {
			t = withMetadata(held, m)
		}
		if t.IsFlow() {
			t.AvailableBalanceToUse = holdings.AvailableBalanceToUse
		}
		out = append(out, t)
	}
	return out, nil
}

func (p *CadenceProvider) FTBalance(ctx context.Context, addr domain.Address) ([]domain.Token, error) {
	tokens, err := p.ActivatedTokens(ctx, addr)
	if err != nil {
		return nil, err
	}
	return positiveByBalance(tokens), nil
}

func (p *CadenceProvider) FTBalanceWithID(ctx context.Context, addr domain.Address, id string) (*domain.Token, error) {
	tokens, err := p.FTBalance(ctx, addr)
	if err != nil {
		return nil, err
	}
	return findByID(tokens, id), nil
}

// AllNFTsUnderCollection requests every page of the collection at once,
// bounded by the provider concurrency. A failed page is logged and skipped.
// onProgress sees a non-decreasing cumulative count, once per page.
func (p *CadenceProvider) AllNFTsUnderCollection(ctx context.Context, addr domain.Address, collectionID string, onProgress ProgressFunc) ([]domain.NFT, error) {
	col, err := p.collection(ctx, addr, collectionID)
	if err != nil {
		return nil, err
	}

	total := col.Count
	pages := (total + p.pageSize - 1) / p.pageSize
	results := make([][]domain.NFT, pages)

	var (
		mu   sync.Mutex
		done int
		g    errgroup.Group
	)
	g.SetLimit(p.concurrency)

	for i := range pages {
		g.Go(func() error {
			var fetched int
			page, err := p.NFTCollectionPage(ctx, addr, collectionID, strconv.Itoa(i*p.pageSize))
			if err != nil {
				p.log.Warn("Skipping NFT page", "collection", collectionID, "page", i, "error", err)
			} else {
				nfts := page.NFTs
				if len(nfts) > p.pageSize {
					nfts = nfts[:p.pageSize]
				}
				results[i] = nfts
				fetched = len(nfts)
			}

			mu.Lock()
			done += fetched
			if onProgress != nil {
				onProgress(done, total)
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return slices.Concat(results...), nil
}

// withMetadata overlays registry display data onto a held token. Amounts
// always come from the holding.
func withMetadata(held, meta domain.Token) domain.Token {
	t := held
	if meta.LogoURI != "" {
		t.LogoURI = meta.LogoURI
	}
	if t.Name == "" {
		t.Name = meta.Name
	}
	if t.Symbol == "" {
		t.Symbol = meta.Symbol
	}
	if t.Decimals == 0 {
		t.Decimals = meta.Decimals
	}
	if meta.FlowIdentifier != "" {
		t.FlowIdentifier = meta.FlowIdentifier
	}
	if t.EVMAddress == "" {
		t.EVMAddress = meta.EVMAddress
	}
	if t.VaultPath == "" {
		t.VaultPath = meta.VaultPath
		t.ReceiverPath = meta.ReceiverPath
		t.BalancePath = meta.BalancePath
	}
	t.Verified = t.Verified || meta.Verified
	return t
}
