package token

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/vietddude/walletsync/internal/core/domain"
	"github.com/vietddude/walletsync/internal/infra/chain"
)

var _ Provider = (*EVMProvider)(nil)

// EVMProvider serves EVM addresses.
type EVMProvider struct {
	*base
	rpc chain.EVM
}

// NewEVMProvider creates a provider. rpc may be nil, in which case the
// native FLOW balance is not included in FTBalance.
func NewEVMProvider(network domain.Network, backend Backend, rpc chain.EVM, currency string, log *slog.Logger) *EVMProvider {
	return &EVMProvider{
		base: newBase("evm", domain.KindEVM, network, EVMPageSize, backend, currency, log),
		rpc:  rpc,
	}
}

// ActivatedTokens merges holdings with registry metadata by lower-cased
// contract address. Holdings with no registry entry are dropped.
func (p *EVMProvider) ActivatedTokens(ctx context.Context, addr domain.Address) ([]domain.Token, error) {
	if addr.Kind() != domain.KindEVM {
		return nil, fmt.Errorf("%w: %s", domain.ErrAccountTypeMismatch, addr)
	}

	holdings, err := p.backend.EVMHoldings(ctx, addr, p.network, p.currency)
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
		meta[strings.ToLower(t.ID)] = t
	}

	out := make([]domain.Token, 0, len(holdings.Tokens))
	for _, held := range holdings.Tokens {
		m, ok := meta[strings.ToLower(held.ID)]
		if !ok {
			p.log.Debug("Dropping token without registry entry", "contract", held.ContractAddress)
			continue
		}
		out = append(out, withMetadata(held, m))
	}
	return out, nil
}

// FTBalance returns the native FLOW balance followed by ERC-20 holdings,
// all sorted by balance.
func (p *EVMProvider) FTBalance(ctx context.Context, addr domain.Address) ([]domain.Token, error) {
	tokens, err := p.ActivatedTokens(ctx, addr)
	if err != nil {
		return nil, err
	}

	if p.rpc != nil {
		balance, err := p.rpc.NativeBalance(ctx, addr)
		if err != nil {
			return nil, p.fail("native_balance", err)
		}
		flow := domain.FlowToken(p.network)
		flow.Type = domain.TokenEVM
		flow.Decimals = 18
		flow.Balance = balance
		tokens = append([]domain.Token{flow}, tokens...)
	}
	return positiveByBalance(tokens), nil
}

func (p *EVMProvider) FTBalanceWithID(ctx context.Context, addr domain.Address, id string) (*domain.Token, error) {
	tokens, err := p.FTBalance(ctx, addr)
	if err != nil {
		return nil, err
	}
	return findByID(tokens, id), nil
}

// AllNFTsUnderCollection walks the collection cursor page by page until the
// cursor runs out, a page comes back empty, or the collection count is reached.
func (p *EVMProvider) AllNFTsUnderCollection(ctx context.Context, addr domain.Address, collectionID string, onProgress ProgressFunc) ([]domain.NFT, error) {
	col, err := p.collection(ctx, addr, collectionID)
	if err != nil {
		return nil, err
	}

	total := col.Count
	var (
		all    []domain.NFT
		offset string
	)
	for len(all) < total {
		page, err := p.NFTCollectionPage(ctx, addr, collectionID, offset)
		if err != nil {
			return nil, err
		}
		if len(page.NFTs) == 0 {
			break
		}
		all = append(all, page.NFTs...)
		if onProgress != nil {
			onProgress(len(all), total)
		}
		if page.NextOffset == "" {
			break
		}
		offset = page.NextOffset
	}
	return all, nil
}
