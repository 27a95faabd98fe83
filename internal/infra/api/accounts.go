package api

import (
	"context"
	"fmt"
	"net/url"

	"github.com/shopspring/decimal"

	"github.com/vietddude/walletsync/internal/core/domain"
)

type countEntry struct {
	FlowBalance decimal.Decimal `json:"flowBalance"`
	NFTCounts   uint            `json:"nftCounts"`
}

// FlowTokenAndNFTCount fetches the flow balance and NFT count of every
// address in one request. The result is keyed by Address.String(); addresses
// the backend omits are absent.
func (c *Client) FlowTokenAndNFTCount(ctx context.Context, network domain.Network, addrs []domain.Address) (map[string]domain.CountInfo, error) {
	body := struct {
		Addresses []string `json:"addresses"`
	}{Addresses: make([]string, 0, len(addrs))}
	for _, a := range addrs {
		body.Addresses = append(body.Addresses, a.String())
	}
	q := url.Values{}
	q.Set("network", string(network))

	var resp map[string]countEntry
	if err := c.postJSON(ctx, "accounts_summary", "v1/accounts/summary", q, body, &resp); err != nil {
		return nil, fmt.Errorf("fetch account summary: %w", err)
	}

	out := make(map[string]domain.CountInfo, len(resp))
	for raw, e := range resp {
		addr, err := domain.ParseAddress(raw)
		if err != nil {
			c.log.Warn("Skipping malformed address in summary", "address", raw, "error", err)
			continue
		}
		out[addr.String()] = domain.CountInfo{FlowBalance: e.FlowBalance, NFTCount: e.NFTCounts}
	}
	return out, nil
}

type accountInfoResponse struct {
	Balance          decimal.Decimal `json:"balance"`
	AvailableBalance decimal.Decimal `json:"availableBalance"`
	StorageUsed      uint64          `json:"storageUsed"`
	StorageCapacity  uint64          `json:"storageCapacity"`
	StorageFlow      decimal.Decimal `json:"storageFlow"`
}

// AccountInfo fetches balance and storage state of a ledger account.
func (c *Client) AccountInfo(ctx context.Context, addr domain.Address, network domain.Network) (*domain.AccountInfo, error) {
	q := url.Values{}
	q.Set("address", addr.String())
	q.Set("network", string(network))

	var resp accountInfoResponse
	if err := c.getJSON(ctx, "account_info", "v1/account/info", q, &resp); err != nil {
		return nil, fmt.Errorf("fetch account info: %w", err)
	}
	return &domain.AccountInfo{
		Address:          addr,
		Balance:          resp.Balance,
		AvailableBalance: resp.AvailableBalance,
		StorageUsed:      resp.StorageUsed,
		StorageCapacity:  resp.StorageCapacity,
		StorageFlow:      resp.StorageFlow,
	}, nil
}

type childEntry struct {
	Address     string `json:"address"`
	Name        string `json:"name"`
	Thumbnail   string `json:"thumbnail"`
	Description string `json:"description"`
}

// ChildAccounts lists the child accounts linked to main.
func (c *Client) ChildAccounts(ctx context.Context, main domain.Address, network domain.Network) ([]*domain.ChildAccount, error) {
	q := url.Values{}
	q.Set("address", main.String())
	q.Set("network", string(network))

	var resp []childEntry
	if err := c.getJSON(ctx, "child_accounts", "v1/account/children", q, &resp); err != nil {
		return nil, fmt.Errorf("fetch child accounts: %w", err)
	}

	out := make([]*domain.ChildAccount, 0, len(resp))
	for _, e := range resp {
		addr, err := domain.ParseAddress(e.Address)
		if err != nil || addr.Kind() != domain.KindLedger {
			c.log.Warn("Skipping invalid child address", "address", e.Address)
			continue
		}
		out = append(out, &domain.ChildAccount{
			Address:     addr,
			MainAddress: main,
			Name:        e.Name,
			Icon:        e.Thumbnail,
			Description: e.Description,
		})
	}
	return out, nil
}

// COAAddress returns the EVM companion of main, or nil when none exists.
func (c *Client) COAAddress(ctx context.Context, main domain.Address, network domain.Network) (*domain.EVMAccount, error) {
	q := url.Values{}
	q.Set("address", main.String())
	q.Set("network", string(network))

	var resp struct {
		Address string `json:"address"`
	}
	if err := c.getJSON(ctx, "coa", "v1/account/coa", q, &resp); err != nil {
		return nil, fmt.Errorf("fetch coa address: %w", err)
	}
	if resp.Address == "" {
		return nil, nil
	}
	addr, err := domain.ParseAddress(resp.Address)
	if err != nil {
		return nil, err
	}
	if addr.Kind() != domain.KindEVM {
		return nil, fmt.Errorf("%w: coa %s", domain.ErrAccountTypeMismatch, addr)
	}
	return &domain.EVMAccount{Address: addr, MainAddress: main}, nil
}

// AccessibleTokens lists the vault identifiers a parent may use from child.
func (c *Client) AccessibleTokens(ctx context.Context, parent, child domain.Address, network domain.Network) ([]string, error) {
	q := url.Values{}
	q.Set("parent", parent.String())
	q.Set("child", child.String())
	q.Set("network", string(network))

	var resp struct {
		Tokens []string `json:"tokens"`
	}
	if err := c.getJSON(ctx, "accessible_tokens", "v1/account/accessible", q, &resp); err != nil {
		return nil, fmt.Errorf("fetch accessible tokens: %w", err)
	}
	return resp.Tokens, nil
}
