package api

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/vietddude/walletsync/internal/core/domain"
)

type tokenPath struct {
	Vault    string `json:"vault"`
	Receiver string `json:"receiver"`
	Balance  string `json:"balance"`
}

// registryToken is one entry of the full token list.
type registryToken struct {
	Address        string    `json:"address"`
	ContractName   string    `json:"contractName"`
	Path           tokenPath `json:"path"`
	EVMAddress     string    `json:"evmAddress"`
	FlowAddress    string    `json:"flowAddress"`
	Symbol         string    `json:"symbol"`
	Name           string    `json:"name"`
	Decimals       int       `json:"decimals"`
	LogoURI        string    `json:"logoURI"`
	FlowIdentifier string    `json:"flowIdentifier"`
	IsVerified     bool      `json:"isVerified"`
}

type registryResponse struct {
	Tokens []registryToken `json:"tokens"`
}

func chainType(kind domain.AddressKind) string {
	if kind == domain.KindEVM {
		return "evm"
	}
	return "flow"
}

// TokenRegistry fetches the full supported-token list for a family.
func (c *Client) TokenRegistry(ctx context.Context, kind domain.AddressKind, network domain.Network) ([]domain.Token, error) {
	q := url.Values{}
	q.Set("chain_type", chainType(kind))
	q.Set("network", string(network))

	var resp registryResponse
	if err := c.getJSON(ctx, "fts_full", "v3/fts/full", q, &resp); err != nil {
		return nil, fmt.Errorf("fetch token registry: %w", err)
	}

	tokens := make([]domain.Token, 0, len(resp.Tokens))
	for _, t := range resp.Tokens {
		tokens = append(tokens, t.toDomain(kind))
	}
	return tokens, nil
}

func (t registryToken) toDomain(kind domain.AddressKind) domain.Token {
	tok := domain.Token{
		Symbol:          t.Symbol,
		Name:            t.Name,
		ContractAddress: t.Address,
		ContractName:    t.ContractName,
		Decimals:        t.Decimals,
		Verified:        t.IsVerified,
		LogoURI:         t.LogoURI,
		VaultPath:       t.Path.Vault,
		ReceiverPath:    t.Path.Receiver,
		BalancePath:     t.Path.Balance,
		EVMAddress:      t.EVMAddress,
		FlowIdentifier:  t.FlowIdentifier,
	}
	if kind == domain.KindEVM {
		tok.Type = domain.TokenEVM
		tok.ID = strings.ToLower(firstNonEmpty(t.EVMAddress, t.Address))
		return tok
	}
	tok.Type = domain.TokenCadence
	tok.ID = firstNonEmpty(t.FlowIdentifier, vaultIdentifier(t.Address, t.ContractName))
	return tok
}

// vaultIdentifier builds "A.<hex>.<Contract>.Vault".
func vaultIdentifier(address, contractName string) string {
	if address == "" || contractName == "" {
		return ""
	}
	return fmt.Sprintf("A.%s.%s.Vault", strings.TrimPrefix(strings.ToLower(address), "0x"), contractName)
}

type cadenceToken struct {
	Identifier        string          `json:"identifier"`
	Name              string          `json:"name"`
	Symbol            string          `json:"symbol"`
	ContractAddress   string          `json:"contractAddress"`
	ContractName      string          `json:"contractName"`
	Decimals          int             `json:"decimals"`
	DisplayBalance    decimal.Decimal `json:"displayBalance"`
	PriceInCurrency   decimal.Decimal `json:"priceInCurrency"`
	BalanceInCurrency decimal.Decimal `json:"balanceInCurrency"`
	IsVerified        bool            `json:"isVerified"`
	LogoURI           string          `json:"logoURI"`
	EVMAddress        string          `json:"evmAddress"`
}

type cadenceHoldingsResponse struct {
	Result  []cadenceToken `json:"result"`
	Storage struct {
		AvailableBalanceToUse decimal.Decimal `json:"availableBalanceToUse"`
		StorageUsedInMB       string          `json:"storageUsedInMB"`
		StorageAvailableInMB  string          `json:"storageAvailableInMB"`
	} `json:"storage"`
}

// CadenceHoldings fetches the ledger tokens held by addr with prices.
func (c *Client) CadenceHoldings(ctx context.Context, addr domain.Address, network domain.Network, currency string) (*domain.Holdings, error) {
	q := url.Values{}
	q.Set("currency", currency)
	q.Set("network", string(network))

	var resp cadenceHoldingsResponse
	if err := c.getJSON(ctx, "cadence_ft", "v4/cadence/tokens/ft/"+addr.String(), q, &resp); err != nil {
		return nil, fmt.Errorf("fetch cadence tokens: %w", err)
	}

	out := &domain.Holdings{AvailableBalanceToUse: resp.Storage.AvailableBalanceToUse}
	for _, t := range resp.Result {
		out.Tokens = append(out.Tokens, domain.Token{
			ID:                firstNonEmpty(t.Identifier, vaultIdentifier(t.ContractAddress, t.ContractName)),
			Type:              domain.TokenCadence,
			Symbol:            t.Symbol,
			Name:              t.Name,
			ContractAddress:   t.ContractAddress,
			ContractName:      t.ContractName,
			Decimals:          t.Decimals,
			Balance:           t.DisplayBalance,
			Price:             t.PriceInCurrency,
			BalanceInCurrency: t.BalanceInCurrency,
			Verified:          t.IsVerified,
			LogoURI:           t.LogoURI,
			EVMAddress:        t.EVMAddress,
		})
	}
	return out, nil
}

type evmToken struct {
	ChainID        int64           `json:"chainId"`
	Address        string          `json:"address"`
	Symbol         string          `json:"symbol"`
	Name           string          `json:"name"`
	Decimals       int             `json:"decimals"`
	LogoURI        string          `json:"logoURI"`
	FlowIdentifier string          `json:"flowIdentifier"`
	DisplayBalance decimal.Decimal `json:"displayBalance"`
	RawBalance     string          `json:"rawBalance"`
	PriceInUSD     decimal.Decimal `json:"priceInUSD"`
	BalanceInUSD   decimal.Decimal `json:"balanceInUSD"`
	IsVerified     bool            `json:"isVerified"`
}

// EVMHoldings fetches the ERC-20 tokens held by addr.
func (c *Client) EVMHoldings(ctx context.Context, addr domain.Address, network domain.Network, currency string) (*domain.Holdings, error) {
	q := url.Values{}
	q.Set("currency", currency)
	q.Set("network", string(network))

	var resp []evmToken
	if err := c.getJSON(ctx, "evm_ft", "v4/evm/tokens/ft/"+addr.String(), q, &resp); err != nil {
		return nil, fmt.Errorf("fetch evm tokens: %w", err)
	}

	out := &domain.Holdings{}
	for _, t := range resp {
		balance := t.DisplayBalance
		if balance.IsZero() && t.RawBalance != "" {
			if raw, err := decimal.NewFromString(t.RawBalance); err == nil {
				balance = raw.Shift(int32(-t.Decimals))
			}
		}
		out.Tokens = append(out.Tokens, domain.Token{
			ID:                strings.ToLower(t.Address),
			Type:              domain.TokenEVM,
			Symbol:            t.Symbol,
			Name:              t.Name,
			ContractAddress:   t.Address,
			Decimals:          t.Decimals,
			Balance:           balance,
			Price:             t.PriceInUSD,
			BalanceInCurrency: t.BalanceInUSD,
			Verified:          t.IsVerified,
			LogoURI:           t.LogoURI,
			EVMAddress:        t.Address,
			FlowIdentifier:    t.FlowIdentifier,
		})
	}
	return out, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
