package flow

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vietddude/walletsync/internal/core/domain"
	"github.com/vietddude/walletsync/internal/infra/chain"
)

var _ chain.Ledger = (*Client)(nil)

// fullWeight is the key weight needed to sign alone.
const fullWeight = 1000

// Config holds the endpoints for one network.
type Config struct {
	Network       domain.Network
	AccessURL     string // access node REST API
	StreamURL     string // access node websocket API
	KeyIndexerURL string
	Timeout       time.Duration
}

// Client talks to a Flow access node and key indexer over HTTP.
type Client struct {
	cfg        Config
	httpClient *http.Client
	log        *slog.Logger
}

// NewClient creates a client for one network.
func NewClient(cfg Config, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        50,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		log: log.With("network", cfg.Network),
	}
}

// Network returns the network this client serves.
func (c *Client) Network() domain.Network { return c.cfg.Network }

func (c *Client) doJSON(ctx context.Context, method, url string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("access call: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

type restAccountKey struct {
	Index            string `json:"index"`
	PublicKey        string `json:"public_key"`
	SigningAlgorithm string `json:"signing_algorithm"`
	HashingAlgorithm string `json:"hashing_algorithm"`
	Weight           string `json:"weight"`
	Revoked          bool   `json:"revoked"`
}

type restAccount struct {
	Address string           `json:"address"`
	Balance string           `json:"balance"` // in 1e-8 FLOW
	Keys    []restAccountKey `json:"keys"`
}

// FetchAccount loads an account with its keys.
func (c *Client) FetchAccount(ctx context.Context, addr domain.Address) (*chain.Account, error) {
	if addr.Kind() != domain.KindLedger {
		return nil, fmt.Errorf("%w: %s is not a flow address", domain.ErrAccountTypeMismatch, addr)
	}
	url := fmt.Sprintf("%s/v1/accounts/%s?block_height=sealed&expand=keys", strings.TrimRight(c.cfg.AccessURL, "/"), addr.Hex())

	var ra restAccount
	if err := c.doJSON(ctx, http.MethodGet, url, nil, &ra); err != nil {
		return nil, fmt.Errorf("fetch account %s: %w", addr, err)
	}

	acc := &chain.Account{Address: addr}
	if raw, err := decimal.NewFromString(ra.Balance); err == nil {
		acc.Balance = raw.Shift(-8)
	}
	for _, k := range ra.Keys {
		index, _ := strconv.Atoi(k.Index)
		weight, _ := strconv.Atoi(k.Weight)
		acc.Keys = append(acc.Keys, domain.AccountKey{
			Index:     index,
			PublicKey: k.PublicKey,
			Weight:    weight,
			SignAlgo:  k.SigningAlgorithm,
			HashAlgo:  k.HashingAlgorithm,
			Revoked:   k.Revoked,
		})
	}
	return acc, nil
}

type indexedKey struct {
	Address   string `json:"address"`
	KeyID     int    `json:"keyId"`
	Weight    int    `json:"weight"`
	SigAlgo   int    `json:"sigAlgo"`
	HashAlgo  int    `json:"hashAlgo"`
	IsRevoked bool   `json:"isRevoked"`
}

type keyIndexerResponse struct {
	PublicKey string       `json:"publicKey"`
	Accounts  []indexedKey `json:"accounts"`
}

// FindAccountsByKey asks the key indexer which accounts list publicKey.
// Accounts where the key is revoked or below full weight are skipped.
func (c *Client) FindAccountsByKey(ctx context.Context, publicKey string) ([]*domain.MainAccount, error) {
	url := fmt.Sprintf("%s/key/%s", strings.TrimRight(c.cfg.KeyIndexerURL, "/"), strings.TrimPrefix(publicKey, "0x"))

	var resp keyIndexerResponse
	if err := c.doJSON(ctx, http.MethodGet, url, nil, &resp); err != nil {
		return nil, fmt.Errorf("key indexer lookup: %w", err)
	}

	var (
		order    []string
		accounts = make(map[string]*domain.MainAccount)
	)
	for _, k := range resp.Accounts {
		if k.IsRevoked || k.Weight < fullWeight {
			continue
		}
		addr, err := domain.ParseAddress(k.Address)
		if err != nil || addr.Kind() != domain.KindLedger {
			c.log.Warn("Key indexer returned invalid address", "address", k.Address)
			continue
		}
		acc, ok := accounts[addr.String()]
		if !ok {
			acc = domain.NewMainAccount(addr, c.cfg.Network, nil)
			accounts[addr.String()] = acc
			order = append(order, addr.String())
		}
		acc.Keys = append(acc.Keys, domain.AccountKey{
			Index:     k.KeyID,
			PublicKey: resp.PublicKey,
			Weight:    k.Weight,
			SignAlgo:  strconv.Itoa(k.SigAlgo),
			HashAlgo:  strconv.Itoa(k.HashAlgo),
		})
	}

	out := make([]*domain.MainAccount, 0, len(order))
	for _, a := range order {
		out = append(out, accounts[a])
	}
	return out, nil
}

type scriptRequest struct {
	Script    string   `json:"script"`
	Arguments []string `json:"arguments"`
}

// AvailableBalances runs one script for every address.
func (c *Client) AvailableBalances(ctx context.Context, addrs []domain.Address) (map[string]decimal.Decimal, error) {
	ledger := make([]domain.Address, 0, len(addrs))
	for _, a := range addrs {
		if a.Kind() == domain.KindLedger {
			ledger = append(ledger, a)
		}
	}
	if len(ledger) == 0 {
		return map[string]decimal.Decimal{}, nil
	}

	arg, err := encodeAddressArray(ledger)
	if err != nil {
		return nil, fmt.Errorf("encode arguments: %w", err)
	}
	req := scriptRequest{
		Script:    base64.StdEncoding.EncodeToString([]byte(availableBalanceScript)),
		Arguments: []string{arg},
	}
	url := strings.TrimRight(c.cfg.AccessURL, "/") + "/v1/scripts?block_height=sealed"

	var encoded string
	if err := c.doJSON(ctx, http.MethodPost, url, req, &encoded); err != nil {
		return nil, fmt.Errorf("execute balance script: %w", err)
	}
	return decodeAddressUFix64Dict(encoded)
}
