package evm

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"

	"github.com/vietddude/walletsync/internal/core/domain"
	"github.com/vietddude/walletsync/internal/infra/chain"
)

var _ chain.EVM = (*Client)(nil)

// Native FLOW on EVM uses 18 decimals.
const nativeDecimals = 18

// Client reads native balances from an EVM JSON-RPC endpoint. The
// connection is dialed on first use.
type Client struct {
	url string
	log *slog.Logger

	mu  sync.Mutex
	eth *ethclient.Client
}

func NewClient(url string, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	return &Client{url: url, log: log}
}

func (c *Client) conn(ctx context.Context) (*ethclient.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.eth != nil {
		return c.eth, nil
	}
	eth, err := ethclient.DialContext(ctx, c.url)
	if err != nil {
		return nil, fmt.Errorf("dial evm rpc: %w", err)
	}
	c.eth = eth
	return eth, nil
}

// NativeBalance returns the latest balance of addr in whole FLOW.
func (c *Client) NativeBalance(ctx context.Context, addr domain.Address) (decimal.Decimal, error) {
	if addr.Kind() != domain.KindEVM {
		return decimal.Zero, fmt.Errorf("%w: %s is not an evm address", domain.ErrAccountTypeMismatch, addr)
	}
	eth, err := c.conn(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	wei, err := eth.BalanceAt(ctx, addr.EVM(), nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("eth_getBalance %s: %w", addr.Checksum(), err)
	}
	return decimal.NewFromBigInt(wei, -nativeDecimals), nil
}

func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.eth != nil {
		c.eth.Close()
		c.eth = nil
	}
}
