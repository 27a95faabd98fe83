package redis

import (
	"context"
	"os"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/vietddude/walletsync/internal/core/domain"
)

func setupClient(t *testing.T) *Client {
	t.Helper()
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	c, err := NewClient(Config{URL: url})
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestNewClient_BadURL(t *testing.T) {
	if _, err := NewClient(Config{URL: "not a url"}); err == nil {
		t.Error("expected parse error")
	}
}

func TestClient_Preferences(t *testing.T) {
	c := setupClient(t)
	ctx := context.Background()

	if err := c.Set(ctx, "test:network", "testnet"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	v, found, err := c.Get(ctx, "test:network")
	if err != nil || !found || v != "testnet" {
		t.Errorf("Get = %q, %v, %v", v, found, err)
	}

	if err := c.Delete(ctx, "test:network"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, found, _ := c.Get(ctx, "test:network"); found {
		t.Error("expected key removed")
	}
}

func TestClient_TokenCache(t *testing.T) {
	c := setupClient(t)
	ctx := context.Background()
	addr := domain.MustParseAddress("0x00000000000000ff")

	tokens := []domain.Token{{ID: "A.1654653399040a61.FlowToken.Vault", Symbol: "FLOW", Balance: decimal.RequireFromString("1.5")}}
	if err := c.SaveTokens(ctx, domain.Testnet, addr, tokens); err != nil {
		t.Fatalf("SaveTokens failed: %v", err)
	}

	got, found, err := c.LoadTokens(ctx, domain.Testnet, addr)
	if err != nil || !found {
		t.Fatalf("LoadTokens = %v, %v", found, err)
	}
	if len(got) != 1 || got[0].Symbol != "FLOW" || !got[0].Balance.Equal(tokens[0].Balance) {
		t.Errorf("tokens = %+v", got)
	}

	if _, found, _ := c.LoadTokens(ctx, domain.Mainnet, addr); found {
		t.Error("expected miss on other network")
	}
	_ = c.rdb.Del(ctx, tokensKey(domain.Testnet, addr)).Err()
}
