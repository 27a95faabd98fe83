package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vietddude/walletsync/internal/core/domain"
)

// tokenCacheTTL bounds how stale a cached snapshot may be when a session
// starts offline.
const tokenCacheTTL = 7 * 24 * time.Hour

func tokensKey(network domain.Network, addr domain.Address) string {
	return fmt.Sprintf("walletsync:tokens:%s:%s", network, addr.Key())
}

// SaveTokens implements storage.TokenCache.
func (c *Client) SaveTokens(ctx context.Context, network domain.Network, addr domain.Address, tokens []domain.Token) error {
	data, err := json.Marshal(tokens)
	if err != nil {
		return fmt.Errorf("failed to marshal tokens: %w", err)
	}
	if err := c.rdb.Set(ctx, tokensKey(network, addr), data, tokenCacheTTL).Err(); err != nil {
		return fmt.Errorf("failed to cache tokens: %w", err)
	}
	return nil
}

// LoadTokens implements storage.TokenCache.
func (c *Client) LoadTokens(ctx context.Context, network domain.Network, addr domain.Address) ([]domain.Token, bool, error) {
	data, err := c.rdb.Get(ctx, tokensKey(network, addr)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to load tokens: %w", err)
	}

	var tokens []domain.Token
	if err := json.Unmarshal(data, &tokens); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal tokens: %w", err)
	}
	return tokens, true, nil
}
