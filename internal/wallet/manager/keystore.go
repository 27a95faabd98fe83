package manager

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/vietddude/walletsync/internal/core/domain"
	"github.com/vietddude/walletsync/internal/infra/chain"
	"github.com/vietddude/walletsync/internal/infra/storage"
)

// KeyStore resolves the public key registered for a user.
type KeyStore interface {
	PublicKey(ctx context.Context, uid string) (string, error)
}

// PreferenceKeyStore reads public keys from the preference store.
type PreferenceKeyStore struct {
	prefs storage.PreferenceStore
}

func NewPreferenceKeyStore(prefs storage.PreferenceStore) *PreferenceKeyStore {
	return &PreferenceKeyStore{prefs: prefs}
}

func (k *PreferenceKeyStore) PublicKey(ctx context.Context, uid string) (string, error) {
	key, found, err := k.prefs.Get(ctx, storage.KeyPublicKey(uid))
	if err != nil {
		return "", fmt.Errorf("read public key: %w", err)
	}
	if !found || key == "" {
		return "", fmt.Errorf("%w: no key registered for %s", domain.ErrNoSession, uid)
	}
	return key, nil
}

// Register stores the public key for uid.
func (k *PreferenceKeyStore) Register(ctx context.Context, uid, publicKey string) error {
	return k.prefs.Set(ctx, storage.KeyPublicKey(uid), publicKey)
}

// GraphSource builds the account graph for a key.
type GraphSource interface {
	FetchGraph(ctx context.Context, publicKey string, networks []domain.Network) (domain.AccountGraph, error)
}

// LedgerGraph looks the key up on every network at once.
type LedgerGraph struct {
	ledgers map[domain.Network]chain.Ledger
}

func NewLedgerGraph(ledgers map[domain.Network]chain.Ledger) *LedgerGraph {
	return &LedgerGraph{ledgers: ledgers}
}

// FetchGraph fails if any network cannot be queried. A network where the
// key has no account gets an empty entry.
func (g *LedgerGraph) FetchGraph(ctx context.Context, publicKey string, networks []domain.Network) (domain.AccountGraph, error) {
	var (
		mu    sync.Mutex
		graph = make(domain.AccountGraph, len(networks))
	)

	eg, egCtx := errgroup.WithContext(ctx)
	for _, network := range networks {
		ledger, ok := g.ledgers[network]
		if !ok {
			return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedNetwork, network)
		}
		eg.Go(func() error {
			accounts, err := ledger.FindAccountsByKey(egCtx, publicKey)
			if err != nil {
				return fmt.Errorf("find accounts on %s: %w", network, err)
			}
			if accounts == nil {
				accounts = []*domain.MainAccount{}
			}
			mu.Lock()
			graph[network] = accounts
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return graph, nil
}
