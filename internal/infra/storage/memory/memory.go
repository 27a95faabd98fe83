package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/vietddude/walletsync/internal/core/domain"
	"github.com/vietddude/walletsync/internal/infra/storage"
)

var (
	_ storage.PreferenceStore              = (*PreferenceRepo)(nil)
	_ storage.TokenCache                   = (*TokenCacheRepo)(nil)
	_ storage.TransactionHistoryRepository = (*HistoryRepo)(nil)
)

type MemoryStorage struct {
	prefs   map[string]string
	tokens  map[string][]domain.Token
	history map[string]*domain.TransactionRecord
	mu      sync.RWMutex
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		prefs:   make(map[string]string),
		tokens:  make(map[string][]domain.Token),
		history: make(map[string]*domain.TransactionRecord),
	}
}

// -----------------------------------------------------------------------------
// Preference Store
// -----------------------------------------------------------------------------

type PreferenceRepo struct {
	store *MemoryStorage
}

func NewPreferenceRepo(store *MemoryStorage) *PreferenceRepo {
	return &PreferenceRepo{store: store}
}

func (r *PreferenceRepo) Get(ctx context.Context, key string) (string, bool, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	v, ok := r.store.prefs[key]
	return v, ok, nil
}

func (r *PreferenceRepo) Set(ctx context.Context, key, value string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.prefs[key] = value
	return nil
}

func (r *PreferenceRepo) Delete(ctx context.Context, key string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	delete(r.store.prefs, key)
	return nil
}

// -----------------------------------------------------------------------------
// Token Cache
// -----------------------------------------------------------------------------

type TokenCacheRepo struct {
	store *MemoryStorage
}

func NewTokenCacheRepo(store *MemoryStorage) *TokenCacheRepo {
	return &TokenCacheRepo{store: store}
}

func tokenKey(network domain.Network, addr domain.Address) string {
	return string(network) + "|" + addr.Key()
}

func (r *TokenCacheRepo) SaveTokens(ctx context.Context, network domain.Network, addr domain.Address, tokens []domain.Token) error {
	cp := make([]domain.Token, len(tokens))
	copy(cp, tokens)
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.tokens[tokenKey(network, addr)] = cp
	return nil
}

func (r *TokenCacheRepo) LoadTokens(ctx context.Context, network domain.Network, addr domain.Address) ([]domain.Token, bool, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	tokens, ok := r.store.tokens[tokenKey(network, addr)]
	if !ok {
		return nil, false, nil
	}
	cp := make([]domain.Token, len(tokens))
	copy(cp, tokens)
	return cp, true, nil
}

// -----------------------------------------------------------------------------
// Transaction History
// -----------------------------------------------------------------------------

type HistoryRepo struct {
	store *MemoryStorage
}

func NewHistoryRepo(store *MemoryStorage) *HistoryRepo {
	return &HistoryRepo{store: store}
}

func (r *HistoryRepo) Save(ctx context.Context, rec *domain.TransactionRecord) error {
	cp := *rec
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.history[rec.ID] = &cp
	return nil
}

func (r *HistoryRepo) GetByID(ctx context.Context, id string) (*domain.TransactionRecord, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	rec, ok := r.store.history[domain.NormalizeTxID(id)]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (r *HistoryRepo) ListRecent(ctx context.Context, network domain.Network, limit int) ([]*domain.TransactionRecord, error) {
	r.store.mu.RLock()
	var out []*domain.TransactionRecord
	for _, rec := range r.store.history {
		if rec.Network == network {
			cp := *rec
			out = append(out, &cp)
		}
	}
	r.store.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CompletedAt.After(out[j].CompletedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *HistoryRepo) DeleteOlderThan(ctx context.Context, network domain.Network, before time.Time) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var n int64
	for id, rec := range r.store.history {
		if rec.Network == network && rec.CompletedAt.Before(before) {
			delete(r.store.history, id)
			n++
		}
	}
	return n, nil
}
