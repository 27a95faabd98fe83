package manager

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/vietddude/walletsync/internal/core/domain"
	"github.com/vietddude/walletsync/internal/core/events"
	"github.com/vietddude/walletsync/internal/infra/storage"
	"github.com/vietddude/walletsync/internal/wallet/metrics"
)

type snapshot struct {
	network  domain.Network
	main     *domain.MainAccount
	selected domain.SelectedAccount
}

func (m *Manager) snapshot() (snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.main == nil {
		return snapshot{}, domain.ErrEmptyMainAccount
	}
	s := snapshot{network: m.network, main: m.main}
	if m.selected != nil {
		s.selected = *m.selected
	} else {
		s.selected = domain.SelectedAccount{Type: domain.AccountMain, Address: m.main.Address}
	}
	return s, nil
}

func step(name string, err error) {
	metrics.WalletRefreshes.WithLabelValues(name, metrics.Result(err)).Inc()
}

// FetchWalletDatas refreshes the selected account: supported tokens, then
// activated tokens, then accessible flags, then account info. A failed step
// is logged and the remaining steps still run; the failures are returned
// joined.
func (m *Manager) FetchWalletDatas(ctx context.Context) error {
	snap, err := m.snapshot()
	if err != nil {
		m.log.Info("Skipping refresh without main account")
		return err
	}
	target := snap.selected.Address
	log := m.log.With("address", target, "network", snap.network)

	var errs []error

	supported, err := m.Tokens.SupportedTokens(ctx, target, snap.network, false)
	step("supported_tokens", err)
	if err != nil {
		log.Error("Failed to fetch supported tokens", "error", err)
		errs = append(errs, err)
	}

	var (
		activated   []domain.Token
		activatedOK bool
	)
	if err == nil && len(supported) > 0 {
		activated, err = m.Tokens.ActivatedTokens(ctx, target, snap.network, false)
		step("activated_tokens", err)
		if err != nil {
			log.Error("Failed to fetch activated tokens", "error", err)
			errs = append(errs, err)
		} else {
			activatedOK = true
		}
	} else {
		activated, activatedOK = []domain.Token{}, true
	}

	if activatedOK {
		activated = m.mergeCustomTokens(ctx, snap.network, activated)
		if err := m.markAccessible(ctx, snap, activated); err != nil {
			log.Error("Failed to fetch accessible tokens", "error", err)
			errs = append(errs, err)
		}
	}

	info, err := m.Accounts.AccountInfo(ctx, snap.main.Address, snap.network)
	step("account_info", err)
	if err != nil {
		log.Error("Failed to fetch account info", "error", err)
		errs = append(errs, err)
	}

	m.mu.Lock()
	// drop results if the selection moved while fetching
	current := m.selected != nil && m.selected.Address.Equal(target) && m.network == snap.network
	if current {
		if activatedOK {
			m.activated = activated
		}
		if info != nil {
			m.accountInfo = info
		}
	}
	m.mu.Unlock()

	if !current {
		return errors.Join(append(errs, errors.New("selection changed during refresh"))...)
	}

	if activatedOK && m.Cache != nil {
		if err := m.Cache.SaveTokens(ctx, snap.network, target, activated); err != nil {
			log.Warn("Failed to cache tokens", "error", err)
		}
	}
	m.Bus.Publish(events.WalletDataUpdated, events.AccountSelection{Network: snap.network, Selected: snap.selected})
	return errors.Join(errs...)
}

// markAccessible flags the tokens a parent may use from the selected child.
// Tokens of any other account are always accessible.
func (m *Manager) markAccessible(ctx context.Context, snap snapshot, tokens []domain.Token) error {
	if snap.selected.Type != domain.AccountChild {
		for i := range tokens {
			tokens[i].Accessible = true
		}
		return nil
	}

	ids, err := m.Accounts.AccessibleTokens(ctx, snap.main.Address, snap.selected.Address, snap.network)
	step("accessible_tokens", err)
	if err != nil {
		return err
	}
	for i := range tokens {
		tokens[i].Accessible = slices.Contains(ids, tokens[i].ID)
	}
	return nil
}

// RefreshAccountInfo reloads balance and storage of the current main account.
func (m *Manager) RefreshAccountInfo(ctx context.Context) error {
	snap, err := m.snapshot()
	if err != nil {
		return err
	}
	info, err := m.Accounts.AccountInfo(ctx, snap.main.Address, snap.network)
	step("account_info", err)
	if err != nil {
		return fmt.Errorf("refresh account info: %w", err)
	}

	m.mu.Lock()
	if m.main == snap.main {
		m.accountInfo = info
	}
	m.mu.Unlock()
	return nil
}

// TokenFilter returns the current filter.
func (m *Manager) TokenFilter() TokenFilter {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f := m.filter
	f.Hidden = slices.Clone(f.Hidden)
	return f
}

// SetTokenFilter changes the filter flags and recomputes hidden tokens.
func (m *Manager) SetTokenFilter(ctx context.Context, hideDust, onlyVerified bool) error {
	m.mu.Lock()
	m.filter.HideDust = hideDust
	m.filter.OnlyVerified = onlyVerified
	m.filter.Update(m.activated)
	f := m.filter
	m.mu.Unlock()
	return m.saveFilter(ctx, f)
}

// ToggleToken flips the visibility of one token.
func (m *Manager) ToggleToken(ctx context.Context, id string) error {
	m.mu.Lock()
	m.filter.Toggle(id)
	f := m.filter
	m.mu.Unlock()
	return m.saveFilter(ctx, f)
}

func (m *Manager) saveFilter(ctx context.Context, f TokenFilter) error {
	data, err := json.Marshal(f)
	if err != nil {
		return err
	}
	if err := m.Prefs.Set(ctx, storage.KeyTokenFilter, string(data)); err != nil {
		return fmt.Errorf("persist token filter: %w", err)
	}
	return nil
}

// AddCustomToken adds or replaces a user-supplied token on the current
// network.
func (m *Manager) AddCustomToken(ctx context.Context, t domain.Token) error {
	t.Custom = true
	network := m.Network()

	custom, err := m.customTokens(ctx, network)
	if err != nil {
		return err
	}
	custom = upsertToken(custom, t)
	if err := m.saveCustomTokens(ctx, network, custom); err != nil {
		return err
	}

	m.mu.Lock()
	m.activated = upsertToken(m.activated, t)
	m.mu.Unlock()
	return nil
}

// DeleteCustomToken removes a custom token by id.
func (m *Manager) DeleteCustomToken(ctx context.Context, id string) error {
	network := m.Network()

	custom, err := m.customTokens(ctx, network)
	if err != nil {
		return err
	}
	custom = slices.DeleteFunc(custom, func(t domain.Token) bool { return t.ID == id })
	if err := m.saveCustomTokens(ctx, network, custom); err != nil {
		return err
	}

	m.mu.Lock()
	m.activated = slices.DeleteFunc(m.activated, func(t domain.Token) bool { return t.Custom && t.ID == id })
	m.mu.Unlock()
	return nil
}

func (m *Manager) customTokens(ctx context.Context, network domain.Network) ([]domain.Token, error) {
	v, found, err := m.Prefs.Get(ctx, storage.KeyCustomTokens(network))
	if err != nil {
		return nil, fmt.Errorf("read custom tokens: %w", err)
	}
	if !found {
		return nil, nil
	}
	var tokens []domain.Token
	if err := json.Unmarshal([]byte(v), &tokens); err != nil {
		return nil, fmt.Errorf("decode custom tokens: %w", err)
	}
	return tokens, nil
}

func (m *Manager) saveCustomTokens(ctx context.Context, network domain.Network, tokens []domain.Token) error {
	data, err := json.Marshal(tokens)
	if err != nil {
		return err
	}
	return m.Prefs.Set(ctx, storage.KeyCustomTokens(network), string(data))
}

// mergeCustomTokens appends custom tokens the provider did not return.
func (m *Manager) mergeCustomTokens(ctx context.Context, network domain.Network, tokens []domain.Token) []domain.Token {
	custom, err := m.customTokens(ctx, network)
	if err != nil {
		m.log.Warn("Ignoring custom tokens", "error", err)
		return tokens
	}
	for _, c := range custom {
		if !slices.ContainsFunc(tokens, func(t domain.Token) bool { return t.ID == c.ID }) {
			tokens = append(tokens, c)
		}
	}
	return tokens
}

func upsertToken(tokens []domain.Token, t domain.Token) []domain.Token {
	if i := slices.IndexFunc(tokens, func(x domain.Token) bool { return x.ID == t.ID }); i >= 0 {
		tokens[i] = t
		return tokens
	}
	return append(tokens, t)
}
