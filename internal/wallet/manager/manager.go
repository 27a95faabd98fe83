package manager

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/vietddude/walletsync/internal/core/domain"
	"github.com/vietddude/walletsync/internal/core/events"
	"github.com/vietddude/walletsync/internal/infra/storage"
	"github.com/vietddude/walletsync/internal/wallet/account"
)

// State is the session lifecycle.
type State int

const (
	NoSession State = iota
	SessionActive
	AccountSelected
)

func (s State) String() string {
	switch s {
	case SessionActive:
		return "session_active"
	case AccountSelected:
		return "account_selected"
	}
	return "no_session"
}

// TokenSource serves token lists for an address.
type TokenSource interface {
	SupportedTokens(ctx context.Context, addr domain.Address, network domain.Network, ignoreCache bool) ([]domain.Token, error)
	ActivatedTokens(ctx context.Context, addr domain.Address, network domain.Network, ignoreCache bool) ([]domain.Token, error)
}

// AccountSource serves account state that is not part of the graph.
type AccountSource interface {
	AccountInfo(ctx context.Context, addr domain.Address, network domain.Network) (*domain.AccountInfo, error)
	AccessibleTokens(ctx context.Context, parent, child domain.Address, network domain.Network) ([]string, error)
}

type Config struct {
	Networks       []domain.Network
	DefaultNetwork domain.Network
	FreeGas        bool
	EventBuffer    int // subscription buffer for Run
}

type Deps struct {
	Keys     KeyStore
	Graphs   GraphSource
	Tokens   TokenSource
	Linked   account.Loader
	Accounts AccountSource
	Prefs    storage.PreferenceStore
	Cache    storage.TokenCache
	Bus      *events.Bus
}

// Manager owns the signed-in session: the account graph, the current
// network, the selected account and its token and account data.
type Manager struct {
	cfg Config
	Deps
	log *slog.Logger

	mu          sync.RWMutex
	state       State
	uid         string
	network     domain.Network
	graph       domain.AccountGraph
	main        *domain.MainAccount
	selected    *domain.SelectedAccount
	activated   []domain.Token
	accountInfo *domain.AccountInfo
	filter      TokenFilter
}

func NewManager(cfg Config, deps Deps, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	if len(cfg.Networks) == 0 {
		cfg.Networks = domain.SupportedNetworks
	}
	if cfg.DefaultNetwork == "" {
		cfg.DefaultNetwork = cfg.Networks[0]
	}
	return &Manager{
		cfg:     cfg,
		Deps:    deps,
		log:     log.With("component", "wallet"),
		network: cfg.DefaultNetwork,
	}
}

func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

func (m *Manager) SessionState() string { return m.State().String() }

func (m *Manager) Network() domain.Network {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.network
}

// MainAccount returns the current main account or nil.
func (m *Manager) MainAccount() *domain.MainAccount {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.main
}

// MainAccounts returns the main accounts on the current network.
func (m *Manager) MainAccounts() []*domain.MainAccount {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.graph[m.network])
}

func (m *Manager) SelectedAccount() (domain.SelectedAccount, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.selected == nil {
		return domain.SelectedAccount{}, false
	}
	return *m.selected, true
}

func (m *Manager) ActivatedTokens() []domain.Token {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.activated)
}

// VisibleTokens returns the activated tokens that pass the token filter.
func (m *Manager) VisibleTokens() []domain.Token {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.filter.Apply(m.activated)
}

func (m *Manager) AccountInfo() (domain.AccountInfo, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.accountInfo == nil {
		return domain.AccountInfo{}, false
	}
	return *m.accountInfo, true
}

// IsMain reports whether the selection is a main account.
func (m *Manager) IsMain() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.selected != nil && m.selected.Type == domain.AccountMain
}

// IsCOA reports whether addr is the COA of a main account on the current network.
func (m *Manager) IsCOA(addr domain.Address) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, typ, ok := m.graph.Owner(m.network, addr)
	return ok && typ == domain.AccountCOA
}

func (m *Manager) supported(network domain.Network) bool {
	return slices.Contains(m.cfg.Networks, network)
}

// SignIn resolves the key for uid, loads the account graph and selects an
// account. On failure the manager stays without a session.
func (m *Manager) SignIn(ctx context.Context, uid string) error {
	publicKey, err := m.Keys.PublicKey(ctx, uid)
	if err != nil {
		return fmt.Errorf("sign in: %w", err)
	}
	graph, err := m.Graphs.FetchGraph(ctx, publicKey, m.cfg.Networks)
	if err != nil {
		return fmt.Errorf("sign in: %w", err)
	}

	network := m.loadNetwork(ctx)
	filter := m.loadFilter(ctx)

	m.mu.Lock()
	m.uid = uid
	m.state = SessionActive
	m.network = network
	m.filter = filter
	m.mu.Unlock()

	m.log.Info("Signed in", "uid", uid, "network", network)
	if m.AccountsLoaded(ctx, graph) {
		m.loadCacheData(ctx)
	}
	return nil
}

// AccountsLoaded installs graph once it covers every supported network.
// The persisted selection is restored when it still resolves, otherwise
// the first main account of the current network is selected.
func (m *Manager) AccountsLoaded(ctx context.Context, graph domain.AccountGraph) bool {
	if !graph.Complete(m.cfg.Networks) {
		m.log.Debug("Account graph incomplete", "networks", len(graph))
		return false
	}

	m.mu.RLock()
	uid, network := m.uid, m.network
	m.mu.RUnlock()
	persisted, hasPersisted := m.loadSelection(ctx, uid)

	m.mu.Lock()
	if m.state == NoSession {
		m.mu.Unlock()
		return false
	}
	m.graph = graph
	m.main = graph.First(network)
	m.selected = nil
	m.state = SessionActive
	if m.main != nil {
		sel := domain.SelectedAccount{Type: domain.AccountMain, Address: m.main.Address}
		if hasPersisted {
			if owner, typ, ok := graph.Owner(network, persisted.Address); ok && typ == persisted.Type {
				m.main = owner
				sel = persisted
			}
		}
		m.selected = &sel
		m.state = AccountSelected
	}
	sel := m.selected
	m.mu.Unlock()

	if sel != nil {
		m.saveSelection(ctx, uid, *sel)
		m.Bus.Publish(events.AccountsLoaded, events.AccountSelection{Network: network, Selected: *sel})
	} else {
		m.Bus.Publish(events.AccountsLoaded, events.AccountSelection{Network: network})
	}
	return true
}

// SwitchNetwork moves the session to network. Account data of the old
// network is dropped until the next refresh.
func (m *Manager) SwitchNetwork(ctx context.Context, network domain.Network) error {
	if !m.supported(network) {
		return fmt.Errorf("%w: %s", domain.ErrUnsupportedNetwork, network)
	}

	m.mu.Lock()
	from := m.network
	if from == network {
		m.mu.Unlock()
		return nil
	}
	m.network = network
	m.main = m.graph.First(network)
	m.selected = nil
	m.activated = nil
	m.accountInfo = nil
	if m.state != NoSession {
		m.state = SessionActive
	}
	if m.main != nil {
		m.selected = &domain.SelectedAccount{Type: domain.AccountMain, Address: m.main.Address}
		m.state = AccountSelected
	}
	main, sel, uid := m.main, m.selected, m.uid
	m.mu.Unlock()

	if err := m.Prefs.Set(ctx, storage.KeyNetwork, string(network)); err != nil {
		m.log.Warn("Failed to persist network", "error", err)
	}
	if sel != nil {
		m.saveSelection(ctx, uid, *sel)
	}
	if main != nil {
		m.loadLinked(ctx, main)
	}

	m.log.Info("Network switched", "from", from, "to", network)
	m.Bus.Publish(events.NetworkChanged, events.NetworkChange{From: from, To: network})
	return nil
}

// ChangeSelectedAccount selects address as an account of type typ. The
// address must resolve to a node of that type in the loaded graph; its
// owning main account becomes current, and its linked accounts are
// reloaded when it is selected directly or the owner changed.
func (m *Manager) ChangeSelectedAccount(ctx context.Context, address string, typ domain.AccountType) error {
	addr, err := domain.ParseAddress(address)
	if err != nil {
		return err
	}
	sel := domain.SelectedAccount{Type: typ, Address: addr}
	if err := sel.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	if m.state == NoSession {
		m.mu.Unlock()
		return domain.ErrNoSession
	}
	owner, resolved, ok := m.graph.Owner(m.network, addr)
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s on %s", domain.ErrAccountNotFound, addr, m.network)
	}
	if resolved != typ {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s is a %s account", domain.ErrAccountTypeMismatch, addr, resolved)
	}
	var reload *domain.MainAccount
	if typ == domain.AccountMain || m.main != owner {
		reload = owner
	}
	m.main = owner
	m.selected = &sel
	m.state = AccountSelected
	network, uid := m.network, m.uid
	m.mu.Unlock()

	m.saveSelection(ctx, uid, sel)
	if reload != nil {
		m.loadLinked(ctx, reload)
	}
	m.Bus.Publish(events.SelectedAccountChanged, events.AccountSelection{Network: network, Selected: sel})
	return nil
}

// RemoveChildAccount drops a child from the current graph after it has been
// unlinked on chain. A selection pointing at it falls back to its main account.
func (m *Manager) RemoveChildAccount(ctx context.Context, child domain.Address) bool {
	m.mu.Lock()
	owner, typ, ok := m.graph.Owner(m.network, child)
	if !ok || typ != domain.AccountChild {
		m.mu.Unlock()
		return false
	}
	owner.RemoveChild(child)
	var moved *domain.SelectedAccount
	if m.selected != nil && m.selected.Address.Equal(child) {
		moved = &domain.SelectedAccount{Type: domain.AccountMain, Address: owner.Address}
		m.selected = moved
		m.main = owner
	}
	uid := m.uid
	m.mu.Unlock()

	if moved != nil {
		m.saveSelection(ctx, uid, *moved)
	}
	m.Bus.Publish(events.ChildAccountRemoved, events.ChildRemoval{Main: owner.Address, Child: child})
	return true
}

// Reset ends the session.
func (m *Manager) Reset() {
	m.mu.Lock()
	m.state = NoSession
	m.uid = ""
	m.graph = nil
	m.main = nil
	m.selected = nil
	m.activated = nil
	m.accountInfo = nil
	m.filter = TokenFilter{}
	m.mu.Unlock()

	m.log.Info("Wallet reset")
	m.Bus.Publish(events.DidResetWallet, nil)
}

// Run refreshes wallet data whenever the account context changes, until
// ctx is done.
func (m *Manager) Run(ctx context.Context) {
	buffer := m.cfg.EventBuffer
	if buffer <= 0 {
		buffer = 16
	}
	id, sub := m.Bus.Subscribe(buffer,
		events.AccountsLoaded,
		events.NetworkChanged,
		events.SelectedAccountChanged,
		events.WillResetWallet,
	)
	defer m.Bus.Unsubscribe(id)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub:
			if !ok {
				return
			}
			if ev.Type == events.WillResetWallet {
				m.Reset()
				continue
			}
			if err := m.FetchWalletDatas(ctx); err != nil && !errors.Is(err, domain.ErrEmptyMainAccount) {
				m.log.Warn("Wallet refresh incomplete", "trigger", ev.Type, "error", err)
			}
		}
	}
}

func (m *Manager) loadLinked(ctx context.Context, main *domain.MainAccount) {
	if m.Linked == nil {
		return
	}
	if err := m.Linked.RefreshAccount(ctx, main); err != nil {
		m.log.Error("Failed to load linked accounts", "main", main.Address, "error", err)
	}
}

func (m *Manager) loadNetwork(ctx context.Context) domain.Network {
	v, found, err := m.Prefs.Get(ctx, storage.KeyNetwork)
	if err != nil || !found {
		return m.cfg.DefaultNetwork
	}
	network, err := domain.ParseNetwork(v)
	if err != nil || !m.supported(network) {
		return m.cfg.DefaultNetwork
	}
	return network
}

func (m *Manager) loadSelection(ctx context.Context, uid string) (domain.SelectedAccount, bool) {
	v, found, err := m.Prefs.Get(ctx, storage.KeySelectedAccount(uid))
	if err != nil || !found {
		return domain.SelectedAccount{}, false
	}
	sel, err := domain.ParseSelectedAccount(v)
	if err != nil {
		m.log.Warn("Ignoring persisted selection", "value", v, "error", err)
		return domain.SelectedAccount{}, false
	}
	return sel, true
}

func (m *Manager) saveSelection(ctx context.Context, uid string, sel domain.SelectedAccount) {
	if err := m.Prefs.Set(ctx, storage.KeySelectedAccount(uid), sel.String()); err != nil {
		m.log.Warn("Failed to persist selection", "error", err)
	}
}

func (m *Manager) loadFilter(ctx context.Context) TokenFilter {
	var f TokenFilter
	v, found, err := m.Prefs.Get(ctx, storage.KeyTokenFilter)
	if err != nil || !found {
		return f
	}
	if err := json.Unmarshal([]byte(v), &f); err != nil {
		m.log.Warn("Ignoring persisted token filter", "error", err)
		return TokenFilter{}
	}
	return f
}

// loadCacheData shows the last known tokens of the selection until the
// first refresh lands.
func (m *Manager) loadCacheData(ctx context.Context) {
	if m.Cache == nil {
		return
	}
	m.mu.RLock()
	sel, network := m.selected, m.network
	m.mu.RUnlock()
	if sel == nil {
		return
	}

	tokens, found, err := m.Cache.LoadTokens(ctx, network, sel.Address)
	if err != nil {
		m.log.Warn("Failed to load cached tokens", "error", err)
		return
	}
	if !found {
		return
	}

	m.mu.Lock()
	if len(m.activated) == 0 {
		m.activated = tokens
	}
	m.mu.Unlock()
}
