package domain

import (
	"fmt"
	"strings"
	"sync"
)

// AccountType tags which node of the account graph an address is.
type AccountType string

const (
	AccountMain  AccountType = "main"
	AccountChild AccountType = "child"
	AccountCOA   AccountType = "coa"
)

// AccountKey is one signing key registered on a main account.
type AccountKey struct {
	Index     int    `json:"index"`
	PublicKey string `json:"publicKey"`
	Weight    int    `json:"weight"`
	SignAlgo  string `json:"signAlgo"`
	HashAlgo  string `json:"hashAlgo"`
	Revoked   bool   `json:"revoked"`
}

// ChildAccount is a ledger account linked to a main account.
// MainAddress is a lookup key into the graph, not an owner pointer.
type ChildAccount struct {
	Address     Address `json:"address"`
	MainAddress Address `json:"mainAddress"`
	Name        string  `json:"name"`
	Icon        string  `json:"icon"`
	Description string  `json:"description"`
}

// EVMAccount is the Cadence-owned EVM account of a main account.
type EVMAccount struct {
	Address     Address `json:"address"`
	MainAddress Address `json:"mainAddress"`
}

// MainAccount is a ledger account controlled by the signed-in key. It owns
// its linked accounts; they are replaced wholesale on refresh.
type MainAccount struct {
	Address Address
	Network Network
	Keys    []AccountKey

	mu       sync.RWMutex
	children []*ChildAccount
	coa      *EVMAccount
}

func NewMainAccount(addr Address, network Network, keys []AccountKey) *MainAccount {
	return &MainAccount{Address: addr, Network: network, Keys: keys}
}

// Children returns a copy of the linked child accounts.
func (m *MainAccount) Children() []*ChildAccount {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*ChildAccount, len(m.children))
	copy(out, m.children)
	return out
}

// COA returns the EVM companion or nil.
func (m *MainAccount) COA() *EVMAccount {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.coa
}

// SetLinked replaces the linked accounts, pointing their back-references here.
func (m *MainAccount) SetLinked(children []*ChildAccount, coa *EVMAccount) {
	for _, c := range children {
		c.MainAddress = m.Address
	}
	if coa != nil {
		coa.MainAddress = m.Address
	}
	m.mu.Lock()
	m.children = children
	m.coa = coa
	m.mu.Unlock()
}

// RemoveChild drops a linked child. Reports whether it was present.
func (m *MainAccount) RemoveChild(addr Address) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, c := range m.children {
		if c.Address.Equal(addr) {
			m.children = append(m.children[:i:i], m.children[i+1:]...)
			return true
		}
	}
	return false
}

// LinkedAddresses returns the main address followed by COA and children.
func (m *MainAccount) LinkedAddresses() []Address {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Address, 0, 2+len(m.children))
	out = append(out, m.Address)
	if m.coa != nil {
		out = append(out, m.coa.Address)
	}
	for _, c := range m.children {
		out = append(out, c.Address)
	}
	return out
}

// Resolve finds addr within this account's subtree.
func (m *MainAccount) Resolve(addr Address) (AccountType, bool) {
	if m.Address.Equal(addr) {
		return AccountMain, true
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.coa != nil && m.coa.Address.Equal(addr) {
		return AccountCOA, true
	}
	for _, c := range m.children {
		if c.Address.Equal(addr) {
			return AccountChild, true
		}
	}
	return "", false
}

// AccountGraph is every main account reachable from the signed-in key, per network.
type AccountGraph map[Network][]*MainAccount

// Complete reports whether the graph has been loaded for every network in nets.
func (g AccountGraph) Complete(nets []Network) bool {
	for _, n := range nets {
		if _, ok := g[n]; !ok {
			return false
		}
	}
	return true
}

// First returns the first main account on network, or nil.
func (g AccountGraph) First(network Network) *MainAccount {
	accounts := g[network]
	if len(accounts) == 0 {
		return nil
	}
	return accounts[0]
}

// Owner finds the main account whose subtree contains addr on network.
func (g AccountGraph) Owner(network Network, addr Address) (*MainAccount, AccountType, bool) {
	for _, m := range g[network] {
		if t, ok := m.Resolve(addr); ok {
			return m, t, true
		}
	}
	return nil, "", false
}

// SelectedAccount points at one node of the account graph.
type SelectedAccount struct {
	Type    AccountType
	Address Address
}

// String is the persisted "<type>-<hex>" form.
func (s SelectedAccount) String() string {
	return string(s.Type) + "-" + s.Address.String()
}

// ParseSelectedAccount reads the persisted form written by String.
func ParseSelectedAccount(s string) (SelectedAccount, error) {
	typ, raw, ok := strings.Cut(s, "-")
	if !ok {
		return SelectedAccount{}, fmt.Errorf("malformed selected account %q", s)
	}
	addr, err := ParseAddress(raw)
	if err != nil {
		return SelectedAccount{}, err
	}
	sel := SelectedAccount{Type: AccountType(typ), Address: addr}
	if err := sel.Validate(); err != nil {
		return SelectedAccount{}, err
	}
	return sel, nil
}

// Validate checks that the address family matches the account type.
func (s SelectedAccount) Validate() error {
	switch s.Type {
	case AccountMain, AccountChild:
		if s.Address.Kind() != KindLedger {
			return fmt.Errorf("%w: %s account %s", ErrAccountTypeMismatch, s.Type, s.Address)
		}
	case AccountCOA:
		if s.Address.Kind() != KindEVM {
			return fmt.Errorf("%w: %s account %s", ErrAccountTypeMismatch, s.Type, s.Address)
		}
	default:
		return fmt.Errorf("unknown account type %q", s.Type)
	}
	return nil
}
