package health

import (
	"context"
	"sync"
	"time"

	"github.com/vietddude/walletsync/internal/core/domain"
	"github.com/vietddude/walletsync/internal/infra/chain"
)

// MaxPendingTransactions is the tracked-transaction count above which a
// network is reported as degraded.
const MaxPendingTransactions = 20

// Transactions lists the tracked transactions.
type Transactions interface {
	Holders() []domain.TransactionRecord
}

// Session reports the wallet session state.
type Session interface {
	SessionState() string
}

// Pinger is a storage backend that can report its own health.
type Pinger interface {
	Health(ctx context.Context) error
}

// Monitor probes each network's access node and aggregates wallet state.
type Monitor struct {
	ledgers map[domain.Network]chain.Ledger
	txs     Transactions
	session Session
	ttl     time.Duration
	stores  map[string]Pinger

	mu         sync.Mutex
	lastCheck  time.Time
	lastReport *Report
}

// NewMonitor creates a new health monitor. Reports are cached for ttl.
func NewMonitor(ledgers map[domain.Network]chain.Ledger, txs Transactions, session Session, ttl time.Duration) *Monitor {
	return &Monitor{
		ledgers: ledgers,
		txs:     txs,
		session: session,
		ttl:     ttl,
		stores:  make(map[string]Pinger),
	}
}

// AddStore registers a storage backend to ping on each check.
func (m *Monitor) AddStore(name string, p Pinger) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stores[name] = p
}

// CheckHealth performs a health check for all networks.
func (m *Monitor) CheckHealth(ctx context.Context) Report {
	m.mu.Lock()
	defer m.mu.Unlock()

	// probes hit the access node; don't run them on every request
	if m.lastReport != nil && time.Since(m.lastCheck) < m.ttl {
		return *m.lastReport
	}

	pending := make(map[domain.Network]int)
	if m.txs != nil {
		for _, rec := range m.txs.Holders() {
			pending[rec.Network]++
		}
	}

	networks := make(map[domain.Network]NetworkHealth, len(m.ledgers))
	for network, ledger := range m.ledgers {
		h := NetworkHealth{
			Network:             network,
			Status:              StatusHealthy,
			AccessNode:          "ok",
			PendingTransactions: pending[network],
		}
		if _, err := ledger.FetchAccount(ctx, network.FlowTokenAddress()); err != nil {
			h.Status = StatusCritical
			h.AccessNode = err.Error()
		} else if h.PendingTransactions > MaxPendingTransactions {
			h.Status = StatusDegraded
		}
		networks[network] = h
	}

	report := Report{SystemStatus: worst(networks), Networks: networks}
	if len(m.stores) > 0 {
		report.Stores = make(map[string]string, len(m.stores))
		for name, p := range m.stores {
			report.Stores[name] = "ok"
			if err := p.Health(ctx); err != nil {
				report.Stores[name] = err.Error()
				if report.SystemStatus == StatusHealthy {
					report.SystemStatus = StatusDegraded
				}
			}
		}
	}
	if m.session != nil {
		report.Session = m.session.SessionState()
	}

	m.lastCheck = time.Now()
	m.lastReport = &report
	return report
}
