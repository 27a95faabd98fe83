package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vietddude/walletsync/internal/core/domain"
	"github.com/vietddude/walletsync/internal/infra/chain"
	"github.com/vietddude/walletsync/internal/infra/storage/memory"
)

// =============================================================================
// Mocks
// =============================================================================

type mockLedger struct {
	err   error
	calls int
}

func (m *mockLedger) FetchAccount(ctx context.Context, addr domain.Address) (*chain.Account, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return &chain.Account{Address: addr}, nil
}

func (m *mockLedger) FindAccountsByKey(ctx context.Context, publicKey string) ([]*domain.MainAccount, error) {
	return nil, nil
}

func (m *mockLedger) AvailableBalances(ctx context.Context, addrs []domain.Address) (map[string]decimal.Decimal, error) {
	return nil, nil
}

func (m *mockLedger) SubscribeTransactionStatus(ctx context.Context, txID string) (chain.Subscription, error) {
	return nil, errors.New("not supported")
}

type stubTxs struct {
	holders []domain.TransactionRecord
}

func (s *stubTxs) Holders() []domain.TransactionRecord { return s.holders }

type stubWallet struct {
	main *domain.MainAccount
}

func (s *stubWallet) SessionState() string            { return "account_selected" }
func (s *stubWallet) Network() domain.Network         { return domain.Mainnet }
func (s *stubWallet) MainAccounts() []*domain.MainAccount { return []*domain.MainAccount{s.main} }
func (s *stubWallet) SelectedAccount() (domain.SelectedAccount, bool) {
	return domain.SelectedAccount{Type: domain.AccountMain, Address: s.main.Address}, true
}
func (s *stubWallet) VisibleTokens() []domain.Token {
	return []domain.Token{{ID: "A.1654653399040a61.FlowToken.Vault", Symbol: "FLOW"}}
}
func (s *stubWallet) AccountInfo() (domain.AccountInfo, bool) { return domain.AccountInfo{}, false }

// =============================================================================
// Tests
// =============================================================================

func TestMonitor_Statuses(t *testing.T) {
	pending := make([]domain.TransactionRecord, MaxPendingTransactions+1)
	for i := range pending {
		pending[i].Network = domain.Testnet
	}

	m := NewMonitor(map[domain.Network]chain.Ledger{
		domain.Mainnet: &mockLedger{},
		domain.Testnet: &mockLedger{},
	}, &stubTxs{holders: pending}, &stubWallet{}, time.Minute)

	report := m.CheckHealth(context.Background())
	if report.Networks[domain.Mainnet].Status != StatusHealthy {
		t.Errorf("mainnet = %+v", report.Networks[domain.Mainnet])
	}
	if report.Networks[domain.Testnet].Status != StatusDegraded {
		t.Errorf("testnet = %+v", report.Networks[domain.Testnet])
	}
	if report.SystemStatus != StatusDegraded || report.Session != "account_selected" {
		t.Errorf("report = %+v", report)
	}
}

func TestMonitor_CachesReport(t *testing.T) {
	ledger := &mockLedger{err: errors.New("connection refused")}
	m := NewMonitor(map[domain.Network]chain.Ledger{domain.Mainnet: ledger}, nil, nil, time.Minute)

	first := m.CheckHealth(context.Background())
	_ = m.CheckHealth(context.Background())

	if first.SystemStatus != StatusCritical {
		t.Errorf("expected critical, got %s", first.SystemStatus)
	}
	if ledger.calls != 1 {
		t.Errorf("expected 1 probe, got %d", ledger.calls)
	}
}

func TestServer_Health(t *testing.T) {
	m := NewMonitor(map[domain.Network]chain.Ledger{
		domain.Mainnet: &mockLedger{err: errors.New("down")},
	}, nil, nil, 0)
	s := NewServer(m, nil, nil, nil, 0)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
	var body map[string]string
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	if body["status"] != "critical" {
		t.Errorf("body = %v", body)
	}
}

func TestServer_Accounts(t *testing.T) {
	owner := domain.NewMainAccount(domain.MustParseAddress("0x0000000000000001"), domain.Mainnet, nil)
	owner.SetLinked(
		[]*domain.ChildAccount{{Address: domain.MustParseAddress("0x0000000000000002"), Name: "game"}},
		&domain.EVMAccount{Address: domain.MustParseAddress("0x00000000000000000000000235fa9e5d6c3b2ad6")},
	)
	s := NewServer(NewMonitor(nil, nil, nil, 0), &stubWallet{main: owner}, nil, nil, 0)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/accounts", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var view struct {
		Session  string `json:"session"`
		Selected struct {
			Type    string `json:"Type"`
			Address string `json:"Address"`
		} `json:"selected"`
		Accounts []struct {
			Address  string `json:"address"`
			COA      struct{ Address string } `json:"coa"`
			Children []struct{ Name string }  `json:"children"`
		} `json:"accounts"`
		Tokens []domain.Token `json:"tokens"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if view.Selected.Address != "0x0000000000000001" || len(view.Accounts) != 1 {
		t.Errorf("view = %+v", view)
	}
	acc := view.Accounts[0]
	if acc.COA.Address != "0x00000000000000000000000235fa9e5d6c3b2ad6" || len(acc.Children) != 1 || acc.Children[0].Name != "game" {
		t.Errorf("account = %+v", acc)
	}
	if len(view.Tokens) != 1 {
		t.Errorf("tokens = %+v", view.Tokens)
	}
}

func TestServer_Transactions(t *testing.T) {
	ctx := context.Background()
	history := memory.NewHistoryRepo(memory.NewMemoryStorage())
	now := time.Now()
	for i, id := range []string{"aa", "bb", "cc"} {
		_ = history.Save(ctx, &domain.TransactionRecord{ID: id, Network: domain.Testnet, CompletedAt: now.Add(time.Duration(i) * time.Second)})
	}
	txs := &stubTxs{holders: []domain.TransactionRecord{{ID: "dd", Network: domain.Mainnet}}}
	s := NewServer(NewMonitor(nil, nil, nil, 0), nil, txs, history, 0)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/transactions?network=testnet&limit=2", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var view transactionsView
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(view.Pending) != 1 || view.Pending[0].ID != "dd" {
		t.Errorf("pending = %+v", view.Pending)
	}
	if len(view.Recent) != 2 || view.Recent[0].ID != "cc" {
		t.Errorf("recent = %+v", view.Recent)
	}

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/transactions?limit=x", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

type stubStore struct{ err error }

func (s stubStore) Health(ctx context.Context) error { return s.err }

func TestMonitor_StoreFailureDegrades(t *testing.T) {
	m := NewMonitor(map[domain.Network]chain.Ledger{domain.Mainnet: &mockLedger{}}, nil, nil, 0)
	m.AddStore("redis", stubStore{err: errors.New("connection reset")})
	m.AddStore("postgres", stubStore{})

	report := m.CheckHealth(context.Background())
	if report.SystemStatus != StatusDegraded {
		t.Errorf("expected degraded, got %s", report.SystemStatus)
	}
	if report.Stores["redis"] != "connection reset" || report.Stores["postgres"] != "ok" {
		t.Errorf("stores = %v", report.Stores)
	}
}
