package transaction

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vietddude/walletsync/internal/core/domain"
	"github.com/vietddude/walletsync/internal/core/events"
	"github.com/vietddude/walletsync/internal/infra/chain"
	"github.com/vietddude/walletsync/internal/infra/storage/memory"
)

type MockSubscription struct {
	ch     chan domain.TransactionResult
	closed atomic.Bool
	ctx    context.Context
}

func (s *MockSubscription) Updates() <-chan domain.TransactionResult { return s.ch }

func (s *MockSubscription) Close() error {
	s.closed.Store(true)
	return nil
}

type MockSource struct {
	mu   sync.Mutex
	subs map[string]*MockSubscription
	Err  error

	// EndWithContext closes a stream once its subscribe context is done,
	// as the websocket client does.
	EndWithContext bool
}

func (m *MockSource) SubscribeTransactionStatus(ctx context.Context, txID string) (chain.Subscription, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.subs == nil {
		m.subs = make(map[string]*MockSubscription)
	}
	sub := &MockSubscription{ch: make(chan domain.TransactionResult, 8), ctx: ctx}
	m.subs[txID] = sub
	if m.EndWithContext {
		go func() {
			<-ctx.Done()
			close(sub.ch)
		}()
	}
	return sub, nil
}

func (m *MockSource) sub(id string) *MockSubscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.subs[id]
}

type MockWallet struct {
	refreshes atomic.Int32
	staking   atomic.Int32
	removed   chan domain.Address
}

func (w *MockWallet) FetchWalletDatas(ctx context.Context) error {
	w.refreshes.Add(1)
	return nil
}

func (w *MockWallet) Refresh(ctx context.Context) error {
	w.staking.Add(1)
	return nil
}

func (w *MockWallet) RemoveChildAccount(ctx context.Context, child domain.Address) bool {
	w.removed <- child
	return true
}

func (w *MockWallet) MinimumStorageBalance() decimal.Decimal {
	return decimal.RequireFromString("0.101")
}

type fixture struct {
	mgr     *Manager
	source  *MockSource
	wallet  *MockWallet
	history *memory.HistoryRepo
	bus     *events.Bus
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		source:  &MockSource{},
		wallet:  &MockWallet{removed: make(chan domain.Address, 1)},
		history: memory.NewHistoryRepo(memory.NewMemoryStorage()),
		bus:     events.NewBus(nil),
	}
	f.mgr = NewManager(Deps{
		Sources:  map[domain.Network]StatusSource{domain.Mainnet: f.source},
		Wallet:   f.wallet,
		Staking:  f.wallet,
		Children: f.wallet,
		Storage:  f.wallet,
		History:  f.history,
		Bus:      f.bus,
	}, nil)
	t.Cleanup(f.mgr.Close)
	return f
}

func (f *fixture) track(t *testing.T, id string, typ domain.TxType, payload any) *domain.TransactionHolder {
	t.Helper()
	var data []byte
	if payload != nil {
		var err error
		if data, err = json.Marshal(payload); err != nil {
			t.Fatal(err)
		}
	}
	h := domain.NewTransactionHolder(id, domain.Mainnet, typ, data, "script-1")
	ok, err := f.mgr.NewTransaction(context.Background(), h)
	if err != nil || !ok {
		t.Fatalf("NewTransaction(%s) = %v, %v", id, ok, err)
	}
	return h
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func expectEvent(t *testing.T, sub events.Subscriber) events.Event {
	t.Helper()
	select {
	case ev := <-sub:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
	}
	return events.Event{}
}

func TestNewTransaction_DedupesAndOrders(t *testing.T) {
	f := newFixture(t)
	f.track(t, "0xAA", domain.TxCommon, nil)
	f.track(t, "bb", domain.TxCommon, nil)

	dup := domain.NewTransactionHolder("aa", domain.Mainnet, domain.TxTransferCoin, nil, "")
	ok, err := f.mgr.NewTransaction(context.Background(), dup)
	if err != nil || ok {
		t.Errorf("duplicate accepted: %v, %v", ok, err)
	}

	holders := f.mgr.Holders()
	if len(holders) != 2 || holders[0].ID != "bb" || holders[1].ID != "aa" {
		t.Errorf("holders = %+v", holders)
	}
	if !f.mgr.IsExist("0xaa") || !f.mgr.IsExist("AA") || f.mgr.IsExist("cc") {
		t.Error("IsExist mismatch")
	}
}

func TestNewTransaction_Errors(t *testing.T) {
	f := newFixture(t)

	h := domain.NewTransactionHolder("aa", domain.Testnet, domain.TxCommon, nil, "")
	if _, err := f.mgr.NewTransaction(context.Background(), h); !errors.Is(err, domain.ErrUnsupportedNetwork) {
		t.Errorf("expected ErrUnsupportedNetwork, got %v", err)
	}

	f.source.Err = errors.New("stream unavailable")
	h = domain.NewTransactionHolder("bb", domain.Mainnet, domain.TxCommon, nil, "")
	if _, err := f.mgr.NewTransaction(context.Background(), h); err == nil {
		t.Error("expected subscribe error")
	}
	if f.mgr.IsExist("bb") {
		t.Error("holder kept after failed subscription")
	}
}

func TestSingleTerminalTransition(t *testing.T) {
	f := newFixture(t)
	_, statuses := f.bus.Subscribe(16, events.TransactionStatusChanged)
	f.track(t, "aa", domain.TxAddToken, nil)

	sub := f.source.sub("aa")
	sub.ch <- domain.TransactionResult{Status: domain.StatusPending}
	sub.ch <- domain.TransactionResult{Status: domain.StatusFinalized}
	sub.ch <- domain.TransactionResult{Status: domain.StatusSealed}

	var last events.TransactionUpdate
	for last.Record.Status != domain.InternalSuccess {
		last = expectEvent(t, statuses).Data.(events.TransactionUpdate)
	}
	if last.Record.ChainStatus != "sealed" {
		t.Errorf("chain status = %s", last.Record.ChainStatus)
	}

	waitFor(t, "wallet refresh", func() bool { return f.wallet.refreshes.Load() == 1 })
	waitFor(t, "subscription closed", sub.closed.Load)
	if f.mgr.IsExist("aa") {
		t.Error("holder still tracked after sealing")
	}

	// a duplicate terminal update is ignored
	f.mgr.onStatus("aa", domain.TransactionResult{Status: domain.StatusSealed})
	time.Sleep(20 * time.Millisecond)
	if n := f.wallet.refreshes.Load(); n != 1 {
		t.Errorf("side effect ran %d times", n)
	}

	rec, _ := f.history.GetByID(context.Background(), "aa")
	if rec == nil || rec.Status != domain.InternalSuccess || rec.CompletedAt.IsZero() {
		t.Errorf("history record = %+v", rec)
	}
}

func TestTrackingOutlivesCallerContext(t *testing.T) {
	f := newFixture(t)
	f.source.EndWithContext = true

	ctx, cancel := context.WithCancel(context.Background())
	h := domain.NewTransactionHolder("aa", domain.Mainnet, domain.TxAddToken, nil, "script-1")
	if ok, err := f.mgr.NewTransaction(ctx, h); err != nil || !ok {
		t.Fatalf("NewTransaction = %v, %v", ok, err)
	}
	cancel()

	sub := f.source.sub("aa")
	time.Sleep(20 * time.Millisecond)
	if err := sub.ctx.Err(); err != nil {
		t.Fatalf("stream ended with the caller: %v", err)
	}

	sub.ch <- domain.TransactionResult{Status: domain.StatusSealed}
	waitFor(t, "wallet refresh", func() bool { return f.wallet.refreshes.Load() == 1 })
	if f.mgr.IsExist("aa") {
		t.Error("holder still tracked after sealing")
	}
	waitFor(t, "stream ended after completion", func() bool { return sub.ctx.Err() != nil })
}

func TestFailedTransaction_StorageExceeded(t *testing.T) {
	f := newFixture(t)
	_, alerts := f.bus.Subscribe(4, events.StorageInsufficient)
	f.track(t, "aa", domain.TxAddToken, nil)

	f.source.sub("aa").ch <- domain.TransactionResult{
		Status:       domain.StatusSealed,
		ErrorMessage: "[Error Code: 1103] storage capacity exceeded",
		ErrorCode:    1103,
	}

	alert := expectEvent(t, alerts).Data.(events.StorageAlert)
	if alert.TxID != "aa" || !alert.MinimumBalance.Equal(decimal.RequireFromString("0.101")) {
		t.Errorf("alert = %+v", alert)
	}
	rec, _ := f.history.GetByID(context.Background(), "aa")
	if rec == nil || rec.Status != domain.InternalFailed || rec.ErrorCode != 1103 {
		t.Errorf("history record = %+v", rec)
	}
	if f.wallet.refreshes.Load() != 0 {
		t.Error("failed transaction triggered refresh")
	}
}

func TestFailedTransaction_OtherCodeNoAlert(t *testing.T) {
	f := newFixture(t)
	_, alerts := f.bus.Subscribe(4, events.StorageInsufficient)
	_, statuses := f.bus.Subscribe(4, events.TransactionStatusChanged)
	f.track(t, "aa", domain.TxCommon, nil)

	f.source.sub("aa").ch <- domain.TransactionResult{Status: domain.StatusSealed, ErrorMessage: "[Error Code: 1101] cadence runtime error"}

	ev := expectEvent(t, statuses).Data.(events.TransactionUpdate)
	if ev.Record.Status != domain.InternalFailed || ev.Record.ErrorCode != 1101 {
		t.Errorf("record = %+v", ev.Record)
	}
	select {
	case <-alerts:
		t.Error("unexpected storage alert")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSuccessDispatchByType(t *testing.T) {
	child := domain.MustParseAddress("0x000000000000000a")

	tests := []struct {
		name    string
		typ     domain.TxType
		payload any
		event   events.Type
		check   func(t *testing.T, f *fixture)
	}{
		{name: "add collection", typ: domain.TxAddCollection, event: events.NFTCollectionsChanged},
		{name: "transfer nft", typ: domain.TxTransferNFT, event: events.NFTChangedByMoving},
		{name: "move asset", typ: domain.TxMoveAsset, event: events.NFTChangedByMoving},
		{name: "claim domain", typ: domain.TxClaimDomain, event: events.DomainClaimed},
		{name: "stake flow", typ: domain.TxStakeFlow, event: events.StakingChanged, check: func(t *testing.T, f *fixture) {
			waitFor(t, "staking refresh", func() bool { return f.wallet.staking.Load() == 1 })
		}},
		{name: "unlink account", typ: domain.TxUnlinkAccount, payload: domain.ChildAccount{Address: child}, check: func(t *testing.T, f *fixture) {
			select {
			case got := <-f.wallet.removed:
				if !got.Equal(child) {
					t.Errorf("removed %s", got)
				}
			case <-time.After(2 * time.Second):
				t.Fatal("child not removed")
			}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, sub := f.bus.Subscribe(4,
				events.NFTCollectionsChanged, events.NFTChangedByMoving, events.DomainClaimed, events.StakingChanged)
			f.track(t, "aa", tt.typ, tt.payload)

			f.source.sub("aa").ch <- domain.TransactionResult{Status: domain.StatusSealed}

			if tt.event != "" {
				ev := expectEvent(t, sub)
				if ev.Type != tt.event {
					t.Errorf("event = %s, want %s", ev.Type, tt.event)
				}
			}
			if tt.check != nil {
				tt.check(t, f)
			}
			if f.wallet.refreshes.Load() != 0 {
				t.Error("unexpected wallet refresh")
			}
		})
	}
}

func TestExecutedIsTerminal(t *testing.T) {
	f := newFixture(t)
	f.track(t, "aa", domain.TxCommon, nil)

	f.source.sub("aa").ch <- domain.TransactionResult{Status: domain.StatusExecuted}

	waitFor(t, "holder removal", func() bool { return !f.mgr.IsExist("aa") })
	waitFor(t, "wallet refresh", func() bool { return f.wallet.refreshes.Load() == 1 })
}

func TestReset(t *testing.T) {
	f := newFixture(t)
	f.track(t, "aa", domain.TxCommon, nil)
	f.track(t, "bb", domain.TxCommon, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go f.mgr.Run(ctx)
	time.Sleep(20 * time.Millisecond)

	f.bus.Publish(events.WillResetWallet, nil)

	waitFor(t, "holders dropped", func() bool { return len(f.mgr.Holders()) == 0 })
	waitFor(t, "subscriptions closed", func() bool {
		return f.source.sub("aa").closed.Load() && f.source.sub("bb").closed.Load()
	})

	// a late update for a dropped holder is ignored
	f.mgr.onStatus("aa", domain.TransactionResult{Status: domain.StatusSealed})
	time.Sleep(20 * time.Millisecond)
	if f.wallet.refreshes.Load() != 0 {
		t.Error("dropped holder completed")
	}
}

func TestScans(t *testing.T) {
	f := newFixture(t)
	f.track(t, "aa", domain.TxAddToken, domain.AddTokenPayload{Symbol: "USDC"})
	f.track(t, "bb", domain.TxAddCollection, domain.AddCollectionPayload{ContractName: "TopShot"})
	nft := domain.TransferNFTPayload{To: "0x01"}
	nft.NFT.ID = "42"
	f.track(t, "cc", domain.TxTransferNFT, nft)
	f.track(t, "dd", domain.TxCommon, domain.AddTokenPayload{Symbol: "FLOW"})

	if !f.mgr.IsTokenEnabling("USDC") || f.mgr.IsTokenEnabling("FLOW") {
		t.Error("IsTokenEnabling mismatch")
	}
	if !f.mgr.IsCollectionEnabling("TopShot") || f.mgr.IsCollectionEnabling("Other") {
		t.Error("IsCollectionEnabling mismatch")
	}
	if !f.mgr.IsNFTTransferring("42") || f.mgr.IsNFTTransferring("43") {
		t.Error("IsNFTTransferring mismatch")
	}
	if len(f.mgr.Holders()) != 4 {
		t.Error("scans mutated holders")
	}
}
