package account

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/vietddude/walletsync/internal/core/domain"
)

func addr(n int) domain.Address {
	return domain.MustParseAddress(fmt.Sprintf("0x%016x", n))
}

func count(flow int64, nft uint) domain.CountInfo {
	return domain.CountInfo{FlowBalance: decimal.NewFromInt(flow), NFTCount: nft}
}

// MockLinked implements LinkedSource for testing
type MockLinked struct {
	Children map[string][]*domain.ChildAccount
	COAs     map[string]*domain.EVMAccount
	Fail     map[string]bool
}

func (m *MockLinked) ChildAccounts(ctx context.Context, main domain.Address, network domain.Network) ([]*domain.ChildAccount, error) {
	if m.Fail[main.String()] {
		return nil, errors.New("children unavailable")
	}
	return m.Children[main.String()], nil
}

func (m *MockLinked) COAAddress(ctx context.Context, main domain.Address, network domain.Network) (*domain.EVMAccount, error) {
	return m.COAs[main.String()], nil
}

// MockCounts implements CountSource for testing
type MockCounts struct {
	mu    sync.Mutex
	Info  map[string]domain.CountInfo
	Calls [][]domain.Address
	Fail  map[string]bool
}

func (m *MockCounts) FlowTokenAndNFTCount(ctx context.Context, network domain.Network, addrs []domain.Address) (map[string]domain.CountInfo, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, addrs)
	m.mu.Unlock()
	if len(addrs) > 0 && m.Fail[addrs[0].String()] {
		return nil, errors.New("summary unavailable")
	}
	return m.Info, nil
}

func TestRegroup_OrdersChildrenByCounts(t *testing.T) {
	main := domain.NewMainAccount(addr(1), domain.Mainnet, nil)
	coa := &domain.EVMAccount{Address: domain.MustParseAddress("0x00000000000000000000000235fa9e5d6c3b2ad6")}
	a, b, c := addr(10), addr(11), addr(12)
	main.SetLinked([]*domain.ChildAccount{{Address: a}, {Address: b}, {Address: c}}, coa)

	info := map[string]domain.CountInfo{
		a.String(): count(5, 2),
		b.String(): count(5, 1),
		c.String(): count(10, 0),
	}

	group := Regroup(main, info)
	if len(group) != 5 {
		t.Fatalf("got %d models, want 5", len(group))
	}
	if group[0].Type != domain.AccountMain || group[1].Type != domain.AccountCOA {
		t.Errorf("main and coa must lead: %v, %v", group[0].Type, group[1].Type)
	}
	want := []domain.Address{c, a, b}
	for i, w := range want {
		if !group[i+2].Address.Equal(w) {
			t.Errorf("child %d = %s, want %s", i, group[i+2].Address, w)
		}
	}
	if !group[0].Count.FlowBalance.IsZero() || group[0].Count.NFTCount != 0 {
		t.Errorf("missing info should be zero, got %+v", group[0].Count)
	}
	if !group[1].Main.Equal(main.Address) {
		t.Errorf("coa main = %s", group[1].Main)
	}
}

func TestRegroup_NoLinkedAccounts(t *testing.T) {
	main := domain.NewMainAccount(addr(1), domain.Mainnet, nil)
	group := Regroup(main, nil)
	if len(group) != 1 || group[0].Type != domain.AccountMain {
		t.Errorf("unexpected group %+v", group)
	}
}

func TestFetchAccountInfo_DropsFailedGroups(t *testing.T) {
	m1, m2, m3 := addr(1), addr(2), addr(3)
	child := addr(20)

	linked := &MockLinked{
		Children: map[string][]*domain.ChildAccount{m1.String(): {{Address: child}}},
		Fail:     map[string]bool{m2.String(): true},
	}
	counts := &MockCounts{Info: map[string]domain.CountInfo{
		m1.String():    count(1, 0),
		m3.String():    count(7, 0),
		child.String(): count(3, 4),
	}}
	f := NewFetcher(NewLinkedLoader(linked), counts, nil)

	mains := []*domain.MainAccount{
		domain.NewMainAccount(m1, domain.Mainnet, nil),
		domain.NewMainAccount(m2, domain.Mainnet, nil),
		domain.NewMainAccount(m3, domain.Mainnet, nil),
	}
	groups := f.FetchAccountInfo(context.Background(), mains)

	if len(groups) != 2 {
		t.Fatalf("got %d groups, want 2", len(groups))
	}
	if !groups[0][0].Address.Equal(m3) || !groups[1][0].Address.Equal(m1) {
		t.Errorf("groups not ranked: %s, %s", groups[0][0].Address, groups[1][0].Address)
	}
	if len(groups[1]) != 2 || !groups[1][1].Address.Equal(child) {
		t.Errorf("child missing from group: %+v", groups[1])
	}
	if !mains[0].Children()[0].MainAddress.Equal(m1) {
		t.Error("child back-reference not set")
	}
}

func TestFetchAccountInfo_BatchesCounts(t *testing.T) {
	m1 := addr(1)
	coa := &domain.EVMAccount{Address: domain.MustParseAddress("0x00000000000000000000000235fa9e5d6c3b2ad6")}
	linked := &MockLinked{
		Children: map[string][]*domain.ChildAccount{m1.String(): {{Address: addr(5)}, {Address: addr(6)}}},
		COAs:     map[string]*domain.EVMAccount{m1.String(): coa},
	}
	counts := &MockCounts{}
	f := NewFetcher(NewLinkedLoader(linked), counts, nil)

	groups := f.FetchAccountInfo(context.Background(), []*domain.MainAccount{domain.NewMainAccount(m1, domain.Mainnet, nil)})
	if len(groups) != 1 || len(groups[0]) != 4 {
		t.Fatalf("unexpected groups %+v", groups)
	}
	if len(counts.Calls) != 1 || len(counts.Calls[0]) != 4 {
		t.Errorf("counts should be fetched in one batch: %v", counts.Calls)
	}
}

func TestFetchAccountInfo_CountFailureDropsGroup(t *testing.T) {
	m1, m2 := addr(1), addr(2)
	counts := &MockCounts{
		Info: map[string]domain.CountInfo{m2.String(): count(1, 0)},
		Fail: map[string]bool{m1.String(): true},
	}
	f := NewFetcher(NewLinkedLoader(&MockLinked{}), counts, nil)

	groups := f.FetchAccountInfo(context.Background(), []*domain.MainAccount{
		domain.NewMainAccount(m1, domain.Mainnet, nil),
		domain.NewMainAccount(m2, domain.Mainnet, nil),
	})
	if len(groups) != 1 || !groups[0][0].Address.Equal(m2) {
		t.Errorf("unexpected groups %+v", groups)
	}
}
