package account

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/vietddude/walletsync/internal/core/domain"
)

// Model is one row of a ranked account group.
type Model struct {
	Type    domain.AccountType `json:"type"`
	Address domain.Address     `json:"address"`
	Main    domain.Address     `json:"main"`
	Name    string             `json:"name,omitempty"`
	Icon    string             `json:"icon,omitempty"`
	Count   domain.CountInfo   `json:"count"`
}

// Loader refreshes the linked accounts of a main account in place.
type Loader interface {
	RefreshAccount(ctx context.Context, main *domain.MainAccount) error
}

// CountSource returns flow balance and NFT counts for many addresses in one
// request, keyed by Address.String().
type CountSource interface {
	FlowTokenAndNFTCount(ctx context.Context, network domain.Network, addrs []domain.Address) (map[string]domain.CountInfo, error)
}

// Fetcher builds ranked account groups, one per main account.
type Fetcher struct {
	loader Loader
	counts CountSource
	log    *slog.Logger
}

func NewFetcher(loader Loader, counts CountSource, log *slog.Logger) *Fetcher {
	if log == nil {
		log = slog.Default()
	}
	return &Fetcher{loader: loader, counts: counts, log: log}
}

// FetchAccountInfo refreshes every main account concurrently and returns
// one group per account that loaded. A group whose refresh or count fetch
// fails is dropped. Groups are ordered by their main account's counts,
// largest first.
func (f *Fetcher) FetchAccountInfo(ctx context.Context, mains []*domain.MainAccount) [][]Model {
	var (
		mu     sync.Mutex
		groups [][]Model
		wg     sync.WaitGroup
	)

	for _, main := range mains {
		wg.Add(1)
		go func() {
			defer wg.Done()
			group, err := f.fetchGroup(ctx, main)
			if err != nil {
				f.log.Warn("Dropping account group", "main", main.Address, "error", err)
				return
			}
			mu.Lock()
			groups = append(groups, group)
			mu.Unlock()
		}()
	}
	wg.Wait()

	slices.SortStableFunc(groups, func(a, b []Model) int {
		return compareDesc(a[0].Count, b[0].Count)
	})
	return groups
}

func (f *Fetcher) fetchGroup(ctx context.Context, main *domain.MainAccount) ([]Model, error) {
	if err := f.loader.RefreshAccount(ctx, main); err != nil {
		return nil, fmt.Errorf("refresh linked accounts: %w", err)
	}
	info, err := f.counts.FlowTokenAndNFTCount(ctx, main.Network, main.LinkedAddresses())
	if err != nil {
		return nil, fmt.Errorf("fetch counts: %w", err)
	}
	return Regroup(main, info), nil
}

// Regroup orders a main account, then its COA, then its children by counts,
// largest first. Addresses missing from info get zero counts.
func Regroup(main *domain.MainAccount, info map[string]domain.CountInfo) []Model {
	group := []Model{{
		Type:    domain.AccountMain,
		Address: main.Address,
		Main:    main.Address,
		Count:   info[main.Address.String()],
	}}

	if coa := main.COA(); coa != nil {
		group = append(group, Model{
			Type:    domain.AccountCOA,
			Address: coa.Address,
			Main:    main.Address,
			Count:   info[coa.Address.String()],
		})
	}

	children := make([]Model, 0)
	for _, c := range main.Children() {
		children = append(children, Model{
			Type:    domain.AccountChild,
			Address: c.Address,
			Main:    main.Address,
			Name:    c.Name,
			Icon:    c.Icon,
			Count:   info[c.Address.String()],
		})
	}
	slices.SortStableFunc(children, func(a, b Model) int {
		return compareDesc(a.Count, b.Count)
	})
	return append(group, children...)
}

func compareDesc(a, b domain.CountInfo) int {
	switch {
	case b.Less(a):
		return -1
	case a.Less(b):
		return 1
	}
	return 0
}
