package account

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/vietddude/walletsync/internal/core/domain"
)

// LinkedSource lists the accounts linked to a main account.
type LinkedSource interface {
	ChildAccounts(ctx context.Context, main domain.Address, network domain.Network) ([]*domain.ChildAccount, error)
	COAAddress(ctx context.Context, main domain.Address, network domain.Network) (*domain.EVMAccount, error)
}

// LinkedLoader refreshes children and COA together.
type LinkedLoader struct {
	src LinkedSource
}

func NewLinkedLoader(src LinkedSource) *LinkedLoader {
	return &LinkedLoader{src: src}
}

// RefreshAccount replaces the linked accounts of main. main is left
// untouched if either lookup fails.
func (l *LinkedLoader) RefreshAccount(ctx context.Context, main *domain.MainAccount) error {
	var (
		children []*domain.ChildAccount
		coa      *domain.EVMAccount
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		children, err = l.src.ChildAccounts(gctx, main.Address, main.Network)
		return err
	})
	g.Go(func() error {
		var err error
		coa, err = l.src.COAAddress(gctx, main.Address, main.Network)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	main.SetLinked(children, coa)
	return nil
}
