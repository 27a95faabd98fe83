package transaction

import (
	"context"

	"github.com/vietddude/walletsync/internal/core/domain"
	"github.com/vietddude/walletsync/internal/infra/chain"
)

// StatusSource opens a status stream for one transaction.
type StatusSource interface {
	SubscribeTransactionStatus(ctx context.Context, txID string) (chain.Subscription, error)
}

// watch forwards every update of sub to onStatus until the first status at
// or past sealed, then closes the stream. It returns when the stream ends
// or ctx is done.
func watch(ctx context.Context, id string, sub chain.Subscription, onStatus func(string, domain.TransactionResult)) {
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case r, ok := <-sub.Updates():
			if !ok {
				return
			}
			onStatus(id, r)
			if r.Status >= domain.StatusSealed {
				return
			}
		}
	}
}
