package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/vietddude/walletsync/internal/core/domain"
	"github.com/vietddude/walletsync/internal/infra/storage"
)

// Pruner deletes completed transactions past the retention period.
type Pruner struct {
	retention time.Duration
	networks  []domain.Network
	history   storage.TransactionHistoryRepository
	log       *slog.Logger
}

// NewPruner creates a new Pruner worker.
func NewPruner(
	retention time.Duration,
	networks []domain.Network,
	history storage.TransactionHistoryRepository,
	log *slog.Logger,
) *Pruner {
	if log == nil {
		log = slog.Default()
	}
	return &Pruner{
		retention: retention,
		networks:  networks,
		history:   history,
		log:       log.With("component", "pruner"),
	}
}

// Start runs the pruner loop until ctx is done.
func (p *Pruner) Start(ctx context.Context) {
	if p.retention <= 0 {
		return // retention disabled
	}

	// 10% of retention, clamped to [1m, 1h]
	interval := min(p.retention/10, time.Hour)
	interval = max(interval, time.Minute)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	p.Prune(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Prune(ctx)
		}
	}
}

// Prune runs one pass over every network.
func (p *Pruner) Prune(ctx context.Context) {
	cutoff := time.Now().Add(-p.retention)
	for _, network := range p.networks {
		n, err := p.history.DeleteOlderThan(ctx, network, cutoff)
		if err != nil {
			p.log.Error("Failed to prune transaction history", "network", network, "error", err)
			continue
		}
		if n > 0 {
			p.log.Debug("Pruned transaction history", "network", network, "deleted", n)
		}
	}
}
