package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/vietddude/walletsync/internal/core/domain"
)

func setupDB(t *testing.T) *DB {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	db, err := NewDB(context.Background(), Config{URL: url})
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	if err := db.Migrate(); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	t.Cleanup(func() {
		_, _ = db.Exec(`DELETE FROM transaction_history WHERE tx_id LIKE 'test%'`)
		_, _ = db.Exec(`DELETE FROM wallet_preferences WHERE key LIKE 'test:%'`)
		_ = db.Close()
	})
	return db
}

func TestHistoryRepo_SaveAndList(t *testing.T) {
	db := setupDB(t)
	repo := NewHistoryRepo(db)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	rec := &domain.TransactionRecord{
		ID:          "test01",
		Network:     domain.Testnet,
		Type:        domain.TxAddToken.String(),
		Status:      domain.InternalSuccess,
		ChainStatus: domain.StatusSealed.String(),
		CreatedAt:   now.Add(-time.Minute),
		CompletedAt: now,
	}
	if err := repo.Save(ctx, rec); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	rec.Status = domain.InternalFailed
	if err := repo.Save(ctx, rec); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	got, err := repo.GetByID(ctx, "0xtest01")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got == nil || got.Status != domain.InternalFailed {
		t.Errorf("expected upserted failed record, got %+v", got)
	}

	recent, err := repo.ListRecent(ctx, domain.Testnet, 10)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(recent) == 0 {
		t.Error("expected at least one record")
	}

	missing, err := repo.GetByID(ctx, "test-missing")
	if err != nil || missing != nil {
		t.Errorf("expected nil for unknown id, got %+v %v", missing, err)
	}
}

func TestPreferenceRepo_RoundTrip(t *testing.T) {
	db := setupDB(t)
	repo := NewPreferenceRepo(db)
	ctx := context.Background()

	if err := repo.Set(ctx, "test:network", "testnet"); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	v, found, err := repo.Get(ctx, "test:network")
	if err != nil || !found || v != "testnet" {
		t.Errorf("expected testnet, got %q %v %v", v, found, err)
	}
	if err := repo.Delete(ctx, "test:network"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, found, _ := repo.Get(ctx, "test:network"); found {
		t.Error("expected deleted")
	}
}
