package control

import (
	"context"
	"testing"
	"time"

	"github.com/vietddude/walletsync/internal/core/config"
	"github.com/vietddude/walletsync/internal/core/domain"
	"github.com/vietddude/walletsync/internal/infra/api"
	"github.com/vietddude/walletsync/internal/infra/storage/memory"
)

func testConfig() *config.AppConfig {
	return &config.AppConfig{
		Server: config.ServerConfig{Port: 0},
		Wallet: config.WalletConfig{
			DefaultNetwork: domain.Mainnet,
			Currency:       "usd",
			NFTConcurrency: 2,
		},
		Backend: api.Config{URL: "http://localhost:1", Timeout: time.Second, MaxAttempts: 1},
		Networks: []config.NetworkConfig{
			{Name: domain.Mainnet, AccessURL: "http://localhost:2", EVMRPCURL: "http://localhost:3"},
			{Name: domain.Testnet, AccessURL: "http://localhost:4"},
		},
	}
}

func TestApp_Lifecycle(t *testing.T) {
	app, err := New(context.Background(), testConfig(), nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if len(app.ledgers) != 2 {
		t.Errorf("expected 2 ledgers, got %d", len(app.ledgers))
	}
	if len(app.evmClients) != 1 {
		t.Errorf("expected 1 evm client, got %d", len(app.evmClients))
	}
	if _, ok := app.History.(*memory.HistoryRepo); !ok {
		t.Errorf("expected memory history, got %T", app.History)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	if err := app.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	time.Sleep(50 * time.Millisecond)

	if got := app.Wallet.SessionState(); got != "no_session" {
		t.Errorf("session = %q", got)
	}

	if err := app.Stop(ctx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
}

func TestApp_NoNetworks(t *testing.T) {
	cfg := testConfig()
	cfg.Networks = nil

	if _, err := New(context.Background(), cfg, nil); err == nil {
		t.Error("expected error for empty network list")
	}
}

func TestApp_HealthCriticalWithoutAccessNode(t *testing.T) {
	app, err := New(context.Background(), testConfig(), nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	report := app.Health(context.Background())
	if report.SystemStatus != "critical" {
		t.Errorf("expected critical, got %s", report.SystemStatus)
	}
	if len(report.Networks) != 2 {
		t.Errorf("expected 2 networks, got %d", len(report.Networks))
	}
}
