package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/vietddude/walletsync/internal/core/config"
	"github.com/vietddude/walletsync/internal/core/domain"
	"github.com/vietddude/walletsync/internal/core/events"
	"github.com/vietddude/walletsync/internal/core/worker"
	"github.com/vietddude/walletsync/internal/infra/api"
	"github.com/vietddude/walletsync/internal/infra/chain"
	"github.com/vietddude/walletsync/internal/infra/chain/evm"
	"github.com/vietddude/walletsync/internal/infra/chain/flow"
	redisclient "github.com/vietddude/walletsync/internal/infra/redis"
	"github.com/vietddude/walletsync/internal/infra/storage"
	"github.com/vietddude/walletsync/internal/infra/storage/memory"
	"github.com/vietddude/walletsync/internal/infra/storage/postgres"
	"github.com/vietddude/walletsync/internal/wallet/account"
	"github.com/vietddude/walletsync/internal/wallet/health"
	"github.com/vietddude/walletsync/internal/wallet/manager"
	"github.com/vietddude/walletsync/internal/wallet/token"
	"github.com/vietddude/walletsync/internal/wallet/transaction"
)

// App wires the wallet services together and owns their lifecycle.
type App struct {
	cfg *config.AppConfig
	log *slog.Logger

	Bus          *events.Bus
	Keys         *manager.PreferenceKeyStore
	Wallet       *manager.Manager
	Tokens       *token.Handler
	Accounts     *account.Fetcher
	Transactions *transaction.Manager
	History      storage.TransactionHistoryRepository

	ledgers     map[domain.Network]chain.Ledger
	backend     *api.Client
	evmClients  []*evm.Client
	db          *postgres.DB
	redisClient *redisclient.Client
	pruner      *worker.Pruner
	healthMon   *health.Monitor
	health      *health.Server
	cancel      context.CancelFunc
}

// stores holds the storage backends picked from config.
type stores struct {
	prefs   storage.PreferenceStore
	cache   storage.TokenCache
	history storage.TransactionHistoryRepository
	db      *postgres.DB
	redis   *redisclient.Client
}

// openStores prefers Redis for preferences and token snapshots and
// Postgres for history. Anything not configured falls back to memory.
func openStores(ctx context.Context, cfg *config.AppConfig, log *slog.Logger) (*stores, error) {
	mem := memory.NewMemoryStorage()
	s := &stores{
		prefs:   memory.NewPreferenceRepo(mem),
		cache:   memory.NewTokenCacheRepo(mem),
		history: memory.NewHistoryRepo(mem),
	}

	if cfg.Database.URL != "" {
		db, err := postgres.NewDB(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to init db: %w", err)
		}
		if err := db.Migrate(); err != nil {
			_ = db.Close()
			return nil, err
		}
		s.db = db
		s.history = postgres.NewHistoryRepo(db)
		s.prefs = postgres.NewPreferenceRepo(db)
		log.Info("Using PostgreSQL storage")
	}

	if cfg.Redis.URL != "" {
		rc, err := redisclient.NewClient(cfg.Redis)
		if err != nil {
			log.Warn("Failed to connect to Redis, using fallback storage", "error", err)
		} else {
			s.redis = rc
			s.prefs = rc
			s.cache = rc
			log.Info("Using Redis for preferences")
		}
	}

	if s.db == nil && s.redis == nil {
		log.Info("Using Memory storage")
	}
	return s, nil
}

// New builds every service from cfg. Nothing runs until Start.
func New(ctx context.Context, cfg *config.AppConfig, log *slog.Logger) (*App, error) {
	if log == nil {
		log = slog.Default()
	}
	if len(cfg.Networks) == 0 {
		return nil, errors.New("no networks configured")
	}

	st, err := openStores(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	bus := events.NewBus(log)
	backend := api.NewClient(cfg.Backend, log)

	var (
		networks   []domain.Network
		ledgers    = make(map[domain.Network]chain.Ledger)
		sources    = make(map[domain.Network]transaction.StatusSource)
		evms       = make(map[domain.Network]chain.EVM)
		evmClients []*evm.Client
	)
	for _, n := range cfg.Networks {
		client := flow.NewClient(flow.Config{
			Network:       n.Name,
			AccessURL:     n.AccessURL,
			StreamURL:     n.StreamURL,
			KeyIndexerURL: n.KeyIndexerURL,
			Timeout:       cfg.Backend.Timeout,
		}, log)
		ledgers[n.Name] = client
		sources[n.Name] = client
		networks = append(networks, n.Name)

		if n.EVMRPCURL != "" {
			ec := evm.NewClient(n.EVMRPCURL, log)
			evms[n.Name] = ec
			evmClients = append(evmClients, ec)
		}
		log.Info("Network configured", "network", n.Name, "evm", n.EVMRPCURL != "")
	}

	factory := token.NewFactory(backend, evms, cfg.Wallet.Currency, cfg.Wallet.NFTConcurrency, log)
	tokens := token.NewHandler(factory, ledgers, log)
	linked := account.NewLinkedLoader(backend)
	keys := manager.NewPreferenceKeyStore(st.prefs)

	wallet := manager.NewManager(manager.Config{
		Networks:       networks,
		DefaultNetwork: cfg.Wallet.DefaultNetwork,
		FreeGas:        cfg.Wallet.FreeGas,
		EventBuffer:    cfg.Wallet.EventBuffer,
	}, manager.Deps{
		Keys:     keys,
		Graphs:   manager.NewLedgerGraph(ledgers),
		Tokens:   tokens,
		Linked:   linked,
		Accounts: backend,
		Prefs:    st.prefs,
		Cache:    st.cache,
		Bus:      bus,
	}, log)

	txs := transaction.NewManager(transaction.Deps{
		Sources:  sources,
		Wallet:   wallet,
		Staking:  transaction.StakingFunc(wallet.RefreshAccountInfo),
		Children: wallet,
		Storage:  wallet,
		History:  st.history,
		Bus:      bus,
	}, log)

	healthMon := health.NewMonitor(ledgers, txs, wallet, 10*time.Second)
	if st.db != nil {
		healthMon.AddStore("postgres", st.db)
	}
	if st.redis != nil {
		healthMon.AddStore("redis", st.redis)
	}

	return &App{
		cfg:          cfg,
		log:          log,
		Bus:          bus,
		Keys:         keys,
		Wallet:       wallet,
		Tokens:       tokens,
		Accounts:     account.NewFetcher(linked, backend, log),
		Transactions: txs,
		History:      st.history,
		ledgers:      ledgers,
		backend:      backend,
		evmClients:   evmClients,
		db:           st.db,
		redisClient:  st.redis,
		pruner:       worker.NewPruner(cfg.Wallet.HistoryRetention, networks, st.history, log),
		healthMon:    healthMon,
		health:       health.NewServer(healthMon, wallet, txs, st.history, cfg.Server.Port),
	}, nil
}

// Start launches the background loops and the health server.
func (a *App) Start(ctx context.Context) error {
	ctx, a.cancel = context.WithCancel(ctx)

	go func() {
		if err := a.health.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("Health server failed", "error", err)
		}
	}()

	go a.Wallet.Run(ctx)
	go a.Transactions.Run(ctx)
	go a.pruner.Start(ctx)

	if a.db != nil {
		a.db.StartMetricsCollector(ctx)
	}

	a.log.Info("Wallet services started", "port", a.cfg.Server.Port)
	return nil
}

// Stop abandons pending transactions and releases every connection.
func (a *App) Stop(ctx context.Context) error {
	a.log.Info("Stopping wallet services...")
	if a.cancel != nil {
		a.cancel()
	}

	a.Transactions.Close()
	a.Tokens.Reset()
	a.Bus.Close()

	for _, ec := range a.evmClients {
		ec.Close()
	}
	_ = a.backend.Close()

	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.log.Warn("Failed to close Redis", "error", err)
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.Warn("Failed to close database", "error", err)
		}
	}

	return a.health.Stop(ctx)
}

// Health runs one health check.
func (a *App) Health(ctx context.Context) health.Report {
	return a.healthMon.CheckHealth(ctx)
}
