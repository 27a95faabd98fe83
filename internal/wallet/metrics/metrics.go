package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ProviderFetches tracks token provider calls per family and operation
	ProviderFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "walletsync_provider_fetches_total",
			Help: "Total number of token provider fetches",
		},
		[]string{"family", "op", "result"},
	)

	// NFTPages tracks NFT page requests
	NFTPages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "walletsync_nft_pages_total",
			Help: "Total number of NFT pages fetched",
		},
		[]string{"family", "result"},
	)

	// BackendRequests tracks REST backend calls
	BackendRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "walletsync_backend_requests_total",
			Help: "Total number of backend requests",
		},
		[]string{"endpoint", "status"},
	)

	// BackendLatency tracks REST backend latency
	BackendLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "walletsync_backend_latency_seconds",
			Help:    "Backend request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	// PendingTransactions tracks holders awaiting a terminal status
	PendingTransactions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "walletsync_pending_transactions",
			Help: "Number of submitted transactions not yet completed",
		},
	)

	// TransactionsCompleted tracks terminal transactions
	TransactionsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "walletsync_transactions_completed_total",
			Help: "Total number of completed transactions",
		},
		[]string{"type", "status"},
	)

	// WalletRefreshes tracks FetchWalletDatas step outcomes
	WalletRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "walletsync_wallet_refresh_steps_total",
			Help: "Total number of wallet refresh pipeline steps",
		},
		[]string{"step", "result"},
	)

	// DBConnectionPoolUsage tracks database pool usage percentage
	DBConnectionPoolUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "walletsync_db_connection_pool_usage_percent",
			Help: "Database connection pool usage percentage",
		},
	)
)

// Result labels a success or error outcome.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
