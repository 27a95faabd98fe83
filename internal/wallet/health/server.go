package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vietddude/walletsync/internal/core/domain"
	"github.com/vietddude/walletsync/internal/infra/storage"
)

// Wallet is the read side of the wallet manager.
type Wallet interface {
	Session
	Network() domain.Network
	MainAccounts() []*domain.MainAccount
	SelectedAccount() (domain.SelectedAccount, bool)
	VisibleTokens() []domain.Token
	AccountInfo() (domain.AccountInfo, bool)
}

// Server provides HTTP endpoints for health monitoring and introspection.
type Server struct {
	monitor *Monitor
	wallet  Wallet
	txs     Transactions
	history storage.TransactionHistoryRepository
	server  *http.Server
}

// NewServer creates a new health server.
func NewServer(monitor *Monitor, wallet Wallet, txs Transactions, history storage.TransactionHistoryRepository, port int) *Server {
	mux := http.NewServeMux()
	s := &Server{
		monitor: monitor,
		wallet:  wallet,
		txs:     txs,
		history: history,
		server: &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: mux,
		},
	}

	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/health/detailed", s.handleDetailed)
	mux.HandleFunc("/accounts", s.handleAccounts)
	mux.HandleFunc("/transactions", s.handleTransactions)
	mux.Handle("/metrics", promhttp.Handler())

	return s
}

// Handler exposes the mux for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Stop stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.monitor.CheckHealth(r.Context())
	code := http.StatusOK
	if report.SystemStatus == StatusCritical {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]string{"status": string(report.SystemStatus)})
}

func (s *Server) handleDetailed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.monitor.CheckHealth(r.Context()))
}

type accountView struct {
	Address  domain.Address         `json:"address"`
	COA      *domain.EVMAccount     `json:"coa,omitempty"`
	Children []*domain.ChildAccount `json:"children"`
}

type walletView struct {
	Session  string                  `json:"session"`
	Network  domain.Network          `json:"network"`
	Selected *domain.SelectedAccount `json:"selected,omitempty"`
	Accounts []accountView           `json:"accounts"`
	Tokens   []domain.Token          `json:"tokens"`
	Info     *domain.AccountInfo     `json:"account_info,omitempty"`
}

func (s *Server) handleAccounts(w http.ResponseWriter, r *http.Request) {
	if s.wallet == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "wallet not configured"})
		return
	}

	view := walletView{
		Session:  s.wallet.SessionState(),
		Network:  s.wallet.Network(),
		Accounts: []accountView{},
		Tokens:   s.wallet.VisibleTokens(),
	}
	if sel, ok := s.wallet.SelectedAccount(); ok {
		view.Selected = &sel
	}
	if info, ok := s.wallet.AccountInfo(); ok {
		view.Info = &info
	}
	for _, acc := range s.wallet.MainAccounts() {
		view.Accounts = append(view.Accounts, accountView{
			Address:  acc.Address,
			COA:      acc.COA(),
			Children: acc.Children(),
		})
	}
	writeJSON(w, http.StatusOK, view)
}

type transactionsView struct {
	Pending []domain.TransactionRecord  `json:"pending"`
	Recent  []*domain.TransactionRecord `json:"recent"`
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	view := transactionsView{Pending: []domain.TransactionRecord{}, Recent: []*domain.TransactionRecord{}}
	if s.txs != nil {
		view.Pending = s.txs.Holders()
	}

	if s.history != nil {
		limit := 20
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
				return
			}
			limit = n
		}
		network := domain.Mainnet
		if s.wallet != nil {
			network = s.wallet.Network()
		}
		if v := r.URL.Query().Get("network"); v != "" {
			n, err := domain.ParseNetwork(v)
			if err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
				return
			}
			network = n
		}

		recent, err := s.history.ListRecent(r.Context(), network, limit)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		if recent != nil {
			view.Recent = recent
		}
	}
	writeJSON(w, http.StatusOK, view)
}
