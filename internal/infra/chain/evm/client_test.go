package evm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/vietddude/walletsync/internal/core/domain"
)

type rpcRequest struct {
	ID     json.RawMessage `json:"id"`
	Method string          `json:"method"`
	Params []any           `json:"params"`
}

func TestNativeBalance(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if req.Method != "eth_getBalance" {
			t.Errorf("method = %s", req.Method)
		}
		w.Header().Set("Content-Type", "application/json")
		// 1.5 FLOW
		_ = json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  "0x14d1120d7b160000",
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	defer c.Close()

	bal, err := c.NativeBalance(context.Background(), domain.MustParseAddress("0x00000000000000000000000235fa9e5d6c3b2ad6"))
	if err != nil {
		t.Fatalf("NativeBalance: %v", err)
	}
	if bal.String() != "1.5" {
		t.Errorf("balance = %s, want 1.5", bal)
	}
}

func TestNativeBalanceRejectsLedgerAddress(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", nil)
	if _, err := c.NativeBalance(context.Background(), domain.MustParseAddress("0x0000000000000001")); err == nil {
		t.Fatal("expected error for flow address")
	}
}
