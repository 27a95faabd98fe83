package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vietddude/walletsync/internal/core/domain"
)

func newTestClient(url string) *Client {
	return NewClient(Config{URL: url, Timeout: 5 * time.Second, MaxAttempts: 3, InitialDelay: time.Millisecond}, nil)
}

func TestClient_TokenRegistry(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v3/fts/full" {
			t.Errorf("expected path /v3/fts/full, got %s", r.URL.Path)
		}
		if r.URL.Query().Get("chain_type") != "flow" || r.URL.Query().Get("network") != "mainnet" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`{"tokens":[
			{"address":"0x1654653399040a61","contractName":"FlowToken","symbol":"FLOW","decimals":8,
			 "path":{"vault":"/storage/flowTokenVault"},"isVerified":true,"logoURI":"flow.svg"},
			{"address":"0xf233dcee88fe0abe","contractName":"FiatToken","symbol":"USDC","decimals":8,
			 "flowIdentifier":"A.f233dcee88fe0abe.FiatToken.Vault"}
		]}`))
	}))
	defer server.Close()

	tokens, err := newTestClient(server.URL).TokenRegistry(context.Background(), domain.KindLedger, domain.Mainnet)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tokens) != 2 {
		t.Fatalf("expected 2 tokens, got %d", len(tokens))
	}
	if tokens[0].ID != "A.1654653399040a61.FlowToken.Vault" {
		t.Errorf("expected derived vault identifier, got %s", tokens[0].ID)
	}
	if tokens[1].ID != "A.f233dcee88fe0abe.FiatToken.Vault" {
		t.Errorf("expected flow identifier, got %s", tokens[1].ID)
	}
	if tokens[0].VaultPath != "/storage/flowTokenVault" || !tokens[0].Verified {
		t.Errorf("metadata not mapped: %+v", tokens[0])
	}
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			http.Error(w, "upstream down", http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"address": "0x00000000000000000000000235f2ab2b5e2a8b4d"})
	}))
	defer server.Close()

	coa, err := newTestClient(server.URL).COAAddress(context.Background(), domain.MustParseAddress("0x0000000000000001"), domain.Mainnet)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if coa == nil || coa.Address.Kind() != domain.KindEVM {
		t.Errorf("expected evm coa, got %+v", coa)
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestClient_DoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).AccountInfo(context.Background(), domain.MustParseAddress("0x0000000000000001"), domain.Mainnet)
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusNotFound {
		t.Fatalf("expected 404 StatusError, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("expected single call, got %d", calls)
	}
}

func TestClient_FlowTokenAndNFTCount(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		var body struct {
			Addresses []string `json:"addresses"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("failed to decode body: %v", err)
		}
		if len(body.Addresses) != 2 {
			t.Errorf("expected batched request with 2 addresses, got %v", body.Addresses)
		}
		_, _ = w.Write([]byte(`{
			"0x0000000000000001": {"flowBalance": "12.5", "nftCounts": 3},
			"0x00000000000000000000000235F2AB2B5E2A8B4D": {"flowBalance": 0.25, "nftCounts": 0}
		}`))
	}))
	defer server.Close()

	main := domain.MustParseAddress("0x0000000000000001")
	coa := domain.MustParseAddress("0x00000000000000000000000235f2ab2b5e2a8b4d")
	counts, err := newTestClient(server.URL).FlowTokenAndNFTCount(context.Background(), domain.Mainnet, []domain.Address{main, coa})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := counts[main.String()]; got.NFTCount != 3 || got.FlowBalance.String() != "12.5" {
		t.Errorf("unexpected main count %+v", got)
	}
	if got, ok := counts[coa.String()]; !ok || got.FlowBalance.String() != "0.25" {
		t.Errorf("expected normalized coa key, got %+v %v", got, ok)
	}
}

func TestClient_NFTCollectionPageCursor(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v3/evm/nft/collectionList" {
			t.Errorf("expected evm list path, got %s", r.URL.Path)
		}
		if r.URL.Query().Get("offset") == "" {
			_, _ = w.Write([]byte(`{"nfts":[{"id":"1"},{"id":"2"}],"nftCount":3,"offset":"cursor-2"}`))
			return
		}
		_, _ = w.Write([]byte(`{"nfts":[{"id":"3"}],"nftCount":3,"offset":null}`))
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	addr := domain.MustParseAddress("0x00000000000000000000000235f2ab2b5e2a8b4d")
	page, err := c.NFTCollectionPage(context.Background(), addr, domain.Mainnet, "punks", "", 30)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.NextOffset != "cursor-2" || len(page.NFTs) != 2 || page.NFTs[0].CollectionID != "punks" {
		t.Errorf("unexpected first page %+v", page)
	}
	page, err = c.NFTCollectionPage(context.Background(), addr, domain.Mainnet, "punks", page.NextOffset, 30)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.NextOffset != "" {
		t.Errorf("expected empty cursor on last page, got %q", page.NextOffset)
	}
}

func TestCursor(t *testing.T) {
	tests := map[string]string{
		``:      "",
		`null`:  "",
		`"abc"`: "abc",
		`50`:    "50",
		` "x" `: "x",
	}
	for in, want := range tests {
		if got := cursor(json.RawMessage(in)); got != want {
			t.Errorf("cursor(%q) = %q, want %q", in, got, want)
		}
	}
}
