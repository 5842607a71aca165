package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	sol "github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"

	"github.com/example/walletcore/internal/handlers"
	apihttp "github.com/example/walletcore/internal/http"
	"github.com/example/walletcore/internal/rate"
	"github.com/example/walletcore/internal/rpcpool"
	"github.com/example/walletcore/internal/tokenmeta"
	"github.com/example/walletcore/internal/types"
	"github.com/example/walletcore/internal/verify"
	"github.com/example/walletcore/internal/wallet"
)

const (
	ownerAddr = "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin"
	usdcMint  = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
)

// memKeyStore is an in-memory stand-in for the Mongo key store.
type memKeyStore struct {
	mu   sync.Mutex
	keys map[string]bool
}

func newMemKeyStore() *memKeyStore { return &memKeyStore{keys: map[string]bool{}} }

func (s *memKeyStore) Validate(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.keys[key], nil
}

func (s *memKeyStore) Ping(context.Context) error { return nil }

func (s *memKeyStore) Create(_ context.Context, key string, active bool, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[key] = active
	return nil
}

// scriptedChain serves wallet state that tests mutate between calls.
type scriptedChain struct {
	mu       sync.Mutex
	lamports uint64
	accounts []rpcpool.TokenAccount
}

func (c *scriptedChain) GetBalance(context.Context, sol.PublicKey) (uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lamports, false
}

func (c *scriptedChain) TokenAccounts(context.Context, sol.PublicKey) ([]rpcpool.TokenAccount, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]rpcpool.TokenAccount, len(c.accounts))
	copy(out, c.accounts)
	return out, false, nil
}

func (c *scriptedChain) Signatures(context.Context, sol.PublicKey, int) ([]rpcpool.SignatureInfo, bool, error) {
	return nil, false, nil
}

func (c *scriptedChain) Transaction(context.Context, sol.Signature) (*rpcpool.ParsedTransaction, bool, error) {
	return nil, false, nil
}

type staticPrices struct{}

func (staticPrices) GetPrice(_ context.Context, symbol string) (decimal.Decimal, bool) {
	switch symbol {
	case "SOL":
		return decimal.NewFromInt(150), true
	case "USDC":
		return decimal.NewFromInt(1), true
	}
	return decimal.Zero, false
}

func newServer(t *testing.T, chain *scriptedChain, store *memKeyStore) *httptest.Server {
	t.Helper()
	registry, err := tokenmeta.NewRegistry("")
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	// production-shaped TTLs: snapshot captures must bypass them on their own
	svc := wallet.NewService(chain, nil, staticPrices{}, registry, nil, wallet.Options{
		HoldingsTTL: 5 * time.Second,
		HistoryTTL:  10 * time.Second,
	})
	verifier := verify.New(svc, time.Millisecond, nil)

	router := apihttp.NewRouter(apihttp.Deps{
		Wallet:  handlers.NewWalletHandler(svc, 10, nil),
		Verify:  handlers.NewVerifyHandler(verifier, nil),
		Signup:  handlers.NewSignupHandler(store),
		Admin:   handlers.NewAdminHandler(store, "admin-secret"),
		Limiter: rate.NewLimiterMap(10000, 10000, time.Minute),
		Store:   store,
	})
	return httptest.NewServer(router)
}

func signup(t *testing.T, ts *httptest.Server) string {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"owner": "it"})
	resp, err := ts.Client().Post(ts.URL+"/public/signup", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("signup status=%d", resp.StatusCode)
	}
	var out struct {
		Key string `json:"key"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("signup decode: %v", err)
	}
	if out.Key == "" {
		t.Fatal("signup returned empty key")
	}
	return out.Key
}

func doJSON(t *testing.T, ts *httptest.Server, method, path, key string, body []byte, out interface{}) int {
	t.Helper()
	req, _ := http.NewRequest(method, ts.URL+path, bytes.NewReader(body))
	if key != "" {
		req.Header.Set("X-API-Key", key)
	}
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		_ = json.NewDecoder(resp.Body).Decode(out)
	}
	return resp.StatusCode
}

func TestSignupThenFetchWalletData(t *testing.T) {
	chain := &scriptedChain{
		lamports: 2_000_000_000,
		accounts: []rpcpool.TokenAccount{{Mint: usdcMint, Amount: 25, Decimals: 6}},
	}
	store := newMemKeyStore()
	ts := newServer(t, chain, store)
	defer ts.Close()

	key := signup(t, ts)

	var data types.WalletData
	code := doJSON(t, ts, http.MethodGet, "/api/wallet/"+ownerAddr+"/", key, nil, &data)
	if code != http.StatusOK {
		t.Fatalf("wallet data status=%d", code)
	}
	if data.SolBalance != 2 {
		t.Fatalf("sol balance = %v", data.SolBalance)
	}
	if len(data.Holdings) != 2 || data.Holdings[0].Symbol != "SOL" {
		t.Fatalf("holdings = %+v", data.Holdings)
	}
	// 2 SOL * 150 + 25 USDC * 1
	if !data.TotalUSD.Equal(decimal.NewFromInt(325)) {
		t.Fatalf("total usd = %s", data.TotalUSD)
	}
}

func TestWalletEndpointsRejectWithoutKey(t *testing.T) {
	ts := newServer(t, &scriptedChain{}, newMemKeyStore())
	defer ts.Close()

	if code := doJSON(t, ts, http.MethodGet, "/api/wallet/"+ownerAddr+"/balance", "", nil, nil); code != http.StatusUnauthorized {
		t.Fatalf("status=%d, want 401", code)
	}
}

func TestInvalidAddressEndToEnd(t *testing.T) {
	store := newMemKeyStore()
	ts := newServer(t, &scriptedChain{}, store)
	defer ts.Close()
	key := signup(t, ts)

	var out map[string]string
	code := doJSON(t, ts, http.MethodGet, "/api/wallet/not-base58/holdings", key, nil, &out)
	if code != http.StatusBadRequest {
		t.Fatalf("status=%d, want 400", code)
	}
	if out["error"] != "invalid_address" {
		t.Fatalf("error kind = %q", out["error"])
	}
}

func TestSnapshotVerifyRoundTrip(t *testing.T) {
	chain := &scriptedChain{
		lamports: 10_000_000_000,
		accounts: nil,
	}
	store := newMemKeyStore()
	ts := newServer(t, chain, store)
	defer ts.Close()
	key := signup(t, ts)

	var before struct {
		Balances map[string]decimal.Decimal `json:"balances"`
	}
	if code := doJSON(t, ts, http.MethodPost, "/api/wallet/"+ownerAddr+"/snapshot", key, nil, &before); code != http.StatusOK {
		t.Fatalf("snapshot status=%d", code)
	}

	// simulate a settled swap: SOL down, USDC appears
	chain.mu.Lock()
	chain.lamports = 9_000_000_000
	chain.accounts = []rpcpool.TokenAccount{{Mint: usdcMint, Amount: 150, Decimals: 6}}
	chain.mu.Unlock()

	var after struct {
		Balances map[string]decimal.Decimal `json:"balances"`
	}
	if code := doJSON(t, ts, http.MethodPost, "/api/wallet/"+ownerAddr+"/snapshot", key, nil, &after); code != http.StatusOK {
		t.Fatalf("second snapshot status=%d", code)
	}

	payload, _ := json.Marshal(map[string]interface{}{
		"before": before.Balances,
		"after":  after.Balances,
		"expectations": []map[string]string{
			{"symbol": "SOL", "direction": "decrease"},
			{"symbol": "USDC", "direction": "increase"},
		},
	})
	var result struct {
		Verified bool   `json:"verified"`
		Reason   string `json:"reason"`
	}
	if code := doJSON(t, ts, http.MethodPost, "/api/verify", key, payload, &result); code != http.StatusOK {
		t.Fatalf("verify status=%d", code)
	}
	if !result.Verified {
		t.Fatalf("expected verified swap, reason=%q", result.Reason)
	}

	// same snapshots with the opposite expectation must fail
	payload, _ = json.Marshal(map[string]interface{}{
		"before":       before.Balances,
		"after":        after.Balances,
		"expectations": []map[string]string{{"symbol": "SOL", "direction": "increase"}},
	})
	if code := doJSON(t, ts, http.MethodPost, "/api/verify", key, payload, &result); code != http.StatusOK {
		t.Fatalf("verify status=%d", code)
	}
	if result.Verified {
		t.Fatal("opposite direction must not verify")
	}
}

func TestAdminCreateKeyEndToEnd(t *testing.T) {
	store := newMemKeyStore()
	ts := newServer(t, &scriptedChain{}, store)
	defer ts.Close()

	body, _ := json.Marshal(map[string]string{"key": "issued-key", "owner": "ops"})
	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/admin/create-key", bytes.NewReader(body))
	req.Header.Set("X-Admin-Token", "admin-secret")
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("admin create: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("admin status=%d", resp.StatusCode)
	}

	if code := doJSON(t, ts, http.MethodGet, "/api/wallet/"+ownerAddr+"/balance", "issued-key", nil, nil); code != http.StatusOK {
		t.Fatalf("issued key rejected, status=%d", code)
	}
}
