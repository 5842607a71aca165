package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/example/walletcore/internal/apperr"
	"github.com/example/walletcore/internal/types"
)

type mockWallet struct {
	balance  float64
	holdings []types.TokenHolding
	records  []types.TransactionRecord
	stale    bool
	err      error

	lastLimit int
}

func (m *mockWallet) GetNativeBalance(ctx context.Context, addr string) (float64, error) {
	return m.balance, m.err
}

func (m *mockWallet) GetHoldings(ctx context.Context, addr string) ([]types.TokenHolding, bool, error) {
	return m.holdings, m.stale, m.err
}

func (m *mockWallet) GetTransactionHistory(ctx context.Context, addr string, limit int) ([]types.TransactionRecord, bool, error) {
	m.lastLimit = limit
	return m.records, m.stale, m.err
}

func (m *mockWallet) GetCompleteWalletData(ctx context.Context, addr string, txLimit int) (*types.WalletData, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.lastLimit = txLimit
	return &types.WalletData{
		Address:      addr,
		SolBalance:   m.balance,
		Holdings:     m.holdings,
		TotalUSD:     types.SumUSD(m.holdings),
		Transactions: m.records,
		Stale:        m.stale,
		FetchedAt:    types.NowRFC3339(),
	}, nil
}

func walletRouter(m *mockWallet) http.Handler {
	h := NewWalletHandler(m, 10, nil)
	r := chi.NewRouter()
	r.Route("/api/wallet/{address}", func(rt chi.Router) {
		rt.Get("/", h.Complete)
		rt.Get("/holdings", h.Holdings)
		rt.Get("/balance", h.Balance)
		rt.Get("/transactions", h.Transactions)
	})
	return r
}

func TestCompleteWalletEndpoint(t *testing.T) {
	usd := decimal.NewFromInt(300)
	m := &mockWallet{
		balance:  2,
		holdings: []types.TokenHolding{{Symbol: "SOL", Amount: 2, USDValue: &usd}},
	}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/wallet/abc/", nil)
	walletRouter(m).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	var got types.WalletData
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Address != "abc" || got.SolBalance != 2 {
		t.Fatalf("body = %+v", got)
	}
	if !got.TotalUSD.Equal(usd) {
		t.Fatalf("total = %s", got.TotalUSD)
	}
}

func TestInvalidAddressMapsTo400(t *testing.T) {
	m := &mockWallet{err: apperr.ErrInvalidAddress}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/wallet/bad/holdings", nil)
	walletRouter(m).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", rec.Code)
	}
	var got map[string]string
	_ = json.Unmarshal(rec.Body.Bytes(), &got)
	if got["error"] != "invalid_address" {
		t.Fatalf("error kind = %q", got["error"])
	}
}

func TestUpstreamOutageMapsTo503(t *testing.T) {
	m := &mockWallet{err: apperr.ErrUpstreamUnavailable}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/wallet/abc/transactions", nil)
	walletRouter(m).ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d", rec.Code)
	}
}

func TestStaleFlagSurfacesInHoldings(t *testing.T) {
	m := &mockWallet{
		holdings: []types.TokenHolding{{Symbol: "SOL", Amount: 1}},
		stale:    true,
	}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/wallet/abc/holdings", nil)
	walletRouter(m).ServeHTTP(rec, req)

	var got struct {
		Stale bool `json:"stale"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !got.Stale {
		t.Fatal("stale flag must be surfaced to the client")
	}
}

func TestTransactionsLimitParsing(t *testing.T) {
	m := &mockWallet{}
	router := walletRouter(m)

	cases := []struct {
		query string
		want  int
	}{
		{"", 10},
		{"?limit=5", 5},
		{"?limit=0", 10},
		{"?limit=junk", 10},
		{"?limit=500", maxHistoryLimit},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/wallet/abc/transactions"+tc.query, nil)
		router.ServeHTTP(rec, req)
		if m.lastLimit != tc.want {
			t.Fatalf("query %q: limit = %d, want %d", tc.query, m.lastLimit, tc.want)
		}
	}
}

func TestBalanceEndpoint(t *testing.T) {
	m := &mockWallet{balance: 1.5}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/wallet/abc/balance", nil)
	walletRouter(m).ServeHTTP(rec, req)

	var got struct {
		Balance float64 `json:"balance"`
		Symbol  string  `json:"symbol"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Balance != 1.5 || got.Symbol != "SOL" {
		t.Fatalf("body = %+v", got)
	}
}
