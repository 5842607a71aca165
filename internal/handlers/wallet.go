package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/example/walletcore/internal/apperr"
	"github.com/example/walletcore/internal/types"
	"github.com/example/walletcore/pkg/jsonutil"
)

const maxHistoryLimit = 50

// WalletReader is the aggregator surface the HTTP layer consumes.
type WalletReader interface {
	GetNativeBalance(ctx context.Context, addr string) (float64, error)
	GetHoldings(ctx context.Context, addr string) ([]types.TokenHolding, bool, error)
	GetTransactionHistory(ctx context.Context, addr string, limit int) ([]types.TransactionRecord, bool, error)
	GetCompleteWalletData(ctx context.Context, addr string, txLimit int) (*types.WalletData, error)
}

// WalletHandler serves the read endpoints under /api/wallet/{address}.
type WalletHandler struct {
	Service        WalletReader
	DefaultTxLimit int
	Log            *zap.Logger
}

func NewWalletHandler(service WalletReader, defaultTxLimit int, log *zap.Logger) *WalletHandler {
	if defaultTxLimit <= 0 {
		defaultTxLimit = 10
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &WalletHandler{Service: service, DefaultTxLimit: defaultTxLimit, Log: log}
}

// writeWalletError maps the aggregator error taxonomy onto HTTP statuses.
func writeWalletError(w http.ResponseWriter, log *zap.Logger, err error) {
	switch {
	case errors.Is(err, apperr.ErrInvalidAddress):
		jsonutil.Error(w, http.StatusBadRequest, "invalid_address", err.Error())
	case errors.Is(err, apperr.ErrUpstreamUnavailable):
		jsonutil.Error(w, http.StatusServiceUnavailable, "upstream_unavailable", err.Error())
	default:
		log.Error("wallet request failed", zap.Error(err))
		jsonutil.Error(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

// Complete handles GET /api/wallet/{address}.
func (h *WalletHandler) Complete(w http.ResponseWriter, r *http.Request) {
	addr := chi.URLParam(r, "address")
	data, err := h.Service.GetCompleteWalletData(r.Context(), addr, h.historyLimit(r))
	if err != nil {
		writeWalletError(w, h.Log, err)
		return
	}
	jsonutil.JSON(w, http.StatusOK, data)
}

// Holdings handles GET /api/wallet/{address}/holdings.
func (h *WalletHandler) Holdings(w http.ResponseWriter, r *http.Request) {
	addr := chi.URLParam(r, "address")
	items, stale, err := h.Service.GetHoldings(r.Context(), addr)
	if err != nil {
		writeWalletError(w, h.Log, err)
		return
	}
	jsonutil.JSON(w, http.StatusOK, map[string]interface{}{
		"address":   addr,
		"holdings":  items,
		"total_usd": types.SumUSD(items),
		"stale":     stale,
	})
}

// Balance handles GET /api/wallet/{address}/balance.
func (h *WalletHandler) Balance(w http.ResponseWriter, r *http.Request) {
	addr := chi.URLParam(r, "address")
	sol, err := h.Service.GetNativeBalance(r.Context(), addr)
	if err != nil {
		writeWalletError(w, h.Log, err)
		return
	}
	jsonutil.JSON(w, http.StatusOK, map[string]interface{}{
		"address": addr,
		"symbol":  "SOL",
		"balance": sol,
	})
}

// Transactions handles GET /api/wallet/{address}/transactions?limit=N.
func (h *WalletHandler) Transactions(w http.ResponseWriter, r *http.Request) {
	addr := chi.URLParam(r, "address")
	records, stale, err := h.Service.GetTransactionHistory(r.Context(), addr, h.historyLimit(r))
	if err != nil {
		writeWalletError(w, h.Log, err)
		return
	}
	jsonutil.JSON(w, http.StatusOK, map[string]interface{}{
		"address":      addr,
		"transactions": records,
		"stale":        stale,
	})
}

func (h *WalletHandler) historyLimit(r *http.Request) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return h.DefaultTxLimit
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return h.DefaultTxLimit
	}
	if n > maxHistoryLimit {
		return maxHistoryLimit
	}
	return n
}
