package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/example/walletcore/internal/apperr"
	"github.com/example/walletcore/internal/verify"
	"github.com/example/walletcore/pkg/jsonutil"
)

// Snapshotter captures a wallet's balances for later comparison.
type Snapshotter interface {
	CaptureBalances(ctx context.Context, addr string) (verify.Snapshot, error)
}

// VerifyHandler serves the balance snapshot and directional-check endpoints.
type VerifyHandler struct {
	Verifier Snapshotter
	Log      *zap.Logger
}

func NewVerifyHandler(v Snapshotter, log *zap.Logger) *VerifyHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &VerifyHandler{Verifier: v, Log: log}
}

// Snapshot handles POST /api/wallet/{address}/snapshot. The caller holds the
// returned balances and submits them back to /api/verify after the
// transaction settles.
func (h *VerifyHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	addr := chi.URLParam(r, "address")
	snap, err := h.Verifier.CaptureBalances(r.Context(), addr)
	if err != nil {
		if errors.Is(err, apperr.ErrStaleData) {
			jsonutil.Error(w, http.StatusConflict, "stale_data", err.Error())
			return
		}
		writeWalletError(w, h.Log, err)
		return
	}
	jsonutil.JSON(w, http.StatusOK, map[string]interface{}{
		"address":  addr,
		"balances": snap,
	})
}

type expectationPayload struct {
	Symbol    string `json:"symbol"`
	Direction string `json:"direction"` // "increase" or "decrease"
}

type verifyRequest struct {
	Before       map[string]decimal.Decimal `json:"before"`
	After        map[string]decimal.Decimal `json:"after"`
	Expectations []expectationPayload       `json:"expectations"`
}

// Verify handles POST /api/verify: a pure directional check on two
// submitted snapshots, no chain access.
func (h *VerifyHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonutil.Error(w, http.StatusBadRequest, "bad_request", "malformed verify payload")
		return
	}
	if len(req.Expectations) == 0 {
		jsonutil.Error(w, http.StatusBadRequest, "bad_request", "at least one expectation required")
		return
	}

	expects := make([]verify.Expectation, 0, len(req.Expectations))
	for _, e := range req.Expectations {
		var dir verify.Direction
		switch e.Direction {
		case "increase":
			dir = verify.Increase
		case "decrease":
			dir = verify.Decrease
		default:
			jsonutil.Error(w, http.StatusBadRequest, "bad_request", "direction must be increase or decrease")
			return
		}
		expects = append(expects, verify.Expectation{Symbol: e.Symbol, Direction: dir})
	}

	err := verify.Check(verify.Snapshot(req.Before), verify.Snapshot(req.After), expects)
	if err != nil {
		jsonutil.JSON(w, http.StatusOK, map[string]interface{}{
			"verified": false,
			"reason":   err.Error(),
		})
		return
	}
	jsonutil.JSON(w, http.StatusOK, map[string]interface{}{"verified": true})
}
