package handlers

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"time"

	"github.com/example/walletcore/internal/auth"
	"github.com/example/walletcore/pkg/jsonutil"
)

// SignupHandler issues an API key without admin auth, for self-serve access
// in non-production stages.
type SignupHandler struct {
	Store auth.KeyCreator
}

func NewSignupHandler(store auth.KeyCreator) *SignupHandler {
	return &SignupHandler{Store: store}
}

type signupRequest struct {
	Owner string `json:"owner"`
	Email string `json:"email"`
}

type signupResponse struct {
	Key     string `json:"key"`
	Active  bool   `json:"active"`
	Owner   string `json:"owner,omitempty"`
	Email   string `json:"email,omitempty"`
	Created string `json:"created_at"`
}

func newAPIKey() string {
	var b [32]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}

func (h *SignupHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonutil.Error(w, http.StatusMethodNotAllowed, "method_not_allowed", "POST only")
		return
	}
	var req signupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonutil.Error(w, http.StatusBadRequest, "bad_request", "malformed signup payload")
		return
	}
	key := newAPIKey()
	if err := h.Store.Create(r.Context(), key, true, req.Owner); err != nil {
		jsonutil.Error(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	jsonutil.JSON(w, http.StatusOK, signupResponse{
		Key:     key,
		Active:  true,
		Owner:   req.Owner,
		Email:   req.Email,
		Created: time.Now().UTC().Format(time.RFC3339),
	})
}
