package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/example/walletcore/internal/auth"
	"github.com/example/walletcore/pkg/jsonutil"
)

// AdminHandler creates API keys behind the admin token.
type AdminHandler struct {
	Store      auth.KeyCreator
	AdminToken string
}

func NewAdminHandler(store auth.KeyCreator, adminToken string) *AdminHandler {
	return &AdminHandler{Store: store, AdminToken: adminToken}
}

// If Key is empty a random one is generated.
type createKeyRequest struct {
	Key   string `json:"key"`
	Owner string `json:"owner"`
}

type createKeyResponse struct {
	Key     string `json:"key"`
	Active  bool   `json:"active"`
	Owner   string `json:"owner,omitempty"`
	Created string `json:"created_at"`
}

// ServeHTTP handles POST /admin/create-key.
func (h *AdminHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonutil.Error(w, http.StatusMethodNotAllowed, "method_not_allowed", "POST only")
		return
	}
	if h.AdminToken == "" || r.Header.Get("X-Admin-Token") != h.AdminToken {
		jsonutil.Error(w, http.StatusUnauthorized, "unauthorized", "missing or wrong admin token")
		return
	}
	var req createKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonutil.Error(w, http.StatusBadRequest, "bad_request", "malformed payload")
		return
	}
	key := req.Key
	if key == "" {
		key = newAPIKey()
	}
	if err := h.Store.Create(r.Context(), key, true, req.Owner); err != nil {
		jsonutil.Error(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	jsonutil.JSON(w, http.StatusOK, createKeyResponse{
		Key:     key,
		Active:  true,
		Owner:   req.Owner,
		Created: time.Now().UTC().Format(time.RFC3339),
	})
}
