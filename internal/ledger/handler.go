package ledger

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/ruangai/backend/internal/middleware"
)

type BalanceResponse struct {
	UserID  string `json:"user_id"`
	Credits int    `json:"credits"`
}

type Handler struct {
	svc Service
	log *slog.Logger
}

func NewHandler(svc Service, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{svc: svc, log: log}
}

// GetBalance returns the caller's balance, provisioning the account with the
// free-credit seed on first read.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromCtx(r.Context())
	if userID == "" {
		http.Error(w, `{"error":"authentication_required"}`, http.StatusUnauthorized)
		return
	}
	credits, err := h.svc.GetBalance(r.Context(), userID)
	if err != nil {
		h.log.Error("get balance failed", "user_id", userID, "error", err)
		http.Error(w, `{"error":"failed to fetch credits"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(BalanceResponse{UserID: userID, Credits: credits})
}

// ListTransactions returns the caller's credit audit log, newest first.
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromCtx(r.Context())
	if userID == "" {
		http.Error(w, `{"error":"authentication_required"}`, http.StatusUnauthorized)
		return
	}
	list, err := h.svc.ListTransactions(r.Context(), userID)
	if err != nil {
		h.log.Error("list transactions failed", "user_id", userID, "error", err)
		http.Error(w, `{"error":"failed to list transactions"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(list)
}
