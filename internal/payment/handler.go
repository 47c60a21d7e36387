package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/ruangai/backend/internal/middleware"
	"github.com/ruangai/backend/internal/models"
)

// EnqueueEventFunc durably queues a verified webhook event for the
// reconciler. Provided by main as a closure over river.Client.Insert.
type EnqueueEventFunc func(ctx context.Context, ev Event) error

type Handler struct {
	provider Provider
	enqueue  EnqueueEventFunc
	log      *slog.Logger
}

func NewHandler(provider Provider, enqueue EnqueueEventFunc, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{provider: provider, enqueue: enqueue, log: log}
}

type CreatePaymentRequest struct {
	Plan string `json:"plan"`
}

type CreatePaymentResponse struct {
	Token       string `json:"token,omitempty"`
	RedirectURL string `json:"redirect_url,omitempty"`
	OrderID     string `json:"order_id"`
}

// CreatePayment creates a credit-package order with the provider. The
// package's credit quantity rides along in order metadata and comes back in
// the settlement webhook, which is where the grant actually happens.
func (h *Handler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromCtx(r.Context())
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "authentication_required")
		return
	}
	var req CreatePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	pkg, ok := models.CreditPackages[req.Plan]
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid plan selected")
		return
	}

	orderID := NewOrderID("credits")
	session, err := h.provider.CreateOrder(r.Context(), CreateOrderInput{
		OrderID:      orderID,
		Amount:       pkg.Price,
		Description:  fmt.Sprintf("%d Credits Package - %s", pkg.Credits, pkg.Plan),
		CustomerName: "User",
		Metadata: Metadata{
			UserID:  userID,
			Credits: pkg.Credits,
			Plan:    pkg.Plan,
		},
	})
	if err != nil {
		h.log.Error("create payment order failed", "plan", req.Plan, "error", err)
		writeError(w, http.StatusBadGateway, "failed to create payment token")
		return
	}
	writeJSON(w, http.StatusOK, CreatePaymentResponse{
		Token:       session.Token,
		RedirectURL: session.RedirectURL,
		OrderID:     session.OrderID,
	})
}

type CreateInvoiceRequest struct {
	OriginalPhoto string `json:"originalPhoto"`
	Theme         string `json:"theme"`
	Room          string `json:"room"`
}

type CreateInvoiceResponse struct {
	InvoiceURL string `json:"invoiceUrl"`
	InvoiceID  string `json:"invoiceId"`
}

// CreateInvoice creates a one-off pay-per-image order. The photo, theme and
// room round-trip through provider metadata so the client can resume
// generation after the payment redirect.
func (h *Handler) CreateInvoice(w http.ResponseWriter, r *http.Request) {
	var req CreateInvoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.OriginalPhoto == "" || req.Theme == "" || req.Room == "" {
		writeError(w, http.StatusBadRequest, "missing required data")
		return
	}

	orderID := NewOrderID("invoice")
	session, err := h.provider.CreateOrder(r.Context(), CreateOrderInput{
		OrderID:     orderID,
		Amount:      models.OneOffPrice,
		Description: fmt.Sprintf("Design for %s - %s theme", req.Room, req.Theme),
		Metadata: Metadata{
			OriginalPhoto: req.OriginalPhoto,
			Theme:         req.Theme,
			Room:          req.Room,
		},
	})
	if err != nil {
		h.log.Error("create invoice failed", "error", err)
		writeError(w, http.StatusBadGateway, "failed to create invoice")
		return
	}
	writeJSON(w, http.StatusOK, CreateInvoiceResponse{
		InvoiceURL: session.RedirectURL,
		InvoiceID:  session.OrderID,
	})
}

// CheckInvoice is the client polling endpoint: order status plus the
// metadata needed to kick off generation once paid.
func (h *Handler) CheckInvoice(w http.ResponseWriter, r *http.Request) {
	externalID := r.URL.Query().Get("id")
	if externalID == "" {
		writeError(w, http.StatusBadRequest, "missing invoice ID")
		return
	}
	status, err := h.provider.GetOrder(r.Context(), externalID)
	if errors.Is(err, ErrOrderNotFound) {
		writeError(w, http.StatusNotFound, "invoice not found")
		return
	}
	if err != nil {
		h.log.Error("check invoice failed", "invoice_id", externalID, "error", err)
		writeError(w, http.StatusBadGateway, "failed to check invoice")
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
