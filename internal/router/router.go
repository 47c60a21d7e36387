package router

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/ruangai/backend/internal/auth"
	"github.com/ruangai/backend/internal/generation"
	"github.com/ruangai/backend/internal/ledger"
	"github.com/ruangai/backend/internal/middleware"
	"github.com/ruangai/backend/internal/payment"
	"github.com/ruangai/backend/internal/ratelimit"
)

// Per-IP windows for the payment endpoints, which are reachable without a
// settled balance.
const (
	paymentLimit  int64 = 30
	paymentWindow       = time.Minute
)

// New builds the /v1 HTTP surface.
// Chains: RequireUser for anything credit-affecting, PerIP in front of the
// endpoints a client can hammer before paying.
func New(
	authSvc auth.Service,
	ledgerHandler *ledger.Handler,
	paymentHandler *payment.Handler,
	webhookHandler *payment.WebhookHandler,
	generationHandler *generation.Handler,
	limiter *ratelimit.Limiter,
	healthz http.HandlerFunc,
	log *slog.Logger,
) http.Handler {
	mux := http.NewServeMux()

	requireUser := middleware.RequireUser(authSvc)
	perIP := func(name string) func(http.Handler) http.Handler {
		return middleware.PerIP(limiter, name, paymentLimit, paymentWindow, log)
	}

	mux.Handle("GET /v1/credits", requireUser(http.HandlerFunc(ledgerHandler.GetBalance)))
	mux.Handle("GET /v1/credits/transactions", requireUser(http.HandlerFunc(ledgerHandler.ListTransactions)))

	mux.Handle("POST /v1/payments", perIP("payments")(requireUser(http.HandlerFunc(paymentHandler.CreatePayment))))
	mux.Handle("POST /v1/invoices", perIP("invoices")(http.HandlerFunc(paymentHandler.CreateInvoice)))
	mux.Handle("GET /v1/invoices/check", perIP("check-invoice")(http.HandlerFunc(paymentHandler.CheckInvoice)))

	mux.Handle("POST /v1/webhooks/payment", webhookHandler)

	mux.Handle("POST /v1/generate", requireUser(http.HandlerFunc(generationHandler.Generate)))

	mux.HandleFunc("GET /v1/healthz", healthz)

	return mux
}
