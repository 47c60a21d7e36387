package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidSignature is returned by VerifyWebhook when the notification's
// authenticity check fails. No state change may follow it.
var ErrInvalidSignature = errors.New("invalid webhook signature")

// ErrOrderNotFound is returned by GetOrder when the provider has no order
// for the given external id.
var ErrOrderNotFound = errors.New("order not found")

// Metadata is the application-supplied key-value blob that round-trips
// through the payment provider and comes back in webhooks and polling
// responses. Credit-package orders carry userId/credits/plan; one-off
// generation orders carry the photo, theme and room.
type Metadata struct {
	UserID        string `json:"userId,omitempty"`
	Credits       int    `json:"credits,omitempty"`
	Plan          string `json:"plan,omitempty"`
	OriginalPhoto string `json:"originalPhoto,omitempty"`
	Theme         string `json:"theme,omitempty"`
	Room          string `json:"room,omitempty"`
}

// CreateOrderInput describes one checkout attempt.
type CreateOrderInput struct {
	OrderID       string
	Amount        int64
	Description   string
	CustomerName  string
	CustomerEmail string
	Metadata      Metadata
}

// CheckoutSession is what the client needs to complete payment: a SNAP-style
// client token, a hosted-invoice redirect URL, or both.
type CheckoutSession struct {
	OrderID     string `json:"order_id"`
	Token       string `json:"token,omitempty"`
	RedirectURL string `json:"redirect_url,omitempty"`
}

// OrderStatus is a normalized polling response.
type OrderStatus struct {
	ExternalID string   `json:"external_id"`
	Status     string   `json:"status"`
	Paid       bool     `json:"paid"`
	Metadata   Metadata `json:"metadata"`
}

// Event is a normalized, authenticity-verified webhook notification.
type Event struct {
	Provider          string
	OrderID           string
	TransactionStatus string
	GrossAmount       string
	// Settled means funds were collected (settlement/capture or PAID/SETTLED
	// depending on provider). Anything else is a no-op for the ledger.
	Settled  bool
	Metadata Metadata
}

// Provider abstracts a payment gateway behind the three capabilities the
// application uses. One implementation per gateway, selected by config.
type Provider interface {
	Name() string
	CreateOrder(ctx context.Context, in CreateOrderInput) (*CheckoutSession, error)
	GetOrder(ctx context.Context, externalID string) (*OrderStatus, error)
	VerifyWebhook(header http.Header, body []byte) (*Event, error)
}

// NewOrderID builds a correlation id shared with the provider, e.g.
// "credits_1712345678901_1a2b3c4d". The prefix distinguishes credit-package
// purchases from one-off invoice orders.
func NewOrderID(prefix string) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	return fmt.Sprintf("%s_%d_%s", prefix, time.Now().UnixMilli(), suffix)
}
