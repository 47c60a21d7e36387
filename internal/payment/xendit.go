package payment

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const xenditBaseURL = "https://api.xendit.co"

// Xendit integrates the hosted-invoice API. Webhook authenticity is the
// x-callback-token header issued in the Xendit dashboard.
type Xendit struct {
	APIKey        string
	CallbackToken string
	// AppBaseURL builds the success/failure redirect URLs.
	AppBaseURL string
	BaseURL    string
	HTTPClient *http.Client
}

func NewXendit(apiKey, callbackToken, appBaseURL string) *Xendit {
	return &Xendit{
		APIKey:        apiKey,
		CallbackToken: callbackToken,
		AppBaseURL:    appBaseURL,
		BaseURL:       xenditBaseURL,
		HTTPClient:    &http.Client{Timeout: 30 * time.Second},
	}
}

var _ Provider = (*Xendit)(nil)

func (x *Xendit) Name() string { return "xendit" }

type xenditInvoiceRequest struct {
	ExternalID         string   `json:"external_id"`
	Amount             int64    `json:"amount"`
	PaymentMethods     []string `json:"payment_methods"`
	Currency           string   `json:"currency"`
	Description        string   `json:"description"`
	SuccessRedirectURL string   `json:"success_redirect_url"`
	FailureRedirectURL string   `json:"failure_redirect_url"`
	ExpiryDate         string   `json:"expiry_date"`
	Metadata           Metadata `json:"metadata"`
}

type xenditInvoice struct {
	ExternalID string   `json:"external_id"`
	Status     string   `json:"status"`
	InvoiceURL string   `json:"invoice_url"`
	Metadata   Metadata `json:"metadata"`
}

func (x *Xendit) CreateOrder(ctx context.Context, in CreateOrderInput) (*CheckoutSession, error) {
	payload := xenditInvoiceRequest{
		ExternalID:         in.OrderID,
		Amount:             in.Amount,
		PaymentMethods:     []string{"QRIS", "BCA"},
		Currency:           "IDR",
		Description:        in.Description,
		SuccessRedirectURL: fmt.Sprintf("%s/dream?invoice=%s&status=success", x.AppBaseURL, in.OrderID),
		FailureRedirectURL: fmt.Sprintf("%s/dream?invoice=%s&status=failed", x.AppBaseURL, in.OrderID),
		ExpiryDate:         time.Now().Add(30 * time.Minute).UTC().Format(time.RFC3339),
		Metadata:           in.Metadata,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, x.BaseURL+"/v2/invoices", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Basic "+basicAuth(x.APIKey))

	resp, err := x.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("xendit invoice request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("xendit invoice returned %d: %s", resp.StatusCode, b)
	}
	var inv xenditInvoice
	if err := json.NewDecoder(resp.Body).Decode(&inv); err != nil {
		return nil, err
	}
	return &CheckoutSession{OrderID: in.OrderID, RedirectURL: inv.InvoiceURL}, nil
}

func (x *Xendit) GetOrder(ctx context.Context, externalID string) (*OrderStatus, error) {
	u := x.BaseURL + "/v2/invoices?external_id=" + url.QueryEscape(externalID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Basic "+basicAuth(x.APIKey))

	resp, err := x.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("xendit invoice lookup: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("xendit invoice lookup returned %d: %s", resp.StatusCode, b)
	}
	var invoices []xenditInvoice
	if err := json.NewDecoder(resp.Body).Decode(&invoices); err != nil {
		return nil, err
	}
	if len(invoices) == 0 {
		return nil, ErrOrderNotFound
	}
	inv := invoices[0]
	return &OrderStatus{
		ExternalID: inv.ExternalID,
		Status:     inv.Status,
		Paid:       xenditSettled(inv.Status),
		Metadata:   inv.Metadata,
	}, nil
}

type xenditNotification struct {
	ExternalID string   `json:"external_id"`
	Status     string   `json:"status"`
	PaidAmount int64    `json:"paid_amount"`
	Metadata   Metadata `json:"metadata"`
}

func (x *Xendit) VerifyWebhook(header http.Header, body []byte) (*Event, error) {
	token := header.Get("X-Callback-Token")
	if subtle.ConstantTimeCompare([]byte(token), []byte(x.CallbackToken)) != 1 {
		return nil, ErrInvalidSignature
	}
	var n xenditNotification
	if err := json.Unmarshal(body, &n); err != nil {
		return nil, err
	}
	return &Event{
		Provider:          x.Name(),
		OrderID:           n.ExternalID,
		TransactionStatus: n.Status,
		GrossAmount:       fmt.Sprintf("%d", n.PaidAmount),
		Settled:           xenditSettled(n.Status),
		Metadata:          n.Metadata,
	}, nil
}

func xenditSettled(status string) bool {
	return status == "PAID" || status == "SETTLED"
}
