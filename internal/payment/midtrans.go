package payment

import (
	"bytes"
	"context"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Midtrans integrates the SNAP checkout API. Webhook authenticity is a
// SHA-512 digest over order_id + status_code + gross_amount + server key.
type Midtrans struct {
	ServerKey  string
	HostURL    string
	HTTPClient *http.Client
}

func NewMidtrans(serverKey, hostURL string) *Midtrans {
	return &Midtrans{
		ServerKey:  serverKey,
		HostURL:    hostURL,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

var _ Provider = (*Midtrans)(nil)

func (m *Midtrans) Name() string { return "midtrans" }

type midtransSnapRequest struct {
	TransactionDetails struct {
		OrderID     string `json:"order_id"`
		GrossAmount int64  `json:"gross_amount"`
	} `json:"transaction_details"`
	CreditCard struct {
		Secure bool `json:"secure"`
	} `json:"credit_card"`
	CustomerDetails struct {
		FirstName string `json:"first_name"`
		Email     string `json:"email"`
	} `json:"customer_details"`
	ItemDetails []midtransItem `json:"item_details"`
	Metadata    Metadata       `json:"metadata"`
}

type midtransItem struct {
	ID       string `json:"id"`
	Price    int64  `json:"price"`
	Quantity int    `json:"quantity"`
	Name     string `json:"name"`
}

type midtransSnapResponse struct {
	Token        string   `json:"token"`
	RedirectURL  string   `json:"redirect_url"`
	ErrorMessage []string `json:"error_messages"`
}

func (m *Midtrans) CreateOrder(ctx context.Context, in CreateOrderInput) (*CheckoutSession, error) {
	var payload midtransSnapRequest
	payload.TransactionDetails.OrderID = in.OrderID
	payload.TransactionDetails.GrossAmount = in.Amount
	payload.CreditCard.Secure = true
	payload.CustomerDetails.FirstName = in.CustomerName
	payload.CustomerDetails.Email = in.CustomerEmail
	payload.ItemDetails = []midtransItem{{
		ID:       in.Metadata.Plan,
		Price:    in.Amount,
		Quantity: 1,
		Name:     in.Description,
	}}
	payload.Metadata = in.Metadata

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.HostURL+"/snap/v1/transactions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Basic "+basicAuth(m.ServerKey))

	resp, err := m.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("midtrans snap request: %w", err)
	}
	defer resp.Body.Close()

	var snap midtransSnapResponse
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return nil, fmt.Errorf("midtrans snap response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("midtrans snap returned %d: %v", resp.StatusCode, snap.ErrorMessage)
	}
	return &CheckoutSession{OrderID: in.OrderID, Token: snap.Token, RedirectURL: snap.RedirectURL}, nil
}

type midtransStatusResponse struct {
	OrderID           string   `json:"order_id"`
	TransactionStatus string   `json:"transaction_status"`
	Metadata          Metadata `json:"metadata"`
	StatusCode        string   `json:"status_code"`
}

func (m *Midtrans) GetOrder(ctx context.Context, externalID string) (*OrderStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.HostURL+"/v2/"+externalID+"/status", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Basic "+basicAuth(m.ServerKey))

	resp, err := m.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("midtrans status request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrOrderNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("midtrans status returned %d: %s", resp.StatusCode, b)
	}
	var st midtransStatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return nil, err
	}
	return &OrderStatus{
		ExternalID: st.OrderID,
		Status:     st.TransactionStatus,
		Paid:       midtransSettled(st.TransactionStatus),
		Metadata:   st.Metadata,
	}, nil
}

type midtransNotification struct {
	OrderID           string   `json:"order_id"`
	StatusCode        string   `json:"status_code"`
	GrossAmount       string   `json:"gross_amount"`
	TransactionStatus string   `json:"transaction_status"`
	SignatureKey      string   `json:"signature_key"`
	Metadata          Metadata `json:"metadata"`
}

// VerifyWebhook recomputes the expected signature over the notification's
// UTF-8 bytes and compares byte for byte. A mismatch means the payload is
// untrusted: reject with no state change.
func (m *Midtrans) VerifyWebhook(_ http.Header, body []byte) (*Event, error) {
	var n midtransNotification
	if err := json.Unmarshal(body, &n); err != nil {
		return nil, err
	}
	expected := MidtransSignature(n.OrderID, n.StatusCode, n.GrossAmount, m.ServerKey)
	if subtle.ConstantTimeCompare([]byte(expected), []byte(n.SignatureKey)) != 1 {
		return nil, ErrInvalidSignature
	}
	return &Event{
		Provider:          m.Name(),
		OrderID:           n.OrderID,
		TransactionStatus: n.TransactionStatus,
		GrossAmount:       n.GrossAmount,
		Settled:           midtransSettled(n.TransactionStatus),
		Metadata:          n.Metadata,
	}, nil
}

// MidtransSignature is the hex SHA-512 of orderID + statusCode + grossAmount
// + serverKey.
func MidtransSignature(orderID, statusCode, grossAmount, serverKey string) string {
	sum := sha512.Sum512([]byte(orderID + statusCode + grossAmount + serverKey))
	return hex.EncodeToString(sum[:])
}

func midtransSettled(status string) bool {
	return status == "settlement" || status == "capture"
}

func basicAuth(key string) string {
	return base64.StdEncoding.EncodeToString([]byte(key + ":"))
}
