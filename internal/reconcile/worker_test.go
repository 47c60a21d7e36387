package reconcile

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/riverqueue/river"

	"github.com/ruangai/backend/internal/payment"
)

// ---------------------------------------------------------------------------
// Mock ledger
// ---------------------------------------------------------------------------

type grantCall struct {
	UserID  string
	Amount  int
	OrderID string
	Status  string
}

type mockGranter struct {
	mu     sync.Mutex
	calls  []grantCall
	orders map[string]bool
	err    error
}

func newMockGranter() *mockGranter {
	return &mockGranter{orders: make(map[string]bool)}
}

func (m *mockGranter) Grant(_ context.Context, userID string, amount int, orderID, status string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	m.calls = append(m.calls, grantCall{userID, amount, orderID, status})
	if m.orders[orderID] {
		return false, nil
	}
	m.orders[orderID] = true
	return true, nil
}

func settledJob(orderID string) *river.Job[PaymentEventArgs] {
	return &river.Job[PaymentEventArgs]{Args: PaymentEventArgs{
		Provider:          "midtrans",
		OrderID:           orderID,
		TransactionStatus: "settlement",
		GrossAmount:       "45000.00",
		Settled:           true,
		Metadata:          payment.Metadata{UserID: "u1", Credits: 10, Plan: "pro"},
	}}
}

// ---------------------------------------------------------------------------
// Work
// ---------------------------------------------------------------------------

func TestWork_SettlementGrantsCredits(t *testing.T) {
	ledger := newMockGranter()
	w := NewPaymentEventWorker(ledger, nil)

	if err := w.Work(context.Background(), settledJob("credits_1_abc")); err != nil {
		t.Fatalf("Work: %v", err)
	}
	if len(ledger.calls) != 1 {
		t.Fatalf("grant calls: %d", len(ledger.calls))
	}
	got := ledger.calls[0]
	want := grantCall{"u1", 10, "credits_1_abc", "settlement"}
	if got != want {
		t.Errorf("grant call: %+v, want %+v", got, want)
	}
}

func TestWork_PendingIsNoOp(t *testing.T) {
	ledger := newMockGranter()
	w := NewPaymentEventWorker(ledger, nil)

	job := settledJob("credits_1_abc")
	job.Args.Settled = false
	job.Args.TransactionStatus = "pending"

	if err := w.Work(context.Background(), job); err != nil {
		t.Fatalf("Work: %v", err)
	}
	if len(ledger.calls) != 0 {
		t.Errorf("pending event reached the ledger: %+v", ledger.calls)
	}
}

func TestWork_MissingMetadataIsNoOp(t *testing.T) {
	ledger := newMockGranter()
	w := NewPaymentEventWorker(ledger, nil)

	// One-off invoice: settled, carries photo/theme/room but no user grant.
	job := settledJob("invoice_1_abc")
	job.Args.Metadata = payment.Metadata{OriginalPhoto: "https://img.example/p.jpg", Theme: "Modern", Room: "Bedroom"}

	if err := w.Work(context.Background(), job); err != nil {
		t.Fatalf("Work: %v", err)
	}
	if len(ledger.calls) != 0 {
		t.Errorf("invoice event reached the ledger: %+v", ledger.calls)
	}
}

func TestWork_DuplicateEventDoesNotError(t *testing.T) {
	ledger := newMockGranter()
	w := NewPaymentEventWorker(ledger, nil)

	if err := w.Work(context.Background(), settledJob("credits_1_abc")); err != nil {
		t.Fatalf("first Work: %v", err)
	}
	// Provider redelivery of the same notification.
	if err := w.Work(context.Background(), settledJob("credits_1_abc")); err != nil {
		t.Fatalf("second Work: %v", err)
	}
	if len(ledger.calls) != 2 {
		t.Fatalf("grant calls: %d", len(ledger.calls))
	}
}

func TestWork_GrantErrorPropagatesForRetry(t *testing.T) {
	ledger := newMockGranter()
	ledger.err = errors.New("connection reset")
	w := NewPaymentEventWorker(ledger, nil)

	err := w.Work(context.Background(), settledJob("credits_1_abc"))
	if err == nil {
		t.Fatal("expected error so the job is retried")
	}
	if !errors.Is(err, ledger.err) {
		t.Errorf("err = %v, want wrapped %v", err, ledger.err)
	}
}
