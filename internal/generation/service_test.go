package generation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ruangai/backend/internal/cache"
	"github.com/ruangai/backend/internal/ledger"
	"github.com/ruangai/backend/internal/models"
	"github.com/ruangai/backend/internal/payment"
)

// ---------------------------------------------------------------------------
// Stubs
// ---------------------------------------------------------------------------

type stubLedger struct {
	mu       sync.Mutex
	balance  int
	consumes int
	refunds  int
}

func (s *stubLedger) GetBalance(_ context.Context, _ string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balance, nil
}

func (s *stubLedger) Grant(_ context.Context, _ string, amount int, _, _ string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balance += amount
	return true, nil
}

func (s *stubLedger) Consume(_ context.Context, _ string, amount int, _ string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.balance < amount {
		return 0, ledger.ErrInsufficientCredits
	}
	s.balance -= amount
	s.consumes++
	return s.balance, nil
}

func (s *stubLedger) Refund(_ context.Context, _ string, amount int, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balance += amount
	s.refunds++
	return nil
}

func (s *stubLedger) ListTransactions(_ context.Context, _ string) ([]*models.CreditTransaction, error) {
	return nil, nil
}

type stubJobClient struct {
	mu     sync.Mutex
	calls  int
	output []string
	err    error
}

func (c *stubJobClient) Generate(_ context.Context, _ JobInput) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return c.output, nil
}

func (c *stubJobClient) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

type stubOrders struct {
	order *payment.OrderStatus
	err   error
}

func (s *stubOrders) GetOrder(_ context.Context, _ string) (*payment.OrderStatus, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.order, nil
}

// memRedis is an in-memory stand-in for the slice of the Redis API the
// result cache uses.
type memRedis struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemRedis() *memRedis {
	return &memRedis{data: make(map[string]string)}
}

func (m *memRedis) Set(ctx context.Context, key string, value interface{}, _ time.Duration) *redis.StatusCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value.(string)
	cmd := redis.NewStatusCmd(ctx)
	cmd.SetVal("OK")
	return cmd
}

func (m *memRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	cmd := redis.NewStringCmd(ctx)
	if v, ok := m.data[key]; ok {
		cmd.SetVal(v)
	} else {
		cmd.SetErr(redis.Nil)
	}
	return cmd
}

func newTestService(l *stubLedger, c *stubJobClient, store cache.Store, orders OrderChecker) *Service {
	return NewService(l, c, cache.NewResultCache(store), orders, nil)
}

// ---------------------------------------------------------------------------
// Credit path
// ---------------------------------------------------------------------------

func TestGenerate_WithCredit(t *testing.T) {
	l := &stubLedger{balance: 3}
	c := &stubJobClient{output: []string{"https://cdn.example/in.png", "https://cdn.example/out.png"}}
	svc := newTestService(l, c, nil, &stubOrders{})

	out, err := svc.Generate(context.Background(), Input{
		UserID: "u1", ImageURL: "https://img.example/p.jpg",
		Theme: "Modern", Room: "Bedroom", UseCredits: true,
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(out) != 2 {
		t.Errorf("output: %v", out)
	}
	if l.balance != 2 || l.consumes != 1 {
		t.Errorf("balance %d consumes %d, want 2 and 1", l.balance, l.consumes)
	}
}

func TestGenerate_InsufficientCreditsSkipsJobAPI(t *testing.T) {
	l := &stubLedger{balance: 0}
	c := &stubJobClient{output: []string{"x"}}
	svc := newTestService(l, c, nil, &stubOrders{})

	_, err := svc.Generate(context.Background(), Input{UserID: "u1", UseCredits: true})
	if !errors.Is(err, ledger.ErrInsufficientCredits) {
		t.Fatalf("err = %v, want ErrInsufficientCredits", err)
	}
	if n := c.callCount(); n != 0 {
		t.Errorf("job API called %d times on empty balance", n)
	}
}

func TestGenerate_RefundOnFailure(t *testing.T) {
	for _, jobErr := range []error{ErrGenerationFailed, ErrGenerationTimeout} {
		l := &stubLedger{balance: 1}
		c := &stubJobClient{err: jobErr}
		svc := newTestService(l, c, nil, &stubOrders{})

		_, err := svc.Generate(context.Background(), Input{UserID: "u1", UseCredits: true})
		if !errors.Is(err, jobErr) {
			t.Fatalf("err = %v, want %v", err, jobErr)
		}
		if l.balance != 1 {
			t.Errorf("%v: balance %d after refund, want 1", jobErr, l.balance)
		}
		if l.refunds != 1 {
			t.Errorf("%v: refunds %d, want 1", jobErr, l.refunds)
		}
	}
}

// ---------------------------------------------------------------------------
// Pay-per-order path
// ---------------------------------------------------------------------------

func TestGenerate_PaidOrder(t *testing.T) {
	l := &stubLedger{}
	c := &stubJobClient{output: []string{"https://cdn.example/out.png"}}
	orders := &stubOrders{order: &payment.OrderStatus{ExternalID: "invoice_1", Status: "PAID", Paid: true}}
	svc := newTestService(l, c, newMemRedis(), orders)

	out, err := svc.Generate(context.Background(), Input{
		ImageURL: "https://img.example/p.jpg", Theme: "Modern", Room: "Bedroom", InvoiceID: "invoice_1",
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(out) != 1 {
		t.Errorf("output: %v", out)
	}
	if l.consumes != 0 {
		t.Errorf("credits consumed on a paid order")
	}
}

func TestGenerate_UnpaidOrderRejected(t *testing.T) {
	c := &stubJobClient{output: []string{"x"}}
	orders := &stubOrders{order: &payment.OrderStatus{ExternalID: "invoice_1", Status: "PENDING"}}
	svc := newTestService(&stubLedger{}, c, nil, orders)

	_, err := svc.Generate(context.Background(), Input{InvoiceID: "invoice_1"})
	if !errors.Is(err, ErrOrderUnpaid) {
		t.Fatalf("err = %v, want ErrOrderUnpaid", err)
	}
	if n := c.callCount(); n != 0 {
		t.Errorf("job API called %d times for unpaid order", n)
	}
}

func TestGenerate_MissingInvoiceRejected(t *testing.T) {
	svc := newTestService(&stubLedger{}, &stubJobClient{}, nil, &stubOrders{})
	_, err := svc.Generate(context.Background(), Input{})
	if !errors.Is(err, ErrOrderUnpaid) {
		t.Fatalf("err = %v, want ErrOrderUnpaid", err)
	}
}

func TestGenerate_CachedOrderReplaysWithoutJobCall(t *testing.T) {
	c := &stubJobClient{output: []string{"https://cdn.example/out.png"}}
	orders := &stubOrders{order: &payment.OrderStatus{ExternalID: "invoice_1", Paid: true}}
	svc := newTestService(&stubLedger{}, c, newMemRedis(), orders)

	in := Input{ImageURL: "https://img.example/p.jpg", Theme: "Modern", Room: "Bedroom", InvoiceID: "invoice_1"}

	first, err := svc.Generate(context.Background(), in)
	if err != nil {
		t.Fatalf("first Generate: %v", err)
	}
	second, err := svc.Generate(context.Background(), in)
	if err != nil {
		t.Fatalf("second Generate: %v", err)
	}
	if n := c.callCount(); n != 1 {
		t.Fatalf("job API called %d times, want 1", n)
	}
	if len(first) != len(second) || first[0] != second[0] {
		t.Errorf("replay mismatch: %v vs %v", first, second)
	}
}
