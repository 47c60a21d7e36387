package ledger

import (
	"context"
	"fmt"

	"github.com/ruangai/backend/internal/models"
)

// Service is the single source of truth for spendable balances. UI code
// never touches the tables directly; every mutation goes through here and
// pairs with exactly one transaction-log row.
type Service interface {
	GetBalance(ctx context.Context, userID string) (int, error)
	Grant(ctx context.Context, userID string, amount int, orderID, status string) (applied bool, err error)
	Consume(ctx context.Context, userID string, amount int, orderID string) (newBalance int, err error)
	Refund(ctx context.Context, userID string, amount int, orderID string) error
	ListTransactions(ctx context.Context, userID string) ([]*models.CreditTransaction, error)
}

// Store is the persistence contract the service runs on. *Repository is the
// Postgres implementation; tests use an in-memory one with the same
// conditional-update and unique-order semantics.
type Store interface {
	GetOrCreate(ctx context.Context, userID string) (int, error)
	Grant(ctx context.Context, userID string, amount int, orderID, status string) (applied bool, err error)
	Consume(ctx context.Context, userID string, amount int, orderID, status string) (newBalance int, err error)
	ListTransactions(ctx context.Context, userID string) ([]*models.CreditTransaction, error)
}

type service struct {
	repo Store
}

func NewService(repo Store) Service {
	return &service{repo: repo}
}

var _ Service = (*service)(nil)
var _ Store = (*Repository)(nil)

func (s *service) GetBalance(ctx context.Context, userID string) (int, error) {
	return s.repo.GetOrCreate(ctx, userID)
}

func (s *service) Grant(ctx context.Context, userID string, amount int, orderID, status string) (bool, error) {
	if amount <= 0 {
		return false, fmt.Errorf("grant amount must be positive, got %d", amount)
	}
	return s.repo.Grant(ctx, userID, amount, orderID, status)
}

func (s *service) Consume(ctx context.Context, userID string, amount int, orderID string) (int, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("consume amount must be positive, got %d", amount)
	}
	// Provision first so a brand-new user can spend the seed credit even if
	// nothing has read their balance yet.
	if _, err := s.repo.GetOrCreate(ctx, userID); err != nil {
		return 0, err
	}
	return s.repo.Consume(ctx, userID, amount, orderID, models.TxStatusCompleted)
}

// Refund is the compensating grant applied when a generation fails after its
// credit was already consumed. The ":refund" suffix keeps the order_id unique
// against the original usage row.
func (s *service) Refund(ctx context.Context, userID string, amount int, orderID string) error {
	_, err := s.repo.Grant(ctx, userID, amount, orderID+":refund", models.TxStatusRefund)
	return err
}

func (s *service) ListTransactions(ctx context.Context, userID string) ([]*models.CreditTransaction, error) {
	return s.repo.ListTransactions(ctx, userID)
}

// ErrInsufficientCredits is returned by Consume when the balance is too low.
// The decrement does not apply; the balance is unchanged.
var ErrInsufficientCredits = errInsufficientCredits
