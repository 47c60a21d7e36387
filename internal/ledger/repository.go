package ledger

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ruangai/backend/internal/models"
)

var errInsufficientCredits = errors.New("insufficient credits")

type Repository struct {
	pool *pgxpool.Pool
	seed int
}

// NewRepository returns a Repository. seed is the free-credit balance a new
// account is provisioned with on first read.
func NewRepository(pool *pgxpool.Pool, seed int) *Repository {
	return &Repository{pool: pool, seed: seed}
}

// GetOrCreate returns the user's balance, provisioning the account with the
// free-credit seed on first read. The seed grant is logged exactly once: the
// INSERT either creates the row (and we log the grant) or hits the conflict
// and we just read the existing balance.
func (r *Repository) GetOrCreate(ctx context.Context, userID string) (int, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	var credits int
	err = tx.QueryRow(ctx, `
		INSERT INTO credit_accounts (user_id, credits)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO NOTHING
		RETURNING credits
	`, userID, r.seed).Scan(&credits)
	switch {
	case err == nil:
		// New account: log the seed grant.
		_, err = tx.Exec(ctx, `
			INSERT INTO credit_transactions (user_id, order_id, credits_added, transaction_status)
			VALUES ($1, $2, $3, $4)
		`, userID, "free_"+userID, r.seed, models.TxStatusFreeCredit)
		if err != nil {
			return 0, err
		}
	case errors.Is(err, pgx.ErrNoRows):
		// Account already exists.
		err = tx.QueryRow(ctx, `SELECT credits FROM credit_accounts WHERE user_id = $1`, userID).Scan(&credits)
		if err != nil {
			return 0, err
		}
	default:
		return 0, err
	}
	return credits, tx.Commit(ctx)
}

// Grant credits the user's balance for an order, exactly once per order_id.
// The transaction log row is the idempotency guard: if an entry for order_id
// already exists the whole grant is a no-op and applied is false.
func (r *Repository) Grant(ctx context.Context, userID string, amount int, orderID, status string) (applied bool, err error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	var txID int64
	err = tx.QueryRow(ctx, `
		INSERT INTO credit_transactions (user_id, order_id, credits_added, transaction_status)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (order_id) DO NOTHING
		RETURNING id
	`, userID, orderID, amount, status).Scan(&txID)
	if errors.Is(err, pgx.ErrNoRows) {
		// Duplicate delivery of the same order: nothing to do.
		return false, nil
	}
	if err != nil {
		return false, err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO credit_accounts (user_id, credits)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE
		SET credits = credit_accounts.credits + EXCLUDED.credits, updated_at = now()
	`, userID, amount)
	if err != nil {
		return false, err
	}
	return true, tx.Commit(ctx)
}

// Consume atomically deducts amount if the balance covers it and logs a
// negative transaction. A single conditional UPDATE enforces credits >= 0, so
// concurrent consumes for the same user cannot overspend.
func (r *Repository) Consume(ctx context.Context, userID string, amount int, orderID, status string) (newBalance int, err error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
		UPDATE credit_accounts
		SET credits = credits - $1, updated_at = now()
		WHERE user_id = $2 AND credits >= $1
		RETURNING credits
	`, amount, userID).Scan(&newBalance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, errInsufficientCredits
	}
	if err != nil {
		return 0, err
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO credit_transactions (user_id, order_id, credits_added, transaction_status)
		VALUES ($1, $2, $3, $4)
	`, userID, orderID, -amount, status)
	if err != nil {
		return 0, err
	}
	return newBalance, tx.Commit(ctx)
}

// ListTransactions returns the user's audit log, newest first.
func (r *Repository) ListTransactions(ctx context.Context, userID string) ([]*models.CreditTransaction, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, order_id, credits_added, transaction_status, created_at
		FROM credit_transactions WHERE user_id = $1 ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.CreditTransaction
	for rows.Next() {
		var t models.CreditTransaction
		if err := rows.Scan(&t.ID, &t.UserID, &t.OrderID, &t.CreditsAdded, &t.TransactionStatus, &t.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, &t)
	}
	return list, rows.Err()
}
