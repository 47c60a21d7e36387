package models

import "time"

// Transaction status values recorded in the credit_transactions log.
const (
	TxStatusFreeCredit = "free_credit"
	TxStatusSettlement = "settlement"
	TxStatusCapture    = "capture"
	TxStatusCompleted  = "completed"
	TxStatusRefund     = "refund"
)

// CreditAccount is the authoritative spendable balance for one user.
// user_id is the stable identifier from the identity provider.
type CreditAccount struct {
	UserID    string    `json:"user_id"`
	Credits   int       `json:"credits"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreditTransaction is one row of the append-only audit log. Rows are
// written once per balance-affecting event and never updated or deleted.
// order_id is unique, which is what makes webhook replays a no-op.
type CreditTransaction struct {
	ID                int64     `json:"id"`
	UserID            string    `json:"user_id"`
	OrderID           string    `json:"order_id"`
	CreditsAdded      int       `json:"credits_added"`
	TransactionStatus string    `json:"transaction_status"`
	CreatedAt         time.Time `json:"created_at"`
}
