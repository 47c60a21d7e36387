package reconcile

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/riverqueue/river"

	"github.com/ruangai/backend/internal/payment"
)

// PaymentEventArgs is a verified payment notification queued for durable
// processing. The webhook handler acknowledges the provider as soon as this
// job is inserted; everything past that point is at-least-once.
type PaymentEventArgs struct {
	Provider          string           `json:"provider"`
	OrderID           string           `json:"order_id"`
	TransactionStatus string           `json:"transaction_status"`
	GrossAmount       string           `json:"gross_amount"`
	Settled           bool             `json:"settled"`
	Metadata          payment.Metadata `json:"metadata"`
}

func (PaymentEventArgs) Kind() string { return "payment_event" }

// Granter is the slice of the ledger the worker needs.
type Granter interface {
	Grant(ctx context.Context, userID string, amount int, orderID, status string) (applied bool, err error)
}

// PaymentEventWorker turns settled payment events into credit grants.
// Grants are idempotent per order id, so River retries and provider
// redelivery cannot double-credit an account.
type PaymentEventWorker struct {
	river.WorkerDefaults[PaymentEventArgs]
	ledger Granter
	log    *slog.Logger
}

func NewPaymentEventWorker(ledger Granter, log *slog.Logger) *PaymentEventWorker {
	if log == nil {
		log = slog.Default()
	}
	return &PaymentEventWorker{ledger: ledger, log: log}
}

func (w *PaymentEventWorker) Work(ctx context.Context, job *river.Job[PaymentEventArgs]) error {
	args := job.Args

	// Status gate: only settled/captured events touch the ledger. Pending,
	// expired and denied notifications were already acknowledged upstream.
	if !args.Settled {
		w.log.Info("payment event not settled, skipping",
			"order_id", args.OrderID, "status", args.TransactionStatus)
		return nil
	}

	// A grant needs a user to credit and an amount. Orders without them
	// (e.g. one-off generation invoices) are not ledger events.
	if args.Metadata.UserID == "" || args.Metadata.Credits <= 0 {
		w.log.Warn("settled payment event without userId/credits metadata, skipping",
			"order_id", args.OrderID)
		return nil
	}

	applied, err := w.ledger.Grant(ctx, args.Metadata.UserID, args.Metadata.Credits, args.OrderID, args.TransactionStatus)
	if err != nil {
		return fmt.Errorf("grant credits for order %s: %w", args.OrderID, err)
	}
	if !applied {
		w.log.Info("duplicate payment event, grant already applied", "order_id", args.OrderID)
		return nil
	}
	w.log.Info("credits granted",
		"order_id", args.OrderID, "user_id", args.Metadata.UserID, "credits", args.Metadata.Credits)
	return nil
}
