package generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/ruangai/backend/internal/cache"
	"github.com/ruangai/backend/internal/ledger"
	"github.com/ruangai/backend/internal/payment"
)

// ErrOrderUnpaid means a pay-per-image request referenced an order the
// provider does not report as settled. No generation runs for it.
var ErrOrderUnpaid = errors.New("order not paid")

// OrderChecker verifies that a one-off order was actually paid. Satisfied
// by payment.Provider.
type OrderChecker interface {
	GetOrder(ctx context.Context, externalID string) (*payment.OrderStatus, error)
}

type Input struct {
	UserID     string
	ImageURL   string
	Theme      string
	Room       string
	UseCredits bool
	InvoiceID  string
}

// Service is the generation gate: it pairs spend authorization with the
// external job call. Credits path: atomic consume first, refund on downstream
// failure. Pay-per-order path: verify the order settled, replay from cache
// when possible.
type Service struct {
	ledger ledger.Service
	client JobClient
	cache  *cache.ResultCache
	orders OrderChecker
	log    *slog.Logger
}

func NewService(ledgerSvc ledger.Service, client JobClient, resultCache *cache.ResultCache, orders OrderChecker, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{ledger: ledgerSvc, client: client, cache: resultCache, orders: orders, log: log}
}

func (s *Service) Generate(ctx context.Context, in Input) ([]string, error) {
	theme := NormalizeTheme(in.Theme)
	room := NormalizeRoom(in.Room)
	job := JobInput{ImageURL: in.ImageURL, Prompt: BuildPrompt(theme, room)}

	if in.UseCredits {
		return s.generateWithCredit(ctx, in.UserID, job)
	}
	return s.generateForOrder(ctx, in.InvoiceID, job)
}

// generateWithCredit deducts exactly one credit before the external call, so
// an empty balance costs nothing upstream. A failed or timed-out generation
// refunds the credit with a compensating grant.
func (s *Service) generateWithCredit(ctx context.Context, userID string, job JobInput) ([]string, error) {
	orderID := "generation_" + uuid.NewString()
	if _, err := s.ledger.Consume(ctx, userID, 1, orderID); err != nil {
		return nil, err
	}

	out, err := s.client.Generate(ctx, job)
	if err != nil {
		if refundErr := s.ledger.Refund(ctx, userID, 1, orderID); refundErr != nil {
			s.log.Error("refund after failed generation failed",
				"user_id", userID, "order_id", orderID, "error", refundErr)
		}
		return nil, err
	}
	return out, nil
}

// generateForOrder serves the pay-per-image flow: the order must be settled
// with the provider, and repeated calls for the same order replay the cached
// result instead of re-invoking the job API.
func (s *Service) generateForOrder(ctx context.Context, invoiceID string, job JobInput) ([]string, error) {
	if invoiceID == "" {
		return nil, ErrOrderUnpaid
	}

	if cached, err := s.cache.GetGeneratedImage(ctx, invoiceID); err != nil {
		s.log.Warn("result cache read failed", "invoice_id", invoiceID, "error", err)
	} else if cached != "" {
		var out []string
		if err := json.Unmarshal([]byte(cached), &out); err == nil {
			return out, nil
		}
	}

	status, err := s.orders.GetOrder(ctx, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("verify order %s: %w", invoiceID, err)
	}
	if !status.Paid {
		return nil, ErrOrderUnpaid
	}

	out, err := s.client.Generate(ctx, job)
	if err != nil {
		return nil, err
	}
	if encoded, err := json.Marshal(out); err == nil {
		if err := s.cache.SaveGeneratedImage(ctx, invoiceID, string(encoded)); err != nil {
			s.log.Warn("result cache write failed", "invoice_id", invoiceID, "error", err)
		}
	}
	return out, nil
}
