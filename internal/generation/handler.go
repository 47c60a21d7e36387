package generation

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/ruangai/backend/internal/ledger"
	"github.com/ruangai/backend/internal/middleware"
	"github.com/ruangai/backend/internal/ratelimit"
)

// Non-credit generations are bounded per client within a fixed window,
// before any external cost.
const (
	freeTierLimit  int64 = 5
	freeTierWindow       = 24 * time.Hour
)

type GenerateRequest struct {
	ImageURL   string `json:"imageUrl"`
	Theme      string `json:"theme"`
	Room       string `json:"room"`
	UseCredits bool   `json:"useCredits"`
	InvoiceID  string `json:"invoiceId"`
}

type Handler struct {
	svc     *Service
	limiter *ratelimit.Limiter
	log     *slog.Logger
}

func NewHandler(svc *Service, limiter *ratelimit.Limiter, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{svc: svc, limiter: limiter, log: log}
}

// Generate is the synchronous entry point: authorize the spend, run the
// external job, return the generated image references.
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromCtx(r.Context())
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "authentication_required")
		return
	}

	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.ImageURL == "" || req.Theme == "" || req.Room == "" {
		writeError(w, http.StatusBadRequest, "missing required fields")
		return
	}

	// The free (pay-per-image) path is also rate limited per client, keyed
	// by forwarded IP with the user id as fallback.
	if !req.UseCredits {
		key := r.Header.Get("X-Real-IP")
		if key == "" {
			key = userID
		}
		allowed, err := h.limiter.TryAcquire(r.Context(), "generate:"+key, freeTierLimit, freeTierWindow)
		if err != nil {
			h.log.Warn("rate limiter unavailable", "error", err)
		} else if !allowed {
			writeError(w, http.StatusTooManyRequests, "Too many requests. Please try again later or purchase credits.")
			return
		}
	}

	out, err := h.svc.Generate(r.Context(), Input{
		UserID:     userID,
		ImageURL:   req.ImageURL,
		Theme:      req.Theme,
		Room:       req.Room,
		UseCredits: req.UseCredits,
		InvoiceID:  req.InvoiceID,
	})
	if err != nil {
		h.writeGenerateError(w, userID, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

func (h *Handler) writeGenerateError(w http.ResponseWriter, userID string, err error) {
	switch {
	case errors.Is(err, ledger.ErrInsufficientCredits):
		writeError(w, http.StatusBadRequest, "insufficient_credits")
	case errors.Is(err, ErrOrderUnpaid):
		writeError(w, http.StatusPaymentRequired, "order_not_paid")
	case errors.Is(err, ErrGenerationTimeout):
		h.log.Error("generation timed out", "user_id", userID, "error", err)
		writeError(w, http.StatusGatewayTimeout, "generation_timeout")
	default:
		h.log.Error("generation failed", "user_id", userID, "error", err)
		writeError(w, http.StatusBadGateway, "Failed to generate image")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
