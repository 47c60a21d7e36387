package payment

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Notification shape per provider, checked before any processing. Schema
// failures are the one case the webhook answers with a client error.
const midtransWebhookSchema = `{
	"type": "object",
	"required": ["order_id", "status_code", "gross_amount", "transaction_status", "signature_key"],
	"properties": {
		"order_id": {"type": "string", "minLength": 1},
		"status_code": {"type": "string"},
		"gross_amount": {"type": "string"},
		"transaction_status": {"type": "string"},
		"signature_key": {"type": "string", "minLength": 1}
	}
}`

const xenditWebhookSchema = `{
	"type": "object",
	"required": ["external_id", "status"],
	"properties": {
		"external_id": {"type": "string", "minLength": 1},
		"status": {"type": "string"}
	}
}`

// WebhookHandler is the reconciler's ingress. Strict at the edge: bad shape
// is 400, bad signature is 401. Everything accepted past that point is
// answered 200 once durably queued, so business-level rejections (pending,
// missing metadata) never trigger provider retry storms. Processing errors
// after the ack surface through River's retries and logs, not through the
// webhook's HTTP status.
type WebhookHandler struct {
	provider Provider
	enqueue  EnqueueEventFunc
	schema   *jsonschema.Schema
	log      *slog.Logger
}

func NewWebhookHandler(provider Provider, enqueue EnqueueEventFunc, log *slog.Logger) (*WebhookHandler, error) {
	if log == nil {
		log = slog.Default()
	}
	raw := midtransWebhookSchema
	if provider.Name() == "xendit" {
		raw = xenditWebhookSchema
	}
	schema, err := jsonschema.CompileString("webhook.json", raw)
	if err != nil {
		return nil, err
	}
	return &WebhookHandler{provider: provider, enqueue: enqueue, schema: schema, log: log}, nil
}

func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if err := h.schema.Validate(doc); err != nil {
		h.log.Warn("webhook schema validation failed", "error", err)
		writeError(w, http.StatusBadRequest, "invalid notification payload")
		return
	}

	ev, err := h.provider.VerifyWebhook(r.Header, body)
	if errors.Is(err, ErrInvalidSignature) {
		h.log.Warn("webhook signature mismatch", "provider", h.provider.Name())
		writeError(w, http.StatusUnauthorized, "invalid signature")
		return
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid notification payload")
		return
	}

	// Ack only after the event is durably queued; a failed insert means the
	// provider should retry.
	if err := h.enqueue(r.Context(), *ev); err != nil {
		h.log.Error("enqueue payment event failed", "order_id", ev.OrderID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to accept notification")
		return
	}
	h.log.Info("webhook accepted", "order_id", ev.OrderID, "status", ev.TransactionStatus)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
