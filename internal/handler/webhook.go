package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/tradepost/marketplace/internal/domain"
)

// WebhookProcessor runs the webhook pipeline for one raw delivery.
type WebhookProcessor interface {
	HandleStripeWebhook(ctx context.Context, payload []byte, sigHeader string) (*domain.HandlerResult, error)
}

// WebhookHandler handles Stripe webhook callbacks.
type WebhookHandler struct {
	processor WebhookProcessor
	logger    *slog.Logger
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(processor WebhookProcessor, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{processor: processor, logger: logger}
}

// HandleStripeWebhook handles POST /webhooks/stripe.
// IMPORTANT: This handler must receive the raw request body (no JSON middleware parsing).
func (h *WebhookHandler) HandleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	// Read raw body (required for signature verification)
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20)) // 1MB limit
	if err != nil {
		h.logger.Error("read webhook body", "error", err, "request_id", GetRequestID(r.Context()))
		RespondError(w, r, domain.ErrValidation("unreadable request body"))
		return
	}

	sigHeader := r.Header.Get("Stripe-Signature")
	if sigHeader == "" {
		h.logger.Error("missing Stripe-Signature header", "request_id", GetRequestID(r.Context()))
		RespondError(w, r, domain.ErrValidation("missing Stripe-Signature header"))
		return
	}

	result, err := h.processor.HandleStripeWebhook(r.Context(), body, sigHeader)
	if err != nil {
		h.logger.Error("process stripe webhook", "error", err)
		RespondError(w, r, err)
		return
	}

	// Stripe expects 200 OK for every outcome it should not retry. A replayed
	// event id acknowledges with duplicate instead of processed.
	resp := map[string]interface{}{"received": true}
	switch result.Action {
	case domain.ActionDuplicate:
		resp["duplicate"] = true
	case domain.ActionIgnored:
		resp["processed"] = true
		resp["action"] = domain.ActionIgnored
		if result.Reason != "" {
			resp["reason"] = result.Reason
		}
	default:
		resp["processed"] = true
	}
	RespondJSON(w, http.StatusOK, resp)
}
