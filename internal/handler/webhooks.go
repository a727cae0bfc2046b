package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/HaruCodeTI/manifeste/api/internal/payment"
	"github.com/HaruCodeTI/manifeste/api/internal/service"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// maxWebhookBody is the largest webhook payload accepted.
const maxWebhookBody = 1 << 20

// WebhookVerifier verifies and decodes payment webhooks.
// Satisfied by *payment.StripeProvider.
type WebhookVerifier interface {
	ParseWebhook(payload []byte, signature string) (payment.WebhookEvent, error)
}

// PaymentSettler applies payment outcomes to orders.
// Satisfied by *service.StatusService.
type PaymentSettler interface {
	MarkPaidBySession(ctx context.Context, sessionID string) (*service.TransitionResult, error)
	CancelBySession(ctx context.Context, sessionID string) (*service.TransitionResult, error)
}

// WebhookHandler handles payment processor callbacks.
type WebhookHandler struct {
	verifier WebhookVerifier
	settler  PaymentSettler
	logger   *zap.Logger
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(verifier WebhookVerifier, settler PaymentSettler, logger *zap.Logger) *WebhookHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookHandler{verifier: verifier, settler: settler, logger: logger}
}

// RegisterRoutes registers webhook endpoints on the given Chi router.
func (h *WebhookHandler) RegisterRoutes(r chi.Router) {
	r.Post("/webhooks/payment", h.Payment)
}

// Payment handles POST /webhooks/payment.
//
// Any non-2xx response makes the processor redeliver the event, so events
// that can never be applied (unknown session, order already cancelled) are
// acknowledged and logged for manual reconciliation. Only transient failures
// answer 500.
func (h *WebhookHandler) Payment(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.logger.Error("webhook body too large", zap.Int64("limit", tooLarge.Limit))
			writeError(w, http.StatusRequestEntityTooLarge, msgBodyTooBig)
			return
		}
		writeError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}

	evt, err := h.verifier.ParseWebhook(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		if errors.Is(err, payment.ErrSignatureInvalid) {
			h.logger.Warn("webhook signature rejected", zap.Error(err))
			writeError(w, http.StatusBadRequest, "assinatura inválida")
			return
		}
		h.logger.Warn("webhook payload rejected", zap.Error(err))
		writeError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}

	log := h.logger.With(
		zap.String("event_id", evt.ID),
		zap.String("event_type", evt.Type),
		zap.String("session_id", evt.SessionID),
	)

	var result *service.TransitionResult
	switch {
	case evt.SessionID == "":
		log.Debug("webhook event ignored")
		writeJSON(w, http.StatusOK, map[string]bool{"received": true})
		return
	case evt.Paid():
		result, err = h.settler.MarkPaidBySession(r.Context(), evt.SessionID)
	case evt.Failed():
		result, err = h.settler.CancelBySession(r.Context(), evt.SessionID)
	default:
		log.Info("webhook event has no order effect", zap.String("payment_status", evt.PaymentStatus))
		writeJSON(w, http.StatusOK, map[string]bool{"received": true})
		return
	}

	if err != nil {
		switch {
		case errors.Is(err, service.ErrOrderNotFound):
			log.Warn("webhook for unknown checkout session", zap.String("order_ref", evt.OrderID))
		case errors.Is(err, service.ErrInvalidTransition):
			log.Warn("webhook cannot be applied to order", zap.String("order_ref", evt.OrderID), zap.Error(err))
		default:
			log.Error("apply payment webhook", zap.Error(err))
			writeError(w, http.StatusInternalServerError, msgInternal)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"received": true})
		return
	}

	if !result.Changed {
		log.Info("webhook redelivery, order already settled",
			zap.String("order_id", result.Order.ID.String()),
			zap.String("status", result.Order.Status),
		)
	}
	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}
