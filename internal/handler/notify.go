package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/HaruCodeTI/manifeste/api/internal/notify"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OrderMailer emails order summaries. Satisfied by *notify.Notifier.
type OrderMailer interface {
	SendOrderEmail(ctx context.Context, orderID uuid.UUID) error
}

// NotifyHandler handles customer notification endpoints.
type NotifyHandler struct {
	mailer OrderMailer
	logger *zap.Logger
}

// NewNotifyHandler creates a new NotifyHandler.
func NewNotifyHandler(mailer OrderMailer, logger *zap.Logger) *NotifyHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotifyHandler{mailer: mailer, logger: logger}
}

// RegisterRoutes registers notification endpoints on the given Chi router.
func (h *NotifyHandler) RegisterRoutes(r chi.Router) {
	r.Post("/send-order-email", h.SendOrderEmail)
}

type sendOrderEmailRequest struct {
	OrderID string `json:"orderId"`
}

// SendOrderEmail handles POST /send-order-email. The order is never modified,
// so a mail failure leaves it intact.
func (h *NotifyHandler) SendOrderEmail(w http.ResponseWriter, r *http.Request) {
	var req sendOrderEmailRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}
	if req.OrderID == "" {
		writeError(w, http.StatusBadRequest, "orderId é obrigatório")
		return
	}
	orderID, err := uuid.Parse(req.OrderID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "orderId inválido")
		return
	}

	if err := h.mailer.SendOrderEmail(r.Context(), orderID); err != nil {
		switch {
		case errors.Is(err, notify.ErrOrderNotFound):
			writeError(w, http.StatusNotFound, msgNotFound)
		case errors.Is(err, notify.ErrNoRecipient):
			writeError(w, http.StatusBadRequest, "pedido sem email do cliente")
		case errors.Is(err, notify.ErrSendFailed):
			h.logger.Error("send order email", zap.String("order_id", orderID.String()), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "falha ao enviar email")
		default:
			writeInternal(w, h.logger, "send order email", err)
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
