package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/HaruCodeTI/manifeste/api/internal/database"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

var (
	ErrOrderNotFound = errors.New("order not found")
	ErrNoRecipient   = errors.New("order has no customer email")
	// ErrSendFailed wraps transport errors from the mail server.
	ErrSendFailed = errors.New("send email failed")
)

// OrderStore defines the reads needed to describe an order.
// Satisfied by *database.Queries.
type OrderStore interface {
	GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
	ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.ListOrderItemsByOrderRow, error)
}

// Notifier sends order emails and builds customer contact links.
type Notifier struct {
	store         OrderStore
	sender        Sender
	from          string
	storeWhatsApp string
	logger        *zap.Logger
}

// NewNotifier creates a Notifier. storeWhatsApp may be empty, in which case
// emails carry no contact link.
func NewNotifier(store OrderStore, sender Sender, from, storeWhatsApp string, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{store: store, sender: sender, from: from, storeWhatsApp: storeWhatsApp, logger: logger}
}

// Summary loads an order with its items.
func (n *Notifier) Summary(ctx context.Context, orderID uuid.UUID) (Summary, error) {
	order, err := n.store.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Summary{}, ErrOrderNotFound
		}
		return Summary{}, fmt.Errorf("get order: %w", err)
	}
	items, err := n.store.ListOrderItemsByOrder(ctx, orderID)
	if err != nil {
		return Summary{}, fmt.Errorf("list order items: %w", err)
	}
	return NewSummary(order, items), nil
}

// SendOrderEmail emails the customer a summary of the order and its current
// status. It only reads the order.
func (n *Notifier) SendOrderEmail(ctx context.Context, orderID uuid.UUID) error {
	s, err := n.Summary(ctx, orderID)
	if err != nil {
		return err
	}
	if strings.TrimSpace(s.CustomerEmail) == "" {
		return ErrNoRecipient
	}

	var contact string
	if n.storeWhatsApp != "" {
		if link, err := WhatsAppLink(n.storeWhatsApp, "Olá! Tenho uma dúvida sobre o pedido #"+s.Reference); err == nil {
			contact = link
		} else {
			n.logger.Warn("invalid store whatsapp number", zap.Error(err))
		}
	}

	body, err := renderOrderEmail(s, contact)
	if err != nil {
		return err
	}
	if err := n.sender.DialAndSend(buildMessage(n.from, s, body)); err != nil {
		n.logger.Error("send order email",
			zap.String("order_id", s.OrderID),
			zap.Error(err),
		)
		return fmt.Errorf("%w: %v", ErrSendFailed, err)
	}

	n.logger.Info("order email sent",
		zap.String("order_id", s.OrderID),
		zap.String("status", s.Status),
	)
	return nil
}

// CustomerWhatsAppLink returns a wa.me link that opens a chat with the
// customer prefilled with the order summary.
func (n *Notifier) CustomerWhatsAppLink(ctx context.Context, orderID uuid.UUID) (string, error) {
	s, err := n.Summary(ctx, orderID)
	if err != nil {
		return "", err
	}
	return WhatsAppLink(s.CustomerPhone, WhatsAppMessage(s))
}
