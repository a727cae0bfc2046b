package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/HaruCodeTI/manifeste/api/internal/database"
	"github.com/HaruCodeTI/manifeste/api/internal/enum"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"go.uber.org/zap"
)

// Status errors.
var (
	ErrOrderNotFound          = errors.New("order not found")
	ErrInvalidStatus          = errors.New("invalid status")
	ErrInvalidTransition      = errors.New("invalid status transition")
	ErrStatusConflict         = errors.New("order status changed concurrently")
	ErrTrackingCodeRequired   = errors.New("tracking_code is required")
	ErrTrackingCodeNotAllowed = errors.New("tracking code is only allowed on delivery orders in processing, shipped or delivered")
)

// TransitionError reports an illegal status change. It matches
// ErrInvalidTransition with errors.Is.
type TransitionError struct {
	From string
	To   string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot change status from %s to %s", e.From, e.To)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// allowedTransitions maps current status to the statuses it may move to.
// cancelled and refunded are terminal.
var allowedTransitions = map[string][]string{
	enum.OrderStatusPendingPayment: {enum.OrderStatusPaid, enum.OrderStatusCancelled},
	enum.OrderStatusPaid:           {enum.OrderStatusProcessing, enum.OrderStatusCancelled, enum.OrderStatusRefunded},
	enum.OrderStatusProcessing:     {enum.OrderStatusShipped, enum.OrderStatusAwaitingPickup, enum.OrderStatusCancelled},
	enum.OrderStatusShipped:        {enum.OrderStatusDelivered, enum.OrderStatusCancelled},
	enum.OrderStatusAwaitingPickup: {enum.OrderStatusDelivered, enum.OrderStatusCancelled},
	enum.OrderStatusDelivered:      {enum.OrderStatusRefunded},
}

// preShipment statuses still hold the goods in store, so cancelling or
// refunding from them puts the items back into stock.
var preShipment = map[string]bool{
	enum.OrderStatusPendingPayment: true,
	enum.OrderStatusPaid:           true,
	enum.OrderStatusProcessing:     true,
	enum.OrderStatusAwaitingPickup: true,
}

// canTransition reports whether order may move from its current status to
// target. shipped is reserved for delivery orders and aguardando_retirada for
// pickup orders.
func canTransition(order database.Order, target string) bool {
	switch target {
	case enum.OrderStatusShipped:
		if order.ShippingMethod != enum.ShippingMethodDelivery {
			return false
		}
	case enum.OrderStatusAwaitingPickup:
		if order.ShippingMethod != enum.ShippingMethodPickup {
			return false
		}
	}
	for _, s := range allowedTransitions[order.Status] {
		if s == target {
			return true
		}
	}
	return false
}

// AllowedTransitions returns the statuses order may move to next, in
// lifecycle order. It is empty for terminal statuses.
func AllowedTransitions(order database.Order) []string {
	next := []string{}
	for _, s := range enum.OrderStatuses {
		if canTransition(order, s) {
			next = append(next, s)
		}
	}
	return next
}

// ValidateTransition returns a *TransitionError when order cannot move to target.
func ValidateTransition(order database.Order, target string) error {
	if !enum.IsOrderStatus(target) {
		return ErrInvalidStatus
	}
	if !canTransition(order, target) {
		return &TransitionError{From: order.Status, To: target}
	}
	return nil
}

func restocks(from, to string) bool {
	return (to == enum.OrderStatusCancelled || to == enum.OrderStatusRefunded) && preShipment[from]
}

// StatusStore defines the DB methods needed to change order status.
// Satisfied by *database.Queries (and its WithTx variant).
type StatusStore interface {
	GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
	GetOrderBySessionID(ctx context.Context, sessionID string) (database.Order, error)
	UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error)
	CreateOrderStatusHistory(ctx context.Context, arg database.CreateOrderStatusHistoryParams) (database.OrderStatusHistory, error)
	ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.ListOrderItemsByOrderRow, error)
	RestockVariant(ctx context.Context, arg database.RestockVariantParams) (int32, error)
	SetOrderTrackingCode(ctx context.Context, arg database.SetOrderTrackingCodeParams) (database.Order, error)
}

// NewStatusStore creates a StatusStore from a DBTX (pool or tx).
type NewStatusStore func(db database.DBTX) StatusStore

// TransitionRequest asks for an order to move to Status.
type TransitionRequest struct {
	OrderID uuid.UUID
	Status  string
	// ExpectedStatus, when set, is the status the caller last saw. A
	// different current status fails with ErrStatusConflict.
	ExpectedStatus string
	ChangedBy      string
}

// TransitionResult is the order after a status change.
type TransitionResult struct {
	Order          database.Order
	PreviousStatus string
	// Changed is false when the request was an idempotent repeat.
	Changed bool
}

// StatusService drives the order status state machine.
type StatusService struct {
	pool      TxBeginner
	newStore  NewStatusStore
	publisher Publisher
	logger    *zap.Logger
}

// NewStatusService creates a new StatusService.
func NewStatusService(pool TxBeginner, newStore NewStatusStore, publisher Publisher, logger *zap.Logger) *StatusService {
	if publisher == nil {
		publisher = nopPublisher{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatusService{pool: pool, newStore: newStore, publisher: publisher, logger: logger}
}

// Transition moves an order to req.Status, appends one history row and
// re-credits stock when a pre-shipment order is cancelled or refunded.
func (s *StatusService) Transition(ctx context.Context, req TransitionRequest) (*TransitionResult, error) {
	if !enum.IsOrderStatus(req.Status) {
		return nil, ErrInvalidStatus
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	current, err := store.GetOrder(ctx, req.OrderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	if req.ExpectedStatus != "" && req.ExpectedStatus != current.Status {
		return nil, ErrStatusConflict
	}

	updated, err := s.apply(ctx, store, current, req.Status, req.ChangedBy)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	s.published(current.Status, updated, req.ChangedBy)
	return &TransitionResult{Order: updated, PreviousStatus: current.Status, Changed: true}, nil
}

// MarkPaidBySession confirms payment for the order linked to a hosted checkout
// session. Orders already past pending_payment are returned unchanged so
// webhook redeliveries are harmless.
func (s *StatusService) MarkPaidBySession(ctx context.Context, sessionID string) (*TransitionResult, error) {
	return s.transitionBySession(ctx, sessionID, enum.OrderStatusPaid, func(status string) bool {
		return status != enum.OrderStatusPendingPayment && status != enum.OrderStatusCancelled
	})
}

// CancelBySession cancels the pending order of an expired checkout session
// and returns its items to stock. Already cancelled orders are left as is.
func (s *StatusService) CancelBySession(ctx context.Context, sessionID string) (*TransitionResult, error) {
	return s.transitionBySession(ctx, sessionID, enum.OrderStatusCancelled, func(status string) bool {
		return status == enum.OrderStatusCancelled
	})
}

func (s *StatusService) transitionBySession(ctx context.Context, sessionID, target string, settled func(status string) bool) (*TransitionResult, error) {
	if sessionID == "" {
		return nil, ErrOrderNotFound
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	current, err := store.GetOrderBySessionID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order by session: %w", err)
	}
	if settled(current.Status) {
		return &TransitionResult{Order: current, PreviousStatus: current.Status}, nil
	}

	updated, err := s.apply(ctx, store, current, target, enum.ChangedByStripeWebhook)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	s.published(current.Status, updated, enum.ChangedByStripeWebhook)
	return &TransitionResult{Order: updated, PreviousStatus: current.Status, Changed: true}, nil
}

// apply runs the guarded update, history append and restock inside the
// caller's transaction.
func (s *StatusService) apply(ctx context.Context, store StatusStore, current database.Order, target, changedBy string) (database.Order, error) {
	if err := ValidateTransition(current, target); err != nil {
		return database.Order{}, err
	}

	updated, err := store.UpdateOrderStatus(ctx, database.UpdateOrderStatusParams{
		ID:             current.ID,
		Status:         target,
		PreviousStatus: current.Status,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, ErrStatusConflict
		}
		return database.Order{}, fmt.Errorf("update order status: %w", err)
	}

	if _, err := store.CreateOrderStatusHistory(ctx, database.CreateOrderStatusHistoryParams{
		OrderID:   current.ID,
		Status:    target,
		ChangedBy: changedBy,
	}); err != nil {
		return database.Order{}, fmt.Errorf("create status history: %w", err)
	}

	if restocks(current.Status, target) {
		items, err := store.ListOrderItemsByOrder(ctx, current.ID)
		if err != nil {
			return database.Order{}, fmt.Errorf("list order items: %w", err)
		}
		for _, item := range items {
			if _, err := store.RestockVariant(ctx, database.RestockVariantParams{
				ID:       item.VariantID,
				Quantity: item.Quantity,
			}); err != nil {
				return database.Order{}, fmt.Errorf("restock variant %s: %w", item.VariantID, err)
			}
		}
	}

	return updated, nil
}

func (s *StatusService) published(previous string, order database.Order, changedBy string) {
	s.logger.Info("order status changed",
		zap.String("order_id", order.ID.String()),
		zap.String("from", previous),
		zap.String("to", order.Status),
		zap.String("changed_by", changedBy),
	)
	s.publisher.PublishOrderEvent(OrderEvent{
		Type:           EventOrderStatusChanged,
		OrderID:        order.ID,
		Status:         order.Status,
		PreviousStatus: previous,
		ChangedBy:      changedBy,
		At:             order.UpdatedAt,
	})
}

// SetTrackingCode records the carrier tracking code of a delivery order.
func (s *StatusService) SetTrackingCode(ctx context.Context, orderID uuid.UUID, code string) (database.Order, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return database.Order{}, ErrTrackingCodeRequired
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.Order{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	current, err := store.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, ErrOrderNotFound
		}
		return database.Order{}, fmt.Errorf("get order: %w", err)
	}
	if current.ShippingMethod != enum.ShippingMethodDelivery {
		return database.Order{}, ErrTrackingCodeNotAllowed
	}
	switch current.Status {
	case enum.OrderStatusProcessing, enum.OrderStatusShipped, enum.OrderStatusDelivered:
	default:
		return database.Order{}, ErrTrackingCodeNotAllowed
	}

	updated, err := store.SetOrderTrackingCode(ctx, database.SetOrderTrackingCodeParams{
		ID:           orderID,
		TrackingCode: pgtype.Text{String: code, Valid: true},
	})
	if err != nil {
		return database.Order{}, fmt.Errorf("set tracking code: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return database.Order{}, fmt.Errorf("commit tx: %w", err)
	}

	s.publisher.PublishOrderEvent(OrderEvent{
		Type:         EventOrderTrackingCode,
		OrderID:      updated.ID,
		Status:       updated.Status,
		TrackingCode: code,
		At:           updated.UpdatedAt,
	})
	return updated, nil
}
