package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/HaruCodeTI/manifeste/api/internal/database"
	"github.com/HaruCodeTI/manifeste/api/internal/enum"
	"github.com/HaruCodeTI/manifeste/api/internal/pricing"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/microcosm-cc/bluemonday"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Errors returned by the order service.
var (
	ErrEmptyItems             = errors.New("items are required")
	ErrMissingCustomer        = errors.New("customer email, name and phone are required")
	ErrInvalidShippingMethod  = errors.New("invalid shipping_method")
	ErrInvalidPaymentMethod   = errors.New("invalid payment_method")
	ErrInvalidInstallments    = errors.New("installments must be between 1 and 12")
	ErrInvalidShippingCost    = errors.New("shipping_cost must be >= 0")
	ErrInvalidShippingAddress = errors.New("invalid shipping_address")
	ErrShippingAddressMissing = errors.New("shipping_address is required for delivery")
	ErrHostedCheckoutMethod   = errors.New("hosted checkout requires a card payment method")
	ErrInvalidQuantity        = errors.New("quantity must be > 0")
	ErrInvalidVariantID       = errors.New("invalid variant_id")
	ErrVariantNotFound        = errors.New("variant not found")
	ErrInsufficientStock      = errors.New("insufficient stock")
	ErrPriceMismatch          = errors.New("submitted total does not match server total")
	ErrInvalidCouponID        = errors.New("invalid coupon_id")
)

// InsufficientStockError names the cart line that cannot be fulfilled.
// It matches ErrInsufficientStock with errors.Is.
type InsufficientStockError struct {
	Index     int
	VariantID uuid.UUID
	Requested int64
	Available int32
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("item[%d]: insufficient stock for variant %s: requested %d, available %d",
		e.Index, e.VariantID, e.Requested, e.Available)
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// OrderStore defines the DB methods needed to create orders.
// Satisfied by *database.Queries (and its WithTx variant).
type OrderStore interface {
	GetVariantsForOrder(ctx context.Context, ids []uuid.UUID) ([]database.GetVariantsForOrderRow, error)
	GetCouponByCode(ctx context.Context, code string) (database.Coupon, error)
	GetCouponByID(ctx context.Context, id uuid.UUID) (database.Coupon, error)
	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error)
	DecrementVariantStock(ctx context.Context, arg database.DecrementVariantStockParams) (int32, error)
	GetVariantStock(ctx context.Context, id uuid.UUID) (int32, error)
	RedeemCoupon(ctx context.Context, id uuid.UUID) (database.Coupon, error)
	CreateOrderStatusHistory(ctx context.Context, arg database.CreateOrderStatusHistoryParams) (database.OrderStatusHistory, error)
	SetOrderCheckoutSession(ctx context.Context, arg database.SetOrderCheckoutSessionParams) (database.Order, error)
}

// NewOrderStore creates an OrderStore from a DBTX (pool or tx).
type NewOrderStore func(db database.DBTX) OrderStore

// CreateOrderRequest is the checkout input. Prices are never taken from it;
// Total is only compared against the server-derived total.
type CreateOrderRequest struct {
	CustomerEmail   string
	CustomerName    string
	CustomerPhone   string
	ShippingAddress json.RawMessage
	ShippingCost    decimal.Decimal
	ShippingMethod  string
	PaymentMethod   string
	Installments    int32
	Total           decimal.Decimal
	CouponID        string
	CouponCode      string
	// HostedCheckout marks orders paid through the payment processor's
	// hosted page. They start in pending_payment until the webhook confirms.
	HostedCheckout bool
	Items          []CreateOrderItemRequest
}

// CreateOrderItemRequest is a single cart line.
type CreateOrderItemRequest struct {
	VariantID string
	Quantity  int32
}

// CreateOrderResult is the created order with its items.
type CreateOrderResult struct {
	Order database.Order
	Items []OrderItemResult
}

// OrderItemResult is a persisted item plus its display fields.
type OrderItemResult struct {
	Item        database.OrderItem
	ProductName string
	Color       string
}

// OrderService creates orders.
type OrderService struct {
	pool      TxBeginner
	newStore  NewOrderStore
	tolerance decimal.Decimal
	publisher Publisher
	logger    *zap.Logger
	now       func() time.Time
}

// NewOrderService creates a new OrderService. tolerance is the largest
// accepted difference between the submitted and the derived total.
func NewOrderService(pool TxBeginner, newStore NewOrderStore, tolerance decimal.Decimal, publisher Publisher, logger *zap.Logger) *OrderService {
	if publisher == nil {
		publisher = nopPublisher{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderService{
		pool:      pool,
		newStore:  newStore,
		tolerance: tolerance,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// cartLine is a validated request line resolved against its variant.
type cartLine struct {
	index    int
	variant  database.GetVariantsForOrderRow
	quantity int32
}

// CreateOrder validates the cart against live stock, re-derives every amount
// from stored prices and persists the order in a single transaction.
func (s *OrderService) CreateOrder(ctx context.Context, req CreateOrderRequest) (*CreateOrderResult, error) {
	req, err := normalizeOrderRequest(req)
	if err != nil {
		return nil, err
	}

	variantIDs := make([]uuid.UUID, len(req.Items))
	for i, item := range req.Items {
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("item[%d]: %w", i, ErrInvalidQuantity)
		}
		id, err := uuid.Parse(item.VariantID)
		if err != nil {
			return nil, fmt.Errorf("item[%d]: %w", i, ErrInvalidVariantID)
		}
		variantIDs[i] = id
	}

	// --- Begin transaction ---
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	// --- Step 1: batch read variants ---
	rows, err := store.GetVariantsForOrder(ctx, uniqueIDs(variantIDs))
	if err != nil {
		return nil, fmt.Errorf("get variants: %w", err)
	}
	variants := make(map[uuid.UUID]database.GetVariantsForOrderRow, len(rows))
	for _, v := range rows {
		variants[v.ID] = v
	}

	// --- Step 2: validate existence and stock (duplicate lines summed) ---
	// Sums are int64 so repeated large lines cannot wrap past the stock check.
	lines := make([]cartLine, len(req.Items))
	requested := make(map[uuid.UUID]int64)
	firstIndex := make(map[uuid.UUID]int)
	for i, item := range req.Items {
		v, ok := variants[variantIDs[i]]
		if !ok {
			return nil, fmt.Errorf("item[%d]: %w", i, ErrVariantNotFound)
		}
		if _, seen := firstIndex[v.ID]; !seen {
			firstIndex[v.ID] = i
		}
		requested[v.ID] += int64(item.Quantity)
		lines[i] = cartLine{index: i, variant: v, quantity: item.Quantity}
	}
	for _, line := range lines {
		v := line.variant
		if requested[v.ID] > int64(v.StockQuantity) {
			return nil, &InsufficientStockError{
				Index:     firstIndex[v.ID],
				VariantID: v.ID,
				Requested: requested[v.ID],
				Available: v.StockQuantity,
			}
		}
	}

	// --- Step 3: derive money server-side ---
	subtotal := decimal.Zero
	for _, line := range lines {
		price := database.NumericToDecimal(line.variant.Price)
		subtotal = subtotal.Add(price.Mul(decimal.NewFromInt32(line.quantity)))
	}

	var coupon *database.Coupon
	discount := decimal.Zero
	if req.CouponID != "" || req.CouponCode != "" {
		c, err := s.lookupCoupon(ctx, store, req)
		if err != nil {
			return nil, err
		}
		if err := checkCoupon(c, s.now()); err != nil {
			return nil, err
		}
		coupon = &c
		discount = couponDiscount(c, subtotal)
	}

	total := pricing.TotalForMethod(pricing.PaymentInput{
		Subtotal:     subtotal,
		Shipping:     req.ShippingCost,
		Discount:     discount,
		Method:       req.PaymentMethod,
		Installments: int(req.Installments),
	})
	if req.Total.Sub(total.Total).Abs().GreaterThan(s.tolerance) {
		return nil, fmt.Errorf("%w: submitted %s, expected %s", ErrPriceMismatch, req.Total.StringFixed(2), total.Total.StringFixed(2))
	}

	initialStatus := enum.OrderStatusProcessing
	if req.HostedCheckout {
		initialStatus = enum.OrderStatusPendingPayment
	}

	couponID := pgtype.UUID{}
	if coupon != nil {
		couponID = pgtype.UUID{Bytes: coupon.ID, Valid: true}
	}

	order, err := store.CreateOrder(ctx, database.CreateOrderParams{
		CustomerEmail:   req.CustomerEmail,
		CustomerName:    req.CustomerName,
		CustomerPhone:   req.CustomerPhone,
		ShippingAddress: req.ShippingAddress,
		ShippingCost:    database.DecimalToNumeric(req.ShippingCost),
		ShippingMethod:  req.ShippingMethod,
		PaymentMethod:   req.PaymentMethod,
		Installments:    req.Installments,
		PaymentFee:      database.DecimalToNumeric(total.Fee),
		Subtotal:        database.DecimalToNumeric(subtotal),
		DiscountAmount:  database.DecimalToNumeric(discount),
		TotalPrice:      database.DecimalToNumeric(total.Total),
		CouponID:        couponID,
		Status:          initialStatus,
	})
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	// --- Step 4: items with the stored price as snapshot ---
	items := make([]OrderItemResult, 0, len(lines))
	for _, line := range lines {
		item, err := store.CreateOrderItem(ctx, database.CreateOrderItemParams{
			OrderID:         order.ID,
			ProductID:       line.variant.ProductID,
			VariantID:       line.variant.ID,
			Quantity:        line.quantity,
			PriceAtPurchase: line.variant.Price,
		})
		if err != nil {
			return nil, fmt.Errorf("item[%d]: create order item: %w", line.index, err)
		}
		items = append(items, OrderItemResult{
			Item:        item,
			ProductName: line.variant.ProductName,
			Color:       line.variant.Color,
		})
	}

	// --- Step 5: conditional stock decrement ---
	for _, id := range uniqueIDs(variantIDs) {
		_, err := store.DecrementVariantStock(ctx, database.DecrementVariantStockParams{
			ID:       id,
			Quantity: int32(requested[id]), // bounded by stock above
		})
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				// A concurrent order took the stock after step 1.
				available, serr := store.GetVariantStock(ctx, id)
				if serr != nil {
					available = variants[id].StockQuantity
				}
				return nil, &InsufficientStockError{
					Index:     firstIndex[id],
					VariantID: id,
					Requested: requested[id],
					Available: available,
				}
			}
			return nil, fmt.Errorf("decrement stock: %w", err)
		}
	}

	// --- Step 6: coupon redemption ---
	if coupon != nil {
		if _, err := store.RedeemCoupon(ctx, coupon.ID); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrCouponUnavailable
			}
			return nil, fmt.Errorf("redeem coupon: %w", err)
		}
	}

	// --- Step 7: initial history row ---
	if _, err := store.CreateOrderStatusHistory(ctx, database.CreateOrderStatusHistoryParams{
		OrderID:   order.ID,
		Status:    initialStatus,
		ChangedBy: req.CustomerEmail,
	}); err != nil {
		return nil, fmt.Errorf("create status history: %w", err)
	}

	// --- Commit ---
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	s.logger.Info("order created",
		zap.String("order_id", order.ID.String()),
		zap.String("status", order.Status),
		zap.String("payment_method", order.PaymentMethod),
		zap.String("total", total.Total.StringFixed(2)),
	)
	s.publisher.PublishOrderEvent(OrderEvent{
		Type:      EventOrderCreated,
		OrderID:   order.ID,
		Status:    order.Status,
		ChangedBy: req.CustomerEmail,
		At:        order.CreatedAt,
	})

	return &CreateOrderResult{Order: order, Items: items}, nil
}

// LinkCheckoutSession stores the hosted checkout session id on an order so the
// payment webhook can find it.
func (s *OrderService) LinkCheckoutSession(ctx context.Context, orderID uuid.UUID, sessionID string) (database.Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.Order{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	order, err := s.newStore(tx).SetOrderCheckoutSession(ctx, database.SetOrderCheckoutSessionParams{
		ID:        orderID,
		SessionID: sessionID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, ErrOrderNotFound
		}
		return database.Order{}, fmt.Errorf("set checkout session: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return database.Order{}, fmt.Errorf("commit tx: %w", err)
	}
	return order, nil
}

func (s *OrderService) lookupCoupon(ctx context.Context, store OrderStore, req CreateOrderRequest) (database.Coupon, error) {
	var (
		c   database.Coupon
		err error
	)
	if req.CouponID != "" {
		id, perr := uuid.Parse(req.CouponID)
		if perr != nil {
			return database.Coupon{}, ErrInvalidCouponID
		}
		c, err = store.GetCouponByID(ctx, id)
	} else {
		c, err = store.GetCouponByCode(ctx, req.CouponCode)
	}
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Coupon{}, ErrCouponNotFound
		}
		return database.Coupon{}, fmt.Errorf("get coupon: %w", err)
	}
	return c, nil
}

// --- Helpers ---

// plainText strips markup from customer-supplied text before it is stored
// and later rendered in emails and the admin panel.
var plainText = bluemonday.StrictPolicy()

func stripMarkup(s string) string {
	return strings.TrimSpace(html.UnescapeString(plainText.Sanitize(s)))
}

func normalizeOrderRequest(req CreateOrderRequest) (CreateOrderRequest, error) {
	req.CustomerEmail = strings.ToLower(strings.TrimSpace(req.CustomerEmail))
	req.CustomerName = stripMarkup(req.CustomerName)
	req.CustomerPhone = strings.TrimSpace(req.CustomerPhone)
	req.CouponCode = strings.TrimSpace(req.CouponCode)
	req.CouponID = strings.TrimSpace(req.CouponID)

	if len(req.Items) == 0 {
		return req, ErrEmptyItems
	}
	if req.CustomerEmail == "" || req.CustomerName == "" || req.CustomerPhone == "" {
		return req, ErrMissingCustomer
	}
	if req.ShippingMethod != enum.ShippingMethodPickup && req.ShippingMethod != enum.ShippingMethodDelivery {
		return req, ErrInvalidShippingMethod
	}
	if !enum.IsPaymentMethod(req.PaymentMethod) {
		return req, ErrInvalidPaymentMethod
	}
	if req.HostedCheckout && !enum.IsCardPaymentMethod(req.PaymentMethod) {
		return req, ErrHostedCheckoutMethod
	}

	switch req.PaymentMethod {
	case enum.PaymentMethodCardInstallments:
		if req.Installments < 1 || req.Installments > pricing.MaxInstallments {
			return req, ErrInvalidInstallments
		}
	default:
		req.Installments = 1
	}

	if req.ShippingCost.IsNegative() {
		return req, ErrInvalidShippingCost
	}
	if req.ShippingMethod == enum.ShippingMethodPickup {
		req.ShippingCost = decimal.Zero
	}

	if len(req.ShippingAddress) == 0 || string(req.ShippingAddress) == "null" {
		if req.ShippingMethod == enum.ShippingMethodDelivery {
			return req, ErrShippingAddressMissing
		}
		req.ShippingAddress = json.RawMessage("{}")
	}
	var addr map[string]any
	if err := json.Unmarshal(req.ShippingAddress, &addr); err != nil {
		return req, ErrInvalidShippingAddress
	}
	if req.ShippingMethod == enum.ShippingMethodDelivery && len(addr) == 0 {
		return req, ErrShippingAddressMissing
	}
	for k, v := range addr {
		if str, ok := v.(string); ok {
			addr[k] = stripMarkup(str)
		}
	}
	cleaned, err := json.Marshal(addr)
	if err != nil {
		return req, ErrInvalidShippingAddress
	}
	req.ShippingAddress = cleaned
	return req, nil
}

func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
