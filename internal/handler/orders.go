package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/HaruCodeTI/manifeste/api/internal/database"
	"github.com/HaruCodeTI/manifeste/api/internal/enum"
	"github.com/HaruCodeTI/manifeste/api/internal/payment"
	"github.com/HaruCodeTI/manifeste/api/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// OrderServicer defines the service methods needed by order handlers.
// Satisfied by *service.OrderService; narrow interface for testability.
type OrderServicer interface {
	CreateOrder(ctx context.Context, req service.CreateOrderRequest) (*service.CreateOrderResult, error)
	LinkCheckoutSession(ctx context.Context, orderID uuid.UUID, sessionID string) (database.Order, error)
}

// OrderTransitioner cancels an order whose hosted checkout could not be opened.
// Satisfied by *service.StatusService.
type OrderTransitioner interface {
	Transition(ctx context.Context, req service.TransitionRequest) (*service.TransitionResult, error)
}

// CheckoutProvider opens hosted checkout sessions.
// Satisfied by *payment.StripeProvider.
type CheckoutProvider interface {
	CreateCheckoutSession(ctx context.Context, req payment.CheckoutRequest) (payment.CheckoutSession, error)
}

// OrderReadStore defines the database reads behind the customer tracking routes.
// Satisfied by *database.Queries; narrow interface for testability.
type OrderReadStore interface {
	GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
	GetOrderBySessionID(ctx context.Context, sessionID string) (database.Order, error)
	ListOrdersByCustomer(ctx context.Context, arg database.ListOrdersByCustomerParams) ([]database.Order, error)
	ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.ListOrderItemsByOrderRow, error)
	ListOrderStatusHistory(ctx context.Context, orderID uuid.UUID) ([]database.OrderStatusHistory, error)
}

// OrderHandler handles the storefront order endpoints.
type OrderHandler struct {
	svc      OrderServicer
	status   OrderTransitioner
	checkout CheckoutProvider
	store    OrderReadStore
	logger   *zap.Logger
}

// NewOrderHandler creates a new OrderHandler. checkout may be nil, in which
// case card payments through /checkout are refused.
func NewOrderHandler(svc OrderServicer, status OrderTransitioner, checkout CheckoutProvider, store OrderReadStore, logger *zap.Logger) *OrderHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderHandler{svc: svc, status: status, checkout: checkout, store: store, logger: logger}
}

// RegisterRoutes registers the public order endpoints on the given Chi router.
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Post("/orders", h.Create)
	r.Post("/checkout", h.Checkout)
	r.Get("/orders/track", h.Track)
	r.Get("/orders/get-by-session", h.GetBySession)
}

// --- Request / Response types ---

type createOrderRequest struct {
	Items          []createOrderItemRequest `json:"items"`
	CustomerInfo   customerInfo             `json:"customerInfo"`
	ShippingInfo   json.RawMessage          `json:"shippingInfo"`
	ShippingCost   decimal.Decimal          `json:"shippingCost"`
	ShippingMethod string                   `json:"shippingMethod"`
	PaymentMethod  string                   `json:"paymentMethod"`
	Installments   int32                    `json:"installments"`
	Total          decimal.Decimal          `json:"total"`
	Coupon         *couponRef               `json:"coupon"`
}

// createOrderItemRequest carries no price: the server prices every line.
type createOrderItemRequest struct {
	VariantID string `json:"variant_id"`
	Quantity  int32  `json:"quantity"`
}

type customerInfo struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type couponRef struct {
	ID   string `json:"id"`
	Code string `json:"code"`
}

type createOrderResponse struct {
	OrderID    uuid.UUID `json:"orderId"`
	Status     string    `json:"status"`
	Subtotal   string    `json:"subtotal"`
	Discount   string    `json:"discount_amount"`
	PaymentFee string    `json:"payment_fee"`
	TotalPrice string    `json:"total_price"`
	// URL is the hosted checkout page for card payments.
	URL string `json:"url,omitempty"`
}

type orderSummaryResponse struct {
	ID             uuid.UUID `json:"id"`
	Status         string    `json:"status"`
	TotalPrice     string    `json:"total_price"`
	PaymentMethod  string    `json:"payment_method"`
	ShippingMethod string    `json:"shipping_method"`
	TrackingCode   *string   `json:"tracking_code"`
	CreatedAt      time.Time `json:"created_at"`
}

type trackDetailResponse struct {
	Order   orderResponse       `json:"order"`
	History []historyResponse   `json:"history"`
	Items   []orderItemResponse `json:"items"`
}

func (req createOrderRequest) toService(hosted bool) service.CreateOrderRequest {
	items := make([]service.CreateOrderItemRequest, len(req.Items))
	for i, it := range req.Items {
		items[i] = service.CreateOrderItemRequest{VariantID: it.VariantID, Quantity: it.Quantity}
	}
	out := service.CreateOrderRequest{
		CustomerEmail:   req.CustomerInfo.Email,
		CustomerName:    req.CustomerInfo.Name,
		CustomerPhone:   req.CustomerInfo.Phone,
		ShippingAddress: req.ShippingInfo,
		ShippingCost:    req.ShippingCost,
		ShippingMethod:  req.ShippingMethod,
		PaymentMethod:   req.PaymentMethod,
		Installments:    req.Installments,
		Total:           req.Total,
		HostedCheckout:  hosted,
		Items:           items,
	}
	if req.Coupon != nil {
		out.CouponID = req.Coupon.ID
		out.CouponCode = req.Coupon.Code
	}
	return out
}

func toCreateOrderResponse(o database.Order) createOrderResponse {
	return createOrderResponse{
		OrderID:    o.ID,
		Status:     o.Status,
		Subtotal:   database.NumericToString(o.Subtotal),
		Discount:   database.NumericToString(o.DiscountAmount),
		PaymentFee: database.NumericToString(o.PaymentFee),
		TotalPrice: database.NumericToString(o.TotalPrice),
	}
}

// --- Handlers ---

// Create handles POST /orders. Payment is settled outside the hosted
// checkout, so the order starts in processing.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}

	result, ok := h.createOrder(w, r, req.toService(false))
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toCreateOrderResponse(result.Order))
}

// Checkout handles POST /checkout. Card payments create a pending order and a
// hosted checkout session whose URL is returned; other methods behave like
// POST /orders.
func (h *OrderHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}

	hosted := enum.IsCardPaymentMethod(req.PaymentMethod)
	if hosted && h.checkout == nil {
		h.logger.Error("card checkout requested without a payment provider")
		writeError(w, http.StatusInternalServerError, "pagamento com cartão indisponível")
		return
	}

	result, ok := h.createOrder(w, r, req.toService(hosted))
	if !ok {
		return
	}
	resp := toCreateOrderResponse(result.Order)
	if !hosted {
		writeJSON(w, http.StatusOK, resp)
		return
	}

	order := result.Order
	session, err := h.checkout.CreateCheckoutSession(r.Context(), payment.CheckoutRequest{
		OrderID:       order.ID.String(),
		CustomerEmail: order.CustomerEmail,
		Description:   checkoutDescription(result.Items),
		Total:         database.NumericToDecimal(order.TotalPrice),
	})
	if err != nil {
		h.logger.Error("create checkout session", zap.String("order_id", order.ID.String()), zap.Error(err))
		h.cancelUnpaid(r.Context(), order.ID)
		writeError(w, http.StatusInternalServerError, "não foi possível iniciar o pagamento")
		return
	}

	if _, err := h.svc.LinkCheckoutSession(r.Context(), order.ID, session.ID); err != nil {
		h.logger.Error("link checkout session",
			zap.String("order_id", order.ID.String()),
			zap.String("session_id", session.ID),
			zap.Error(err),
		)
		h.cancelUnpaid(r.Context(), order.ID)
		writeError(w, http.StatusInternalServerError, "não foi possível iniciar o pagamento")
		return
	}

	resp.URL = session.URL
	writeJSON(w, http.StatusOK, resp)
}

func (h *OrderHandler) createOrder(w http.ResponseWriter, r *http.Request, req service.CreateOrderRequest) (*service.CreateOrderResult, bool) {
	result, err := h.svc.CreateOrder(r.Context(), req)
	if err != nil {
		if msg, ok := orderValidationMessage(err); ok {
			h.logger.Info("order rejected", zap.Error(err))
			writeError(w, http.StatusBadRequest, msg)
			return nil, false
		}
		writeInternal(w, h.logger, "create order", err)
		return nil, false
	}
	return result, true
}

// cancelUnpaid releases the stock of an order that never reached the payment page.
func (h *OrderHandler) cancelUnpaid(ctx context.Context, orderID uuid.UUID) {
	if h.status == nil {
		return
	}
	_, err := h.status.Transition(ctx, service.TransitionRequest{
		OrderID:        orderID,
		Status:         enum.OrderStatusCancelled,
		ExpectedStatus: enum.OrderStatusPendingPayment,
		ChangedBy:      enum.ChangedBySystem,
	})
	if err != nil {
		h.logger.Error("cancel unpaid order", zap.String("order_id", orderID.String()), zap.Error(err))
	}
}

func checkoutDescription(items []service.OrderItemResult) string {
	parts := make([]string, 0, len(items))
	for _, it := range items {
		name := it.ProductName
		if it.Color != "" {
			name += " (" + it.Color + ")"
		}
		parts = append(parts, fmt.Sprintf("%dx %s", it.Item.Quantity, name))
	}
	return truncateRunes(strings.Join(parts, ", "), maxCheckoutDescription)
}

// maxCheckoutDescription is a byte limit for the payment line item name.
const maxCheckoutDescription = 500

// truncateRunes shortens s to at most max bytes, ending with "..." and never
// splitting a multi-byte rune.
func truncateRunes(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max - len("...")
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

// Track handles GET /orders/track?email=...&phone=...[&order=...].
// Without order it lists the customer's orders; with it, returns the order
// with its items and status history. An order owned by someone else is
// reported as not found.
func (h *OrderHandler) Track(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	email := strings.TrimSpace(q.Get("email"))
	phone := digits(q.Get("phone"))
	if email == "" || phone == "" {
		writeError(w, http.StatusBadRequest, "email e telefone são obrigatórios")
		return
	}

	orderParam := strings.TrimSpace(q.Get("order"))
	if orderParam == "" {
		h.trackList(w, r, email, phone)
		return
	}

	orderID, err := uuid.Parse(orderParam)
	if err != nil {
		writeError(w, http.StatusNotFound, msgNotFound)
		return
	}

	order, err := h.store.GetOrder(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, msgNotFound)
			return
		}
		writeInternal(w, h.logger, "track: get order", err)
		return
	}
	if !strings.EqualFold(order.CustomerEmail, email) || digits(order.CustomerPhone) != phone {
		writeError(w, http.StatusNotFound, msgNotFound)
		return
	}

	items, err := h.store.ListOrderItemsByOrder(r.Context(), orderID)
	if err != nil {
		writeInternal(w, h.logger, "track: list order items", err)
		return
	}
	history, err := h.store.ListOrderStatusHistory(r.Context(), orderID)
	if err != nil {
		writeInternal(w, h.logger, "track: list status history", err)
		return
	}

	writeJSON(w, http.StatusOK, trackDetailResponse{
		Order:   toOrderResponse(order),
		History: toHistoryResponses(history),
		Items:   toOrderItemResponses(items),
	})
}

func (h *OrderHandler) trackList(w http.ResponseWriter, r *http.Request, email, phone string) {
	orders, err := h.store.ListOrdersByCustomer(r.Context(), database.ListOrdersByCustomerParams{
		Email: email,
		Phone: phone,
	})
	if err != nil {
		writeInternal(w, h.logger, "track: list orders", err)
		return
	}

	resp := make([]orderSummaryResponse, len(orders))
	for i, o := range orders {
		resp[i] = orderSummaryResponse{
			ID:             o.ID,
			Status:         o.Status,
			TotalPrice:     database.NumericToString(o.TotalPrice),
			PaymentMethod:  o.PaymentMethod,
			ShippingMethod: o.ShippingMethod,
			CreatedAt:      o.CreatedAt,
		}
		if o.TrackingCode.Valid {
			code := o.TrackingCode.String
			resp[i].TrackingCode = &code
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"orders": resp})
}

// GetBySession handles GET /orders/get-by-session?session_id=...
// The checkout success page uses it to find the order it just paid.
func (h *OrderHandler) GetBySession(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(r.URL.Query().Get("session_id"))
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "session_id é obrigatório")
		return
	}

	order, err := h.store.GetOrderBySessionID(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, msgNotFound)
			return
		}
		writeInternal(w, h.logger, "get order by session", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"orderId": order.ID,
		"status":  order.Status,
	})
}
