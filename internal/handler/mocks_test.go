package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/HaruCodeTI/manifeste/api/internal/auth"
	"github.com/HaruCodeTI/manifeste/api/internal/database"
	"github.com/HaruCodeTI/manifeste/api/internal/enum"
	"github.com/HaruCodeTI/manifeste/api/internal/payment"
	"github.com/HaruCodeTI/manifeste/api/internal/service"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// --- Mock OrderServicer ---

type mockOrderService struct {
	createFn func(ctx context.Context, req service.CreateOrderRequest) (*service.CreateOrderResult, error)
	linkFn   func(ctx context.Context, orderID uuid.UUID, sessionID string) (database.Order, error)
}

func (m *mockOrderService) CreateOrder(ctx context.Context, req service.CreateOrderRequest) (*service.CreateOrderResult, error) {
	return m.createFn(ctx, req)
}

func (m *mockOrderService) LinkCheckoutSession(ctx context.Context, orderID uuid.UUID, sessionID string) (database.Order, error) {
	if m.linkFn != nil {
		return m.linkFn(ctx, orderID, sessionID)
	}
	return database.Order{ID: orderID}, nil
}

// --- Mock StatusService ---

type mockStatusService struct {
	transitionFn    func(ctx context.Context, req service.TransitionRequest) (*service.TransitionResult, error)
	trackingFn      func(ctx context.Context, orderID uuid.UUID, code string) (database.Order, error)
	markPaidFn      func(ctx context.Context, sessionID string) (*service.TransitionResult, error)
	cancelSessionFn func(ctx context.Context, sessionID string) (*service.TransitionResult, error)
}

func (m *mockStatusService) Transition(ctx context.Context, req service.TransitionRequest) (*service.TransitionResult, error) {
	if m.transitionFn != nil {
		return m.transitionFn(ctx, req)
	}
	return nil, service.ErrOrderNotFound
}

func (m *mockStatusService) SetTrackingCode(ctx context.Context, orderID uuid.UUID, code string) (database.Order, error) {
	if m.trackingFn != nil {
		return m.trackingFn(ctx, orderID, code)
	}
	return database.Order{}, service.ErrOrderNotFound
}

func (m *mockStatusService) MarkPaidBySession(ctx context.Context, sessionID string) (*service.TransitionResult, error) {
	if m.markPaidFn != nil {
		return m.markPaidFn(ctx, sessionID)
	}
	return nil, service.ErrOrderNotFound
}

func (m *mockStatusService) CancelBySession(ctx context.Context, sessionID string) (*service.TransitionResult, error) {
	if m.cancelSessionFn != nil {
		return m.cancelSessionFn(ctx, sessionID)
	}
	return nil, service.ErrOrderNotFound
}

// --- Mock CheckoutProvider / WebhookVerifier ---

type mockPayments struct {
	createFn func(ctx context.Context, req payment.CheckoutRequest) (payment.CheckoutSession, error)
	parseFn  func(payload []byte, signature string) (payment.WebhookEvent, error)
}

func (m *mockPayments) CreateCheckoutSession(ctx context.Context, req payment.CheckoutRequest) (payment.CheckoutSession, error) {
	return m.createFn(ctx, req)
}

func (m *mockPayments) ParseWebhook(payload []byte, signature string) (payment.WebhookEvent, error) {
	return m.parseFn(payload, signature)
}

// --- Mock order store ---

type mockOrderStore struct {
	getOrderFn          func(ctx context.Context, id uuid.UUID) (database.Order, error)
	getBySessionFn      func(ctx context.Context, sessionID string) (database.Order, error)
	listOrdersFn        func(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error)
	listByCustomerFn    func(ctx context.Context, arg database.ListOrdersByCustomerParams) ([]database.Order, error)
	listItemsFn         func(ctx context.Context, orderID uuid.UUID) ([]database.ListOrderItemsByOrderRow, error)
	listStatusHistoryFn func(ctx context.Context, orderID uuid.UUID) ([]database.OrderStatusHistory, error)
}

func (m *mockOrderStore) GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error) {
	if m.getOrderFn != nil {
		return m.getOrderFn(ctx, id)
	}
	return database.Order{}, pgx.ErrNoRows
}

func (m *mockOrderStore) GetOrderBySessionID(ctx context.Context, sessionID string) (database.Order, error) {
	if m.getBySessionFn != nil {
		return m.getBySessionFn(ctx, sessionID)
	}
	return database.Order{}, pgx.ErrNoRows
}

func (m *mockOrderStore) ListOrders(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error) {
	if m.listOrdersFn != nil {
		return m.listOrdersFn(ctx, arg)
	}
	return []database.Order{}, nil
}

func (m *mockOrderStore) ListOrdersByCustomer(ctx context.Context, arg database.ListOrdersByCustomerParams) ([]database.Order, error) {
	if m.listByCustomerFn != nil {
		return m.listByCustomerFn(ctx, arg)
	}
	return []database.Order{}, nil
}

func (m *mockOrderStore) ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.ListOrderItemsByOrderRow, error) {
	if m.listItemsFn != nil {
		return m.listItemsFn(ctx, orderID)
	}
	return []database.ListOrderItemsByOrderRow{}, nil
}

func (m *mockOrderStore) ListOrderStatusHistory(ctx context.Context, orderID uuid.UUID) ([]database.OrderStatusHistory, error) {
	if m.listStatusHistoryFn != nil {
		return m.listStatusHistoryFn(ctx, orderID)
	}
	return []database.OrderStatusHistory{}, nil
}

// --- Mock session verifier ---

type mockSessions struct {
	loginFn  func(ctx context.Context, email, password string) (string, *auth.Session, error)
	logoutFn func(ctx context.Context, sessionID uuid.UUID) error
	sessions map[string]*auth.Session
}

func (m *mockSessions) Login(ctx context.Context, email, password string) (string, *auth.Session, error) {
	return m.loginFn(ctx, email, password)
}

func (m *mockSessions) Logout(ctx context.Context, sessionID uuid.UUID) error {
	if m.logoutFn != nil {
		return m.logoutFn(ctx, sessionID)
	}
	return nil
}

func (m *mockSessions) Verify(ctx context.Context, token string) (*auth.Session, error) {
	s, ok := m.sessions[token]
	if !ok {
		return nil, auth.ErrSessionInvalid
	}
	return s, nil
}

// --- Test helpers ---

func testNumeric(s string) pgtype.Numeric {
	var n pgtype.Numeric
	if err := n.Scan(s); err != nil {
		panic(err)
	}
	return n
}

func testOrder(status string) database.Order {
	now := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)
	return database.Order{
		ID:              uuid.New(),
		CustomerEmail:   "ana@example.com",
		CustomerName:    "Ana Souza",
		CustomerPhone:   "(11) 98888-7777",
		ShippingAddress: []byte(`{"city":"São Paulo","street":"Rua A"}`),
		ShippingCost:    testNumeric("20.00"),
		ShippingMethod:  enum.ShippingMethodDelivery,
		PaymentMethod:   enum.PaymentMethodPix,
		Installments:    1,
		PaymentFee:      testNumeric("0.00"),
		Subtotal:        testNumeric("200.00"),
		DiscountAmount:  testNumeric("0.00"),
		TotalPrice:      testNumeric("220.00"),
		Status:          status,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func testItems(orderID uuid.UUID) []database.ListOrderItemsByOrderRow {
	return []database.ListOrderItemsByOrderRow{{
		ID:              uuid.New(),
		OrderID:         orderID,
		ProductID:       uuid.New(),
		VariantID:       uuid.New(),
		Quantity:        2,
		PriceAtPurchase: testNumeric("100.00"),
		ProductName:     "Vestido Midi",
		Color:           "Azul",
	}}
}

func doRequest(t *testing.T, router http.Handler, method, path string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		req = httptest.NewRequest(method, path, bytes.NewReader(b))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v; body: %s", err, rr.Body.String())
	}
	return resp
}

func assertStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, want, rr.Body.String())
	}
}
