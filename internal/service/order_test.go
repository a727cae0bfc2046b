package service

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/HaruCodeTI/manifeste/api/internal/database"
	"github.com/HaruCodeTI/manifeste/api/internal/enum"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newTestOrderService(db *memDB) (*OrderService, *recordingPublisher) {
	pub := &recordingPublisher{}
	svc := NewOrderService(db, newMemOrderStore, dec("0.05"), pub, nil)
	svc.now = func() time.Time { return db.now }
	return svc, pub
}

// baseRequest is the reference cart: 2 x 100.00, shipping 20.00, PIX.
func baseRequest(variantID uuid.UUID) CreateOrderRequest {
	return CreateOrderRequest{
		CustomerEmail:   " Ana@Example.com ",
		CustomerName:    "Ana Souza",
		CustomerPhone:   "(11) 98888-7777",
		ShippingAddress: json.RawMessage(`{"street":"Rua A, 10","city":"São Paulo","zip":"01000-000"}`),
		ShippingCost:    dec("20"),
		ShippingMethod:  enum.ShippingMethodDelivery,
		PaymentMethod:   enum.PaymentMethodPix,
		Total:           dec("220"),
		Items: []CreateOrderItemRequest{
			{VariantID: variantID.String(), Quantity: 2},
		},
	}
}

func TestCreateOrder_PixScenario(t *testing.T) {
	db := newMemDB()
	vid := db.addVariant("Vestido Midi", "preto", "100.00", 10)
	svc, pub := newTestOrderService(db)

	result, err := svc.CreateOrder(context.Background(), baseRequest(vid))
	require.NoError(t, err)

	o := result.Order
	assert.Equal(t, "200.00", database.NumericToString(o.Subtotal))
	assert.Equal(t, "0.00", database.NumericToString(o.DiscountAmount))
	assert.Equal(t, "220.00", database.NumericToString(o.TotalPrice))
	assert.Equal(t, "0.00", database.NumericToString(o.PaymentFee))
	assert.Equal(t, enum.OrderStatusProcessing, o.Status)
	assert.Equal(t, "ana@example.com", o.CustomerEmail)
	assert.Equal(t, int32(1), o.Installments)

	require.Len(t, result.Items, 1)
	assert.Equal(t, "Vestido Midi", result.Items[0].ProductName)
	assert.Equal(t, "preto", result.Items[0].Color)
	assert.Equal(t, "100.00", database.NumericToString(result.Items[0].Item.PriceAtPurchase))

	state := db.snapshot()
	assert.Equal(t, int32(8), state.stock(vid))

	history := state.historyFor(o.ID)
	require.Len(t, history, 1)
	assert.Equal(t, o.Status, history[0].Status)
	assert.Equal(t, "ana@example.com", history[0].ChangedBy)

	events := pub.all()
	require.Len(t, events, 1)
	assert.Equal(t, EventOrderCreated, events[0].Type)
	assert.Equal(t, o.ID, events[0].OrderID)
}

func TestCreateOrder_HostedCardStartsPendingPayment(t *testing.T) {
	db := newMemDB()
	vid := db.addVariant("Vestido Midi", "preto", "100.00", 10)
	svc, _ := newTestOrderService(db)

	req := baseRequest(vid)
	req.PaymentMethod = enum.PaymentMethodCard
	req.HostedCheckout = true
	req.Total = dec("226.93") // 220 * 1.0315

	result, err := svc.CreateOrder(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, enum.OrderStatusPendingPayment, result.Order.Status)
	assert.Equal(t, "226.93", database.NumericToString(result.Order.TotalPrice))
	assert.Equal(t, "6.93", database.NumericToString(result.Order.PaymentFee))

	history := db.snapshot().historyFor(result.Order.ID)
	require.Len(t, history, 1)
	assert.Equal(t, enum.OrderStatusPendingPayment, history[0].Status)
}

func TestCreateOrder_CardInstallments(t *testing.T) {
	db := newMemDB()
	vid := db.addVariant("Vestido Midi", "preto", "100.00", 10)
	svc, _ := newTestOrderService(db)

	req := baseRequest(vid)
	req.PaymentMethod = enum.PaymentMethodCardInstallments
	req.Installments = 12
	req.Total = dec("247.28") // 220 * 1.124

	result, err := svc.CreateOrder(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, int32(12), result.Order.Installments)
	assert.Equal(t, "27.28", database.NumericToString(result.Order.PaymentFee))
	// Not hosted: the card was charged in person.
	assert.Equal(t, enum.OrderStatusProcessing, result.Order.Status)
}

func TestCreateOrder_InsufficientStockLeavesStockUntouched(t *testing.T) {
	db := newMemDB()
	vid := db.addVariant("Vestido Midi", "preto", "100.00", 5)
	svc, pub := newTestOrderService(db)

	req := baseRequest(vid)
	req.Items[0].Quantity = 6
	req.Total = dec("620")

	_, err := svc.CreateOrder(context.Background(), req)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInsufficientStock))

	var stockErr *InsufficientStockError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, 0, stockErr.Index)
	assert.Equal(t, vid, stockErr.VariantID)
	assert.Equal(t, int64(6), stockErr.Requested)
	assert.Equal(t, int32(5), stockErr.Available)

	state := db.snapshot()
	assert.Equal(t, int32(5), state.stock(vid))
	assert.Empty(t, state.orders)
	assert.Empty(t, state.history)
	assert.Empty(t, pub.all())
}

func TestCreateOrder_DrainingStockRejectsNextOrder(t *testing.T) {
	db := newMemDB()
	vid := db.addVariant("Vestido Midi", "preto", "100.00", 5)
	svc, _ := newTestOrderService(db)

	req := baseRequest(vid)
	req.Items[0].Quantity = 5
	req.Total = dec("520")
	_, err := svc.CreateOrder(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, int32(0), db.snapshot().stock(vid))

	req.Items[0].Quantity = 1
	req.Total = dec("120")
	_, err = svc.CreateOrder(context.Background(), req)
	assert.True(t, errors.Is(err, ErrInsufficientStock))
	assert.Equal(t, int32(0), db.snapshot().stock(vid))
	assert.Len(t, db.snapshot().orders, 1)
}

func TestCreateOrder_DuplicateLinesAreSummed(t *testing.T) {
	db := newMemDB()
	vid := db.addVariant("Vestido Midi", "preto", "100.00", 5)
	other := db.addVariant("Blusa", "azul", "50.00", 5)
	svc, _ := newTestOrderService(db)

	req := baseRequest(vid)
	req.Items = []CreateOrderItemRequest{
		{VariantID: other.String(), Quantity: 1},
		{VariantID: vid.String(), Quantity: 3},
		{VariantID: vid.String(), Quantity: 3},
	}
	req.Total = dec("670")

	_, err := svc.CreateOrder(context.Background(), req)
	var stockErr *InsufficientStockError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, 1, stockErr.Index)
	assert.Equal(t, int64(6), stockErr.Requested)
	assert.Equal(t, int32(5), db.snapshot().stock(vid))
	assert.Equal(t, int32(5), db.snapshot().stock(other))
}

func TestCreateOrder_HugeDuplicateLinesDoNotWrapStockCheck(t *testing.T) {
	db := newMemDB()
	vid := db.addVariant("Meia", "branca", "0.01", 1)
	svc, pub := newTestOrderService(db)

	req := baseRequest(vid)
	req.Items = []CreateOrderItemRequest{
		{VariantID: vid.String(), Quantity: math.MaxInt32},
		{VariantID: vid.String(), Quantity: math.MaxInt32},
		{VariantID: vid.String(), Quantity: 3},
	}
	// 4294967297 x 0.01 + 20 shipping
	req.Total = dec("42949692.97")

	_, err := svc.CreateOrder(context.Background(), req)
	var stockErr *InsufficientStockError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, int64(2*math.MaxInt32+3), stockErr.Requested)
	assert.Equal(t, int32(1), stockErr.Available)

	state := db.snapshot()
	assert.Equal(t, int32(1), state.stock(vid))
	assert.Empty(t, state.orders)
	assert.Empty(t, state.items)
	assert.Empty(t, pub.all())
}

func TestCreateOrder_StockTakenAfterReadReportsCurrentStock(t *testing.T) {
	db := newMemDB()
	vid := db.addVariant("Vestido Midi", "preto", "100.00", 5)
	db.beforeDecrement = func(s *memState, id uuid.UUID) {
		v := s.variants[id]
		v.StockQuantity = 1
		s.variants[id] = v
	}
	svc, pub := newTestOrderService(db)

	_, err := svc.CreateOrder(context.Background(), baseRequest(vid))
	var stockErr *InsufficientStockError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, int64(2), stockErr.Requested)
	assert.Equal(t, int32(1), stockErr.Available)

	state := db.snapshot()
	assert.Equal(t, int32(5), state.stock(vid))
	assert.Empty(t, state.orders)
	assert.Empty(t, pub.all())
}

func TestCreateOrder_ConcurrentCheckoutsNeverOversell(t *testing.T) {
	db := newMemDB()
	vid := db.addVariant("Vestido Midi", "preto", "100.00", 5)
	svc, _ := newTestOrderService(db)

	req := baseRequest(vid)
	req.Items[0].Quantity = 1
	req.Total = dec("120")

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.CreateOrder(context.Background(), req); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			} else if !errors.Is(err, ErrInsufficientStock) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, succeeded)
	assert.Equal(t, int32(0), db.snapshot().stock(vid))
}

func TestCreateOrder_PriceComesFromStoreNotClient(t *testing.T) {
	db := newMemDB()
	vid := db.addVariant("Vestido Midi", "preto", "100.00", 10)
	svc, _ := newTestOrderService(db)

	// Client believes the dress costs 10.00.
	req := baseRequest(vid)
	req.Total = dec("40")

	_, err := svc.CreateOrder(context.Background(), req)
	assert.True(t, errors.Is(err, ErrPriceMismatch))
	assert.Equal(t, int32(10), db.snapshot().stock(vid))
	assert.Empty(t, db.snapshot().orders)
}

func TestCreateOrder_TotalWithinTolerance(t *testing.T) {
	db := newMemDB()
	vid := db.addVariant("Vestido Midi", "preto", "100.00", 10)
	svc, _ := newTestOrderService(db)

	req := baseRequest(vid)
	req.Total = dec("220.04")

	result, err := svc.CreateOrder(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "220.00", database.NumericToString(result.Order.TotalPrice))

	req.Total = dec("220.06")
	_, err = svc.CreateOrder(context.Background(), req)
	assert.True(t, errors.Is(err, ErrPriceMismatch))
}

func TestCreateOrder_PercentageCoupon(t *testing.T) {
	db := newMemDB()
	vid := db.addVariant("Vestido Midi", "preto", "100.00", 10)
	coupon := db.addCoupon(database.Coupon{
		Code:       "BEMVINDO10",
		Type:       enum.CouponTypePercentage,
		Value:      database.DecimalToNumeric(dec("10")),
		UsageLimit: pgtype.Int4{Int32: 5, Valid: true},
		TimesUsed:  2,
	})
	svc, _ := newTestOrderService(db)

	req := baseRequest(vid)
	req.CouponCode = "bemvindo10"
	req.Total = dec("200") // 200 - 20 + 20

	result, err := svc.CreateOrder(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, "20.00", database.NumericToString(result.Order.DiscountAmount))
	assert.Equal(t, "200.00", database.NumericToString(result.Order.TotalPrice))
	assert.True(t, result.Order.CouponID.Valid)
	assert.Equal(t, coupon.ID, uuid.UUID(result.Order.CouponID.Bytes))
	assert.Equal(t, int32(3), db.snapshot().coupons[coupon.ID].TimesUsed)
}

func TestCreateOrder_FixedCouponByIDClampedToSubtotal(t *testing.T) {
	db := newMemDB()
	vid := db.addVariant("Meia", "branca", "15.00", 10)
	coupon := db.addCoupon(database.Coupon{
		Code:  "VALE50",
		Type:  enum.CouponTypeFixedAmount,
		Value: database.DecimalToNumeric(dec("50")),
	})
	svc, _ := newTestOrderService(db)

	req := baseRequest(vid)
	req.CouponID = coupon.ID.String()
	req.Total = dec("20") // subtotal 30, discount clamped to 30, shipping 20

	result, err := svc.CreateOrder(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "30.00", database.NumericToString(result.Order.DiscountAmount))
	assert.Equal(t, "20.00", database.NumericToString(result.Order.TotalPrice))
}

func TestCreateOrder_CouponRejected(t *testing.T) {
	tests := []struct {
		name   string
		coupon database.Coupon
		want   error
	}{
		{
			name: "limit reached",
			coupon: database.Coupon{
				Code: "ONCE", Type: enum.CouponTypeFixedAmount,
				Value:      database.DecimalToNumeric(dec("10")),
				UsageLimit: pgtype.Int4{Int32: 1, Valid: true},
				TimesUsed:  1,
			},
			want: ErrCouponLimitReached,
		},
		{
			name: "expired",
			coupon: database.Coupon{
				Code: "ONCE", Type: enum.CouponTypeFixedAmount,
				Value:     database.DecimalToNumeric(dec("10")),
				ExpiresAt: pgtype.Timestamptz{Time: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), Valid: true},
			},
			want: ErrCouponExpired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := newMemDB()
			vid := db.addVariant("Vestido Midi", "preto", "100.00", 10)
			db.addCoupon(tt.coupon)
			svc, _ := newTestOrderService(db)

			req := baseRequest(vid)
			req.CouponCode = "ONCE"
			req.Total = dec("210")

			_, err := svc.CreateOrder(context.Background(), req)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
			assert.Equal(t, int32(10), db.snapshot().stock(vid))
		})
	}
}

func TestCreateOrder_UnknownCoupon(t *testing.T) {
	db := newMemDB()
	vid := db.addVariant("Vestido Midi", "preto", "100.00", 10)
	svc, _ := newTestOrderService(db)

	req := baseRequest(vid)
	req.CouponCode = "NAOEXISTE"
	_, err := svc.CreateOrder(context.Background(), req)
	assert.True(t, errors.Is(err, ErrCouponNotFound))

	req.CouponCode = ""
	req.CouponID = "not-a-uuid"
	_, err = svc.CreateOrder(context.Background(), req)
	assert.True(t, errors.Is(err, ErrInvalidCouponID))
}

func TestCreateOrder_FailureRollsBackEverything(t *testing.T) {
	for _, method := range []string{"CreateOrderItem", "DecrementVariantStock", "RedeemCoupon", "CreateOrderStatusHistory"} {
		t.Run(method, func(t *testing.T) {
			db := newMemDB()
			vid := db.addVariant("Vestido Midi", "preto", "100.00", 10)
			coupon := db.addCoupon(database.Coupon{
				Code:  "DEZ",
				Type:  enum.CouponTypeFixedAmount,
				Value: database.DecimalToNumeric(dec("10")),
			})
			db.failOn = method
			svc, pub := newTestOrderService(db)

			req := baseRequest(vid)
			req.CouponCode = "DEZ"
			req.Total = dec("210")

			_, err := svc.CreateOrder(context.Background(), req)
			require.Error(t, err)
			assert.True(t, errors.Is(err, errBoom))

			state := db.snapshot()
			assert.Equal(t, int32(10), state.stock(vid))
			assert.Empty(t, state.orders)
			assert.Empty(t, state.items)
			assert.Empty(t, state.history)
			assert.Equal(t, int32(0), state.coupons[coupon.ID].TimesUsed)
			assert.Equal(t, 0, db.commits)
			assert.Equal(t, 1, db.rollbacks)
			assert.Empty(t, pub.all())
		})
	}
}

func TestCreateOrder_Validation(t *testing.T) {
	vid := uuid.New()
	tests := []struct {
		name   string
		mutate func(r *CreateOrderRequest)
		want   error
	}{
		{"empty items", func(r *CreateOrderRequest) { r.Items = nil }, ErrEmptyItems},
		{"missing email", func(r *CreateOrderRequest) { r.CustomerEmail = "  " }, ErrMissingCustomer},
		{"missing phone", func(r *CreateOrderRequest) { r.CustomerPhone = "" }, ErrMissingCustomer},
		{"bad shipping method", func(r *CreateOrderRequest) { r.ShippingMethod = "drone" }, ErrInvalidShippingMethod},
		{"bad payment method", func(r *CreateOrderRequest) { r.PaymentMethod = "bitcoin" }, ErrInvalidPaymentMethod},
		{"installments out of range", func(r *CreateOrderRequest) {
			r.PaymentMethod = enum.PaymentMethodCardInstallments
			r.Installments = 13
		}, ErrInvalidInstallments},
		{"hosted checkout with pix", func(r *CreateOrderRequest) { r.HostedCheckout = true }, ErrHostedCheckoutMethod},
		{"negative shipping", func(r *CreateOrderRequest) { r.ShippingCost = dec("-1") }, ErrInvalidShippingCost},
		{"delivery without address", func(r *CreateOrderRequest) { r.ShippingAddress = nil }, ErrShippingAddressMissing},
		{"address not an object", func(r *CreateOrderRequest) { r.ShippingAddress = json.RawMessage(`"Rua A"`) }, ErrInvalidShippingAddress},
		{"zero quantity", func(r *CreateOrderRequest) { r.Items[0].Quantity = 0 }, ErrInvalidQuantity},
		{"bad variant id", func(r *CreateOrderRequest) { r.Items[0].VariantID = "abc" }, ErrInvalidVariantID},
		{"unknown variant", func(r *CreateOrderRequest) {}, ErrVariantNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := newMemDB()
			svc, _ := newTestOrderService(db)
			req := baseRequest(vid)
			tt.mutate(&req)

			_, err := svc.CreateOrder(context.Background(), req)
			assert.True(t, errors.Is(err, tt.want), "got %v, want %v", err, tt.want)
			assert.Empty(t, db.snapshot().orders)
		})
	}
}

func TestCreateOrder_PickupIgnoresShippingCost(t *testing.T) {
	db := newMemDB()
	vid := db.addVariant("Vestido Midi", "preto", "100.00", 10)
	svc, _ := newTestOrderService(db)

	req := baseRequest(vid)
	req.ShippingMethod = enum.ShippingMethodPickup
	req.ShippingAddress = nil
	req.Total = dec("200")

	result, err := svc.CreateOrder(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "0.00", database.NumericToString(result.Order.ShippingCost))
	assert.JSONEq(t, `{}`, string(result.Order.ShippingAddress))
}

func TestCreateOrder_StripsMarkupFromCustomerText(t *testing.T) {
	db := newMemDB()
	vid := db.addVariant("Vestido Midi", "preto", "100.00", 10)
	svc, _ := newTestOrderService(db)

	req := baseRequest(vid)
	req.CustomerName = "<b>Ana</b> Souza"
	req.ShippingAddress = json.RawMessage(`{"street":"<i>Rua</i> A & B","number":10}`)

	result, err := svc.CreateOrder(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "Ana Souza", result.Order.CustomerName)
	assert.JSONEq(t, `{"street":"Rua A & B","number":10}`, string(result.Order.ShippingAddress))
}

func TestLinkCheckoutSession(t *testing.T) {
	db := newMemDB()
	order := db.addOrder(enum.OrderStatusPendingPayment, enum.ShippingMethodDelivery)
	svc, _ := newTestOrderService(db)

	updated, err := svc.LinkCheckoutSession(context.Background(), order.ID, "cs_test_123")
	require.NoError(t, err)
	assert.Equal(t, "cs_test_123", updated.StripeCheckoutSessionID.String)
	assert.Equal(t, "cs_test_123", db.snapshot().orders[order.ID].StripeCheckoutSessionID.String)

	_, err = svc.LinkCheckoutSession(context.Background(), uuid.New(), "cs_test_456")
	assert.True(t, errors.Is(err, ErrOrderNotFound))
}
