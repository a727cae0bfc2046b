package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type AdminSession struct {
	ID        uuid.UUID          `json:"id"`
	AdminID   uuid.UUID          `json:"admin_id"`
	ExpiresAt time.Time          `json:"expires_at"`
	RevokedAt pgtype.Timestamptz `json:"revoked_at"`
	CreatedAt time.Time          `json:"created_at"`
}

type AdminUser struct {
	ID             uuid.UUID `json:"id"`
	Email          string    `json:"email"`
	HashedPassword string    `json:"hashed_password"`
	CreatedAt      time.Time `json:"created_at"`
}

type Coupon struct {
	ID         uuid.UUID          `json:"id"`
	Code       string             `json:"code"`
	Type       string             `json:"type"`
	Value      pgtype.Numeric     `json:"value"`
	ExpiresAt  pgtype.Timestamptz `json:"expires_at"`
	UsageLimit pgtype.Int4        `json:"usage_limit"`
	TimesUsed  int32              `json:"times_used"`
	CreatedAt  time.Time          `json:"created_at"`
}

type Order struct {
	ID                      uuid.UUID      `json:"id"`
	CustomerEmail           string         `json:"customer_email"`
	CustomerName            string         `json:"customer_name"`
	CustomerPhone           string         `json:"customer_phone"`
	ShippingAddress         []byte         `json:"shipping_address"`
	ShippingCost            pgtype.Numeric `json:"shipping_cost"`
	ShippingMethod          string         `json:"shipping_method"`
	PaymentMethod           string         `json:"payment_method"`
	Installments            int32          `json:"installments"`
	PaymentFee              pgtype.Numeric `json:"payment_fee"`
	Subtotal                pgtype.Numeric `json:"subtotal"`
	DiscountAmount          pgtype.Numeric `json:"discount_amount"`
	TotalPrice              pgtype.Numeric `json:"total_price"`
	CouponID                pgtype.UUID    `json:"coupon_id"`
	Status                  string         `json:"status"`
	StripeCheckoutSessionID pgtype.Text    `json:"stripe_checkout_session_id"`
	TrackingCode            pgtype.Text    `json:"tracking_code"`
	CreatedAt               time.Time      `json:"created_at"`
	UpdatedAt               time.Time      `json:"updated_at"`
}

type OrderItem struct {
	ID              uuid.UUID      `json:"id"`
	OrderID         uuid.UUID      `json:"order_id"`
	ProductID       uuid.UUID      `json:"product_id"`
	VariantID       uuid.UUID      `json:"variant_id"`
	Quantity        int32          `json:"quantity"`
	PriceAtPurchase pgtype.Numeric `json:"price_at_purchase"`
}

type OrderStatusHistory struct {
	ID        uuid.UUID `json:"id"`
	OrderID   uuid.UUID `json:"order_id"`
	Status    string    `json:"status"`
	ChangedAt time.Time `json:"changed_at"`
	ChangedBy string    `json:"changed_by"`
}

type Product struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type ProductVariant struct {
	ID            uuid.UUID      `json:"id"`
	ProductID     uuid.UUID      `json:"product_id"`
	Color         string         `json:"color"`
	Price         pgtype.Numeric `json:"price"`
	StockQuantity int32          `json:"stock_quantity"`
	ImageUrls     []string       `json:"image_urls"`
	CreatedAt     time.Time      `json:"created_at"`
}
