package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const orderColumns = `id, customer_email, customer_name, customer_phone, shipping_address, shipping_cost,
shipping_method, payment_method, installments, payment_fee, subtotal, discount_amount, total_price,
coupon_id, status, stripe_checkout_session_id, tracking_code, created_at, updated_at`

func scanOrder(row interface{ Scan(...any) error }) (Order, error) {
	var i Order
	err := row.Scan(
		&i.ID,
		&i.CustomerEmail,
		&i.CustomerName,
		&i.CustomerPhone,
		&i.ShippingAddress,
		&i.ShippingCost,
		&i.ShippingMethod,
		&i.PaymentMethod,
		&i.Installments,
		&i.PaymentFee,
		&i.Subtotal,
		&i.DiscountAmount,
		&i.TotalPrice,
		&i.CouponID,
		&i.Status,
		&i.StripeCheckoutSessionID,
		&i.TrackingCode,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const createOrder = `-- name: CreateOrder :one
INSERT INTO orders (
    customer_email, customer_name, customer_phone, shipping_address, shipping_cost,
    shipping_method, payment_method, installments, payment_fee, subtotal,
    discount_amount, total_price, coupon_id, status
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
RETURNING ` + orderColumns

type CreateOrderParams struct {
	CustomerEmail   string         `json:"customer_email"`
	CustomerName    string         `json:"customer_name"`
	CustomerPhone   string         `json:"customer_phone"`
	ShippingAddress []byte         `json:"shipping_address"`
	ShippingCost    pgtype.Numeric `json:"shipping_cost"`
	ShippingMethod  string         `json:"shipping_method"`
	PaymentMethod   string         `json:"payment_method"`
	Installments    int32          `json:"installments"`
	PaymentFee      pgtype.Numeric `json:"payment_fee"`
	Subtotal        pgtype.Numeric `json:"subtotal"`
	DiscountAmount  pgtype.Numeric `json:"discount_amount"`
	TotalPrice      pgtype.Numeric `json:"total_price"`
	CouponID        pgtype.UUID    `json:"coupon_id"`
	Status          string         `json:"status"`
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, createOrder,
		arg.CustomerEmail,
		arg.CustomerName,
		arg.CustomerPhone,
		arg.ShippingAddress,
		arg.ShippingCost,
		arg.ShippingMethod,
		arg.PaymentMethod,
		arg.Installments,
		arg.PaymentFee,
		arg.Subtotal,
		arg.DiscountAmount,
		arg.TotalPrice,
		arg.CouponID,
		arg.Status,
	))
}

const getOrder = `-- name: GetOrder :one
SELECT ` + orderColumns + ` FROM orders WHERE id = $1
`

func (q *Queries) GetOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrder, id))
}

const getOrderBySessionID = `-- name: GetOrderBySessionID :one
SELECT ` + orderColumns + ` FROM orders WHERE stripe_checkout_session_id = $1
`

func (q *Queries) GetOrderBySessionID(ctx context.Context, sessionID string) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrderBySessionID, sessionID))
}

const listOrders = `-- name: ListOrders :many
SELECT ` + orderColumns + ` FROM orders
WHERE ($1::text IS NULL OR status = $1::text)
ORDER BY created_at DESC
LIMIT $2 OFFSET $3
`

type ListOrdersParams struct {
	Status pgtype.Text `json:"status"`
	Limit  int32       `json:"limit"`
	Offset int32       `json:"offset"`
}

func (q *Queries) ListOrders(ctx context.Context, arg ListOrdersParams) ([]Order, error) {
	rows, err := q.db.Query(ctx, listOrders, arg.Status, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Order
	for rows.Next() {
		i, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listOrdersByCustomer = `-- name: ListOrdersByCustomer :many
SELECT ` + orderColumns + ` FROM orders
WHERE lower(customer_email) = lower($1)
  AND regexp_replace(customer_phone, '\D', '', 'g') = $2
ORDER BY created_at DESC
`

type ListOrdersByCustomerParams struct {
	Email string `json:"email"`
	// Phone holds digits only.
	Phone string `json:"phone"`
}

func (q *Queries) ListOrdersByCustomer(ctx context.Context, arg ListOrdersByCustomerParams) ([]Order, error) {
	rows, err := q.db.Query(ctx, listOrdersByCustomer, arg.Email, arg.Phone)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Order
	for rows.Next() {
		i, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const updateOrderStatus = `-- name: UpdateOrderStatus :one
UPDATE orders
SET status = $2, updated_at = now()
WHERE id = $1 AND status = $3
RETURNING ` + orderColumns

type UpdateOrderStatusParams struct {
	ID             uuid.UUID `json:"id"`
	Status         string    `json:"status"`
	PreviousStatus string    `json:"previous_status"`
}

// UpdateOrderStatus returns pgx.ErrNoRows when the order's status is no
// longer PreviousStatus.
func (q *Queries) UpdateOrderStatus(ctx context.Context, arg UpdateOrderStatusParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, updateOrderStatus, arg.ID, arg.Status, arg.PreviousStatus))
}

const setOrderCheckoutSession = `-- name: SetOrderCheckoutSession :one
UPDATE orders
SET stripe_checkout_session_id = $2, updated_at = now()
WHERE id = $1
RETURNING ` + orderColumns

type SetOrderCheckoutSessionParams struct {
	ID        uuid.UUID `json:"id"`
	SessionID string    `json:"session_id"`
}

func (q *Queries) SetOrderCheckoutSession(ctx context.Context, arg SetOrderCheckoutSessionParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, setOrderCheckoutSession, arg.ID, arg.SessionID))
}

const setOrderTrackingCode = `-- name: SetOrderTrackingCode :one
UPDATE orders
SET tracking_code = $2, updated_at = now()
WHERE id = $1
RETURNING ` + orderColumns

type SetOrderTrackingCodeParams struct {
	ID           uuid.UUID   `json:"id"`
	TrackingCode pgtype.Text `json:"tracking_code"`
}

func (q *Queries) SetOrderTrackingCode(ctx context.Context, arg SetOrderTrackingCodeParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, setOrderTrackingCode, arg.ID, arg.TrackingCode))
}
