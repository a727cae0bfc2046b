package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const createOrderItem = `-- name: CreateOrderItem :one
INSERT INTO order_items (order_id, product_id, variant_id, quantity, price_at_purchase)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, order_id, product_id, variant_id, quantity, price_at_purchase
`

type CreateOrderItemParams struct {
	OrderID         uuid.UUID      `json:"order_id"`
	ProductID       uuid.UUID      `json:"product_id"`
	VariantID       uuid.UUID      `json:"variant_id"`
	Quantity        int32          `json:"quantity"`
	PriceAtPurchase pgtype.Numeric `json:"price_at_purchase"`
}

func (q *Queries) CreateOrderItem(ctx context.Context, arg CreateOrderItemParams) (OrderItem, error) {
	row := q.db.QueryRow(ctx, createOrderItem,
		arg.OrderID,
		arg.ProductID,
		arg.VariantID,
		arg.Quantity,
		arg.PriceAtPurchase,
	)
	var i OrderItem
	err := row.Scan(
		&i.ID,
		&i.OrderID,
		&i.ProductID,
		&i.VariantID,
		&i.Quantity,
		&i.PriceAtPurchase,
	)
	return i, err
}

const listOrderItemsByOrder = `-- name: ListOrderItemsByOrder :many
SELECT oi.id, oi.order_id, oi.product_id, oi.variant_id, oi.quantity, oi.price_at_purchase,
       p.name AS product_name, v.color
FROM order_items oi
JOIN products p ON p.id = oi.product_id
JOIN product_variants v ON v.id = oi.variant_id
WHERE oi.order_id = $1
ORDER BY p.name, v.color
`

type ListOrderItemsByOrderRow struct {
	ID              uuid.UUID      `json:"id"`
	OrderID         uuid.UUID      `json:"order_id"`
	ProductID       uuid.UUID      `json:"product_id"`
	VariantID       uuid.UUID      `json:"variant_id"`
	Quantity        int32          `json:"quantity"`
	PriceAtPurchase pgtype.Numeric `json:"price_at_purchase"`
	ProductName     string         `json:"product_name"`
	Color           string         `json:"color"`
}

func (q *Queries) ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]ListOrderItemsByOrderRow, error) {
	rows, err := q.db.Query(ctx, listOrderItemsByOrder, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ListOrderItemsByOrderRow
	for rows.Next() {
		var i ListOrderItemsByOrderRow
		if err := rows.Scan(
			&i.ID,
			&i.OrderID,
			&i.ProductID,
			&i.VariantID,
			&i.Quantity,
			&i.PriceAtPurchase,
			&i.ProductName,
			&i.Color,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const createOrderStatusHistory = `-- name: CreateOrderStatusHistory :one
INSERT INTO order_status_history (order_id, status, changed_by)
VALUES ($1, $2, $3)
RETURNING id, order_id, status, changed_at, changed_by
`

type CreateOrderStatusHistoryParams struct {
	OrderID   uuid.UUID `json:"order_id"`
	Status    string    `json:"status"`
	ChangedBy string    `json:"changed_by"`
}

func (q *Queries) CreateOrderStatusHistory(ctx context.Context, arg CreateOrderStatusHistoryParams) (OrderStatusHistory, error) {
	row := q.db.QueryRow(ctx, createOrderStatusHistory, arg.OrderID, arg.Status, arg.ChangedBy)
	var i OrderStatusHistory
	err := row.Scan(
		&i.ID,
		&i.OrderID,
		&i.Status,
		&i.ChangedAt,
		&i.ChangedBy,
	)
	return i, err
}

const listOrderStatusHistory = `-- name: ListOrderStatusHistory :many
SELECT id, order_id, status, changed_at, changed_by
FROM order_status_history
WHERE order_id = $1
ORDER BY changed_at, id
`

func (q *Queries) ListOrderStatusHistory(ctx context.Context, orderID uuid.UUID) ([]OrderStatusHistory, error) {
	rows, err := q.db.Query(ctx, listOrderStatusHistory, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []OrderStatusHistory
	for rows.Next() {
		var i OrderStatusHistory
		if err := rows.Scan(
			&i.ID,
			&i.OrderID,
			&i.Status,
			&i.ChangedAt,
			&i.ChangedBy,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
