package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const createProduct = `-- name: CreateProduct :one
INSERT INTO products (name) VALUES ($1)
RETURNING id, name, created_at
`

func (q *Queries) CreateProduct(ctx context.Context, name string) (Product, error) {
	row := q.db.QueryRow(ctx, createProduct, name)
	var i Product
	err := row.Scan(&i.ID, &i.Name, &i.CreatedAt)
	return i, err
}

const createProductVariant = `-- name: CreateProductVariant :one
INSERT INTO product_variants (product_id, color, price, stock_quantity, image_urls)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, product_id, color, price, stock_quantity, image_urls, created_at
`

type CreateProductVariantParams struct {
	ProductID     uuid.UUID      `json:"product_id"`
	Color         string         `json:"color"`
	Price         pgtype.Numeric `json:"price"`
	StockQuantity int32          `json:"stock_quantity"`
	ImageUrls     []string       `json:"image_urls"`
}

func (q *Queries) CreateProductVariant(ctx context.Context, arg CreateProductVariantParams) (ProductVariant, error) {
	row := q.db.QueryRow(ctx, createProductVariant,
		arg.ProductID,
		arg.Color,
		arg.Price,
		arg.StockQuantity,
		arg.ImageUrls,
	)
	var i ProductVariant
	err := row.Scan(
		&i.ID,
		&i.ProductID,
		&i.Color,
		&i.Price,
		&i.StockQuantity,
		&i.ImageUrls,
		&i.CreatedAt,
	)
	return i, err
}

const getVariantsForOrder = `-- name: GetVariantsForOrder :many
SELECT v.id, v.product_id, p.name AS product_name, v.color, v.price, v.stock_quantity
FROM product_variants v
JOIN products p ON p.id = v.product_id
WHERE v.id = ANY($1::uuid[])
`

type GetVariantsForOrderRow struct {
	ID            uuid.UUID      `json:"id"`
	ProductID     uuid.UUID      `json:"product_id"`
	ProductName   string         `json:"product_name"`
	Color         string         `json:"color"`
	Price         pgtype.Numeric `json:"price"`
	StockQuantity int32          `json:"stock_quantity"`
}

func (q *Queries) GetVariantsForOrder(ctx context.Context, ids []uuid.UUID) ([]GetVariantsForOrderRow, error) {
	rows, err := q.db.Query(ctx, getVariantsForOrder, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []GetVariantsForOrderRow
	for rows.Next() {
		var i GetVariantsForOrderRow
		if err := rows.Scan(
			&i.ID,
			&i.ProductID,
			&i.ProductName,
			&i.Color,
			&i.Price,
			&i.StockQuantity,
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

const getVariantStock = `-- name: GetVariantStock :one
SELECT stock_quantity FROM product_variants WHERE id = $1
`

func (q *Queries) GetVariantStock(ctx context.Context, id uuid.UUID) (int32, error) {
	row := q.db.QueryRow(ctx, getVariantStock, id)
	var stock_quantity int32
	err := row.Scan(&stock_quantity)
	return stock_quantity, err
}

const decrementVariantStock = `-- name: DecrementVariantStock :one
UPDATE product_variants
SET stock_quantity = stock_quantity - $2
WHERE id = $1 AND stock_quantity >= $2
RETURNING stock_quantity
`

type DecrementVariantStockParams struct {
	ID       uuid.UUID `json:"id"`
	Quantity int32     `json:"quantity"`
}

// DecrementVariantStock returns pgx.ErrNoRows when the variant does not have
// enough stock, leaving the row untouched.
func (q *Queries) DecrementVariantStock(ctx context.Context, arg DecrementVariantStockParams) (int32, error) {
	row := q.db.QueryRow(ctx, decrementVariantStock, arg.ID, arg.Quantity)
	var stock_quantity int32
	err := row.Scan(&stock_quantity)
	return stock_quantity, err
}

const restockVariant = `-- name: RestockVariant :one
UPDATE product_variants
SET stock_quantity = stock_quantity + $2
WHERE id = $1
RETURNING stock_quantity
`

type RestockVariantParams struct {
	ID       uuid.UUID `json:"id"`
	Quantity int32     `json:"quantity"`
}

func (q *Queries) RestockVariant(ctx context.Context, arg RestockVariantParams) (int32, error) {
	row := q.db.QueryRow(ctx, restockVariant, arg.ID, arg.Quantity)
	var stock_quantity int32
	err := row.Scan(&stock_quantity)
	return stock_quantity, err
}
