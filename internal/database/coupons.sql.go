package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const couponColumns = `id, code, type, value, expires_at, usage_limit, times_used, created_at`

func scanCoupon(row interface{ Scan(...any) error }) (Coupon, error) {
	var i Coupon
	err := row.Scan(
		&i.ID,
		&i.Code,
		&i.Type,
		&i.Value,
		&i.ExpiresAt,
		&i.UsageLimit,
		&i.TimesUsed,
		&i.CreatedAt,
	)
	return i, err
}

const createCoupon = `-- name: CreateCoupon :one
INSERT INTO coupons (code, type, value, expires_at, usage_limit)
VALUES ($1, $2, $3, $4, $5)
RETURNING ` + couponColumns

type CreateCouponParams struct {
	Code       string             `json:"code"`
	Type       string             `json:"type"`
	Value      pgtype.Numeric     `json:"value"`
	ExpiresAt  pgtype.Timestamptz `json:"expires_at"`
	UsageLimit pgtype.Int4        `json:"usage_limit"`
}

func (q *Queries) CreateCoupon(ctx context.Context, arg CreateCouponParams) (Coupon, error) {
	return scanCoupon(q.db.QueryRow(ctx, createCoupon,
		arg.Code,
		arg.Type,
		arg.Value,
		arg.ExpiresAt,
		arg.UsageLimit,
	))
}

const getCouponByCode = `-- name: GetCouponByCode :one
SELECT ` + couponColumns + ` FROM coupons WHERE upper(code) = upper($1)
`

func (q *Queries) GetCouponByCode(ctx context.Context, code string) (Coupon, error) {
	return scanCoupon(q.db.QueryRow(ctx, getCouponByCode, code))
}

const getCouponByID = `-- name: GetCouponByID :one
SELECT ` + couponColumns + ` FROM coupons WHERE id = $1
`

func (q *Queries) GetCouponByID(ctx context.Context, id uuid.UUID) (Coupon, error) {
	return scanCoupon(q.db.QueryRow(ctx, getCouponByID, id))
}

const redeemCoupon = `-- name: RedeemCoupon :one
UPDATE coupons
SET times_used = times_used + 1
WHERE id = $1
  AND (usage_limit IS NULL OR times_used < usage_limit)
  AND (expires_at IS NULL OR expires_at > now())
RETURNING ` + couponColumns

// RedeemCoupon returns pgx.ErrNoRows when the coupon is expired or its usage
// limit has been reached.
func (q *Queries) RedeemCoupon(ctx context.Context, id uuid.UUID) (Coupon, error) {
	return scanCoupon(q.db.QueryRow(ctx, redeemCoupon, id))
}
