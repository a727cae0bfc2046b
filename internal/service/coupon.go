package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/HaruCodeTI/manifeste/api/internal/database"
	"github.com/HaruCodeTI/manifeste/api/internal/enum"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// Coupon errors.
var (
	ErrCouponCodeRequired = errors.New("coupon code is required")
	ErrCouponNotFound     = errors.New("coupon not found")
	ErrCouponExpired      = errors.New("coupon expired")
	ErrCouponLimitReached = errors.New("coupon usage limit reached")
	// ErrCouponUnavailable means the coupon passed validation but was used up
	// or expired before the order could redeem it.
	ErrCouponUnavailable = errors.New("coupon no longer available")
)

// CouponStore is the read needed to validate a coupon code.
type CouponStore interface {
	GetCouponByCode(ctx context.Context, code string) (database.Coupon, error)
}

// CouponService validates coupon codes for the storefront.
type CouponService struct {
	store CouponStore
	now   func() time.Time
}

// NewCouponService creates a new CouponService.
func NewCouponService(store CouponStore) *CouponService {
	return &CouponService{store: store, now: time.Now}
}

// Validate returns the coupon for code when it can still be redeemed.
func (s *CouponService) Validate(ctx context.Context, code string) (database.Coupon, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return database.Coupon{}, ErrCouponCodeRequired
	}
	c, err := s.store.GetCouponByCode(ctx, code)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Coupon{}, ErrCouponNotFound
		}
		return database.Coupon{}, fmt.Errorf("get coupon: %w", err)
	}
	if err := checkCoupon(c, s.now()); err != nil {
		return database.Coupon{}, err
	}
	return c, nil
}

// checkCoupon applies the redemption rules. The usage limit is checked first
// and independently of the expiry date.
func checkCoupon(c database.Coupon, now time.Time) error {
	if c.UsageLimit.Valid && c.TimesUsed >= c.UsageLimit.Int32 {
		return ErrCouponLimitReached
	}
	if c.ExpiresAt.Valid && !now.Before(c.ExpiresAt.Time) {
		return ErrCouponExpired
	}
	return nil
}

// couponDiscount is the amount taken off subtotal, never more than subtotal.
func couponDiscount(c database.Coupon, subtotal decimal.Decimal) decimal.Decimal {
	value := database.NumericToDecimal(c.Value)
	var discount decimal.Decimal
	switch c.Type {
	case enum.CouponTypePercentage:
		discount = subtotal.Mul(value).Div(decimal.NewFromInt(100))
	case enum.CouponTypeFixedAmount:
		discount = value
	default:
		return decimal.Zero
	}
	if discount.GreaterThan(subtotal) {
		discount = subtotal
	}
	return discount.Round(2)
}
