package pricing

import "github.com/shopspring/decimal"

// DisplayPrice is the struck-through presentation shown on product pages.
// OriginalPrice is a marketing figure and must never be stored or charged.
type DisplayPrice struct {
	Price           decimal.Decimal `json:"price"`
	OriginalPrice   decimal.Decimal `json:"original_price"`
	DiscountPercent int             `json:"discount_percent"`
}

// DisplayDiscount picks a discount percent by price bracket and back-computes
// the original price, rounded to whole units.
func DisplayDiscount(price decimal.Decimal) DisplayPrice {
	percent := 15
	switch {
	case price.GreaterThanOrEqual(decimal.NewFromInt(200)):
		percent = 30
	case price.GreaterThanOrEqual(decimal.NewFromInt(100)):
		percent = 25
	case price.GreaterThanOrEqual(decimal.NewFromInt(50)):
		percent = 20
	}

	factor := one.Sub(decimal.New(int64(percent), -2))
	return DisplayPrice{
		Price:           round(price),
		OriginalPrice:   price.Div(factor).Round(0),
		DiscountPercent: percent,
	}
}
