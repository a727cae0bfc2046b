// Package pricing computes checkout totals per payment method.
//
// Every function is pure and rounds money to two decimal places. Fee rates
// are looked up from fixed tables and never derived.
package pricing

import (
	"github.com/HaruCodeTI/manifeste/api/internal/enum"
	"github.com/shopspring/decimal"
)

// MaxInstallments is the largest installment count the card plan supports.
const MaxInstallments = 12

var (
	debitFeeRate        = decimal.RequireFromString("0.0089")
	creditInFullFeeRate = decimal.RequireFromString("0.0315")

	// installmentFeeRates is indexed by installment count. Rates increase
	// monotonically from 0 (single installment) to 12.4%.
	installmentFeeRates = map[int]decimal.Decimal{
		1:  decimal.Zero,
		2:  decimal.RequireFromString("0.0459"),
		3:  decimal.RequireFromString("0.0534"),
		4:  decimal.RequireFromString("0.0609"),
		5:  decimal.RequireFromString("0.0683"),
		6:  decimal.RequireFromString("0.0756"),
		7:  decimal.RequireFromString("0.0829"),
		8:  decimal.RequireFromString("0.0900"),
		9:  decimal.RequireFromString("0.0971"),
		10: decimal.RequireFromString("0.1041"),
		11: decimal.RequireFromString("0.1110"),
		12: decimal.RequireFromString("0.1240"),
	}

	one = decimal.NewFromInt(1)
)

func round(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

func withFee(price, rate decimal.Decimal) decimal.Decimal {
	return round(price.Mul(one.Add(rate)))
}

// Pix returns the PIX price, which is the reference price with no fee.
func Pix(price decimal.Decimal) decimal.Decimal {
	return round(price)
}

// Debit returns price plus the debit card fee.
func Debit(price decimal.Decimal) decimal.Decimal {
	return withFee(price, debitFeeRate)
}

// CreditInFull returns price plus the single-payment credit card fee.
func CreditInFull(price decimal.Decimal) decimal.Decimal {
	return withFee(price, creditInFullFeeRate)
}

// InstallmentFeeRate returns the fee rate for n installments, or zero when n
// is outside the table.
func InstallmentFeeRate(n int) decimal.Decimal {
	rate, ok := installmentFeeRates[n]
	if !ok {
		return decimal.Zero
	}
	return rate
}

// Installments is the result of splitting a credit card total.
type Installments struct {
	Count       int             `json:"count"`
	Total       decimal.Decimal `json:"total"`
	Installment decimal.Decimal `json:"installment"`
}

// CreditInstallments returns the financed total for n installments and the
// value of each installment. Both are rounded independently, so
// Installment*n may differ from Total by less than n cents.
func CreditInstallments(price decimal.Decimal, n int) Installments {
	total := withFee(price, InstallmentFeeRate(n))
	count := n
	if count < 1 {
		count = 1
	}
	return Installments{
		Count:       count,
		Total:       total,
		Installment: round(total.Div(decimal.NewFromInt(int64(count)))),
	}
}

// PaymentInput describes a cart to be totalled for a payment method.
type PaymentInput struct {
	Subtotal     decimal.Decimal
	Shipping     decimal.Decimal
	Discount     decimal.Decimal
	Method       string
	Installments int
}

// PaymentTotal is the amount charged for a payment method.
type PaymentTotal struct {
	// Base is subtotal - discount + shipping.
	Base  decimal.Decimal `json:"base"`
	Fee   decimal.Decimal `json:"fee"`
	Total decimal.Decimal `json:"total"`
}

// FeeRate returns the fee applied to the base amount for method.
// PIX, debit, cash and boleto are charged without a fee at checkout.
func FeeRate(method string, installments int) decimal.Decimal {
	switch method {
	case enum.PaymentMethodCard:
		return creditInFullFeeRate
	case enum.PaymentMethodCardInstallments:
		return InstallmentFeeRate(installments)
	}
	return decimal.Zero
}

// TotalForMethod computes the checkout total for in.Method.
func TotalForMethod(in PaymentInput) PaymentTotal {
	base := round(in.Subtotal.Sub(in.Discount).Add(in.Shipping))
	total := withFee(base, FeeRate(in.Method, in.Installments))
	return PaymentTotal{
		Base:  base,
		Fee:   total.Sub(base),
		Total: total,
	}
}

// Quote holds the totals of a cart for every payment method.
type Quote struct {
	Pix              decimal.Decimal `json:"pix"`
	Debit            decimal.Decimal `json:"debit"`
	Card             decimal.Decimal `json:"card"`
	Cash             decimal.Decimal `json:"cash"`
	Boleto           decimal.Decimal `json:"boleto"`
	CardInstallments []Installments  `json:"card_installments"`
}

// QuoteAll totals the cart for every payment method and installment count.
func QuoteAll(subtotal, shipping, discount decimal.Decimal) Quote {
	in := PaymentInput{Subtotal: subtotal, Shipping: shipping, Discount: discount}
	at := func(method string) decimal.Decimal {
		in.Method = method
		return TotalForMethod(in).Total
	}

	q := Quote{
		Pix:    at(enum.PaymentMethodPix),
		Debit:  at(enum.PaymentMethodDebit),
		Card:   at(enum.PaymentMethodCard),
		Cash:   at(enum.PaymentMethodCash),
		Boleto: at(enum.PaymentMethodBoleto),
	}
	base := TotalForMethod(PaymentInput{Subtotal: subtotal, Shipping: shipping, Discount: discount}).Base
	for n := 1; n <= MaxInstallments; n++ {
		q.CardInstallments = append(q.CardInstallments, CreditInstallments(base, n))
	}
	return q
}
