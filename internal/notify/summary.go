package notify

import (
	"encoding/json"
	"strings"

	"github.com/HaruCodeTI/manifeste/api/internal/database"
	"github.com/HaruCodeTI/manifeste/api/internal/enum"
	"github.com/shopspring/decimal"
)

// Summary is the order as shown to the customer.
type Summary struct {
	OrderID        string
	Reference      string
	CustomerName   string
	CustomerEmail  string
	CustomerPhone  string
	Status         string
	PaymentMethod  string
	Installments   int32
	ShippingMethod string
	Address        string
	TrackingCode   string
	Items          []SummaryItem

	Subtotal decimal.Decimal
	Discount decimal.Decimal
	Shipping decimal.Decimal
	Fee      decimal.Decimal
	Total    decimal.Decimal
}

// SummaryItem is one order line.
type SummaryItem struct {
	Name      string
	Color     string
	Quantity  int32
	UnitPrice decimal.Decimal
}

// LineTotal is UnitPrice times Quantity.
func (i SummaryItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt32(i.Quantity))
}

// NewSummary builds a Summary from stored rows.
func NewSummary(order database.Order, items []database.ListOrderItemsByOrderRow) Summary {
	s := Summary{
		OrderID:        order.ID.String(),
		Reference:      strings.ToUpper(shortID(order.ID.String())),
		CustomerName:   order.CustomerName,
		CustomerEmail:  order.CustomerEmail,
		CustomerPhone:  order.CustomerPhone,
		Status:         order.Status,
		PaymentMethod:  order.PaymentMethod,
		Installments:   order.Installments,
		ShippingMethod: order.ShippingMethod,
		Subtotal:       database.NumericToDecimal(order.Subtotal),
		Discount:       database.NumericToDecimal(order.DiscountAmount),
		Shipping:       database.NumericToDecimal(order.ShippingCost),
		Fee:            database.NumericToDecimal(order.PaymentFee),
		Total:          database.NumericToDecimal(order.TotalPrice),
	}
	if order.TrackingCode.Valid {
		s.TrackingCode = order.TrackingCode.String
	}
	if order.ShippingMethod == enum.ShippingMethodDelivery {
		s.Address = formatAddress(order.ShippingAddress)
	}
	for _, it := range items {
		s.Items = append(s.Items, SummaryItem{
			Name:      it.ProductName,
			Color:     it.Color,
			Quantity:  it.Quantity,
			UnitPrice: database.NumericToDecimal(it.PriceAtPurchase),
		})
	}
	return s
}

// addressFields lists the address keys in the order they are printed.
var addressFields = []string{"street", "number", "complement", "neighborhood", "city", "state", "zip"}

func formatAddress(raw []byte) string {
	var addr map[string]any
	if err := json.Unmarshal(raw, &addr); err != nil {
		return ""
	}
	var parts []string
	for _, key := range addressFields {
		v, ok := addr[key]
		if !ok {
			continue
		}
		var s string
		switch t := v.(type) {
		case string:
			s = strings.TrimSpace(t)
		case float64:
			s = decimal.NewFromFloat(t).String()
		}
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ", ")
}
