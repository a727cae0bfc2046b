// Package notify sends order notifications to customers (email) and builds
// WhatsApp deep links for the admin panel.
package notify

import (
	"github.com/HaruCodeTI/manifeste/api/internal/enum"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

var ptBR = message.NewPrinter(language.BrazilianPortuguese)

// FormatBRL renders d as Brazilian currency, e.g. "R$ 1.234,50".
func FormatBRL(d decimal.Decimal) string {
	return ptBR.Sprintf("R$ %v", number.Decimal(d.Round(2).InexactFloat64(), number.Scale(2)))
}

var statusLabels = map[string]string{
	enum.OrderStatusPendingPayment: "Aguardando pagamento",
	enum.OrderStatusPaid:           "Pago",
	enum.OrderStatusProcessing:     "Em preparação",
	enum.OrderStatusShipped:        "Enviado",
	enum.OrderStatusAwaitingPickup: "Aguardando retirada",
	enum.OrderStatusDelivered:      "Entregue",
	enum.OrderStatusCancelled:      "Cancelado",
	enum.OrderStatusRefunded:       "Reembolsado",
}

var paymentLabels = map[string]string{
	enum.PaymentMethodPix:              "Pix",
	enum.PaymentMethodDebit:            "Cartão de débito",
	enum.PaymentMethodCard:             "Cartão de crédito",
	enum.PaymentMethodCardInstallments: "Cartão de crédito parcelado",
	enum.PaymentMethodCash:             "Dinheiro",
	enum.PaymentMethodBoleto:           "Boleto",
}

// StatusLabel returns the customer-facing label of an order status.
func StatusLabel(status string) string {
	if l, ok := statusLabels[status]; ok {
		return l
	}
	return status
}

// PaymentLabel returns the customer-facing label of a payment method.
func PaymentLabel(method string) string {
	if l, ok := paymentLabels[method]; ok {
		return l
	}
	return method
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
