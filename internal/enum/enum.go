package enum

// ── Group A: State machines (CHECK constrained in DB) ──

const (
	OrderStatusPendingPayment = "pending_payment"
	OrderStatusPaid           = "paid"
	OrderStatusProcessing     = "processing"
	OrderStatusShipped        = "shipped"
	OrderStatusAwaitingPickup = "aguardando_retirada"
	OrderStatusDelivered      = "delivered"
	OrderStatusCancelled      = "cancelled"
	OrderStatusRefunded       = "refunded"
)

// OrderStatuses lists every order status in lifecycle order.
var OrderStatuses = []string{
	OrderStatusPendingPayment,
	OrderStatusPaid,
	OrderStatusProcessing,
	OrderStatusShipped,
	OrderStatusAwaitingPickup,
	OrderStatusDelivered,
	OrderStatusCancelled,
	OrderStatusRefunded,
}

// IsOrderStatus reports whether s is a known order status.
func IsOrderStatus(s string) bool {
	for _, st := range OrderStatuses {
		if st == s {
			return true
		}
	}
	return false
}

// ── Group C: Borderline (CHECK constrained in DB) ──

const (
	PaymentMethodPix              = "pix"
	PaymentMethodDebit            = "debit"
	PaymentMethodCard             = "card"
	PaymentMethodCardInstallments = "card_installments"
	PaymentMethodCash             = "cash"
	PaymentMethodBoleto           = "boleto"
)

// IsPaymentMethod reports whether s is a known payment method.
func IsPaymentMethod(s string) bool {
	switch s {
	case PaymentMethodPix, PaymentMethodDebit, PaymentMethodCard,
		PaymentMethodCardInstallments, PaymentMethodCash, PaymentMethodBoleto:
		return true
	}
	return false
}

// IsCardPaymentMethod reports whether the method is paid through the hosted card checkout.
func IsCardPaymentMethod(s string) bool {
	return s == PaymentMethodCard || s == PaymentMethodCardInstallments
}

const (
	ShippingMethodPickup   = "pickup"
	ShippingMethodDelivery = "delivery"
)

const (
	CouponTypePercentage  = "percentage"
	CouponTypeFixedAmount = "fixed_amount"
)

// ── Group B: Configurable labels (no DB constraint) ──

// Actors recorded in order_status_history.changed_by besides the customer email.
const (
	ChangedByAdmin         = "admin"
	ChangedByStripeWebhook = "stripe_webhook"
	ChangedBySystem        = "system"
)
