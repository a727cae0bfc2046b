package handler

import (
	"net/http"

	"github.com/HaruCodeTI/manifeste/api/internal/enum"
	"github.com/HaruCodeTI/manifeste/api/internal/pricing"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

// PricingHandler exposes the checkout price table. It is stateless.
type PricingHandler struct{}

// NewPricingHandler creates a new PricingHandler.
func NewPricingHandler() *PricingHandler {
	return &PricingHandler{}
}

// RegisterRoutes registers pricing endpoints on the given Chi router.
func (h *PricingHandler) RegisterRoutes(r chi.Router) {
	r.Post("/pricing/quote", h.Quote)
}

type quoteRequest struct {
	Subtotal      decimal.Decimal `json:"subtotal"`
	Shipping      decimal.Decimal `json:"shipping"`
	Discount      decimal.Decimal `json:"discount"`
	PaymentMethod string          `json:"payment_method"`
	Installments  int             `json:"installments"`
}

type quoteResponse struct {
	pricing.Quote
	Selected *pricing.PaymentTotal `json:"selected,omitempty"`
}

// Quote handles POST /pricing/quote. It returns the total for every payment
// method and, when payment_method is given, the breakdown for that method.
// These figures are estimates: orders are always re-priced on creation.
func (h *PricingHandler) Quote(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}
	if req.Subtotal.IsNegative() || req.Shipping.IsNegative() || req.Discount.IsNegative() {
		writeError(w, http.StatusBadRequest, "valores não podem ser negativos")
		return
	}

	resp := quoteResponse{Quote: pricing.QuoteAll(req.Subtotal, req.Shipping, req.Discount)}

	if req.PaymentMethod != "" {
		if !enum.IsPaymentMethod(req.PaymentMethod) {
			writeError(w, http.StatusBadRequest, "forma de pagamento inválida")
			return
		}
		installments := 1
		if req.PaymentMethod == enum.PaymentMethodCardInstallments {
			if req.Installments < 1 || req.Installments > pricing.MaxInstallments {
				writeError(w, http.StatusBadRequest, "número de parcelas deve ser entre 1 e 12")
				return
			}
			installments = req.Installments
		}
		total := pricing.TotalForMethod(pricing.PaymentInput{
			Subtotal:     req.Subtotal,
			Shipping:     req.Shipping,
			Discount:     req.Discount,
			Method:       req.PaymentMethod,
			Installments: installments,
		})
		resp.Selected = &total
	}

	writeJSON(w, http.StatusOK, resp)
}
