package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/HaruCodeTI/manifeste/api/internal/database"
	"github.com/HaruCodeTI/manifeste/api/internal/service"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	msgInvalidBody = "corpo da requisição inválido"
	msgBodyTooBig  = "corpo da requisição muito grande"
	msgInternal    = "erro interno do servidor"
	msgNotFound    = "pedido não encontrado"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeInternal(w http.ResponseWriter, logger *zap.Logger, op string, err error) {
	logger.Error(op, zap.Error(err))
	writeError(w, http.StatusInternalServerError, msgInternal)
}

// decodeJSON reads a JSON body of at most 1 MiB.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	return json.NewDecoder(r.Body).Decode(v)
}

// orderValidationMessages maps order creation errors to customer facing text.
var orderValidationMessages = []struct {
	err error
	msg string
}{
	{service.ErrEmptyItems, "o carrinho está vazio"},
	{service.ErrMissingCustomer, "nome, email e telefone são obrigatórios"},
	{service.ErrInvalidShippingMethod, "forma de entrega inválida"},
	{service.ErrInvalidPaymentMethod, "forma de pagamento inválida"},
	{service.ErrInvalidInstallments, "número de parcelas deve ser entre 1 e 12"},
	{service.ErrInvalidShippingCost, "valor de frete inválido"},
	{service.ErrInvalidShippingAddress, "endereço de entrega inválido"},
	{service.ErrShippingAddressMissing, "endereço de entrega é obrigatório"},
	{service.ErrHostedCheckoutMethod, "checkout online aceita apenas cartão"},
	{service.ErrInvalidQuantity, "quantidade deve ser maior que zero"},
	{service.ErrInvalidVariantID, "produto inválido"},
	{service.ErrVariantNotFound, "produto não encontrado"},
	{service.ErrPriceMismatch, "o total do pedido mudou, atualize o carrinho"},
	{service.ErrInvalidCouponID, "cupom inválido"},
	{service.ErrCouponNotFound, "cupom não encontrado"},
	{service.ErrCouponExpired, "cupom expirado"},
	{service.ErrCouponLimitReached, "cupom atingiu o limite de uso"},
	{service.ErrCouponUnavailable, "cupom indisponível"},
}

// orderValidationMessage returns the message for a client error raised while
// creating an order. ok is false for internal errors.
func orderValidationMessage(err error) (msg string, ok bool) {
	var stock *service.InsufficientStockError
	if errors.As(err, &stock) {
		return fmt.Sprintf("estoque insuficiente para o item %d: disponível %d", stock.Index+1, stock.Available), true
	}
	for _, v := range orderValidationMessages {
		if errors.Is(err, v.err) {
			return v.msg, true
		}
	}
	return "", false
}

func digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// parsePagination reads limit and offset with a default limit of 20 capped at 100.
func parsePagination(r *http.Request) (limit, offset int) {
	limit = 20
	if s := r.URL.Query().Get("limit"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			limit = v
		}
	}
	if limit > 100 {
		limit = 100
	}
	if s := r.URL.Query().Get("offset"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v >= 0 {
			offset = v
		}
	}
	return limit, offset
}

// --- Shared response types ---

type orderResponse struct {
	ID              uuid.UUID       `json:"id"`
	CustomerEmail   string          `json:"customer_email"`
	CustomerName    string          `json:"customer_name"`
	CustomerPhone   string          `json:"customer_phone"`
	ShippingAddress json.RawMessage `json:"shipping_address"`
	ShippingCost    string          `json:"shipping_cost"`
	ShippingMethod  string          `json:"shipping_method"`
	PaymentMethod   string          `json:"payment_method"`
	Installments    int32           `json:"installments"`
	PaymentFee      string          `json:"payment_fee"`
	Subtotal        string          `json:"subtotal"`
	DiscountAmount  string          `json:"discount_amount"`
	TotalPrice      string          `json:"total_price"`
	CouponID        *string         `json:"coupon_id"`
	Status          string          `json:"status"`
	TrackingCode    *string         `json:"tracking_code"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

type orderItemResponse struct {
	ID              uuid.UUID `json:"id"`
	ProductID       uuid.UUID `json:"product_id"`
	VariantID       uuid.UUID `json:"variant_id"`
	ProductName     string    `json:"product_name"`
	Color           string    `json:"color"`
	Quantity        int32     `json:"quantity"`
	PriceAtPurchase string    `json:"price_at_purchase"`
}

type historyResponse struct {
	Status    string    `json:"status"`
	ChangedAt time.Time `json:"changed_at"`
	ChangedBy string    `json:"changed_by"`
}

func toOrderResponse(o database.Order) orderResponse {
	resp := orderResponse{
		ID:              o.ID,
		CustomerEmail:   o.CustomerEmail,
		CustomerName:    o.CustomerName,
		CustomerPhone:   o.CustomerPhone,
		ShippingAddress: json.RawMessage(o.ShippingAddress),
		ShippingCost:    database.NumericToString(o.ShippingCost),
		ShippingMethod:  o.ShippingMethod,
		PaymentMethod:   o.PaymentMethod,
		Installments:    o.Installments,
		PaymentFee:      database.NumericToString(o.PaymentFee),
		Subtotal:        database.NumericToString(o.Subtotal),
		DiscountAmount:  database.NumericToString(o.DiscountAmount),
		TotalPrice:      database.NumericToString(o.TotalPrice),
		Status:          o.Status,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
	if len(o.ShippingAddress) == 0 {
		resp.ShippingAddress = json.RawMessage("null")
	}
	if o.CouponID.Valid {
		s := uuid.UUID(o.CouponID.Bytes).String()
		resp.CouponID = &s
	}
	if o.TrackingCode.Valid {
		resp.TrackingCode = &o.TrackingCode.String
	}
	return resp
}

func toOrderItemResponses(items []database.ListOrderItemsByOrderRow) []orderItemResponse {
	resp := make([]orderItemResponse, len(items))
	for i, it := range items {
		resp[i] = orderItemResponse{
			ID:              it.ID,
			ProductID:       it.ProductID,
			VariantID:       it.VariantID,
			ProductName:     it.ProductName,
			Color:           it.Color,
			Quantity:        it.Quantity,
			PriceAtPurchase: database.NumericToString(it.PriceAtPurchase),
		}
	}
	return resp
}

func toHistoryResponses(rows []database.OrderStatusHistory) []historyResponse {
	resp := make([]historyResponse, len(rows))
	for i, h := range rows {
		resp[i] = historyResponse{Status: h.Status, ChangedAt: h.ChangedAt, ChangedBy: h.ChangedBy}
	}
	return resp
}
