package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/HaruCodeTI/manifeste/api/internal/database"
	"github.com/HaruCodeTI/manifeste/api/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CouponValidator checks a coupon code. Satisfied by *service.CouponService.
type CouponValidator interface {
	Validate(ctx context.Context, code string) (database.Coupon, error)
}

// CouponHandler handles coupon endpoints.
type CouponHandler struct {
	svc    CouponValidator
	logger *zap.Logger
}

// NewCouponHandler creates a new CouponHandler.
func NewCouponHandler(svc CouponValidator, logger *zap.Logger) *CouponHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CouponHandler{svc: svc, logger: logger}
}

// RegisterRoutes registers coupon endpoints on the given Chi router.
func (h *CouponHandler) RegisterRoutes(r chi.Router) {
	r.Post("/validate-coupon", h.Validate)
}

type validateCouponRequest struct {
	Code string `json:"code"`
}

type couponResponse struct {
	ID         uuid.UUID  `json:"id"`
	Code       string     `json:"code"`
	Type       string     `json:"type"`
	Value      string     `json:"value"`
	ExpiresAt  *time.Time `json:"expires_at"`
	UsageLimit *int32     `json:"usage_limit"`
	TimesUsed  int32      `json:"times_used"`
}

func toCouponResponse(c database.Coupon) couponResponse {
	resp := couponResponse{
		ID:        c.ID,
		Code:      c.Code,
		Type:      c.Type,
		Value:     database.NumericToString(c.Value),
		TimesUsed: c.TimesUsed,
	}
	if c.ExpiresAt.Valid {
		t := c.ExpiresAt.Time
		resp.ExpiresAt = &t
	}
	if c.UsageLimit.Valid {
		n := c.UsageLimit.Int32
		resp.UsageLimit = &n
	}
	return resp
}

// Validate handles POST /validate-coupon.
func (h *CouponHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var req validateCouponRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}

	coupon, err := h.svc.Validate(r.Context(), req.Code)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrCouponCodeRequired):
			writeError(w, http.StatusBadRequest, "código do cupom é obrigatório")
		case errors.Is(err, service.ErrCouponNotFound):
			writeError(w, http.StatusNotFound, "cupom não encontrado")
		case errors.Is(err, service.ErrCouponLimitReached):
			writeError(w, http.StatusBadRequest, "cupom atingiu o limite de uso")
		case errors.Is(err, service.ErrCouponExpired):
			writeError(w, http.StatusBadRequest, "cupom expirado")
		default:
			writeInternal(w, h.logger, "validate coupon", err)
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"coupon": toCouponResponse(coupon)})
}
