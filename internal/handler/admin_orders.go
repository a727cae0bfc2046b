package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/HaruCodeTI/manifeste/api/internal/database"
	"github.com/HaruCodeTI/manifeste/api/internal/enum"
	"github.com/HaruCodeTI/manifeste/api/internal/notify"
	"github.com/HaruCodeTI/manifeste/api/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"go.uber.org/zap"
)

// AdminOrderStore defines the database reads behind the admin order panel.
// Satisfied by *database.Queries; narrow interface for testability.
type AdminOrderStore interface {
	GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
	ListOrders(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error)
	ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.ListOrderItemsByOrderRow, error)
	ListOrderStatusHistory(ctx context.Context, orderID uuid.UUID) ([]database.OrderStatusHistory, error)
}

// StatusChanger moves orders through their lifecycle.
// Satisfied by *service.StatusService.
type StatusChanger interface {
	Transition(ctx context.Context, req service.TransitionRequest) (*service.TransitionResult, error)
	SetTrackingCode(ctx context.Context, orderID uuid.UUID, code string) (database.Order, error)
}

// CustomerLinker builds the WhatsApp link to an order's customer.
// Satisfied by *notify.Notifier.
type CustomerLinker interface {
	CustomerWhatsAppLink(ctx context.Context, orderID uuid.UUID) (string, error)
}

// AdminOrderHandler handles the authenticated order panel endpoints.
type AdminOrderHandler struct {
	store    AdminOrderStore
	status   StatusChanger
	whatsapp CustomerLinker
	logger   *zap.Logger
}

// NewAdminOrderHandler creates a new AdminOrderHandler.
func NewAdminOrderHandler(store AdminOrderStore, status StatusChanger, whatsapp CustomerLinker, logger *zap.Logger) *AdminOrderHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminOrderHandler{store: store, status: status, whatsapp: whatsapp, logger: logger}
}

// RegisterRoutes registers admin order endpoints on the given Chi router.
// Expected to be mounted at /admin/orders behind middleware.Authenticate.
func (h *AdminOrderHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Patch("/{id}/status", h.UpdateStatus)
	r.Patch("/{id}/tracking-code", h.UpdateTrackingCode)
	r.Get("/{id}/whatsapp", h.WhatsApp)
}

// --- Request / Response types ---

type orderListResponse struct {
	Orders []orderResponse `json:"orders"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

type adminOrderDetailResponse struct {
	Order              orderResponse       `json:"order"`
	Items              []orderItemResponse `json:"items"`
	History            []historyResponse   `json:"history"`
	AllowedTransitions []string            `json:"allowed_transitions"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
	// ExpectedStatus is the status the admin was looking at. Optional.
	ExpectedStatus string `json:"expected_status"`
}

type updateStatusResponse struct {
	Order              orderResponse `json:"order"`
	PreviousStatus     string        `json:"previous_status"`
	AllowedTransitions []string      `json:"allowed_transitions"`
}

type updateTrackingCodeRequest struct {
	TrackingCode string `json:"tracking_code"`
}

// --- Handlers ---

// List handles GET /admin/orders?status=&limit=&offset=.
func (h *AdminOrderHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)

	params := database.ListOrdersParams{
		Limit:  int32(limit),
		Offset: int32(offset),
	}
	if s := r.URL.Query().Get("status"); s != "" {
		if !enum.IsOrderStatus(s) {
			writeError(w, http.StatusBadRequest, "status inválido")
			return
		}
		params.Status = pgtype.Text{String: s, Valid: true}
	}

	orders, err := h.store.ListOrders(r.Context(), params)
	if err != nil {
		writeInternal(w, h.logger, "list orders", err)
		return
	}

	resp := make([]orderResponse, len(orders))
	for i, o := range orders {
		resp[i] = toOrderResponse(o)
	}
	writeJSON(w, http.StatusOK, orderListResponse{Orders: resp, Limit: limit, Offset: offset})
}

// Get handles GET /admin/orders/{id}.
func (h *AdminOrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	order, err := h.store.GetOrder(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, msgNotFound)
			return
		}
		writeInternal(w, h.logger, "get order", err)
		return
	}

	items, err := h.store.ListOrderItemsByOrder(r.Context(), orderID)
	if err != nil {
		writeInternal(w, h.logger, "list order items", err)
		return
	}
	history, err := h.store.ListOrderStatusHistory(r.Context(), orderID)
	if err != nil {
		writeInternal(w, h.logger, "list status history", err)
		return
	}

	writeJSON(w, http.StatusOK, adminOrderDetailResponse{
		Order:              toOrderResponse(order),
		Items:              toOrderItemResponses(items),
		History:            toHistoryResponses(history),
		AllowedTransitions: service.AllowedTransitions(order),
	})
}

// UpdateStatus handles PATCH /admin/orders/{id}/status.
func (h *AdminOrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	var req updateStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}
	if req.Status == "" {
		writeError(w, http.StatusBadRequest, "status é obrigatório")
		return
	}

	result, err := h.status.Transition(r.Context(), service.TransitionRequest{
		OrderID:        orderID,
		Status:         req.Status,
		ExpectedStatus: req.ExpectedStatus,
		ChangedBy:      enum.ChangedByAdmin,
	})
	if err != nil {
		var terr *service.TransitionError
		switch {
		case errors.Is(err, service.ErrInvalidStatus):
			writeError(w, http.StatusBadRequest, "status inválido")
		case errors.As(err, &terr):
			writeError(w, http.StatusBadRequest, "não é possível mudar de "+
				notify.StatusLabel(terr.From)+" para "+notify.StatusLabel(terr.To))
		case errors.Is(err, service.ErrOrderNotFound):
			writeError(w, http.StatusNotFound, msgNotFound)
		case errors.Is(err, service.ErrStatusConflict):
			writeError(w, http.StatusConflict, "o status do pedido mudou, recarregue e tente novamente")
		default:
			writeInternal(w, h.logger, "update order status", err)
		}
		return
	}

	writeJSON(w, http.StatusOK, updateStatusResponse{
		Order:              toOrderResponse(result.Order),
		PreviousStatus:     result.PreviousStatus,
		AllowedTransitions: service.AllowedTransitions(result.Order),
	})
}

// UpdateTrackingCode handles PATCH /admin/orders/{id}/tracking-code.
func (h *AdminOrderHandler) UpdateTrackingCode(w http.ResponseWriter, r *http.Request) {
	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	var req updateTrackingCodeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}

	order, err := h.status.SetTrackingCode(r.Context(), orderID, req.TrackingCode)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrTrackingCodeRequired):
			writeError(w, http.StatusBadRequest, "código de rastreio é obrigatório")
		case errors.Is(err, service.ErrTrackingCodeNotAllowed):
			writeError(w, http.StatusBadRequest, "código de rastreio só pode ser informado em pedidos para entrega")
		case errors.Is(err, service.ErrOrderNotFound):
			writeError(w, http.StatusNotFound, msgNotFound)
		default:
			writeInternal(w, h.logger, "set tracking code", err)
		}
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

// WhatsApp handles GET /admin/orders/{id}/whatsapp.
func (h *AdminOrderHandler) WhatsApp(w http.ResponseWriter, r *http.Request) {
	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	link, err := h.whatsapp.CustomerWhatsAppLink(r.Context(), orderID)
	if err != nil {
		switch {
		case errors.Is(err, notify.ErrOrderNotFound):
			writeError(w, http.StatusNotFound, msgNotFound)
		case errors.Is(err, notify.ErrInvalidPhone):
			writeError(w, http.StatusBadRequest, "telefone do cliente inválido")
		default:
			writeInternal(w, h.logger, "whatsapp link", err)
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"url": link})
}

func orderIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(strings.TrimSpace(chi.URLParam(r, "id")))
	if err != nil {
		writeError(w, http.StatusBadRequest, "ID do pedido inválido")
		return uuid.Nil, false
	}
	return id, true
}
