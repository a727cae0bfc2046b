package service

import (
	"time"

	"github.com/google/uuid"
)

// Order event types pushed to realtime subscribers.
const (
	EventOrderCreated       = "order.created"
	EventOrderStatusChanged = "order.status_changed"
	EventOrderTrackingCode  = "order.tracking_code"
)

// OrderEvent describes a committed change to an order.
type OrderEvent struct {
	Type           string    `json:"type"`
	OrderID        uuid.UUID `json:"order_id"`
	Status         string    `json:"status"`
	PreviousStatus string    `json:"previous_status,omitempty"`
	ChangedBy      string    `json:"changed_by,omitempty"`
	TrackingCode   string    `json:"tracking_code,omitempty"`
	At             time.Time `json:"at"`
}

// Publisher receives order events after their transaction commits.
// Delivery is best effort and must not block the caller.
type Publisher interface {
	PublishOrderEvent(evt OrderEvent)
}

type nopPublisher struct{}

func (nopPublisher) PublishOrderEvent(OrderEvent) {}
