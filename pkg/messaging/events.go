package messaging

import (
	"context"
	"time"
)

// Routing keys for order events
const (
	EventOrderCreated       = "order.created"
	EventOrderStatusChanged = "order.status_changed"
	EventPaymentChanged     = "order.payment_changed"
	EventOrderCancelled     = "order.cancelled"
)

// OrderEvent is published after a committed order change
type OrderEvent struct {
	Type          string    `json:"type"`
	TenantID      uint      `json:"tenant_id"`
	OrderID       uint      `json:"order_id"`
	OrderNumber   string    `json:"order_number"`
	OrderType     string    `json:"order_type"`
	OrderStatus   string    `json:"order_status"`
	PaymentStatus string    `json:"payment_status"`
	TableID       *uint     `json:"table_id,omitempty"`
	Deleted       bool      `json:"deleted,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// Publisher delivers order events to dashboards and kitchen displays
type Publisher interface {
	PublishOrderEvent(ctx context.Context, event OrderEvent) error
}

// NoopPublisher drops every event
type NoopPublisher struct{}

func (NoopPublisher) PublishOrderEvent(context.Context, OrderEvent) error { return nil }
