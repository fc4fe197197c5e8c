package services

import (
	"context"
	"time"
)

// Order lifecycle event types.
const (
	OrderEventCreated   = "order.created"
	OrderEventPaid      = "order.paid"
	OrderEventFailed    = "order.failed"
	OrderEventCancelled = "order.cancelled"
)

// OrderEvent is the payload published on order lifecycle transitions.
type OrderEvent struct {
	Type       string    `json:"type"`
	OrderID    string    `json:"orderId"`
	UserID     string    `json:"userId,omitempty"`
	Provider   string    `json:"provider,omitempty"`
	Status     string    `json:"status,omitempty"`
	Amount     int64     `json:"amount,omitempty"`
	Currency   string    `json:"currency,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

// OrderEventPublisher emits order lifecycle events to interested consumers.
// Publishing is best effort: failures are logged by callers and never fail
// the originating request.
type OrderEventPublisher interface {
	PublishOrderEvent(ctx context.Context, event OrderEvent) (string, error)
}
