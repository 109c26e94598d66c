package entity

import "time"

// PaymentEvent processing statuses. An event id enters the table as
// processing exactly once; it then moves to processed or failed and never
// back.
const (
	EventStatusProcessing = "processing"
	EventStatusProcessed  = "processed"
	EventStatusFailed     = "failed"
)

// Payment provider event types this system reacts to.
const (
	EventCheckoutCompleted = "checkout.session.completed"
	EventCheckoutExpired   = "checkout.session.expired"
)

// PaymentEvent is one observed webhook delivery, keyed by the provider's
// globally unique event id.
type PaymentEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Status    string    `json:"status"`
	OrderID   int64     `json:"order_id,omitempty"` // 0 until an order is linked
	CreatedAt time.Time `json:"created_at"`
}
