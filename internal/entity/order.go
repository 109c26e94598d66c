package entity

import "time"

// Order types accepted from the synchronous counter/QR flow.
const (
	OrderTypeDineIn  = "dine_in"
	OrderTypeTakeout = "takeout"
	OrderTypeOnline  = "online"
)

// Payment methods.
const (
	PaymentMethodCash   = "cash"
	PaymentMethodCard   = "card"
	PaymentMethodOnline = "online"
	PaymentMethodOther  = "other"
)

// Payment statuses.
const (
	PaymentStatusUnpaid = "unpaid"
	PaymentStatusPaid   = "paid"
	PaymentStatusFailed = "failed"
)

// Fulfillment statuses. Orders move received -> preparing -> ready ->
// completed, or to cancelled. Already-paid online orders start at preparing.
const (
	StatusReceived  = "received"
	StatusPreparing = "preparing"
	StatusReady     = "ready"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

// Order sources.
const (
	SourceCounter = "counter"
	SourceQR      = "qr"
	SourceOnline  = "online"
)

// Order is one committed purchase. Money fields are integer cents; the API
// layer formats them to decimal strings at the boundary.
type Order struct {
	ID            int64       `json:"id"`
	OrderNumber   string      `json:"order_number"`
	Items         []OrderItem `json:"items"`
	OrderType     string      `json:"order_type"`
	PaymentMethod string      `json:"payment_method"`
	PaymentStatus string      `json:"payment_status"`
	Status        string      `json:"status"`
	Source        string      `json:"source"`
	SubtotalCents int64       `json:"subtotal_cents"`
	TaxCents      int64       `json:"tax_cents"`
	TipCents      int64       `json:"tip_cents"`
	TotalCents    int64       `json:"total_cents"`
	CustomerName  string      `json:"customer_name,omitempty"`
	Phone         string      `json:"phone,omitempty"`
	Email         string      `json:"email,omitempty"`
	Notes         string      `json:"notes,omitempty"`
	ScheduledTime string      `json:"scheduled_time,omitempty"`
	PaymentRef    string      `json:"payment_ref,omitempty"` // provider session id
	PaymentIntent string      `json:"payment_intent,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
}

// OrderItem is one line of an order. UnitPriceCents is the catalog price
// snapshot taken at ingestion time, never the client-supplied price.
type OrderItem struct {
	ItemID         string   `json:"item_id"`
	Name           string   `json:"name"`
	Quantity       int      `json:"quantity"`
	UnitPriceCents int64    `json:"unit_price_cents"`
	LineTotalCents int64    `json:"line_total_cents"`
	Modifiers      []string `json:"modifiers,omitempty"`
}

// ValidOrderType reports whether t is accepted from the synchronous path.
func ValidOrderType(t string) bool {
	return t == OrderTypeDineIn || t == OrderTypeTakeout
}

// ValidPaymentMethod reports whether m is a known payment method.
func ValidPaymentMethod(m string) bool {
	switch m {
	case PaymentMethodCash, PaymentMethodCard, PaymentMethodOnline, PaymentMethodOther:
		return true
	}
	return false
}
