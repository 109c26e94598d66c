package webhook

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Parsing errors for event envelopes and embedded order metadata.
var (
	ErrMalformedEvent  = errors.New("webhook: malformed event payload")
	ErrMalformedIntent = errors.New("webhook: malformed order metadata")
)

// Event is the provider's event envelope.
type Event struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object CheckoutSession `json:"object"`
	} `json:"data"`
}

// CheckoutSession is the payment session the event describes. Metadata
// round-trips the order intent the client declared at checkout time.
type CheckoutSession struct {
	ID            string            `json:"id"`
	PaymentIntent string            `json:"payment_intent"`
	Metadata      map[string]string `json:"metadata"`
}

// OrderIntent is the order the customer paid for, reconstructed from session
// metadata. It traveled client -> provider -> webhook, so nothing monetary
// in it is trusted: prices are display hints and totals are recomputed from
// the catalog before persisting.
type OrderIntent struct {
	Items         []IntentItem `json:"items"`
	OrderType     string       `json:"order_type"`
	CustomerName  string       `json:"customer_name"`
	Phone         string       `json:"phone"`
	Email         string       `json:"email"`
	TipCents      int64        `json:"tip_cents"`
	Notes         string       `json:"notes"`
	ScheduledTime string       `json:"scheduled_time"`
}

// IntentItem is one requested line from the metadata.
type IntentItem struct {
	ItemID     string   `json:"item_id"`
	Name       string   `json:"name"`
	Quantity   int      `json:"quantity"`
	PriceCents int64    `json:"price_cents"` // display hint only
	Modifiers  []string `json:"modifiers"`
}

// ParseEvent decodes and minimally validates an event envelope.
func ParseEvent(body []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if ev.ID == "" || ev.Type == "" {
		return nil, ErrMalformedEvent
	}
	return &ev, nil
}

// ParseOrderIntent extracts the typed order intent from session metadata,
// rejecting missing or malformed shapes outright rather than letting loose
// data travel further into the pipeline.
func ParseOrderIntent(metadata map[string]string) (*OrderIntent, error) {
	raw, ok := metadata["order_data"]
	if !ok || raw == "" {
		return nil, ErrMalformedIntent
	}

	var intent OrderIntent
	if err := json.Unmarshal([]byte(raw), &intent); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedIntent, err)
	}
	if len(intent.Items) == 0 {
		return nil, ErrMalformedIntent
	}
	for _, item := range intent.Items {
		if item.ItemID == "" || item.Quantity <= 0 {
			return nil, ErrMalformedIntent
		}
	}
	if intent.TipCents < 0 {
		return nil, ErrMalformedIntent
	}
	return &intent, nil
}
