package service

import (
	"context"

	"github.com/segmentio/kafka-go"
	"order-ingest/internal/entity"
	"order-ingest/internal/idempotency"
	"order-ingest/internal/pricing"
	"order-ingest/internal/ratelimit"
)

// OrderStore persists orders. internal/repository.OrderRepository is the
// production implementation.
type OrderStore interface {
	CreateOrder(ctx context.Context, order *entity.Order) (int64, error)
	GetOrderByID(ctx context.Context, id int64) (*entity.Order, error)
}

// Pricer recomputes totals from catalog prices.
type Pricer interface {
	Price(ctx context.Context, lines []pricing.LineRequest) (pricing.Quote, error)
}

// Limiter guards actions per client identity.
type Limiter interface {
	Check(ctx context.Context, clientID, action string) (ratelimit.Result, error)
	Reset(ctx context.Context, clientID, action string) error
}

// EventStore is the idempotency gate for payment events.
type EventStore interface {
	BeginProcessing(ctx context.Context, eventID, eventType string) (idempotency.BeginResult, error)
	Complete(ctx context.Context, eventID string, orderID int64) error
	Fail(ctx context.Context, eventID string) error
}

// Publisher hands persisted orders to the fulfillment topic. *kafka.Writer
// satisfies it.
type Publisher interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}
