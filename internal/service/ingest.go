package service

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"order-ingest/internal/entity"
	"order-ingest/internal/pricing"
	"order-ingest/internal/ratelimit"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Logger()

// CreateOrderInput is a synchronous counter/QR order request.
type CreateOrderInput struct {
	Items         []pricing.LineRequest
	OrderType     string
	PaymentMethod string
	ClientIP      string
}

// CreateOrderResult carries the authoritative totals back to the caller.
type CreateOrderResult struct {
	OrderID       int64
	OrderNumber   string
	SubtotalCents int64
	TaxCents      int64
	TotalCents    int64
}

// IngestService handles the synchronous order-creation path: validate,
// rate-check, price, persist, publish. Persistence is the last step, so a
// failure anywhere leaves no partial side effects.
type IngestService struct {
	orders    OrderStore
	pricer    Pricer
	limiter   Limiter
	publisher Publisher
}

func NewIngestService(orders OrderStore, pricer Pricer, limiter Limiter, publisher Publisher) *IngestService {
	return &IngestService{orders: orders, pricer: pricer, limiter: limiter, publisher: publisher}
}

// CreateOrder runs the request through the ingestion state machine and
// returns the first typed error encountered.
func (s *IngestService) CreateOrder(ctx context.Context, input CreateOrderInput) (*CreateOrderResult, error) {
	if len(input.Items) == 0 {
		return nil, &ValidationError{Reason: "items must not be empty"}
	}
	if !entity.ValidOrderType(input.OrderType) {
		return nil, &ValidationError{Reason: "invalid order type"}
	}
	if !entity.ValidPaymentMethod(input.PaymentMethod) {
		return nil, &ValidationError{Reason: "invalid payment method"}
	}

	result, err := s.limiter.Check(ctx, input.ClientIP, ratelimit.ActionOrderCreate)
	if err != nil {
		// Result already reflects the configured fail-open/fail-closed
		// policy for this action.
		logger.Warn().Err(err).Str("client_ip", input.ClientIP).Msg("rate limiter store unavailable")
	}
	if !result.Allowed {
		return nil, &RateLimitedError{RetryAfter: result.RetryAfter}
	}

	quote, err := s.pricer.Price(ctx, input.Items)
	if err != nil {
		return nil, err
	}

	order := &entity.Order{
		OrderNumber:   newOrderNumber(),
		Items:         quote.Lines,
		OrderType:     input.OrderType,
		PaymentMethod: input.PaymentMethod,
		// Online-marked orders stay unpaid until a verified payment event
		// arrives; the synchronous request alone never marks an order paid.
		PaymentStatus: entity.PaymentStatusUnpaid,
		Status:        entity.StatusReceived,
		Source:        entity.SourceCounter,
		SubtotalCents: quote.SubtotalCents,
		TaxCents:      quote.TaxCents,
		TotalCents:    quote.SubtotalCents + quote.TaxCents,
	}

	orderID, err := s.orders.CreateOrder(ctx, order)
	if err != nil {
		logger.Error().Err(err).Msg("order persist failed")
		return nil, &PersistenceError{Err: err}
	}

	publishOrderCreated(ctx, s.publisher, order)

	return &CreateOrderResult{
		OrderID:       orderID,
		OrderNumber:   order.OrderNumber,
		SubtotalCents: order.SubtotalCents,
		TaxCents:      order.TaxCents,
		TotalCents:    order.TotalCents,
	}, nil
}

// GetOrder loads a persisted order for read-back.
func (s *IngestService) GetOrder(ctx context.Context, id int64) (*entity.Order, error) {
	return s.orders.GetOrderByID(ctx, id)
}

// publishOrderCreated hands the persisted order to the fulfillment topic.
// The order is already durable at this point, so publish failures are logged
// and not surfaced to the caller.
func publishOrderCreated(ctx context.Context, publisher Publisher, order *entity.Order) {
	if publisher == nil {
		return
	}
	payload, err := json.Marshal(order)
	if err != nil {
		logger.Error().Err(err).Int64("order_id", order.ID).Msg("marshal order event")
		return
	}
	msg := kafka.Message{
		Key:   []byte(fmt.Sprintf("order-created-%d", order.ID)),
		Value: payload,
	}
	if err := publisher.WriteMessages(ctx, msg); err != nil {
		logger.Error().Err(err).Int64("order_id", order.ID).Msg("publish order event")
	}
}

func newOrderNumber() string {
	return "ORD-" + strings.ToUpper(uuid.NewString()[:8])
}
