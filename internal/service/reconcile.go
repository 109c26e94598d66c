package service

import (
	"context"

	"order-ingest/internal/entity"
	"order-ingest/internal/pricing"
	"order-ingest/internal/webhook"
)

// WebhookResult acknowledges one delivery. Duplicate deliveries echo the
// order id the first delivery linked, if it got that far.
type WebhookResult struct {
	OrderID   int64
	Duplicate bool
}

// Reconciler handles the asynchronous payment-event path: verify signature,
// claim the event id, reconstruct order intent from metadata, re-price
// against the catalog, persist, finalize. Exactly-once creation rests on the
// event store's insert-if-absent claim, not on any in-process coordination.
type Reconciler struct {
	verifier  *webhook.Verifier
	events    EventStore
	pricer    Pricer
	orders    OrderStore
	publisher Publisher
}

func NewReconciler(verifier *webhook.Verifier, events EventStore, pricer Pricer, orders OrderStore, publisher Publisher) *Reconciler {
	return &Reconciler{verifier: verifier, events: events, pricer: pricer, orders: orders, publisher: publisher}
}

// HandleEvent processes one raw delivery with its signature header.
func (r *Reconciler) HandleEvent(ctx context.Context, body []byte, sigHeader string) (*WebhookResult, error) {
	if err := r.verifier.Verify(body, sigHeader); err != nil {
		// Rejected before any state mutation; a forged or replayed
		// delivery never enters the event table.
		logger.Warn().Err(err).Msg("webhook signature rejected")
		return nil, err
	}

	ev, err := webhook.ParseEvent(body)
	if err != nil {
		return nil, err
	}

	begin, err := r.events.BeginProcessing(ctx, ev.ID, ev.Type)
	if err != nil {
		logger.Error().Err(err).Str("event_id", ev.ID).Msg("event claim failed")
		return nil, &PersistenceError{Err: err}
	}
	if !begin.Started {
		logger.Info().Str("event_id", ev.ID).Str("prior_status", begin.PriorStatus).
			Int64("order_id", begin.OrderID).Msg("duplicate event delivery")
		return &WebhookResult{OrderID: begin.OrderID, Duplicate: true}, nil
	}

	switch ev.Type {
	case entity.EventCheckoutCompleted:
		return r.createOrderFromEvent(ctx, ev)
	case entity.EventCheckoutExpired:
		logger.Info().Str("event_id", ev.ID).Str("session_id", ev.Data.Object.ID).Msg("checkout session expired")
		fallthrough
	default:
		// Acknowledged without creating an order.
		if err := r.events.Complete(ctx, ev.ID, 0); err != nil {
			logger.Error().Err(err).Str("event_id", ev.ID).Msg("finalize event")
		}
		return &WebhookResult{}, nil
	}
}

func (r *Reconciler) createOrderFromEvent(ctx context.Context, ev *webhook.Event) (*WebhookResult, error) {
	session := ev.Data.Object

	intent, err := webhook.ParseOrderIntent(session.Metadata)
	if err != nil {
		logger.Error().Err(err).Str("event_id", ev.ID).Msg("invalid order metadata")
		r.markFailed(ctx, ev.ID)
		return nil, err
	}

	lines := make([]pricing.LineRequest, 0, len(intent.Items))
	for _, item := range intent.Items {
		lines = append(lines, pricing.LineRequest{
			ItemID:            item.ItemID,
			Quantity:          item.Quantity,
			Modifiers:         item.Modifiers,
			DisplayPriceCents: item.PriceCents,
		})
	}

	// Metadata round-tripped through the client and the provider, so the
	// totals are re-derived from the catalog regardless of what was charged.
	quote, err := r.pricer.Price(ctx, lines)
	if err != nil {
		logger.Error().Err(err).Str("event_id", ev.ID).Msg("event pricing failed")
		r.markFailed(ctx, ev.ID)
		return nil, err
	}

	orderType := intent.OrderType
	if orderType == "" {
		orderType = entity.OrderTypeOnline
	}

	order := &entity.Order{
		OrderNumber:   newOrderNumber(),
		Items:         quote.Lines,
		OrderType:     orderType,
		PaymentMethod: entity.PaymentMethodOnline,
		PaymentStatus: entity.PaymentStatusPaid,
		Status:        entity.StatusPreparing, // paid orders go straight to the kitchen
		Source:        entity.SourceQR,
		SubtotalCents: quote.SubtotalCents,
		TaxCents:      quote.TaxCents,
		TipCents:      intent.TipCents,
		TotalCents:    quote.SubtotalCents + quote.TaxCents + intent.TipCents,
		CustomerName:  intent.CustomerName,
		Phone:         intent.Phone,
		Email:         intent.Email,
		Notes:         intent.Notes,
		ScheduledTime: intent.ScheduledTime,
		PaymentRef:    session.ID,
		PaymentIntent: session.PaymentIntent,
	}

	orderID, err := r.orders.CreateOrder(ctx, order)
	if err != nil {
		// The event goes to failed, which BeginProcessing treats as
		// reclaimable: the provider's redelivery retries it.
		logger.Error().Err(err).Str("event_id", ev.ID).Msg("order persist failed")
		r.markFailed(ctx, ev.ID)
		return nil, &PersistenceError{Err: err}
	}

	if err := r.events.Complete(ctx, ev.ID, orderID); err != nil {
		// Order is durable; the record stays processing so a redelivery
		// acks as duplicate instead of creating a second order.
		logger.Error().Err(err).Str("event_id", ev.ID).Int64("order_id", orderID).Msg("finalize event")
	}

	logger.Info().Str("event_id", ev.ID).Int64("order_id", orderID).
		Int64("total_cents", order.TotalCents).Msg("order created from payment event")

	publishOrderCreated(ctx, r.publisher, order)

	return &WebhookResult{OrderID: orderID}, nil
}

func (r *Reconciler) markFailed(ctx context.Context, eventID string) {
	if err := r.events.Fail(ctx, eventID); err != nil {
		logger.Error().Err(err).Str("event_id", eventID).Msg("mark event failed")
	}
}
