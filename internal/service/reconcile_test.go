package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"order-ingest/internal/entity"
	"order-ingest/internal/pricing"
	"order-ingest/internal/webhook"
)

const webhookSecret = "whsec_reconcile_test"

func signBody(body []byte) string {
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(webhookSecret))
	fmt.Fprintf(mac, "%d.", ts)
	mac.Write(body)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func checkoutEvent(eventID, eventType string, intent map[string]interface{}) []byte {
	orderData, _ := json.Marshal(intent)
	body, _ := json.Marshal(map[string]interface{}{
		"id":   eventID,
		"type": eventType,
		"data": map[string]interface{}{
			"object": map[string]interface{}{
				"id":             "cs_test_1",
				"payment_intent": "pi_test_1",
				"metadata":       map[string]string{"order_data": string(orderData)},
			},
		},
	})
	return body
}

func validIntent() map[string]interface{} {
	return map[string]interface{}{
		"items": []map[string]interface{}{
			// price_cents lies on purpose; the catalog says 1000
			{"item_id": "A", "quantity": 2, "price_cents": 1},
			{"item_id": "B", "quantity": 1},
		},
		"order_type":    "online",
		"customer_name": "Kim",
		"phone":         "555-0100",
		"tip_cents":     300,
	}
}

func newTestReconciler(orders *fakeOrders, events *fakeEvents) *Reconciler {
	return NewReconciler(
		webhook.NewVerifier(webhookSecret, 5*time.Minute),
		events, testPricer(), orders, nil,
	)
}

func TestHandleEvent_CreatesPaidOrder(t *testing.T) {
	orders := &fakeOrders{}
	events := newFakeEvents()
	r := newTestReconciler(orders, events)

	body := checkoutEvent("evt_1", entity.EventCheckoutCompleted, validIntent())
	result, err := r.HandleEvent(context.Background(), body, signBody(body))
	require.NoError(t, err)
	assert.False(t, result.Duplicate)
	assert.Equal(t, int64(1), result.OrderID)

	require.Equal(t, 1, orders.count())
	order := orders.created[0]
	assert.Equal(t, entity.PaymentStatusPaid, order.PaymentStatus)
	assert.Equal(t, entity.StatusPreparing, order.Status)
	assert.Equal(t, entity.SourceQR, order.Source)
	assert.Equal(t, entity.PaymentMethodOnline, order.PaymentMethod)
	assert.Equal(t, "cs_test_1", order.PaymentRef)
	assert.Equal(t, "pi_test_1", order.PaymentIntent)

	// Totals re-derived from catalog, not from the lying metadata.
	assert.Equal(t, int64(2500), order.SubtotalCents)
	assert.Equal(t, int64(206), order.TaxCents)
	assert.Equal(t, int64(300), order.TipCents)
	assert.Equal(t, int64(3006), order.TotalCents)

	assert.Equal(t, entity.EventStatusProcessed, events.status("evt_1"))
}

func TestHandleEvent_InvalidSignatureTouchesNothing(t *testing.T) {
	orders := &fakeOrders{}
	events := newFakeEvents()
	r := newTestReconciler(orders, events)

	body := checkoutEvent("evt_2", entity.EventCheckoutCompleted, validIntent())
	_, err := r.HandleEvent(context.Background(), body, "t=1,v1=deadbeef")
	assert.Error(t, err)

	assert.Zero(t, orders.count())
	assert.Empty(t, events.status("evt_2"), "rejected events must not enter the event table")
}

func TestHandleEvent_DuplicateDeliveryEchoesOrder(t *testing.T) {
	orders := &fakeOrders{}
	events := newFakeEvents()
	r := newTestReconciler(orders, events)

	body := checkoutEvent("evt_3", entity.EventCheckoutCompleted, validIntent())
	sig := signBody(body)

	first, err := r.HandleEvent(context.Background(), body, sig)
	require.NoError(t, err)

	second, err := r.HandleEvent(context.Background(), body, sig)
	require.NoError(t, err)
	assert.True(t, second.Duplicate)
	assert.Equal(t, first.OrderID, second.OrderID)
	assert.Equal(t, 1, orders.count(), "redelivery must not create a second order")
}

func TestHandleEvent_ConcurrentDuplicatesCreateOneOrder(t *testing.T) {
	orders := &fakeOrders{}
	events := newFakeEvents()
	r := newTestReconciler(orders, events)

	body := checkoutEvent("evt_4", entity.EventCheckoutCompleted, validIntent())
	sig := signBody(body)

	const n = 16
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = r.HandleEvent(context.Background(), body, sig)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		assert.NoError(t, err, "delivery %d", i)
	}
	assert.Equal(t, 1, orders.count(), "exactly one delivery may win the claim")
}

func TestHandleEvent_MalformedMetadataFailsEvent(t *testing.T) {
	orders := &fakeOrders{}
	events := newFakeEvents()
	r := newTestReconciler(orders, events)

	body, _ := json.Marshal(map[string]interface{}{
		"id":   "evt_5",
		"type": entity.EventCheckoutCompleted,
		"data": map[string]interface{}{
			"object": map[string]interface{}{
				"id":       "cs_test_5",
				"metadata": map[string]string{"order_data": "{not json"},
			},
		},
	})
	_, err := r.HandleEvent(context.Background(), body, signBody(body))
	assert.ErrorIs(t, err, webhook.ErrMalformedIntent)
	assert.Zero(t, orders.count())
	assert.Equal(t, entity.EventStatusFailed, events.status("evt_5"))
}

func TestHandleEvent_UnknownItemFailsEvent(t *testing.T) {
	orders := &fakeOrders{}
	events := newFakeEvents()
	r := newTestReconciler(orders, events)

	intent := validIntent()
	intent["items"] = []map[string]interface{}{{"item_id": "ghost", "quantity": 1}}
	body := checkoutEvent("evt_6", entity.EventCheckoutCompleted, intent)

	_, err := r.HandleEvent(context.Background(), body, signBody(body))
	var invalid *pricing.InvalidItemError
	assert.ErrorAs(t, err, &invalid)
	assert.Equal(t, entity.EventStatusFailed, events.status("evt_6"))
}

func TestHandleEvent_PersistFailureLeavesEventRetryable(t *testing.T) {
	orders := &fakeOrders{err: errors.New("storage fault")}
	events := newFakeEvents()
	r := newTestReconciler(orders, events)

	body := checkoutEvent("evt_7", entity.EventCheckoutCompleted, validIntent())
	sig := signBody(body)

	_, err := r.HandleEvent(context.Background(), body, sig)
	var persistence *PersistenceError
	require.ErrorAs(t, err, &persistence)
	assert.Equal(t, entity.EventStatusFailed, events.status("evt_7"))

	// Storage recovers; the provider's redelivery succeeds and creates
	// exactly one order.
	orders.mu.Lock()
	orders.err = nil
	orders.mu.Unlock()

	result, err := r.HandleEvent(context.Background(), body, sig)
	require.NoError(t, err)
	assert.False(t, result.Duplicate)
	assert.Equal(t, 1, orders.count())
	assert.Equal(t, entity.EventStatusProcessed, events.status("evt_7"))
}

func TestHandleEvent_ExpiredSessionAcknowledgedWithoutOrder(t *testing.T) {
	orders := &fakeOrders{}
	events := newFakeEvents()
	r := newTestReconciler(orders, events)

	body, _ := json.Marshal(map[string]interface{}{
		"id":   "evt_8",
		"type": entity.EventCheckoutExpired,
		"data": map[string]interface{}{"object": map[string]interface{}{"id": "cs_test_8"}},
	})
	result, err := r.HandleEvent(context.Background(), body, signBody(body))
	require.NoError(t, err)
	assert.Zero(t, result.OrderID)
	assert.Zero(t, orders.count())
	assert.Equal(t, entity.EventStatusProcessed, events.status("evt_8"))
}

func TestHandleEvent_UnknownTypeAcknowledged(t *testing.T) {
	orders := &fakeOrders{}
	events := newFakeEvents()
	r := newTestReconciler(orders, events)

	body, _ := json.Marshal(map[string]interface{}{
		"id":   "evt_9",
		"type": "payment_intent.created",
		"data": map[string]interface{}{"object": map[string]interface{}{"id": "pi_9"}},
	})
	_, err := r.HandleEvent(context.Background(), body, signBody(body))
	assert.NoError(t, err)
	assert.Zero(t, orders.count())
}
