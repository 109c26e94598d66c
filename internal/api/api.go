package api

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"order-ingest/internal/pricing"
	"order-ingest/internal/service"
	"order-ingest/internal/webhook"
)

// SignatureHeader carries the payment provider's event signature.
const SignatureHeader = "Payment-Signature"

// ingestTimeout bounds one ingestion request end to end. The handler
// detaches from the client's context so a disconnect mid-flight does not
// abandon a half-applied rate-limit increment or pricing pass.
const ingestTimeout = 15 * time.Second

type Handler struct {
	ingest     *service.IngestService
	reconciler *service.Reconciler
}

func NewHandler(ingest *service.IngestService, reconciler *service.Reconciler) *Handler {
	return &Handler{ingest: ingest, reconciler: reconciler}
}

func (h *Handler) Register(e *echo.Echo) {
	e.POST("/orders", h.CreateOrder)
	e.GET("/orders/:id", h.GetOrder)
	e.POST("/webhooks/payment", h.PaymentWebhook)
	e.GET("/health", h.Health)
}

type createOrderRequest struct {
	Items         []pricing.LineRequest `json:"items"`
	OrderType     string                `json:"order_type"`
	PaymentMethod string                `json:"payment_method"`
}

// CreateOrder handles the synchronous counter/QR order path.
func (h *Handler) CreateOrder(c echo.Context) error {
	req := createOrderRequest{}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request payload"})
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request().Context()), ingestTimeout)
	defer cancel()

	result, err := h.ingest.CreateOrder(ctx, service.CreateOrderInput{
		Items:         req.Items,
		OrderType:     req.OrderType,
		PaymentMethod: req.PaymentMethod,
		ClientIP:      c.RealIP(),
	})
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"order": map[string]interface{}{
			"order_id":     result.OrderID,
			"order_number": result.OrderNumber,
			"subtotal":     pricing.FormatCents(result.SubtotalCents),
			"tax":          pricing.FormatCents(result.TaxCents),
			"total":        pricing.FormatCents(result.TotalCents),
		},
	})
}

// GetOrder serves the order read-back used by the success page and the
// fulfillment display.
func (h *Handler) GetOrder(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid order ID"})
	}

	order, err := h.ingest.GetOrder(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "Order not found"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to load order"})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"order":    order,
		"subtotal": pricing.FormatCents(order.SubtotalCents),
		"tax":      pricing.FormatCents(order.TaxCents),
		"tip":      pricing.FormatCents(order.TipCents),
		"total":    pricing.FormatCents(order.TotalCents),
	})
}

// PaymentWebhook receives provider event deliveries. Duplicates still get a
// 200 so the provider stops retrying; failures get a terse non-200 with no
// internal detail, and the provider's redelivery drives the retry.
func (h *Handler) PaymentWebhook(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "unreadable body"})
	}

	result, err := h.reconciler.HandleEvent(c.Request().Context(), body, c.Request().Header.Get(SignatureHeader))
	if err != nil {
		return writeError(c, err)
	}

	resp := map[string]interface{}{"received": true}
	if result.OrderID != 0 {
		resp["order_id"] = result.OrderID
	}
	if result.Duplicate {
		resp["message"] = "event already processed"
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"service": "order-ingest",
		"time":    time.Now().Format(time.RFC3339),
	})
}

// writeError maps typed service errors to HTTP responses.
func writeError(c echo.Context, err error) error {
	var validationErr *service.ValidationError
	var invalidItem *pricing.InvalidItemError
	var rateLimited *service.RateLimitedError
	var persistence *service.PersistenceError

	switch {
	case errors.As(err, &validationErr):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": validationErr.Reason})
	case errors.As(err, &invalidItem):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": invalidItem.Error()})
	case errors.As(err, &rateLimited):
		c.Response().Header().Set("Retry-After", fmt.Sprintf("%d", int(rateLimited.RetryAfter.Seconds())+1))
		return c.JSON(http.StatusTooManyRequests, map[string]string{"error": "too many requests"})
	case errors.Is(err, webhook.ErrNoSignature),
		errors.Is(err, webhook.ErrInvalidSignature),
		errors.Is(err, webhook.ErrTimestampTooOld),
		errors.Is(err, webhook.ErrMalformedSignature):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid signature"})
	case errors.Is(err, webhook.ErrMalformedEvent), errors.Is(err, webhook.ErrMalformedIntent):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "malformed payload"})
	case errors.As(err, &persistence):
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "order could not be saved"})
	}
	return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal error"})
}
