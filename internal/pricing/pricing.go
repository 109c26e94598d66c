package pricing

import (
	"context"
	"errors"
	"fmt"

	"order-ingest/internal/catalog"
	"order-ingest/internal/entity"
)

// InvalidItemError reports a line item that cannot be priced: unknown id,
// unavailable item, or a non-positive quantity.
type InvalidItemError struct {
	ItemID string
	Reason string
}

func (e *InvalidItemError) Error() string {
	return fmt.Sprintf("invalid item %q: %s", e.ItemID, e.Reason)
}

// LineRequest is one requested line as received from a client or webhook
// metadata. DisplayPriceCents is what the client believes the price is; it is
// a display hint only and never enters the computed totals.
type LineRequest struct {
	ItemID            string   `json:"item_id"`
	Quantity          int      `json:"quantity"`
	Modifiers         []string `json:"modifiers,omitempty"`
	DisplayPriceCents int64    `json:"display_price_cents,omitempty"`
}

// Quote is the authoritative pricing result. All amounts are integer cents.
type Quote struct {
	SubtotalCents int64
	TaxCents      int64
	Lines         []entity.OrderItem
}

// Validator recomputes order totals from catalog prices. Client-supplied
// prices are ignored; this is the defense against price tampering.
type Validator struct {
	catalog    catalog.Catalog
	taxRateBps int64
}

// NewValidator creates a Validator. taxRateBps is the tax rate in basis
// points (825 = 8.25%).
func NewValidator(cat catalog.Catalog, taxRateBps int64) *Validator {
	return &Validator{catalog: cat, taxRateBps: taxRateBps}
}

// Price resolves every line against the catalog and computes subtotal and
// tax in integer cents. It fails with InvalidItemError on the first unknown,
// unavailable, or non-positive-quantity line.
func (v *Validator) Price(ctx context.Context, lines []LineRequest) (Quote, error) {
	var q Quote
	for _, line := range lines {
		if line.Quantity <= 0 {
			return Quote{}, &InvalidItemError{ItemID: line.ItemID, Reason: "quantity must be positive"}
		}

		item, err := v.catalog.Lookup(ctx, line.ItemID)
		if err != nil {
			if errors.Is(err, catalog.ErrNotFound) {
				return Quote{}, &InvalidItemError{ItemID: line.ItemID, Reason: "unknown item"}
			}
			return Quote{}, err
		}
		if !item.Available {
			return Quote{}, &InvalidItemError{ItemID: line.ItemID, Reason: "item unavailable"}
		}

		lineTotal := item.PriceCents * int64(line.Quantity)
		q.Lines = append(q.Lines, entity.OrderItem{
			ItemID:         line.ItemID,
			Name:           item.Name,
			Quantity:       line.Quantity,
			UnitPriceCents: item.PriceCents,
			LineTotalCents: lineTotal,
			Modifiers:      line.Modifiers,
		})
		q.SubtotalCents += lineTotal
	}

	q.TaxCents = TaxCents(q.SubtotalCents, v.taxRateBps)
	return q, nil
}

// TaxCents applies a basis-point tax rate to an integer-cent amount,
// rounding half up.
func TaxCents(subtotalCents, rateBps int64) int64 {
	return (subtotalCents*rateBps + 5000) / 10000
}

// FormatCents renders integer cents as a decimal string ("2506" -> "25.06").
// Used only at the HTTP boundary; internal math stays in cents.
func FormatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}
