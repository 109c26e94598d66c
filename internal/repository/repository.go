package repository

import (
	"context"
	"database/sql"
	"encoding/json"

	"order-ingest/internal/entity"
)

// OrderRepository is the single writer of order state. The header and all
// line items go in as one transaction; a partial order is never observable.
type OrderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// CreateOrder inserts the order header and its line items transactionally
// and returns the assigned order id.
func (r *OrderRepository) CreateOrder(ctx context.Context, order *entity.Order) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}

	orderQuery := `INSERT INTO orders (
		order_number, order_type, payment_method, payment_status, status, source,
		subtotal_cents, tax_cents, tip_cents, total_cents,
		customer_name, phone, email, notes, scheduled_time, payment_ref, payment_intent
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, orderQuery,
		order.OrderNumber, order.OrderType, order.PaymentMethod, order.PaymentStatus, order.Status, order.Source,
		order.SubtotalCents, order.TaxCents, order.TipCents, order.TotalCents,
		order.CustomerName, order.Phone, order.Email, order.Notes, order.ScheduledTime,
		order.PaymentRef, order.PaymentIntent,
	)
	if err != nil {
		tx.Rollback()
		return 0, err
	}

	orderID, err := res.LastInsertId()
	if err != nil {
		tx.Rollback()
		return 0, err
	}

	// Batch insert line items
	itemQuery := `INSERT INTO order_items (order_id, item_id, name, quantity, unit_price_cents, line_total_cents, modifiers) VALUES `

	var values []interface{}
	for _, item := range order.Items {
		modifiers, err := json.Marshal(item.Modifiers)
		if err != nil {
			tx.Rollback()
			return 0, err
		}
		itemQuery += "(?, ?, ?, ?, ?, ?, ?),"
		values = append(values, orderID, item.ItemID, item.Name, item.Quantity, item.UnitPriceCents, item.LineTotalCents, string(modifiers))
	}
	itemQuery = itemQuery[:len(itemQuery)-1]

	_, err = tx.ExecContext(ctx, itemQuery, values...)
	if err != nil {
		tx.Rollback()
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}

	order.ID = orderID
	return orderID, nil
}

// GetOrderByID loads an order with its line items.
func (r *OrderRepository) GetOrderByID(ctx context.Context, id int64) (*entity.Order, error) {
	orderQuery := `SELECT id, order_number, order_type, payment_method, payment_status, status, source,
		subtotal_cents, tax_cents, tip_cents, total_cents,
		customer_name, phone, email, notes, scheduled_time, payment_ref, payment_intent, created_at
	FROM orders WHERE id = ?`

	order := &entity.Order{}
	err := r.db.QueryRowContext(ctx, orderQuery, id).Scan(
		&order.ID, &order.OrderNumber, &order.OrderType, &order.PaymentMethod, &order.PaymentStatus,
		&order.Status, &order.Source,
		&order.SubtotalCents, &order.TaxCents, &order.TipCents, &order.TotalCents,
		&order.CustomerName, &order.Phone, &order.Email, &order.Notes, &order.ScheduledTime,
		&order.PaymentRef, &order.PaymentIntent, &order.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	itemQuery := `SELECT item_id, name, quantity, unit_price_cents, line_total_cents, modifiers FROM order_items WHERE order_id = ?`
	rows, err := r.db.QueryContext(ctx, itemQuery, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		item := entity.OrderItem{}
		var modifiers string
		if err := rows.Scan(&item.ItemID, &item.Name, &item.Quantity, &item.UnitPriceCents, &item.LineTotalCents, &modifiers); err != nil {
			return nil, err
		}
		if modifiers != "" && modifiers != "null" {
			if err := json.Unmarshal([]byte(modifiers), &item.Modifiers); err != nil {
				return nil, err
			}
		}
		order.Items = append(order.Items, item)
	}

	return order, rows.Err()
}

// UpdateOrderStatus transitions the fulfillment status. Downstream kitchen
// and display collaborators drive this; ingestion never calls it.
func (r *OrderRepository) UpdateOrderStatus(ctx context.Context, id int64, status string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE orders SET status = ? WHERE id = ?`, status, id)
	return err
}
