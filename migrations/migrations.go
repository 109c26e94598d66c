package migrations

import (
	"database/sql"
	"time"
)

// AutoMigrateOrders creates the orders table if it does not exist.
func AutoMigrateOrders(retries int, db *sql.DB) error {
	query := `
		CREATE TABLE IF NOT EXISTS orders (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			order_number VARCHAR(32) NOT NULL UNIQUE,
			order_type VARCHAR(20) NOT NULL,
			payment_method VARCHAR(20) NOT NULL,
			payment_status VARCHAR(20) NOT NULL,
			status VARCHAR(20) NOT NULL,
			source VARCHAR(20) NOT NULL,
			subtotal_cents BIGINT NOT NULL,
			tax_cents BIGINT NOT NULL,
			tip_cents BIGINT NOT NULL DEFAULT 0,
			total_cents BIGINT NOT NULL,
			customer_name VARCHAR(255) NOT NULL DEFAULT '',
			phone VARCHAR(64) NOT NULL DEFAULT '',
			email VARCHAR(255) NOT NULL DEFAULT '',
			notes TEXT NOT NULL,
			scheduled_time VARCHAR(64) NOT NULL DEFAULT '',
			payment_ref VARCHAR(255) NOT NULL DEFAULT '',
			payment_intent VARCHAR(255) NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`
	return execWithRetry(db, query, retries)
}

// AutoMigrateOrderItems creates the order_items table if it does not exist.
func AutoMigrateOrderItems(retries int, db *sql.DB) error {
	query := `
		CREATE TABLE IF NOT EXISTS order_items (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			order_id BIGINT NOT NULL,
			item_id VARCHAR(64) NOT NULL,
			name VARCHAR(255) NOT NULL,
			quantity INT NOT NULL,
			unit_price_cents BIGINT NOT NULL,
			line_total_cents BIGINT NOT NULL,
			modifiers JSON,
			FOREIGN KEY (order_id) REFERENCES orders(id) ON DELETE CASCADE
		);
	`
	return execWithRetry(db, query, retries)
}

// AutoMigratePaymentEvents creates the payment_events table if it does not
// exist. The unique index over event_id is the idempotency gate.
func AutoMigratePaymentEvents(retries int, db *sql.DB) error {
	query := `
		CREATE TABLE IF NOT EXISTS payment_events (
			event_id VARCHAR(255) PRIMARY KEY,
			event_type VARCHAR(64) NOT NULL,
			status VARCHAR(20) NOT NULL,
			order_id BIGINT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`
	return execWithRetry(db, query, retries)
}

func execWithRetry(db *sql.DB, query string, retries int) error {
	_, err := db.Exec(query)
	for i := 0; err != nil && i < retries; i++ {
		time.Sleep(1 * time.Second)
		_, err = db.Exec(query)
	}
	return err
}
