package idempotency

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-sql-driver/mysql"
	"order-ingest/internal/entity"
)

const mysqlDuplicateEntry = 1062

// BeginResult is the outcome of BeginProcessing. When Started is false a
// concurrent or earlier delivery already owns the event; PriorStatus and
// OrderID describe what that delivery recorded (OrderID 0 if none yet).
type BeginResult struct {
	Started     bool
	PriorStatus string
	OrderID     int64
}

// Store owns the payment_events table. Exactly-once processing rests on the
// unique index over event_id: the bare insert either wins or collides, there
// is no read-then-write window.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// BeginProcessing claims eventID by inserting it in status processing. A
// duplicate-key error means another delivery already claimed it; a failed
// record is reclaimed atomically (one winner under concurrent retries) so
// the provider's redelivery can reprocess it, otherwise the prior record's
// status and linked order id are returned.
func (s *Store) BeginProcessing(ctx context.Context, eventID, eventType string) (BeginResult, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO payment_events (event_id, event_type, status) VALUES (?, ?, ?)`,
		eventID, eventType, entity.EventStatusProcessing,
	)
	if err == nil {
		return BeginResult{Started: true}, nil
	}

	var mysqlErr *mysql.MySQLError
	if !errors.As(err, &mysqlErr) || mysqlErr.Number != mysqlDuplicateEntry {
		return BeginResult{}, err
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE payment_events SET status = ? WHERE event_id = ? AND status = ?`,
		entity.EventStatusProcessing, eventID, entity.EventStatusFailed,
	)
	if err != nil {
		return BeginResult{}, err
	}
	if n, err := res.RowsAffected(); err == nil && n == 1 {
		return BeginResult{Started: true}, nil
	}

	var status string
	var orderID sql.NullInt64
	row := s.db.QueryRowContext(ctx,
		`SELECT status, order_id FROM payment_events WHERE event_id = ?`, eventID)
	if err := row.Scan(&status, &orderID); err != nil {
		return BeginResult{}, err
	}
	return BeginResult{Started: false, PriorStatus: status, OrderID: orderID.Int64}, nil
}

// Complete marks eventID processed and links the created order. The status
// guard makes it a no-op if the record already reached a terminal state.
func (s *Store) Complete(ctx context.Context, eventID string, orderID int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE payment_events SET order_id = ?, status = ? WHERE event_id = ? AND status = ?`,
		orderID, entity.EventStatusProcessed, eventID, entity.EventStatusProcessing,
	)
	return err
}

// Fail marks eventID failed so the provider's redelivery can retry it. Like
// Complete, terminal records are left untouched.
func (s *Store) Fail(ctx context.Context, eventID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE payment_events SET status = ? WHERE event_id = ? AND status = ?`,
		entity.EventStatusFailed, eventID, entity.EventStatusProcessing,
	)
	return err
}
