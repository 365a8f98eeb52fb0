package delivery

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

const maxErrorBytes = 4 * 1024

// timeLayout is fixed-width so received_at sorts lexically in arrival order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Queue persists accepted webhook payloads until the dispatcher handles them.
type Queue struct {
	db *sql.DB
}

func New(db *sql.DB) *Queue {
	return &Queue{db: db}
}

func (q *Queue) Enqueue(ctx context.Context, req EnqueueRequest) (string, error) {
	if req.Source == "" {
		return "", fmt.Errorf("source is empty")
	}
	if req.Payload == nil {
		req.Payload = []byte{}
	}

	id := uuid.NewString()
	now := time.Now().UTC().Format(timeLayout)

	_, err := q.db.ExecContext(ctx, `
INSERT INTO webhook_delivery(id, source, payload, signature_timestamp, status, received_at)
VALUES(?, ?, ?, ?, ?, ?);
`, id, req.Source, req.Payload, req.SignatureTimestamp, StatusQueued, now)
	if err != nil {
		return "", fmt.Errorf("enqueue delivery: %w", err)
	}
	return id, nil
}

// Dequeue claims the oldest queued delivery and marks it processing. Returns
// (nil, nil) if the queue is empty.
func (q *Queue) Dequeue(ctx context.Context) (*Delivery, error) {
	nowS := time.Now().UTC().Format(timeLayout)

	row := q.db.QueryRowContext(ctx, `
WITH next AS (
  SELECT id
  FROM webhook_delivery
  WHERE status = ?
  ORDER BY received_at ASC, rowid ASC
  LIMIT 1
)
UPDATE webhook_delivery
SET status = ?, started_at = ?
WHERE id IN (SELECT id FROM next)
RETURNING id, source, payload, signature_timestamp, status, received_at, started_at, completed_at, last_error;
`, StatusQueued, StatusProcessing, nowS)

	d, err := scanDelivery(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("dequeue delivery: %w", err)
	}
	return d, nil
}

// Complete marks a delivery terminal.
func (q *Queue) Complete(ctx context.Context, id string, status Status, lastError *string) error {
	if id == "" {
		return fmt.Errorf("delivery id is empty")
	}
	if status != StatusDone && status != StatusFailed {
		return fmt.Errorf("invalid terminal status: %q", status)
	}

	var errVal any
	if lastError != nil {
		errVal = truncateError(*lastError)
	}

	res, err := q.db.ExecContext(ctx, `
UPDATE webhook_delivery
SET status = ?, completed_at = ?, last_error = ?
WHERE id = ?;
`, status, time.Now().UTC().Format(timeLayout), errVal, id)
	if err != nil {
		return fmt.Errorf("complete delivery: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("complete delivery: %w", err)
	}
	if n == 0 {
		return ErrDeliveryNotFound
	}
	return nil
}

// truncateError caps s at maxErrorBytes without splitting a UTF-8 sequence.
func truncateError(s string) string {
	if len(s) <= maxErrorBytes {
		return s
	}
	cut := maxErrorBytes
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func (q *Queue) Get(ctx context.Context, id string) (*Delivery, error) {
	row := q.db.QueryRowContext(ctx, `
SELECT id, source, payload, signature_timestamp, status, received_at, started_at, completed_at, last_error
FROM webhook_delivery
WHERE id = ?;
`, id)
	d, err := scanDelivery(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDeliveryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get delivery: %w", err)
	}
	return d, nil
}

func scanDelivery(row *sql.Row) (*Delivery, error) {
	var (
		d            Delivery
		statusS      string
		receivedAtS  string
		startedAtS   sql.NullString
		completedAtS sql.NullString
		lastError    sql.NullString
	)
	if err := row.Scan(
		&d.ID, &d.Source, &d.Payload, &d.SignatureTimestamp, &statusS,
		&receivedAtS, &startedAtS, &completedAtS, &lastError,
	); err != nil {
		return nil, err
	}

	d.Status = Status(statusS)
	if t, err := time.Parse(timeLayout, receivedAtS); err == nil {
		d.ReceivedAt = t
	}
	if startedAtS.Valid {
		if t, err := time.Parse(timeLayout, startedAtS.String); err == nil {
			d.StartedAt = &t
		}
	}
	if completedAtS.Valid {
		if t, err := time.Parse(timeLayout, completedAtS.String); err == nil {
			d.CompletedAt = &t
		}
	}
	if lastError.Valid {
		d.LastError = &lastError.String
	}
	return &d, nil
}
