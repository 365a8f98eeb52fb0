package transcript

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Save upserts a transcript by conversation id. A redelivered conversation
// replaces the earlier copy.
func (s *Store) Save(ctx context.Context, rec Record) error {
	if rec.ConversationID == "" {
		return fmt.Errorf("conversation_id is empty")
	}
	lines, err := json.Marshal(rec.Lines)
	if err != nil {
		return fmt.Errorf("marshal lines: %w", err)
	}

	var eventAt any
	if rec.EventAt != nil {
		eventAt = rec.EventAt.UTC().Format(time.RFC3339)
	}

	_, err = s.db.ExecContext(ctx, `
INSERT INTO transcript(conversation_id, agent_id, delivery_id, lines, event_at, stored_at)
VALUES(?, ?, ?, ?, ?, ?)
ON CONFLICT(conversation_id) DO UPDATE SET
  agent_id = excluded.agent_id,
  delivery_id = excluded.delivery_id,
  lines = excluded.lines,
  event_at = excluded.event_at,
  stored_at = excluded.stored_at;
`, rec.ConversationID, rec.AgentID, rec.DeliveryID, string(lines), eventAt, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("save transcript: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, conversationID string) (*Record, error) {
	var (
		rec       Record
		linesS    string
		eventAtS  sql.NullString
		storedAtS string
	)
	err := s.db.QueryRowContext(ctx, `
SELECT conversation_id, agent_id, delivery_id, lines, event_at, stored_at
FROM transcript
WHERE conversation_id = ?;
`, conversationID).Scan(&rec.ConversationID, &rec.AgentID, &rec.DeliveryID, &linesS, &eventAtS, &storedAtS)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get transcript: %w", err)
	}

	if err := json.Unmarshal([]byte(linesS), &rec.Lines); err != nil {
		return nil, fmt.Errorf("decode transcript lines: %w", err)
	}
	if eventAtS.Valid {
		if t, err := time.Parse(time.RFC3339, eventAtS.String); err == nil {
			rec.EventAt = &t
		}
	}
	if t, err := time.Parse(time.RFC3339Nano, storedAtS); err == nil {
		rec.StoredAt = t
	}
	return &rec, nil
}
