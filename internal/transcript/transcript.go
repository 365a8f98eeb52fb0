// Package transcript turns verified voice-agent webhook payloads into stored
// conversation transcripts.
package transcript

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mattjoyce/hookgate/internal/log"
)

// Clean trims each line and drops the ones left empty.
func Clean(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

// Lines flattens turns to "role: message" lines, skipping blank messages.
func Lines(turns []Turn) []string {
	out := make([]string, 0, len(turns))
	for _, turn := range turns {
		msg := strings.TrimSpace(turn.Message)
		if msg == "" {
			continue
		}
		role := strings.TrimSpace(turn.Role)
		if role == "" {
			role = "unknown"
		}
		out = append(out, role+": "+msg)
	}
	return Clean(out)
}

// Handler processes delivery payloads.
type Handler struct {
	store  *Store
	logger *slog.Logger
}

func NewHandler(store *Store) *Handler {
	return &Handler{
		store:  store,
		logger: log.WithComponent("transcript"),
	}
}

// Handle parses payload and stores post-call transcripts. Other event types
// return nil without side effects.
func (h *Handler) Handle(ctx context.Context, deliveryID string, payload []byte) error {
	var ev Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return fmt.Errorf("decode event: %w", err)
	}

	if ev.Type != EventPostCallTranscription {
		h.logger.Info("skipping event", "delivery_id", deliveryID, "type", ev.Type)
		return nil
	}

	var data PostCall
	if err := json.Unmarshal(ev.Data, &data); err != nil {
		return fmt.Errorf("decode post-call data: %w", err)
	}
	if data.ConversationID == "" {
		return fmt.Errorf("post-call event has no conversation_id")
	}

	lines := Lines(data.Transcript)
	if len(lines) == 0 {
		return ErrEmptyTranscript
	}

	rec := Record{
		ConversationID: data.ConversationID,
		AgentID:        data.AgentID,
		DeliveryID:     deliveryID,
		Lines:          lines,
	}
	if ev.EventTimestamp > 0 {
		at := time.Unix(ev.EventTimestamp, 0).UTC()
		rec.EventAt = &at
	}

	if err := h.store.Save(ctx, rec); err != nil {
		return err
	}

	h.logger.Info("transcript stored",
		"delivery_id", deliveryID,
		"conversation_id", data.ConversationID,
		"agent_id", data.AgentID,
		"lines", len(lines),
	)
	return nil
}
