package transcript

import (
	"encoding/json"
	"errors"
	"time"
)

// EventPostCallTranscription is the only event type persisted. Other events
// are acknowledged and skipped.
const EventPostCallTranscription = "post_call_transcription"

var (
	ErrEmptyTranscript = errors.New("transcript is empty after cleaning")
	ErrNotFound        = errors.New("transcript not found")
)

// Event is the envelope the voice-agent vendor posts.
type Event struct {
	Type           string          `json:"type"`
	EventTimestamp int64           `json:"event_timestamp"`
	Data           json.RawMessage `json:"data"`
}

// PostCall is the data section of a post_call_transcription event.
type PostCall struct {
	AgentID        string `json:"agent_id"`
	ConversationID string `json:"conversation_id"`
	Transcript     []Turn `json:"transcript"`
}

// Turn is one utterance in a conversation.
type Turn struct {
	Role    string `json:"role"`
	Message string `json:"message"`
}

// Record is a stored, cleaned transcript.
type Record struct {
	ConversationID string
	AgentID        string
	DeliveryID     string
	Lines          []string
	EventAt        *time.Time
	StoredAt       time.Time
}
