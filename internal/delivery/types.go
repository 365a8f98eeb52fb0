package delivery

import (
	"errors"
	"time"
)

type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusDone       Status = "done"
	StatusFailed     Status = "failed"
)

// Delivery is an authenticated webhook payload awaiting or past processing.
type Delivery struct {
	ID                 string
	Source             string
	Payload            []byte
	SignatureTimestamp int64
	Status             Status
	ReceivedAt         time.Time
	StartedAt          *time.Time
	CompletedAt        *time.Time
	LastError          *string
}

type EnqueueRequest struct {
	// Source names the endpoint the payload arrived on, e.g. "/webhook/elevenlabs".
	Source string

	// Payload is the raw request body exactly as it was verified.
	Payload []byte

	// SignatureTimestamp is the t= value from the signature header.
	SignatureTimestamp int64
}

var ErrDeliveryNotFound = errors.New("delivery not found")
