package webhook

import (
	"context"
	"time"

	"github.com/mattjoyce/hookgate/internal/delivery"
)

//go:generate mockgen -destination=mocks/mock_queuer.go -package=mocks github.com/mattjoyce/hookgate/internal/webhook Queuer

// Queuer accepts verified payloads for downstream processing.
type Queuer interface {
	Enqueue(ctx context.Context, req delivery.EnqueueRequest) (string, error)
}

// Config holds webhook server configuration.
type Config struct {
	Listen    string
	Endpoints []EndpointConfig
}

// EndpointConfig defines a single signed webhook endpoint.
type EndpointConfig struct {
	// Path is the URL path for this webhook (e.g., "/webhook/elevenlabs")
	Path string

	// Secret is the resolved HMAC secret. Never logged.
	Secret string

	// SignatureHeader is the HTTP header carrying "t=<unix>,v0=<hex>"
	SignatureHeader string

	// Tolerance is the maximum request age (default: 30m)
	Tolerance time.Duration

	// MaxBodySize is the maximum allowed request body size in bytes (default: 1MB)
	MaxBodySize int64
}

// HealthResponse is the JSON body of GET /healthz.
type HealthResponse struct {
	Status string `json:"status"`
}

// Default values
const (
	DefaultMaxBodySize = 1048576 // 1 MB
)

// Response bodies. Kept terse and generic so rejections reveal nothing about
// the expected digest.
const (
	bodyMissingSignature   = "Missing signature"
	bodyMalformedSignature = "Invalid signature header"
	bodyRequestExpired     = "Request expired"
	bodyUnauthorized       = "Request unauthorized"
	bodyReplayed           = "Request already processed"
	bodyTooLarge           = "Payload too large"
	bodyInternal           = "Internal error"
	bodyOK                 = "ok"
)
