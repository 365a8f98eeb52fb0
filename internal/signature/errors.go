package signature

import "errors"

var (
	ErrMissingSignature   = errors.New("missing signature")
	ErrMalformedSignature = errors.New("invalid signature header")
	ErrRequestExpired     = errors.New("request expired")
	ErrUnauthorized       = errors.New("request unauthorized")

	// ErrEmptySecret is a configuration error, returned at construction time.
	ErrEmptySecret = errors.New("webhook secret is empty")
)

// Reason identifies the outcome of a single verification.
type Reason int

const (
	ReasonAccepted Reason = iota
	ReasonMissingSignature
	ReasonMalformedSignature
	ReasonRequestExpired
	ReasonUnauthorized
)

func (r Reason) String() string {
	switch r {
	case ReasonAccepted:
		return "accepted"
	case ReasonMissingSignature:
		return "missing_signature"
	case ReasonMalformedSignature:
		return "malformed_signature"
	case ReasonRequestExpired:
		return "request_expired"
	case ReasonUnauthorized:
		return "unauthorized"
	default:
		return "unknown"
	}
}

// Result is the tagged outcome of a verification.
type Result struct {
	Reason Reason
}

// Accepted reports whether the request passed verification.
func (r Result) Accepted() bool {
	return r.Reason == ReasonAccepted
}

// ReasonOf maps a Verify error to its Reason. A nil error is ReasonAccepted.
// Any error that is not one of the verification sentinels maps to
// ReasonUnauthorized so callers fail closed.
func ReasonOf(err error) Reason {
	switch {
	case err == nil:
		return ReasonAccepted
	case errors.Is(err, ErrMissingSignature):
		return ReasonMissingSignature
	case errors.Is(err, ErrMalformedSignature):
		return ReasonMalformedSignature
	case errors.Is(err, ErrRequestExpired):
		return ReasonRequestExpired
	default:
		return ReasonUnauthorized
	}
}
