package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"time"

	"github.com/mailgun/holster/v4/clock"
)

const (
	// DefaultTolerance is the maximum age of a signed request.
	DefaultTolerance = 30 * time.Minute

	// DefaultHeader is the header the voice-agent vendor signs with.
	DefaultHeader = "ElevenLabs-Signature"
)

// Verifier checks signed webhook requests against one shared secret.
// It holds no mutable state and is safe for concurrent use.
type Verifier struct {
	secret    []byte
	tolerance time.Duration
	now       func() time.Time
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithTolerance overrides DefaultTolerance. Non-positive values are ignored.
func WithTolerance(d time.Duration) Option {
	return func(v *Verifier) {
		if d > 0 {
			v.tolerance = d
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(v *Verifier) {
		if now != nil {
			v.now = now
		}
	}
}

// NewVerifier returns a Verifier for secret. An empty secret is a
// configuration error.
func NewVerifier(secret string, opts ...Option) (*Verifier, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	v := &Verifier{
		secret:    []byte(secret),
		tolerance: DefaultTolerance,
		now:       clock.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// Tolerance returns the configured freshness window.
func (v *Verifier) Tolerance() time.Duration {
	return v.tolerance
}

// Verify authenticates a request given its signature header value and raw body.
func (v *Verifier) Verify(header string, body []byte) error {
	_, err := v.verify(header, body)
	return err
}

// VerifyHeader is Verify that also returns the parsed header on success, for
// callers that key follow-up work (replay tracking) on it.
func (v *Verifier) VerifyHeader(header string, body []byte) (Header, error) {
	return v.verify(header, body)
}

// Evaluate runs Verify and returns the tagged outcome.
func (v *Verifier) Evaluate(header string, body []byte) Result {
	return Result{Reason: ReasonOf(v.Verify(header, body))}
}

func (v *Verifier) verify(header string, body []byte) (Header, error) {
	h, err := ParseHeader(header)
	if err != nil {
		return Header{}, err
	}

	secs, err := h.Unix()
	if err != nil {
		return Header{}, err
	}
	cutoff := v.now().Add(-v.tolerance)
	if TimestampTime(secs).Before(cutoff) {
		return Header{}, ErrRequestExpired
	}

	expected := sign(v.secret, h.Timestamp, body)
	if subtle.ConstantTimeCompare([]byte(expected), []byte(h.Signature)) != 1 {
		return Header{}, ErrUnauthorized
	}
	return h, nil
}

// Verify is the stateless form of Verifier.Verify. A non-positive tolerance
// falls back to DefaultTolerance.
func Verify(header string, body []byte, secret string, now time.Time, tolerance time.Duration) error {
	v, err := NewVerifier(secret,
		WithTolerance(tolerance),
		WithClock(func() time.Time { return now }),
	)
	if err != nil {
		return err
	}
	return v.Verify(header, body)
}

// Sign returns the v0= token for timestamp and body under secret.
func Sign(secret, timestamp string, body []byte) string {
	return sign([]byte(secret), timestamp, body)
}

func sign(secret []byte, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(timestamp))
	mac.Write([]byte{'.'})
	mac.Write(body)
	return signaturePrefix + hex.EncodeToString(mac.Sum(nil))
}
