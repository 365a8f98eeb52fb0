package signature

import (
	"strconv"
	"strings"
	"time"
)

const (
	timestampPrefix = "t="
	signaturePrefix = "v0="
)

// Header is a parsed signature header.
type Header struct {
	// Timestamp is the raw t= value. It is signed as-is, so it is kept as text.
	Timestamp string

	// Signature is the whole v0= token, prefix included.
	Signature string
}

// ParseHeader extracts the t= and v0= tokens from a header value. Tokens are
// matched by prefix, not position; the first match wins. Tokens are not
// trimmed, so a space after a comma hides the token that follows it.
func ParseHeader(value string) (Header, error) {
	if value == "" {
		return Header{}, ErrMissingSignature
	}

	var h Header
	var haveTS, haveSig bool
	for _, token := range strings.Split(value, ",") {
		switch {
		case !haveTS && strings.HasPrefix(token, timestampPrefix):
			h.Timestamp = token[len(timestampPrefix):]
			haveTS = true
		case !haveSig && strings.HasPrefix(token, signaturePrefix):
			h.Signature = token
			haveSig = true
		}
	}

	if h.Timestamp == "" || len(h.Signature) <= len(signaturePrefix) {
		return Header{}, ErrMalformedSignature
	}
	return h, nil
}

// Unix returns the header timestamp as seconds since the epoch.
func (h Header) Unix() (int64, error) {
	secs, err := strconv.ParseInt(h.Timestamp, 10, 64)
	if err != nil {
		return 0, ErrMalformedSignature
	}
	return secs, nil
}

// TimestampTime converts a header timestamp in whole seconds to a time.Time.
// Comparisons against the clock happen on time.Time values, so no millisecond
// arithmetic is involved.
func TimestampTime(secs int64) time.Time {
	return time.Unix(secs, 0)
}

// FormatHeader builds a header value from a timestamp and a v0= token.
func FormatHeader(timestamp int64, sig string) string {
	return timestampPrefix + strconv.FormatInt(timestamp, 10) + "," + sig
}
