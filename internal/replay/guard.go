// Package replay rejects signed webhook requests that were already accepted
// inside their freshness window.
//
// A signature token uniquely identifies (timestamp, body) under one secret, so
// the BLAKE3 hash of the token is the replay key. Keys only need to live until
// the request would be rejected as expired anyway.
package replay

import (
	"context"
	"encoding/hex"
	"errors"
	"time"

	"github.com/zeebo/blake3"
)

// ErrReplayed is returned when a request's signature was already accepted.
var ErrReplayed = errors.New("request already processed")

// Guard records accepted signatures.
type Guard interface {
	// Seen reports whether key was recorded and has not expired. If it was
	// not, Seen records it until expires.
	Seen(ctx context.Context, key string, expires time.Time) (bool, error)

	// Forget drops key, so the next Seen for it records it afresh.
	Forget(ctx context.Context, key string) error

	// Prune drops expired keys.
	Prune(ctx context.Context) error
}

// Key derives the replay key for a v0= signature token.
func Key(signature string) string {
	sum := blake3.Sum256([]byte(signature))
	return hex.EncodeToString(sum[:])
}

// Check is a convenience wrapper returning ErrReplayed for a seen signature.
func Check(ctx context.Context, g Guard, signature string, expires time.Time) error {
	seen, err := g.Seen(ctx, Key(signature), expires)
	if err != nil {
		return err
	}
	if seen {
		return ErrReplayed
	}
	return nil
}

// Release undoes Check for a signature whose delivery could not be stored.
func Release(ctx context.Context, g Guard, signature string) error {
	return g.Forget(ctx, Key(signature))
}
