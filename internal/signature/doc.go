// Package signature authenticates inbound webhook requests signed with a
// shared-secret HMAC-SHA256 and a timestamp freshness window.
//
// # Header Format
//
// The signature header carries comma-separated key=value tokens in any order:
//
//	ElevenLabs-Signature: t=1700000000,v0=5f2b...e1
//
// t is the sender's unix time in seconds. v0 is the lowercase hex
// HMAC-SHA256 of "<t>.<raw body>" keyed with the shared secret.
//
// # Verification Order
//
//  1. Header present, else ErrMissingSignature
//  2. t= and v0= tokens present and non-empty, and t a base-10 integer,
//     else ErrMalformedSignature
//  3. t within the tolerance window, else ErrRequestExpired
//  4. Recompute "v0=" + hex(HMAC) over the exact raw body
//  5. Constant-time compare, else ErrUnauthorized
//
// A non-numeric t is rejected as malformed rather than left to fail the
// digest compare, so a garbled header reads as 400 and not as a bad secret.
// Tokens are matched exactly as sent; "t=1, v0=..." has no v0 token.
//
// The first failure is returned; reasons are never aggregated. Error values are
// fixed strings and never include the secret or the computed digest.
//
// The timestamp window bounds replay exposure but does not prevent an
// identical request from being replayed inside it. See package replay.
package signature
