// Package webhook serves signed webhook endpoints for the voice-agent vendor.
//
// Every POST is authenticated by package signature before anything else looks
// at the payload. Accepted bodies are handed unmodified to a Queuer; the
// dispatcher processes them later.
//
// # Configuration
//
// Endpoints come from config.yaml (or the defaults when only WEBHOOK_SECRET is
// set):
//
//	webhooks:
//	  listen: "0.0.0.0:3000"
//	  endpoints:
//	    - path: /webhook/elevenlabs
//	      secret_env: WEBHOOK_SECRET
//	      signature_header: ElevenLabs-Signature
//	      tolerance: 30m
//	      max_body_size: 1MB
//
// # Request Flow
//
//  1. HTTP POST arrives at a configured path
//  2. Body read once, raw (413 if over max_body_size)
//  3. Signature header parsed and checked (see package signature)
//  4. Optional replay guard (409 on a repeated signature)
//  5. Raw body enqueued as a delivery
//  6. 200 "ok"
//
// # Error Responses
//
// Bodies are plain text and never include digests or secrets.
//
//   - 400 Missing signature
//   - 400 Invalid signature header
//   - 403 Request expired
//   - 401 Request unauthorized
//   - 409 Request already processed
//   - 413 Payload too large
//   - 500 Internal error
package webhook
