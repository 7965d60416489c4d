// Package billing reconciles subscription tier state from payment-provider
// webhook events.
//
// Inbound events are verified with HMAC-SHA256 over the raw request body
// before anything is parsed or applied; a failed verification mutates
// nothing. Event ids are deduplicated through a bounded, TTL-evicted
// cache so provider retries are idempotent.
//
// The subscription store this package owns is the only writer of the
// userID -> tierID mapping; the quota path only ever reads it.
package billing
