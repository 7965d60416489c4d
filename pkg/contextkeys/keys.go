// Package contextkeys provides centralized context key definitions.
//
// All context keys used across the application are defined here. This
// prevents typos, documents dependencies between middleware layers, and
// makes key usage discoverable.
package contextkeys

import "context"

// Key is the type for context keys to prevent collisions
type Key string

const (
	// UserIDKey contains the authenticated user id string.
	// Set by: middleware.AuthMiddleware
	// Required by: middleware.GovernMiddleware, usage handlers
	UserIDKey Key = "user_id"

	// TierKey contains the resolved tiers.Tier value.
	// Set by: middleware.AuthMiddleware
	// Required by: middleware.GovernMiddleware
	TierKey Key = "tier"

	// CredentialKey contains the credentials.Credential acquired for this
	// request. Set by: middleware.GovernMiddleware after a successful
	// Authorize. Consumed by the upstream-calling handler. Never logged.
	CredentialKey Key = "upstream_credential"

	// RemainingKey contains the remaining quota (int64) observed at
	// authorization time. Set by: middleware.GovernMiddleware.
	RemainingKey Key = "quota_remaining"
)

// WithUserID adds the authenticated user id to the context
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

// UserID retrieves the authenticated user id, or "" if unset
func UserID(ctx context.Context) string {
	if v, ok := ctx.Value(UserIDKey).(string); ok {
		return v
	}
	return ""
}
