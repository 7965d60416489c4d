package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/grump-ai/gateway/pkg/auth"
	"github.com/grump-ai/gateway/pkg/billing"
	"github.com/grump-ai/gateway/pkg/contextkeys"
	"github.com/grump-ai/gateway/pkg/tiers"
)

// AuthMiddleware validates bearer tokens and resolves the caller's
// subscription tier into the request context.
type AuthMiddleware struct {
	validator auth.Validator
	subs      *billing.SubscriptionStore
	catalog   *tiers.Catalog
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(validator auth.Validator, subs *billing.SubscriptionStore, catalog *tiers.Catalog) *AuthMiddleware {
	return &AuthMiddleware{
		validator: validator,
		subs:      subs,
		catalog:   catalog,
	}
}

// Handler wraps an HTTP handler with bearer-token authentication.
// On success the request context carries the user id and resolved tier.
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			unauthorizedResponse(w, "missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			unauthorizedResponse(w, "invalid authorization header format")
			return
		}

		identity, err := m.validator.Validate(parts[1])
		if err != nil {
			unauthorizedResponse(w, "invalid or expired token")
			return
		}

		// Tier resolution never fails: unknown ids fall back inside the catalog.
		tier := m.catalog.Get(m.subs.TierFor(identity.UserID))

		ctx := contextkeys.WithUserID(r.Context(), identity.UserID)
		ctx = context.WithValue(ctx, contextkeys.TierKey, tier)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// TierFromContext retrieves the resolved tier, reporting ok=false when
// AuthMiddleware has not run.
func TierFromContext(ctx context.Context) (tiers.Tier, bool) {
	t, ok := ctx.Value(contextkeys.TierKey).(tiers.Tier)
	return t, ok
}

func unauthorizedResponse(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"` + message + `"}`))
}
