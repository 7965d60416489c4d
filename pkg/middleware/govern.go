package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/grump-ai/gateway/pkg/contextkeys"
	"github.com/grump-ai/gateway/pkg/credentials"
	"github.com/grump-ai/gateway/pkg/governor"
	"github.com/grump-ai/gateway/pkg/usage"
)

// QuotaRemainingHeader reports the caller's remaining monthly calls
const QuotaRemainingHeader = "X-Quota-Remaining"

// GovernMiddleware authorizes governed requests and commits usage.
//
// REQUIRES: AuthMiddleware must run before this middleware. A request with
// no identity in context is rejected outright; governance is never silently
// skipped.
type GovernMiddleware struct {
	governor *governor.Governor
}

// NewGovernMiddleware creates a new governance middleware
func NewGovernMiddleware(g *governor.Governor) *GovernMiddleware {
	return &GovernMiddleware{governor: g}
}

// Handler wraps an upstream-calling handler. Denied requests are rejected
// before the handler runs: 429 for quota exhaustion, 503 when no credential
// is available. Allowed requests carry the acquired credential in context
// and are committed after the handler returns, with the observed latency and
// response status.
func (m *GovernMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := contextkeys.UserID(r.Context())
		tier, ok := TierFromContext(r.Context())
		if userID == "" || !ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":"authentication required"}`))
			return
		}

		result := m.governor.Authorize(userID, tier)
		w.Header().Set(QuotaRemainingHeader, strconv.FormatInt(result.Remaining, 10))

		if !result.Allowed {
			rejectDenied(w, result.Reason)
			return
		}

		ctx := context.WithValue(r.Context(), contextkeys.CredentialKey, result.Credential)
		ctx = context.WithValue(ctx, contextkeys.RemainingKey, result.Remaining)

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(ctx))

		// The handler has attempted the upstream call by now; commit
		// unconditionally. A failed upstream still consumed the slot.
		m.governor.Commit(userID, usage.Record{
			Endpoint:  r.URL.Path,
			Method:    r.Method,
			LatencyMs: time.Since(start).Milliseconds(),
			Success:   rec.status < http.StatusInternalServerError,
		})
	})
}

// CredentialFromContext retrieves the credential acquired for this request.
// ok=false means GovernMiddleware did not run or denied the request.
func CredentialFromContext(ctx context.Context) (credentials.Credential, bool) {
	c, ok := ctx.Value(contextkeys.CredentialKey).(credentials.Credential)
	return c, ok
}

func rejectDenied(w http.ResponseWriter, reason governor.DenyReason) {
	w.Header().Set("Content-Type", "application/json")
	switch reason {
	case governor.ReasonQuotaExceeded:
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":"monthly quota exceeded","reason":"quota_exceeded"}`))
	case governor.ReasonProviderUnavailable:
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"error":"upstream provider unavailable","reason":"provider_unavailable"}`))
	default:
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":"request not allowed"}`))
	}
}

// statusRecorder captures the wrapped handler's response status
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
