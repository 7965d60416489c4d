// Package governor composes the quota ledger, credential pool, and usage
// recorder behind a single façade. It is the only entry point used by
// request-handling middleware.
//
// A governed request moves Authorize -> upstream call -> Commit, sequenced by
// the caller. The governor never invokes Commit itself and never rolls back:
// an upstream call that fails or is cancelled after Authorize simply never
// commits, and the reserved quota slot is not refunded.
package governor

import (
	"errors"

	"github.com/grump-ai/gateway/pkg/credentials"
	"github.com/grump-ai/gateway/pkg/observability"
	"github.com/grump-ai/gateway/pkg/quota"
	"github.com/grump-ai/gateway/pkg/tiers"
	"github.com/grump-ai/gateway/pkg/usage"
)

// DenyReason distinguishes why an authorization was refused
type DenyReason string

const (
	ReasonNone                DenyReason = ""
	ReasonQuotaExceeded       DenyReason = "quota_exceeded"
	ReasonProviderUnavailable DenyReason = "provider_unavailable"
)

// Sentinel errors for callers that prefer errors.Is over inspecting Result
var (
	ErrQuotaExceeded       = errors.New("governor: monthly quota exceeded")
	ErrProviderUnavailable = errors.New("governor: no upstream credentials configured")
)

// Result is the outcome of an authorization
type Result struct {
	Allowed    bool
	Remaining  int64
	Credential credentials.Credential
	Reason     DenyReason
}

// Err maps a denied result to its sentinel error, or nil when allowed
func (r Result) Err() error {
	switch r.Reason {
	case ReasonQuotaExceeded:
		return ErrQuotaExceeded
	case ReasonProviderUnavailable:
		return ErrProviderUnavailable
	default:
		return nil
	}
}

// Governor is the request-governance façade
type Governor struct {
	ledger   *quota.Ledger
	pool     *credentials.Pool
	recorder *usage.Recorder
	metrics  *observability.Metrics
}

// New creates a governor over the given collaborators
func New(ledger *quota.Ledger, pool *credentials.Pool, recorder *usage.Recorder, metrics *observability.Metrics) *Governor {
	return &Governor{
		ledger:   ledger,
		pool:     pool,
		recorder: recorder,
		metrics:  metrics,
	}
}

// Authorize checks the user's quota and, if allowed, acquires a credential
// from the pool. Quota is checked first so a quota-exhausted user does not
// consume a rotation slot. Both denial conditions are recoverable outcomes,
// never panics.
func (g *Governor) Authorize(userID string, tier tiers.Tier) Result {
	decision := g.ledger.Check(userID, tier)
	if g.metrics != nil {
		g.metrics.QuotaRemaining.WithLabelValues(string(tier.ID)).Set(float64(decision.Remaining))
	}

	if !decision.Allowed {
		g.observe("quota_exceeded")
		return Result{
			Allowed:   false,
			Remaining: decision.Remaining,
			Reason:    ReasonQuotaExceeded,
		}
	}

	cred, ok := g.pool.Next()
	if !ok {
		g.observe("provider_unavailable")
		return Result{
			Allowed:   false,
			Remaining: decision.Remaining,
			Reason:    ReasonProviderUnavailable,
		}
	}

	g.observe("allowed")
	return Result{
		Allowed:    true,
		Remaining:  decision.Remaining,
		Credential: cred,
	}
}

// Commit records one completed governed call: the quota counter increments
// and the usage log gains a record. Callers invoke this only after the
// upstream call is known to have been attempted.
func (g *Governor) Commit(userID string, rec usage.Record) {
	rec.UserID = userID
	g.ledger.Record(userID)
	g.recorder.RecordAPICall(rec)

	if g.metrics != nil {
		g.metrics.CommitsTotal.Inc()
	}
}

// RecordTokenUsage forwards token-cost metering to the usage recorder
func (g *Governor) RecordTokenUsage(userID, model string, inputTokens, outputTokens int64, costUSD float64) {
	g.recorder.RecordTokenUsage(userID, model, inputTokens, outputTokens, costUSD)
}

// Remaining returns the user's remaining quota without acquiring a credential
func (g *Governor) Remaining(userID string, tier tiers.Tier) int64 {
	return g.ledger.Check(userID, tier).Remaining
}

func (g *Governor) observe(outcome string) {
	if g.metrics != nil {
		g.metrics.AuthorizeTotal.WithLabelValues(outcome).Inc()
	}
}
