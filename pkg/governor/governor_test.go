package governor

import (
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grump-ai/gateway/pkg/credentials"
	"github.com/grump-ai/gateway/pkg/observability"
	"github.com/grump-ai/gateway/pkg/quota"
	"github.com/grump-ai/gateway/pkg/tiers"
	"github.com/grump-ai/gateway/pkg/usage"
)

func quietLogger() *observability.Logger {
	return observability.NewLogger(observability.ErrorLevel, io.Discard)
}

func newTestGovernor(clock *time.Time, creds ...credentials.Credential) *Governor {
	now := func() time.Time {
		if clock != nil {
			return *clock
		}
		return time.Now()
	}
	ledger := quota.NewLedgerWithClock(now)
	pool := credentials.NewPool(credentials.NewStaticSource(creds...), time.Hour, quietLogger(), nil)
	recorder := usage.NewRecorder(100, nil)
	return New(ledger, pool, recorder, nil)
}

func freeTier() tiers.Tier {
	return tiers.Tier{ID: tiers.TierFree, MonthlyCallLimit: 50}
}

func TestGovernor_AuthorizeAllowed(t *testing.T) {
	g := newTestGovernor(nil, "sk-a")

	res := g.Authorize("u1", freeTier())
	require.True(t, res.Allowed)
	assert.EqualValues(t, 50, res.Remaining)
	assert.NotEmpty(t, res.Credential)
	assert.Equal(t, ReasonNone, res.Reason)
	assert.NoError(t, res.Err())
}

func TestGovernor_QuotaExceeded(t *testing.T) {
	g := newTestGovernor(nil, "sk-a")
	tier := tiers.Tier{ID: "tiny", MonthlyCallLimit: 1}

	g.Commit("u1", usage.Record{Endpoint: "/v1/generate"})

	res := g.Authorize("u1", tier)
	require.False(t, res.Allowed)
	assert.Equal(t, ReasonQuotaExceeded, res.Reason)
	assert.EqualValues(t, 0, res.Remaining)
	assert.Empty(t, res.Credential)
	assert.ErrorIs(t, res.Err(), ErrQuotaExceeded)
}

func TestGovernor_ProviderUnavailable(t *testing.T) {
	g := newTestGovernor(nil) // no credentials configured

	res := g.Authorize("u1", freeTier())
	require.False(t, res.Allowed)
	assert.Equal(t, ReasonProviderUnavailable, res.Reason)
	assert.EqualValues(t, 50, res.Remaining, "quota was fine; only the pool is empty")
	assert.ErrorIs(t, res.Err(), ErrProviderUnavailable)
}

func TestGovernor_CommitRecordsUsageAndQuota(t *testing.T) {
	ledger := quota.NewLedger()
	pool := credentials.NewPool(credentials.NewStaticSource("sk-a"), time.Hour, quietLogger(), nil)
	recorder := usage.NewRecorder(100, nil)
	g := New(ledger, pool, recorder, nil)

	g.Commit("u1", usage.Record{Endpoint: "/v1/generate", Method: "POST", Success: true})

	assert.EqualValues(t, 1, ledger.Used("u1"))
	assert.Equal(t, 1, recorder.MonthlyCallCount("u1"))
}

func TestGovernor_FiftyCallFreeTierScenario(t *testing.T) {
	now := time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)
	g := newTestGovernor(&now, "sk-a", "sk-b")
	tier := freeTier()

	for i := 0; i < 50; i++ {
		res := g.Authorize("u1", tier)
		require.True(t, res.Allowed, "call %d should be allowed", i+1)
		assert.EqualValues(t, 50-i, res.Remaining)
		g.Commit("u1", usage.Record{Endpoint: "/v1/generate", Success: true})
	}

	res := g.Authorize("u1", tier)
	require.False(t, res.Allowed, "51st call must be denied")
	assert.EqualValues(t, 0, res.Remaining)
	assert.Equal(t, ReasonQuotaExceeded, res.Reason)

	// Cross the month boundary: the quota resets in full.
	now = time.Date(2026, time.April, 1, 0, 0, 1, 0, time.UTC)
	res = g.Authorize("u1", tier)
	require.True(t, res.Allowed)
	assert.EqualValues(t, 50, res.Remaining)
}

func TestGovernor_UncommittedAuthorizeNotRefunded(t *testing.T) {
	g := newTestGovernor(nil, "sk-a")
	tier := freeTier()

	// Authorize without committing, as a cancelled upstream call would.
	res := g.Authorize("u1", tier)
	require.True(t, res.Allowed)

	// The slot is only consumed by Commit; an abandoned authorize leaves
	// the counter untouched.
	assert.EqualValues(t, 50, g.Remaining("u1", tier))
}

func TestGovernor_TokenUsagePassthrough(t *testing.T) {
	recorder := usage.NewRecorder(100, nil)
	g := New(quota.NewLedger(), credentials.NewPool(credentials.NewStaticSource("sk-a"), time.Hour, quietLogger(), nil), recorder, nil)

	g.RecordTokenUsage("u1", "claude-sonnet", 100, 20, 0.001)

	toks := recorder.TokensForUser("u1", time.Time{}, time.Now().Add(time.Hour))
	require.Len(t, toks, 1)
	assert.Equal(t, "claude-sonnet", toks[0].Model)
}
