// Package quota tracks per-user monthly call counters against tier limits.
//
// The ledger is a soft limit: Check and Record are separate operations, so
// concurrent in-flight requests for the same user can overshoot the limit
// by their own count. The usage log is the audit trail that billing
// reconciles against; the ledger exists for abuse prevention, not exact
// accounting.
package quota

import (
	"sync"
	"time"

	"github.com/grump-ai/gateway/pkg/tiers"
)

// Decision is the outcome of a quota check
type Decision struct {
	Allowed   bool  `json:"allowed"`
	Remaining int64 `json:"remaining"`
}

// Ledger holds per-user call counters for the current UTC month. It keeps a
// single shared month cursor: the first operation observed in a new month
// clears every user's counter, not just the caller's.
type Ledger struct {
	mu       sync.Mutex
	counters map[string]int64
	month    string

	now func() time.Time
}

// NewLedger creates an empty ledger
func NewLedger() *Ledger {
	return NewLedgerWithClock(time.Now)
}

// NewLedgerWithClock creates a ledger with an injected clock, letting tests
// drive month boundaries without sleeping.
func NewLedgerWithClock(now func() time.Time) *Ledger {
	l := &Ledger{
		counters: make(map[string]int64),
		now:      now,
	}
	l.month = monthKey(now())
	return l
}

// Check compares the user's current-month usage against the tier limit.
// allowed = used < limit; remaining never goes negative.
func (l *Ledger) Check(userID string, tier tiers.Tier) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.maybeRollover()

	used := l.counters[userID]
	remaining := tier.MonthlyCallLimit - used
	if remaining < 0 {
		remaining = 0
	}

	return Decision{
		Allowed:   used < tier.MonthlyCallLimit,
		Remaining: remaining,
	}
}

// Record increments the user's counter for the current month. It is always
// attributed to the month observed at call time, never a stale key.
func (l *Ledger) Record(userID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.maybeRollover()
	l.counters[userID]++
}

// Used returns the user's current-month counter
func (l *Ledger) Used(userID string) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.maybeRollover()
	return l.counters[userID]
}

// maybeRollover discards all counters when the month has changed since the
// last operation. Callers must hold l.mu.
func (l *Ledger) maybeRollover() {
	current := monthKey(l.now())
	if current != l.month {
		l.counters = make(map[string]int64)
		l.month = current
	}
}

func monthKey(t time.Time) string {
	return t.UTC().Format("2006-01")
}
