package quota

import (
	"testing"
	"time"

	"github.com/grump-ai/gateway/pkg/tiers"
)

func testTier(limit int64) tiers.Tier {
	return tiers.Tier{ID: "test", MonthlyCallLimit: limit}
}

func TestLedger_FreshUser(t *testing.T) {
	l := NewLedger()
	tier := testTier(50)

	d := l.Check("u1", tier)
	if !d.Allowed {
		t.Error("Fresh user should be allowed")
	}
	if d.Remaining != 50 {
		t.Errorf("Remaining = %d, want 50", d.Remaining)
	}
}

func TestLedger_RecordDecrementsRemaining(t *testing.T) {
	l := NewLedger()
	tier := testTier(50)

	for i := 0; i < 10; i++ {
		l.Record("u1")
	}

	d := l.Check("u1", tier)
	if !d.Allowed {
		t.Error("User under limit should be allowed")
	}
	if d.Remaining != 40 {
		t.Errorf("Remaining = %d, want 40", d.Remaining)
	}
}

func TestLedger_ExhaustionAtLimit(t *testing.T) {
	l := NewLedger()
	tier := testTier(5)

	for i := 0; i < 5; i++ {
		l.Record("u1")
	}

	d := l.Check("u1", tier)
	if d.Allowed {
		t.Error("User at limit should be denied")
	}
	if d.Remaining != 0 {
		t.Errorf("Remaining = %d, want 0", d.Remaining)
	}
}

func TestLedger_RemainingNeverNegative(t *testing.T) {
	l := NewLedger()
	tier := testTier(2)

	// Overshoot past the limit, as concurrent in-flight requests can
	for i := 0; i < 5; i++ {
		l.Record("u1")
	}

	d := l.Check("u1", tier)
	if d.Remaining != 0 {
		t.Errorf("Remaining = %d, want 0", d.Remaining)
	}
}

func TestLedger_UnboundedTier(t *testing.T) {
	l := NewLedger()
	tier := testTier(tiers.UnlimitedCalls)

	for i := 0; i < 1000; i++ {
		l.Record("u1")
	}

	if d := l.Check("u1", tier); !d.Allowed {
		t.Error("Unbounded tier should never be denied")
	}
}

func TestLedger_UsersIndependent(t *testing.T) {
	l := NewLedger()
	tier := testTier(5)

	for i := 0; i < 5; i++ {
		l.Record("u1")
	}

	if d := l.Check("u2", tier); !d.Allowed || d.Remaining != 5 {
		t.Errorf("u2 decision = %+v, want allowed with 5 remaining", d)
	}
}

func TestLedger_GlobalMonthRollover(t *testing.T) {
	now := time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)
	l := NewLedgerWithClock(func() time.Time { return now })
	tier := testTier(50)

	for i := 0; i < 50; i++ {
		l.Record("u1")
	}
	l.Record("u2")

	if d := l.Check("u1", tier); d.Allowed {
		t.Fatal("u1 should be exhausted before rollover")
	}

	// Cross the month boundary. The first operation for ANY user clears
	// every counter, not just the caller's.
	now = time.Date(2026, time.April, 1, 0, 0, 1, 0, time.UTC)

	if d := l.Check("u2", tier); !d.Allowed || d.Remaining != 50 {
		t.Errorf("u2 after rollover = %+v, want allowed with 50 remaining", d)
	}
	if d := l.Check("u1", tier); !d.Allowed || d.Remaining != 50 {
		t.Errorf("u1 after rollover = %+v, want allowed with 50 remaining", d)
	}
}

func TestLedger_RecordAttributesToCurrentMonth(t *testing.T) {
	now := time.Date(2026, time.March, 31, 23, 59, 0, 0, time.UTC)
	l := NewLedgerWithClock(func() time.Time { return now })

	l.Record("u1")
	now = time.Date(2026, time.April, 1, 0, 1, 0, 0, time.UTC)
	l.Record("u1")

	if used := l.Used("u1"); used != 1 {
		t.Errorf("Used after rollover = %d, want 1", used)
	}
}
