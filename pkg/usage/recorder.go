// Package usage keeps a bounded, in-memory log of governed upstream calls
// and token-level cost records.
//
// Both logs are fixed-capacity ring buffers: insertion past capacity evicts
// the oldest entry. The log feeds near-term analytics and audit
// cross-checks; it is not the system of record for billing.
package usage

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/grump-ai/gateway/pkg/observability"
)

// DefaultCapacity bounds the call log when no capacity is configured
const DefaultCapacity = 10000

// Record describes one governed upstream call. Records are immutable once
// appended.
type Record struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Endpoint     string    `json:"endpoint"`
	Method       string    `json:"method"`
	Model        string    `json:"model,omitempty"`
	InputTokens  int64     `json:"input_tokens,omitempty"`
	OutputTokens int64     `json:"output_tokens,omitempty"`
	LatencyMs    int64     `json:"latency_ms,omitempty"`
	Success      bool      `json:"success"`
	CreatedAt    time.Time `json:"created_at"`
}

// TokenRecord describes token-level cost metering for one model invocation,
// independent of the call-count ledger.
type TokenRecord struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Model        string    `json:"model"`
	InputTokens  int64     `json:"input_tokens"`
	OutputTokens int64     `json:"output_tokens"`
	CostUSD      float64   `json:"cost_usd,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Recorder is an append-only, capacity-bounded usage log
type Recorder struct {
	mu     sync.RWMutex
	calls  *ring[Record]
	tokens *ring[TokenRecord]

	metrics *observability.Metrics
	now     func() time.Time
}

// NewRecorder creates a recorder with the given call-log capacity. The token
// log uses the same capacity.
func NewRecorder(capacity int, metrics *observability.Metrics) *Recorder {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Recorder{
		calls:   newRing[Record](capacity),
		tokens:  newRing[TokenRecord](capacity),
		metrics: metrics,
		now:     time.Now,
	}
}

// SetClock injects a clock for tests
func (r *Recorder) SetClock(now func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = now
}

// RecordAPICall appends a call record, evicting the oldest once the buffer
// is full. Missing ID and CreatedAt fields are filled in.
func (r *Recorder) RecordAPICall(rec Record) Record {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = r.now().UTC()
	}
	r.calls.push(rec)

	if r.metrics != nil {
		r.metrics.UsageRecordsTotal.Inc()
	}
	return rec
}

// RecordTokenUsage appends a token-cost record for cost analytics/export
func (r *Recorder) RecordTokenUsage(userID, model string, inputTokens, outputTokens int64, costUSD float64) TokenRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec := TokenRecord{
		ID:           uuid.New().String(),
		UserID:       userID,
		Model:        model,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		CostUSD:      costUSD,
		CreatedAt:    r.now().UTC(),
	}
	r.tokens.push(rec)

	if r.metrics != nil {
		r.metrics.TokensRecordedTotal.WithLabelValues("input").Add(float64(inputTokens))
		r.metrics.TokensRecordedTotal.WithLabelValues("output").Add(float64(outputTokens))
	}
	return rec
}

// ForUser returns the user's call records within [from, to), oldest first.
// A linear scan is fine here given the bounded buffer size.
func (r *Recorder) ForUser(userID string, from, to time.Time) []Record {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Record
	r.calls.each(func(rec Record) {
		if rec.UserID != userID {
			return
		}
		if rec.CreatedAt.Before(from) || !rec.CreatedAt.Before(to) {
			return
		}
		out = append(out, rec)
	})
	return out
}

// TokensForUser returns the user's token records within [from, to), oldest first
func (r *Recorder) TokensForUser(userID string, from, to time.Time) []TokenRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []TokenRecord
	r.tokens.each(func(rec TokenRecord) {
		if rec.UserID != userID {
			return
		}
		if rec.CreatedAt.Before(from) || !rec.CreatedAt.Before(to) {
			return
		}
		out = append(out, rec)
	})
	return out
}

// MonthlyCallCount derives the user's current-month call count from the log.
// This is an audit cross-check against the quota ledger, not the enforcement
// path: once eviction has discarded this month's oldest records the derived
// count undercounts.
func (r *Recorder) MonthlyCallCount(userID string) int {
	r.mu.RLock()
	now := r.now().UTC()
	r.mu.RUnlock()

	from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)
	return len(r.ForUser(userID, from, to))
}

// Len returns the number of call records currently held
func (r *Recorder) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.calls.len()
}

// Capacity returns the call-log capacity
func (r *Recorder) Capacity() int {
	return r.calls.capacity
}

// ring is a fixed-capacity FIFO buffer
type ring[T any] struct {
	buf      []T
	capacity int
	head     int // index of oldest entry
	count    int
}

func newRing[T any](capacity int) *ring[T] {
	return &ring[T]{
		buf:      make([]T, capacity),
		capacity: capacity,
	}
}

func (r *ring[T]) push(v T) {
	if r.count < r.capacity {
		r.buf[(r.head+r.count)%r.capacity] = v
		r.count++
		return
	}
	// Full: overwrite the oldest and advance
	r.buf[r.head] = v
	r.head = (r.head + 1) % r.capacity
}

func (r *ring[T]) each(fn func(T)) {
	for i := 0; i < r.count; i++ {
		fn(r.buf[(r.head+i)%r.capacity])
	}
}

func (r *ring[T]) len() int {
	return r.count
}
