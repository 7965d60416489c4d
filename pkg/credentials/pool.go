package credentials

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/grump-ai/gateway/pkg/observability"
)

// Credential is an opaque upstream secret. It must never be logged or
// serialized into any response or error.
type Credential string

// DefaultRefreshInterval is the minimum time between source re-reads
const DefaultRefreshInterval = 5 * time.Minute

// Pool rotates a set of interchangeable upstream credentials. The list is
// immutable between refreshes; Next never observes a partially updated list.
type Pool struct {
	source          Source
	refreshInterval time.Duration
	logger          *observability.Logger
	metrics         *observability.Metrics

	mu            sync.RWMutex
	list          []Credential
	lastRefreshed time.Time

	cursor atomic.Uint64
}

// NewPool creates a pool backed by the given source and performs an initial
// load. An empty initial load is not an error; the pool starts empty and
// retries on the refresh interval.
func NewPool(source Source, refreshInterval time.Duration, logger *observability.Logger, metrics *observability.Metrics) *Pool {
	if refreshInterval <= 0 {
		refreshInterval = DefaultRefreshInterval
	}
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}

	p := &Pool{
		source:          source,
		refreshInterval: refreshInterval,
		logger:          logger,
		metrics:         metrics,
	}
	p.reload()
	return p
}

// Refresh re-reads the credential list from the source if the refresh
// interval has elapsed since the last successful read.
func (p *Pool) Refresh() {
	p.mu.RLock()
	due := time.Since(p.lastRefreshed) >= p.refreshInterval
	p.mu.RUnlock()

	if due {
		p.reload()
	}
}

// ForceRefresh re-reads the credential list regardless of the interval.
// Used by the file watcher when the secret mount rotates.
func (p *Pool) ForceRefresh() {
	p.reload()
}

func (p *Pool) reload() {
	list, err := p.source.Load()
	if err != nil {
		p.logger.WithError(err).Warn("Credential source read failed, keeping current pool")
		if p.metrics != nil {
			p.metrics.PoolRefreshesTotal.WithLabelValues("error").Inc()
		}
		return
	}

	p.mu.Lock()
	p.list = list
	p.lastRefreshed = time.Now()
	p.mu.Unlock()

	// Log the count only. Values stay out of the log stream.
	p.logger.WithField("credential_count", len(list)).Info("Credential pool refreshed")
	if p.metrics != nil {
		p.metrics.PoolRefreshesTotal.WithLabelValues("ok").Inc()
		p.metrics.CredentialPoolSize.Set(float64(len(list)))
	}
}

// Next selects the next credential in rotation. It always returns a
// credential while the pool is non-empty and reports ok=false only when the
// pool is empty. The implicit refresh check runs first, so a pool that was
// empty at startup recovers once the source is populated.
func (p *Pool) Next() (Credential, bool) {
	p.Refresh()

	p.mu.RLock()
	defer p.mu.RUnlock()

	if len(p.list) == 0 {
		return "", false
	}

	idx := (p.cursor.Add(1) - 1) % uint64(len(p.list))
	return p.list[idx], true
}

// HasCredentials reports whether the pool currently holds any credentials
func (p *Pool) HasCredentials() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.list) > 0
}

// Size returns the current pool size
func (p *Pool) Size() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.list)
}
