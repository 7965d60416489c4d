package billing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/grump-ai/gateway/pkg/observability"
	"github.com/grump-ai/gateway/pkg/tiers"
)

const (
	// DefaultDedupeSize bounds the seen-event-id cache
	DefaultDedupeSize = 4096
	// DefaultDedupeTTL evicts seen ids after the provider's retry horizon
	DefaultDedupeTTL = 24 * time.Hour
)

// Sync verifies and applies payment-provider webhook events, mutating the
// subscription store. It is the only writer of tier assignments.
type Sync struct {
	secret  []byte
	subs    *SubscriptionStore
	catalog *tiers.Catalog
	planMap map[string]tiers.TierID
	seen    *lru.LRU[string, struct{}]
	logger  *observability.Logger
	metrics *observability.Metrics
}

// SyncConfig configures a Sync
type SyncConfig struct {
	Secret     string
	DedupeSize int
	DedupeTTL  time.Duration
	// PlanMap overrides the default external-plan-id -> tier-id mapping
	PlanMap map[string]tiers.TierID
}

// NewSync creates a billing sync over the given subscription store
func NewSync(cfg SyncConfig, subs *SubscriptionStore, catalog *tiers.Catalog, logger *observability.Logger, metrics *observability.Metrics) *Sync {
	if cfg.DedupeSize <= 0 {
		cfg.DedupeSize = DefaultDedupeSize
	}
	if cfg.DedupeTTL <= 0 {
		cfg.DedupeTTL = DefaultDedupeTTL
	}
	planMap := cfg.PlanMap
	if planMap == nil {
		planMap = defaultPlanMap()
	}
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}

	return &Sync{
		secret:  []byte(cfg.Secret),
		subs:    subs,
		catalog: catalog,
		planMap: planMap,
		seen:    lru.NewLRU[string, struct{}](cfg.DedupeSize, nil, cfg.DedupeTTL),
		logger:  logger,
		metrics: metrics,
	}
}

// HandleWebhook verifies the signature over the raw body, then parses and
// applies the event idempotently. Verification failure rejects the event
// with ErrInvalidSignature and mutates nothing.
func (s *Sync) HandleWebhook(payload []byte, signature string) error {
	if !VerifySignature(payload, signature, s.secret) {
		if s.metrics != nil {
			s.metrics.WebhookEventsTotal.WithLabelValues("invalid_signature").Inc()
		}
		return ErrInvalidSignature
	}

	var event Event
	if err := json.Unmarshal(payload, &event); err != nil {
		if s.metrics != nil {
			s.metrics.WebhookEventsTotal.WithLabelValues("invalid_payload").Inc()
		}
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if event.ID == "" || event.UserID == "" {
		if s.metrics != nil {
			s.metrics.WebhookEventsTotal.WithLabelValues("invalid_payload").Inc()
		}
		return fmt.Errorf("%w: missing event id or user id", ErrInvalidPayload)
	}

	// First-write-wins dedupe: a replayed id acknowledges without reapplying.
	if _, dup := s.seen.Get(event.ID); dup {
		if s.metrics != nil {
			s.metrics.WebhookEventsTotal.WithLabelValues("duplicate").Inc()
		}
		s.logger.WithField("event_id", event.ID).Debug("Duplicate webhook event acknowledged")
		return nil
	}
	s.seen.Add(event.ID, struct{}{})

	s.apply(event)
	if s.metrics != nil {
		s.metrics.WebhookEventsTotal.WithLabelValues("applied").Inc()
	}
	return nil
}

func (s *Sync) apply(event Event) {
	switch event.Type {
	case EventSubscriptionCreated, EventSubscriptionUpdated:
		tierID := s.resolvePlan(event.PlanID)
		s.subs.set(event.UserID, tierID)
		s.logger.WithFields(map[string]interface{}{
			"event_id":   event.ID,
			"event_type": string(event.Type),
			"user_id":    event.UserID,
			"tier":       string(tierID),
		}).Info("Subscription tier updated")

	case EventSubscriptionDeleted:
		// Downgrade, never delete: the mapping survives cancellation.
		fallback := s.catalog.Fallback().ID
		s.subs.set(event.UserID, fallback)
		s.logger.WithFields(map[string]interface{}{
			"event_id": event.ID,
			"user_id":  event.UserID,
			"tier":     string(fallback),
		}).Info("Subscription cancelled, downgraded to default tier")

	default:
		// Unknown event types are acknowledged and ignored
		s.logger.WithField("event_type", string(event.Type)).Debug("Ignoring unhandled webhook event type")
	}
}

// resolvePlan maps the provider's plan id to an internal tier id. Unknown
// plans resolve through the catalog, which falls back to the lowest tier.
func (s *Sync) resolvePlan(planID string) tiers.TierID {
	if tierID, ok := s.planMap[planID]; ok {
		return tierID
	}
	s.logger.WithField("plan_id", planID).Warn("Unknown provider plan id")
	return s.catalog.Get(tiers.TierID(planID)).ID
}

// VerifySignature checks an HMAC-SHA256 signature over the raw payload.
// Comparison is constant time.
func VerifySignature(payload []byte, signature string, secret []byte) bool {
	expected := GenerateSignature(payload, secret)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// GenerateSignature computes the sha256=<hex> signature for a payload
func GenerateSignature(payload []byte, secret []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
