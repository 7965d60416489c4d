package billing

import (
	"errors"

	"github.com/grump-ai/gateway/pkg/tiers"
)

// EventType identifies a payment-provider event
type EventType string

const (
	EventSubscriptionCreated EventType = "subscription.created"
	EventSubscriptionUpdated EventType = "subscription.updated"
	EventSubscriptionDeleted EventType = "subscription.deleted"
)

// Event is a payment-provider webhook event. ID is assigned by the provider
// and is the idempotency key for replays.
type Event struct {
	ID      string    `json:"id"`
	Type    EventType `json:"type"`
	UserID  string    `json:"user_id"`
	PlanID  string    `json:"plan_id,omitempty"`
	Created int64     `json:"created"`
}

// Sentinel errors surfaced to the webhook endpoint
var (
	ErrInvalidSignature = errors.New("billing: invalid webhook signature")
	ErrInvalidPayload   = errors.New("billing: invalid webhook payload")
)

// defaultPlanMap maps the provider's external plan identifiers to internal
// tier ids. Unknown plan ids degrade to the catalog fallback at apply time.
func defaultPlanMap() map[string]tiers.TierID {
	return map[string]tiers.TierID{
		"plan_free":       tiers.TierFree,
		"plan_pro":        tiers.TierPro,
		"plan_enterprise": tiers.TierEnterprise,
	}
}
