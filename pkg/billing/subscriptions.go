package billing

import (
	"sync"

	"github.com/grump-ai/gateway/pkg/tiers"
)

// SubscriptionStore holds the userID -> tierID mapping. Entries are created
// on a user's first billing event and updated in place; they are never
// deleted. A cancelled subscription downgrades to the default tier instead.
type SubscriptionStore struct {
	mu          sync.RWMutex
	byUser      map[string]tiers.TierID
	defaultTier tiers.TierID
}

// NewSubscriptionStore creates a store that reports defaultTier for users
// with no billing history.
func NewSubscriptionStore(defaultTier tiers.TierID) *SubscriptionStore {
	return &SubscriptionStore{
		byUser:      make(map[string]tiers.TierID),
		defaultTier: defaultTier,
	}
}

// TierFor returns the user's assigned tier id, or the default tier when the
// user has no subscription entry.
func (s *SubscriptionStore) TierFor(userID string) tiers.TierID {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if id, ok := s.byUser[userID]; ok {
		return id
	}
	return s.defaultTier
}

// set assigns a tier to a user. Only the billing sync writes here.
func (s *SubscriptionStore) set(userID string, tierID tiers.TierID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byUser[userID] = tierID
}

// Len returns the number of subscription entries
func (s *SubscriptionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byUser)
}
