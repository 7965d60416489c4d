// Package tiers defines the subscription tier catalog and per-tier quotas.
package tiers

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/grump-ai/gateway/pkg/observability"
)

// TierID identifies a subscription tier
type TierID string

const (
	TierFree       TierID = "free"
	TierPro        TierID = "pro"
	TierEnterprise TierID = "enterprise"
)

// UnlimitedCalls is the sentinel monthly limit for tiers without a cap.
// It is compared like any other limit; no special casing downstream.
const UnlimitedCalls int64 = math.MaxInt64

// Tier describes a subscription level and its quota/price attributes
type Tier struct {
	ID                TierID   `json:"id"`
	Name              string   `json:"name"`
	MonthlyCallLimit  int64    `json:"monthly_call_limit"`
	PriceMonthlyCents int64    `json:"price_monthly_cents"`
	Features          []string `json:"features,omitempty"`
}

// Catalog is a static registry of tiers. It is built once at startup and
// read-only afterwards, so lookups need no locking.
type Catalog struct {
	tiers    map[TierID]Tier
	fallback Tier
	logger   *observability.Logger
}

// DefaultTiers returns the built-in tier table
func DefaultTiers() []Tier {
	return []Tier{
		{
			ID:                TierFree,
			Name:              "Free",
			MonthlyCallLimit:  50,
			PriceMonthlyCents: 0,
			Features:          []string{"ai_generation"},
		},
		{
			ID:                TierPro,
			Name:              "Pro",
			MonthlyCallLimit:  1000,
			PriceMonthlyCents: 1900, // $19/month
			Features:          []string{"ai_generation", "export_svg", "priority_models"},
		},
		{
			ID:                TierEnterprise,
			Name:              "Enterprise",
			MonthlyCallLimit:  UnlimitedCalls,
			PriceMonthlyCents: 9900, // $99/month
			Features:          []string{"ai_generation", "export_svg", "priority_models", "sso", "audit_log"},
		},
	}
}

// NewCatalog creates a catalog from the given tiers. The tier with the
// lowest price becomes the fallback for unknown ids.
func NewCatalog(list []Tier, logger *observability.Logger) (*Catalog, error) {
	if len(list) == 0 {
		return nil, fmt.Errorf("tiers: at least one tier is required")
	}
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}

	c := &Catalog{
		tiers:  make(map[TierID]Tier, len(list)),
		logger: logger,
	}

	for i, t := range list {
		if t.ID == "" {
			return nil, fmt.Errorf("tiers: tier[%d]: id is required", i)
		}
		if t.MonthlyCallLimit <= 0 {
			return nil, fmt.Errorf("tiers: tier[%d] (%s): monthly_call_limit must be positive", i, t.ID)
		}
		if _, dup := c.tiers[t.ID]; dup {
			return nil, fmt.Errorf("tiers: duplicate tier id %q", t.ID)
		}
		c.tiers[t.ID] = t
	}

	c.fallback = list[0]
	for _, t := range list[1:] {
		if t.PriceMonthlyCents < c.fallback.PriceMonthlyCents {
			c.fallback = t
		}
	}

	return c, nil
}

// DefaultCatalog creates a catalog with the built-in tier table
func DefaultCatalog(logger *observability.Logger) *Catalog {
	c, err := NewCatalog(DefaultTiers(), logger)
	if err != nil {
		// DefaultTiers is static and valid
		panic(err)
	}
	return c
}

// ParseCatalog builds a catalog from a JSON tier table, as supplied via
// configuration. An empty input yields the default catalog.
func ParseCatalog(data string, logger *observability.Logger) (*Catalog, error) {
	if data == "" {
		return DefaultCatalog(logger), nil
	}

	var list []Tier
	if err := json.Unmarshal([]byte(data), &list); err != nil {
		return nil, fmt.Errorf("tiers: parse tier table: %w", err)
	}
	return NewCatalog(list, logger)
}

// Get returns the tier for the given id. Unknown or stale ids fall back to
// the lowest tier so a bad id degrades a user instead of blocking them.
// This lookup never fails.
func (c *Catalog) Get(id TierID) Tier {
	if t, ok := c.tiers[id]; ok {
		return t
	}
	c.logger.WithField("tier_id", string(id)).
		WithField("fallback", string(c.fallback.ID)).
		Warn("Unknown tier id, falling back to lowest tier")
	return c.fallback
}

// Fallback returns the tier used for unknown ids
func (c *Catalog) Fallback() Tier {
	return c.fallback
}

// List returns all tiers in the catalog
func (c *Catalog) List() []Tier {
	out := make([]Tier, 0, len(c.tiers))
	for _, t := range c.tiers {
		out = append(out, t)
	}
	return out
}
