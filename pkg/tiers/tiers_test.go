package tiers

import (
	"io"
	"testing"

	"github.com/grump-ai/gateway/pkg/observability"
)

func quietLogger() *observability.Logger {
	return observability.NewLogger(observability.ErrorLevel, io.Discard)
}

func TestCatalog_GetKnownTier(t *testing.T) {
	c := DefaultCatalog(quietLogger())

	tier := c.Get(TierPro)
	if tier.ID != TierPro {
		t.Errorf("Get(pro).ID = %s, want pro", tier.ID)
	}
	if tier.MonthlyCallLimit != 1000 {
		t.Errorf("Pro limit = %d, want 1000", tier.MonthlyCallLimit)
	}
}

func TestCatalog_UnknownTierFallsBack(t *testing.T) {
	c := DefaultCatalog(quietLogger())

	tier := c.Get("legacy-gold")
	if tier.ID != TierFree {
		t.Errorf("Unknown id resolved to %s, want free fallback", tier.ID)
	}
}

func TestCatalog_FallbackIsCheapestTier(t *testing.T) {
	c, err := NewCatalog([]Tier{
		{ID: "pro", MonthlyCallLimit: 100, PriceMonthlyCents: 1900},
		{ID: "free", MonthlyCallLimit: 10, PriceMonthlyCents: 0},
	}, quietLogger())
	if err != nil {
		t.Fatal(err)
	}

	if c.Fallback().ID != "free" {
		t.Errorf("Fallback = %s, want free", c.Fallback().ID)
	}
}

func TestCatalog_TopTierIsUnbounded(t *testing.T) {
	c := DefaultCatalog(quietLogger())

	if c.Get(TierEnterprise).MonthlyCallLimit != UnlimitedCalls {
		t.Error("Enterprise tier should carry the unlimited sentinel")
	}
}

func TestNewCatalog_Validation(t *testing.T) {
	cases := []struct {
		name string
		list []Tier
	}{
		{"empty", nil},
		{"missing id", []Tier{{MonthlyCallLimit: 10}}},
		{"zero limit", []Tier{{ID: "x", MonthlyCallLimit: 0}}},
		{"duplicate id", []Tier{
			{ID: "x", MonthlyCallLimit: 10},
			{ID: "x", MonthlyCallLimit: 20},
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewCatalog(tc.list, quietLogger()); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}

func TestParseCatalog(t *testing.T) {
	data := `[{"id":"free","name":"Free","monthly_call_limit":25,"price_monthly_cents":0}]`

	c, err := ParseCatalog(data, quietLogger())
	if err != nil {
		t.Fatal(err)
	}
	if c.Get("free").MonthlyCallLimit != 25 {
		t.Errorf("Parsed limit = %d, want 25", c.Get("free").MonthlyCallLimit)
	}
}

func TestParseCatalog_EmptyUsesDefaults(t *testing.T) {
	c, err := ParseCatalog("", quietLogger())
	if err != nil {
		t.Fatal(err)
	}
	if c.Get(TierFree).MonthlyCallLimit != 50 {
		t.Error("Empty table should yield the default catalog")
	}
}

func TestParseCatalog_InvalidJSON(t *testing.T) {
	if _, err := ParseCatalog("{not json", quietLogger()); err == nil {
		t.Error("Expected parse error")
	}
}
