// Package tier defines the static tier catalog: plan definitions with
// prices, quotas, capability tags, and billing period lengths.
//
// The catalog is configuration, not persisted state. It is constructed
// once at startup, validated, and read-only for the process lifetime.
package tier

import (
	"fmt"
	"time"

	"github.com/xraph/entitle/types"
)

// Catalog is an immutable table of tier definitions.
type Catalog struct {
	defs  map[ID]Definition
	order []ID
}

// NewCatalog builds a catalog from the given definitions and validates
// its invariants: exactly one definition per id, price strictly
// increasing with tier rank except Free (price 0), and Free carrying no
// premium quota.
func NewCatalog(defs ...Definition) (*Catalog, error) {
	c := &Catalog{defs: make(map[ID]Definition, len(defs))}

	for _, d := range defs {
		if d.ID.Rank() < 0 {
			return nil, fmt.Errorf("tier: unknown id %q", d.ID)
		}
		if _, dup := c.defs[d.ID]; dup {
			return nil, fmt.Errorf("tier: duplicate definition for %q", d.ID)
		}
		if d.Price.IsNegative() || d.PriceTolerance.IsNegative() {
			return nil, fmt.Errorf("tier: %q has negative pricing", d.ID)
		}
		if d.MessageLimit < 0 || d.PremiumMessageLimit < 0 {
			return nil, fmt.Errorf("tier: %q has negative quota", d.ID)
		}
		if d.PeriodLength <= 0 {
			return nil, fmt.Errorf("tier: %q has non-positive period length", d.ID)
		}
		c.defs[d.ID] = d
		c.order = append(c.order, d.ID)
	}

	if free, ok := c.defs[Free]; ok {
		if !free.Price.IsZero() {
			return nil, fmt.Errorf("tier: free tier must have zero price, got %v", free.Price)
		}
		if free.PremiumMessageLimit != 0 {
			return nil, fmt.Errorf("tier: free tier must have zero premium quota, got %d", free.PremiumMessageLimit)
		}
	}

	// Paid tiers must be strictly ordered by price.
	var prev *Definition
	for _, id := range []ID{Pro, ProPlus} {
		d, ok := c.defs[id]
		if !ok {
			continue
		}
		if !d.Price.IsPositive() {
			return nil, fmt.Errorf("tier: paid tier %q must have positive price", id)
		}
		if prev != nil && !d.Price.GreaterThan(prev.Price) {
			return nil, fmt.Errorf("tier: %q price must exceed %q price", id, prev.ID)
		}
		p := d
		prev = &p
	}

	return c, nil
}

// MustCatalog is like NewCatalog but panics on invalid definitions.
// Use for hardcoded catalogs.
func MustCatalog(defs ...Definition) *Catalog {
	c, err := NewCatalog(defs...)
	if err != nil {
		panic(err)
	}
	return c
}

// Lookup returns the definition for a tier id. The second return is
// false only for ids outside the catalog (a data error at call sites
// that accept external input; callers holding a catalog member id may
// ignore it).
func (c *Catalog) Lookup(id ID) (Definition, bool) {
	d, ok := c.defs[id]
	return d, ok
}

// IDs returns the catalog's tier ids in registration order.
func (c *Catalog) IDs() []ID {
	out := make([]ID, len(c.order))
	copy(out, c.order)
	return out
}

// Default returns the product catalog: Free, Pro (◎0.05/month), and
// Pro+ (◎0.15/month), each with a ±0.0001 SOL tolerance band to absorb
// rounding from the payment UI.
func Default() *Catalog {
	return MustCatalog(
		Definition{
			ID:                  Free,
			Name:                "Free",
			Price:               types.SOL(0),
			PriceTolerance:      types.SOL(0),
			MessageLimit:        50,
			PremiumMessageLimit: 0,
			PeriodLength:        30 * 24 * time.Hour,
			Features:            nil,
		},
		Definition{
			ID:                  Pro,
			Name:                "Pro",
			Price:               types.SOL(50_000_000),  // ◎0.05
			PriceTolerance:      types.SOL(100_000),     // ◎0.0001
			MessageLimit:        1_000,
			PremiumMessageLimit: 100,
			PeriodLength:        30 * 24 * time.Hour,
			Features: []Feature{
				FeatureLargeFileUpload,
				FeatureAdvanced,
			},
		},
		Definition{
			ID:                  ProPlus,
			Name:                "Pro+",
			Price:               types.SOL(150_000_000), // ◎0.15
			PriceTolerance:      types.SOL(100_000),     // ◎0.0001
			MessageLimit:        5_000,
			PremiumMessageLimit: 500,
			PeriodLength:        30 * 24 * time.Hour,
			Features: []Feature{
				FeatureLargeFileUpload,
				FeatureAdvanced,
				FeatureAPIAccess,
				FeaturePrioritySupport,
			},
		},
	)
}
