package tier

import (
	"testing"
	"time"

	"github.com/xraph/entitle/types"
)

func validPro() Definition {
	return Definition{
		ID:                  Pro,
		Name:                "Pro",
		Price:               types.SOL(50_000_000),
		PriceTolerance:      types.SOL(100_000),
		MessageLimit:        1_000,
		PremiumMessageLimit: 100,
		PeriodLength:        30 * 24 * time.Hour,
	}
}

func TestDefaultCatalog(t *testing.T) {
	c := Default()

	for _, id := range []ID{Free, Pro, ProPlus} {
		if _, ok := c.Lookup(id); !ok {
			t.Errorf("default catalog missing %q", id)
		}
	}

	free, _ := c.Lookup(Free)
	if !free.Price.IsZero() {
		t.Errorf("free tier should be priced at zero, got %v", free.Price)
	}
	if free.PremiumMessageLimit != 0 {
		t.Errorf("free tier should have no premium quota, got %d", free.PremiumMessageLimit)
	}
	if free.Purchasable() {
		t.Error("free tier should not be purchasable")
	}

	pro, _ := c.Lookup(Pro)
	plus, _ := c.Lookup(ProPlus)
	if !plus.Price.GreaterThan(pro.Price) {
		t.Errorf("pro+ price %v should exceed pro price %v", plus.Price, pro.Price)
	}
	if !pro.Purchasable() || !plus.Purchasable() {
		t.Error("paid tiers should be purchasable")
	}
}

func TestCatalogValidation(t *testing.T) {
	tests := []struct {
		name string
		defs func() []Definition
	}{
		{"duplicate id", func() []Definition {
			return []Definition{validPro(), validPro()}
		}},
		{"unknown id", func() []Definition {
			d := validPro()
			d.ID = "platinum"
			return []Definition{d}
		}},
		{"negative quota", func() []Definition {
			d := validPro()
			d.MessageLimit = -1
			return []Definition{d}
		}},
		{"zero period", func() []Definition {
			d := validPro()
			d.PeriodLength = 0
			return []Definition{d}
		}},
		{"free with price", func() []Definition {
			d := validPro()
			d.ID = Free
			return []Definition{d}
		}},
		{"free with premium quota", func() []Definition {
			d := validPro()
			d.ID = Free
			d.Price = types.SOL(0)
			d.PriceTolerance = types.SOL(0)
			return []Definition{d}
		}},
		{"paid tier priced at zero", func() []Definition {
			d := validPro()
			d.Price = types.SOL(0)
			return []Definition{d}
		}},
		{"pro+ cheaper than pro", func() []Definition {
			plus := validPro()
			plus.ID = ProPlus
			plus.Price = types.SOL(10)
			return []Definition{validPro(), plus}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewCatalog(tt.defs()...); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestParseID(t *testing.T) {
	for _, valid := range []string{"free", "pro", "pro_plus"} {
		if _, err := ParseID(valid); err != nil {
			t.Errorf("ParseID(%q): unexpected error %v", valid, err)
		}
	}
	for _, invalid := range []string{"", "FREE", "platinum", "pro+"} {
		if _, err := ParseID(invalid); err == nil {
			t.Errorf("ParseID(%q): expected error", invalid)
		}
	}
}

func TestMinimumPayment(t *testing.T) {
	pro := validPro()
	want := types.SOL(49_900_000)
	if got := pro.MinimumPayment(); !got.Equal(want) {
		t.Errorf("minimum payment: got %v, want %v", got, want)
	}

	free := Definition{ID: Free, Price: types.SOL(0), PriceTolerance: types.SOL(100)}
	if got := free.MinimumPayment(); !got.IsZero() {
		t.Errorf("minimum payment should floor at zero, got %v", got)
	}
}

func TestHasFeature(t *testing.T) {
	c := Default()
	plus, _ := c.Lookup(ProPlus)
	if !plus.HasFeature(FeatureAPIAccess) {
		t.Error("pro+ should grant api-access")
	}
	pro, _ := c.Lookup(Pro)
	if pro.HasFeature(FeatureAPIAccess) {
		t.Error("pro should not grant api-access")
	}
}

func TestLimit(t *testing.T) {
	pro := validPro()
	if pro.Limit(false) != 1_000 {
		t.Errorf("standard limit: got %d", pro.Limit(false))
	}
	if pro.Limit(true) != 100 {
		t.Errorf("premium limit: got %d", pro.Limit(true))
	}
}
