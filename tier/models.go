package tier

import (
	"fmt"
	"time"

	"github.com/xraph/entitle/types"
)

// ID names a subscription tier. The set of tiers is a closed enumeration
// known at build time; unknown ids are a data error, never defaulted.
type ID string

const (
	Free    ID = "free"
	Pro     ID = "pro"
	ProPlus ID = "pro_plus"
)

// ParseID validates a tier id string against the closed enumeration.
func ParseID(s string) (ID, error) {
	switch ID(s) {
	case Free, Pro, ProPlus:
		return ID(s), nil
	}
	return "", fmt.Errorf("tier: unknown id %q", s)
}

// Rank returns the ordering position of the tier, Free lowest.
func (id ID) Rank() int {
	switch id {
	case Free:
		return 0
	case Pro:
		return 1
	case ProPlus:
		return 2
	}
	return -1
}

// Feature is a capability tag granted by a tier.
type Feature string

const (
	FeatureLargeFileUpload Feature = "large-file-upload"
	FeatureAPIAccess       Feature = "api-access"
	FeatureAdvanced        Feature = "advanced-features"
	FeaturePrioritySupport Feature = "priority-support"
)

// Definition is an immutable, catalog-resident tier description.
type Definition struct {
	ID                  ID            `json:"id"`
	Name                string        `json:"name"`
	Price               types.Money   `json:"price"`           // chain minor units required to purchase/renew
	PriceTolerance      types.Money   `json:"price_tolerance"` // symmetric rounding band
	MessageLimit        int64         `json:"message_limit"`
	PremiumMessageLimit int64         `json:"premium_message_limit"`
	PeriodLength        time.Duration `json:"period_length"`
	Features            []Feature     `json:"features"`
}

// HasFeature reports whether the tier grants a capability tag.
func (d Definition) HasFeature(f Feature) bool {
	for _, have := range d.Features {
		if have == f {
			return true
		}
	}
	return false
}

// Limit returns the per-period quota for the requested message class.
func (d Definition) Limit(premium bool) int64 {
	if premium {
		return d.PremiumMessageLimit
	}
	return d.MessageLimit
}

// MinimumPayment returns the lowest claim amount accepted for this tier:
// price minus tolerance, inclusive. Never below zero.
func (d Definition) MinimumPayment() types.Money {
	m := d.Price.Subtract(d.PriceTolerance)
	if m.IsNegative() {
		return types.Zero(d.Price.Asset)
	}
	return m
}

// Purchasable reports whether the tier is acquired through payment.
// Free has no payment obligation and never expires from non-payment.
func (d Definition) Purchasable() bool {
	return d.ID != Free && d.Price.IsPositive()
}
