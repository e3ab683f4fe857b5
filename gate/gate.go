// Package gate derives the capability set a principal currently holds
// from their subscription record, the tier catalog, and the clock.
//
// Evaluate is a pure function with no side effects: safe to call at
// arbitrarily high frequency and from read replicas. A lapsed paid
// subscription is treated as Free for the evaluation only; the record
// itself is corrected lazily by the next usage-meter write.
package gate

import (
	"time"

	"github.com/xraph/entitle/subscription"
	"github.com/xraph/entitle/tier"
)

// Capabilities is the derived entitlement set for one principal.
type Capabilities struct {
	Tier                     tier.ID        `json:"tier"` // effective tier, after lapse fallback
	Active                   bool           `json:"active"`
	CanSendMessage           bool           `json:"can_send_message"`
	CanUsePremium            bool           `json:"can_use_premium"`
	MessagesUsed             int64          `json:"messages_used"`
	MessagesRemaining        int64          `json:"messages_remaining"`
	PremiumMessagesUsed      int64          `json:"premium_messages_used"`
	PremiumMessagesRemaining int64          `json:"premium_messages_remaining"`
	Features                 []tier.Feature `json:"features"`
}

// Has reports whether the capability set grants a feature tag.
func (c Capabilities) Has(f tier.Feature) bool {
	for _, have := range c.Features {
		if have == f {
			return true
		}
	}
	return false
}

// Evaluate derives capabilities from (record, catalog, now).
func Evaluate(r *subscription.Record, cat *tier.Catalog, now time.Time) Capabilities {
	effective := r.Tier
	usedStd := r.MessagesUsed
	usedPrem := r.PremiumMessagesUsed

	if r.Lapsed(now) {
		if r.Tier != tier.Free {
			effective = tier.Free
		}
		// The counters belong to the expired period; the next meter
		// write resets them. Evaluate as the rollover would leave them.
		usedStd, usedPrem = 0, 0
	}

	def, ok := cat.Lookup(effective)
	if !ok {
		// Unknown effective tier means the record predates a catalog
		// change; grant nothing rather than guessing.
		return Capabilities{Tier: effective}
	}

	caps := Capabilities{
		Tier:                effective,
		Active:              r.Active || effective == tier.Free,
		MessagesUsed:        usedStd,
		PremiumMessagesUsed: usedPrem,
		Features:            def.Features,
	}

	caps.MessagesRemaining = remaining(def.MessageLimit, usedStd)
	caps.PremiumMessagesRemaining = remaining(def.PremiumMessageLimit, usedPrem)
	caps.CanSendMessage = usedStd < def.MessageLimit
	caps.CanUsePremium = effective != tier.Free && usedPrem < def.PremiumMessageLimit

	return caps
}

func remaining(limit, used int64) int64 {
	if used >= limit {
		return 0
	}
	return limit - used
}
