// Package subscription defines the per-principal subscription record and
// its store contract.
package subscription

import (
	"time"

	"github.com/xraph/entitle/id"
	"github.com/xraph/entitle/tier"
	"github.com/xraph/entitle/types"
)

// Record is the mutable per-principal subscription state. One record per
// wallet address; created lazily on first entitlement query, never
// hard-deleted. A lapsed paid tier is only downgraded in effect until
// renewed.
type Record struct {
	types.Entity
	ID                  id.SubscriptionID `json:"id"`
	Principal           string            `json:"principal"` // wallet address
	Tier                tier.ID           `json:"tier"`
	PeriodStart         time.Time         `json:"period_start"`
	PeriodEnd           time.Time         `json:"period_end"`
	MessagesUsed        int64             `json:"messages_used"`
	PremiumMessagesUsed int64             `json:"premium_messages_used"`
	Active              bool              `json:"active"`
	LastPaymentRef      string            `json:"last_payment_ref,omitempty"`

	// Version is the optimistic-concurrency token. Every successful
	// compare-and-swap increments it by one.
	Version int64 `json:"version"`
}

// NewFree returns a fresh Free-tier record for a principal, active with
// zero usage, starting its first period at now.
func NewFree(principal string, free tier.Definition, now time.Time) *Record {
	return &Record{
		Entity:      types.NewEntity(),
		ID:          id.NewSubscriptionID(),
		Principal:   principal,
		Tier:        tier.Free,
		PeriodStart: now,
		PeriodEnd:   now.Add(free.PeriodLength),
		Active:      true,
	}
}

// Lapsed reports whether the record's billing period has ended.
func (r *Record) Lapsed(now time.Time) bool {
	return !now.Before(r.PeriodEnd)
}

// Used returns the counter for the requested message class.
func (r *Record) Used(premium bool) int64 {
	if premium {
		return r.PremiumMessagesUsed
	}
	return r.MessagesUsed
}

// Increment bumps the counter for the requested message class by one.
func (r *Record) Increment(premium bool) {
	if premium {
		r.PremiumMessagesUsed++
	} else {
		r.MessagesUsed++
	}
}

// ResetCounters zeroes both usage counters without touching the period.
func (r *Record) ResetCounters() {
	r.MessagesUsed = 0
	r.PremiumMessagesUsed = 0
}

// Clone returns a deep copy so callers can mutate a working copy while
// keeping the loaded snapshot (and its Version) intact for CAS.
func (r *Record) Clone() *Record {
	c := *r
	return &c
}
