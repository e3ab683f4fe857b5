// Package plugin provides an extensible plugin system for Entitle.
// Plugins can hook into engine lifecycle events to extend functionality.
//
// Hook payloads are passed as interface{} so plugin implementations can
// live outside the engine's import graph; concrete types are documented
// on each hook.
package plugin

import (
	"context"
	"time"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the engine starts. The payload is the *entitle.Engine.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, engine interface{}) error
}

// OnShutdown is called when the engine is shutting down.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Subscription record hooks
// ──────────────────────────────────────────────────

// OnRecordCreated is called when a principal's record is lazily created.
// The payload is a *subscription.Record.
type OnRecordCreated interface {
	Plugin
	OnRecordCreated(ctx context.Context, record interface{}) error
}

// OnPeriodRolledOver is called when a lapsed record is rolled into a new
// billing period on access. A lapsed paid tier reports toTier "free".
type OnPeriodRolledOver interface {
	Plugin
	OnPeriodRolledOver(ctx context.Context, principal, fromTier, toTier string) error
}

// OnUsageReset is called when an operator force-resets usage counters.
type OnUsageReset interface {
	Plugin
	OnUsageReset(ctx context.Context, principal string) error
}

// ──────────────────────────────────────────────────
// Usage metering hooks
// ──────────────────────────────────────────────────

// OnUsageTracked is called after a successful quota increment.
// The payload is a *meter.UsageOutcome.
type OnUsageTracked interface {
	Plugin
	OnUsageTracked(ctx context.Context, principal string, outcome interface{}) error
}

// OnQuotaExceeded is called when a usage request is denied by quota.
type OnQuotaExceeded interface {
	Plugin
	OnQuotaExceeded(ctx context.Context, principal string, premium bool, used, limit int64) error
}

// OnUsageFlushed is called after a detailed-usage batch reaches the store.
type OnUsageFlushed interface {
	Plugin
	OnUsageFlushed(ctx context.Context, count int, elapsed time.Duration) error
}

// ──────────────────────────────────────────────────
// Payment hooks
// ──────────────────────────────────────────────────

// OnPaymentApplied is called after a verified payment upgrades or renews
// a record. The payload is the updated *subscription.Record.
type OnPaymentApplied interface {
	Plugin
	OnPaymentApplied(ctx context.Context, record interface{}, txSignature string) error
}

// OnPaymentRejected is called when a claim fails validation or chain
// verification. The payload is the *payment.Claim.
type OnPaymentRejected interface {
	Plugin
	OnPaymentRejected(ctx context.Context, claim interface{}, reason error) error
}

// OnReplayDetected is called when a claim presents an already-consumed
// transaction signature. Security-relevant: may indicate a replay attack
// rather than an innocent retry.
type OnReplayDetected interface {
	Plugin
	OnReplayDetected(ctx context.Context, principal, txSignature string) error
}
