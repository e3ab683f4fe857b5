// Package audithook bridges Entitle lifecycle events to an audit trail backend.
//
// It defines a local Recorder interface so the package does not import
// Chronicle directly. Callers inject a RecorderFunc adapter that bridges
// to Chronicle at wiring time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/entitle/plugin"
	"github.com/xraph/entitle/subscription"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin             = (*Extension)(nil)
	_ plugin.OnRecordCreated    = (*Extension)(nil)
	_ plugin.OnPeriodRolledOver = (*Extension)(nil)
	_ plugin.OnUsageReset       = (*Extension)(nil)
	_ plugin.OnQuotaExceeded    = (*Extension)(nil)
	_ plugin.OnUsageFlushed     = (*Extension)(nil)
	_ plugin.OnPaymentApplied   = (*Extension)(nil)
	_ plugin.OnPaymentRejected  = (*Extension)(nil)
	_ plugin.OnReplayDetected   = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
// This matches chronicle.Emitter but is defined locally so that the
// audit_hook package does not import Chronicle directly; callers inject
// the concrete *chronicle.Chronicle at wiring time.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a local representation of an audit event.
// It mirrors chronicle/audit.Event but avoids a module dependency.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges Entitle lifecycle events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Record lifecycle hooks
// ──────────────────────────────────────────────────

// OnRecordCreated implements plugin.OnRecordCreated.
func (e *Extension) OnRecordCreated(ctx context.Context, record interface{}) error {
	principal := ""
	if r, ok := record.(*subscription.Record); ok {
		principal = r.Principal
	}
	return e.record(ctx, ActionRecordCreated, SeverityInfo, OutcomeSuccess,
		ResourceRecord, principal, CategorySubscription, nil,
		"principal", principal,
	)
}

// OnPeriodRolledOver implements plugin.OnPeriodRolledOver.
func (e *Extension) OnPeriodRolledOver(ctx context.Context, principal, fromTier, toTier string) error {
	return e.record(ctx, ActionPeriodRolledOver, SeverityInfo, OutcomeSuccess,
		ResourceRecord, principal, CategorySubscription, nil,
		"principal", principal,
		"from_tier", fromTier,
		"to_tier", toTier,
	)
}

// OnUsageReset implements plugin.OnUsageReset.
func (e *Extension) OnUsageReset(ctx context.Context, principal string) error {
	return e.record(ctx, ActionUsageReset, SeverityWarning, OutcomeSuccess,
		ResourceUsage, principal, CategoryUsage, nil,
		"principal", principal,
	)
}

// ──────────────────────────────────────────────────
// Usage hooks
// ──────────────────────────────────────────────────

// OnQuotaExceeded implements plugin.OnQuotaExceeded.
func (e *Extension) OnQuotaExceeded(ctx context.Context, principal string, premium bool, used, limit int64) error {
	return e.record(ctx, ActionQuotaExceeded, SeverityWarning, OutcomeFailure,
		ResourceUsage, principal, CategoryUsage, nil,
		"principal", principal,
		"premium", premium,
		"used", used,
		"limit", limit,
	)
}

// OnUsageFlushed implements plugin.OnUsageFlushed.
func (e *Extension) OnUsageFlushed(ctx context.Context, count int, elapsed time.Duration) error {
	return e.record(ctx, ActionUsageFlushed, SeverityInfo, OutcomeSuccess,
		ResourceUsage, "", CategoryUsage, nil,
		"count", count,
		"elapsed_ms", elapsed.Milliseconds(),
	)
}

// ──────────────────────────────────────────────────
// Payment hooks
// ──────────────────────────────────────────────────

// OnPaymentApplied implements plugin.OnPaymentApplied.
func (e *Extension) OnPaymentApplied(ctx context.Context, record interface{}, txSignature string) error {
	principal, tier := "", ""
	if r, ok := record.(*subscription.Record); ok {
		principal = r.Principal
		tier = string(r.Tier)
	}
	return e.record(ctx, ActionPaymentApplied, SeverityInfo, OutcomeSuccess,
		ResourcePayment, txSignature, CategoryPayment, nil,
		"principal", principal,
		"tier", tier,
		"tx_signature", txSignature,
	)
}

// OnPaymentRejected implements plugin.OnPaymentRejected.
func (e *Extension) OnPaymentRejected(ctx context.Context, _ interface{}, reason error) error {
	return e.record(ctx, ActionPaymentRejected, SeverityWarning, OutcomeFailure,
		ResourcePayment, "", CategoryPayment, reason,
		"event", "payment_rejected",
	)
}

// OnReplayDetected implements plugin.OnReplayDetected.
// A replayed signature may be an innocent client retry or an attack;
// either way it is security-relevant and always recorded.
func (e *Extension) OnReplayDetected(ctx context.Context, principal, txSignature string) error {
	return e.record(ctx, ActionReplayDetected, SeverityCritical, OutcomeFailure,
		ResourcePayment, txSignature, CategorySecurity, nil,
		"principal", principal,
		"tx_signature", txSignature,
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
