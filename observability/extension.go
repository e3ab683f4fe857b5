// Package observability provides a metrics extension for Entitle that records
// lifecycle event counts via go-utils MetricFactory.
package observability

import (
	"context"
	"time"

	"github.com/xraph/entitle/plugin"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin             = (*MetricsExtension)(nil)
	_ plugin.OnInit             = (*MetricsExtension)(nil)
	_ plugin.OnRecordCreated    = (*MetricsExtension)(nil)
	_ plugin.OnPeriodRolledOver = (*MetricsExtension)(nil)
	_ plugin.OnUsageReset       = (*MetricsExtension)(nil)
	_ plugin.OnUsageTracked     = (*MetricsExtension)(nil)
	_ plugin.OnQuotaExceeded    = (*MetricsExtension)(nil)
	_ plugin.OnUsageFlushed     = (*MetricsExtension)(nil)
	_ plugin.OnPaymentApplied   = (*MetricsExtension)(nil)
	_ plugin.OnPaymentRejected  = (*MetricsExtension)(nil)
	_ plugin.OnReplayDetected   = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records system-wide lifecycle metrics.
// Register it as an Entitle plugin to automatically track engine metrics.
type MetricsExtension struct {
	factory MetricFactory

	// Record metrics
	RecordsCreated    Counter
	PeriodsRolledOver Counter
	UsageResets       Counter

	// Usage metrics
	UsageTracked      Counter
	QuotaDenied       Counter
	UsageBatchSize    Histogram
	UsageFlushLatency Histogram

	// Payment metrics
	PaymentsApplied  Counter
	PaymentsRejected Counter
	ReplaysDetected  Counter
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
// Use app.Metrics() in forge extensions.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		// Record metrics
		RecordsCreated:    factory.Counter("entitle.record.created"),
		PeriodsRolledOver: factory.Counter("entitle.record.period_rolled_over"),
		UsageResets:       factory.Counter("entitle.record.usage_reset"),

		// Usage metrics
		UsageTracked:      factory.Counter("entitle.usage.tracked"),
		QuotaDenied:       factory.Counter("entitle.usage.quota_denied"),
		UsageBatchSize:    factory.Histogram("entitle.usage.batch.size"),
		UsageFlushLatency: factory.Histogram("entitle.usage.flush.latency_ms"),

		// Payment metrics
		PaymentsApplied:  factory.Counter("entitle.payment.applied"),
		PaymentsRejected: factory.Counter("entitle.payment.rejected"),
		ReplaysDetected:  factory.Counter("entitle.payment.replay_detected"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ interface{}) error {
	// No initialization needed
	return nil
}

// ──────────────────────────────────────────────────
// Record lifecycle hooks
// ──────────────────────────────────────────────────

// OnRecordCreated implements plugin.OnRecordCreated.
func (m *MetricsExtension) OnRecordCreated(_ context.Context, _ interface{}) error {
	m.RecordsCreated.Inc()
	return nil
}

// OnPeriodRolledOver implements plugin.OnPeriodRolledOver.
func (m *MetricsExtension) OnPeriodRolledOver(_ context.Context, _, _, _ string) error {
	m.PeriodsRolledOver.Inc()
	return nil
}

// OnUsageReset implements plugin.OnUsageReset.
func (m *MetricsExtension) OnUsageReset(_ context.Context, _ string) error {
	m.UsageResets.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Usage lifecycle hooks
// ──────────────────────────────────────────────────

// OnUsageTracked implements plugin.OnUsageTracked.
func (m *MetricsExtension) OnUsageTracked(_ context.Context, _ string, _ interface{}) error {
	m.UsageTracked.Inc()
	return nil
}

// OnQuotaExceeded implements plugin.OnQuotaExceeded.
func (m *MetricsExtension) OnQuotaExceeded(_ context.Context, _ string, _ bool, _, _ int64) error {
	m.QuotaDenied.Inc()
	return nil
}

// OnUsageFlushed implements plugin.OnUsageFlushed.
func (m *MetricsExtension) OnUsageFlushed(_ context.Context, count int, elapsed time.Duration) error {
	m.UsageBatchSize.Observe(float64(count))
	m.UsageFlushLatency.Observe(float64(elapsed.Milliseconds()))
	return nil
}

// ──────────────────────────────────────────────────
// Payment lifecycle hooks
// ──────────────────────────────────────────────────

// OnPaymentApplied implements plugin.OnPaymentApplied.
func (m *MetricsExtension) OnPaymentApplied(_ context.Context, _ interface{}, _ string) error {
	m.PaymentsApplied.Inc()
	return nil
}

// OnPaymentRejected implements plugin.OnPaymentRejected.
func (m *MetricsExtension) OnPaymentRejected(_ context.Context, _ interface{}, _ error) error {
	m.PaymentsRejected.Inc()
	return nil
}

// OnReplayDetected implements plugin.OnReplayDetected.
func (m *MetricsExtension) OnReplayDetected(_ context.Context, _, _ string) error {
	m.ReplaysDetected.Inc()
	return nil
}
