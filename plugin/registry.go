package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Registry manages all registered plugins and provides efficient dispatch.
// Interfaces are type-cached at registration so emission is O(listeners).
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger

	// Type-cached plugin lists for efficient dispatch
	onInit             []OnInit
	onShutdown         []OnShutdown
	onRecordCreated    []OnRecordCreated
	onPeriodRolledOver []OnPeriodRolledOver
	onUsageReset       []OnUsageReset
	onUsageTracked     []OnUsageTracked
	onQuotaExceeded    []OnQuotaExceeded
	onUsageFlushed     []OnUsageFlushed
	onPaymentApplied   []OnPaymentApplied
	onPaymentRejected  []OnPaymentRejected
	onReplayDetected   []OnReplayDetected
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger: slog.Default(),
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Check for duplicate
	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	// Type-switch to cache interfaces
	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnRecordCreated); ok {
		r.onRecordCreated = append(r.onRecordCreated, v)
	}
	if v, ok := p.(OnPeriodRolledOver); ok {
		r.onPeriodRolledOver = append(r.onPeriodRolledOver, v)
	}
	if v, ok := p.(OnUsageReset); ok {
		r.onUsageReset = append(r.onUsageReset, v)
	}
	if v, ok := p.(OnUsageTracked); ok {
		r.onUsageTracked = append(r.onUsageTracked, v)
	}
	if v, ok := p.(OnQuotaExceeded); ok {
		r.onQuotaExceeded = append(r.onQuotaExceeded, v)
	}
	if v, ok := p.(OnUsageFlushed); ok {
		r.onUsageFlushed = append(r.onUsageFlushed, v)
	}
	if v, ok := p.(OnPaymentApplied); ok {
		r.onPaymentApplied = append(r.onPaymentApplied, v)
	}
	if v, ok := p.(OnPaymentRejected); ok {
		r.onPaymentRejected = append(r.onPaymentRejected, v)
	}
	if v, ok := p.(OnReplayDetected); ok {
		r.onReplayDetected = append(r.onReplayDetected, v)
	}

	r.logger.Info("plugin registered", "name", p.Name())

	return nil
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, engine interface{}) {
	r.mu.RLock()
	plugins := r.onInit
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, p.Name(), "OnInit", func() error {
			return p.OnInit(ctx, engine)
		})
	}
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	r.mu.RLock()
	plugins := r.onShutdown
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, p.Name(), "OnShutdown", func() error {
			return p.OnShutdown(ctx)
		})
	}
}

// EmitRecordCreated emits a record created event.
func (r *Registry) EmitRecordCreated(ctx context.Context, record interface{}) {
	r.mu.RLock()
	plugins := r.onRecordCreated
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, p.Name(), "OnRecordCreated", func() error {
			return p.OnRecordCreated(ctx, record)
		})
	}
}

// EmitPeriodRolledOver emits a period rollover event.
func (r *Registry) EmitPeriodRolledOver(ctx context.Context, principal, fromTier, toTier string) {
	r.mu.RLock()
	plugins := r.onPeriodRolledOver
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, p.Name(), "OnPeriodRolledOver", func() error {
			return p.OnPeriodRolledOver(ctx, principal, fromTier, toTier)
		})
	}
}

// EmitUsageReset emits a usage reset event.
func (r *Registry) EmitUsageReset(ctx context.Context, principal string) {
	r.mu.RLock()
	plugins := r.onUsageReset
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, p.Name(), "OnUsageReset", func() error {
			return p.OnUsageReset(ctx, principal)
		})
	}
}

// EmitUsageTracked emits a usage tracked event.
func (r *Registry) EmitUsageTracked(ctx context.Context, principal string, outcome interface{}) {
	r.mu.RLock()
	plugins := r.onUsageTracked
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, p.Name(), "OnUsageTracked", func() error {
			return p.OnUsageTracked(ctx, principal, outcome)
		})
	}
}

// EmitQuotaExceeded emits a quota exceeded event.
func (r *Registry) EmitQuotaExceeded(ctx context.Context, principal string, premium bool, used, limit int64) {
	r.mu.RLock()
	plugins := r.onQuotaExceeded
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, p.Name(), "OnQuotaExceeded", func() error {
			return p.OnQuotaExceeded(ctx, principal, premium, used, limit)
		})
	}
}

// EmitUsageFlushed emits a usage flushed event.
func (r *Registry) EmitUsageFlushed(ctx context.Context, count int, elapsed time.Duration) {
	r.mu.RLock()
	plugins := r.onUsageFlushed
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, p.Name(), "OnUsageFlushed", func() error {
			return p.OnUsageFlushed(ctx, count, elapsed)
		})
	}
}

// EmitPaymentApplied emits a payment applied event.
func (r *Registry) EmitPaymentApplied(ctx context.Context, record interface{}, txSignature string) {
	r.mu.RLock()
	plugins := r.onPaymentApplied
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, p.Name(), "OnPaymentApplied", func() error {
			return p.OnPaymentApplied(ctx, record, txSignature)
		})
	}
}

// EmitPaymentRejected emits a payment rejected event.
func (r *Registry) EmitPaymentRejected(ctx context.Context, claim interface{}, reason error) {
	r.mu.RLock()
	plugins := r.onPaymentRejected
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, p.Name(), "OnPaymentRejected", func() error {
			return p.OnPaymentRejected(ctx, claim, reason)
		})
	}
}

// EmitReplayDetected emits a replay detected event.
func (r *Registry) EmitReplayDetected(ctx context.Context, principal, txSignature string) {
	r.mu.RLock()
	plugins := r.onReplayDetected
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, p.Name(), "OnReplayDetected", func() error {
			return p.OnReplayDetected(ctx, principal, txSignature)
		})
	}
}

// dispatch calls a plugin hook with a timeout and logs failures.
// Plugins must never block the entitlement pipeline.
func (r *Registry) dispatch(ctx context.Context, pluginName, hook string, fn func() error) {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	var err error
	select {
	case err = <-done:
	case <-time.After(5 * time.Second):
		err = fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		err = ctx.Err()
	}

	if err != nil {
		r.logger.Warn("plugin hook failed",
			"plugin", pluginName,
			"hook", hook,
			"error", err,
		)
	}
}
