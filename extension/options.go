package extension

import (
	"time"

	entitle "github.com/xraph/entitle"
	"github.com/xraph/entitle/payment"
	"github.com/xraph/entitle/plugin"
	"github.com/xraph/entitle/store"
	"github.com/xraph/entitle/tier"
)

// Option configures the Entitle Forge extension.
type Option func(*Extension)

// WithStore sets the store for the entitlement engine.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithEngineOption passes an entitle.Option through to the underlying engine.
func WithEngineOption(opt entitle.Option) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, opt)
	}
}

// WithPlugin registers an entitle plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, entitle.WithPlugin(p))
	}
}

// WithCatalog sets the tier catalog for the engine.
func WithCatalog(c *tier.Catalog) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, entitle.WithCatalog(c))
	}
}

// WithChainVerifier sets the on-chain payment verifier.
func WithChainVerifier(v payment.ChainVerifier) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, entitle.WithChainVerifier(v))
	}
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithDisableMigrate prevents auto-migration on start.
func WithDisableMigrate() Option {
	return func(e *Extension) { e.config.DisableMigrate = true }
}

// WithTreasuryAddress sets the wallet address payments must be sent to.
func WithTreasuryAddress(addr string) Option {
	return func(e *Extension) { e.config.TreasuryAddress = addr }
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}

// WithUsageBatchSize sets the number of usage events to buffer before flushing.
func WithUsageBatchSize(size int) Option {
	return func(e *Extension) { e.config.UsageBatchSize = size }
}

// WithUsageFlushInterval sets how frequently the usage buffer is flushed.
func WithUsageFlushInterval(d time.Duration) Option {
	return func(e *Extension) { e.config.UsageFlushInterval = d }
}

// WithVerifyTimeout bounds a single on-chain verification call.
func WithVerifyTimeout(d time.Duration) Option {
	return func(e *Extension) { e.config.VerifyTimeout = d }
}

// WithCASRetryLimit sets the number of optimistic write attempts before a
// contended update gives up.
func WithCASRetryLimit(n int) Option {
	return func(e *Extension) { e.config.CASRetryLimit = n }
}
