// Package extension provides the Forge extension adapter for Entitle.
//
// It implements the forge.Extension interface to integrate Entitle
// into a Forge application with automatic dependency discovery,
// DI registration, and lifecycle management.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.entitle" or
// "entitle" keys.
package extension

import (
	"context"
	"errors"

	"github.com/xraph/forge"
	"github.com/xraph/vessel"

	entitle "github.com/xraph/entitle"
	"github.com/xraph/entitle/store"
	"github.com/xraph/entitle/store/memory"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "entitle"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Subscription entitlement and on-chain payment verification engine"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts Entitle as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config     Config
	engine     *entitle.Engine
	store      store.Store
	engineOpts []entitle.Option
}

// New creates a new Entitle Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying Entitle instance.
// This is nil until Register is called.
func (e *Extension) Engine() *entitle.Engine { return e.engine }

// Register implements [forge.Extension]. It loads configuration,
// initializes the entitlement engine, and registers it in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	// Use memory store if no store was provided programmatically.
	if e.store == nil {
		e.store = memory.New()
	}

	// Build engine options from resolved config.
	opts := e.buildEngineOpts()

	eng := entitle.New(e.store, opts...)
	e.engine = eng

	return vessel.Provide(fapp.Container(), func() (*entitle.Engine, error) {
		return e.engine, nil
	})
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("entitle: extension not initialized")
	}

	if !e.config.DisableMigrate {
		if err := e.engine.Start(ctx); err != nil {
			return err
		}
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(_ context.Context) error {
	if e.engine != nil {
		if err := e.engine.Stop(); err != nil {
			e.MarkStopped()
			return err
		}
	}
	e.MarkStopped()
	return nil
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("entitle: store not initialized")
	}
	return e.store.Ping(ctx)
}

// buildEngineOpts constructs entitle.Option values from the resolved config.
func (e *Extension) buildEngineOpts() []entitle.Option {
	opts := make([]entitle.Option, 0, len(e.engineOpts)+4)

	if e.config.UsageBatchSize > 0 || e.config.UsageFlushInterval > 0 {
		batchSize := e.config.UsageBatchSize
		flushInterval := e.config.UsageFlushInterval
		defaults := DefaultConfig()
		if batchSize == 0 {
			batchSize = defaults.UsageBatchSize
		}
		if flushInterval == 0 {
			flushInterval = defaults.UsageFlushInterval
		}
		opts = append(opts, entitle.WithUsageBufferConfig(batchSize, flushInterval))
	}

	if e.config.VerifyTimeout > 0 {
		opts = append(opts, entitle.WithVerifyTimeout(e.config.VerifyTimeout))
	}
	if e.config.CASRetryLimit > 0 {
		opts = append(opts, entitle.WithCASRetryLimit(e.config.CASRetryLimit))
	}
	if e.config.TreasuryAddress != "" {
		opts = append(opts, entitle.WithTreasuryAddress(e.config.TreasuryAddress))
	}

	// Append any pass-through engine options.
	opts = append(opts, e.engineOpts...)

	return opts
}

// --- Config Loading (mirrors grove/shield extension pattern) ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	// Try loading from config file.
	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("entitle: configuration is required but not found in config files; " +
				"ensure 'extensions.entitle' or 'entitle' key exists in your config")
		}

		// Use programmatic config merged with defaults.
		e.config = e.mergeWithDefaults(programmaticConfig)
	} else {
		// Config loaded from YAML -- merge with programmatic options.
		e.config = e.mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("entitle: configuration loaded",
		forge.F("disable_migrate", e.config.DisableMigrate),
		forge.F("treasury_address", e.config.TreasuryAddress),
		forge.F("usage_batch_size", e.config.UsageBatchSize),
		forge.F("usage_flush_interval", e.config.UsageFlushInterval),
		forge.F("verify_timeout", e.config.VerifyTimeout),
		forge.F("cas_retry_limit", e.config.CASRetryLimit),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()
	var cfg Config

	// Try "extensions.entitle" first (namespaced pattern).
	if cm.IsSet("extensions.entitle") {
		if err := cm.Bind("extensions.entitle", &cfg); err == nil {
			e.Logger().Debug("entitle: loaded config from file",
				forge.F("key", "extensions.entitle"),
			)
			return cfg, true
		}
		e.Logger().Warn("entitle: failed to bind extensions.entitle config",
			forge.F("error", "bind failed"),
		)
	}

	// Try legacy "entitle" key.
	if cm.IsSet("entitle") {
		if err := cm.Bind("entitle", &cfg); err == nil {
			e.Logger().Debug("entitle: loaded config from file",
				forge.F("key", "entitle"),
			)
			return cfg, true
		}
		e.Logger().Warn("entitle: failed to bind entitle config",
			forge.F("error", "bind failed"),
		)
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults.
func (e *Extension) mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.UsageBatchSize == 0 {
		cfg.UsageBatchSize = defaults.UsageBatchSize
	}
	if cfg.UsageFlushInterval == 0 {
		cfg.UsageFlushInterval = defaults.UsageFlushInterval
	}
	if cfg.VerifyTimeout == 0 {
		cfg.VerifyTimeout = defaults.VerifyTimeout
	}
	if cfg.CASRetryLimit == 0 {
		cfg.CASRetryLimit = defaults.CASRetryLimit
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence for most fields; programmatic flags fill gaps.
func (e *Extension) mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	// Programmatic bool flags override when true.
	if programmaticConfig.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}

	// String fields: YAML takes precedence.
	if yamlConfig.TreasuryAddress == "" && programmaticConfig.TreasuryAddress != "" {
		yamlConfig.TreasuryAddress = programmaticConfig.TreasuryAddress
	}

	// Duration/int fields: YAML takes precedence, programmatic fills gaps.
	if yamlConfig.UsageBatchSize == 0 && programmaticConfig.UsageBatchSize != 0 {
		yamlConfig.UsageBatchSize = programmaticConfig.UsageBatchSize
	}
	if yamlConfig.UsageFlushInterval == 0 && programmaticConfig.UsageFlushInterval != 0 {
		yamlConfig.UsageFlushInterval = programmaticConfig.UsageFlushInterval
	}
	if yamlConfig.VerifyTimeout == 0 && programmaticConfig.VerifyTimeout != 0 {
		yamlConfig.VerifyTimeout = programmaticConfig.VerifyTimeout
	}
	if yamlConfig.CASRetryLimit == 0 && programmaticConfig.CASRetryLimit != 0 {
		yamlConfig.CASRetryLimit = programmaticConfig.CASRetryLimit
	}

	// Fill remaining zeros with defaults.
	return e.mergeWithDefaults(yamlConfig)
}
