package extension

import "time"

// Config holds the Entitle extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.entitle" or "entitle" keys).
type Config struct {
	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// TreasuryAddress is the wallet address payments must be sent to.
	TreasuryAddress string `json:"treasury_address" mapstructure:"treasury_address" yaml:"treasury_address"`

	// UsageBatchSize is the number of detailed usage events to buffer before
	// flushing to the store (default: 100).
	UsageBatchSize int `json:"usage_batch_size" mapstructure:"usage_batch_size" yaml:"usage_batch_size"`

	// UsageFlushInterval is how frequently the usage buffer is flushed
	// even if the batch size has not been reached (default: 5s).
	UsageFlushInterval time.Duration `json:"usage_flush_interval" mapstructure:"usage_flush_interval" yaml:"usage_flush_interval"`

	// VerifyTimeout bounds a single on-chain verification call (default: 10s).
	VerifyTimeout time.Duration `json:"verify_timeout" mapstructure:"verify_timeout" yaml:"verify_timeout"`

	// CASRetryLimit is the number of optimistic write attempts before a
	// contended update gives up (default: 5).
	CASRetryLimit int `json:"cas_retry_limit" mapstructure:"cas_retry_limit" yaml:"cas_retry_limit"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		UsageBatchSize:     100,
		UsageFlushInterval: 5 * time.Second,
		VerifyTimeout:      10 * time.Second,
		CASRetryLimit:      5,
	}
}
