package extension

import "time"

// Config holds the Tally extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.tally" or "tally" keys).
type Config struct {
	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// SweepInterval is how often subscriptions with a lapsed billing period
	// are settled in the background (default: 1h). A negative value
	// disables the sweep; lapsed periods are then settled lazily on the
	// next read.
	SweepInterval time.Duration `json:"sweep_interval" mapstructure:"sweep_interval" yaml:"sweep_interval"`

	// PurgeInterval is how often expired resume PDFs are purged from the
	// store (default: 24h). A negative value disables the purge loop.
	PurgeInterval time.Duration `json:"purge_interval" mapstructure:"purge_interval" yaml:"purge_interval"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		SweepInterval: time.Hour,
		PurgeInterval: 24 * time.Hour,
	}
}
