package extension

import (
	"time"

	tally "github.com/xraph/tally"
	"github.com/xraph/tally/plugin"
	"github.com/xraph/tally/store"
	"github.com/xraph/tally/tier"
)

// Option configures the Tally Forge extension.
type Option func(*Extension)

// WithStore sets the store for the tally engine.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithTallyOption passes a tally.Option through to the underlying engine.
func WithTallyOption(opt tally.Option) Option {
	return func(e *Extension) {
		e.tallyOpts = append(e.tallyOpts, opt)
	}
}

// WithPlugin registers a tally plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.tallyOpts = append(e.tallyOpts, tally.WithPlugin(p))
	}
}

// WithCatalog sets the tier catalog for the engine.
func WithCatalog(c tier.Catalog) Option {
	return func(e *Extension) {
		e.tallyOpts = append(e.tallyOpts, tally.WithCatalog(c))
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

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}

// WithSweepInterval sets how often lapsed billing periods are settled.
// Pass a negative duration to disable the background sweep.
func WithSweepInterval(d time.Duration) Option {
	return func(e *Extension) { e.config.SweepInterval = d }
}

// WithPurgeInterval sets how often expired resume PDFs are purged.
// Pass a negative duration to disable the purge loop.
func WithPurgeInterval(d time.Duration) Option {
	return func(e *Extension) { e.config.PurgeInterval = d }
}
