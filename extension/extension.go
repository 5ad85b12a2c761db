// Package extension provides the Forge extension adapter for Tally.
//
// It implements the forge.Extension interface to integrate Tally
// into a Forge application with automatic dependency discovery,
// DI registration, and lifecycle management. When started it also
// runs the background sweep and purge loops that settle lapsed
// billing periods and delete expired resume PDFs.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.tally" or "tally" keys.
package extension

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/xraph/forge"
	"github.com/xraph/vessel"

	tally "github.com/xraph/tally"
	"github.com/xraph/tally/store"
	"github.com/xraph/tally/store/memory"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "tally"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Subscription entitlement and usage accounting engine"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts Tally as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config    Config
	engine    *tally.Tally
	store     store.Store
	tallyOpts []tally.Option

	loopCancel context.CancelFunc
	loopWG     sync.WaitGroup
}

// New creates a new Tally Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying Tally instance.
// This is nil until Register is called.
func (e *Extension) Engine() *tally.Tally { return e.engine }

// Register implements [forge.Extension]. It loads configuration,
// initializes the tally engine, and registers it in the DI container.
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

	eng := tally.New(e.store, e.tallyOpts...)
	e.engine = eng

	return vessel.Provide(fapp.Container(), func() (*tally.Tally, error) {
		return e.engine, nil
	})
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("tally: extension not initialized")
	}

	if !e.config.DisableMigrate {
		if err := e.engine.Start(ctx); err != nil {
			return err
		}
	}

	e.startLoops()
	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(_ context.Context) error {
	if e.loopCancel != nil {
		e.loopCancel()
		e.loopWG.Wait()
	}
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
		return errors.New("tally: store not initialized")
	}
	return e.store.Ping(ctx)
}

// startLoops launches the background sweep and purge tickers.
func (e *Extension) startLoops() {
	ctx, cancel := context.WithCancel(context.Background())
	e.loopCancel = cancel

	if e.config.SweepInterval > 0 {
		e.loopWG.Add(1)
		go e.runLoop(ctx, e.config.SweepInterval, "sweep", func(ctx context.Context) error {
			n, err := e.engine.SweepLapsed(ctx)
			if err == nil && n > 0 {
				e.Logger().Debug("tally: settled lapsed periods", forge.F("count", n))
			}
			return err
		})
	}

	if e.config.PurgeInterval > 0 {
		e.loopWG.Add(1)
		go e.runLoop(ctx, e.config.PurgeInterval, "purge", func(ctx context.Context) error {
			n, err := e.engine.PurgeExpiredResumes(ctx)
			if err == nil && n > 0 {
				e.Logger().Debug("tally: purged expired resumes", forge.F("count", n))
			}
			return err
		})
	}
}

// runLoop calls fn on every tick until ctx is cancelled.
func (e *Extension) runLoop(ctx context.Context, interval time.Duration, name string, fn func(context.Context) error) {
	defer e.loopWG.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := fn(ctx); err != nil && !errors.Is(err, context.Canceled) {
				e.Logger().Warn("tally: background loop failed",
					forge.F("loop", name),
					forge.F("error", err.Error()),
				)
			}
		}
	}
}

// --- Config Loading (mirrors grove/shield extension pattern) ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	// Try loading from config file.
	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("tally: configuration is required but not found in config files; " +
				"ensure 'extensions.tally' or 'tally' key exists in your config")
		}

		// Use programmatic config merged with defaults.
		e.config = e.mergeWithDefaults(programmaticConfig)
	} else {
		// Config loaded from YAML -- merge with programmatic options.
		e.config = e.mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("tally: configuration loaded",
		forge.F("disable_migrate", e.config.DisableMigrate),
		forge.F("sweep_interval", e.config.SweepInterval),
		forge.F("purge_interval", e.config.PurgeInterval),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()
	var cfg Config

	// Try "extensions.tally" first (namespaced pattern).
	if cm.IsSet("extensions.tally") {
		if err := cm.Bind("extensions.tally", &cfg); err == nil {
			e.Logger().Debug("tally: loaded config from file",
				forge.F("key", "extensions.tally"),
			)
			return cfg, true
		}
		e.Logger().Warn("tally: failed to bind extensions.tally config",
			forge.F("error", "bind failed"),
		)
	}

	// Try legacy "tally" key.
	if cm.IsSet("tally") {
		if err := cm.Bind("tally", &cfg); err == nil {
			e.Logger().Debug("tally: loaded config from file",
				forge.F("key", "tally"),
			)
			return cfg, true
		}
		e.Logger().Warn("tally: failed to bind tally config",
			forge.F("error", "bind failed"),
		)
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults.
func (e *Extension) mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = defaults.SweepInterval
	}
	if cfg.PurgeInterval == 0 {
		cfg.PurgeInterval = defaults.PurgeInterval
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence for most fields; programmatic bool flags fill gaps.
func (e *Extension) mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	// Programmatic bool flags override when true.
	if programmaticConfig.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}

	// Duration fields: YAML takes precedence, programmatic fills gaps.
	if yamlConfig.SweepInterval == 0 && programmaticConfig.SweepInterval != 0 {
		yamlConfig.SweepInterval = programmaticConfig.SweepInterval
	}
	if yamlConfig.PurgeInterval == 0 && programmaticConfig.PurgeInterval != 0 {
		yamlConfig.PurgeInterval = programmaticConfig.PurgeInterval
	}

	// Fill remaining zeros with defaults.
	return e.mergeWithDefaults(yamlConfig)
}
