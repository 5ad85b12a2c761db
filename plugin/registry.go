package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Registry manages all registered plugins and provides efficient dispatch.
// Interface checks happen once at registration, not per event.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger

	// Type-cached plugin lists for efficient dispatch
	onInit                []OnInit
	onShutdown            []OnShutdown
	onSubscriptionCreated []OnSubscriptionCreated
	onTierChanged         []OnTierChanged
	onStatusChanged       []OnStatusChanged
	onPeriodRolledOver    []OnPeriodRolledOver
	onSubscriptionExpired []OnSubscriptionExpired
	onLimitsOverridden    []OnLimitsOverridden
	onEntitlementChecked  []OnEntitlementChecked
	onQuotaExceeded       []OnQuotaExceeded
	onGenerationRecorded  []OnGenerationRecorded
	onResumeCreated       []OnResumeCreated
	onResumesPurged       []OnResumesPurged
	onJobDescriptionUsed  []OnJobDescriptionUsed
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

	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnSubscriptionCreated); ok {
		r.onSubscriptionCreated = append(r.onSubscriptionCreated, v)
	}
	if v, ok := p.(OnTierChanged); ok {
		r.onTierChanged = append(r.onTierChanged, v)
	}
	if v, ok := p.(OnStatusChanged); ok {
		r.onStatusChanged = append(r.onStatusChanged, v)
	}
	if v, ok := p.(OnPeriodRolledOver); ok {
		r.onPeriodRolledOver = append(r.onPeriodRolledOver, v)
	}
	if v, ok := p.(OnSubscriptionExpired); ok {
		r.onSubscriptionExpired = append(r.onSubscriptionExpired, v)
	}
	if v, ok := p.(OnLimitsOverridden); ok {
		r.onLimitsOverridden = append(r.onLimitsOverridden, v)
	}
	if v, ok := p.(OnEntitlementChecked); ok {
		r.onEntitlementChecked = append(r.onEntitlementChecked, v)
	}
	if v, ok := p.(OnQuotaExceeded); ok {
		r.onQuotaExceeded = append(r.onQuotaExceeded, v)
	}
	if v, ok := p.(OnGenerationRecorded); ok {
		r.onGenerationRecorded = append(r.onGenerationRecorded, v)
	}
	if v, ok := p.(OnResumeCreated); ok {
		r.onResumeCreated = append(r.onResumeCreated, v)
	}
	if v, ok := p.(OnResumesPurged); ok {
		r.onResumesPurged = append(r.onResumesPurged, v)
	}
	if v, ok := p.(OnJobDescriptionUsed); ok {
		r.onJobDescriptionUsed = append(r.onJobDescriptionUsed, v)
	}

	return nil
}

// Get returns a registered plugin by name, or nil.
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

	out := make([]Plugin, len(r.plugins))
	copy(out, r.plugins)
	return out
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
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnInit(ctx, engine)
		}); err != nil {
			r.logger.Warn("plugin OnInit failed", "plugin", p.Name(), "error", err)
		}
	}
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	r.mu.RLock()
	plugins := r.onShutdown
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnShutdown(ctx)
		}); err != nil {
			r.logger.Warn("plugin OnShutdown failed", "plugin", p.Name(), "error", err)
		}
	}
}

// EmitSubscriptionCreated emits a subscription created event.
func (r *Registry) EmitSubscriptionCreated(ctx context.Context, sub interface{}) {
	r.mu.RLock()
	plugins := r.onSubscriptionCreated
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnSubscriptionCreated(ctx, sub)
		}); err != nil {
			r.logger.Warn("plugin OnSubscriptionCreated failed", "plugin", p.Name(), "error", err)
		}
	}
}

// EmitTierChanged emits a tier change event.
func (r *Registry) EmitTierChanged(ctx context.Context, sub interface{}, oldTier, newTier string) {
	r.mu.RLock()
	plugins := r.onTierChanged
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnTierChanged(ctx, sub, oldTier, newTier)
		}); err != nil {
			r.logger.Warn("plugin OnTierChanged failed", "plugin", p.Name(), "error", err)
		}
	}
}

// EmitStatusChanged emits a status change event.
func (r *Registry) EmitStatusChanged(ctx context.Context, sub interface{}, oldStatus, newStatus string) {
	r.mu.RLock()
	plugins := r.onStatusChanged
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnStatusChanged(ctx, sub, oldStatus, newStatus)
		}); err != nil {
			r.logger.Warn("plugin OnStatusChanged failed", "plugin", p.Name(), "error", err)
		}
	}
}

// EmitPeriodRolledOver emits a billing period rollover event.
func (r *Registry) EmitPeriodRolledOver(ctx context.Context, sub interface{}) {
	r.mu.RLock()
	plugins := r.onPeriodRolledOver
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnPeriodRolledOver(ctx, sub)
		}); err != nil {
			r.logger.Warn("plugin OnPeriodRolledOver failed", "plugin", p.Name(), "error", err)
		}
	}
}

// EmitSubscriptionExpired emits a subscription expired event.
func (r *Registry) EmitSubscriptionExpired(ctx context.Context, sub interface{}) {
	r.mu.RLock()
	plugins := r.onSubscriptionExpired
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnSubscriptionExpired(ctx, sub)
		}); err != nil {
			r.logger.Warn("plugin OnSubscriptionExpired failed", "plugin", p.Name(), "error", err)
		}
	}
}

// EmitLimitsOverridden emits an admin limit override event.
func (r *Registry) EmitLimitsOverridden(ctx context.Context, userID string, override interface{}) {
	r.mu.RLock()
	plugins := r.onLimitsOverridden
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnLimitsOverridden(ctx, userID, override)
		}); err != nil {
			r.logger.Warn("plugin OnLimitsOverridden failed", "plugin", p.Name(), "error", err)
		}
	}
}

// EmitEntitlementChecked emits an entitlement checked event.
func (r *Registry) EmitEntitlementChecked(ctx context.Context, decision interface{}) {
	r.mu.RLock()
	plugins := r.onEntitlementChecked
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnEntitlementChecked(ctx, decision)
		}); err != nil {
			r.logger.Warn("plugin OnEntitlementChecked failed", "plugin", p.Name(), "error", err)
		}
	}
}

// EmitQuotaExceeded emits a quota exceeded event.
func (r *Registry) EmitQuotaExceeded(ctx context.Context, userID, action string, used, limit int64) {
	r.mu.RLock()
	plugins := r.onQuotaExceeded
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnQuotaExceeded(ctx, userID, action, used, limit)
		}); err != nil {
			r.logger.Warn("plugin OnQuotaExceeded failed", "plugin", p.Name(), "error", err)
		}
	}
}

// EmitGenerationRecorded emits a generation committed event.
func (r *Registry) EmitGenerationRecorded(ctx context.Context, userID, tierName string) {
	r.mu.RLock()
	plugins := r.onGenerationRecorded
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnGenerationRecorded(ctx, userID, tierName)
		}); err != nil {
			r.logger.Warn("plugin OnGenerationRecorded failed", "plugin", p.Name(), "error", err)
		}
	}
}

// EmitResumeCreated emits a resume created event.
func (r *Registry) EmitResumeCreated(ctx context.Context, res interface{}) {
	r.mu.RLock()
	plugins := r.onResumeCreated
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnResumeCreated(ctx, res)
		}); err != nil {
			r.logger.Warn("plugin OnResumeCreated failed", "plugin", p.Name(), "error", err)
		}
	}
}

// EmitResumesPurged emits a retention sweep event.
func (r *Registry) EmitResumesPurged(ctx context.Context, count int64) {
	r.mu.RLock()
	plugins := r.onResumesPurged
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnResumesPurged(ctx, count)
		}); err != nil {
			r.logger.Warn("plugin OnResumesPurged failed", "plugin", p.Name(), "error", err)
		}
	}
}

// EmitJobDescriptionUsed emits a job description usage event.
func (r *Registry) EmitJobDescriptionUsed(ctx context.Context, jdID string) {
	r.mu.RLock()
	plugins := r.onJobDescriptionUsed
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnJobDescriptionUsed(ctx, jdID)
		}); err != nil {
			r.logger.Warn("plugin OnJobDescriptionUsed failed", "plugin", p.Name(), "error", err)
		}
	}
}

// callWithTimeout runs a plugin hook with a hard deadline.
// Plugins should never block the entitlement path.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
