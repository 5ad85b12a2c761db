// Package plugin provides an extensible plugin system for Tally.
// Plugins can hook into various lifecycle events to extend functionality.
package plugin

import "context"

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the plugin is initialized.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, engine interface{}) error
}

// OnShutdown is called when the plugin is shutting down.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Subscription lifecycle hooks
// ──────────────────────────────────────────────────

// OnSubscriptionCreated is called when a new subscription is provisioned.
type OnSubscriptionCreated interface {
	Plugin
	OnSubscriptionCreated(ctx context.Context, sub interface{}) error
}

// OnTierChanged is called after a checkout or webhook moves a
// subscription to a new tier.
type OnTierChanged interface {
	Plugin
	OnTierChanged(ctx context.Context, sub interface{}, oldTier, newTier string) error
}

// OnStatusChanged is called after a pause/resume/cancel action.
type OnStatusChanged interface {
	Plugin
	OnStatusChanged(ctx context.Context, sub interface{}, oldStatus, newStatus string) error
}

// OnPeriodRolledOver is called when a billing period rollover resets the
// monthly counters.
type OnPeriodRolledOver interface {
	Plugin
	OnPeriodRolledOver(ctx context.Context, sub interface{}) error
}

// OnSubscriptionExpired is called when the lapse sweep expires a
// subscription whose period ended without renewal.
type OnSubscriptionExpired interface {
	Plugin
	OnSubscriptionExpired(ctx context.Context, sub interface{}) error
}

// OnLimitsOverridden is called when a privileged caller overwrites
// persisted limit fields.
type OnLimitsOverridden interface {
	Plugin
	OnLimitsOverridden(ctx context.Context, userID string, override interface{}) error
}

// ──────────────────────────────────────────────────
// Entitlement and usage hooks
// ──────────────────────────────────────────────────

// OnEntitlementChecked is called after every entitlement decision.
type OnEntitlementChecked interface {
	Plugin
	OnEntitlementChecked(ctx context.Context, decision interface{}) error
}

// OnQuotaExceeded is called when a check or commit is denied for quota.
type OnQuotaExceeded interface {
	Plugin
	OnQuotaExceeded(ctx context.Context, userID, action string, used, limit int64) error
}

// OnGenerationRecorded is called after a generation is committed to the
// usage counters.
type OnGenerationRecorded interface {
	Plugin
	OnGenerationRecorded(ctx context.Context, userID, tierName string) error
}

// ──────────────────────────────────────────────────
// Resume and job-description hooks
// ──────────────────────────────────────────────────

// OnResumeCreated is called when a generated resume is persisted.
type OnResumeCreated interface {
	Plugin
	OnResumeCreated(ctx context.Context, res interface{}) error
}

// OnResumesPurged is called after the PDF-retention sweep removes
// expired resumes.
type OnResumesPurged interface {
	Plugin
	OnResumesPurged(ctx context.Context, count int64) error
}

// OnJobDescriptionUsed is called when a generation consumes a job
// description.
type OnJobDescriptionUsed interface {
	Plugin
	OnJobDescriptionUsed(ctx context.Context, jdID string) error
}
