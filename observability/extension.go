// Package observability provides a metrics extension for Tally that records
// lifecycle event counts via a pluggable MetricFactory.
package observability

import (
	"context"

	"github.com/xraph/tally/plugin"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin                = (*MetricsExtension)(nil)
	_ plugin.OnInit                = (*MetricsExtension)(nil)
	_ plugin.OnSubscriptionCreated = (*MetricsExtension)(nil)
	_ plugin.OnTierChanged         = (*MetricsExtension)(nil)
	_ plugin.OnStatusChanged       = (*MetricsExtension)(nil)
	_ plugin.OnPeriodRolledOver    = (*MetricsExtension)(nil)
	_ plugin.OnSubscriptionExpired = (*MetricsExtension)(nil)
	_ plugin.OnLimitsOverridden    = (*MetricsExtension)(nil)
	_ plugin.OnEntitlementChecked  = (*MetricsExtension)(nil)
	_ plugin.OnQuotaExceeded       = (*MetricsExtension)(nil)
	_ plugin.OnGenerationRecorded  = (*MetricsExtension)(nil)
	_ plugin.OnResumeCreated       = (*MetricsExtension)(nil)
	_ plugin.OnResumesPurged       = (*MetricsExtension)(nil)
	_ plugin.OnJobDescriptionUsed  = (*MetricsExtension)(nil)
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
// Register it as a Tally plugin to automatically track entitlement metrics.
type MetricsExtension struct {
	factory MetricFactory

	// Subscription metrics
	SubscriptionCreated Counter
	TierChanged         Counter
	StatusChanged       Counter
	PeriodRolledOver    Counter
	SubscriptionExpired Counter
	LimitsOverridden    Counter

	// Entitlement metrics
	EntitlementChecks Counter
	EntitlementDenied Counter
	QuotaExceeded     Counter

	// Usage metrics
	GenerationsRecorded Counter
	ResumesCreated      Counter
	ResumesPurged       Counter
	ResumePurgeBatch    Histogram
	JobDescriptionsUsed Counter
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
// Use app.Metrics() in forge extensions.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		// Subscription metrics
		SubscriptionCreated: factory.Counter("tally.subscription.created"),
		TierChanged:         factory.Counter("tally.subscription.tier_changed"),
		StatusChanged:       factory.Counter("tally.subscription.status_changed"),
		PeriodRolledOver:    factory.Counter("tally.subscription.period_rolled_over"),
		SubscriptionExpired: factory.Counter("tally.subscription.expired"),
		LimitsOverridden:    factory.Counter("tally.subscription.limits_overridden"),

		// Entitlement metrics
		EntitlementChecks: factory.Counter("tally.entitlement.checks"),
		EntitlementDenied: factory.Counter("tally.entitlement.denied"),
		QuotaExceeded:     factory.Counter("tally.entitlement.quota_exceeded"),

		// Usage metrics
		GenerationsRecorded: factory.Counter("tally.generation.recorded"),
		ResumesCreated:      factory.Counter("tally.resume.created"),
		ResumesPurged:       factory.Counter("tally.resume.purged"),
		ResumePurgeBatch:    factory.Histogram("tally.resume.purge.batch_size"),
		JobDescriptionsUsed: factory.Counter("tally.jobdesc.used"),
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
// Subscription lifecycle hooks
// ──────────────────────────────────────────────────

// OnSubscriptionCreated implements plugin.OnSubscriptionCreated.
func (m *MetricsExtension) OnSubscriptionCreated(_ context.Context, _ interface{}) error {
	m.SubscriptionCreated.Inc()
	return nil
}

// OnTierChanged implements plugin.OnTierChanged.
func (m *MetricsExtension) OnTierChanged(_ context.Context, _ interface{}, _, _ string) error {
	m.TierChanged.Inc()
	return nil
}

// OnStatusChanged implements plugin.OnStatusChanged.
func (m *MetricsExtension) OnStatusChanged(_ context.Context, _ interface{}, _, _ string) error {
	m.StatusChanged.Inc()
	return nil
}

// OnPeriodRolledOver implements plugin.OnPeriodRolledOver.
func (m *MetricsExtension) OnPeriodRolledOver(_ context.Context, _ interface{}) error {
	m.PeriodRolledOver.Inc()
	return nil
}

// OnSubscriptionExpired implements plugin.OnSubscriptionExpired.
func (m *MetricsExtension) OnSubscriptionExpired(_ context.Context, _ interface{}) error {
	m.SubscriptionExpired.Inc()
	return nil
}

// OnLimitsOverridden implements plugin.OnLimitsOverridden.
func (m *MetricsExtension) OnLimitsOverridden(_ context.Context, _ string, _ interface{}) error {
	m.LimitsOverridden.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Entitlement hooks
// ──────────────────────────────────────────────────

// OnEntitlementChecked implements plugin.OnEntitlementChecked.
func (m *MetricsExtension) OnEntitlementChecked(_ context.Context, decision interface{}) error {
	m.EntitlementChecks.Inc()
	if d, ok := decision.(interface{ Denied() bool }); ok && d.Denied() {
		m.EntitlementDenied.Inc()
	}
	return nil
}

// OnQuotaExceeded implements plugin.OnQuotaExceeded.
func (m *MetricsExtension) OnQuotaExceeded(_ context.Context, _, _ string, _, _ int64) error {
	m.QuotaExceeded.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Usage hooks
// ──────────────────────────────────────────────────

// OnGenerationRecorded implements plugin.OnGenerationRecorded.
func (m *MetricsExtension) OnGenerationRecorded(_ context.Context, _, _ string) error {
	m.GenerationsRecorded.Inc()
	return nil
}

// OnResumeCreated implements plugin.OnResumeCreated.
func (m *MetricsExtension) OnResumeCreated(_ context.Context, _ interface{}) error {
	m.ResumesCreated.Inc()
	return nil
}

// OnResumesPurged implements plugin.OnResumesPurged.
func (m *MetricsExtension) OnResumesPurged(_ context.Context, count int64) error {
	m.ResumesPurged.Add(float64(count))
	m.ResumePurgeBatch.Observe(float64(count))
	return nil
}

// OnJobDescriptionUsed implements plugin.OnJobDescriptionUsed.
func (m *MetricsExtension) OnJobDescriptionUsed(_ context.Context, _ string) error {
	m.JobDescriptionsUsed.Inc()
	return nil
}
