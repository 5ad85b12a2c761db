// Package audithook bridges Tally lifecycle events to an audit trail backend.
//
// It defines a local Recorder interface so the package does not import
// an audit backend directly. Callers inject a RecorderFunc adapter that
// bridges to their trail at wiring time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xraph/tally/entitlement"
	"github.com/xraph/tally/plugin"
	"github.com/xraph/tally/subscription"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin                = (*Extension)(nil)
	_ plugin.OnSubscriptionCreated = (*Extension)(nil)
	_ plugin.OnTierChanged         = (*Extension)(nil)
	_ plugin.OnStatusChanged       = (*Extension)(nil)
	_ plugin.OnPeriodRolledOver    = (*Extension)(nil)
	_ plugin.OnSubscriptionExpired = (*Extension)(nil)
	_ plugin.OnLimitsOverridden    = (*Extension)(nil)
	_ plugin.OnEntitlementChecked  = (*Extension)(nil)
	_ plugin.OnQuotaExceeded       = (*Extension)(nil)
	_ plugin.OnGenerationRecorded  = (*Extension)(nil)
	_ plugin.OnResumesPurged       = (*Extension)(nil)
	_ plugin.OnJobDescriptionUsed  = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
// It is defined locally so that audit_hook does not depend on a
// concrete audit module; callers inject their backend at wiring time.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a local representation of an audit event.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges Tally lifecycle events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Subscription lifecycle hooks
// ──────────────────────────────────────────────────

// OnSubscriptionCreated implements plugin.OnSubscriptionCreated.
func (e *Extension) OnSubscriptionCreated(ctx context.Context, sub interface{}) error {
	userID, subID := subscriptionRefs(sub)
	return e.record(ctx, ActionSubscriptionCreated, SeverityInfo, OutcomeSuccess,
		ResourceSubscription, subID, CategorySubscription, nil,
		"user_id", userID,
	)
}

// OnTierChanged implements plugin.OnTierChanged.
func (e *Extension) OnTierChanged(ctx context.Context, sub interface{}, oldTier, newTier string) error {
	userID, subID := subscriptionRefs(sub)
	return e.record(ctx, ActionTierChanged, SeverityInfo, OutcomeSuccess,
		ResourceSubscription, subID, CategorySubscription, nil,
		"user_id", userID,
		"old_tier", oldTier,
		"new_tier", newTier,
	)
}

// OnStatusChanged implements plugin.OnStatusChanged.
func (e *Extension) OnStatusChanged(ctx context.Context, sub interface{}, oldStatus, newStatus string) error {
	userID, subID := subscriptionRefs(sub)
	return e.record(ctx, ActionStatusChanged, SeverityInfo, OutcomeSuccess,
		ResourceSubscription, subID, CategorySubscription, nil,
		"user_id", userID,
		"old_status", oldStatus,
		"new_status", newStatus,
	)
}

// OnPeriodRolledOver implements plugin.OnPeriodRolledOver.
func (e *Extension) OnPeriodRolledOver(ctx context.Context, sub interface{}) error {
	userID, subID := subscriptionRefs(sub)
	return e.record(ctx, ActionPeriodRolledOver, SeverityInfo, OutcomeSuccess,
		ResourceSubscription, subID, CategorySubscription, nil,
		"user_id", userID,
	)
}

// OnSubscriptionExpired implements plugin.OnSubscriptionExpired.
func (e *Extension) OnSubscriptionExpired(ctx context.Context, sub interface{}) error {
	userID, subID := subscriptionRefs(sub)
	return e.record(ctx, ActionSubscriptionExpired, SeverityWarning, OutcomeSuccess,
		ResourceSubscription, subID, CategorySubscription, nil,
		"user_id", userID,
	)
}

// OnLimitsOverridden implements plugin.OnLimitsOverridden.
func (e *Extension) OnLimitsOverridden(ctx context.Context, userID string, _ interface{}) error {
	return e.record(ctx, ActionLimitsOverridden, SeverityWarning, OutcomeSuccess,
		ResourceSubscription, "", CategoryAdmin, nil,
		"user_id", userID,
	)
}

// ──────────────────────────────────────────────────
// Entitlement hooks
// ──────────────────────────────────────────────────

// OnEntitlementChecked implements plugin.OnEntitlementChecked.
// Only denied checks are audited to reduce noise.
func (e *Extension) OnEntitlementChecked(ctx context.Context, decision interface{}) error {
	d, ok := decision.(entitlement.Decision)
	if !ok || d.Allowed {
		return nil
	}
	return e.record(ctx, ActionEntitlementDenied, SeverityInfo, OutcomeFailure,
		ResourceEntitlement, "", CategoryAccess, nil,
		"action", string(d.Action),
		"reason", d.Reason,
	)
}

// OnQuotaExceeded implements plugin.OnQuotaExceeded.
func (e *Extension) OnQuotaExceeded(ctx context.Context, userID, action string, used, limit int64) error {
	return e.record(ctx, ActionQuotaExceeded, SeverityWarning, OutcomeFailure,
		ResourceEntitlement, "", CategoryAccess, nil,
		"user_id", userID,
		"action", action,
		"used", used,
		"limit", limit,
	)
}

// ──────────────────────────────────────────────────
// Usage hooks
// ──────────────────────────────────────────────────

// OnGenerationRecorded implements plugin.OnGenerationRecorded.
func (e *Extension) OnGenerationRecorded(ctx context.Context, userID, tierName string) error {
	return e.record(ctx, ActionGenerationRecorded, SeverityInfo, OutcomeSuccess,
		ResourceResume, "", CategoryUsage, nil,
		"user_id", userID,
		"tier", tierName,
	)
}

// OnResumesPurged implements plugin.OnResumesPurged.
func (e *Extension) OnResumesPurged(ctx context.Context, count int64) error {
	return e.record(ctx, ActionResumesPurged, SeverityInfo, OutcomeSuccess,
		ResourceResume, "", CategoryUsage, nil,
		"count", count,
	)
}

// OnJobDescriptionUsed implements plugin.OnJobDescriptionUsed.
func (e *Extension) OnJobDescriptionUsed(ctx context.Context, jdID string) error {
	return e.record(ctx, ActionJobDescriptionUsed, SeverityInfo, OutcomeSuccess,
		ResourceJobDescription, jdID, CategoryUsage, nil,
		"job_description_id", jdID,
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// subscriptionRefs extracts the user and subscription identifiers when
// the hook payload is the engine's subscription type.
func subscriptionRefs(sub interface{}) (userID, subID string) {
	s, ok := sub.(*subscription.Subscription)
	if !ok {
		return "", ""
	}
	return s.UserID, s.ID.String()
}

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
