// Package subscription defines the per-user subscription record and its
// status state machine. Exactly one Subscription exists per user; it is
// created alongside the user and never deleted while the user exists.
package subscription

import (
	"time"

	"github.com/xraph/tally/id"
	"github.com/xraph/tally/tier"
	"github.com/xraph/tally/types"
)

// Status is the lifecycle state of a subscription.
type Status string

const (
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusCancelled Status = "cancelled"
	StatusExpired   Status = "expired"
)

// CanTransition reports whether the status state machine permits moving
// from one status to another. Cancelled and expired are terminal.
// Expired is reachable only via the lapse sweep, not via a caller action.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusActive:
		return to == StatusPaused || to == StatusCancelled
	case StatusPaused:
		return to == StatusActive || to == StatusCancelled
	}
	return false
}

// StatusAction is a caller-requested status change.
type StatusAction string

const (
	ActionPause  StatusAction = "pause"
	ActionResume StatusAction = "resume"
	ActionCancel StatusAction = "cancel"
)

// Target returns the status the action maps to, and whether the action
// is recognized.
func (a StatusAction) Target() (Status, bool) {
	switch a {
	case ActionPause:
		return StatusPaused, true
	case ActionResume:
		return StatusActive, true
	case ActionCancel:
		return StatusCancelled, true
	}
	return "", false
}

// Subscription is the persisted entitlement record for one user.
//
// The free-tier counters (GenerationAttemptsUsed/SavedResumesCount) are
// authoritative while Tier is free; the monthly counters are authoritative
// on paid tiers. Limit fields are persisted rather than re-derived from the
// tier so that admin overrides stay effective.
type Subscription struct {
	types.Entity
	ID     id.SubscriptionID `json:"id"`
	UserID string            `json:"user_id"`
	Tier   tier.Tier         `json:"tier"`
	Status Status            `json:"status"`

	// Free-tier counters.
	GenerationAttemptsUsed  int64 `json:"generation_attempts_used"`
	GenerationAttemptsLimit int64 `json:"generation_attempts_limit"`
	SavedResumesCount       int64 `json:"saved_resumes_count"`
	SavedResumesLimit       int64 `json:"saved_resumes_limit"`

	// Paid-tier counters, reset each billing period.
	MonthlyResumesCreated int64 `json:"monthly_resumes_created"`
	MonthlyResumesLimit   int64 `json:"monthly_resumes_limit"`

	// Billing period bounds. Nil for free and lifetime tiers.
	CurrentPeriodStart *time.Time `json:"current_period_start,omitempty"`
	CurrentPeriodEnd   *time.Time `json:"current_period_end,omitempty"`

	// Opaque payment-provider references. Not interpreted by Tally.
	CustomerRef     string `json:"customer_ref,omitempty"`
	SubscriptionRef string `json:"subscription_ref,omitempty"`
	PaymentRef      string `json:"payment_ref,omitempty"`

	// LastBillingEventID is the idempotency key of the most recently
	// applied billing event. A replayed event with the same ID is a no-op.
	LastBillingEventID string `json:"last_billing_event_id,omitempty"`

	Metadata map[string]string `json:"metadata,omitempty"`
}

// NewFree returns a fresh free-tier subscription for a user, seeded with
// the catalog's free limits. Provisioning it is the caller's job; Tally
// never auto-creates subscription records.
func NewFree(userID string, limits tier.Limits) *Subscription {
	return &Subscription{
		Entity:                  types.NewEntity(),
		ID:                      id.NewSubscriptionID(),
		UserID:                  userID,
		Tier:                    tier.Free,
		Status:                  StatusActive,
		GenerationAttemptsLimit: limits.GenerationAttempts,
		SavedResumesLimit:       limits.SavedResumes,
		MonthlyResumesLimit:     limits.MonthlyResumes,
	}
}

// IsPaid reports whether the subscription is on a paid tier.
func (s *Subscription) IsPaid() bool {
	return s.Tier.IsPaid()
}

// PeriodElapsed reports whether the billing period has lapsed at the
// given instant. Subscriptions without a period never elapse.
func (s *Subscription) PeriodElapsed(now time.Time) bool {
	return s.CurrentPeriodEnd != nil && now.After(*s.CurrentPeriodEnd)
}

// LimitOverride is the explicit allow-listed set of limit fields a
// privileged admin caller may overwrite. Nil fields are left untouched.
// There is deliberately no free-form field map.
type LimitOverride struct {
	GenerationAttemptsLimit *int64 `json:"generation_attempts_limit,omitempty"`
	SavedResumesLimit       *int64 `json:"saved_resumes_limit,omitempty"`
	MonthlyResumesLimit     *int64 `json:"monthly_resumes_limit,omitempty"`
}

// Validate rejects overrides carrying a negative value other than the
// Unlimited sentinel.
func (o LimitOverride) Validate() error {
	check := tier.Limits{}
	if o.GenerationAttemptsLimit != nil {
		check.GenerationAttempts = *o.GenerationAttemptsLimit
	}
	if o.SavedResumesLimit != nil {
		check.SavedResumes = *o.SavedResumesLimit
	}
	if o.MonthlyResumesLimit != nil {
		check.MonthlyResumes = *o.MonthlyResumesLimit
	}
	return check.Validate()
}

// ApplyTo merges the non-nil override fields into the subscription.
func (o LimitOverride) ApplyTo(s *Subscription) {
	if o.GenerationAttemptsLimit != nil {
		s.GenerationAttemptsLimit = *o.GenerationAttemptsLimit
	}
	if o.SavedResumesLimit != nil {
		s.SavedResumesLimit = *o.SavedResumesLimit
	}
	if o.MonthlyResumesLimit != nil {
		s.MonthlyResumesLimit = *o.MonthlyResumesLimit
	}
}
