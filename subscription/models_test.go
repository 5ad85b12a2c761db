package subscription

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/xraph/tally/tier"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		ok       bool
	}{
		{StatusActive, StatusPaused, true},
		{StatusActive, StatusCancelled, true},
		{StatusPaused, StatusActive, true},
		{StatusPaused, StatusCancelled, true},
		{StatusActive, StatusExpired, false},
		{StatusCancelled, StatusActive, false},
		{StatusCancelled, StatusPaused, false},
		{StatusExpired, StatusActive, false},
		{StatusExpired, StatusCancelled, false},
		{StatusPaused, StatusExpired, false},
	}

	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.ok {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.ok)
		}
	}
}

func TestStatusActionTarget(t *testing.T) {
	tests := []struct {
		action StatusAction
		target Status
		ok     bool
	}{
		{ActionPause, StatusPaused, true},
		{ActionResume, StatusActive, true},
		{ActionCancel, StatusCancelled, true},
		{StatusAction("destroy"), "", false},
	}

	for _, tt := range tests {
		target, ok := tt.action.Target()
		if target != tt.target || ok != tt.ok {
			t.Errorf("%q.Target() = (%q, %v), want (%q, %v)", tt.action, target, ok, tt.target, tt.ok)
		}
	}
}

func TestNewFree(t *testing.T) {
	limits, err := tier.DefaultCatalog().LimitsFor(tier.Free)
	if err != nil {
		t.Fatal(err)
	}

	sub := NewFree("user-1", limits)

	if sub.Tier != tier.Free {
		t.Errorf("tier: got %q", sub.Tier)
	}
	if sub.Status != StatusActive {
		t.Errorf("status: got %q", sub.Status)
	}
	if sub.GenerationAttemptsLimit != 5 || sub.SavedResumesLimit != 3 {
		t.Errorf("limits: got %d/%d, want 5/3", sub.GenerationAttemptsLimit, sub.SavedResumesLimit)
	}
	if sub.CurrentPeriodStart != nil || sub.CurrentPeriodEnd != nil {
		t.Error("free subscription must have nil period bounds")
	}
	if sub.ID.IsNil() {
		t.Error("expected a generated subscription ID")
	}
}

func TestPeriodElapsed(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	sub := &Subscription{}
	if sub.PeriodElapsed(now) {
		t.Error("subscription without a period never elapses")
	}

	end := now.Add(-time.Hour)
	sub.CurrentPeriodEnd = &end
	if !sub.PeriodElapsed(now) {
		t.Error("period ending an hour ago should have elapsed")
	}

	end = now.Add(time.Hour)
	if sub.PeriodElapsed(now) {
		t.Error("period ending in an hour should not have elapsed")
	}
}

func TestLimitOverride(t *testing.T) {
	ten := int64(10)
	unlimited := tier.Unlimited
	bad := int64(-5)

	t.Run("applies only non-nil fields", func(t *testing.T) {
		sub := NewFree("user-1", tier.Limits{GenerationAttempts: 5, SavedResumes: 3})
		o := LimitOverride{GenerationAttemptsLimit: &ten}

		if err := o.Validate(); err != nil {
			t.Fatalf("Validate: %v", err)
		}
		o.ApplyTo(sub)

		if sub.GenerationAttemptsLimit != 10 {
			t.Errorf("attempts limit: got %d, want 10", sub.GenerationAttemptsLimit)
		}
		if sub.SavedResumesLimit != 3 {
			t.Errorf("saved limit must be untouched, got %d", sub.SavedResumesLimit)
		}
	})

	t.Run("accepts the unlimited sentinel", func(t *testing.T) {
		o := LimitOverride{MonthlyResumesLimit: &unlimited}
		if err := o.Validate(); err != nil {
			t.Errorf("Validate: %v", err)
		}
	})

	t.Run("rejects other negative values", func(t *testing.T) {
		o := LimitOverride{SavedResumesLimit: &bad}
		if err := o.Validate(); err == nil {
			t.Error("expected validation error for -5")
		}
	})
}

func TestSubscriptionJSONRoundTrip(t *testing.T) {
	start := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)

	original := &Subscription{
		UserID:                  "user-42",
		Tier:                    tier.PremiumMonthly,
		Status:                  StatusActive,
		GenerationAttemptsUsed:  2,
		GenerationAttemptsLimit: -1,
		SavedResumesCount:       7,
		SavedResumesLimit:       -1,
		MonthlyResumesCreated:   13,
		MonthlyResumesLimit:     50,
		CurrentPeriodStart:      &start,
		CurrentPeriodEnd:        &end,
		CustomerRef:             "cus_abc",
		SubscriptionRef:         "provider_sub_xyz",
		LastBillingEventID:      "evt_123",
	}

	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded Subscription
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if decoded.Tier != original.Tier || decoded.Status != original.Status {
		t.Errorf("enum fields changed: %+v", decoded)
	}
	if decoded.GenerationAttemptsUsed != 2 || decoded.GenerationAttemptsLimit != -1 ||
		decoded.SavedResumesCount != 7 || decoded.SavedResumesLimit != -1 ||
		decoded.MonthlyResumesCreated != 13 || decoded.MonthlyResumesLimit != 50 {
		t.Errorf("counter fields changed: %+v", decoded)
	}
	if decoded.CurrentPeriodStart == nil || !decoded.CurrentPeriodStart.Equal(start) {
		t.Errorf("period start changed: %v", decoded.CurrentPeriodStart)
	}
	if decoded.CurrentPeriodEnd == nil || !decoded.CurrentPeriodEnd.Equal(end) {
		t.Errorf("period end changed: %v", decoded.CurrentPeriodEnd)
	}
	if decoded.LastBillingEventID != "evt_123" {
		t.Errorf("billing event id changed: %q", decoded.LastBillingEventID)
	}
}
