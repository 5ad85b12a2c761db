package entitlement

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/xraph/tally/subscription"
	"github.com/xraph/tally/tier"
	"github.com/xraph/tally/types"
)

func freeSub(used, limit, saved, savedLimit int64) *subscription.Subscription {
	return &subscription.Subscription{
		UserID:                  "user-1",
		Tier:                    tier.Free,
		Status:                  subscription.StatusActive,
		GenerationAttemptsUsed:  used,
		GenerationAttemptsLimit: limit,
		SavedResumesCount:       saved,
		SavedResumesLimit:       savedLimit,
	}
}

func paidSub(created, limit int64) *subscription.Subscription {
	return &subscription.Subscription{
		UserID:                  "user-1",
		Tier:                    tier.PremiumMonthly,
		Status:                  subscription.StatusActive,
		GenerationAttemptsLimit: tier.Unlimited,
		SavedResumesLimit:       tier.Unlimited,
		MonthlyResumesCreated:   created,
		MonthlyResumesLimit:     limit,
	}
}

func paidEnv() Env {
	limits, _ := tier.DefaultCatalog().LimitsFor(tier.PremiumMonthly)
	return NewEnv(limits)
}

func freeEnv() Env {
	limits, _ := tier.DefaultCatalog().LimitsFor(tier.Free)
	return NewEnv(limits)
}

func TestGenerateFreeTier(t *testing.T) {
	tests := []struct {
		name          string
		sub           *subscription.Subscription
		allowed       bool
		reason        string
		remaining     int64
	}{
		{"fresh account", freeSub(0, 5, 0, 3), true, "", 5},
		{"some usage", freeSub(2, 5, 1, 3), true, "", 3},
		{"attempts exactly at limit", freeSub(5, 5, 0, 3), false, ReasonAttemptLimitReached, 0},
		{"attempts over limit", freeSub(7, 5, 0, 3), false, ReasonAttemptLimitReached, 0},
		{"saved slots exactly at limit", freeSub(2, 5, 3, 3), false, ReasonSavedResumeLimitReached, 0},
		{"attempt check wins over saved check", freeSub(5, 5, 3, 3), false, ReasonAttemptLimitReached, 0},
		{"admin raised attempt limit", freeSub(5, 10, 0, 3), true, "", 5},
		{"admin set unlimited attempts", freeSub(100, -1, 0, 3), true, "", -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := Evaluate(ActionGenerateResume, tt.sub, freeEnv())
			if err != nil {
				t.Fatalf("Evaluate: %v", err)
			}
			if d.Allowed != tt.allowed {
				t.Errorf("Allowed = %v, want %v", d.Allowed, tt.allowed)
			}
			if d.Reason != tt.reason {
				t.Errorf("Reason = %q, want %q", d.Reason, tt.reason)
			}
			if d.Allowed && d.Remaining != tt.remaining {
				t.Errorf("Remaining = %d, want %d", d.Remaining, tt.remaining)
			}
		})
	}
}

func TestGeneratePaidTier(t *testing.T) {
	tests := []struct {
		name      string
		sub       *subscription.Subscription
		allowed   bool
		reason    string
		remaining int64
	}{
		{"fresh period", paidSub(0, 50), true, "", 50},
		{"mid period", paidSub(30, 50), true, "", 20},
		{"exactly at limit", paidSub(50, 50), false, ReasonMonthlyLimitReached, 0},
		{"over limit", paidSub(51, 50), false, ReasonMonthlyLimitReached, 0},
		{"unlimited monthly", paidSub(10000, -1), true, "", -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := Evaluate(ActionGenerateResume, tt.sub, paidEnv())
			if err != nil {
				t.Fatalf("Evaluate: %v", err)
			}
			if d.Allowed != tt.allowed {
				t.Errorf("Allowed = %v, want %v", d.Allowed, tt.allowed)
			}
			if d.Reason != tt.reason {
				t.Errorf("Reason = %q, want %q", d.Reason, tt.reason)
			}
			if d.Allowed && d.Remaining != tt.remaining {
				t.Errorf("Remaining = %d, want %d", d.Remaining, tt.remaining)
			}
		})
	}
}

func TestGeneratePaidIgnoresFreeCounters(t *testing.T) {
	sub := paidSub(0, 50)
	sub.GenerationAttemptsUsed = 999
	sub.GenerationAttemptsLimit = 5
	sub.SavedResumesCount = 999
	sub.SavedResumesLimit = 3

	d, err := Evaluate(ActionGenerateResume, sub, paidEnv())
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !d.Allowed {
		t.Errorf("paid tier must ignore free counters: %+v", d)
	}
}

func TestGenerateExternalSavedCount(t *testing.T) {
	// The stored denormalized counter says 0, but the resume store
	// counted 3 rows. The external count wins.
	sub := freeSub(0, 5, 0, 3)
	env := freeEnv()
	env.SavedResumes = 3

	d, err := Evaluate(ActionGenerateResume, sub, env)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if d.Allowed {
		t.Error("expected denial from externally-counted saved resumes")
	}
	if d.Reason != ReasonSavedResumeLimitReached {
		t.Errorf("Reason = %q", d.Reason)
	}
	if d.Snapshot.SavedResumes != 3 {
		t.Errorf("snapshot should carry the external count, got %d", d.Snapshot.SavedResumes)
	}
}

func TestGenerateInvalidLimit(t *testing.T) {
	tests := []struct {
		name string
		sub  *subscription.Subscription
	}{
		{"free attempts limit -2", freeSub(0, -2, 0, 3)},
		{"free saved limit -3", freeSub(0, 5, 0, -3)},
		{"paid monthly limit -2", paidSub(0, -2)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Evaluate(ActionGenerateResume, tt.sub, freeEnv())
			if !errors.Is(err, ErrInvalidLimit) {
				t.Errorf("expected ErrInvalidLimit, got %v", err)
			}
		})
	}
}

func TestUploadJobDescription(t *testing.T) {
	// Free tier is denied regardless of counters.
	for _, sub := range []*subscription.Subscription{
		freeSub(0, 5, 0, 3),
		freeSub(5, 5, 3, 3),
	} {
		d, err := Evaluate(ActionUploadJobDescription, sub, freeEnv())
		if err != nil {
			t.Fatalf("Evaluate: %v", err)
		}
		if d.Allowed {
			t.Error("free tier must not upload job descriptions")
		}
		if d.Reason != ReasonJobDescriptionNeedsPaid {
			t.Errorf("Reason = %q", d.Reason)
		}
	}

	// Paid tiers are allowed even with the monthly quota exhausted.
	d, err := Evaluate(ActionUploadJobDescription, paidSub(50, 50), paidEnv())
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !d.Allowed {
		t.Errorf("paid tier should upload job descriptions: %+v", d)
	}
}

func TestSelectTemplate(t *testing.T) {
	tests := []struct {
		name     string
		sub      *subscription.Subscription
		env      Env
		template string
		allowed  bool
	}{
		{"free tier free template", freeSub(0, 5, 0, 3), freeEnv(), tier.TemplateClassic, true},
		{"free tier premium template", freeSub(0, 5, 0, 3), freeEnv(), tier.TemplateExecutive, false},
		{"paid tier premium template", paidSub(0, 50), paidEnv(), tier.TemplateExecutive, true},
		{"paid tier unknown template", paidSub(0, 50), paidEnv(), "does-not-exist", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := tt.env
			env.Template = tt.template
			d, err := Evaluate(ActionSelectTemplate, tt.sub, env)
			if err != nil {
				t.Fatalf("Evaluate: %v", err)
			}
			if d.Allowed != tt.allowed {
				t.Errorf("Allowed = %v, want %v", d.Allowed, tt.allowed)
			}
		})
	}
}

func TestEvaluateErrors(t *testing.T) {
	if _, err := Evaluate(ActionGenerateResume, nil, freeEnv()); !errors.Is(err, ErrNilSubscription) {
		t.Errorf("expected ErrNilSubscription, got %v", err)
	}
	if _, err := Evaluate(Action("refund"), freeSub(0, 5, 0, 3), freeEnv()); !errors.Is(err, ErrUnknownAction) {
		t.Errorf("expected ErrUnknownAction, got %v", err)
	}
}

func TestEvaluateIsPure(t *testing.T) {
	sub := freeSub(2, 5, 1, 3)
	before := *sub

	if _, err := Evaluate(ActionGenerateResume, sub, freeEnv()); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(*sub, before) {
		t.Error("Evaluate must not mutate the subscription")
	}
}

func TestPDFExpiry(t *testing.T) {
	now := time.Date(2026, 4, 10, 9, 0, 0, 0, time.UTC)
	catalog := tier.DefaultCatalog()

	free, _ := catalog.LimitsFor(tier.Free)
	expiry := PDFExpiry(free, now)
	if expiry == nil {
		t.Fatal("free-tier PDFs must expire")
	}
	if want := now.Add(15 * 24 * time.Hour); !expiry.Equal(want) {
		t.Errorf("expiry = %v, want %v", expiry, want)
	}

	paid, _ := catalog.LimitsFor(tier.PremiumAnnual)
	if got := PDFExpiry(paid, now); got != nil {
		t.Errorf("paid-tier PDFs must not expire, got %v", got)
	}
}

func TestCostModelEstimate(t *testing.T) {
	m := DefaultCostModel()

	tests := []struct {
		tokens int64
		want   types.Money
	}{
		{0, types.Zero("usd")},
		{-10, types.Zero("usd")},
		{1000, types.USD(3)},
		{4500, types.USD(13)},
		{500, types.USD(1)},
	}

	for _, tt := range tests {
		if got := m.Estimate(tt.tokens); !got.Equal(tt.want) {
			t.Errorf("Estimate(%d) = %v, want %v", tt.tokens, got, tt.want)
		}
	}
}
