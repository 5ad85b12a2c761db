package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	tally "github.com/xraph/tally"
	"github.com/xraph/tally/id"
	"github.com/xraph/tally/resume"
	"github.com/xraph/tally/subscription"
	"github.com/xraph/tally/tier"
	"github.com/xraph/tally/types"
)

func freeSub(userID string) *subscription.Subscription {
	return subscription.NewFree(userID, tier.Limits{
		GenerationAttempts: 5,
		SavedResumes:       3,
	})
}

func mustCreate(t *testing.T, s *Store, sub *subscription.Subscription) {
	t.Helper()
	if err := s.CreateSubscription(context.Background(), sub); err != nil {
		t.Fatalf("CreateSubscription: %v", err)
	}
}

func TestIncrementFreeGeneration(t *testing.T) {
	ctx := context.Background()

	t.Run("SpendsBothCounters", func(t *testing.T) {
		s := New()
		mustCreate(t, s, freeSub("u1"))

		if err := s.IncrementFreeGeneration(ctx, "u1"); err != nil {
			t.Fatal(err)
		}

		sub, _ := s.GetSubscriptionByUser(ctx, "u1")
		if sub.GenerationAttemptsUsed != 1 || sub.SavedResumesCount != 1 {
			t.Errorf("counters = %d/%d, want 1/1", sub.GenerationAttemptsUsed, sub.SavedResumesCount)
		}
	})

	t.Run("AttemptLimitBlocks", func(t *testing.T) {
		s := New()
		sub := freeSub("u1")
		sub.GenerationAttemptsUsed = 5
		mustCreate(t, s, sub)

		if err := s.IncrementFreeGeneration(ctx, "u1"); !errors.Is(err, tally.ErrQuotaExceeded) {
			t.Errorf("error = %v, want ErrQuotaExceeded", err)
		}
		if sub.SavedResumesCount != 0 {
			t.Errorf("saved counter moved on a blocked increment: %d", sub.SavedResumesCount)
		}
	})

	t.Run("SavedLimitBlocks", func(t *testing.T) {
		s := New()
		sub := freeSub("u1")
		sub.SavedResumesCount = 3
		mustCreate(t, s, sub)

		if err := s.IncrementFreeGeneration(ctx, "u1"); !errors.Is(err, tally.ErrQuotaExceeded) {
			t.Errorf("error = %v, want ErrQuotaExceeded", err)
		}
	})

	t.Run("UnlimitedSentinel", func(t *testing.T) {
		s := New()
		sub := freeSub("u1")
		sub.GenerationAttemptsLimit = tier.Unlimited
		sub.SavedResumesLimit = tier.Unlimited
		sub.GenerationAttemptsUsed = 9000
		mustCreate(t, s, sub)

		if err := s.IncrementFreeGeneration(ctx, "u1"); err != nil {
			t.Errorf("unlimited increment failed: %v", err)
		}
	})

	t.Run("MissingSubscription", func(t *testing.T) {
		s := New()
		if err := s.IncrementFreeGeneration(ctx, "ghost"); !errors.Is(err, tally.ErrSubscriptionNotFound) {
			t.Errorf("error = %v, want ErrSubscriptionNotFound", err)
		}
	})
}

func TestIncrementMonthlyGeneration(t *testing.T) {
	ctx := context.Background()
	s := New()
	sub := freeSub("u1")
	sub.Tier = tier.PremiumMonthly
	sub.MonthlyResumesLimit = 2
	mustCreate(t, s, sub)

	for i := 0; i < 2; i++ {
		if err := s.IncrementMonthlyGeneration(ctx, "u1"); err != nil {
			t.Fatalf("increment %d: %v", i+1, err)
		}
	}
	if err := s.IncrementMonthlyGeneration(ctx, "u1"); !errors.Is(err, tally.ErrQuotaExceeded) {
		t.Errorf("error = %v, want ErrQuotaExceeded", err)
	}
	if sub.MonthlyResumesCreated != 2 {
		t.Errorf("MonthlyResumesCreated = %d, want 2", sub.MonthlyResumesCreated)
	}
}

func TestReleaseSavedSlot(t *testing.T) {
	ctx := context.Background()
	s := New()
	sub := freeSub("u1")
	sub.SavedResumesCount = 1
	mustCreate(t, s, sub)

	if err := s.ReleaseSavedSlot(ctx, "u1"); err != nil {
		t.Fatal(err)
	}
	if sub.SavedResumesCount != 0 {
		t.Errorf("SavedResumesCount = %d, want 0", sub.SavedResumesCount)
	}

	// Clamped at zero.
	if err := s.ReleaseSavedSlot(ctx, "u1"); err != nil {
		t.Fatal(err)
	}
	if sub.SavedResumesCount != 0 {
		t.Errorf("SavedResumesCount = %d, want 0 after clamped release", sub.SavedResumesCount)
	}
}

func TestPurgeExpiredResumes(t *testing.T) {
	ctx := context.Background()
	s := New()
	sub := freeSub("u1")
	sub.SavedResumesCount = 2
	mustCreate(t, s, sub)

	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	expired := now.Add(-time.Hour)
	fresh := now.Add(time.Hour)

	for _, r := range []*resume.Resume{
		{Entity: types.NewEntity(), ID: id.NewResumeID(), UserID: "u1", Title: "old", PDFExpiresAt: &expired},
		{Entity: types.NewEntity(), ID: id.NewResumeID(), UserID: "u1", Title: "new", PDFExpiresAt: &fresh},
		{Entity: types.NewEntity(), ID: id.NewResumeID(), UserID: "u2", Title: "paid"},
	} {
		if err := s.CreateResume(ctx, r); err != nil {
			t.Fatal(err)
		}
	}

	purged, err := s.PurgeExpiredResumes(ctx, now)
	if err != nil {
		t.Fatal(err)
	}
	if purged != 1 {
		t.Errorf("purged = %d, want 1", purged)
	}

	n, err := s.CountResumes(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("CountResumes = %d, want 1", n)
	}

	// The owner's slot came back.
	if sub.SavedResumesCount != 1 {
		t.Errorf("SavedResumesCount = %d, want 1", sub.SavedResumesCount)
	}
}

func TestListPeriodEnded(t *testing.T) {
	ctx := context.Background()
	s := New()
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	lapsed := freeSub("lapsed")
	lapsed.Tier = tier.PremiumMonthly
	lapsed.CurrentPeriodEnd = &past
	mustCreate(t, s, lapsed)

	current := freeSub("current")
	current.Tier = tier.PremiumMonthly
	current.CurrentPeriodEnd = &future
	mustCreate(t, s, current)

	done := freeSub("done")
	done.Status = subscription.StatusExpired
	done.CurrentPeriodEnd = &past
	mustCreate(t, s, done)

	mustCreate(t, s, freeSub("free"))

	subs, err := s.ListPeriodEnded(ctx, now)
	if err != nil {
		t.Fatal(err)
	}
	if len(subs) != 1 || subs[0].UserID != "lapsed" {
		t.Errorf("ListPeriodEnded returned %d subs, want just the lapsed one", len(subs))
	}
}

func TestResumeCRUD(t *testing.T) {
	ctx := context.Background()
	s := New()

	r := &resume.Resume{
		Entity:   types.NewEntity(),
		ID:       id.NewResumeID(),
		UserID:   "u1",
		Title:    "Data Engineer",
		Template: tier.TemplateClassic,
	}
	if err := s.CreateResume(ctx, r); err != nil {
		t.Fatal(err)
	}
	if err := s.CreateResume(ctx, r); !errors.Is(err, tally.ErrAlreadyExists) {
		t.Errorf("duplicate create error = %v, want ErrAlreadyExists", err)
	}

	got, err := s.GetResume(ctx, r.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "Data Engineer" {
		t.Errorf("Title = %q", got.Title)
	}

	byTemplate, err := s.ListResumes(ctx, "u1", resume.ListOpts{Template: tier.TemplateModern})
	if err != nil {
		t.Fatal(err)
	}
	if len(byTemplate) != 0 {
		t.Errorf("template filter returned %d resumes, want 0", len(byTemplate))
	}

	if err := s.DeleteResume(ctx, r.ID); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteResume(ctx, r.ID); !errors.Is(err, tally.ErrResumeNotFound) {
		t.Errorf("second delete error = %v, want ErrResumeNotFound", err)
	}
	if _, err := s.GetResume(ctx, r.ID); !errors.Is(err, tally.ErrResumeNotFound) {
		t.Errorf("get after delete error = %v, want ErrResumeNotFound", err)
	}
}
