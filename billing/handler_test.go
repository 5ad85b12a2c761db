package billing_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	tally "github.com/xraph/tally"
	"github.com/xraph/tally/billing"
	"github.com/xraph/tally/store/memory"
	"github.com/xraph/tally/subscription"
	"github.com/xraph/tally/tier"
)

func newHandler(t *testing.T) (*billing.Handler, *tally.Tally) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	eng := tally.New(memory.New(), tally.WithLogger(logger))
	if err := eng.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = eng.Stop() })

	mapper := billing.NewMapper().
		Add("lemonsqueezy", "variant_monthly", tier.PremiumMonthly).
		Add("lemonsqueezy", "variant_annual", tier.PremiumAnnual).
		Add("stripe", "price_lifetime", tier.Lifetime)

	return billing.NewHandler(eng, mapper, logger), eng
}

func TestMapperResolve(t *testing.T) {
	mapper := billing.NewMapper().
		Add("LemonSqueezy", "variant_1", tier.PremiumMonthly)

	if mapper.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", mapper.Len())
	}

	// Provider names are case-insensitive; product refs are not.
	got, err := mapper.Resolve("lemonsqueezy", "variant_1")
	if err != nil {
		t.Fatal(err)
	}
	if got != tier.PremiumMonthly {
		t.Errorf("Resolve = %q, want %q", got, tier.PremiumMonthly)
	}

	if _, err := mapper.Resolve("lemonsqueezy", "variant_2"); !errors.Is(err, tally.ErrUnmappedProduct) {
		t.Errorf("error = %v, want ErrUnmappedProduct", err)
	}
	if _, err := mapper.Resolve("stripe", "variant_1"); !errors.Is(err, tally.ErrUnmappedProduct) {
		t.Errorf("error = %v, want ErrUnmappedProduct", err)
	}
}

func TestHandlerCheckout(t *testing.T) {
	h, eng := newHandler(t)
	ctx := context.Background()

	if _, err := eng.ProvisionFreeSubscription(ctx, "u1"); err != nil {
		t.Fatal(err)
	}

	ev := billing.Event{
		ID:              "evt_100",
		Type:            billing.EventCheckoutCompleted,
		Provider:        "lemonsqueezy",
		UserID:          "u1",
		ProductRef:      "variant_monthly",
		CustomerRef:     "cus_9",
		SubscriptionRef: "sub_42",
		OccurredAt:      time.Now(),
	}
	if err := h.Apply(ctx, ev); err != nil {
		t.Fatal(err)
	}

	sub, err := eng.Subscription(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if sub.Tier != tier.PremiumMonthly {
		t.Errorf("Tier = %q, want %q", sub.Tier, tier.PremiumMonthly)
	}
	if sub.CustomerRef != "cus_9" || sub.SubscriptionRef != "sub_42" {
		t.Errorf("provider refs not attached: %q/%q", sub.CustomerRef, sub.SubscriptionRef)
	}

	// A retried webhook replays the same event ID and must not
	// re-anchor the billing period.
	anchored := *sub.CurrentPeriodStart
	if err := h.Apply(ctx, ev); err != nil {
		t.Fatal(err)
	}
	sub, _ = eng.Subscription(ctx, "u1")
	if !sub.CurrentPeriodStart.Equal(anchored) {
		t.Error("replayed event re-anchored the period")
	}
}

func TestHandlerStatusEvents(t *testing.T) {
	h, eng := newHandler(t)
	ctx := context.Background()

	if _, err := eng.ProvisionFreeSubscription(ctx, "u1"); err != nil {
		t.Fatal(err)
	}

	if err := h.Apply(ctx, billing.Event{ID: "evt_p", Type: billing.EventSubscriptionPaused, Provider: "lemonsqueezy", UserID: "u1"}); err != nil {
		t.Fatal(err)
	}
	sub, _ := eng.Subscription(ctx, "u1")
	if sub.Status != subscription.StatusPaused {
		t.Errorf("Status = %q, want paused", sub.Status)
	}

	// A replayed pause is an invalid transition; the caller decides
	// what to do with it.
	if err := h.Apply(ctx, billing.Event{ID: "evt_p", Type: billing.EventSubscriptionPaused, Provider: "lemonsqueezy", UserID: "u1"}); !errors.Is(err, tally.ErrInvalidTransition) {
		t.Errorf("error = %v, want ErrInvalidTransition", err)
	}

	if err := h.Apply(ctx, billing.Event{ID: "evt_r", Type: billing.EventSubscriptionResumed, Provider: "lemonsqueezy", UserID: "u1"}); err != nil {
		t.Fatal(err)
	}
	if err := h.Apply(ctx, billing.Event{ID: "evt_c", Type: billing.EventSubscriptionCancelled, Provider: "lemonsqueezy", UserID: "u1"}); err != nil {
		t.Fatal(err)
	}
	sub, _ = eng.Subscription(ctx, "u1")
	if sub.Status != subscription.StatusCancelled {
		t.Errorf("Status = %q, want cancelled", sub.Status)
	}
}

func TestHandlerErrors(t *testing.T) {
	h, eng := newHandler(t)
	ctx := context.Background()

	if _, err := eng.ProvisionFreeSubscription(ctx, "u1"); err != nil {
		t.Fatal(err)
	}

	t.Run("UnknownEventType", func(t *testing.T) {
		err := h.Apply(ctx, billing.Event{ID: "evt_x", Type: billing.EventType("invoice_ready"), UserID: "u1"})
		if !errors.Is(err, billing.ErrUnknownEvent) {
			t.Errorf("error = %v, want ErrUnknownEvent", err)
		}
	})

	t.Run("UnmappedProduct", func(t *testing.T) {
		err := h.Apply(ctx, billing.Event{
			ID:         "evt_y",
			Type:       billing.EventCheckoutCompleted,
			Provider:   "lemonsqueezy",
			UserID:     "u1",
			ProductRef: "variant_unknown",
		})
		if !errors.Is(err, tally.ErrUnmappedProduct) {
			t.Errorf("error = %v, want ErrUnmappedProduct", err)
		}

		// A mapping failure must not touch the subscription.
		sub, _ := eng.Subscription(ctx, "u1")
		if sub.Tier != tier.Free {
			t.Errorf("Tier = %q, want free", sub.Tier)
		}
	})

	t.Run("UnknownUser", func(t *testing.T) {
		err := h.Apply(ctx, billing.Event{
			ID:         "evt_z",
			Type:       billing.EventCheckoutCompleted,
			Provider:   "stripe",
			UserID:     "ghost",
			ProductRef: "price_lifetime",
		})
		if !errors.Is(err, tally.ErrSubscriptionNotFound) {
			t.Errorf("error = %v, want ErrSubscriptionNotFound", err)
		}
	})
}
