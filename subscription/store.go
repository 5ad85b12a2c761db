package subscription

import (
	"context"
	"time"

	"github.com/xraph/tally/id"
)

// Store is the narrow persistence interface for subscriptions.
//
// The two Increment methods are the correctness-critical piece: each is a
// single conditional update that re-checks the persisted limit while
// incrementing, so two racing requests cannot double-spend a quota unit.
type Store interface {
	Create(ctx context.Context, s *Subscription) error
	Get(ctx context.Context, subID id.SubscriptionID) (*Subscription, error)
	GetByUser(ctx context.Context, userID string) (*Subscription, error)
	Update(ctx context.Context, s *Subscription) error

	// IncrementFreeGeneration bumps generation_attempts_used and
	// saved_resumes_count by one, only where both counters are under
	// their persisted limits (or the limit is -1).
	IncrementFreeGeneration(ctx context.Context, userID string) error

	// IncrementMonthlyGeneration bumps monthly_resumes_created by one,
	// only where the counter is under the persisted monthly limit
	// (or the limit is -1).
	IncrementMonthlyGeneration(ctx context.Context, userID string) error

	// ReleaseSavedSlot decrements saved_resumes_count by one, clamped
	// at zero, after a resume row is removed.
	ReleaseSavedSlot(ctx context.Context, userID string) error

	// OverrideLimits applies an allow-listed admin limit override.
	OverrideLimits(ctx context.Context, userID string, o LimitOverride) error

	// ListPeriodEnded returns subscriptions whose billing period ended
	// before the given instant, for the rollover/expiry sweep.
	ListPeriodEnded(ctx context.Context, before time.Time) ([]*Subscription, error)
}

// ListOpts filters subscription listings.
type ListOpts struct {
	Status Status
	Limit  int
	Offset int
}
