// Package tier defines subscription tiers and the static catalog of
// per-tier limits and feature flags.
package tier

import "time"

// Tier is a subscription plan level.
type Tier string

const (
	Free           Tier = "free"
	PremiumMonthly Tier = "premium_monthly"
	PremiumAnnual  Tier = "premium_annual"
	Lifetime       Tier = "lifetime"
)

// Unlimited is the sentinel limit value meaning "no ceiling".
// Any other negative limit is a configuration error.
const Unlimited int64 = -1

// Valid reports whether t is a recognized tier.
func (t Tier) Valid() bool {
	switch t {
	case Free, PremiumMonthly, PremiumAnnual, Lifetime:
		return true
	}
	return false
}

// IsPaid reports whether t is a paid tier.
func (t Tier) IsPaid() bool {
	return t.Valid() && t != Free
}

// IsRecurring reports whether t renews on a billing cycle.
// Lifetime and free tiers have no billing period.
func (t Tier) IsRecurring() bool {
	return t == PremiumMonthly || t == PremiumAnnual
}

// NextPeriodEnd returns the end of the billing cycle that starts at start.
// Returns the zero time for non-recurring tiers.
func (t Tier) NextPeriodEnd(start time.Time) time.Time {
	switch t {
	case PremiumMonthly:
		return start.AddDate(0, 1, 0)
	case PremiumAnnual:
		return start.AddDate(1, 0, 0)
	}
	return time.Time{}
}
