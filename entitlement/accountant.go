package entitlement

import (
	"errors"
	"fmt"
	"time"

	"github.com/xraph/tally/subscription"
	"github.com/xraph/tally/tier"
	"github.com/xraph/tally/types"
)

// Sentinel errors for accountant misconfiguration. These indicate
// infrastructure defects, never business denials.
var (
	ErrInvalidLimit    = errors.New("entitlement: invalid limit value")
	ErrUnknownAction   = errors.New("entitlement: unknown action")
	ErrNilSubscription = errors.New("entitlement: nil subscription")
)

// Env supplies the externally-derived inputs Evaluate cannot read off the
// subscription record itself.
type Env struct {
	// SavedResumes is the current count of the user's saved resumes,
	// counted from the resume store. A negative value means "not
	// supplied"; the denormalized subscription counter is used instead.
	SavedResumes int64

	// Template is the template being selected, for ActionSelectTemplate.
	Template string

	// Limits is the tier catalog entry for the subscription's tier. Only
	// the feature flags and template set are read from it; counter
	// limits always come from the persisted subscription fields so that
	// admin overrides stay effective.
	Limits tier.Limits
}

// NewEnv returns an Env with no external saved-resume count.
func NewEnv(limits tier.Limits) Env {
	return Env{SavedResumes: -1, Limits: limits}
}

// Evaluate decides whether the subscription permits the action.
//
// Denials are returned as a Decision with Allowed=false; the error return
// is reserved for malformed input (unknown action, negative non-sentinel
// limit). Evaluate never mutates the subscription.
func Evaluate(action Action, sub *subscription.Subscription, env Env) (Decision, error) {
	if sub == nil {
		return Decision{}, ErrNilSubscription
	}

	switch action {
	case ActionGenerateResume:
		return evaluateGenerate(sub, env)
	case ActionUploadJobDescription:
		return evaluateJobDescription(sub)
	case ActionSelectTemplate:
		return evaluateTemplate(sub, env)
	}
	return Decision{}, fmt.Errorf("%w: %q", ErrUnknownAction, action)
}

func evaluateGenerate(sub *subscription.Subscription, env Env) (Decision, error) {
	saved := env.SavedResumes
	if saved < 0 {
		saved = sub.SavedResumesCount
	}

	snap := Snapshot{
		AttemptsUsed:      sub.GenerationAttemptsUsed,
		AttemptsLimit:     sub.GenerationAttemptsLimit,
		SavedResumes:      saved,
		SavedResumesLimit: sub.SavedResumesLimit,
		MonthlyCreated:    sub.MonthlyResumesCreated,
		MonthlyLimit:      sub.MonthlyResumesLimit,
	}
	d := Decision{Action: ActionGenerateResume, Snapshot: snap}

	if sub.IsPaid() {
		remaining, unlimited, err := remainingUnder(sub.MonthlyResumesLimit, sub.MonthlyResumesCreated)
		if err != nil {
			return Decision{}, err
		}
		if unlimited {
			d.Allowed = true
			d.Remaining = tier.Unlimited
			return d, nil
		}
		if remaining <= 0 {
			d.Reason = ReasonMonthlyLimitReached
			return d, nil
		}
		d.Allowed = true
		d.Remaining = remaining
		return d, nil
	}

	// Free tier: attempts first, then saved-resume slots.
	attemptsRemaining, attemptsUnlimited, err := remainingUnder(sub.GenerationAttemptsLimit, sub.GenerationAttemptsUsed)
	if err != nil {
		return Decision{}, err
	}
	if !attemptsUnlimited && attemptsRemaining <= 0 {
		d.Reason = ReasonAttemptLimitReached
		return d, nil
	}

	savedRemaining, savedUnlimited, err := remainingUnder(sub.SavedResumesLimit, saved)
	if err != nil {
		return Decision{}, err
	}
	if !savedUnlimited && savedRemaining <= 0 {
		d.Reason = ReasonSavedResumeLimitReached
		return d, nil
	}

	d.Allowed = true
	if attemptsUnlimited {
		d.Remaining = tier.Unlimited
	} else {
		d.Remaining = attemptsRemaining
	}
	return d, nil
}

func evaluateJobDescription(sub *subscription.Subscription) (Decision, error) {
	d := Decision{Action: ActionUploadJobDescription, Remaining: tier.Unlimited}
	if !sub.IsPaid() {
		d.Reason = ReasonJobDescriptionNeedsPaid
		return d, nil
	}
	d.Allowed = true
	return d, nil
}

func evaluateTemplate(sub *subscription.Subscription, env Env) (Decision, error) {
	d := Decision{Action: ActionSelectTemplate, Remaining: tier.Unlimited}
	if sub.IsPaid() || env.Limits.TemplateAllowed(env.Template) {
		d.Allowed = true
		return d, nil
	}
	d.Reason = ReasonTemplateNeedsPaid
	return d, nil
}

// remainingUnder computes limit - used, treating the Unlimited sentinel as
// mathematically infinite. Any other negative limit is a configuration
// error, not "unlimited" and not "zero".
func remainingUnder(limit, used int64) (remaining int64, unlimited bool, err error) {
	if limit == tier.Unlimited {
		return 0, true, nil
	}
	if limit < 0 {
		return 0, false, fmt.Errorf("%w: %d", ErrInvalidLimit, limit)
	}
	return limit - used, false, nil
}

// PDFExpiry returns when a PDF generated now should expire, per the tier's
// retention. Nil means the PDF never expires (paid tiers).
func PDFExpiry(limits tier.Limits, now time.Time) *time.Time {
	if limits.PDFRetention <= 0 {
		return nil
	}
	t := now.Add(limits.PDFRetention)
	return &t
}

// CostModel is the linear generation-cost estimate: a flat rate per
// thousand tokens. It exists for telemetry and guardrails only and is
// never a billing source of truth.
type CostModel struct {
	PerThousandTokens types.Money `json:"per_thousand_tokens"`
}

// DefaultCostModel is three US cents per thousand tokens.
func DefaultCostModel() CostModel {
	return CostModel{PerThousandTokens: types.USD(3)}
}

// Estimate returns the estimated cost of a generation that used the given
// token count.
func (m CostModel) Estimate(tokens int64) types.Money {
	if tokens <= 0 {
		return types.Zero(m.PerThousandTokens.Currency)
	}
	return m.PerThousandTokens.Multiply(tokens).Divide(1000)
}
