package tally

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/tally/entitlement"
	"github.com/xraph/tally/id"
	"github.com/xraph/tally/jobdesc"
	"github.com/xraph/tally/plugin"
	"github.com/xraph/tally/resume"
	"github.com/xraph/tally/store"
	"github.com/xraph/tally/subscription"
	"github.com/xraph/tally/tier"
	"github.com/xraph/tally/types"
)

// Tally is the entitlement and usage-accounting engine.
type Tally struct {
	store   store.Store
	plugins *plugin.Registry
	logger  *slog.Logger

	// Configuration
	catalog   tier.Catalog
	costModel entitlement.CostModel
	now       func() time.Time
}

// New creates a new Tally instance.
func New(s store.Store, opts ...Option) *Tally {
	t := &Tally{
		store:     s,
		plugins:   plugin.NewRegistry(),
		logger:    slog.Default(),
		catalog:   tier.DefaultCatalog(),
		costModel: entitlement.DefaultCostModel(),
		now:       time.Now,
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// Option configures a Tally instance.
type Option func(*Tally)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Tally) {
		t.logger = logger
		t.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(t *Tally) {
		_ = t.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithCatalog replaces the default tier catalog.
func WithCatalog(c tier.Catalog) Option {
	return func(t *Tally) {
		t.catalog = c
	}
}

// WithCostModel replaces the default token cost model.
func WithCostModel(m entitlement.CostModel) Option {
	return func(t *Tally) {
		t.costModel = m
	}
}

// WithClock overrides the time source. Tests use this to pin periods.
func WithClock(now func() time.Time) Option {
	return func(t *Tally) {
		t.now = now
	}
}

// Start validates the catalog, migrates the store, and initializes
// plugins.
func (t *Tally) Start(ctx context.Context) error {
	if err := t.catalog.Validate(); err != nil {
		return err
	}

	if err := t.store.Migrate(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrMigrationFailed, err)
	}

	t.plugins.EmitInit(ctx, t)

	t.logger.Info("tally started",
		"tiers", len(t.catalog),
		"plugins", t.plugins.Count(),
	)

	return nil
}

// Stop shuts down Tally.
func (t *Tally) Stop() error {
	t.plugins.EmitShutdown(context.Background())
	return t.store.Close()
}

// ──────────────────────────────────────────────────
// Subscription Lifecycle
// ──────────────────────────────────────────────────

// ProvisionFreeSubscription creates the free-tier subscription record for
// a new user. Call it from user signup; no other operation creates
// subscriptions implicitly.
func (t *Tally) ProvisionFreeSubscription(ctx context.Context, userID string) (*subscription.Subscription, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: empty user id", ErrInvalidInput)
	}

	limits, err := t.catalog.LimitsFor(tier.Free)
	if err != nil {
		return nil, err
	}

	sub := subscription.NewFree(userID, limits)
	if err := t.store.CreateSubscription(ctx, sub); err != nil {
		return nil, err
	}

	t.plugins.EmitSubscriptionCreated(ctx, sub)
	t.logger.Info("subscription provisioned", "user_id", userID, "tier", sub.Tier)

	return sub, nil
}

// Subscription returns the user's subscription record, after applying
// any pending period rollover.
func (t *Tally) Subscription(ctx context.Context, userID string) (*subscription.Subscription, error) {
	return t.loadCurrent(ctx, userID)
}

// ApplyTierChange moves the user to a new tier in response to a billing
// event from the payment provider. eventID is the provider's event
// identifier; replaying an already-applied event is a no-op, so webhook
// retries are safe.
func (t *Tally) ApplyTierChange(ctx context.Context, userID string, newTier tier.Tier, eventID string) (*subscription.Subscription, error) {
	limits, err := t.catalog.LimitsFor(newTier)
	if err != nil {
		return nil, err
	}

	sub, err := t.store.GetSubscriptionByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if eventID != "" && sub.LastBillingEventID == eventID {
		t.logger.Info("billing event already applied", "user_id", userID, "event_id", eventID)
		return sub, nil
	}

	oldTier := sub.Tier
	sub.Tier = newTier
	sub.Status = subscription.StatusActive

	// Seed the persisted limits from the catalog. Admin overrides do not
	// survive a tier change; the new tier's limits win.
	sub.GenerationAttemptsLimit = limits.GenerationAttempts
	sub.SavedResumesLimit = limits.SavedResumes
	sub.MonthlyResumesLimit = limits.MonthlyResumes
	sub.MonthlyResumesCreated = 0

	if newTier.IsRecurring() {
		start := t.now().UTC()
		end := newTier.NextPeriodEnd(start)
		sub.CurrentPeriodStart = &start
		sub.CurrentPeriodEnd = &end
	} else {
		sub.CurrentPeriodStart = nil
		sub.CurrentPeriodEnd = nil
	}

	if eventID != "" {
		sub.LastBillingEventID = eventID
	}
	sub.Touch()

	if err := t.store.UpdateSubscription(ctx, sub); err != nil {
		return nil, err
	}

	t.plugins.EmitTierChanged(ctx, sub, string(oldTier), string(newTier))
	t.logger.Info("tier changed",
		"user_id", userID,
		"old_tier", oldTier,
		"new_tier", newTier,
		"event_id", eventID,
	)

	return sub, nil
}

// AttachProviderRefs stores the payment provider's opaque references on
// the subscription. Tally never interprets them; they exist so billing
// handlers can correlate later events.
func (t *Tally) AttachProviderRefs(ctx context.Context, userID, customerRef, subscriptionRef, paymentRef string) error {
	sub, err := t.store.GetSubscriptionByUser(ctx, userID)
	if err != nil {
		return err
	}

	if customerRef != "" {
		sub.CustomerRef = customerRef
	}
	if subscriptionRef != "" {
		sub.SubscriptionRef = subscriptionRef
	}
	if paymentRef != "" {
		sub.PaymentRef = paymentRef
	}
	sub.Touch()

	return t.store.UpdateSubscription(ctx, sub)
}

// ApplyStatusAction applies a pause, resume, or cancel request against
// the status state machine.
func (t *Tally) ApplyStatusAction(ctx context.Context, userID string, action subscription.StatusAction) (*subscription.Subscription, error) {
	target, ok := action.Target()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatusAction, action)
	}

	sub, err := t.store.GetSubscriptionByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if !subscription.CanTransition(sub.Status, target) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, sub.Status, target)
	}

	oldStatus := sub.Status
	sub.Status = target
	sub.Touch()

	if err := t.store.UpdateSubscription(ctx, sub); err != nil {
		return nil, err
	}

	t.plugins.EmitStatusChanged(ctx, sub, string(oldStatus), string(target))
	t.logger.Info("status changed", "user_id", userID, "from", oldStatus, "to", target)

	return sub, nil
}

// OverrideLimits applies an admin limit override to the user's
// subscription.
func (t *Tally) OverrideLimits(ctx context.Context, userID string, o subscription.LimitOverride) error {
	if err := o.Validate(); err != nil {
		return err
	}

	if err := t.store.OverrideLimits(ctx, userID, o); err != nil {
		return err
	}

	t.plugins.EmitLimitsOverridden(ctx, userID, o)
	t.logger.Info("limits overridden", "user_id", userID)

	return nil
}

// ──────────────────────────────────────────────────
// Entitlement Checks
// ──────────────────────────────────────────────────

// CanGenerateResume reports whether the user may generate a resume right
// now. The answer is advisory: the quota is re-checked atomically when
// RecordGeneration commits the spend.
func (t *Tally) CanGenerateResume(ctx context.Context, userID string) (entitlement.Decision, error) {
	sub, err := t.loadCurrent(ctx, userID)
	if err != nil {
		return entitlement.Decision{}, err
	}

	limits, err := t.catalog.LimitsFor(sub.Tier)
	if err != nil {
		return entitlement.Decision{}, err
	}

	env := entitlement.NewEnv(limits)
	if !sub.IsPaid() {
		// The saved-resume gate counts actual rows, not the
		// denormalized counter.
		saved, err := t.store.CountResumes(ctx, userID)
		if err != nil {
			return entitlement.Decision{}, err
		}
		env.SavedResumes = saved
	}

	return t.decide(ctx, entitlement.ActionGenerateResume, sub, env)
}

// CanUploadJobDescription reports whether the user may upload a job
// description.
func (t *Tally) CanUploadJobDescription(ctx context.Context, userID string) (entitlement.Decision, error) {
	sub, err := t.loadCurrent(ctx, userID)
	if err != nil {
		return entitlement.Decision{}, err
	}

	limits, err := t.catalog.LimitsFor(sub.Tier)
	if err != nil {
		return entitlement.Decision{}, err
	}

	return t.decide(ctx, entitlement.ActionUploadJobDescription, sub, entitlement.NewEnv(limits))
}

// CanSelectTemplate reports whether the user may use the named template.
func (t *Tally) CanSelectTemplate(ctx context.Context, userID, template string) (entitlement.Decision, error) {
	sub, err := t.loadCurrent(ctx, userID)
	if err != nil {
		return entitlement.Decision{}, err
	}

	limits, err := t.catalog.LimitsFor(sub.Tier)
	if err != nil {
		return entitlement.Decision{}, err
	}

	env := entitlement.NewEnv(limits)
	env.Template = template

	return t.decide(ctx, entitlement.ActionSelectTemplate, sub, env)
}

func (t *Tally) decide(ctx context.Context, action entitlement.Action, sub *subscription.Subscription, env entitlement.Env) (entitlement.Decision, error) {
	d, err := entitlement.Evaluate(action, sub, env)
	if err != nil {
		return entitlement.Decision{}, err
	}

	t.plugins.EmitEntitlementChecked(ctx, d)
	if d.Denied() {
		t.logger.Info("entitlement denied",
			"user_id", sub.UserID,
			"action", action,
			"reason", d.Reason,
		)
	}

	return d, nil
}

// ──────────────────────────────────────────────────
// Usage Recording
// ──────────────────────────────────────────────────

// RecordGeneration commits one generation's quota spend after the
// generated resume has been produced and persisted. The increment
// re-checks the persisted limit in a single conditional write, so a
// racing request cannot push a counter past its limit; the loser gets
// ErrQuotaExceeded.
func (t *Tally) RecordGeneration(ctx context.Context, userID string) error {
	sub, err := t.loadCurrent(ctx, userID)
	if err != nil {
		return err
	}

	if sub.IsPaid() {
		err = t.store.IncrementMonthlyGeneration(ctx, userID)
	} else {
		err = t.store.IncrementFreeGeneration(ctx, userID)
	}
	if err != nil {
		if IsQuotaError(err) {
			t.plugins.EmitQuotaExceeded(ctx, userID, string(entitlement.ActionGenerateResume), currentUsed(sub), currentLimit(sub))
			t.logger.Warn("generation lost quota race", "user_id", userID, "tier", sub.Tier)
		}
		return err
	}

	t.plugins.EmitGenerationRecorded(ctx, userID, string(sub.Tier))
	return nil
}

func currentUsed(sub *subscription.Subscription) int64 {
	if sub.IsPaid() {
		return sub.MonthlyResumesCreated
	}
	return sub.GenerationAttemptsUsed
}

func currentLimit(sub *subscription.Subscription) int64 {
	if sub.IsPaid() {
		return sub.MonthlyResumesLimit
	}
	return sub.GenerationAttemptsLimit
}

// CreateResume persists a generated resume, stamping its ID, timestamps,
// PDF retention deadline, and token cost estimate.
func (t *Tally) CreateResume(ctx context.Context, r *resume.Resume) error {
	sub, err := t.loadCurrent(ctx, r.UserID)
	if err != nil {
		return err
	}

	limits, err := t.catalog.LimitsFor(sub.Tier)
	if err != nil {
		return err
	}

	if r.ID.IsNil() {
		r.ID = id.NewResumeID()
	}
	r.Entity = types.NewEntity()
	r.PDFExpiresAt = entitlement.PDFExpiry(limits, t.now().UTC())
	if r.Generation.Cost.IsZero() && r.Generation.TokensUsed > 0 {
		r.Generation.Cost = t.costModel.Estimate(r.Generation.TokensUsed)
	}

	if err := t.store.CreateResume(ctx, r); err != nil {
		return err
	}

	t.plugins.EmitResumeCreated(ctx, r)
	return nil
}

// GenerateResume runs the full check, generate, persist, record
// sequence. The generate callback performs the external AI and PDF work;
// it runs only when the entitlement check allows, and the quota spend is
// committed only after its output is persisted. A denied decision is
// returned with a nil resume and nil error.
func (t *Tally) GenerateResume(ctx context.Context, userID string, generate func(context.Context) (*resume.Resume, error)) (*resume.Resume, entitlement.Decision, error) {
	d, err := t.CanGenerateResume(ctx, userID)
	if err != nil {
		return nil, entitlement.Decision{}, err
	}
	if d.Denied() {
		return nil, d, nil
	}

	r, err := generate(ctx)
	if err != nil {
		// Nothing was spent; the caller may retry freely.
		return nil, d, err
	}
	r.UserID = userID

	if err := t.CreateResume(ctx, r); err != nil {
		return nil, d, err
	}

	if err := t.RecordGeneration(ctx, userID); err != nil {
		// The spend lost the race or failed outright. Remove the row so
		// saved resumes never exceed what the counter admitted. The slot
		// was never taken, so there is nothing to release.
		if delErr := t.store.DeleteResume(ctx, r.ID); delErr != nil {
			t.logger.Warn("orphan resume cleanup failed",
				"user_id", userID, "resume_id", r.ID.String(), "error", delErr)
		}
		return nil, d, err
	}

	return r, d, nil
}

// DeleteResume removes a saved resume and hands its slot back, so a
// free-tier user can save a replacement. Spent generation attempts are
// not refunded.
func (t *Tally) DeleteResume(ctx context.Context, resumeID id.ResumeID) error {
	r, err := t.store.GetResume(ctx, resumeID)
	if err != nil {
		return err
	}

	if err := t.store.DeleteResume(ctx, resumeID); err != nil {
		return err
	}

	return t.store.ReleaseSavedSlot(ctx, r.UserID)
}

// ListResumes returns the user's saved resumes.
func (t *Tally) ListResumes(ctx context.Context, userID string, opts resume.ListOpts) ([]*resume.Resume, error) {
	return t.store.ListResumes(ctx, userID, opts)
}

// CreateJobDescription checks the paid-tier gate and persists the
// uploaded posting. A denied decision is returned without creating
// anything.
func (t *Tally) CreateJobDescription(ctx context.Context, jd *jobdesc.JobDescription) (entitlement.Decision, error) {
	d, err := t.CanUploadJobDescription(ctx, jd.UserID)
	if err != nil {
		return entitlement.Decision{}, err
	}
	if d.Denied() {
		return d, nil
	}

	if jd.ID.IsNil() {
		jd.ID = id.NewJobDescriptionID()
	}
	jd.Entity = types.NewEntity()

	if err := t.store.CreateJobDescription(ctx, jd); err != nil {
		return entitlement.Decision{}, err
	}

	return d, nil
}

// ListJobDescriptions returns the user's uploaded postings.
func (t *Tally) ListJobDescriptions(ctx context.Context, userID string, opts jobdesc.ListOpts) ([]*jobdesc.JobDescription, error) {
	return t.store.ListJobDescriptions(ctx, userID, opts)
}

// DeleteJobDescription removes an uploaded posting.
func (t *Tally) DeleteJobDescription(ctx context.Context, jdID id.JobDescriptionID) error {
	return t.store.DeleteJobDescription(ctx, jdID)
}

// RecordJobDescriptionUsage bumps a posting's usage counter after a
// generation referenced it.
func (t *Tally) RecordJobDescriptionUsage(ctx context.Context, jdID id.JobDescriptionID) error {
	if err := t.store.TouchJobDescription(ctx, jdID, t.now().UTC()); err != nil {
		return err
	}

	t.plugins.EmitJobDescriptionUsed(ctx, jdID.String())
	return nil
}

// ──────────────────────────────────────────────────
// Periods and Retention
// ──────────────────────────────────────────────────

// RolloverIfElapsed rolls the user's billing period forward when it has
// lapsed, or expires the subscription when it is paused or cancelled.
// It reports whether anything changed. Quota checks call this lazily, so
// a dedicated scheduler is optional.
func (t *Tally) RolloverIfElapsed(ctx context.Context, userID string) (bool, error) {
	sub, err := t.store.GetSubscriptionByUser(ctx, userID)
	if err != nil {
		return false, err
	}
	return t.settlePeriod(ctx, sub)
}

// SweepLapsed processes every subscription whose period ended, rolling
// active ones forward and expiring the rest. It returns how many records
// changed. Run it from a periodic job as a safety net behind the lazy
// rollover.
func (t *Tally) SweepLapsed(ctx context.Context) (int, error) {
	subs, err := t.store.ListPeriodEnded(ctx, t.now().UTC())
	if err != nil {
		return 0, err
	}

	changed := 0
	for _, sub := range subs {
		did, err := t.settlePeriod(ctx, sub)
		if err != nil {
			return changed, err
		}
		if did {
			changed++
		}
	}

	t.logger.Info("lapse sweep finished", "examined", len(subs), "changed", changed)
	return changed, nil
}

// PurgeExpiredResumes deletes free-tier PDFs past their retention
// deadline and returns how many were removed.
func (t *Tally) PurgeExpiredResumes(ctx context.Context) (int64, error) {
	purged, err := t.store.PurgeExpiredResumes(ctx, t.now().UTC())
	if err != nil {
		return 0, err
	}

	if purged > 0 {
		t.plugins.EmitResumesPurged(ctx, purged)
		t.logger.Info("expired resumes purged", "count", purged)
	}

	return purged, nil
}

// EstimateCost returns the linear token cost estimate for a generation.
func (t *Tally) EstimateCost(tokens int64) types.Money {
	return t.costModel.Estimate(tokens)
}

// loadCurrent fetches the user's subscription and settles any pending
// period rollover before the caller reads the counters.
func (t *Tally) loadCurrent(ctx context.Context, userID string) (*subscription.Subscription, error) {
	sub, err := t.store.GetSubscriptionByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if _, err := t.settlePeriod(ctx, sub); err != nil {
		return nil, err
	}

	return sub, nil
}

// settlePeriod settles a lapsed period on the given record. Active
// recurring subscriptions advance cycle by cycle from the previous period
// end, so a subscription idle for several months lands on the correct
// current cycle rather than one anchored at the time of the next request.
// Paused and cancelled subscriptions whose period ran out expire instead.
func (t *Tally) settlePeriod(ctx context.Context, sub *subscription.Subscription) (bool, error) {
	now := t.now().UTC()
	if !sub.PeriodElapsed(now) {
		return false, nil
	}

	if sub.Status == subscription.StatusActive && sub.Tier.IsRecurring() {
		start := *sub.CurrentPeriodStart
		end := *sub.CurrentPeriodEnd
		for now.After(end) {
			start = end
			end = sub.Tier.NextPeriodEnd(start)
		}
		sub.CurrentPeriodStart = &start
		sub.CurrentPeriodEnd = &end
		sub.MonthlyResumesCreated = 0
		sub.Touch()

		if err := t.store.UpdateSubscription(ctx, sub); err != nil {
			return false, err
		}

		t.plugins.EmitPeriodRolledOver(ctx, sub)
		t.logger.Info("period rolled over",
			"user_id", sub.UserID,
			"period_start", start,
			"period_end", end,
		)
		return true, nil
	}

	if sub.Status == subscription.StatusExpired {
		return false, nil
	}

	sub.Status = subscription.StatusExpired
	sub.Touch()

	if err := t.store.UpdateSubscription(ctx, sub); err != nil {
		return false, err
	}

	t.plugins.EmitSubscriptionExpired(ctx, sub)
	t.logger.Info("subscription expired", "user_id", sub.UserID, "tier", sub.Tier)
	return true, nil
}
