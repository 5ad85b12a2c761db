package audithook

// Action constants for audit events.
const (
	// Subscription actions
	ActionSubscriptionCreated = "subscription.created"
	ActionTierChanged         = "subscription.tier_changed"
	ActionStatusChanged       = "subscription.status_changed"
	ActionPeriodRolledOver    = "subscription.period_rolled_over"
	ActionSubscriptionExpired = "subscription.expired"
	ActionLimitsOverridden    = "subscription.limits_overridden"

	// Entitlement actions
	ActionEntitlementDenied = "entitlement.denied"
	ActionQuotaExceeded     = "quota.exceeded"

	// Usage actions
	ActionGenerationRecorded = "generation.recorded"
	ActionResumesPurged      = "resume.purged"
	ActionJobDescriptionUsed = "jobdesc.used"
)

// Resource constants for audit events.
const (
	ResourceSubscription   = "subscription"
	ResourceEntitlement    = "entitlement"
	ResourceResume         = "resume"
	ResourceJobDescription = "job_description"
)

// Category constants for audit events.
const (
	CategorySubscription = "subscription"
	CategoryAccess       = "access"
	CategoryUsage        = "usage"
	CategoryAdmin        = "admin"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomePartial = "partial"
)
