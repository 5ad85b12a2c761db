// Package entitlement implements the pure usage-accounting rules: given a
// subscription record and its tier limits, decide whether an action is
// permitted and how much quota remains.
//
// Business denials are values, not errors. An error return is reserved for
// infrastructure problems such as a malformed limit configuration.
package entitlement

// Action is a quota-gated operation a caller wants to perform.
type Action string

const (
	ActionGenerateResume       Action = "generate_resume"
	ActionUploadJobDescription Action = "upload_job_description"
	ActionSelectTemplate       Action = "select_template"
)

// Denial reason strings surfaced to callers so the UI can render an
// upgrade prompt. These are stable API.
const (
	ReasonAttemptLimitReached     = "attempt limit reached"
	ReasonSavedResumeLimitReached = "saved resume limit reached"
	ReasonMonthlyLimitReached     = "monthly limit reached"
	ReasonJobDescriptionNeedsPaid = "job descriptions require a paid plan"
	ReasonTemplateNeedsPaid       = "template requires a paid plan"
)

// Snapshot is the machine-readable view of the counters and limits a
// decision was computed from.
type Snapshot struct {
	AttemptsUsed      int64 `json:"attempts_used"`
	AttemptsLimit     int64 `json:"attempts_limit"`
	SavedResumes      int64 `json:"saved_resumes"`
	SavedResumesLimit int64 `json:"saved_resumes_limit"`
	MonthlyCreated    int64 `json:"monthly_created"`
	MonthlyLimit      int64 `json:"monthly_limit"`
}

// Decision is the tagged result of an entitlement check.
//
// Remaining is the quota left after this decision: -1 when the relevant
// limit is unlimited or the action consumes no quota.
type Decision struct {
	Allowed   bool     `json:"allowed"`
	Action    Action   `json:"action"`
	Reason    string   `json:"reason,omitempty"`
	Remaining int64    `json:"remaining"`
	Snapshot  Snapshot `json:"snapshot"`
}

// Denied is a convenience accessor for readability at call sites.
func (d Decision) Denied() bool { return !d.Allowed }
