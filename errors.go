package tally

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure scenarios.
var (
	// General errors
	ErrNotFound      = errors.New("tally: not found")
	ErrAlreadyExists = errors.New("tally: already exists")
	ErrInvalidInput  = errors.New("tally: invalid input")

	// Subscription errors
	ErrSubscriptionNotFound = errors.New("tally: subscription not found")
	ErrSubscriptionExists   = errors.New("tally: subscription already exists")
	ErrInvalidTransition    = errors.New("tally: invalid status transition")
	ErrInvalidStatusAction  = errors.New("tally: unknown status action")

	// Quota errors. ErrQuotaExceeded is returned by the commit step when
	// the conditional increment matched no row: the persisted counter hit
	// the limit between the entitlement check and the increment.
	ErrQuotaExceeded = errors.New("tally: quota exceeded")

	// Resume errors
	ErrResumeNotFound = errors.New("tally: resume not found")

	// Job-description errors
	ErrJobDescriptionNotFound = errors.New("tally: job description not found")

	// Billing errors
	ErrDuplicateBillingEvent = errors.New("tally: billing event already applied")
	ErrUnmappedProduct       = errors.New("tally: provider product not mapped to a tier")

	// Store errors
	ErrStoreNotReady     = errors.New("tally: store not ready")
	ErrStoreClosed       = errors.New("tally: store is closed")
	ErrTransactionFailed = errors.New("tally: transaction failed")
	ErrMigrationFailed   = errors.New("tally: migration failed")
)

// ValidationError represents a validation failure with details.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("tally: validation failed for %s: %s", e.Field, e.Message)
}

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrSubscriptionNotFound) ||
		errors.Is(err, ErrResumeNotFound) ||
		errors.Is(err, ErrJobDescriptionNotFound)
}

// IsQuotaError returns true if the error is related to quota/limits.
func IsQuotaError(err error) bool {
	return errors.Is(err, ErrQuotaExceeded)
}

// IsRetryable returns true if the error is temporary and the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreNotReady) ||
		errors.Is(err, ErrTransactionFailed)
}
