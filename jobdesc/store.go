package jobdesc

import (
	"context"
	"time"

	"github.com/xraph/tally/id"
)

// Store is the narrow persistence interface for job descriptions.
type Store interface {
	Create(ctx context.Context, jd *JobDescription) error
	Get(ctx context.Context, jdID id.JobDescriptionID) (*JobDescription, error)
	List(ctx context.Context, userID string, opts ListOpts) ([]*JobDescription, error)
	Delete(ctx context.Context, jdID id.JobDescriptionID) error

	// Touch atomically increments usage_count and sets last_used_at.
	Touch(ctx context.Context, jdID id.JobDescriptionID, usedAt time.Time) error
}

// ListOpts filters job-description listings.
type ListOpts struct {
	Limit  int
	Offset int
}
