package resume

import (
	"context"
	"time"

	"github.com/xraph/tally/id"
)

// Store is the narrow persistence interface for resumes.
type Store interface {
	Create(ctx context.Context, r *Resume) error
	Get(ctx context.Context, resumeID id.ResumeID) (*Resume, error)
	List(ctx context.Context, userID string, opts ListOpts) ([]*Resume, error)

	// Count returns the number of saved resumes a user has. The
	// accountant consults this rather than trusting the denormalized
	// subscription counter alone.
	Count(ctx context.Context, userID string) (int64, error)

	Delete(ctx context.Context, resumeID id.ResumeID) error

	// PurgeExpired deletes resumes whose PDF expired before the given
	// instant and returns how many were removed.
	PurgeExpired(ctx context.Context, before time.Time) (int64, error)
}

// ListOpts filters resume listings.
type ListOpts struct {
	Template string
	Limit    int
	Offset   int
}
