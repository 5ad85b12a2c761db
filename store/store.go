package store

import (
	"context"
	"time"

	"github.com/xraph/tally/id"
	"github.com/xraph/tally/jobdesc"
	"github.com/xraph/tally/resume"
	"github.com/xraph/tally/subscription"
)

// Store is the unified storage interface for all Tally entities.
// Instead of embedding the sub-interfaces, we explicitly declare all methods
// to avoid naming conflicts.
type Store interface {
	// Subscription methods
	CreateSubscription(ctx context.Context, s *subscription.Subscription) error
	GetSubscription(ctx context.Context, subID id.SubscriptionID) (*subscription.Subscription, error)
	GetSubscriptionByUser(ctx context.Context, userID string) (*subscription.Subscription, error)
	ListSubscriptions(ctx context.Context, opts subscription.ListOpts) ([]*subscription.Subscription, error)
	UpdateSubscription(ctx context.Context, s *subscription.Subscription) error
	IncrementFreeGeneration(ctx context.Context, userID string) error
	IncrementMonthlyGeneration(ctx context.Context, userID string) error
	ReleaseSavedSlot(ctx context.Context, userID string) error
	OverrideLimits(ctx context.Context, userID string, o subscription.LimitOverride) error
	ListPeriodEnded(ctx context.Context, before time.Time) ([]*subscription.Subscription, error)

	// Resume methods
	CreateResume(ctx context.Context, r *resume.Resume) error
	GetResume(ctx context.Context, resumeID id.ResumeID) (*resume.Resume, error)
	ListResumes(ctx context.Context, userID string, opts resume.ListOpts) ([]*resume.Resume, error)
	CountResumes(ctx context.Context, userID string) (int64, error)
	DeleteResume(ctx context.Context, resumeID id.ResumeID) error
	PurgeExpiredResumes(ctx context.Context, before time.Time) (int64, error)

	// Job-description methods
	CreateJobDescription(ctx context.Context, jd *jobdesc.JobDescription) error
	GetJobDescription(ctx context.Context, jdID id.JobDescriptionID) (*jobdesc.JobDescription, error)
	ListJobDescriptions(ctx context.Context, userID string, opts jobdesc.ListOpts) ([]*jobdesc.JobDescription, error)
	DeleteJobDescription(ctx context.Context, jdID id.JobDescriptionID) error
	TouchJobDescription(ctx context.Context, jdID id.JobDescriptionID, usedAt time.Time) error

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
