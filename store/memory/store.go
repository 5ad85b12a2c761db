// Package memory provides an in-memory Store implementation, suitable
// for tests and single-process deployments without durability needs.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/xraph/tally"
	"github.com/xraph/tally/id"
	"github.com/xraph/tally/jobdesc"
	"github.com/xraph/tally/resume"
	tallystore "github.com/xraph/tally/store"
	"github.com/xraph/tally/subscription"
	"github.com/xraph/tally/tier"
)

// compile-time interface check
var _ tallystore.Store = (*Store)(nil)

type Store struct {
	mu sync.RWMutex

	// Subscription storage, keyed by subscription ID, with a user index.
	subscriptions map[string]*subscription.Subscription
	byUser        map[string]string

	// Resume storage
	resumes map[string]*resume.Resume

	// Job-description storage
	jobDescriptions map[string]*jobdesc.JobDescription
}

func New() *Store {
	return &Store{
		subscriptions:   make(map[string]*subscription.Subscription),
		byUser:          make(map[string]string),
		resumes:         make(map[string]*resume.Resume),
		jobDescriptions: make(map[string]*jobdesc.JobDescription),
	}
}

// Subscription Store implementation
func (s *Store) CreateSubscription(_ context.Context, sub *subscription.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.subscriptions[sub.ID.String()]; exists {
		return tally.ErrAlreadyExists
	}
	if _, exists := s.byUser[sub.UserID]; exists {
		return tally.ErrSubscriptionExists
	}
	s.subscriptions[sub.ID.String()] = sub
	s.byUser[sub.UserID] = sub.ID.String()
	return nil
}

func (s *Store) GetSubscription(_ context.Context, subID id.SubscriptionID) (*subscription.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if sub, ok := s.subscriptions[subID.String()]; ok {
		return sub, nil
	}
	return nil, tally.ErrSubscriptionNotFound
}

func (s *Store) GetSubscriptionByUser(_ context.Context, userID string) (*subscription.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if key, ok := s.byUser[userID]; ok {
		return s.subscriptions[key], nil
	}
	return nil, tally.ErrSubscriptionNotFound
}

func (s *Store) ListSubscriptions(_ context.Context, opts subscription.ListOpts) ([]*subscription.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*subscription.Subscription, 0)
	for _, sub := range s.subscriptions {
		if opts.Status == "" || sub.Status == opts.Status {
			result = append(result, sub)
		}
	}

	// Apply limit/offset
	start := opts.Offset
	if start > len(result) {
		start = len(result)
	}
	end := start + opts.Limit
	if opts.Limit == 0 || end > len(result) {
		end = len(result)
	}

	return result[start:end], nil
}

func (s *Store) UpdateSubscription(_ context.Context, sub *subscription.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.subscriptions[sub.ID.String()]; !exists {
		return tally.ErrSubscriptionNotFound
	}
	s.subscriptions[sub.ID.String()] = sub
	return nil
}

// IncrementFreeGeneration spends one generation attempt and one saved
// slot under the write lock, so concurrent callers see the updated
// counters and cannot spend past the persisted limits.
func (s *Store) IncrementFreeGeneration(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, err := s.lookupUser(userID)
	if err != nil {
		return err
	}
	if !under(sub.GenerationAttemptsUsed, sub.GenerationAttemptsLimit) ||
		!under(sub.SavedResumesCount, sub.SavedResumesLimit) {
		return tally.ErrQuotaExceeded
	}
	sub.GenerationAttemptsUsed++
	sub.SavedResumesCount++
	sub.Touch()
	return nil
}

// IncrementMonthlyGeneration spends one monthly resume slot under the
// write lock.
func (s *Store) IncrementMonthlyGeneration(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, err := s.lookupUser(userID)
	if err != nil {
		return err
	}
	if !under(sub.MonthlyResumesCreated, sub.MonthlyResumesLimit) {
		return tally.ErrQuotaExceeded
	}
	sub.MonthlyResumesCreated++
	sub.Touch()
	return nil
}

// ReleaseSavedSlot hands a saved-resume slot back after a resume row is
// removed, keeping the denormalized counter in step with the row count.
func (s *Store) ReleaseSavedSlot(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, err := s.lookupUser(userID)
	if err != nil {
		return err
	}
	if sub.SavedResumesCount > 0 {
		sub.SavedResumesCount--
		sub.Touch()
	}
	return nil
}

func (s *Store) OverrideLimits(_ context.Context, userID string, o subscription.LimitOverride) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, err := s.lookupUser(userID)
	if err != nil {
		return err
	}
	o.ApplyTo(sub)
	sub.Touch()
	return nil
}

func (s *Store) ListPeriodEnded(_ context.Context, before time.Time) ([]*subscription.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*subscription.Subscription, 0)
	for _, sub := range s.subscriptions {
		if sub.Status == subscription.StatusExpired {
			continue
		}
		if sub.CurrentPeriodEnd != nil && sub.CurrentPeriodEnd.Before(before) {
			result = append(result, sub)
		}
	}
	return result, nil
}

// lookupUser must be called with the lock held.
func (s *Store) lookupUser(userID string) (*subscription.Subscription, error) {
	key, ok := s.byUser[userID]
	if !ok {
		return nil, tally.ErrSubscriptionNotFound
	}
	return s.subscriptions[key], nil
}

func under(used, limit int64) bool {
	return limit == tier.Unlimited || used < limit
}

// Resume Store implementation
func (s *Store) CreateResume(_ context.Context, r *resume.Resume) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.resumes[r.ID.String()]; exists {
		return tally.ErrAlreadyExists
	}
	s.resumes[r.ID.String()] = r
	return nil
}

func (s *Store) GetResume(_ context.Context, resumeID id.ResumeID) (*resume.Resume, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if r, ok := s.resumes[resumeID.String()]; ok {
		return r, nil
	}
	return nil, tally.ErrResumeNotFound
}

func (s *Store) ListResumes(_ context.Context, userID string, opts resume.ListOpts) ([]*resume.Resume, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*resume.Resume, 0)
	for _, r := range s.resumes {
		if r.UserID == userID {
			if opts.Template == "" || r.Template == opts.Template {
				result = append(result, r)
			}
		}
	}

	start := opts.Offset
	if start > len(result) {
		start = len(result)
	}
	end := start + opts.Limit
	if opts.Limit == 0 || end > len(result) {
		end = len(result)
	}

	return result[start:end], nil
}

func (s *Store) CountResumes(_ context.Context, userID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, r := range s.resumes {
		if r.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (s *Store) DeleteResume(_ context.Context, resumeID id.ResumeID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.resumes[resumeID.String()]; !exists {
		return tally.ErrResumeNotFound
	}
	delete(s.resumes, resumeID.String())
	return nil
}

func (s *Store) PurgeExpiredResumes(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var purged int64
	for key, r := range s.resumes {
		if r.PDFExpiresAt != nil && r.PDFExpiresAt.Before(before) {
			delete(s.resumes, key)
			purged++
			// Purged rows hand their saved slots back.
			if sub, err := s.lookupUser(r.UserID); err == nil && sub.SavedResumesCount > 0 {
				sub.SavedResumesCount--
				sub.Touch()
			}
		}
	}
	return purged, nil
}

// Job-description Store implementation
func (s *Store) CreateJobDescription(_ context.Context, jd *jobdesc.JobDescription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobDescriptions[jd.ID.String()]; exists {
		return tally.ErrAlreadyExists
	}
	s.jobDescriptions[jd.ID.String()] = jd
	return nil
}

func (s *Store) GetJobDescription(_ context.Context, jdID id.JobDescriptionID) (*jobdesc.JobDescription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if jd, ok := s.jobDescriptions[jdID.String()]; ok {
		return jd, nil
	}
	return nil, tally.ErrJobDescriptionNotFound
}

func (s *Store) ListJobDescriptions(_ context.Context, userID string, opts jobdesc.ListOpts) ([]*jobdesc.JobDescription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*jobdesc.JobDescription, 0)
	for _, jd := range s.jobDescriptions {
		if jd.UserID == userID {
			result = append(result, jd)
		}
	}

	start := opts.Offset
	if start > len(result) {
		start = len(result)
	}
	end := start + opts.Limit
	if opts.Limit == 0 || end > len(result) {
		end = len(result)
	}

	return result[start:end], nil
}

func (s *Store) DeleteJobDescription(_ context.Context, jdID id.JobDescriptionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobDescriptions[jdID.String()]; !exists {
		return tally.ErrJobDescriptionNotFound
	}
	delete(s.jobDescriptions, jdID.String())
	return nil
}

func (s *Store) TouchJobDescription(_ context.Context, jdID id.JobDescriptionID, usedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	jd, exists := s.jobDescriptions[jdID.String()]
	if !exists {
		return tally.ErrJobDescriptionNotFound
	}
	jd.UsageCount++
	jd.LastUsedAt = &usedAt
	jd.Touch()
	return nil
}

// Store management
func (s *Store) Migrate(_ context.Context) error {
	return nil // No migration needed for memory store
}

func (s *Store) Ping(_ context.Context) error {
	return nil // Always available
}

func (s *Store) Close() error {
	return nil // Nothing to close
}
