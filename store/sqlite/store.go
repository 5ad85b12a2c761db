// Package sqlite implements the Tally store on SQLite via the Grove
// ORM, for single-node deployments and integration tests that want real
// SQL semantics without a server.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/sqlitedriver"
	"github.com/xraph/grove/migrate"

	tally "github.com/xraph/tally"
	"github.com/xraph/tally/id"
	"github.com/xraph/tally/jobdesc"
	"github.com/xraph/tally/resume"
	tallystore "github.com/xraph/tally/store"
	"github.com/xraph/tally/subscription"
)

// compile-time interface check
var _ tallystore.Store = (*Store)(nil)

// Store implements store.Store using SQLite via Grove ORM.
type Store struct {
	db  *grove.DB
	sdb *sqlitedriver.SqliteDB
}

// New creates a new SQLite store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		sdb: sqlitedriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.sdb)
	if err != nil {
		return fmt.Errorf("tally/sqlite: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("tally/sqlite: migration failed: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Subscription Store ====================

func (s *Store) CreateSubscription(ctx context.Context, sub *subscription.Subscription) error {
	m := toSubscriptionModel(sub)
	_, err := s.sdb.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) GetSubscription(ctx context.Context, subID id.SubscriptionID) (*subscription.Subscription, error) {
	m := new(subscriptionModel)
	err := s.sdb.NewSelect(m).
		Where("id = ?", subID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, tally.ErrSubscriptionNotFound
		}
		return nil, err
	}
	return fromSubscriptionModel(m)
}

func (s *Store) GetSubscriptionByUser(ctx context.Context, userID string) (*subscription.Subscription, error) {
	m := new(subscriptionModel)
	err := s.sdb.NewSelect(m).
		Where("user_id = ?", userID).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, tally.ErrSubscriptionNotFound
		}
		return nil, err
	}
	return fromSubscriptionModel(m)
}

func (s *Store) ListSubscriptions(ctx context.Context, opts subscription.ListOpts) ([]*subscription.Subscription, error) {
	var models []subscriptionModel
	q := s.sdb.NewSelect(&models)

	if opts.Status != "" {
		q = q.Where("status = ?", string(opts.Status))
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("created_at ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*subscription.Subscription, len(models))
	for i := range models {
		sub, err := fromSubscriptionModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = sub
	}
	return result, nil
}

func (s *Store) UpdateSubscription(ctx context.Context, sub *subscription.Subscription) error {
	m := toSubscriptionModel(sub)
	m.UpdatedAt = now()
	res, err := s.sdb.NewUpdate(m).WherePK().Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return tally.ErrSubscriptionNotFound
	}
	return nil
}

// IncrementFreeGeneration spends one attempt and one saved slot in a
// single conditional UPDATE. SQLite serializes writers, so the WHERE
// re-check is sufficient to keep the counters under their limits.
func (s *Store) IncrementFreeGeneration(ctx context.Context, userID string) error {
	res, err := s.sdb.NewUpdate((*subscriptionModel)(nil)).
		Set("generation_attempts_used = generation_attempts_used + 1").
		Set("saved_resumes_count = saved_resumes_count + 1").
		Set("updated_at = ?", now()).
		Where("user_id = ?", userID).
		Where("(generation_attempts_limit = -1 OR generation_attempts_used < generation_attempts_limit)").
		Where("(saved_resumes_limit = -1 OR saved_resumes_count < saved_resumes_limit)").
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	return s.settleIncrement(ctx, userID, rows)
}

// IncrementMonthlyGeneration spends one monthly slot in a single
// conditional UPDATE.
func (s *Store) IncrementMonthlyGeneration(ctx context.Context, userID string) error {
	res, err := s.sdb.NewUpdate((*subscriptionModel)(nil)).
		Set("monthly_resumes_created = monthly_resumes_created + 1").
		Set("updated_at = ?", now()).
		Where("user_id = ?", userID).
		Where("(monthly_resumes_limit = -1 OR monthly_resumes_created < monthly_resumes_limit)").
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	return s.settleIncrement(ctx, userID, rows)
}

// settleIncrement maps a zero-row conditional update to the right
// sentinel: the subscription is either missing or out of quota.
func (s *Store) settleIncrement(ctx context.Context, userID string, rows int64) error {
	if rows > 0 {
		return nil
	}
	if _, err := s.GetSubscriptionByUser(ctx, userID); err != nil {
		return err
	}
	return tally.ErrQuotaExceeded
}

// ReleaseSavedSlot hands a saved-resume slot back after a resume row is
// removed. The counter is clamped at zero by the WHERE clause.
func (s *Store) ReleaseSavedSlot(ctx context.Context, userID string) error {
	_, err := s.sdb.NewUpdate((*subscriptionModel)(nil)).
		Set("saved_resumes_count = saved_resumes_count - 1").
		Set("updated_at = ?", now()).
		Where("user_id = ?", userID).
		Where("saved_resumes_count > 0").
		Exec(ctx)
	return err
}

func (s *Store) OverrideLimits(ctx context.Context, userID string, o subscription.LimitOverride) error {
	q := s.sdb.NewUpdate((*subscriptionModel)(nil))

	touched := false
	if o.GenerationAttemptsLimit != nil {
		q = q.Set("generation_attempts_limit = ?", *o.GenerationAttemptsLimit)
		touched = true
	}
	if o.SavedResumesLimit != nil {
		q = q.Set("saved_resumes_limit = ?", *o.SavedResumesLimit)
		touched = true
	}
	if o.MonthlyResumesLimit != nil {
		q = q.Set("monthly_resumes_limit = ?", *o.MonthlyResumesLimit)
		touched = true
	}
	if !touched {
		return nil
	}

	res, err := q.
		Set("updated_at = ?", now()).
		Where("user_id = ?", userID).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return tally.ErrSubscriptionNotFound
	}
	return nil
}

func (s *Store) ListPeriodEnded(ctx context.Context, before time.Time) ([]*subscription.Subscription, error) {
	var models []subscriptionModel
	err := s.sdb.NewSelect(&models).
		Where("current_period_end IS NOT NULL").
		Where("current_period_end < ?", before).
		Where("status != ?", string(subscription.StatusExpired)).
		OrderExpr("current_period_end ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]*subscription.Subscription, len(models))
	for i := range models {
		sub, err := fromSubscriptionModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = sub
	}
	return result, nil
}

// ==================== Resume Store ====================

func (s *Store) CreateResume(ctx context.Context, r *resume.Resume) error {
	m := toResumeModel(r)
	_, err := s.sdb.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) GetResume(ctx context.Context, resumeID id.ResumeID) (*resume.Resume, error) {
	m := new(resumeModel)
	err := s.sdb.NewSelect(m).
		Where("id = ?", resumeID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, tally.ErrResumeNotFound
		}
		return nil, err
	}
	return fromResumeModel(m)
}

func (s *Store) ListResumes(ctx context.Context, userID string, opts resume.ListOpts) ([]*resume.Resume, error) {
	var models []resumeModel
	q := s.sdb.NewSelect(&models).Where("user_id = ?", userID)

	if opts.Template != "" {
		q = q.Where("template = ?", opts.Template)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("created_at DESC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*resume.Resume, len(models))
	for i := range models {
		r, err := fromResumeModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = r
	}
	return result, nil
}

func (s *Store) CountResumes(ctx context.Context, userID string) (int64, error) {
	var total int64
	err := s.sdb.NewRaw(`
		SELECT COUNT(*) FROM tally_resumes WHERE user_id = ?
	`, userID).Scan(ctx, &total)
	if err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Store) DeleteResume(ctx context.Context, resumeID id.ResumeID) error {
	res, err := s.sdb.NewDelete((*resumeModel)(nil)).
		Where("id = ?", resumeID.String()).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return tally.ErrResumeNotFound
	}
	return nil
}

func (s *Store) PurgeExpiredResumes(ctx context.Context, before time.Time) (int64, error) {
	// Collect the expiring rows first so the owners' saved-resume
	// counters can be handed back along with the deletion.
	var expiring []resumeModel
	err := s.sdb.NewSelect(&expiring).
		Where("pdf_expires_at IS NOT NULL").
		Where("pdf_expires_at < ?", before).
		Scan(ctx)
	if err != nil {
		return 0, err
	}
	if len(expiring) == 0 {
		return 0, nil
	}

	perUser := make(map[string]int64)
	for i := range expiring {
		perUser[expiring[i].UserID]++
	}
	for userID, n := range perUser {
		_, err := s.sdb.NewUpdate((*subscriptionModel)(nil)).
			Set("saved_resumes_count = MAX(saved_resumes_count - ?, 0)", n).
			Set("updated_at = ?", now()).
			Where("user_id = ?", userID).
			Exec(ctx)
		if err != nil {
			return 0, err
		}
	}

	res, err := s.sdb.NewDelete((*resumeModel)(nil)).
		Where("pdf_expires_at IS NOT NULL").
		Where("pdf_expires_at < ?", before).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ==================== Job-description Store ====================

func (s *Store) CreateJobDescription(ctx context.Context, jd *jobdesc.JobDescription) error {
	m := toJobDescriptionModel(jd)
	_, err := s.sdb.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) GetJobDescription(ctx context.Context, jdID id.JobDescriptionID) (*jobdesc.JobDescription, error) {
	m := new(jobDescriptionModel)
	err := s.sdb.NewSelect(m).
		Where("id = ?", jdID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, tally.ErrJobDescriptionNotFound
		}
		return nil, err
	}
	return fromJobDescriptionModel(m)
}

func (s *Store) ListJobDescriptions(ctx context.Context, userID string, opts jobdesc.ListOpts) ([]*jobdesc.JobDescription, error) {
	var models []jobDescriptionModel
	q := s.sdb.NewSelect(&models).Where("user_id = ?", userID)

	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("created_at DESC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*jobdesc.JobDescription, len(models))
	for i := range models {
		jd, err := fromJobDescriptionModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = jd
	}
	return result, nil
}

func (s *Store) DeleteJobDescription(ctx context.Context, jdID id.JobDescriptionID) error {
	res, err := s.sdb.NewDelete((*jobDescriptionModel)(nil)).
		Where("id = ?", jdID.String()).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return tally.ErrJobDescriptionNotFound
	}
	return nil
}

func (s *Store) TouchJobDescription(ctx context.Context, jdID id.JobDescriptionID, usedAt time.Time) error {
	res, err := s.sdb.NewUpdate((*jobDescriptionModel)(nil)).
		Set("usage_count = usage_count + 1").
		Set("last_used_at = ?", usedAt).
		Set("updated_at = ?", now()).
		Where("id = ?", jdID.String()).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return tally.ErrJobDescriptionNotFound
	}
	return nil
}

// ==================== Helpers ====================

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
