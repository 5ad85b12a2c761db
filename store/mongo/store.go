// Package mongo implements the Tally store on MongoDB via the Grove
// ORM. Quota counters are spent with filtered UpdateOne calls whose
// $expr re-checks the limit, mirroring the conditional UPDATE the SQL
// backends use.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	tally "github.com/xraph/tally"
	"github.com/xraph/tally/id"
	"github.com/xraph/tally/jobdesc"
	"github.com/xraph/tally/resume"
	tallystore "github.com/xraph/tally/store"
	"github.com/xraph/tally/subscription"
	"github.com/xraph/tally/tier"
)

// Collection name constants.
const (
	colSubscriptions   = "tally_subscriptions"
	colResumes         = "tally_resumes"
	colJobDescriptions = "tally_job_descriptions"
)

// compile-time interface check
var _ tallystore.Store = (*Store)(nil)

// Store implements store.Store using MongoDB via Grove ORM.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates indexes for all tally collections.
func (s *Store) Migrate(ctx context.Context) error {
	indexes := migrationIndexes()

	for col, models := range indexes {
		if len(models) == 0 {
			continue
		}
		_, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("tally/mongo: migrate %s indexes: %w", col, err)
		}
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
	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return tally.ErrSubscriptionExists
		}
		return fmt.Errorf("tally/mongo: create subscription: %w", err)
	}
	return nil
}

func (s *Store) GetSubscription(ctx context.Context, subID id.SubscriptionID) (*subscription.Subscription, error) {
	var m subscriptionModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": subID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, tally.ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("tally/mongo: get subscription: %w", err)
	}
	return fromSubscriptionModel(&m)
}

func (s *Store) GetSubscriptionByUser(ctx context.Context, userID string) (*subscription.Subscription, error) {
	var m subscriptionModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"user_id": userID}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, tally.ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("tally/mongo: get subscription by user: %w", err)
	}
	return fromSubscriptionModel(&m)
}

func (s *Store) ListSubscriptions(ctx context.Context, opts subscription.ListOpts) ([]*subscription.Subscription, error) {
	var models []subscriptionModel

	filter := bson.M{}
	if opts.Status != "" {
		filter["status"] = string(opts.Status)
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "created_at", Value: 1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("tally/mongo: list subscriptions: %w", err)
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

	res, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": m.ID}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("tally/mongo: update subscription: %w", err)
	}
	if res.MatchedCount() == 0 {
		return tally.ErrSubscriptionNotFound
	}
	return nil
}

// IncrementFreeGeneration spends one attempt and one saved slot with a
// filtered $inc. The $expr filter re-checks both limits on the server,
// so an out-of-quota row is never matched.
func (s *Store) IncrementFreeGeneration(ctx context.Context, userID string) error {
	filter := bson.M{
		"user_id": userID,
		"$expr": bson.M{"$and": bson.A{
			limitHasRoom("generation_attempts_used", "generation_attempts_limit"),
			limitHasRoom("saved_resumes_count", "saved_resumes_limit"),
		}},
	}
	update := bson.M{
		"$inc": bson.M{
			"generation_attempts_used": 1,
			"saved_resumes_count":      1,
		},
		"$set": bson.M{"updated_at": now()},
	}

	res, err := s.mdb.Collection(colSubscriptions).UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("tally/mongo: increment free generation: %w", err)
	}
	return s.settleIncrement(ctx, userID, res.MatchedCount)
}

// IncrementMonthlyGeneration spends one monthly slot with a filtered
// $inc.
func (s *Store) IncrementMonthlyGeneration(ctx context.Context, userID string) error {
	filter := bson.M{
		"user_id": userID,
		"$expr":   limitHasRoom("monthly_resumes_created", "monthly_resumes_limit"),
	}
	update := bson.M{
		"$inc": bson.M{"monthly_resumes_created": 1},
		"$set": bson.M{"updated_at": now()},
	}

	res, err := s.mdb.Collection(colSubscriptions).UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("tally/mongo: increment monthly generation: %w", err)
	}
	return s.settleIncrement(ctx, userID, res.MatchedCount)
}

// limitHasRoom builds the "$limit is unlimited or $used < $limit"
// aggregation expression for the given counter fields.
func limitHasRoom(usedField, limitField string) bson.M {
	return bson.M{"$or": bson.A{
		bson.M{"$eq": bson.A{"$" + limitField, tier.Unlimited}},
		bson.M{"$lt": bson.A{"$" + usedField, "$" + limitField}},
	}}
}

// settleIncrement maps a zero-match conditional update to the right
// sentinel: the subscription is either missing or out of quota.
func (s *Store) settleIncrement(ctx context.Context, userID string, matched int64) error {
	if matched > 0 {
		return nil
	}
	if _, err := s.GetSubscriptionByUser(ctx, userID); err != nil {
		return err
	}
	return tally.ErrQuotaExceeded
}

// ReleaseSavedSlot hands a saved-resume slot back after a resume row is
// removed. The filter clamps the counter at zero.
func (s *Store) ReleaseSavedSlot(ctx context.Context, userID string) error {
	_, err := s.mdb.Collection(colSubscriptions).UpdateOne(ctx,
		bson.M{"user_id": userID, "saved_resumes_count": bson.M{"$gt": 0}},
		bson.M{
			"$inc": bson.M{"saved_resumes_count": -1},
			"$set": bson.M{"updated_at": now()},
		},
	)
	if err != nil {
		return fmt.Errorf("tally/mongo: release saved slot: %w", err)
	}
	return nil
}

func (s *Store) OverrideLimits(ctx context.Context, userID string, o subscription.LimitOverride) error {
	set := bson.M{}
	if o.GenerationAttemptsLimit != nil {
		set["generation_attempts_limit"] = *o.GenerationAttemptsLimit
	}
	if o.SavedResumesLimit != nil {
		set["saved_resumes_limit"] = *o.SavedResumesLimit
	}
	if o.MonthlyResumesLimit != nil {
		set["monthly_resumes_limit"] = *o.MonthlyResumesLimit
	}
	if len(set) == 0 {
		return nil
	}
	set["updated_at"] = now()

	res, err := s.mdb.Collection(colSubscriptions).UpdateOne(ctx,
		bson.M{"user_id": userID},
		bson.M{"$set": set},
	)
	if err != nil {
		return fmt.Errorf("tally/mongo: override limits: %w", err)
	}
	if res.MatchedCount == 0 {
		return tally.ErrSubscriptionNotFound
	}
	return nil
}

func (s *Store) ListPeriodEnded(ctx context.Context, before time.Time) ([]*subscription.Subscription, error) {
	var models []subscriptionModel

	err := s.mdb.NewFind(&models).
		Filter(bson.M{
			"current_period_end": bson.M{"$lt": before},
			"status":             bson.M{"$ne": string(subscription.StatusExpired)},
		}).
		Sort(bson.D{{Key: "current_period_end", Value: 1}}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("tally/mongo: list period ended: %w", err)
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
	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		return fmt.Errorf("tally/mongo: create resume: %w", err)
	}
	return nil
}

func (s *Store) GetResume(ctx context.Context, resumeID id.ResumeID) (*resume.Resume, error) {
	var m resumeModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": resumeID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, tally.ErrResumeNotFound
		}
		return nil, fmt.Errorf("tally/mongo: get resume: %w", err)
	}
	return fromResumeModel(&m)
}

func (s *Store) ListResumes(ctx context.Context, userID string, opts resume.ListOpts) ([]*resume.Resume, error) {
	var models []resumeModel

	filter := bson.M{"user_id": userID}
	if opts.Template != "" {
		filter["template"] = opts.Template
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "created_at", Value: -1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("tally/mongo: list resumes: %w", err)
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
	total, err := s.mdb.Collection(colResumes).CountDocuments(ctx, bson.M{"user_id": userID})
	if err != nil {
		return 0, fmt.Errorf("tally/mongo: count resumes: %w", err)
	}
	return total, nil
}

func (s *Store) DeleteResume(ctx context.Context, resumeID id.ResumeID) error {
	res, err := s.mdb.NewDelete((*resumeModel)(nil)).
		Filter(bson.M{"_id": resumeID.String()}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("tally/mongo: delete resume: %w", err)
	}
	if res.DeletedCount() == 0 {
		return tally.ErrResumeNotFound
	}
	return nil
}

func (s *Store) PurgeExpiredResumes(ctx context.Context, before time.Time) (int64, error) {
	// Collect the expiring rows first so the owners' saved-resume
	// counters can be handed back along with the deletion.
	var expiring []resumeModel
	err := s.mdb.NewFind(&expiring).
		Filter(bson.M{"pdf_expires_at": bson.M{"$lt": before}}).
		Scan(ctx)
	if err != nil {
		return 0, fmt.Errorf("tally/mongo: purge expired resumes: %w", err)
	}
	if len(expiring) == 0 {
		return 0, nil
	}

	perUser := make(map[string]int64)
	for i := range expiring {
		perUser[expiring[i].UserID]++
	}
	for userID, n := range perUser {
		// $max keeps the counter from going negative when rows and
		// counter have already drifted.
		pipeline := mongo.Pipeline{
			{{Key: "$set", Value: bson.M{
				"saved_resumes_count": bson.M{"$max": bson.A{
					int64(0),
					bson.M{"$subtract": bson.A{"$saved_resumes_count", n}},
				}},
				"updated_at": now(),
			}}},
		}
		_, err := s.mdb.Collection(colSubscriptions).UpdateOne(ctx,
			bson.M{"user_id": userID}, pipeline)
		if err != nil {
			return 0, fmt.Errorf("tally/mongo: release purged slots: %w", err)
		}
	}

	res, err := s.mdb.NewDelete((*resumeModel)(nil)).
		Filter(bson.M{"pdf_expires_at": bson.M{"$lt": before}}).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("tally/mongo: purge expired resumes: %w", err)
	}
	return res.DeletedCount(), nil
}

// ==================== Job-description Store ====================

func (s *Store) CreateJobDescription(ctx context.Context, jd *jobdesc.JobDescription) error {
	m := toJobDescriptionModel(jd)
	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		return fmt.Errorf("tally/mongo: create job description: %w", err)
	}
	return nil
}

func (s *Store) GetJobDescription(ctx context.Context, jdID id.JobDescriptionID) (*jobdesc.JobDescription, error) {
	var m jobDescriptionModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": jdID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, tally.ErrJobDescriptionNotFound
		}
		return nil, fmt.Errorf("tally/mongo: get job description: %w", err)
	}
	return fromJobDescriptionModel(&m)
}

func (s *Store) ListJobDescriptions(ctx context.Context, userID string, opts jobdesc.ListOpts) ([]*jobdesc.JobDescription, error) {
	var models []jobDescriptionModel

	q := s.mdb.NewFind(&models).
		Filter(bson.M{"user_id": userID}).
		Sort(bson.D{{Key: "created_at", Value: -1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("tally/mongo: list job descriptions: %w", err)
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
	res, err := s.mdb.NewDelete((*jobDescriptionModel)(nil)).
		Filter(bson.M{"_id": jdID.String()}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("tally/mongo: delete job description: %w", err)
	}
	if res.DeletedCount() == 0 {
		return tally.ErrJobDescriptionNotFound
	}
	return nil
}

func (s *Store) TouchJobDescription(ctx context.Context, jdID id.JobDescriptionID, usedAt time.Time) error {
	res, err := s.mdb.Collection(colJobDescriptions).UpdateOne(ctx,
		bson.M{"_id": jdID.String()},
		bson.M{
			"$inc": bson.M{"usage_count": 1},
			"$set": bson.M{"last_used_at": usedAt, "updated_at": now()},
		},
	)
	if err != nil {
		return fmt.Errorf("tally/mongo: touch job description: %w", err)
	}
	if res.MatchedCount == 0 {
		return tally.ErrJobDescriptionNotFound
	}
	return nil
}

// ==================== Helpers ====================

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all tally collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colSubscriptions: {
			{
				Keys:    bson.D{{Key: "user_id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "status", Value: 1}}},
			{
				Keys:    bson.D{{Key: "current_period_end", Value: 1}},
				Options: options.Index().SetSparse(true),
			},
		},
		colResumes: {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
			{
				Keys:    bson.D{{Key: "pdf_expires_at", Value: 1}},
				Options: options.Index().SetSparse(true),
			},
		},
		colJobDescriptions: {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
		},
	}
}
