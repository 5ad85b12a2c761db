package mongo

import (
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/tally/id"
	"github.com/xraph/tally/jobdesc"
	"github.com/xraph/tally/resume"
	"github.com/xraph/tally/subscription"
	"github.com/xraph/tally/tier"
	"github.com/xraph/tally/types"
)

// ==================== Subscription models ====================

type subscriptionModel struct {
	grove.BaseModel `grove:"table:tally_subscriptions"`

	ID                      string            `grove:"id,pk"                     bson:"_id"`
	UserID                  string            `grove:"user_id"                   bson:"user_id"`
	Tier                    string            `grove:"tier"                      bson:"tier"`
	Status                  string            `grove:"status"                    bson:"status"`
	GenerationAttemptsUsed  int64             `grove:"generation_attempts_used"  bson:"generation_attempts_used"`
	GenerationAttemptsLimit int64             `grove:"generation_attempts_limit" bson:"generation_attempts_limit"`
	SavedResumesCount       int64             `grove:"saved_resumes_count"       bson:"saved_resumes_count"`
	SavedResumesLimit       int64             `grove:"saved_resumes_limit"       bson:"saved_resumes_limit"`
	MonthlyResumesCreated   int64             `grove:"monthly_resumes_created"   bson:"monthly_resumes_created"`
	MonthlyResumesLimit     int64             `grove:"monthly_resumes_limit"     bson:"monthly_resumes_limit"`
	CurrentPeriodStart      *time.Time        `grove:"current_period_start"      bson:"current_period_start,omitempty"`
	CurrentPeriodEnd        *time.Time        `grove:"current_period_end"        bson:"current_period_end,omitempty"`
	CustomerRef             string            `grove:"customer_ref"              bson:"customer_ref"`
	SubscriptionRef         string            `grove:"subscription_ref"          bson:"subscription_ref"`
	PaymentRef              string            `grove:"payment_ref"               bson:"payment_ref"`
	LastBillingEventID      string            `grove:"last_billing_event_id"     bson:"last_billing_event_id"`
	Metadata                map[string]string `grove:"metadata"                  bson:"metadata,omitempty"`
	CreatedAt               time.Time         `grove:"created_at"                bson:"created_at"`
	UpdatedAt               time.Time         `grove:"updated_at"                bson:"updated_at"`
}

func toSubscriptionModel(s *subscription.Subscription) *subscriptionModel {
	return &subscriptionModel{
		ID:                      s.ID.String(),
		UserID:                  s.UserID,
		Tier:                    string(s.Tier),
		Status:                  string(s.Status),
		GenerationAttemptsUsed:  s.GenerationAttemptsUsed,
		GenerationAttemptsLimit: s.GenerationAttemptsLimit,
		SavedResumesCount:       s.SavedResumesCount,
		SavedResumesLimit:       s.SavedResumesLimit,
		MonthlyResumesCreated:   s.MonthlyResumesCreated,
		MonthlyResumesLimit:     s.MonthlyResumesLimit,
		CurrentPeriodStart:      s.CurrentPeriodStart,
		CurrentPeriodEnd:        s.CurrentPeriodEnd,
		CustomerRef:             s.CustomerRef,
		SubscriptionRef:         s.SubscriptionRef,
		PaymentRef:              s.PaymentRef,
		LastBillingEventID:      s.LastBillingEventID,
		Metadata:                s.Metadata,
		CreatedAt:               s.CreatedAt,
		UpdatedAt:               s.UpdatedAt,
	}
}

func fromSubscriptionModel(m *subscriptionModel) (*subscription.Subscription, error) {
	subID, err := id.ParseSubscriptionID(m.ID)
	if err != nil {
		return nil, err
	}

	return &subscription.Subscription{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:                      subID,
		UserID:                  m.UserID,
		Tier:                    tier.Tier(m.Tier),
		Status:                  subscription.Status(m.Status),
		GenerationAttemptsUsed:  m.GenerationAttemptsUsed,
		GenerationAttemptsLimit: m.GenerationAttemptsLimit,
		SavedResumesCount:       m.SavedResumesCount,
		SavedResumesLimit:       m.SavedResumesLimit,
		MonthlyResumesCreated:   m.MonthlyResumesCreated,
		MonthlyResumesLimit:     m.MonthlyResumesLimit,
		CurrentPeriodStart:      m.CurrentPeriodStart,
		CurrentPeriodEnd:        m.CurrentPeriodEnd,
		CustomerRef:             m.CustomerRef,
		SubscriptionRef:         m.SubscriptionRef,
		PaymentRef:              m.PaymentRef,
		LastBillingEventID:      m.LastBillingEventID,
		Metadata:                m.Metadata,
	}, nil
}

// ==================== Resume models ====================

type resumeModel struct {
	grove.BaseModel `grove:"table:tally_resumes"`

	ID           string            `grove:"id,pk"          bson:"_id"`
	UserID       string            `grove:"user_id"        bson:"user_id"`
	Title        string            `grove:"title"          bson:"title"`
	Role         string            `grove:"role"           bson:"role"`
	Template     string            `grove:"template"       bson:"template"`
	TokensUsed   int64             `grove:"tokens_used"    bson:"tokens_used"`
	CostAmount   int64             `grove:"cost_amount"    bson:"cost_amount"`
	CostCurrency string            `grove:"cost_currency"  bson:"cost_currency"`
	ModelID      string            `grove:"model_id"       bson:"model_id"`
	PDFExpiresAt *time.Time        `grove:"pdf_expires_at" bson:"pdf_expires_at,omitempty"`
	Metadata     map[string]string `grove:"metadata"       bson:"metadata,omitempty"`
	CreatedAt    time.Time         `grove:"created_at"     bson:"created_at"`
	UpdatedAt    time.Time         `grove:"updated_at"     bson:"updated_at"`
}

func toResumeModel(r *resume.Resume) *resumeModel {
	return &resumeModel{
		ID:           r.ID.String(),
		UserID:       r.UserID,
		Title:        r.Title,
		Role:         r.Role,
		Template:     r.Template,
		TokensUsed:   r.Generation.TokensUsed,
		CostAmount:   r.Generation.Cost.Amount,
		CostCurrency: r.Generation.Cost.Currency,
		ModelID:      r.Generation.ModelID,
		PDFExpiresAt: r.PDFExpiresAt,
		Metadata:     r.Metadata,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

func fromResumeModel(m *resumeModel) (*resume.Resume, error) {
	resumeID, err := id.ParseResumeID(m.ID)
	if err != nil {
		return nil, err
	}

	return &resume.Resume{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:       resumeID,
		UserID:   m.UserID,
		Title:    m.Title,
		Role:     m.Role,
		Template: m.Template,
		Generation: resume.GenerationMeta{
			TokensUsed: m.TokensUsed,
			Cost:       types.Money{Amount: m.CostAmount, Currency: m.CostCurrency},
			ModelID:    m.ModelID,
		},
		PDFExpiresAt: m.PDFExpiresAt,
		Metadata:     m.Metadata,
	}, nil
}

// ==================== Job-description models ====================

type jobDescriptionModel struct {
	grove.BaseModel `grove:"table:tally_job_descriptions"`

	ID         string     `grove:"id,pk"        bson:"_id"`
	UserID     string     `grove:"user_id"      bson:"user_id"`
	Title      string     `grove:"title"        bson:"title"`
	Body       string     `grove:"body"         bson:"body"`
	UsageCount int64      `grove:"usage_count"  bson:"usage_count"`
	LastUsedAt *time.Time `grove:"last_used_at" bson:"last_used_at,omitempty"`
	CreatedAt  time.Time  `grove:"created_at"   bson:"created_at"`
	UpdatedAt  time.Time  `grove:"updated_at"   bson:"updated_at"`
}

func toJobDescriptionModel(jd *jobdesc.JobDescription) *jobDescriptionModel {
	return &jobDescriptionModel{
		ID:         jd.ID.String(),
		UserID:     jd.UserID,
		Title:      jd.Title,
		Body:       jd.Body,
		UsageCount: jd.UsageCount,
		LastUsedAt: jd.LastUsedAt,
		CreatedAt:  jd.CreatedAt,
		UpdatedAt:  jd.UpdatedAt,
	}
}

func fromJobDescriptionModel(m *jobDescriptionModel) (*jobdesc.JobDescription, error) {
	jdID, err := id.ParseJobDescriptionID(m.ID)
	if err != nil {
		return nil, err
	}

	return &jobdesc.JobDescription{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:         jdID,
		UserID:     m.UserID,
		Title:      m.Title,
		Body:       m.Body,
		UsageCount: m.UsageCount,
		LastUsedAt: m.LastUsedAt,
	}, nil
}
