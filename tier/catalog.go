package tier

import (
	"errors"
	"fmt"
	"slices"
	"time"
)

// ErrUnknownTier is returned when a tier has no catalog entry.
var ErrUnknownTier = errors.New("tier: unknown tier")

// Limits describes what a tier entitles a subscriber to.
// A limit of Unlimited (-1) means no ceiling. PDFRetention of zero
// means generated PDFs never expire.
type Limits struct {
	GenerationAttempts  int64         `json:"generation_attempts"   mapstructure:"generation_attempts"   yaml:"generation_attempts"`
	SavedResumes        int64         `json:"saved_resumes"         mapstructure:"saved_resumes"         yaml:"saved_resumes"`
	MonthlyResumes      int64         `json:"monthly_resumes"       mapstructure:"monthly_resumes"       yaml:"monthly_resumes"`
	AllowJobDescription bool          `json:"allow_job_description" mapstructure:"allow_job_description" yaml:"allow_job_description"`
	Templates           []string      `json:"templates"             mapstructure:"templates"             yaml:"templates"`
	PDFRetention        time.Duration `json:"pdf_retention"         mapstructure:"pdf_retention"         yaml:"pdf_retention"`
}

// TemplateAllowed reports whether the named template is in this tier's set.
func (l Limits) TemplateAllowed(template string) bool {
	return slices.Contains(l.Templates, template)
}

// Validate checks that every limit is either non-negative or the
// Unlimited sentinel. Any other negative value is a configuration error.
func (l Limits) Validate() error {
	for _, v := range []struct {
		name  string
		limit int64
	}{
		{"generation_attempts", l.GenerationAttempts},
		{"saved_resumes", l.SavedResumes},
		{"monthly_resumes", l.MonthlyResumes},
	} {
		if v.limit < Unlimited {
			return fmt.Errorf("tier: limit %s has invalid value %d", v.name, v.limit)
		}
	}
	return nil
}

// Catalog maps each tier to its limits. It is pure configuration;
// no side effects, no I/O.
type Catalog map[Tier]Limits

// Template names shipped with the resume builder. The free set is a
// strict subset of the full set.
const (
	TemplateClassic   = "classic"
	TemplateMinimal   = "minimal"
	TemplateModern    = "modern"
	TemplateExecutive = "executive"
	TemplateCreative  = "creative"
)

// FreeTemplates is the template set available without a paid tier.
func FreeTemplates() []string {
	return []string{TemplateClassic, TemplateMinimal}
}

// AllTemplates is the full template set available to paid tiers.
func AllTemplates() []string {
	return []string{TemplateClassic, TemplateMinimal, TemplateModern, TemplateExecutive, TemplateCreative}
}

// FreePDFRetention is how long free-tier PDFs are kept before expiry.
const FreePDFRetention = 15 * 24 * time.Hour

// DefaultCatalog returns the stock tier catalog:
// free = 5 generation attempts, 3 saved resumes, 15-day PDF retention;
// paid = 50 resumes per billing month, everything else unlimited;
// lifetime = no ceilings at all.
func DefaultCatalog() Catalog {
	paid := Limits{
		GenerationAttempts:  Unlimited,
		SavedResumes:        Unlimited,
		MonthlyResumes:      50,
		AllowJobDescription: true,
		Templates:           AllTemplates(),
	}

	lifetime := paid
	lifetime.MonthlyResumes = Unlimited

	return Catalog{
		Free: {
			GenerationAttempts: 5,
			SavedResumes:       3,
			Templates:          FreeTemplates(),
			PDFRetention:       FreePDFRetention,
		},
		PremiumMonthly: paid,
		PremiumAnnual:  paid,
		Lifetime:       lifetime,
	}
}

// LimitsFor returns the limits for a tier. An unknown tier is a
// configuration error, never a silent default.
func (c Catalog) LimitsFor(t Tier) (Limits, error) {
	l, ok := c[t]
	if !ok {
		return Limits{}, fmt.Errorf("%w: %q", ErrUnknownTier, t)
	}
	return l, nil
}

// Validate checks every catalog entry.
func (c Catalog) Validate() error {
	for t, l := range c {
		if !t.Valid() {
			return fmt.Errorf("%w: %q", ErrUnknownTier, t)
		}
		if err := l.Validate(); err != nil {
			return fmt.Errorf("tier %q: %w", t, err)
		}
	}
	return nil
}
