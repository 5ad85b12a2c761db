// Package resume defines the generated-resume record and its store
// interface. A Resume row is created per successful generation; counting
// these rows is what backs the free tier's saved-resume limit.
package resume

import (
	"time"

	"github.com/xraph/tally/id"
	"github.com/xraph/tally/types"
)

// GenerationMeta records what the AI generation consumed. Cost is the
// linear estimate, telemetry only.
type GenerationMeta struct {
	TokensUsed int64       `json:"tokens_used"`
	Cost       types.Money `json:"cost"`
	ModelID    string      `json:"model_id"`
}

// Resume is one generated resume owned by a user.
//
// PDFExpiresAt is nil on paid tiers; on the free tier it is stamped
// fifteen days out at creation and the expired PDF is purged by the
// retention sweep.
type Resume struct {
	types.Entity
	ID       id.ResumeID `json:"id"`
	UserID   string      `json:"user_id"`
	Title    string      `json:"title"`
	Role     string      `json:"role"`
	Template string      `json:"template"`

	Generation GenerationMeta `json:"generation"`

	PDFExpiresAt *time.Time `json:"pdf_expires_at,omitempty"`

	Metadata map[string]string `json:"metadata,omitempty"`
}
