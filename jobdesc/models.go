// Package jobdesc defines the uploaded job-description record, a
// paid-tier feature used to target resume generation at a posting.
package jobdesc

import (
	"time"

	"github.com/xraph/tally/id"
	"github.com/xraph/tally/types"
)

// JobDescription is one uploaded posting. UsageCount tracks how many
// generations referenced it; LastUsedAt is bumped alongside.
type JobDescription struct {
	types.Entity
	ID     id.JobDescriptionID `json:"id"`
	UserID string              `json:"user_id"`
	Title  string              `json:"title"`
	Body   string              `json:"body"`

	UsageCount int64      `json:"usage_count"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
}
