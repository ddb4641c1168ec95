package tempresumes

import (
	"time"

	"jobboard-backend/internal/analysis"
)

type State string

const (
	StateStaged   State = "staged"
	StateAnalyzed State = "analyzed"
)

// Record is one in-flight resume. While it exists, exactly one file exists at StagedPath.
type Record struct {
	ID          string           `json:"tempResumeId"`
	OwnerID     string           `json:"-"`
	StagedPath  string           `json:"-"`
	FileName    string           `json:"fileName"`
	ContentType string           `json:"contentType"`
	SizeBytes   int64            `json:"sizeBytes"`
	Analysis    *analysis.Result `json:"analysis,omitempty"`
	CreatedAt   time.Time        `json:"createdAt"`
	ExpiresAt   time.Time        `json:"expiresAt"`
	// ClaimedAt is set while a save is consuming the record.
	ClaimedAt *time.Time `json:"-"`
}

func (r Record) State() State {
	if r.Analysis == nil {
		return StateStaged
	}
	return StateAnalyzed
}

// Expired reports whether the record is past its deadline at now.
func (r Record) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// claimed reports whether a save lease is still held at now.
func (r Record) claimed(now time.Time, lease time.Duration) bool {
	return r.ClaimedAt != nil && r.ClaimedAt.Add(lease).After(now)
}

// live reports whether an owner-facing operation may see the record.
func (r Record) live(ownerID string, now time.Time, lease time.Duration) bool {
	return r.OwnerID == ownerID && !r.Expired(now) && !r.claimed(now, lease)
}
