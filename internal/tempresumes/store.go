package tempresumes

import (
	"context"
	"errors"
	"fmt"
	"time"

	"jobboard-backend/internal/analysis"
)

var (
	// ErrNotFound covers missing, expired, foreign and claimed records alike.
	ErrNotFound = errors.New("temp resume not found")
	// ErrNotAnalyzed is returned by Claim for a record still in the staged state.
	ErrNotAnalyzed   = errors.New("temp resume not analyzed")
	ErrInvalidRecord = errors.New("invalid temp resume record")
)

// DefaultClaimLease bounds how long a crashed save can hide a record.
const DefaultClaimLease = 2 * time.Minute

// Store is the record side of the temp resume lifecycle. Every owner-facing
// method is an atomic read-modify-write on a single record.
type Store interface {
	Create(ctx context.Context, rec Record) error
	GetOwned(ctx context.Context, ownerID, id string, now time.Time) (Record, error)
	SetAnalysis(ctx context.Context, ownerID, id string, result analysis.Result, now time.Time) error
	// Claim marks an analyzed record as being saved. Claimed records are
	// invisible to GetOwned, SetAnalysis, DeleteOwned and ListExpired until
	// released or the lease runs out.
	Claim(ctx context.Context, ownerID, id string, now time.Time) (Record, error)
	// Release clears the claim taken at claimedAt. A claim that lapsed and was
	// taken again by another caller is left alone.
	Release(ctx context.Context, id string, claimedAt time.Time) error
	// DeleteOwned removes a live record and returns it.
	DeleteOwned(ctx context.Context, ownerID, id string, now time.Time) (Record, error)
	// Delete removes a record unconditionally. Missing records are not an error.
	Delete(ctx context.Context, id string) error
	ListExpired(ctx context.Context, now time.Time, limit int) ([]Record, error)
	DeleteAll(ctx context.Context) (int, error)
	// LivePaths returns the staged path of every stored record, expired or not.
	LivePaths(ctx context.Context) (map[string]struct{}, error)
}

func validate(rec Record) error {
	switch {
	case rec.ID == "":
		return fmt.Errorf("%w: missing id", ErrInvalidRecord)
	case rec.OwnerID == "":
		return fmt.Errorf("%w: missing owner", ErrInvalidRecord)
	case rec.StagedPath == "":
		return fmt.Errorf("%w: missing staged path", ErrInvalidRecord)
	case !rec.ExpiresAt.After(rec.CreatedAt):
		return fmt.Errorf("%w: expiry must follow creation", ErrInvalidRecord)
	}
	return nil
}

func leaseOrDefault(lease time.Duration) time.Duration {
	if lease <= 0 {
		return DefaultClaimLease
	}
	return lease
}
