package users

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("user not found")

type Repo interface {
	GetByID(ctx context.Context, userID string) (User, error)
	// SetResume creates the profile if needed, replaces its permanent resume
	// and returns the one it replaced, if any.
	SetResume(ctx context.Context, userID string, resume PermanentResume) (*PermanentResume, error)
}
