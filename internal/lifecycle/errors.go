package lifecycle

import (
	"errors"

	"jobboard-backend/internal/staging"
	"jobboard-backend/internal/tempresumes"
)

var (
	// ErrNotFound covers missing, expired and foreign temp resumes.
	ErrNotFound = tempresumes.ErrNotFound
	// ErrInvalidState is returned when saving a resume that was never analyzed.
	ErrInvalidState = errors.New("temp resume has not been analyzed")
	// ErrFilesystem wraps staging and permanent storage I/O failures.
	ErrFilesystem = staging.ErrFilesystem
)
