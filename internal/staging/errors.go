package staging

import "errors"

var (
	// ErrValidation reports an upload rejected for its type or size before any write.
	ErrValidation = errors.New("invalid upload")
	// ErrFilesystem reports a staging I/O failure.
	ErrFilesystem = errors.New("staging filesystem error")
)
