package analysis

import "errors"

var (
	// ErrExternalService covers an unreachable, failing or timed out scoring service.
	ErrExternalService = errors.New("analysis service failed")
	// ErrParse means the service replied but the reply could not be interpreted.
	ErrParse = errors.New("analysis reply could not be parsed")
)
