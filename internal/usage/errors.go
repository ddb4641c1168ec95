package usage

import "errors"

// ErrInvalidEntry is returned for entries missing an owner or carrying negative counts.
var ErrInvalidEntry = errors.New("invalid usage entry")
