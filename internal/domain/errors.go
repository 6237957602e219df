package domain

import "errors"

var (
	ErrInvalidInput          = errors.New("invalid input")
	ErrUnknownFragment       = errors.New("unknown fragment")
	ErrCyclicFragment        = errors.New("cyclic fragment")
	ErrDuplicateFragment     = errors.New("duplicate fragment")
	ErrFetchFailed           = errors.New("fetch failed")
	ErrNotAuthorized         = errors.New("not authorized")
	ErrNotFound              = errors.New("resource not found")
	ErrUnauthenticated       = errors.New("unauthenticated")
	ErrDependencyUnavailable = errors.New("dependency unavailable")
)
