package calendar

import "errors"

var (
	ErrAdapterUnavailable = errors.New("adapter unavailable")
	ErrMalformedEvent     = errors.New("malformed event")
	ErrImmutableSource    = errors.New("unauthorized: immutable source")
	ErrPersistenceFailure = errors.New("persistence failure")
	ErrEventNotFound      = errors.New("event not found")
)
