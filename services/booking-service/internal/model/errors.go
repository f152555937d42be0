package model

import "errors"

// Collaborator-facing error kinds. Packages wrap these with %w so callers can
// match with errors.Is regardless of which layer produced them.
var (
	ErrNotFound       = errors.New("not found")
	ErrInvalidRequest = errors.New("invalid request")
	ErrSlotConflict   = errors.New("time slot already booked")
	ErrServerError    = errors.New("server error")
	ErrNetworkError   = errors.New("network error")
	ErrPersistence    = errors.New("persistence error")
)

// Retryable reports errors the caller may retry after re-fetching availability.
func Retryable(err error) bool {
	return errors.Is(err, ErrSlotConflict) || errors.Is(err, ErrNetworkError)
}
