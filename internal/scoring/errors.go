package scoring

import "errors"

var (
	// ErrNotFound is returned when no score record exists for a user.
	ErrNotFound = errors.New("score record not found")

	// ErrInvalidCategory is returned for an unknown interaction category.
	ErrInvalidCategory = errors.New("invalid interaction category")

	// ErrInvalidEvent is returned for an empty one-time event ID.
	ErrInvalidEvent = errors.New("invalid one-time event")
)
