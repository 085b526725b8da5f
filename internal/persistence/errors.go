package persistence

import "errors"

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("persistence: not found")
	// ErrDuplicateKey is returned when an insert collides with an existing
	// booking key or primary key.
	ErrDuplicateKey = errors.New("persistence: duplicate key")
	// ErrCapacityExceeded is returned when a commit would push a mentor past
	// its configured active booking limit.
	ErrCapacityExceeded = errors.New("persistence: capacity exceeded")
)
