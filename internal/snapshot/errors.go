package snapshot

import "errors"

var (
	// ErrNotFound is returned by Load when no snapshot exists for the valve.
	ErrNotFound = errors.New("snapshot: not found")

	// ErrUniqueIDRequired is returned when an operation is given an empty unique id.
	ErrUniqueIDRequired = errors.New("snapshot: unique id is required")
)
