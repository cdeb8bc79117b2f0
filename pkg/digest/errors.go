package digest

import "errors"

var (
	// ErrInvalidEntry is returned when an entry misses required fields.
	ErrInvalidEntry = errors.New("digest: invalid entry")

	// ErrStorage wraps storage-level failures.
	ErrStorage = errors.New("digest: storage error")
)
