package broadcasts

import "errors"

var (
	// ErrNotFound is returned when a broadcast lookup matches nothing.
	ErrNotFound = errors.New("broadcasts: message not found")

	// ErrInvalidMessage is returned when a message misses required fields.
	ErrInvalidMessage = errors.New("broadcasts: invalid message")

	// ErrStorage wraps storage-level failures.
	ErrStorage = errors.New("broadcasts: storage error")
)
