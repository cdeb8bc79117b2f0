package render

import (
	"errors"
	"fmt"
)

// ErrInvalidTemplate is returned when a template fails to register or compile.
var ErrInvalidTemplate = errors.New("render: invalid template")

// Error reports a failed render: a missing template or a template that blew
// up during execution. Renders are never retried, so the dispatcher surfaces
// this to the caller without creating delivery records.
type Error struct {
	Event  string
	Locale string
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("render: %s (event %q, locale %q): %v", e.Reason, e.Event, e.Locale, e.Err)
	}
	return fmt.Sprintf("render: %s (event %q, locale %q)", e.Reason, e.Event, e.Locale)
}

func (e *Error) Unwrap() error {
	return e.Err
}
