package email

import (
	"context"
	"fmt"
	"regexp"
)

// Sender delivers one transactional email.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Message is the outbound email payload produced by the email channel
// backend and the digest composer.
type Message struct {
	To       string `json:"to"`
	Subject  string `json:"subject"`
	BodyText string `json:"body_text"`
	BodyHTML string `json:"body_html"`
	Tag      string `json:"tag,omitempty"`
}

var emailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// Validate checks the minimal fields a provider call needs.
func (m Message) Validate() error {
	if m.To == "" || !emailRegex.MatchString(m.To) {
		return fmt.Errorf("%w: recipient %q", ErrInvalidRecipient, m.To)
	}
	if m.Subject == "" {
		return fmt.Errorf("%w: empty subject", ErrInvalidMessage)
	}
	if m.BodyHTML == "" && m.BodyText == "" {
		return fmt.Errorf("%w: empty body", ErrInvalidMessage)
	}
	return nil
}
