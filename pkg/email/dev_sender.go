package email

import (
	"context"
	"log/slog"
	"sync"
)

// DevSender collects messages in memory instead of calling a provider.
// Useful in development and as a test double for the email backend.
type DevSender struct {
	mu       sync.Mutex
	messages []Message
	log      *slog.Logger
}

// NewDevSender creates a sender that records messages locally.
func NewDevSender(log *slog.Logger) *DevSender {
	if log == nil {
		log = slog.Default()
	}
	return &DevSender{log: log}
}

func (d *DevSender) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}

	d.mu.Lock()
	d.messages = append(d.messages, msg)
	d.mu.Unlock()

	d.log.LogAttrs(ctx, slog.LevelInfo, "dev email captured",
		slog.String("to", msg.To),
		slog.String("subject", msg.Subject),
	)
	return nil
}

// Messages returns a copy of everything sent so far.
func (d *DevSender) Messages() []Message {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Message, len(d.messages))
	copy(out, d.messages)
	return out
}
