package channels

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/notifykit/notifykit/pkg/logger"
	"github.com/notifykit/notifykit/pkg/render"
)

// guarded turns panics inside a backend into failed delivery results so one
// misbehaving backend can never take a dispatch worker down.
type guarded struct {
	Backend
	log *slog.Logger
}

// Guard wraps a backend with panic recovery. The dispatcher guards every
// backend it is given.
func Guard(b Backend, log *slog.Logger) Backend {
	if log == nil {
		log = slog.Default()
	}
	return &guarded{Backend: b, log: log}
}

func (g *guarded) Send(ctx context.Context, rendered render.Rendered, target Target) (res DeliveryResult) {
	defer func() {
		if r := recover(); r != nil {
			g.log.LogAttrs(ctx, slog.LevelError, "backend panic recovered",
				logger.Channel(g.Name()),
				logger.NotificationID(target.NotificationID),
				slog.Any("panic", r),
			)
			res = failure(fmt.Sprintf("backend panic: %v", r))
		}
	}()
	return g.Backend.Send(ctx, rendered, target)
}
