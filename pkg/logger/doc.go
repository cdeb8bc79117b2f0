// Package logger provides a slog.Logger factory with environment presets,
// context-aware attribute injection, and typed attribute helpers used across
// the notification engine.
//
// The factory returns a standard *slog.Logger so components depend only on
// log/slog; the helpers keep attribute keys consistent between packages:
//
//	log := logger.New(logger.WithProduction("notifier"))
//	log.LogAttrs(ctx, slog.LevelInfo, "notification delivered",
//		logger.NotificationID(id),
//		logger.Channel("email"),
//	)
//
// Context extractors registered via WithContextExtractors (or the
// WithContextValue shortcut) run per log call, so request-scoped values such
// as request ids are always fresh.
package logger
