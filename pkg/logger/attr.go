package logger

import (
	"log/slog"
	"time"
)

// Error creates an attribute for a single error under the key "error".
// If err is nil, it returns an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// UserID records the user identifier under the key "user_id".
// If id is nil, it returns an empty Attr.
func UserID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.Any("user_id", id)
}

// Tenant records the tenant identifier under the key "tenant_id".
// If id is nil, it returns an empty Attr.
func Tenant(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.Any("tenant_id", id)
}

// NotificationID records the notification identifier under the key "notification_id".
// If id is nil, it returns an empty Attr.
func NotificationID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.Any("notification_id", id)
}

// BroadcastID records the broadcast identifier under the key "broadcast_id".
// If id is nil, it returns an empty Attr.
func BroadcastID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.Any("broadcast_id", id)
}

// Event records the event key under the key "event".
func Event(key string) slog.Attr {
	return slog.String("event", key)
}

// Channel records the delivery channel under the key "channel".
func Channel(name string) slog.Attr {
	return slog.String("channel", name)
}

// GroupKey records the digest event-group key under the key "group_key".
func GroupKey(key string) slog.Attr {
	return slog.String("group_key", key)
}

// CacheKey records the cache key under the key "cache_key".
func CacheKey(key string) slog.Attr {
	return slog.String("cache_key", key)
}

// Connections records a live-connection count under the key "connections".
func Connections(n int) slog.Attr {
	return slog.Int("connections", n)
}

// RetryCount records the retry count under the key "retry_count".
func RetryCount(count int) slog.Attr {
	return slog.Int("retry_count", count)
}

// Duration records a duration under the key "duration".
func Duration(d time.Duration) slog.Attr {
	return slog.Duration("duration", d)
}

// Component records the component name under the key "component".
func Component(name string) slog.Attr {
	return slog.String("component", name)
}
