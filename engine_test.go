package notifykit_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	notifykit "github.com/notifykit/notifykit"
	"github.com/notifykit/notifykit/pkg/broadcasts"
	"github.com/notifykit/notifykit/pkg/digest"
	"github.com/notifykit/notifykit/pkg/dispatch"
	"github.com/notifykit/notifykit/pkg/email"
	"github.com/notifykit/notifykit/pkg/render"
)

// Monday morning, so both daily and weekly boundary math is easy to follow.
var engineNow = time.Date(2025, time.June, 2, 10, 0, 0, 0, time.UTC)

func newEngine(t *testing.T, deps notifykit.Deps, opts ...notifykit.Option) *notifykit.Engine {
	t.Helper()

	if deps.Renderer == nil {
		deps.Renderer = render.NewRegistry()
		require.NoError(t, deps.Renderer.Register(render.Template{
			Event:   "order.shipped",
			Locale:  "en",
			Subject: "Order shipped",
			Text:    "Order {{.order_id}} is on its way.",
		}))
		require.NoError(t, deps.Renderer.Register(render.Template{
			Event:   digest.DigestEvent,
			Locale:  "en",
			Subject: "You have {{.count}} updates",
			Text:    "While you were away: {{.count}} updates.",
		}))
		require.NoError(t, deps.Renderer.Register(render.Template{
			Event:   "broadcast.announcement",
			Locale:  "en",
			Subject: "{{.title}}",
			Text:    "{{.body}}",
		}))
	}

	opts = append([]notifykit.Option{notifykit.WithClock(func() time.Time { return engineNow })}, opts...)
	return notifykit.New(notifykit.Config{
		Digest: digest.Config{Channels: []string{"realtime"}},
	}, deps, opts...)
}

func TestEngine_NotifyImmediate(t *testing.T) {
	eng := newEngine(t, notifykit.Deps{})

	out, err := eng.Notify(context.Background(), dispatch.DispatchRequest{
		Event:    "order.shipped",
		UserID:   "user-1",
		TenantID: "tenant-1",
		Payload:  map[string]any{"order_id": "A-1"},
		Channels: []string{"realtime"},
	})
	require.NoError(t, err)

	assert.False(t, out.Queued)
	require.NotNil(t, out.Receipt)
	assert.True(t, out.Receipt.Delivered)
}

func TestEngine_NotifyDefersToDigest(t *testing.T) {
	store := digest.NewMemoryStorage()
	eng := newEngine(t, notifykit.Deps{
		Preferences: digest.StaticPreferences(digest.FrequencyDaily),
		Digests:     store,
	})
	ctx := context.Background()

	out, err := eng.Notify(ctx, dispatch.DispatchRequest{
		Event:    "order.shipped",
		UserID:   "user-1",
		TenantID: "tenant-1",
		Payload:  map[string]any{"order_id": "A-1"},
		Channels: []string{"realtime"},
	})
	require.NoError(t, err)
	assert.True(t, out.Queued)
	assert.Nil(t, out.Receipt)
	assert.EqualValues(t, 1, eng.Monitor().Counters()["notify.queued"])

	// Nothing is due before the next boundary.
	sent, err := eng.Digests().Flush(ctx, engineNow)
	require.NoError(t, err)
	assert.Zero(t, sent)

	// The day after at 08:00 the deferred entry goes out as one digest.
	boundary := time.Date(2025, time.June, 3, 8, 0, 0, 0, time.UTC)
	sent, err = eng.Digests().Flush(ctx, boundary.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
}

func TestEngine_CriticalBypassesDigest(t *testing.T) {
	store := digest.NewMemoryStorage()
	eng := newEngine(t, notifykit.Deps{
		Preferences: digest.StaticPreferences(digest.FrequencyDaily),
		Digests:     store,
	})

	out, err := eng.Notify(context.Background(), dispatch.DispatchRequest{
		Event:    "order.shipped",
		UserID:   "user-1",
		TenantID: "tenant-1",
		Payload:  map[string]any{"order_id": "A-1"},
		Priority: dispatch.PriorityCritical,
		Channels: []string{"realtime"},
	})
	require.NoError(t, err)

	assert.False(t, out.Queued)
	require.NotNil(t, out.Receipt)
}

func TestEngine_NotifyValidatesBeforeDeferring(t *testing.T) {
	store := digest.NewMemoryStorage()
	eng := newEngine(t, notifykit.Deps{
		Preferences: digest.StaticPreferences(digest.FrequencyDaily),
		Digests:     store,
		PayloadKeys: dispatch.PayloadKeys{"order.shipped": {"order_id"}},
	})
	ctx := context.Background()

	t.Run("missing tenant", func(t *testing.T) {
		_, err := eng.Notify(ctx, dispatch.DispatchRequest{
			Event:    "order.shipped",
			UserID:   "user-1",
			Payload:  map[string]any{"order_id": "A-1"},
			Channels: []string{"realtime"},
		})
		require.ErrorIs(t, err, dispatch.ErrConfiguration)
	})

	t.Run("payload key outside the allowlist", func(t *testing.T) {
		_, err := eng.Notify(ctx, dispatch.DispatchRequest{
			Event:    "order.shipped",
			UserID:   "user-1",
			TenantID: "tenant-1",
			Payload:  map[string]any{"order_id": "A-1", "coupon": "WELCOME10"},
			Channels: []string{"realtime"},
		})
		require.ErrorIs(t, err, dispatch.ErrConfiguration)
	})

	// Rejected requests never reach the digest store.
	due, err := store.ClaimDue(ctx, engineNow.Add(14*24*time.Hour), time.Minute)
	require.NoError(t, err)
	assert.Empty(t, due)
}

// captureSender collects outbound emails instead of delivering them.
type captureSender struct {
	messages []email.Message
}

func (c *captureSender) Send(_ context.Context, msg email.Message) error {
	c.messages = append(c.messages, msg)
	return nil
}

func TestEngine_RecordsAddressingForDigests(t *testing.T) {
	sender := &captureSender{}
	store := digest.NewMemoryStorage()

	renderer := render.NewRegistry()
	require.NoError(t, renderer.Register(render.Template{
		Event:   "order.shipped",
		Locale:  "en",
		Subject: "Order shipped",
		Text:    "Order {{.order_id}} is on its way.",
	}))
	require.NoError(t, renderer.Register(render.Template{
		Event:   digest.DigestEvent,
		Locale:  "en",
		Subject: "You have {{.count}} updates",
		Text:    "While you were away: {{.count}} updates.",
	}))

	eng := notifykit.New(notifykit.Config{
		Digest: digest.Config{Channels: []string{"email"}},
	}, notifykit.Deps{
		Renderer:    renderer,
		Preferences: digest.StaticPreferences(digest.FrequencyDaily),
		Digests:     store,
		Email:       sender,
	}, notifykit.WithClock(func() time.Time { return engineNow }))
	ctx := context.Background()

	_, err := eng.Notify(ctx, dispatch.DispatchRequest{
		Event:    "order.shipped",
		UserID:   "user-1",
		TenantID: "tenant-1",
		Email:    "user@example.com",
		Payload:  map[string]any{"order_id": "A-1"},
		Channels: []string{"email"},
	})
	require.NoError(t, err)

	boundary := time.Date(2025, time.June, 3, 8, 1, 0, 0, time.UTC)
	sent, err := eng.Digests().Flush(ctx, boundary)
	require.NoError(t, err)
	require.Equal(t, 1, sent)
	require.Len(t, sender.messages, 1)
	assert.Equal(t, "user@example.com", sender.messages[0].To)
}

func TestEngine_Announce(t *testing.T) {
	store := broadcasts.NewMemoryStorage()
	eng := newEngine(t, notifykit.Deps{Broadcasts: store})
	ctx := context.Background()

	require.NoError(t, store.CreateMessage(ctx, broadcasts.Message{
		ID:           "b-1",
		TenantID:     "tenant-1",
		Title:        "Scheduled maintenance",
		Body:         "Saturday night.",
		Event:        "broadcast.announcement",
		ShowToAll:    true,
		ScheduledFor: engineNow.Add(-time.Hour),
		Channels:     []string{"realtime"},
		Active:       true,
		CreatedAt:    engineNow.Add(-2 * time.Hour),
	}))

	delivered, err := eng.Announce(ctx, "tenant-1", "b-1", []broadcasts.Recipient{
		{UserID: "user-1"},
		{UserID: "user-2"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, delivered)
}

func TestEngine_RunStopsOnCancel(t *testing.T) {
	eng := newEngine(t, notifykit.Deps{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		eng.Run(ctx)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("engine did not stop after cancel")
	}
}
