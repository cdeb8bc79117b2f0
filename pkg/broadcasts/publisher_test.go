package broadcasts_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notifykit/notifykit/pkg/broadcasts"
	"github.com/notifykit/notifykit/pkg/dispatch"
)

type fakeSender struct {
	requests []dispatch.DispatchRequest
	failFor  map[string]error
}

func (f *fakeSender) Dispatch(_ context.Context, req dispatch.DispatchRequest) (*dispatch.Receipt, error) {
	f.requests = append(f.requests, req)
	if err := f.failFor[req.UserID]; err != nil {
		return nil, err
	}
	return &dispatch.Receipt{NotificationID: "n", Delivered: true}, nil
}

func newPublisher(t *testing.T, storage broadcasts.Storage, sender broadcasts.Sender, now time.Time) *broadcasts.Publisher {
	t.Helper()
	return broadcasts.NewPublisher(storage, sender,
		broadcasts.WithPublisherClock(func() time.Time { return now }))
}

func TestPublish_FansOutPerRecipient(t *testing.T) {
	storage := broadcasts.NewMemoryStorage()
	ctx := context.Background()
	require.NoError(t, storage.CreateMessage(ctx, maintenanceNotice("b-1", true)))

	sender := &fakeSender{}
	pub := newPublisher(t, storage, sender, baseTime)

	delivered, err := pub.Publish(ctx, "tenant-1", "b-1", []broadcasts.Recipient{
		{UserID: "user-1", Email: "one@example.com"},
		{UserID: "user-2", Email: "two@example.com"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, delivered)
	require.Len(t, sender.requests, 2)

	req := sender.requests[0]
	assert.Equal(t, "broadcast.announcement", req.Event)
	assert.Equal(t, dispatch.PriorityCritical, req.Priority)
	assert.Equal(t, []string{"inapp"}, req.Channels)
	assert.Equal(t, "b-1", req.Payload["broadcast_id"])
	assert.Equal(t, "Scheduled maintenance", req.Payload["title"])
	assert.Equal(t, true, req.Payload["blocking"])
}

func TestPublish_RecipientFailureSkipsOnlyThatRecipient(t *testing.T) {
	storage := broadcasts.NewMemoryStorage()
	ctx := context.Background()
	require.NoError(t, storage.CreateMessage(ctx, maintenanceNotice("b-1", false)))

	sender := &fakeSender{failFor: map[string]error{"user-1": errors.New("boom")}}
	pub := newPublisher(t, storage, sender, baseTime)

	delivered, err := pub.Publish(ctx, "tenant-1", "b-1", []broadcasts.Recipient{
		{UserID: "user-1"},
		{UserID: "user-2"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, delivered)
	assert.Len(t, sender.requests, 2)
}

func TestPublish_InactiveWindowDeliversNothing(t *testing.T) {
	storage := broadcasts.NewMemoryStorage()
	ctx := context.Background()

	future := maintenanceNotice("b-future", false)
	future.ScheduledFor = baseTime.Add(time.Hour)
	require.NoError(t, storage.CreateMessage(ctx, future))

	sender := &fakeSender{}
	pub := newPublisher(t, storage, sender, baseTime)

	delivered, err := pub.Publish(ctx, "tenant-1", "b-future", []broadcasts.Recipient{{UserID: "user-1"}})
	require.NoError(t, err)
	assert.Zero(t, delivered)
	assert.Empty(t, sender.requests)
}

func TestPublish_UnknownBroadcast(t *testing.T) {
	pub := newPublisher(t, broadcasts.NewMemoryStorage(), &fakeSender{}, baseTime)

	_, err := pub.Publish(context.Background(), "tenant-1", "missing", nil)
	assert.ErrorIs(t, err, broadcasts.ErrNotFound)
}
