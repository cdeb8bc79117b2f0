package digest_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notifykit/notifykit/pkg/digest"
	"github.com/notifykit/notifykit/pkg/dispatch"
)

type fakeSender struct {
	requests  []dispatch.DispatchRequest
	delivered bool
	err       error
}

func (f *fakeSender) Dispatch(_ context.Context, req dispatch.DispatchRequest) (*dispatch.Receipt, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return &dispatch.Receipt{NotificationID: "n-1", Delivered: f.delivered}, nil
}

type staticDirectory struct{}

func (staticDirectory) Address(_ context.Context, _, userID string) (digest.Address, error) {
	return digest.Address{Email: userID + "@example.com", Locale: "en"}, nil
}

func newScheduler(t *testing.T, storage digest.Storage, prefs digest.Preferences, sender digest.Sender, now time.Time) *digest.Scheduler {
	t.Helper()
	return digest.New(digest.Config{}, storage, prefs, staticDirectory{}, sender,
		digest.WithClock(func() time.Time { return now }))
}

func enqueue(t *testing.T, s *digest.Scheduler, user, group string) {
	t.Helper()
	created, err := s.Enqueue(context.Background(), digest.EnqueueRequest{
		TenantID: "tenant-1",
		UserID:   user,
		GroupKey: group,
		Payload:  map[string]any{"group": group},
	})
	require.NoError(t, err)
	require.True(t, created)
}

func TestEnqueue_SchedulesAtNextBoundary(t *testing.T) {
	storage := digest.NewMemoryStorage()
	now := at(3, 9, 0)
	s := newScheduler(t, storage, digest.StaticPreferences(digest.FrequencyDaily), &fakeSender{delivered: true}, now)

	enqueue(t, s, "user-1", "orders")

	// Enqueued after 08:00, so nothing is due before tomorrow's boundary.
	due, err := storage.ClaimDue(context.Background(), at(3, 23, 0), time.Minute)
	require.NoError(t, err)
	assert.Empty(t, due)

	due, err = storage.ClaimDue(context.Background(), at(4, 8, 0), time.Minute)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, at(4, 8, 0), due[0].ScheduledFor)
}

func TestEnqueue_DisabledIsNoop(t *testing.T) {
	storage := digest.NewMemoryStorage()
	s := newScheduler(t, storage, digest.StaticPreferences(digest.FrequencyDisabled), &fakeSender{}, at(3, 9, 0))

	created, err := s.Enqueue(context.Background(), digest.EnqueueRequest{
		TenantID: "tenant-1", UserID: "user-1", GroupKey: "orders",
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Zero(t, storage.Len())
}

func TestFlush_ComposesOneDigestPerRecipient(t *testing.T) {
	storage := digest.NewMemoryStorage()
	sender := &fakeSender{delivered: true}
	s := newScheduler(t, storage, digest.StaticPreferences(digest.FrequencyDaily), sender, at(3, 9, 0))

	enqueue(t, s, "user-1", "orders")
	enqueue(t, s, "user-1", "billing")
	enqueue(t, s, "user-2", "orders")

	sent, err := s.Flush(context.Background(), at(4, 8, 0))
	require.NoError(t, err)
	assert.Equal(t, 2, sent)
	require.Len(t, sender.requests, 2)

	for _, req := range sender.requests {
		assert.Equal(t, digest.DigestEvent, req.Event)
		assert.Equal(t, "tenant-1", req.TenantID)
		assert.NotEmpty(t, req.Email)
		if req.UserID == "user-1" {
			assert.Equal(t, 2, req.Payload["count"])
		} else {
			assert.Equal(t, 1, req.Payload["count"])
		}
	}

	t.Run("second flush sends nothing", func(t *testing.T) {
		sent, err := s.Flush(context.Background(), at(4, 8, 5))
		require.NoError(t, err)
		assert.Zero(t, sent)
	})
}

func TestFlush_FailureReleasesClaim(t *testing.T) {
	storage := digest.NewMemoryStorage()
	sender := &fakeSender{err: errors.New("render broke")}
	s := newScheduler(t, storage, digest.StaticPreferences(digest.FrequencyDaily), sender, at(3, 9, 0))

	enqueue(t, s, "user-1", "orders")

	sent, err := s.Flush(context.Background(), at(4, 8, 0))
	require.NoError(t, err)
	assert.Zero(t, sent)

	// The claim is released, so the next flush retries the same entry.
	sender.err = nil
	sender.delivered = true
	sent, err = s.Flush(context.Background(), at(4, 8, 1))
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
}

func TestFlush_ClaimBlocksConcurrentFlush(t *testing.T) {
	storage := digest.NewMemoryStorage()
	s := newScheduler(t, storage, digest.StaticPreferences(digest.FrequencyDaily), &fakeSender{delivered: true}, at(3, 9, 0))

	enqueue(t, s, "user-1", "orders")

	// First claimer holds the entries.
	claimed, err := storage.ClaimDue(context.Background(), at(4, 8, 0), 5*time.Minute)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	sent, err := s.Flush(context.Background(), at(4, 8, 1))
	require.NoError(t, err)
	assert.Zero(t, sent)

	t.Run("expired claim is reclaimable", func(t *testing.T) {
		sent, err := s.Flush(context.Background(), at(4, 8, 6))
		require.NoError(t, err)
		assert.Equal(t, 1, sent)
	})
}

func TestMarkSent_FlipsEachEntryOnce(t *testing.T) {
	storage := digest.NewMemoryStorage()
	ctx := context.Background()
	require.NoError(t, storage.Add(ctx, digest.Entry{
		ID: "e-1", TenantID: "tenant-1", UserID: "user-1", GroupKey: "orders",
		ScheduledFor: at(4, 8, 0), CreatedAt: at(3, 9, 0),
	}))

	flipped, err := storage.MarkSent(ctx, []string{"e-1"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, flipped)

	flipped, err = storage.MarkSent(ctx, []string{"e-1"})
	require.NoError(t, err)
	assert.Zero(t, flipped)
}

func TestPurge_DeletesOldSentEntries(t *testing.T) {
	storage := digest.NewMemoryStorage()
	ctx := context.Background()
	sender := &fakeSender{delivered: true}
	s := newScheduler(t, storage, digest.StaticPreferences(digest.FrequencyDaily), sender, at(3, 9, 0))

	enqueue(t, s, "user-1", "orders")
	_, err := s.Flush(ctx, at(4, 8, 0))
	require.NoError(t, err)

	// Inside retention: kept.
	deleted, err := s.Purge(ctx, at(10, 8, 0))
	require.NoError(t, err)
	assert.Zero(t, deleted)

	// Past the 30 day retention: gone.
	deleted, err = s.Purge(ctx, at(3, 9, 0).Add(31*24*time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)
	assert.Zero(t, storage.Len())
}

// safeSender is fakeSender with a mutex so racing flushes can share it.
type safeSender struct {
	mu    sync.Mutex
	calls int
}

func (s *safeSender) Dispatch(_ context.Context, _ dispatch.DispatchRequest) (*dispatch.Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return &dispatch.Receipt{NotificationID: "n-1", Delivered: true}, nil
}

func TestFlush_ConcurrentFlushesSendOnce(t *testing.T) {
	storage := digest.NewMemoryStorage()
	sender := &safeSender{}
	s := newScheduler(t, storage, digest.StaticPreferences(digest.FrequencyDaily), sender, at(3, 7, 0))

	enqueue(t, s, "user-1", "orders")

	const flushers = 8
	var (
		wg        sync.WaitGroup
		totalSent atomic.Int64
	)
	wg.Add(flushers)
	for n := 0; n < flushers; n++ {
		go func() {
			defer wg.Done()
			sent, err := s.Flush(context.Background(), at(3, 8, 1))
			assert.NoError(t, err)
			totalSent.Add(int64(sent))
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, totalSent.Load(), "exactly one flush composes the digest")
	assert.Equal(t, 1, sender.calls, "the dispatcher sees exactly one send")

	sent, err := s.Flush(context.Background(), at(3, 8, 10))
	require.NoError(t, err)
	assert.Zero(t, sent)
}
