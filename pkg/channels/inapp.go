package channels

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/notifykit/notifykit/pkg/render"
)

// InboxItem is one entry in a user's in-app inbox.
type InboxItem struct {
	ID        string         `json:"id" bson:"_id"`
	UserID    string         `json:"user_id" bson:"user_id"`
	TenantID  string         `json:"tenant_id" bson:"tenant_id"`
	Event     string         `json:"event" bson:"event"`
	Title     string         `json:"title" bson:"title"`
	Body      string         `json:"body" bson:"body"`
	Payload   map[string]any `json:"payload,omitempty" bson:"payload,omitempty"`
	Read      bool           `json:"read" bson:"read"`
	CreatedAt time.Time      `json:"created_at" bson:"created_at"`
	ReadAt    *time.Time     `json:"read_at,omitempty" bson:"read_at,omitempty"`
}

// InboxStorage persists inbox items. Implementations must scope every
// operation to the tenant and user they are given.
type InboxStorage interface {
	Insert(ctx context.Context, item InboxItem) error
	List(ctx context.Context, tenantID, userID string, limit int) ([]InboxItem, error)
	MarkRead(ctx context.Context, tenantID, userID string, ids []string) (int64, error)
	CountUnread(ctx context.Context, tenantID, userID string) (int64, error)
}

// InAppBackend writes notifications into the recipient's inbox.
type InAppBackend struct {
	storage InboxStorage
	now     func() time.Time
}

// NewInAppBackend wraps inbox storage as a delivery backend.
func NewInAppBackend(storage InboxStorage) *InAppBackend {
	return &InAppBackend{storage: storage, now: time.Now}
}

func (b *InAppBackend) Name() string { return InApp }

// SupportsRetry is true: a failed inbox write is a storage fault and a
// retry can succeed.
func (b *InAppBackend) SupportsRetry() bool { return true }

func (b *InAppBackend) Send(ctx context.Context, rendered render.Rendered, target Target) DeliveryResult {
	id := target.NotificationID
	if id == "" {
		id = uuid.NewString()
	}

	item := InboxItem{
		ID:        id,
		UserID:    target.UserID,
		TenantID:  target.TenantID,
		Event:     target.Event,
		Title:     rendered.Title,
		Body:      rendered.Text,
		Payload:   target.Payload,
		CreatedAt: b.now().UTC(),
	}
	if err := b.storage.Insert(ctx, item); err != nil {
		return failure(fmt.Sprintf("%v: %v", ErrInboxUnavailable, err))
	}

	return DeliveryResult{
		Success:  true,
		Message:  "stored",
		Metadata: map[string]string{"inbox_item_id": id},
	}
}
