package channels

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const inboxCollection = "inbox_items"

// MongoInbox stores inbox items in a MongoDB collection.
type MongoInbox struct {
	coll *mongo.Collection
}

// NewMongoInbox wraps the inbox collection of the given database.
func NewMongoInbox(db *mongo.Database) *MongoInbox {
	return &MongoInbox{coll: db.Collection(inboxCollection)}
}

// EnsureIndexes creates the indexes list and unread-count queries rely on.
// Call once at startup.
func (m *MongoInbox) EnsureIndexes(ctx context.Context) error {
	_, err := m.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{
			{Key: "tenant_id", Value: 1},
			{Key: "user_id", Value: 1},
			{Key: "created_at", Value: -1},
		}},
		{Keys: bson.D{
			{Key: "tenant_id", Value: 1},
			{Key: "user_id", Value: 1},
			{Key: "read", Value: 1},
		}},
	})
	if err != nil {
		return fmt.Errorf("create inbox indexes: %w", err)
	}
	return nil
}

func (m *MongoInbox) Insert(ctx context.Context, item InboxItem) error {
	if _, err := m.coll.InsertOne(ctx, item); err != nil {
		return fmt.Errorf("insert inbox item: %w", err)
	}
	return nil
}

func (m *MongoInbox) List(ctx context.Context, tenantID, userID string, limit int) ([]InboxItem, error) {
	filter := bson.M{"tenant_id": tenantID, "user_id": userID}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts = opts.SetLimit(int64(limit))
	}

	cur, err := m.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("list inbox items: %w", err)
	}
	defer cur.Close(ctx)

	var items []InboxItem
	if err := cur.All(ctx, &items); err != nil {
		return nil, fmt.Errorf("decode inbox items: %w", err)
	}
	return items, nil
}

func (m *MongoInbox) MarkRead(ctx context.Context, tenantID, userID string, ids []string) (int64, error) {
	filter := bson.M{"tenant_id": tenantID, "user_id": userID, "read": false}
	if len(ids) > 0 {
		filter["_id"] = bson.M{"$in": ids}
	}

	res, err := m.coll.UpdateMany(ctx, filter, bson.M{"$set": bson.M{
		"read":    true,
		"read_at": time.Now().UTC(),
	}})
	if err != nil {
		return 0, fmt.Errorf("mark inbox items read: %w", err)
	}
	return res.ModifiedCount, nil
}

func (m *MongoInbox) CountUnread(ctx context.Context, tenantID, userID string) (int64, error) {
	n, err := m.coll.CountDocuments(ctx, bson.M{
		"tenant_id": tenantID,
		"user_id":   userID,
		"read":      false,
	})
	if err != nil {
		return 0, fmt.Errorf("count unread inbox items: %w", err)
	}
	return n, nil
}
