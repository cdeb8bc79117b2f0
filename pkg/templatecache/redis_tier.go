package templatecache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/notifykit/notifykit/pkg/render"
)

// RedisTier implements SharedTier on a redis instance shared by all engine
// processes. Values are stored as JSON with a native redis TTL.
type RedisTier struct {
	client redis.UniversalClient
}

// NewRedisTier creates a redis-backed shared tier.
func NewRedisTier(client redis.UniversalClient) *RedisTier {
	return &RedisTier{client: client}
}

func (t *RedisTier) Get(ctx context.Context, key string) (render.Rendered, time.Duration, bool, error) {
	pipe := t.client.Pipeline()
	getCmd := pipe.Get(ctx, key)
	ttlCmd := pipe.TTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		if errors.Is(err, redis.Nil) {
			return render.Rendered{}, 0, false, nil
		}
		return render.Rendered{}, 0, false, err
	}

	var value render.Rendered
	if err := json.Unmarshal([]byte(getCmd.Val()), &value); err != nil {
		// A corrupt entry behaves as a miss so the caller re-renders over it.
		return render.Rendered{}, 0, false, err
	}

	ttl := ttlCmd.Val()
	if ttl < 0 {
		ttl = 0
	}
	return value, ttl, true, nil
}

func (t *RedisTier) Set(ctx context.Context, key string, value render.Rendered, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return t.client.Set(ctx, key, raw, ttl).Err()
}

func (t *RedisTier) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return t.client.Del(ctx, keys...).Err()
}

// DeletePrefix walks the keyspace with SCAN to avoid blocking redis the way
// KEYS does on large datasets.
func (t *RedisTier) DeletePrefix(ctx context.Context, prefix string) error {
	iter := t.client.Scan(ctx, 0, prefix+"*", 100).Iterator()

	batch := make([]string, 0, 100)
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == cap(batch) {
			if err := t.client.Del(ctx, batch...).Err(); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(batch) > 0 {
		return t.client.Del(ctx, batch...).Err()
	}
	return nil
}
