package registry

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// channelKeyPrefix namespaces connection streams in the shared redis
// keyspace.
const channelKeyPrefix = "notify:conn:"

// RedisPublisher carries payloads across processes over redis pub/sub, so a
// dispatch running in one replica reaches a stream held open by another.
type RedisPublisher struct {
	client redis.UniversalClient
}

// NewRedisPublisher creates a redis-backed publisher.
func NewRedisPublisher(client redis.UniversalClient) *RedisPublisher {
	return &RedisPublisher{client: client}
}

func (p *RedisPublisher) Publish(ctx context.Context, channelName string, payload []byte) error {
	return p.client.Publish(ctx, channelKeyPrefix+channelName, payload).Err()
}

// Subscribe opens the receiving end for one connection. The returned
// subscriber must be closed when the stream ends.
func (p *RedisPublisher) Subscribe(ctx context.Context, channelName string) Subscriber {
	pubsub := p.client.Subscribe(ctx, channelKeyPrefix+channelName)

	sub := &redisSubscriber{
		pubsub: pubsub,
		ch:     make(chan []byte, 16),
	}
	go sub.pump(ctx)
	return sub
}

type redisSubscriber struct {
	pubsub *redis.PubSub
	ch     chan []byte
}

func (s *redisSubscriber) pump(ctx context.Context) {
	defer close(s.ch)
	for {
		msg, err := s.pubsub.ReceiveMessage(ctx)
		if err != nil {
			// Subscription closed or context cancelled.
			return
		}
		select {
		case s.ch <- []byte(msg.Payload):
		default:
			// Slow consumer: drop rather than block the pump.
		}
	}
}

func (s *redisSubscriber) Messages() <-chan []byte {
	return s.ch
}

func (s *redisSubscriber) Close() error {
	return s.pubsub.Close()
}
