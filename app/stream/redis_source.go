package stream

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisSource implements StreamSource on a Redis Pub/Sub channel
type RedisSource struct {
	client  *redis.Client
	channel string
}

// NewRedisSource creates a new Redis-backed stream source
func NewRedisSource(client *redis.Client, channel string) StreamSource {
	return &RedisSource{client: client, channel: channel}
}

func (s *RedisSource) Connect(ctx context.Context) (StreamConn, error) {
	pubsub := s.client.Subscribe(ctx, s.channel)

	// Force the subscription handshake so a dead broker fails here rather
	// than on the first Receive
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", s.channel, err)
	}

	return &redisConn{pubsub: pubsub}, nil
}

type redisConn struct {
	pubsub *redis.PubSub
}

func (c *redisConn) Receive(ctx context.Context) ([]byte, error) {
	msg, err := c.pubsub.ReceiveMessage(ctx)
	if err != nil {
		return nil, err
	}
	return []byte(msg.Payload), nil
}

func (c *redisConn) Close() error {
	return c.pubsub.Close()
}
