package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// DefaultOutboxKey is the Redis list the mailer worker pops from.
const DefaultOutboxKey = "taskcamp:outbox"

// RedisNotifier pushes messages onto a Redis list for an external mailer.
type RedisNotifier struct {
	client *redis.Client
	key    string
}

func NewRedisNotifier(client *redis.Client, key string) *RedisNotifier {
	if key == "" {
		key = DefaultOutboxKey
	}
	return &RedisNotifier{client: client, key: key}
}

// NewRedisClient parses a redis:// URL into a client.
func NewRedisClient(redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}

func (n *RedisNotifier) Notify(ctx context.Context, msg Message) error {
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if err := n.client.LPush(ctx, n.key, b).Err(); err != nil {
		return fmt.Errorf("redis error: %w", err)
	}
	return nil
}

func (n *RedisNotifier) Close() error {
	return n.client.Close()
}
