package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"agegate/pkg/logging"
)

// DefaultRedisKeyPrefix namespaces agegate entries inside a shared Redis.
const DefaultRedisKeyPrefix = "agegate:"

// eventsChannelSuffix names the pub/sub channel carrying change events.
const eventsChannelSuffix = "__events"

// RedisStore keeps entries in Redis and publishes change events so watchers
// on other hosts are notified.
type RedisStore struct {
	client    redis.UniversalClient
	keyPrefix string
}

// NewRedisStore connects to the Redis server at redisURL.
func NewRedisStore(ctx context.Context, redisURL, keyPrefix string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewRedisStoreWithClient(client, keyPrefix), nil
}

// NewRedisStoreWithClient creates a RedisStore around a pre-configured client.
// This is useful for testing with miniredis.
func NewRedisStoreWithClient(client redis.UniversalClient, keyPrefix string) *RedisStore {
	if keyPrefix == "" {
		keyPrefix = DefaultRedisKeyPrefix
	}
	return &RedisStore{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

func (s *RedisStore) key(key string) string {
	return s.keyPrefix + key
}

func (s *RedisStore) channel() string {
	return s.keyPrefix + eventsChannelSuffix
}

// Get returns the value stored under key.
func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	value, err := s.client.Get(ctx, s.key(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to read %s: %w", key, err)
	}
	return value, nil
}

// Set stores value under key and publishes a set event.
func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, s.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	s.publish(ctx, Event{Type: EventSet, Key: key, Value: value})
	return nil
}

// Delete removes key and publishes a delete event.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	s.publish(ctx, Event{Type: EventDelete, Key: key})
	return nil
}

// publish sends a change event. Failures only cost a notification; the
// entry itself is already written.
func (s *RedisStore) publish(ctx context.Context, event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	if err := s.client.Publish(ctx, s.channel(), payload).Err(); err != nil {
		logging.Warn("Storage", "Failed to publish %s event for %s: %v", event.Type, event.Key, err)
	}
}

// Watch subscribes to the store's change events.
func (s *RedisStore) Watch(ctx context.Context) (<-chan Event, error) {
	pubsub := s.client.Subscribe(ctx, s.channel())

	// Wait for the subscription to be confirmed so no event published after
	// Watch returns is missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", s.channel(), err)
	}

	messages := pubsub.Channel()
	out := make(chan Event, watchBufferSize)

	go func() {
		defer close(out)
		defer pubsub.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				var event Event
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					logging.Debug("Storage", "Ignoring malformed redis event: %v", err)
					continue
				}
				select {
				case out <- event:
				default:
					logging.Debug("Storage", "Dropping redis event for %s: watcher queue full", event.Key)
				}
			}
		}
	}()

	return out, nil
}

// Ping checks Redis connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis client connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
