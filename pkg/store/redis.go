package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hirevoice/interview-agent/pkg/interview"
)

// RedisStateStore holds interview state in Redis under interview:<id>, with
// Redis enforcing the TTL.
type RedisStateStore struct {
	client *redis.Client
}

// NewRedisStateStore connects to Redis and verifies the connection.
func NewRedisStateStore(ctx context.Context, addr string) (*RedisStateStore, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisStateStore{client: client}, nil
}

func stateKey(sessionID string) string {
	return "interview:" + sessionID
}

// Get returns the session state, or (nil, nil) when missing or expired.
func (r *RedisStateStore) Get(ctx context.Context, sessionID string) (*interview.State, error) {
	data, err := r.client.Get(ctx, stateKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get interview state: %w", err)
	}

	var state interview.State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("decode interview state: %w", err)
	}
	return &state, nil
}

// Set writes the session state with the given TTL.
func (r *RedisStateStore) Set(ctx context.Context, sessionID string, state *interview.State, ttl time.Duration) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode interview state: %w", err)
	}
	if err := r.client.Set(ctx, stateKey(sessionID), data, ttl).Err(); err != nil {
		return fmt.Errorf("set interview state: %w", err)
	}
	return nil
}

// Expire shortens the remaining lifetime of existing state.
func (r *RedisStateStore) Expire(ctx context.Context, sessionID string, ttl time.Duration) error {
	if err := r.client.Expire(ctx, stateKey(sessionID), ttl).Err(); err != nil {
		return fmt.Errorf("expire interview state: %w", err)
	}
	return nil
}

func (r *RedisStateStore) Close() error {
	return r.client.Close()
}
