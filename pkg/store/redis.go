package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"chatcart/pkg/config"
)

const flowKeyPrefix = "flow:"

// RedisKV backs the KV contract with Redis. SET NX with expiry gives
// the atomic check-and-mark the idempotency store requires.
type RedisKV struct {
	client *redis.Client
}

// NewRedisKV connects a Redis-backed KV store.
func NewRedisKV(cfg config.RedisConfig) *RedisKV {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	return &RedisKV{client: client}
}

// Get returns the value for a key.
func (r *RedisKV) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get %s: %w", key, err)
	}

	return value, true, nil
}

// Set writes a value with a TTL. Zero TTL persists without expiry.
func (r *RedisKV) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}

	return nil
}

// SetNX writes a value only if the key is absent.
func (r *RedisKV) SetNX(ctx context.Context, key string, value string, ttl time.Duration) (bool, error) {
	created, err := r.client.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx %s: %w", key, err)
	}

	return created, nil
}

// Delete removes a key.
func (r *RedisKV) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}

	return nil
}

// Ping reports Redis connectivity.
func (r *RedisKV) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}

	return nil
}

// Close releases the underlying client.
func (r *RedisKV) Close() error {
	return r.client.Close()
}

// RedisFlowStore persists flow state as JSON under flow:<conversation key>,
// with the Redis TTL mirroring the state's expiry so abandoned dialogues
// clean themselves up.
type RedisFlowStore struct {
	client *redis.Client
}

// NewRedisFlowStore builds a flow store sharing the KV's client.
func NewRedisFlowStore(kv *RedisKV) *RedisFlowStore {
	return &RedisFlowStore{client: kv.client}
}

// Get returns the state for a conversation key.
func (r *RedisFlowStore) Get(ctx context.Context, conversationKey string) (FlowState, bool, error) {
	raw, err := r.client.Get(ctx, flowKeyPrefix+conversationKey).Result()
	if errors.Is(err, redis.Nil) {
		return FlowState{}, false, nil
	}
	if err != nil {
		return FlowState{}, false, fmt.Errorf("redis get flow state: %w", err)
	}

	var state FlowState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return FlowState{}, false, fmt.Errorf("decode flow state: %w", err)
	}

	return state, true, nil
}

// Upsert creates or replaces the state for its conversation key.
func (r *RedisFlowStore) Upsert(ctx context.Context, state FlowState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode flow state: %w", err)
	}

	ttl := time.Duration(0)
	if !state.ExpiresAt.IsZero() {
		ttl = time.Until(state.ExpiresAt)
		if ttl <= 0 {
			return r.Delete(ctx, state.ConversationKey)
		}
	}

	if err := r.client.Set(ctx, flowKeyPrefix+state.ConversationKey, raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis set flow state: %w", err)
	}

	return nil
}

// Delete removes the state for a conversation key.
func (r *RedisFlowStore) Delete(ctx context.Context, conversationKey string) error {
	if err := r.client.Del(ctx, flowKeyPrefix+conversationKey).Err(); err != nil {
		return fmt.Errorf("redis del flow state: %w", err)
	}

	return nil
}
