// Package store provides the durable key-value and flow-state stores
// backing idempotency records, rate windows, and dialogue state.
package store

import (
	"context"
	"encoding/json"
	"time"
)

// KV is a keyed store with TTL support.
//
// SetNX is the atomic check-and-mark primitive the engine's
// idempotency guarantee rests on: of two concurrent calls for the same
// key, exactly one observes first == true.
type KV interface {
	// Get returns the value and whether the key exists and is unexpired.
	Get(ctx context.Context, key string) (string, bool, error)
	// Set writes the value with a TTL. A zero TTL means no expiry.
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	// SetNX writes the value only if the key is absent. Returns true
	// when this call created the key.
	SetNX(ctx context.Context, key string, value string, ttl time.Duration) (bool, error)
	// Delete removes the key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Ping reports store health.
	Ping(ctx context.Context) error
}

// FlowState is one persisted dialogue position for a conversation key.
//
// Data is opaque JSON at this boundary; the engine decodes it into the
// concrete per-flow type.
type FlowState struct {
	ConversationKey string          `json:"conversation_key"`
	FlowName        string          `json:"flow_name"`
	Step            string          `json:"step"`
	Data            json.RawMessage `json:"data,omitempty"`
	StartedAt       time.Time       `json:"started_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	ExpiresAt       time.Time       `json:"expires_at"`
}

// Expired reports whether the state has passed its expiry at the given time.
func (s FlowState) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// FlowStore persists at most one FlowState per conversation key.
type FlowStore interface {
	// Get returns the state for a key and whether one exists. Expired
	// states may still be returned; callers check Expired.
	Get(ctx context.Context, conversationKey string) (FlowState, bool, error)
	// Upsert creates or replaces the state for its conversation key.
	Upsert(ctx context.Context, state FlowState) error
	// Delete removes the state for a key. Missing keys are not an error.
	Delete(ctx context.Context, conversationKey string) error
}
