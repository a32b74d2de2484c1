package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when the key has no entry.
var ErrNotFound = errors.New("storage: key not found")

// EventType describes what happened to an entry.
type EventType int

const (
	// EventSet reports a created or overwritten entry.
	EventSet EventType = iota
	// EventDelete reports a removed entry.
	EventDelete
)

// String returns a readable name for the event type.
func (t EventType) String() string {
	switch t {
	case EventSet:
		return "set"
	case EventDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Event is a change notification for a single key.
type Event struct {
	Type  EventType `json:"type"`
	Key   string    `json:"key"`
	Value string    `json:"value,omitempty"`
}

// Store is a durable, origin-scoped key/value store with change notifications.
// Every write is a last-writer-wins overwrite.
type Store interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)

	// Set stores value under key and notifies watchers.
	Set(ctx context.Context, key, value string) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Watch subscribes to change notifications for all keys. The returned
	// channel is closed once ctx is done.
	Watch(ctx context.Context) (<-chan Event, error)

	// Close releases the resources held by the store.
	Close() error
}

// watchBufferSize bounds the per-watcher event queue.
const watchBufferSize = 16
