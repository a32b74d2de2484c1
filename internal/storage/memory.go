package storage

import (
	"context"
	"sync"
)

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu       sync.Mutex
	data     map[string]string
	watchers map[int]chan Event
	nextID   int
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data:     make(map[string]string),
		watchers: make(map[int]chan Event),
	}
}

// Get returns the value stored under key.
func (s *MemoryStore) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	value, ok := s.data[key]
	if !ok {
		return "", ErrNotFound
	}
	return value, nil
}

// Set stores value under key.
func (s *MemoryStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[key] = value
	s.notifyLocked(Event{Type: EventSet, Key: key, Value: value})
	return nil
}

// Delete removes key.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data[key]; !ok {
		return nil
	}
	delete(s.data, key)
	s.notifyLocked(Event{Type: EventDelete, Key: key})
	return nil
}

// Watch subscribes to change notifications.
func (s *MemoryStore) Watch(ctx context.Context) (<-chan Event, error) {
	ch := make(chan Event, watchBufferSize)

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.watchers[id] = ch
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.watchers, id)
		close(ch)
		s.mu.Unlock()
	}()

	return ch, nil
}

// Close is a no-op for MemoryStore.
func (s *MemoryStore) Close() error {
	return nil
}

// notifyLocked fans an event out to every watcher without blocking.
// Must be called with s.mu held.
func (s *MemoryStore) notifyLocked(event Event) {
	for _, ch := range s.watchers {
		select {
		case ch <- event:
		default:
		}
	}
}
