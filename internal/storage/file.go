package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"agegate/pkg/logging"
)

// tempPrefix marks in-flight writes that watchers must ignore.
const tempPrefix = ".tmp-"

// FileStore keeps one file per key inside a directory.
//
// Files are created with 0600 permissions inside a 0700 directory, and every
// write goes through a temporary file and a rename so readers in other
// processes never observe a partial value.
type FileStore struct {
	dir string
}

// NewFileStore creates a FileStore rooted at dir, creating the directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("storage directory is required")
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the directory backing the store.
func (s *FileStore) Dir() string {
	return s.dir
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.dir, url.PathEscape(key))
}

// Get returns the value stored under key.
func (s *FileStore) Get(_ context.Context, key string) (string, error) {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to read %s: %w", key, err)
	}
	return string(data), nil
}

// Set stores value under key.
func (s *FileStore) Set(_ context.Context, key, value string) error {
	tmp, err := os.CreateTemp(s.dir, tempPrefix+"*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpName := tmp.Name()

	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if _, err := tmp.WriteString(value); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	if err := os.Rename(tmpName, s.path(key)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to commit %s: %w", key, err)
	}
	return nil
}

// Delete removes key.
func (s *FileStore) Delete(_ context.Context, key string) error {
	if err := os.Remove(s.path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// Watch reports changes to files in the store directory.
func (s *FileStore) Watch(ctx context.Context) (<-chan Event, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("fsnotify not available: %w", err)
	}
	if err := watcher.Add(s.dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", s.dir, err)
	}

	out := make(chan Event, watchBufferSize)

	// Capture channels before the goroutine starts to avoid racing Close.
	eventsCh := watcher.Events
	errorsCh := watcher.Errors

	go func() {
		defer close(out)
		defer watcher.Close()

		for {
			select {
			case <-ctx.Done():
				return

			case fsEvent, ok := <-eventsCh:
				if !ok {
					return
				}
				event, ok := s.translate(ctx, fsEvent)
				if !ok {
					continue
				}
				select {
				case out <- event:
				default:
					logging.Debug("Storage", "Dropping file event for %s: watcher queue full", event.Key)
				}

			case err, ok := <-errorsCh:
				if !ok {
					return
				}
				logging.Warn("Storage", "fsnotify error: %v", err)
			}
		}
	}()

	return out, nil
}

// translate maps an fsnotify event onto a store Event.
func (s *FileStore) translate(ctx context.Context, fsEvent fsnotify.Event) (Event, bool) {
	name := filepath.Base(fsEvent.Name)
	if strings.HasPrefix(name, tempPrefix) {
		return Event{}, false
	}
	key, err := url.PathUnescape(name)
	if err != nil {
		return Event{}, false
	}

	switch {
	case fsEvent.Op&(fsnotify.Create|fsnotify.Write) != 0:
		value, err := s.Get(ctx, key)
		if err != nil {
			// Removed again before we could read it.
			return Event{}, false
		}
		return Event{Type: EventSet, Key: key, Value: value}, true
	case fsEvent.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		return Event{Type: EventDelete, Key: key}, true
	default:
		return Event{}, false
	}
}

// Close is a no-op for FileStore.
func (s *FileStore) Close() error {
	return nil
}
