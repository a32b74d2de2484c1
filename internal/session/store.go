package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"agegate/internal/cookie"
	"agegate/internal/storage"
	"agegate/pkg/logging"
)

// KeyPrefix prefixes the client ID to name the session entry and cookie.
const KeyPrefix = "aw_session_"

// Key returns the storage key and cookie name for clientID.
func Key(clientID string) string {
	return KeyPrefix + clientID
}

// Store reads and writes the session record across both backends.
type Store struct {
	kv      storage.Store
	cookies *cookie.Jar
	key     string
	now     func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the clock used to stamp and validate records.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore creates a session store for clientID. Either backend may be nil,
// in which case only the other one is used.
func NewStore(clientID string, kv storage.Store, cookies *cookie.Jar, opts ...Option) *Store {
	s := &Store{
		kv:      kv,
		cookies: cookies,
		key:     Key(clientID),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Save commits a fresh record valid for ttl and returns it.
func (s *Store) Save(ctx context.Context, ttl time.Duration) (Record, error) {
	record := NewRecord(s.now(), ttl)
	if err := s.SaveRecord(ctx, record, ttl); err != nil {
		return Record{}, err
	}
	return record, nil
}

// SaveRecord writes record to both backends; the cookie expires after ttl.
// It succeeds when at least one backend accepted the write.
func (s *Store) SaveRecord(ctx context.Context, record Record, ttl time.Duration) error {
	value, err := encodeRecord(record)
	if err != nil {
		return fmt.Errorf("failed to encode session record: %w", err)
	}

	var kvErr, cookieErr error
	written := 0

	if s.kv != nil {
		if kvErr = s.kv.Set(ctx, s.key, value); kvErr != nil {
			logging.Warn("Session", "Key/value backend rejected session write: %v", kvErr)
		} else {
			written++
		}
	}
	if s.cookies != nil {
		if cookieErr = s.cookies.Set(s.key, value, ttl); cookieErr != nil {
			logging.Warn("Session", "Cookie backend rejected session write: %v", cookieErr)
		} else {
			written++
		}
	}

	if written == 0 {
		if kvErr == nil && cookieErr == nil {
			return errors.New("no session backend configured")
		}
		return fmt.Errorf("failed to persist session: %w", errors.Join(kvErr, cookieErr))
	}

	logging.Info("Session", "Session saved, expires at %s", record.ExpiresAt().Format(time.RFC3339))
	return nil
}

// Load returns the current record if it unlocks content.
// Expired or invalid records are purged from both backends.
func (s *Store) Load(ctx context.Context) (*Record, bool) {
	record, source, found := s.read(ctx)
	if !found {
		return nil, false
	}

	if !record.Valid(s.now()) {
		if record.Version != SchemaVersion {
			logging.Debug("Session", "Discarding session with schema version %d from %s", record.Version, source)
		} else {
			logging.Info("Session", "Session expired at %s, purging", record.ExpiresAt().Format(time.RFC3339))
		}
		if err := s.Clear(ctx); err != nil {
			logging.Warn("Session", "Failed to purge stale session: %v", err)
		}
		return nil, false
	}

	return &record, true
}

// read returns the first decodable record, preferring the key/value store.
func (s *Store) read(ctx context.Context) (Record, string, bool) {
	if s.kv != nil {
		raw, err := s.kv.Get(ctx, s.key)
		switch {
		case err == nil:
			record, decodeErr := decodeRecord(raw)
			if decodeErr == nil {
				return record, "store", true
			}
			logging.Debug("Session", "Ignoring stored session: %v", decodeErr)
		case !errors.Is(err, storage.ErrNotFound):
			logging.Warn("Session", "Key/value backend unavailable: %v", err)
		}
	}

	if s.cookies != nil {
		if raw, ok := s.cookies.Get(s.key); ok {
			record, err := decodeRecord(raw)
			if err == nil {
				return record, "cookie", true
			}
			logging.Debug("Session", "Ignoring session cookie: %v", err)
		}
	}

	return Record{}, "", false
}

// Clear removes the record from both backends.
func (s *Store) Clear(ctx context.Context) error {
	var errs []error
	if s.kv != nil {
		if err := s.kv.Delete(ctx, s.key); err != nil {
			errs = append(errs, err)
		}
	}
	if s.cookies != nil {
		if err := s.cookies.Delete(s.key); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
