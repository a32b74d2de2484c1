// Package cookie implements the cookie backend used alongside the key/value
// store, so a session or a signal survives when one of the two is cleared.
package cookie

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// Jar stores cookies for a single origin.
//
// Cookies are kept as Set-Cookie records. When the jar has a path they are
// persisted one per line, so every process using the same file sees the
// same cookies; the file is re-read before each operation. An empty path
// keeps the jar in memory.
type Jar struct {
	mu      sync.Mutex
	path    string
	cookies map[string]*http.Cookie
	now     func() time.Time
}

// Option configures a Jar.
type Option func(*Jar)

// WithClock overrides the clock used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(j *Jar) {
		j.now = now
	}
}

// NewJar creates a jar persisted at path, or an in-memory jar if path is empty.
func NewJar(path string, opts ...Option) (*Jar, error) {
	j := &Jar{
		path:    path,
		cookies: make(map[string]*http.Cookie),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(j)
	}

	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, fmt.Errorf("failed to create cookie directory: %w", err)
		}
	}
	return j, nil
}

// Set stores a cookie with path "/", SameSite=Lax and an expiry ttl from now.
// The value is URL-encoded so arbitrary JSON can be stored.
func (j *Jar) Set(name, value string, ttl time.Duration) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := j.loadLocked(); err != nil {
		return err
	}

	j.cookies[name] = &http.Cookie{
		Name:     name,
		Value:    url.QueryEscape(value),
		Path:     "/",
		Expires:  j.now().Add(ttl).UTC().Truncate(time.Second),
		SameSite: http.SameSiteLaxMode,
	}
	return j.saveLocked()
}

// Get returns the decoded value of an unexpired cookie.
func (j *Jar) Get(name string) (string, bool) {
	c := j.Cookie(name)
	if c == nil {
		return "", false
	}
	value, err := url.QueryUnescape(c.Value)
	if err != nil {
		return "", false
	}
	return value, true
}

// Cookie returns a copy of the named cookie, or nil if it is missing or expired.
func (j *Jar) Cookie(name string) *http.Cookie {
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := j.loadLocked(); err != nil {
		return nil
	}
	c, ok := j.cookies[name]
	if !ok {
		return nil
	}
	copied := *c
	return &copied
}

// Delete expires the named cookie.
func (j *Jar) Delete(name string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := j.loadLocked(); err != nil {
		return err
	}
	if _, ok := j.cookies[name]; !ok {
		return nil
	}
	delete(j.cookies, name)
	return j.saveLocked()
}

// Path returns the file backing the jar, or "" for an in-memory jar.
func (j *Jar) Path() string {
	return j.path
}

func (j *Jar) expired(c *http.Cookie) bool {
	return !c.Expires.IsZero() && !j.now().Before(c.Expires)
}

// loadLocked refreshes the jar from disk and drops expired cookies.
// Must be called with j.mu held.
func (j *Jar) loadLocked() error {
	if j.path != "" {
		data, err := os.ReadFile(j.path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			j.cookies = make(map[string]*http.Cookie)
		case err != nil:
			return fmt.Errorf("failed to read cookie file: %w", err)
		default:
			j.cookies = parse(data)
		}
	}

	for name, c := range j.cookies {
		if j.expired(c) {
			delete(j.cookies, name)
		}
	}
	return nil
}

// saveLocked writes the jar to disk.
// Must be called with j.mu held.
func (j *Jar) saveLocked() error {
	if j.path == "" {
		return nil
	}

	names := make([]string, 0, len(j.cookies))
	for name := range j.cookies {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	for _, name := range names {
		buf.WriteString(j.cookies[name].String())
		buf.WriteByte('\n')
	}

	tmp := j.path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write cookie file: %w", err)
	}
	if err := os.Rename(tmp, j.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write cookie file: %w", err)
	}
	return nil
}

func parse(data []byte) map[string]*http.Cookie {
	cookies := make(map[string]*http.Cookie)
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		c, err := http.ParseSetCookie(line)
		if err != nil {
			continue
		}
		cookies[c.Name] = c
	}
	return cookies
}
