package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// SchemaVersion is the only record version Load accepts.
const SchemaVersion = 1

// DefaultTTL is how long a verification stays valid when not configured.
const DefaultTTL = 1440 * time.Minute

// Record is the persisted proof that the visitor passed verification.
type Record struct {
	// Version is the record schema version.
	Version int `json:"v"`

	// Expiry is the absolute expiry time in Unix milliseconds.
	Expiry int64 `json:"e"`
}

// NewRecord returns a record expiring ttl after now.
func NewRecord(now time.Time, ttl time.Duration) Record {
	return Record{
		Version: SchemaVersion,
		Expiry:  now.Add(ttl).UnixMilli(),
	}
}

// ExpiresAt returns the expiry as a time.Time.
func (r Record) ExpiresAt() time.Time {
	return time.UnixMilli(r.Expiry)
}

// Valid reports whether the record unlocks content at now.
func (r Record) Valid(now time.Time) bool {
	return r.Version == SchemaVersion && now.UnixMilli() < r.Expiry
}

// errMalformed marks a stored value that cannot be decoded.
var errMalformed = errors.New("malformed session record")

func decodeRecord(raw string) (Record, error) {
	var r Record
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return Record{}, fmt.Errorf("%w: %v", errMalformed, err)
	}
	return r, nil
}

func encodeRecord(r Record) (string, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
