package cache

import (
	"encoding/json"
)

// Storage is the persistent key-value substrate the TTL cache is layered on.
// It has no notion of expiry; Store implements TTL entirely on top of it.
type Storage interface {
	// Read returns the raw value stored under key. ok is false when the key is absent.
	Read(key string) (value string, ok bool, err error)

	// Write stores value under key, replacing any previous value
	Write(key, value string) error
}

// Lister is implemented by substrates that can enumerate their keys.
// Store.Stats requires it.
type Lister interface {
	Keys() ([]string, error)
}

// Entry is the envelope persisted for every cached value.
// Expires is an absolute unix timestamp in milliseconds.
type Entry struct {
	Data    json.RawMessage `json:"data"`
	Expires *int64          `json:"expires"`
}

// HasData reports whether the envelope carries a payload at all
func (e *Entry) HasData() bool {
	return len(e.Data) > 0 && string(e.Data) != "null"
}
