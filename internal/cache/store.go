package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/N4S4/site-stats/internal/logging"
)

// DefaultTTL is used by Set when no explicit TTL is given
const DefaultTTL = 180 * time.Second

// ErrStatsUnsupported is returned by Stats when the substrate cannot list its keys
var ErrStatsUnsupported = errors.New("cache storage does not support listing keys")

// Config holds configuration options for the TTL store
type Config struct {
	// DefaultTTL applies to Set and to SetWithTTL calls with a non-positive TTL.
	DefaultTTL time.Duration

	// Now is the clock used for expiry checks. Defaults to time.Now.
	Now func() time.Time

	Logger logrus.FieldLogger
}

// Store provides TTL-based caching on top of a Storage substrate.
//
// Values are JSON encoded and wrapped in an Entry envelope recording the
// absolute expiry. Expired entries are never deleted: Get treats them as
// missing, GetExpired still returns them so callers can serve stale data
// when a refresh fails. Unreadable envelopes are treated as absent.
type Store struct {
	storage    Storage
	defaultTTL time.Duration
	now        func() time.Time
	logger     logrus.FieldLogger
}

// Stats summarises the entries held by the substrate
type Stats struct {
	TotalEntries   int `json:"total_entries"`
	ValidEntries   int `json:"valid_entries"`
	ExpiredEntries int `json:"expired_entries"`
	CorruptEntries int `json:"corrupt_entries"`
}

// NewStore creates a TTL store with default configuration
func NewStore(storage Storage) *Store {
	return NewStoreWithConfig(storage, &Config{})
}

// NewStoreWithConfig creates a TTL store with the given configuration
func NewStoreWithConfig(storage Storage, config *Config) *Store {
	if config == nil {
		config = &Config{}
	}

	s := &Store{
		storage:    storage,
		defaultTTL: config.DefaultTTL,
		now:        config.Now,
		logger:     config.Logger,
	}
	if s.defaultTTL <= 0 {
		s.defaultTTL = DefaultTTL
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.logger == nil {
		s.logger = logrus.StandardLogger()
	}

	return s
}

// DefaultTTL returns the TTL applied when none is given
func (s *Store) DefaultTTL() time.Duration {
	return s.defaultTTL
}

// Get decodes the value stored under key into out if the entry exists and
// has not expired. It reports whether out was populated.
func (s *Store) Get(key string, out interface{}) bool {
	entry, ok := s.read(key)
	if !ok {
		return false
	}

	if entry.Expires == nil || *entry.Expires <= s.now().UnixMilli() {
		s.logger.WithFields(logging.CacheFields(key, 0)).Debug("Cache: entry expired")
		return false
	}

	return s.decode(key, entry, out)
}

// GetExpired decodes the value stored under key into out regardless of expiry.
// It is the fallback path for serving stale data.
func (s *Store) GetExpired(key string, out interface{}) bool {
	entry, ok := s.read(key)
	if !ok {
		return false
	}

	return s.decode(key, entry, out)
}

// Set stores value under key with the default TTL
func (s *Store) Set(key string, value interface{}) error {
	return s.SetWithTTL(key, value, s.defaultTTL)
}

// SetWithTTL stores value under key, overwriting any previous entry.
// A non-positive ttl falls back to the default TTL.
func (s *Store) SetWithTTL(key string, value interface{}, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value for %q: %w", key, err)
	}

	expires := s.now().Add(ttl).UnixMilli()
	payload, err := json.Marshal(Entry{Data: data, Expires: &expires})
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry for %q: %w", key, err)
	}

	if err := s.storage.Write(key, string(payload)); err != nil {
		return fmt.Errorf("failed to write cache entry %q: %w", key, err)
	}

	s.logger.WithFields(logging.CacheFields(key, ttl)).Debug("Cache: stored entry")
	return nil
}

// Stats counts live, expired and unreadable entries
func (s *Store) Stats() (Stats, error) {
	lister, ok := s.storage.(Lister)
	if !ok {
		return Stats{}, ErrStatsUnsupported
	}

	keys, err := lister.Keys()
	if err != nil {
		return Stats{}, fmt.Errorf("failed to list cache keys: %w", err)
	}

	var stats Stats
	now := s.now().UnixMilli()
	for _, key := range keys {
		stats.TotalEntries++

		entry, ok := s.read(key)
		if !ok {
			stats.CorruptEntries++
			continue
		}
		if entry.Expires != nil && *entry.Expires > now {
			stats.ValidEntries++
		} else {
			stats.ExpiredEntries++
		}
	}

	return stats, nil
}

// Close releases the substrate if it holds resources
func (s *Store) Close() error {
	if closer, ok := s.storage.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// read loads and parses the envelope for key. Any failure is reported as absence.
func (s *Store) read(key string) (*Entry, bool) {
	raw, ok, err := s.storage.Read(key)
	if err != nil {
		s.logger.WithFields(logging.CacheFields(key, 0)).WithError(err).Warn("Cache: storage read failed")
		return nil, false
	}
	if !ok || raw == "" {
		s.logger.WithFields(logging.CacheFields(key, 0)).Debug("Cache: miss")
		return nil, false
	}

	var entry Entry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		s.logger.WithFields(logging.CacheFields(key, 0)).WithError(err).Debug("Cache: unreadable entry")
		return nil, false
	}
	if !entry.HasData() {
		s.logger.WithFields(logging.CacheFields(key, 0)).Debug("Cache: entry has no data")
		return nil, false
	}

	return &entry, true
}

func (s *Store) decode(key string, entry *Entry, out interface{}) bool {
	if err := json.Unmarshal(entry.Data, out); err != nil {
		s.logger.WithFields(logging.CacheFields(key, 0)).WithError(err).Debug("Cache: entry does not match expected shape")
		return false
	}
	return true
}
