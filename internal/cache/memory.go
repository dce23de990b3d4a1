package cache

import (
	"sort"
	"sync"
)

// MemoryStorage is an in-process Storage backed by a map
type MemoryStorage struct {
	data  map[string]string
	mutex sync.RWMutex
}

// NewMemoryStorage creates an empty in-memory substrate
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		data: make(map[string]string),
	}
}

// Read returns the raw value stored under key
func (m *MemoryStorage) Read(key string) (string, bool, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	value, exists := m.data[key]
	return value, exists, nil
}

// Write stores value under key
func (m *MemoryStorage) Write(key, value string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.data[key] = value
	return nil
}

// Keys returns the stored keys in sorted order
func (m *MemoryStorage) Keys() ([]string, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	keys := make([]string, 0, len(m.data))
	for key := range m.data {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

// Close drops all stored values
func (m *MemoryStorage) Close() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.data = make(map[string]string)
	return nil
}
