// Package settings holds the small operator overrides the bridge keeps outside
// its configuration document: the debug log file and the configuration file path.
package settings

import (
	"errors"
	"fmt"
	"sync"
)

const (
	// KeyDebugLogFile holds the debug log path. Empty or absent disables file logging.
	KeyDebugLogFile = "DebugLogFile"
	// KeyConfigFile holds the configuration file path. Empty or absent selects the default.
	KeyConfigFile = "ConfigFile"
)

// ErrNotFound is returned by Read when the key has never been written.
var ErrNotFound = errors.New("settings key not found")

// Store is a string key-value store scoped under the bridge's settings root.
type Store interface {
	Read(key string) (string, error)
	Write(key, value string) error
}

// DebugLogFile reads the persisted debug log path.
func DebugLogFile(store Store) (string, error) {
	return store.Read(KeyDebugLogFile)
}

// SetDebugLogFile persists the debug log path. An empty path disables file logging.
func SetDebugLogFile(store Store, path string) error {
	if err := store.Write(KeyDebugLogFile, path); err != nil {
		return fmt.Errorf("failed to write %s: %w", KeyDebugLogFile, err)
	}
	return nil
}

// ConfigFile reads the persisted configuration file override.
func ConfigFile(store Store) (string, error) {
	return store.Read(KeyConfigFile)
}

// SetConfigFile persists the configuration file override. An empty path
// restores the default.
func SetConfigFile(store Store, path string) error {
	if err := store.Write(KeyConfigFile, path); err != nil {
		return fmt.Errorf("failed to write %s: %w", KeyConfigFile, err)
	}
	return nil
}

// MemoryStore keeps settings in process memory.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

// Read implements Store.
func (m *MemoryStore) Read(key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	value, ok := m.values[key]
	if !ok {
		return "", ErrNotFound
	}
	return value, nil
}

// Write implements Store.
func (m *MemoryStore) Write(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.values[key] = value
	return nil
}
