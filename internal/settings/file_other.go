//go:build !windows

package settings

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/viper"
)

const (
	// DefaultSettingsFile is used when DMBRIDGE_SETTINGS_FILE is not set.
	DefaultSettingsFile = "/etc/dmbridge/settings.json"
	// SettingsFileEnv overrides the settings file location.
	SettingsFileEnv = "DMBRIDGE_SETTINGS_FILE"
)

// FileStore persists settings in a JSON document.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewStore returns the file-backed store.
func NewStore() Store {
	path := os.Getenv(SettingsFileEnv)
	if path == "" {
		path = DefaultSettingsFile
	}
	return NewFileStore(path)
}

// NewFileStore creates a store backed by the JSON file at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file.
func (f *FileStore) Path() string {
	return f.path
}

// Read implements Store.
func (f *FileStore) Read(key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	v, err := f.load()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrNotFound
		}
		return "", err
	}

	if !v.IsSet(key) {
		return "", ErrNotFound
	}
	return v.GetString(key), nil
}

// Write implements Store.
func (f *FileStore) Write(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	v, err := f.load()
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	v.Set(key, value)

	if err := os.MkdirAll(filepath.Dir(f.path), 0755); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}
	if err := v.WriteConfigAs(f.path); err != nil {
		return fmt.Errorf("failed to write settings file: %w", err)
	}
	return nil
}

// load returns a viper instance over the settings file. When the file does not
// exist the returned instance is empty and the error wraps os.ErrNotExist.
func (f *FileStore) load() (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigType("json")

	if _, err := os.Stat(f.path); err != nil {
		return v, err
	}

	v.SetConfigFile(f.path)
	if err := v.ReadInConfig(); err != nil {
		return v, fmt.Errorf("failed to read settings file: %w", err)
	}
	return v, nil
}
