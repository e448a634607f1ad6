//go:build windows

package settings

import (
	"errors"
	"fmt"

	"golang.org/x/sys/windows/registry"
)

// RegistryPath is the settings root under HKEY_LOCAL_MACHINE.
const RegistryPath = `SOFTWARE\Microsoft\IoTDMBridge`

// RegistryStore persists settings as REG_SZ values under RegistryPath.
type RegistryStore struct {
	root registry.Key
	path string
}

// NewStore returns the registry-backed store.
func NewStore() Store {
	return NewRegistryStore(registry.LOCAL_MACHINE, RegistryPath)
}

// NewRegistryStore creates a store rooted at root\path.
func NewRegistryStore(root registry.Key, path string) *RegistryStore {
	return &RegistryStore{root: root, path: path}
}

// Read implements Store.
func (r *RegistryStore) Read(key string) (string, error) {
	k, err := registry.OpenKey(r.root, r.path, registry.QUERY_VALUE)
	if err != nil {
		if errors.Is(err, registry.ErrNotExist) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to open settings registry key: %w", err)
	}
	defer k.Close()

	value, _, err := k.GetStringValue(key)
	if err != nil {
		if errors.Is(err, registry.ErrNotExist) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to read %s: %w", key, err)
	}
	return value, nil
}

// Write implements Store.
func (r *RegistryStore) Write(key, value string) error {
	k, _, err := registry.CreateKey(r.root, r.path, registry.SET_VALUE)
	if err != nil {
		return fmt.Errorf("failed to create settings registry key: %w", err)
	}
	defer k.Close()

	if err := k.SetStringValue(key, value); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}
