package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"system-configurator-bridge/internal/settings"

	"github.com/spf13/viper"
)

const (
	// DefaultConfigFile is resolved against the executable's directory when no
	// override is persisted.
	DefaultConfigFile = "DMBridge.json"

	// ServiceManagerSection is the document key holding the service settings.
	ServiceManagerSection = "servicemanager"

	envPrefix = "DMBRIDGE"
)

// Document is the parsed configuration file for one run.
type Document struct {
	Path string
	root *viper.Viper
}

// Section returns the named sub-tree, or an empty tree when the key is absent.
func (d *Document) Section(key string) *viper.Viper {
	if sub := d.root.Sub(key); sub != nil {
		return sub
	}
	return viper.New()
}

// Root returns the whole document.
func (d *Document) Root() *viper.Viper {
	return d.root
}

// Loader resolves which file to read and parses it.
type Loader struct {
	store       settings.Store
	defaultPath string
}

// NewLoader creates a loader that consults store for a path override and
// otherwise reads DefaultConfigFile next to the executable.
func NewLoader(store settings.Store) *Loader {
	return &Loader{
		store:       store,
		defaultPath: defaultPath(),
	}
}

// NewLoaderWithDefault is NewLoader with an explicit default path.
func NewLoaderWithDefault(store settings.Store, defaultPath string) *Loader {
	return &Loader{
		store:       store,
		defaultPath: defaultPath,
	}
}

// Path returns the file Load would read.
func (l *Loader) Path() string {
	if l.store != nil {
		if override, err := settings.ConfigFile(l.store); err == nil && override != "" {
			return override
		}
	}
	return l.defaultPath
}

// Load reads and parses the configuration document. A missing or malformed
// file is an error.
func (l *Loader) Load() (*Document, error) {
	path := l.Path()

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config file %s does not exist: %w", path, err)
		}
		return nil, fmt.Errorf("failed to stat config file %s: %w", path, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return &Document{Path: path, root: v}, nil
}

// Views holds both typed projections of a document.
type Views struct {
	Bridge  *BridgeConfig
	Service *ServiceConfig
}

// NewViews builds and validates both views. Neither is returned unless both
// are valid.
func NewViews(doc *Document) (*Views, error) {
	bridgeCfg, err := NewBridgeConfig(doc.Root())
	if err != nil {
		return nil, err
	}

	serviceCfg, err := NewServiceConfig(doc.Section(ServiceManagerSection))
	if err != nil {
		return nil, err
	}

	return &Views{Bridge: bridgeCfg, Service: serviceCfg}, nil
}

func defaultPath() string {
	exe, err := os.Executable()
	if err != nil {
		return DefaultConfigFile
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Join(filepath.Dir(exe), DefaultConfigFile)
}
