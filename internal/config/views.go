package config

import (
	"fmt"
	"net"
	"time"

	"github.com/spf13/viper"
)

// BridgeConfig is the bridge server's view of the document root.
type BridgeConfig struct {
	ListenAddress   string `mapstructure:"listen_address"`
	ReadTimeout     int    `mapstructure:"read_timeout"`     // seconds
	WriteTimeout    int    `mapstructure:"write_timeout"`    // seconds
	IdleTimeout     int    `mapstructure:"idle_timeout"`     // seconds
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"` // seconds
	LogLevel        string `mapstructure:"log_level"`

	// AuthSecret signs bearer tokens for the status endpoint. Empty disables auth.
	AuthSecret string `mapstructure:"auth_secret"`
}

// DefaultBridgeConfig returns the bridge defaults
func DefaultBridgeConfig() *BridgeConfig {
	return &BridgeConfig{
		ListenAddress:   "127.0.0.1:8089",
		ReadTimeout:     30,
		WriteTimeout:    30,
		IdleTimeout:     120,
		ShutdownTimeout: 10,
		LogLevel:        "info",
	}
}

// NewBridgeConfig unmarshals the bridge view from v with defaults applied.
func NewBridgeConfig(v *viper.Viper) (*BridgeConfig, error) {
	cfg := DefaultBridgeConfig()

	v.SetDefault("listen_address", cfg.ListenAddress)
	v.SetDefault("read_timeout", cfg.ReadTimeout)
	v.SetDefault("write_timeout", cfg.WriteTimeout)
	v.SetDefault("idle_timeout", cfg.IdleTimeout)
	v.SetDefault("shutdown_timeout", cfg.ShutdownTimeout)
	v.SetDefault("log_level", cfg.LogLevel)
	v.SetDefault("auth_secret", cfg.AuthSecret)

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal bridge config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid bridge config: %w", err)
	}

	return cfg, nil
}

// Validate validates the bridge configuration
func (c *BridgeConfig) Validate() error {
	if c.ListenAddress == "" {
		return fmt.Errorf("listen_address is required")
	}
	if _, _, err := net.SplitHostPort(c.ListenAddress); err != nil {
		return fmt.Errorf("listen_address %q is not host:port: %w", c.ListenAddress, err)
	}

	if c.ReadTimeout <= 0 || c.WriteTimeout <= 0 || c.IdleTimeout <= 0 {
		return fmt.Errorf("read_timeout, write_timeout and idle_timeout must be positive")
	}

	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown_timeout must be positive")
	}

	// Quieter levels would hide trace markers and usage text.
	if c.LogLevel != "debug" && c.LogLevel != "info" {
		return fmt.Errorf("log_level must be one of: debug, info")
	}

	return nil
}

// AuthEnabled reports whether the status endpoint requires a bearer token.
func (c *BridgeConfig) AuthEnabled() bool {
	return c.AuthSecret != ""
}

// ShutdownGrace returns the graceful shutdown bound.
func (c *BridgeConfig) ShutdownGrace() time.Duration {
	return time.Duration(c.ShutdownTimeout) * time.Second
}

// ServiceConfig is the service manager's view of the servicemanager section.
type ServiceConfig struct {
	Description string `mapstructure:"description"`
	StopTimeout int    `mapstructure:"stop_timeout"` // seconds
	EventLog    bool   `mapstructure:"event_log"`
	WorkingDir  string `mapstructure:"working_dir"`
}

// DefaultServiceConfig returns the service defaults
func DefaultServiceConfig() *ServiceConfig {
	return &ServiceConfig{
		Description: "Bridges device management requests to System Configurator",
		StopTimeout: 30,
		EventLog:    true,
	}
}

// NewServiceConfig unmarshals the service view from section with defaults
// applied. An empty section yields the defaults.
func NewServiceConfig(section *viper.Viper) (*ServiceConfig, error) {
	cfg := DefaultServiceConfig()

	section.SetDefault("description", cfg.Description)
	section.SetDefault("stop_timeout", cfg.StopTimeout)
	section.SetDefault("event_log", cfg.EventLog)
	section.SetDefault("working_dir", cfg.WorkingDir)

	if err := section.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal service config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid service config: %w", err)
	}

	return cfg, nil
}

// Validate validates the service configuration
func (c *ServiceConfig) Validate() error {
	if c.StopTimeout <= 0 {
		return fmt.Errorf("stop_timeout must be positive")
	}
	return nil
}

// StopGrace returns how long a stop request waits for the bridge to exit.
func (c *ServiceConfig) StopGrace() time.Duration {
	return time.Duration(c.StopTimeout) * time.Second
}
