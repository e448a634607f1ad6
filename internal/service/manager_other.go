//go:build !windows

package service

import (
	"fmt"
	"sync"

	"system-configurator-bridge/internal/config"
	"system-configurator-bridge/internal/logging"

	kservice "github.com/kardianos/service"
	"github.com/sirupsen/logrus"
)

// Manager handles service lifecycle operations through the host's init system
// (systemd, launchd, upstart, sysv).
type Manager struct {
	mu     sync.RWMutex
	logger *logrus.Entry
	config *config.ServiceConfig
}

// NewManager creates a new service manager instance
func NewManager(log *logging.Context) *Manager {
	return &Manager{
		logger: log.Component("service"),
		config: config.DefaultServiceConfig(),
	}
}

// ApplyConfig sets the service settings used by Install and Run.
func (m *Manager) ApplyConfig(cfg *config.ServiceConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.config = cfg
}

func (m *Manager) currentConfig() *config.ServiceConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// Install registers the current executable with the init system.
func (m *Manager) Install(id Identity) error {
	if err := id.Validate(); err != nil {
		return err
	}

	s, err := kservice.New(&program{}, serviceConfig(id, m.currentConfig()))
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	if err := s.Install(); err != nil {
		return fmt.Errorf("failed to install service: %w", err)
	}

	m.logger.WithFields(logrus.Fields{
		"service":    id.Name,
		"platform":   s.Platform(),
		"start_type": id.StartType.String(),
	}).Info("Service installed")
	return nil
}

// Uninstall stops the service if it is running and removes it.
func (m *Manager) Uninstall(name string) error {
	s, err := kservice.New(&program{}, &kservice.Config{Name: name})
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	if status, err := s.Status(); err == nil && status == kservice.StatusRunning {
		if err := s.Stop(); err != nil {
			m.logger.WithError(err).Warn("Failed to stop service before uninstall")
		}
	}

	if err := s.Uninstall(); err != nil {
		return fmt.Errorf("failed to uninstall service: %w", err)
	}

	m.logger.WithField("service", name).Info("Service uninstalled")
	return nil
}

// Run blocks until the init system (or an interrupt) stops the service.
func (m *Manager) Run(inst *Instance) error {
	cfg := m.currentConfig()
	prg := &program{
		instance: inst,
		grace:    stopGrace(cfg),
		logger:   m.logger,
	}

	s, err := kservice.New(prg, &kservice.Config{
		Name:             inst.Name,
		WorkingDirectory: cfg.WorkingDir,
	})
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	if err := s.Run(); err != nil {
		return fmt.Errorf("service run failed: %w", err)
	}
	return nil
}

func serviceConfig(id Identity, cfg *config.ServiceConfig) *kservice.Config {
	c := &kservice.Config{
		Name:         id.Name,
		DisplayName:  id.DisplayName,
		Dependencies: id.Dependencies,
		UserName:     id.accountName(),
		Option: kservice.KeyValue{
			"StartType": id.StartType.String(),
			"RunAtLoad": id.StartType == StartAutomatic,
			"Password":  id.Password,
		},
	}
	if cfg != nil {
		c.Description = cfg.Description
		c.WorkingDirectory = cfg.WorkingDir
	}
	return c
}
