//go:build windows

package service

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"system-configurator-bridge/internal/config"
	"system-configurator-bridge/internal/logging"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/windows"
	"golang.org/x/sys/windows/svc"
	"golang.org/x/sys/windows/svc/eventlog"
	"golang.org/x/sys/windows/svc/mgr"
)

// Manager handles Windows service lifecycle operations through the SCM.
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

// Install registers the current executable as a service.
func (m *Manager) Install(id Identity) error {
	if err := id.Validate(); err != nil {
		return err
	}

	execPath, err := executablePath()
	if err != nil {
		return err
	}

	scm, err := mgr.Connect()
	if err != nil {
		return fmt.Errorf("failed to connect to service manager: %w", err)
	}
	defer scm.Disconnect()

	if existing, err := scm.OpenService(id.Name); err == nil {
		existing.Close()
		return fmt.Errorf("service %s is already installed", id.Name)
	}

	cfg := m.currentConfig()
	s, err := scm.CreateService(id.Name, execPath, mgrConfig(id, cfg))
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}
	defer s.Close()

	if cfg.EventLog {
		if err := eventlog.InstallAsEventCreate(id.Name, eventlog.Error|eventlog.Warning|eventlog.Info); err != nil {
			m.logger.WithError(err).Warn("Failed to install event log source")
		}
	}

	m.logger.WithFields(logrus.Fields{
		"service":    id.Name,
		"executable": execPath,
		"start_type": id.StartType.String(),
	}).Info("Service installed")
	return nil
}

// Uninstall stops the service if it is running and removes it.
func (m *Manager) Uninstall(name string) error {
	scm, err := mgr.Connect()
	if err != nil {
		return fmt.Errorf("failed to connect to service manager: %w", err)
	}
	defer scm.Disconnect()

	s, err := scm.OpenService(name)
	if err != nil {
		return fmt.Errorf("failed to open service %s: %w", name, err)
	}
	defer s.Close()

	if err := stopService(s, stopGrace(m.currentConfig())); err != nil {
		m.logger.WithError(err).Warn("Failed to stop service before uninstall")
	}

	if err := s.Delete(); err != nil {
		return fmt.Errorf("failed to delete service: %w", err)
	}

	if err := eventlog.Remove(name); err != nil {
		m.logger.WithError(err).Debug("No event log source to remove")
	}

	m.logger.WithField("service", name).Info("Service uninstalled")
	return nil
}

// Run hands the process to the SCM dispatcher and blocks until the service stops.
func (m *Manager) Run(inst *Instance) error {
	cfg := m.currentConfig()

	if cfg.WorkingDir != "" {
		if err := os.Chdir(cfg.WorkingDir); err != nil {
			return fmt.Errorf("failed to change working directory: %w", err)
		}
	}

	h := &handler{
		instance: inst,
		grace:    stopGrace(cfg),
		logger:   m.logger,
	}

	if cfg.EventLog {
		elog, err := eventlog.Open(inst.Name)
		if err != nil {
			m.logger.WithError(err).Warn("Failed to open event log")
		} else {
			defer elog.Close()
			h.eventLog = elog
		}
	}

	if err := svc.Run(inst.Name, h); err != nil {
		return fmt.Errorf("service dispatcher failed: %w", err)
	}
	return nil
}

// IsWindowsService reports whether the process was started by the SCM.
func IsWindowsService() (bool, error) {
	return svc.IsWindowsService()
}

func mgrConfig(id Identity, cfg *config.ServiceConfig) mgr.Config {
	c := mgr.Config{
		ServiceType:      windows.SERVICE_WIN32_OWN_PROCESS,
		StartType:        mgrStartType(id.StartType),
		ErrorControl:     mgr.ErrorNormal,
		DisplayName:      id.DisplayName,
		Dependencies:     id.Dependencies,
		ServiceStartName: id.accountName(),
		Password:         id.Password,
	}
	if cfg != nil {
		c.Description = cfg.Description
	}
	return c
}

func mgrStartType(t StartType) uint32 {
	switch t {
	case StartAutomatic:
		return mgr.StartAutomatic
	case StartDisabled:
		return mgr.StartDisabled
	default:
		return mgr.StartManual
	}
}

func stopService(s *mgr.Service, grace time.Duration) error {
	status, err := s.Query()
	if err != nil {
		return fmt.Errorf("failed to query service status: %w", err)
	}
	if status.State == svc.Stopped {
		return nil
	}

	if _, err := s.Control(svc.Stop); err != nil {
		return fmt.Errorf("failed to stop service: %w", err)
	}

	deadline := time.Now().Add(grace)
	for time.Now().Before(deadline) {
		status, err := s.Query()
		if err != nil {
			return fmt.Errorf("failed to query service status: %w", err)
		}
		if status.State == svc.Stopped {
			return nil
		}
		time.Sleep(500 * time.Millisecond)
	}

	return ErrStopTimeout
}

func executablePath() (string, error) {
	execPath, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("failed to get executable path: %w", err)
	}

	execPath, err = filepath.EvalSymlinks(execPath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve executable path: %w", err)
	}

	return execPath, nil
}
