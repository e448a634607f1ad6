package app

import (
	"context"
	"errors"

	"system-configurator-bridge/internal/cli"
	"system-configurator-bridge/internal/config"
	"system-configurator-bridge/internal/logging"
	"system-configurator-bridge/internal/service"
	"system-configurator-bridge/internal/settings"
)

func (a *App) dispatch(ctx context.Context, inv cli.Invocation) {
	switch inv.Mode {
	case cli.ModeRunService:
		a.runService()
	case cli.ModeInstall:
		a.install()
	case cli.ModeUninstall:
		a.uninstall()
	case cli.ModeConsole:
		a.runConsole(ctx)
	case cli.ModeLoggingEnable:
		a.setDebugLogFile(inv.Path)
	case cli.ModeLoggingDisable:
		a.setDebugLogFile("")
	case cli.ModeLoggingState:
		a.loggingState()
	case cli.ModeConfigSet:
		a.setConfigFile(inv.Path)
	case cli.ModeConfigDefault:
		a.setConfigFile("")
	case cli.ModeConfigState:
		a.configState()
	default:
		a.printUsage()
	}
}

func (a *App) runService() {
	a.printUsage()

	a.log.Trace("Running service...")
	inst := service.NewInstance(ServiceName, a.serveBridge)
	if err := a.services.Run(inst); err != nil {
		a.failure(logging.ErrorCategoryService, "run", err)
	}
}

func (a *App) install() {
	if err := a.services.Install(Identity()); err != nil {
		a.failure(logging.ErrorCategoryService, "install", err)
	}
}

func (a *App) uninstall() {
	if err := a.services.Uninstall(ServiceName); err != nil {
		a.failure(logging.ErrorCategoryService, "uninstall", err)
	}
}

func (a *App) runConsole(ctx context.Context) {
	a.log.Trace("Directly starting bridge server")
	if err := a.serveBridge(ctx); err != nil {
		a.failure(logging.ErrorCategoryBridge, "console", err)
	}
}

// serveBridge is the work shared by console and service mode.
func (a *App) serveBridge(ctx context.Context) error {
	if err := a.bridge.Setup(); err != nil {
		return err
	}
	return a.bridge.Listen(ctx)
}

func (a *App) setDebugLogFile(path string) {
	if err := settings.SetDebugLogFile(a.store, path); err != nil {
		a.failure(logging.ErrorCategorySettings, "write_debug_log_file", err)
		return
	}

	if path == "" {
		a.log.Trace("Disabled file logging")
		return
	}
	a.log.Tracef("Enabled file logging to: %s", path)
}

// loggingState reports the path resolved at startup, not a fresh read.
func (a *App) loggingState() {
	if a.logFile == "" {
		a.log.Trace("File logging is disabled")
		return
	}
	a.log.Tracef("Logging to: %s", a.logFile)
}

func (a *App) setConfigFile(path string) {
	if err := settings.SetConfigFile(a.store, path); err != nil {
		a.failure(logging.ErrorCategorySettings, "write_config_file", err)
		return
	}

	if path == "" {
		a.log.Trace("Reset config file path to default")
		return
	}
	a.log.Tracef("Set config file to: %s", path)
}

func (a *App) configState() {
	path, err := settings.ConfigFile(a.store)
	if err != nil && !errors.Is(err, settings.ErrNotFound) {
		a.failure(logging.ErrorCategorySettings, "read_config_file", err)
	}
	if err == nil && path != "" {
		a.log.Tracef("Using config file: %s", path)
		return
	}
	a.log.Tracef("Using default config file path: ./%s", config.DefaultConfigFile)
}

func (a *App) failure(category logging.ErrorCategory, operation string, err error) {
	a.log.LogError(err, logging.ErrorContext{
		Category:  category,
		Severity:  logging.ErrorSeverityHigh,
		Operation: operation,
	})
}
