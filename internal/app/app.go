// Package app is the bridge's control path: it resolves logging and
// configuration state, applies configuration to the bridge server and the
// service manager, and then runs exactly one operating mode.
package app

import (
	"context"
	"errors"
	"fmt"

	"system-configurator-bridge/internal/cli"
	"system-configurator-bridge/internal/config"
	"system-configurator-bridge/internal/logging"
	"system-configurator-bridge/internal/service"
	"system-configurator-bridge/internal/settings"
)

// Service identity used by -install, -uninstall and service mode.
const (
	ServiceName        = "SystemConfiguratorBridge"
	ServiceDisplayName = "System Configurator Bridge"
)

// Identity is the fixed registration used by -install.
func Identity() service.Identity {
	return service.Identity{
		Name:         ServiceName,
		DisplayName:  ServiceDisplayName,
		StartType:    service.StartDemand,
		Dependencies: nil,
		Account:      service.AccountLocalSystem,
		Password:     "",
	}
}

// BridgeServer is the long-running device-management server.
type BridgeServer interface {
	ApplyConfig(cfg *config.BridgeConfig)
	Setup() error
	Listen(ctx context.Context) error
}

// ServiceManager wraps the OS service facility.
type ServiceManager interface {
	ApplyConfig(cfg *config.ServiceConfig)
	Install(id service.Identity) error
	Uninstall(name string) error
	Run(inst *service.Instance) error
}

// ConfigLoader produces the configuration document for this run.
type ConfigLoader interface {
	Load() (*config.Document, error)
}

// App holds the collaborators for one process run.
type App struct {
	log      *logging.Context
	store    settings.Store
	loader   ConfigLoader
	bridge   BridgeServer
	services ServiceManager

	// logFile is the debug log path resolved at startup.
	logFile string
}

// New creates the dispatcher.
func New(log *logging.Context, store settings.Store, loader ConfigLoader, bridge BridgeServer, services ServiceManager) *App {
	return &App{
		log:      log,
		store:    store,
		loader:   loader,
		bridge:   bridge,
		services: services,
	}
}

// Run executes one invocation. args excludes the program name.
//
// Configuration is loaded and applied before the mode is selected, for every
// mode, including the ones that only touch settings or print help. A load
// failure is the only error returned; every mode otherwise completes with nil.
func (a *App) Run(ctx context.Context, args []string) error {
	a.bootstrapLogging()

	a.log.Trace("Entering main")
	if err := a.loadConfiguration(); err != nil {
		return err
	}

	inv := cli.Parse(args)
	a.log.Logger().WithField("mode", inv.Mode.String()).Debug("Dispatching")
	a.dispatch(ctx, inv)
	return nil
}

// bootstrapLogging attaches the persisted debug log file, if any. A missing
// or unreadable setting leaves logging on the console.
func (a *App) bootstrapLogging() {
	path, err := settings.DebugLogFile(a.store)
	if err != nil {
		if !errors.Is(err, settings.ErrNotFound) {
			a.log.LogError(err, logging.ErrorContext{
				Category:  logging.ErrorCategorySettings,
				Severity:  logging.ErrorSeverityLow,
				Operation: "read_debug_log_file",
			})
		}
		return
	}
	if path == "" {
		return
	}

	a.logFile = path
	if err := a.log.SetLogFile(path); err != nil {
		a.log.LogError(err, logging.ErrorContext{
			Category:  logging.ErrorCategorySettings,
			Severity:  logging.ErrorSeverityLow,
			Operation: "open_debug_log_file",
			Metadata:  map[string]interface{}{"path": path},
		})
	}
}

// loadConfiguration loads the document, builds both views and applies them.
// Nothing is applied unless both views are valid.
func (a *App) loadConfiguration() error {
	a.log.Trace("Loading configuration")

	doc, err := a.loader.Load()
	if err != nil {
		return a.configFailure("load", err)
	}

	views, err := config.NewViews(doc)
	if err != nil {
		return a.configFailure("build_views", err)
	}

	a.log.SetLevel(views.Bridge.LogLevel)
	a.bridge.ApplyConfig(views.Bridge)
	a.services.ApplyConfig(views.Service)

	a.log.Logger().WithField("config_file", doc.Path).Info("Done applying configurations")
	return nil
}

func (a *App) configFailure(operation string, err error) error {
	return a.log.LogError(fmt.Errorf("configuration: %w", err), logging.ErrorContext{
		Category:  logging.ErrorCategoryConfig,
		Severity:  logging.ErrorSeverityCritical,
		Operation: operation,
	})
}
