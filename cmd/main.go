package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"system-configurator-bridge/internal/app"
	"system-configurator-bridge/internal/bridge"
	"system-configurator-bridge/internal/config"
	"system-configurator-bridge/internal/logging"
	"system-configurator-bridge/internal/service"
	"system-configurator-bridge/internal/settings"

	"github.com/spf13/cobra"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func newRootCmd(a *app.App) *cobra.Command {
	return &cobra.Command{
		Use:   "dmbridge [-help | -install | -uninstall | -console | -logging ... | -config ...]",
		Short: "System Configurator Bridge - device management bridge service",
		Long: `Bridges device management requests to System Configurator.

Run without arguments to start as an installed service, or with -console to run
in the foreground under the current account. Flags may start with '-' or '/'.`,
		Version: version,

		// The bridge's flags use a '-name' or '/name' form with free-standing
		// verbs, so argv goes to the dispatcher untouched.
		DisableFlagParsing: true,
		SilenceUsage:       true,
		SilenceErrors:      true,
		Args:               cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.Run(cmd.Context(), args)
		},
	}
}

func main() {
	// Services are launched by the SCM, not Explorer; never show the
	// mousetrap prompt.
	cobra.MousetrapHelpText = ""

	log := logging.New(os.Stdout)
	store := settings.NewStore()

	a := app.New(
		log,
		store,
		config.NewLoader(store),
		bridge.NewServer(log, version),
		service.NewManager(log),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := newRootCmd(a).ExecuteContext(ctx)
	stop()
	log.Close()

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
