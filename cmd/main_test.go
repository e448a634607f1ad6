package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"system-configurator-bridge/internal/app"
	"system-configurator-bridge/internal/bridge"
	"system-configurator-bridge/internal/config"
	"system-configurator-bridge/internal/logging"
	"system-configurator-bridge/internal/service"
	"system-configurator-bridge/internal/settings"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp(t *testing.T, configBody string) (*app.App, *bytes.Buffer) {
	t.Helper()

	path := filepath.Join(t.TempDir(), config.DefaultConfigFile)
	require.NoError(t, os.WriteFile(path, []byte(configBody), 0644))

	var out bytes.Buffer
	log := logging.New(&out)
	store := settings.NewMemoryStore()

	a := app.New(
		log,
		store,
		config.NewLoaderWithDefault(store, path),
		bridge.NewServer(log, "test"),
		service.NewManager(log),
	)
	return a, &out
}

func TestRootCommandPassesFlagsThrough(t *testing.T) {
	for _, args := range [][]string{{"-help"}, {"/help"}, {"--help"}, {"-logging", "state"}} {
		a, out := newTestApp(t, `{}`)

		cmd := newRootCmd(a)
		cmd.SetArgs(args)
		require.NoError(t, cmd.ExecuteContext(context.Background()), "args %v", args)
		assert.Contains(t, out.String(), "Done applying configurations", "args %v", args)
	}
}

func TestRootCommandReturnsConfigurationFailure(t *testing.T) {
	a, _ := newTestApp(t, `{not json`)

	cmd := newRootCmd(a)
	cmd.SetArgs([]string{"-help"})
	assert.Error(t, cmd.ExecuteContext(context.Background()))
}

func TestConsoleStopsOnCancel(t *testing.T) {
	a, out := newTestApp(t, `{"listen_address": "127.0.0.1:0"}`)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cmd := newRootCmd(a)
	cmd.SetArgs([]string{"-console"})
	require.NoError(t, cmd.ExecuteContext(ctx))
	assert.Contains(t, out.String(), "Bridge server shutdown complete")
}
