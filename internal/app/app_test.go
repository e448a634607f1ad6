package app

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"system-configurator-bridge/internal/config"
	"system-configurator-bridge/internal/logging"
	"system-configurator-bridge/internal/service"
	"system-configurator-bridge/internal/settings"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder captures collaborator calls in order.
type recorder struct {
	calls []string
}

func (r *recorder) add(call string) {
	r.calls = append(r.calls, call)
}

func (r *recorder) count(call string) int {
	n := 0
	for _, c := range r.calls {
		if c == call {
			n++
		}
	}
	return n
}

type fakeLoader struct {
	rec   *recorder
	inner *config.Loader
}

func (f *fakeLoader) Load() (*config.Document, error) {
	f.rec.add("config.load")
	return f.inner.Load()
}

type fakeBridge struct {
	rec       *recorder
	cfg       *config.BridgeConfig
	setupErr  error
	listenErr error
}

func (f *fakeBridge) ApplyConfig(cfg *config.BridgeConfig) {
	f.rec.add("bridge.apply")
	f.cfg = cfg
}

func (f *fakeBridge) Setup() error {
	f.rec.add("bridge.setup")
	return f.setupErr
}

func (f *fakeBridge) Listen(ctx context.Context) error {
	f.rec.add("bridge.listen")
	return f.listenErr
}

type fakeServices struct {
	rec         *recorder
	cfg         *config.ServiceConfig
	installed   []service.Identity
	uninstalled []string
	ran         *service.Instance
	err         error
}

func (f *fakeServices) ApplyConfig(cfg *config.ServiceConfig) {
	f.rec.add("service.apply")
	f.cfg = cfg
}

func (f *fakeServices) Install(id service.Identity) error {
	f.rec.add("service.install")
	f.installed = append(f.installed, id)
	return f.err
}

func (f *fakeServices) Uninstall(name string) error {
	f.rec.add("service.uninstall")
	f.uninstalled = append(f.uninstalled, name)
	return f.err
}

func (f *fakeServices) Run(inst *service.Instance) error {
	f.rec.add("service.run")
	f.ran = inst
	if f.err != nil {
		return f.err
	}
	return inst.Run(context.Background())
}

// failingStore reads through to a memory store but rejects writes.
type failingStore struct {
	*settings.MemoryStore
	writeErr error
	readErr  error
}

func (f *failingStore) Read(key string) (string, error) {
	if f.readErr != nil {
		return "", f.readErr
	}
	return f.MemoryStore.Read(key)
}

func (f *failingStore) Write(key, value string) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	return f.MemoryStore.Write(key, value)
}

// harness simulates separate process runs sharing one settings store.
type harness struct {
	t          *testing.T
	dir        string
	configPath string
	store      settings.Store
	loader     func(rec *recorder) ConfigLoader
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	dir := t.TempDir()
	configPath := filepath.Join(dir, config.DefaultConfigFile)
	require.NoError(t, os.WriteFile(configPath, []byte(`{
		"listen_address": "127.0.0.1:0",
		"servicemanager": {"stop_timeout": 7}
	}`), 0644))

	h := &harness{
		t:          t,
		dir:        dir,
		configPath: configPath,
		store:      settings.NewMemoryStore(),
	}
	h.loader = func(rec *recorder) ConfigLoader {
		return &fakeLoader{rec: rec, inner: config.NewLoaderWithDefault(nil, h.configPath)}
	}
	return h
}

type runResult struct {
	err      error
	output   string
	rec      *recorder
	bridge   *fakeBridge
	services *fakeServices
}

func (h *harness) run(args ...string) runResult {
	return h.runWith(func(*fakeBridge, *fakeServices) {}, args...)
}

func (h *harness) runWith(prepare func(*fakeBridge, *fakeServices), args ...string) runResult {
	h.t.Helper()

	var out bytes.Buffer
	log := logging.New(&out)
	defer log.Close()

	rec := &recorder{}
	bridge := &fakeBridge{rec: rec}
	services := &fakeServices{rec: rec}
	prepare(bridge, services)

	a := New(log, h.store, h.loader(rec), bridge, services)
	err := a.Run(context.Background(), args)

	return runResult{
		err:      err,
		output:   unescape(out.String()),
		rec:      rec,
		bridge:   bridge,
		services: services,
	}
}

// unescape undoes the text formatter's quoting of backslashes in paths.
func unescape(s string) string {
	return strings.ReplaceAll(s, `\\`, `\`)
}

func TestNoArgumentsRunsServiceAfterPipeline(t *testing.T) {
	h := newHarness(t)

	res := h.run()
	require.NoError(t, res.err)

	assert.Equal(t, []string{
		"config.load",
		"bridge.apply",
		"service.apply",
		"service.run",
		"bridge.setup",
		"bridge.listen",
	}, res.rec.calls)
	assert.Equal(t, 1, res.rec.count("bridge.apply"))
	assert.Equal(t, 1, res.rec.count("service.apply"))

	require.NotNil(t, res.services.ran)
	assert.Equal(t, ServiceName, res.services.ran.Name)
	assert.Contains(t, res.output, "Usage:")
	assert.Contains(t, res.output, "Running service...")
	assert.Less(t, strings.Index(res.output, "Usage:"), strings.Index(res.output, "Running service..."))
}

func TestPipelineAppliesViews(t *testing.T) {
	h := newHarness(t)

	res := h.run("-help")
	require.NoError(t, res.err)

	require.NotNil(t, res.bridge.cfg)
	assert.Equal(t, "127.0.0.1:0", res.bridge.cfg.ListenAddress)
	require.NotNil(t, res.services.cfg)
	assert.Equal(t, 7, res.services.cfg.StopTimeout)
	assert.Contains(t, res.output, "Done applying configurations")
}

func TestMissingServiceSectionUsesDefaults(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, os.WriteFile(h.configPath, []byte(`{}`), 0644))

	res := h.run("-help")
	require.NoError(t, res.err)
	assert.Equal(t, config.DefaultServiceConfig(), res.services.cfg)
}

func TestMalformedConfigurationIsFatal(t *testing.T) {
	modes := [][]string{
		nil,
		{"-help"},
		{"-console"},
		{"-install"},
		{"-logging", "state"},
		{"-config", "state"},
	}

	for _, args := range modes {
		t.Run(strings.Join(append([]string{"args"}, args...), " "), func(t *testing.T) {
			h := newHarness(t)
			require.NoError(t, os.WriteFile(h.configPath, []byte(`{"listen_address": `), 0644))

			res := h.run(args...)
			require.Error(t, res.err)

			assert.Equal(t, []string{"config.load"}, res.rec.calls)
			assert.Nil(t, res.bridge.cfg)
			assert.Nil(t, res.services.cfg)
			assert.NotContains(t, res.output, "Usage:")
		})
	}
}

func TestInvalidViewIsFatalBeforeAnyApply(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, os.WriteFile(h.configPath, []byte(`{"servicemanager": {"stop_timeout": -1}}`), 0644))

	res := h.run("-console")
	require.Error(t, res.err)
	assert.Equal(t, []string{"config.load"}, res.rec.calls)
}

func TestMissingConfigurationIsFatal(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, os.Remove(h.configPath))

	res := h.run("-help")
	require.Error(t, res.err)
	assert.ErrorIs(t, res.err, os.ErrNotExist)
}

func TestFlagsAreCaseInsensitive(t *testing.T) {
	for _, flag := range []string{"-console", "-Console", "/CONSOLE", "/cOnSoLe"} {
		t.Run(flag, func(t *testing.T) {
			res := newHarness(t).run(flag)
			require.NoError(t, res.err)
			assert.Equal(t, 1, res.rec.count("bridge.setup"))
			assert.Equal(t, 1, res.rec.count("bridge.listen"))
			assert.Equal(t, 0, res.rec.count("service.run"))
		})
	}
}

func TestConsoleMode(t *testing.T) {
	res := newHarness(t).run("-console")
	require.NoError(t, res.err)

	assert.Equal(t, []string{
		"config.load",
		"bridge.apply",
		"service.apply",
		"bridge.setup",
		"bridge.listen",
	}, res.rec.calls)
	assert.Contains(t, res.output, "Directly starting bridge server")
}

func TestConsoleSetupFailureSkipsListen(t *testing.T) {
	h := newHarness(t)

	res := h.runWith(func(b *fakeBridge, _ *fakeServices) {
		b.setupErr = errors.New("setup failed")
	}, "-console")

	require.NoError(t, res.err)
	assert.Equal(t, 0, res.rec.count("bridge.listen"))
	assert.Contains(t, res.output, "setup failed")
	assert.Contains(t, res.output, "level=error")
}

func TestConsoleListenFailureIsTraced(t *testing.T) {
	h := newHarness(t)

	res := h.runWith(func(b *fakeBridge, _ *fakeServices) {
		b.listenErr = errors.New("address in use")
	}, "/console")

	require.NoError(t, res.err)
	assert.Contains(t, res.output, "address in use")
}

func TestUnknownFlagPrintsSameUsageAsHelp(t *testing.T) {
	h := newHarness(t)

	help := h.run("-help")
	unknown := h.run("-frobnicate")

	require.NoError(t, help.err)
	require.NoError(t, unknown.err)
	assert.Equal(t, help.output, unknown.output)
	assert.Contains(t, help.output, "-logging enable {filepath}")
	assert.Equal(t, 0, unknown.rec.count("service.run"))
}

func TestIncompleteSubcommandsFallBackToUsage(t *testing.T) {
	cases := [][]string{
		{"-logging"},
		{"-logging", "enable"},
		{"-logging", "bogus"},
		{"-config"},
		{"-config", "set"},
		{"-config", "bogus"},
	}

	for _, args := range cases {
		t.Run(strings.Join(args, " "), func(t *testing.T) {
			h := newHarness(t)
			res := h.run(args...)

			require.NoError(t, res.err)
			assert.Contains(t, res.output, "Usage:")

			_, err := settings.DebugLogFile(h.store)
			assert.ErrorIs(t, err, settings.ErrNotFound)
			_, err = settings.ConfigFile(h.store)
			assert.ErrorIs(t, err, settings.ErrNotFound)
		})
	}
}

func TestInstallUsesFixedIdentity(t *testing.T) {
	res := newHarness(t).run("/install")
	require.NoError(t, res.err)

	require.Len(t, res.services.installed, 1)
	id := res.services.installed[0]
	assert.Equal(t, "SystemConfiguratorBridge", id.Name)
	assert.Equal(t, "System Configurator Bridge", id.DisplayName)
	assert.Equal(t, service.StartDemand, id.StartType)
	assert.Empty(t, id.Dependencies)
	assert.Equal(t, service.AccountLocalSystem, id.Account)
	assert.Empty(t, id.Password)
	assert.NotContains(t, res.output, "Usage:")
}

func TestInstallFailureIsTracedButSucceeds(t *testing.T) {
	h := newHarness(t)

	res := h.runWith(func(_ *fakeBridge, s *fakeServices) {
		s.err = errors.New("access denied")
	}, "-install")

	require.NoError(t, res.err)
	assert.Contains(t, res.output, "access denied")
	assert.Contains(t, res.output, "error_category=service")
}

func TestUninstallByName(t *testing.T) {
	res := newHarness(t).run("-uninstall")
	require.NoError(t, res.err)
	assert.Equal(t, []string{ServiceName}, res.services.uninstalled)
}

func TestServiceRunFailureIsTraced(t *testing.T) {
	h := newHarness(t)

	res := h.runWith(func(_ *fakeBridge, s *fakeServices) {
		s.err = errors.New("not started by the service control manager")
	})

	require.NoError(t, res.err)
	assert.Contains(t, res.output, "not started by the service control manager")
	assert.Equal(t, 0, res.rec.count("bridge.setup"))
}

func TestLoggingRoundTrip(t *testing.T) {
	h := newHarness(t)
	logPath := filepath.Join(h.dir, "logs", "bridge.log")

	res := h.run("-logging", "enable", logPath)
	require.NoError(t, res.err)
	assert.Contains(t, res.output, "Enabled file logging to: "+logPath)

	res = h.run("-logging", "state")
	require.NoError(t, res.err)
	assert.Contains(t, res.output, "Logging to: "+logPath)

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, unescape(string(data)), "Logging to: "+logPath)

	res = h.run("-logging", "disable")
	require.NoError(t, res.err)
	assert.Contains(t, res.output, "Disabled file logging")

	res = h.run("-logging", "state")
	require.NoError(t, res.err)
	assert.Contains(t, res.output, "File logging is disabled")
}

func TestLoggingStateUsesStartupValue(t *testing.T) {
	h := newHarness(t)

	res := h.run("-logging", "state")
	require.NoError(t, res.err)
	assert.Contains(t, res.output, "File logging is disabled")

	logPath := filepath.Join(h.dir, "exact.log")
	require.NoError(t, settings.SetDebugLogFile(h.store, logPath))

	res = h.run("-LOGGING", "STATE")
	require.NoError(t, res.err)
	assert.Contains(t, res.output, "Logging to: "+logPath)
}

func TestUnopenableLogFileFallsBackToConsole(t *testing.T) {
	h := newHarness(t)
	blocker := filepath.Join(h.dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))
	require.NoError(t, settings.SetDebugLogFile(h.store, filepath.Join(blocker, "bridge.log")))

	res := h.run("-help")
	require.NoError(t, res.err)
	assert.Contains(t, res.output, "Usage:")
	assert.Contains(t, res.output, "level=warning")
}

func TestUnreadableStoreAtBootstrapIsNotFatal(t *testing.T) {
	h := newHarness(t)
	h.store = &failingStore{MemoryStore: settings.NewMemoryStore(), readErr: errors.New("registry unavailable")}

	res := h.run("-logging", "state")
	require.NoError(t, res.err)
	assert.Contains(t, res.output, "File logging is disabled")
}

func TestConfigRoundTrip(t *testing.T) {
	h := newHarness(t)
	custom := filepath.Join(h.dir, "custom.json")

	res := h.run("-config", "set", custom)
	require.NoError(t, res.err)
	assert.Contains(t, res.output, "Set config file to: "+custom)

	res = h.run("-config", "state")
	require.NoError(t, res.err)
	assert.Contains(t, res.output, "Using config file: "+custom)

	res = h.run("-config", "default")
	require.NoError(t, res.err)
	assert.Contains(t, res.output, "Reset config file path to default")

	res = h.run("-config", "state")
	require.NoError(t, res.err)
	assert.Contains(t, res.output, "Using default config file path: ./"+config.DefaultConfigFile)
	assert.NotContains(t, res.output, custom)
}

func TestConfigStateWithoutOverride(t *testing.T) {
	res := newHarness(t).run("/config", "state")
	require.NoError(t, res.err)
	assert.Contains(t, res.output, "Using default config file path: ./DMBridge.json")
}

func TestSettingsWriteFailureIsTracedDistinctly(t *testing.T) {
	h := newHarness(t)
	h.store = &failingStore{MemoryStore: settings.NewMemoryStore(), writeErr: errors.New("access denied")}

	res := h.run("-logging", "enable", filepath.Join(h.dir, "bridge.log"))
	require.NoError(t, res.err)
	assert.Contains(t, res.output, "access denied")
	assert.Contains(t, res.output, "error_category=settings")
	assert.NotContains(t, res.output, "Enabled file logging")

	res = h.run("-config", "default")
	require.NoError(t, res.err)
	assert.NotContains(t, res.output, "Reset config file path to default")
	assert.Contains(t, res.output, "level=error")
}

func TestSettingsModesStillLoadConfiguration(t *testing.T) {
	res := newHarness(t).run("-logging", "disable")
	require.NoError(t, res.err)

	assert.Equal(t, []string{"config.load", "bridge.apply", "service.apply"}, res.rec.calls)
}

func TestConfigOverrideToMissingFileBlocksEveryMode(t *testing.T) {
	h := newHarness(t)
	h.loader = func(rec *recorder) ConfigLoader {
		return &fakeLoader{rec: rec, inner: config.NewLoaderWithDefault(h.store, h.configPath)}
	}

	res := h.run("-config", "set", filepath.Join(h.dir, "missing.json"))
	require.NoError(t, res.err)

	// The override now points at a file that does not exist, so even the
	// command that would repair it cannot run.
	res = h.run("-config", "default")
	require.Error(t, res.err)

	path, err := settings.ConfigFile(h.store)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(h.dir, "missing.json"), path)
}

func TestIdentity(t *testing.T) {
	id := Identity()
	assert.NoError(t, id.Validate())
	assert.Equal(t, ServiceName, id.Name)
}
