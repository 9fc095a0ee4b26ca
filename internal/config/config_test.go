package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"usbspeed/internal/config"
	"usbspeed/internal/errors"
)

func env(vars map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		val, ok := vars[key]
		return val, ok
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.NewLoader("").WithLookupEnv(env(nil)).Load()
	require.NoError(t, err)

	assert.Equal(t, config.Development, cfg.Environment)
	assert.Equal(t, time.Second, cfg.Monitor.Debounce)
	assert.Equal(t, 30*time.Second, cfg.Monitor.QueryTimeout)
	assert.Equal(t, 32, cfg.Monitor.MaxDepth)
	assert.Equal(t, 50, cfg.Monitor.FeedSize)
	assert.False(t, cfg.Monitor.NotifyUnchanged)
	assert.Equal(t, "/usr/sbin/system_profiler", cfg.Profiler.Command)
	assert.Equal(t, []string{"SPUSBHostDataType", "SPThunderboltDataType", "-json"}, cfg.Profiler.Args)
	assert.Equal(t, "zh", cfg.Notify.Language)
	assert.Empty(t, cfg.HTTP.Addr)
	assert.Equal(t, []string{"defaults"}, cfg.LoadedFrom)
}

func TestLoad_YAMLFile(t *testing.T) {
	path := writeFile(t, "usbspeed.yaml", `
environment: production
logging:
  level: debug
  format: json
monitor:
  debounce: 250ms
  notify_unchanged: true
profiler:
  args: ["SPUSBDataType", "-json"]
notify:
  language: en
  webhook:
    url: https://hooks.example.com/usb
http:
  addr: 127.0.0.1:9180
`)

	cfg, err := config.NewLoader(path).WithLookupEnv(env(nil)).Load()
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 250*time.Millisecond, cfg.Monitor.Debounce)
	assert.Equal(t, 30*time.Second, cfg.Monitor.QueryTimeout, "unset keys keep defaults")
	assert.True(t, cfg.Monitor.NotifyUnchanged)
	assert.Equal(t, []string{"SPUSBDataType", "-json"}, cfg.Profiler.Args)
	assert.Equal(t, "en", cfg.Notify.Language)
	assert.Equal(t, "https://hooks.example.com/usb", cfg.Notify.Webhook.URL)
	assert.Equal(t, "127.0.0.1:9180", cfg.HTTP.Addr)
	assert.Equal(t, []string{"defaults", path}, cfg.LoadedFrom)
}

func TestLoad_JSONFile(t *testing.T) {
	path := writeFile(t, "usbspeed.json", `{"monitor": {"max_depth": 8, "feed_size": 5}, "metrics": {"namespace": "usb"}}`)

	cfg, err := config.NewLoader(path).WithLookupEnv(env(nil)).Load()
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.Monitor.MaxDepth)
	assert.Equal(t, 5, cfg.Monitor.FeedSize)
	assert.Equal(t, "usb", cfg.Metrics.Namespace)
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	path := writeFile(t, "usbspeed.yml", "monitor:\n  debounce: 2s\n")

	cfg, err := config.NewLoader(path).WithLookupEnv(env(map[string]string{
		"USBSPEED_DEBOUNCE":           "750ms",
		"USBSPEED_PROFILER_ARGS":      "SPThunderboltDataType -json",
		"USBSPEED_HOTPLUG_PATHS":      "/a,/b",
		"USBSPEED_DESKTOP":            "false",
		"USBSPEED_TRACING_ENABLED":    "true",
		"OTEL_EXPORTER_OTLP_ENDPOINT": "collector:4317",
		"AWS_REGION":                  "eu-west-1",
	})).Load()
	require.NoError(t, err)

	assert.Equal(t, 750*time.Millisecond, cfg.Monitor.Debounce)
	assert.Equal(t, []string{"SPThunderboltDataType", "-json"}, cfg.Profiler.Args)
	assert.Equal(t, []string{"/a", "/b"}, cfg.Hotplug.Paths)
	assert.False(t, cfg.Notify.Desktop)
	assert.True(t, cfg.Tracing.Enabled)
	assert.Equal(t, "collector:4317", cfg.Tracing.Endpoint)
	assert.Equal(t, "eu-west-1", cfg.Notify.EventBridge.Region)
	assert.Equal(t, []string{"defaults", path, "environment"}, cfg.LoadedFrom)
}

func TestLoad_ProcessEnvironment(t *testing.T) {
	t.Setenv("USBSPEED_LANGUAGE", "en")
	t.Setenv("USBSPEED_FEED_SIZE", "7")

	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, "en", cfg.Notify.Language)
	assert.Equal(t, 7, cfg.Monitor.FeedSize)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		file string
		body string
		vars map[string]string
	}{
		{name: "unparseable duration", vars: map[string]string{"USBSPEED_DEBOUNCE": "soon"}},
		{name: "unparseable integer", vars: map[string]string{"USBSPEED_MAX_DEPTH": "deep"}},
		{name: "unparseable bool", vars: map[string]string{"USBSPEED_DESKTOP": "maybe"}},
		{name: "unknown language", vars: map[string]string{"USBSPEED_LANGUAGE": "fr"}},
		{name: "zero debounce", vars: map[string]string{"USBSPEED_DEBOUNCE": "0s"}},
		{name: "sample rate above one", vars: map[string]string{"USBSPEED_TRACING_SAMPLE_RATE": "1.5"}},
		{name: "bad http addr", vars: map[string]string{"USBSPEED_HTTP_ADDR": "localhost"}},
		{name: "bad webhook url", vars: map[string]string{"USBSPEED_WEBHOOK_URL": "not a url"}},
		{name: "missing fixture", vars: map[string]string{"USBSPEED_PROFILER_FIXTURE": "/does/not/exist.json"}},
		{name: "unknown file key", file: "c.yaml", body: "monitor:\n  bogus: 1\n"},
		{name: "unsupported extension", file: "c.toml", body: "x = 1\n"},
		{name: "invalid yaml", file: "c.yaml", body: "monitor: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := ""
			if tt.file != "" {
				path = writeFile(t, tt.file, tt.body)
			}

			cfg, err := config.NewLoader(path).WithLookupEnv(env(tt.vars)).Load()
			assert.Nil(t, cfg)
			require.Error(t, err)
			assert.True(t, errors.IsValidation(err), "got %v", err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.NewLoader(filepath.Join(t.TempDir(), "absent.yaml")).WithLookupEnv(env(nil)).Load()
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
}

func TestLoad_FixtureReplacesCommand(t *testing.T) {
	fixture := writeFile(t, "topology.json", `{"SPUSBHostDataType": []}`)

	cfg, err := config.NewLoader("").WithLookupEnv(env(map[string]string{
		"USBSPEED_PROFILER_FIXTURE": fixture,
	})).Load()
	require.NoError(t, err)
	assert.Equal(t, fixture, cfg.Profiler.Fixture)
}

func TestLoad_OverridesApplyLast(t *testing.T) {
	path := writeFile(t, "usbspeed.yaml", "logging:\n  level: info\n")

	cfg, err := config.NewLoader(path).
		WithLookupEnv(env(map[string]string{"USBSPEED_LOG_LEVEL": "warn"})).
		WithOverrides(func(c *config.Config) { c.Logging.Level = "debug" }, nil).
		Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, []string{"defaults", path, "environment", "overrides"}, cfg.LoadedFrom)
}

func TestLoad_OverridesAreValidated(t *testing.T) {
	_, err := config.NewLoader("").
		WithLookupEnv(env(nil)).
		WithOverrides(func(c *config.Config) {
			c.Profiler.Fixture = filepath.Join(t.TempDir(), "absent.json")
		}).
		Load()
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
	assert.Contains(t, err.Error(), "Fixture")
}

func TestConfigValidation_NamesFields(t *testing.T) {
	cfg := config.Default()
	cfg.Monitor.MaxDepth = 0
	cfg.Logging.Format = "xml"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Config.Monitor.MaxDepth")
	assert.Contains(t, err.Error(), "Config.Logging.Format")
}

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	path := writeFile(t, "usbspeed.yaml", "logging:\n  level: info\n")
	loader := config.NewLoader(path).WithLookupEnv(env(nil))
	initial, err := loader.Load()
	require.NoError(t, err)

	w, err := config.NewWatcher(loader, initial, zap.NewNop())
	require.NoError(t, err)
	defer w.Stop()

	changed := make(chan *config.Config, 1)
	w.OnChange(func(c *config.Config) { changed <- c })

	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: debug\n"), 0o600))

	select {
	case c := <-changed:
		assert.Equal(t, "debug", c.Logging.Level)
		assert.Equal(t, "debug", w.Current().Logging.Level)
	case <-time.After(5 * time.Second):
		t.Fatal("configuration was not reloaded")
	}
}

func TestWatcher_KeepsLastGoodConfig(t *testing.T) {
	path := writeFile(t, "usbspeed.yaml", "logging:\n  level: info\n")
	loader := config.NewLoader(path).WithLookupEnv(env(nil))
	initial, err := loader.Load()
	require.NoError(t, err)

	w, err := config.NewWatcher(loader, initial, zap.NewNop())
	require.NoError(t, err)
	defer w.Stop()

	called := make(chan struct{}, 1)
	w.OnChange(func(*config.Config) { called <- struct{}{} })

	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: loud\n"), 0o600))

	select {
	case <-called:
		t.Fatal("invalid configuration was applied")
	case <-time.After(1500 * time.Millisecond):
	}
	assert.Equal(t, "info", w.Current().Logging.Level)
}

func TestWatcher_ReappliesOverrides(t *testing.T) {
	path := writeFile(t, "usbspeed.yaml", "logging:\n  level: info\n")
	loader := config.NewLoader(path).
		WithLookupEnv(env(nil)).
		WithOverrides(func(c *config.Config) { c.Logging.Level = "debug" })
	initial, err := loader.Load()
	require.NoError(t, err)
	require.Equal(t, "debug", initial.Logging.Level)

	w, err := config.NewWatcher(loader, initial, zap.NewNop())
	require.NoError(t, err)
	defer w.Stop()

	changed := make(chan *config.Config, 1)
	w.OnChange(func(c *config.Config) { changed <- c })

	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: info\nnotify:\n  title: Ports\n"), 0o600))

	select {
	case c := <-changed:
		assert.Equal(t, "Ports", c.Notify.Title)
		assert.Equal(t, "debug", c.Logging.Level)
	case <-time.After(5 * time.Second):
		t.Fatal("configuration was not reloaded")
	}
}

func TestWatcher_RequiresFile(t *testing.T) {
	_, err := config.NewWatcher(config.NewLoader(""), config.Default(), zap.NewNop())
	assert.Error(t, err)
}
