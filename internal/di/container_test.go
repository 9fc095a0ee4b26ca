package di

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"usbspeed/internal/config"
	"usbspeed/internal/domain/topology"
	"usbspeed/internal/errors"
	"usbspeed/internal/infrastructure/profiler"
)

const fixture = "../domain/topology/testdata/system_profiler.json"

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Logging.Level = "error"
	cfg.Profiler.Fixture = fixture
	cfg.Hotplug.Paths = nil
	cfg.Hotplug.PollInterval = 0
	cfg.Notify.Log = false
	cfg.Notify.Desktop = false
	cfg.Monitor.Debounce = 10 * time.Millisecond
	return cfg
}

func TestNewContainer_PrimesFromFixture(t *testing.T) {
	c, cleanup, err := NewContainer(context.Background(), testConfig())
	require.NoError(t, err)
	defer cleanup()

	assert.Nil(t, c.Server, "API is disabled without an address")
	require.NotNil(t, c.Collector)

	require.NoError(t, c.Engine.Prime(context.Background()))
	assert.Positive(t, c.Engine.Current().Len())

	rec := httptest.NewRecorder()
	c.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "usbspeed_devices")
}

func TestNewContainer_MetricsDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Metrics.Enabled = false

	c, cleanup, err := NewContainer(context.Background(), cfg)
	require.NoError(t, err)
	defer cleanup()

	assert.Nil(t, c.Collector)
	assert.Nil(t, ProvideRecorder(c.Collector))

	rec := httptest.NewRecorder()
	c.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNewContainer_InvalidLogLevel(t *testing.T) {
	cfg := testConfig()
	cfg.Logging.Level = "loud"

	c, cleanup, err := NewContainer(context.Background(), cfg)
	require.Error(t, err)
	assert.Nil(t, c)
	assert.Nil(t, cleanup)
	assert.Equal(t, errors.ErrorTypeInternal, errors.TypeOf(err))
	assert.Contains(t, err.Error(), "failed to create logger")
}

func TestContainer_WatchConfigKeepsOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "usbspeed.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: info\n"), 0o600))

	loader := config.NewLoader(path).
		WithLookupEnv(func(string) (string, bool) { return "", false }).
		WithOverrides(func(cfg *config.Config) {
			cfg.Logging.Level = "debug"
			cfg.Profiler.Fixture = fixture
			cfg.Hotplug.Paths = nil
			cfg.Notify.Log = false
			cfg.Notify.Desktop = false
		})
	cfg, err := loader.Load()
	require.NoError(t, err)

	c, cleanup, err := NewContainer(context.Background(), cfg)
	require.NoError(t, err)
	defer cleanup()
	require.Equal(t, "debug", c.Logging.Level.String())

	w, err := c.WatchConfig(loader)
	require.NoError(t, err)
	defer w.Stop()

	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: info\nnotify:\n  title: Ports\n"), 0o600))

	require.Eventually(t, func() bool {
		return w.Current().Notify.Title == "Ports"
	}, 5*time.Second, 20*time.Millisecond, "configuration is reloaded")
	assert.Equal(t, "debug", c.Logging.Level.String())
}

func TestContainer_RunStopsWithContext(t *testing.T) {
	cfg := testConfig()
	cfg.HTTP.Addr = "127.0.0.1:0"

	c, cleanup, err := NewContainer(context.Background(), cfg)
	require.NoError(t, err)
	defer cleanup()
	require.NotNil(t, c.Server)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	require.Eventually(t, func() bool {
		return c.Engine.Current().Len() > 0
	}, 2*time.Second, 10*time.Millisecond, "initial scan fills the store")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("container did not stop")
	}
}

func TestProvideLabels(t *testing.T) {
	cfg := config.Default()
	assert.Equal(t, "USB 设备变化", ProvideLabels(cfg).Title)

	cfg.Notify.Language = "en"
	assert.Equal(t, topology.EnglishLabels().Title, ProvideLabels(cfg).Title)

	cfg.Notify.Title = "Ports"
	assert.Equal(t, "Ports", ProvideLabels(cfg).Title)
	assert.Equal(t, topology.EnglishLabels().Title, topology.LabelsFor("en").Title, "the shared table is not modified")
}

func TestProvideTopologySource(t *testing.T) {
	cfg := config.Default()
	logger := ProvideLogger(&Logging{Logger: nopLogger()})

	_, isCommand := ProvideTopologySource(cfg, logger).(*profiler.CommandSource)
	assert.True(t, isCommand)

	cfg.Profiler.Fixture = fixture
	_, isFile := ProvideTopologySource(cfg, logger).(*profiler.FileSource)
	assert.True(t, isFile)
}

func TestProvideNotifier_CountsSinks(t *testing.T) {
	cfg := testConfig()
	cfg.Notify.Log = true
	cfg.Notify.Webhook.URL = "http://127.0.0.1:1/hook"

	n, err := ProvideNotifier(context.Background(), cfg, nopLogger())
	require.NoError(t, err)

	multi, ok := n.(interface{ Len() int })
	require.True(t, ok)
	assert.Equal(t, 2, multi.Len())
}

func nopLogger() *zap.Logger { return zap.NewNop() }
