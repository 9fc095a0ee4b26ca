package rest_test

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"usbspeed/internal/application/monitor"
	"usbspeed/internal/domain/snapshot"
	"usbspeed/internal/domain/topology"
	"usbspeed/internal/domain/topology/topologytest"
	"usbspeed/internal/infrastructure/observability"
	"usbspeed/internal/interfaces/http/rest"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeMonitor struct {
	mu      sync.Mutex
	current *snapshot.Snapshot
	events  []monitor.ChangeEvent
	signals []monitor.Signal
	stream  chan monitor.ChangeEvent
	ended   chan struct{}
}

func newFakeMonitor() *fakeMonitor {
	doc := topologytest.NewDocument().
		WithUSB(topologytest.NewUSBDevice("Drive").WithSerial("SN456").WithSpeed("super_speed")).
		WithThunderbolt(topologytest.NewThunderboltDevice("Dock").WithDeviceID("0x8B")).
		Build()
	devices := []topology.Device{
		{Identity: "SN456", DisplayName: "Drive", SpeedDescription: "5 Gbit/s", Family: topology.FamilyUSB, Stable: true},
		{Identity: "0x8B", DisplayName: "Dock", SpeedDescription: "最高40Gb/s", Family: topology.FamilyThunderbolt, Stable: true},
	}
	return &fakeMonitor{
		current: snapshot.New(doc, devices, fixedNow.Add(-time.Minute)),
		events: []monitor.ChangeEvent{
			{ID: "1", Kind: snapshot.KindAdded, Devices: devices[:1], Message: "added Drive"},
			{ID: "2", Kind: snapshot.KindRemoved, Devices: devices[:1], Message: "removed Drive"},
			{ID: "3", Kind: snapshot.KindAdded, Devices: devices[1:], Message: "added Dock"},
		},
		stream: make(chan monitor.ChangeEvent, 4),
		ended:  make(chan struct{}),
	}
}

func (f *fakeMonitor) Current() *snapshot.Snapshot { return f.current }

func (f *fakeMonitor) RecentN(n int) []monitor.ChangeEvent {
	if n <= 0 || n > len(f.events) {
		return f.events
	}
	return f.events[len(f.events)-n:]
}

func (f *fakeMonitor) Subscribe(int) (<-chan monitor.ChangeEvent, func()) {
	var once sync.Once
	return f.stream, func() { once.Do(func() { close(f.ended) }) }
}

func (f *fakeMonitor) Signal(sig monitor.Signal) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signals = append(f.signals, sig)
}

func (f *fakeMonitor) Signals() []monitor.Signal {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]monitor.Signal(nil), f.signals...)
}

func newHandler(m rest.Monitor, collector *observability.Collector) http.Handler {
	params := rest.RouterParams{
		Monitor: m,
		Logger:  zap.NewNop(),
		Now:     func() time.Time { return fixedNow },
	}
	if collector != nil {
		params.Metrics = collector
		params.MetricsHandler = promhttp.HandlerFor(collector.GetRegistry(), promhttp.HandlerOpts{})
	}
	return rest.NewRouter(params).Setup()
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestHealth(t *testing.T) {
	rec := get(t, newHandler(newFakeMonitor(), nil), "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp rest.HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, 2, resp.Devices)
	require.NotNil(t, resp.LastScan)
	assert.True(t, resp.LastScan.Equal(fixedNow.Add(-time.Minute)))
}

func TestGetSnapshot(t *testing.T) {
	rec := get(t, newHandler(newFakeMonitor(), nil), "/api/v1/snapshot")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp struct {
		DeviceCount int               `json:"device_count"`
		Devices     []topology.Device `json:"devices"`
		Document    json.RawMessage   `json:"document"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.DeviceCount)
	assert.Equal(t, []string{"SN456", "0x8B"}, topology.Identities(resp.Devices))

	doc, err := topology.Parse(resp.Document)
	require.NoError(t, err, "the document is served in profiler form")
	assert.Len(t, doc.Roots(), 2)
}

func TestGetSnapshot_BeforeFirstScan(t *testing.T) {
	m := newFakeMonitor()
	m.current = snapshot.Empty()

	rec := get(t, newHandler(m, nil), "/api/v1/snapshot")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"device_count":0,"devices":[],"document":null}`, rec.Body.String())
}

func TestListDevices(t *testing.T) {
	tests := []struct {
		name   string
		target string
		status int
		ids    []string
	}{
		{"all", "/api/v1/devices", http.StatusOK, []string{"SN456", "0x8B"}},
		{"usb only", "/api/v1/devices?family=usb", http.StatusOK, []string{"SN456"}},
		{"thunderbolt only", "/api/v1/devices?family=thunderbolt", http.StatusOK, []string{"0x8B"}},
		{"unknown family", "/api/v1/devices?family=firewire", http.StatusBadRequest, nil},
	}

	h := newHandler(newFakeMonitor(), nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, h, tt.target)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			if tt.status != http.StatusOK {
				return
			}
			var resp rest.DevicesResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.ids, topology.Identities(resp.Devices))
			assert.Equal(t, len(tt.ids), resp.Count)
		})
	}
}

func TestListChanges(t *testing.T) {
	tests := []struct {
		name   string
		target string
		ids    []string
	}{
		{"all", "/api/v1/changes", []string{"1", "2", "3"}},
		{"newest two", "/api/v1/changes?limit=2", []string{"2", "3"}},
		{"added only", "/api/v1/changes?kind=added", []string{"1", "3"}},
	}

	h := newHandler(newFakeMonitor(), nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, h, tt.target)
			require.Equal(t, http.StatusOK, rec.Code)

			var resp rest.ChangesResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			ids := make([]string, len(resp.Changes))
			for i, c := range resp.Changes {
				ids[i] = c.ID
			}
			assert.Equal(t, tt.ids, ids)
		})
	}
}

func TestListChanges_InvalidQuery(t *testing.T) {
	tests := []struct {
		name   string
		target string
		fields []string
	}{
		{"non-numeric limit", "/api/v1/changes?limit=ten", []string{"limit"}},
		{"negative limit", "/api/v1/changes?limit=-1", []string{"limit"}},
		{"limit too large", "/api/v1/changes?limit=5000", []string{"limit"}},
		{"unknown kind", "/api/v1/changes?kind=unchanged", []string{"kind"}},
		{"both", "/api/v1/changes?limit=x&kind=y", []string{"limit", "kind"}},
	}

	h := newHandler(newFakeMonitor(), nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, h, tt.target)
			require.Equal(t, http.StatusBadRequest, rec.Code)

			var resp rest.ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			fields := make([]string, len(resp.Fields))
			for i, f := range resp.Fields {
				fields[i] = f.Field
			}
			assert.Equal(t, tt.fields, fields)
		})
	}
}

func TestRescan(t *testing.T) {
	m := newFakeMonitor()
	rec := httptest.NewRecorder()
	newHandler(m, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/rescan", nil))

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, m.Signals(), 1)
	assert.Equal(t, "api", m.Signals()[0].Source)

	rec = get(t, newHandler(m, nil), "/api/v1/rescan")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestMetrics(t *testing.T) {
	collector := observability.NewCollector("usbspeed")
	h := newHandler(newFakeMonitor(), collector)

	get(t, h, "/api/v1/devices")
	get(t, h, "/api/v1/devices?family=nope")

	assert.Equal(t, 1.0, testutil.ToFloat64(collector.HTTPRequests.WithLabelValues("GET", "/api/v1/devices", "2xx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.HTTPRequests.WithLabelValues("GET", "/api/v1/devices", "4xx")))

	rec := get(t, h, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "usbspeed_http_requests_total")
}

func TestMetricsRouteAbsentWithoutCollector(t *testing.T) {
	rec := get(t, newHandler(newFakeMonitor(), nil), "/metrics")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStreamChanges(t *testing.T) {
	m := newFakeMonitor()
	srv := httptest.NewServer(newHandler(m, nil))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/changes/stream", nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	m.stream <- monitor.ChangeEvent{ID: "evt-1", Kind: snapshot.KindRemoved, Message: "移除了设备：\nDrive: 5 Gbit/s"}

	reader := bufio.NewReader(resp.Body)
	var block []string
	for {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		if strings.HasPrefix(line, ":") {
			continue
		}
		if line == "" && len(block) > 0 {
			break
		}
		if line != "" {
			block = append(block, line)
		}
	}

	require.Len(t, block, 3)
	assert.Equal(t, "id: evt-1", block[0])
	assert.Equal(t, "event: removed", block[1])
	var ev monitor.ChangeEvent
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(block[2], "data: ")), &ev))
	assert.Equal(t, "移除了设备：\nDrive: 5 Gbit/s", ev.Message)

	cancel()
	select {
	case <-m.ended:
	case <-time.After(2 * time.Second):
		t.Fatal("subscription was not cancelled after the client left")
	}
}

func TestServer_ShutsDownWithContext(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	server := rest.NewServer(ln.Addr().String(), newHandler(newFakeMonitor(), nil), time.Second, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.ServeListener(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not stop")
	}
}
