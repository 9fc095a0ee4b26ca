package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Collector holds all Prometheus metrics for the application. Each
// Collector owns its registry, so several can coexist in tests.
type Collector struct {
	// Registry for this collector instance
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Pipeline metrics
	Signals     *prometheus.CounterVec
	Triggers    prometheus.Counter
	Runs        *prometheus.CounterVec
	RunDuration prometheus.Histogram
	Changes     *prometheus.CounterVec
	Changed     *prometheus.CounterVec
	Devices     prometheus.Gauge
	Deliveries  *prometheus.CounterVec
}

// NewCollector creates a new metrics collector with the given namespace
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		Signals: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "hotplug_signals_total",
				Help:      "Raw hotplug signals received, before coalescing",
			},
			[]string{"source"},
		),
		Triggers: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rescan_triggers_total",
				Help:      "Rescan requests after coalescing",
			},
		),
		Runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pipeline_runs_total",
				Help:      "Pipeline runs by outcome",
			},
			[]string{"outcome"},
		),
		RunDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "pipeline_run_duration_seconds",
				Help:      "Duration of a pipeline run including the topology query",
				Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
		),
		Changes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "topology_changes_total",
				Help:      "Completed runs by reported change kind",
			},
			[]string{"kind"},
		),
		Changed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "changed_devices_total",
				Help:      "Devices reported in change notifications",
			},
			[]string{"kind"},
		),
		Devices: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "devices",
				Help:      "Devices in the current snapshot",
			},
		),
		Deliveries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notifications_total",
				Help:      "Notification deliveries by outcome",
			},
			[]string{"outcome"},
		),
	}

	registry.MustRegister(
		c.HTTPRequests,
		c.HTTPDuration,
		c.Signals,
		c.Triggers,
		c.Runs,
		c.RunDuration,
		c.Changes,
		c.Changed,
		c.Devices,
		c.Deliveries,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return c
}

func (c *Collector) RecordSignal(source string) {
	c.Signals.WithLabelValues(source).Inc()
}

func (c *Collector) RecordTrigger() {
	c.Triggers.Inc()
}

func (c *Collector) RecordRun(outcome string, duration time.Duration) {
	c.Runs.WithLabelValues(outcome).Inc()
	c.RunDuration.Observe(duration.Seconds())
}

func (c *Collector) RecordChange(kind string, devices int) {
	c.Changes.WithLabelValues(kind).Inc()
	c.Changed.WithLabelValues(kind).Add(float64(devices))
}

func (c *Collector) RecordDevices(count int) {
	c.Devices.Set(float64(count))
}

func (c *Collector) RecordDelivery(outcome string) {
	c.Deliveries.WithLabelValues(outcome).Inc()
}

// RecordHTTP records one served request.
func (c *Collector) RecordHTTP(method, route string, status int, duration time.Duration) {
	c.HTTPRequests.WithLabelValues(method, route, statusClass(status)).Inc()
	c.HTTPDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// GetRegistry returns the Prometheus registry for this collector
func (c *Collector) GetRegistry() *prometheus.Registry {
	return c.registry
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
