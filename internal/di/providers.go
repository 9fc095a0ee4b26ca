// Package di wires the monitor together from configuration. Providers
// here are shared by the Wire injector and the hand-written container.
package di

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"usbspeed/internal/application/monitor"
	"usbspeed/internal/config"
	"usbspeed/internal/domain/snapshot"
	"usbspeed/internal/domain/topology"
	"usbspeed/internal/errors"
	"usbspeed/internal/infrastructure/hotplug"
	"usbspeed/internal/infrastructure/notify"
	"usbspeed/internal/infrastructure/observability"
	"usbspeed/internal/infrastructure/profiler"
	"usbspeed/internal/interfaces/http/rest"
)

// Version is reported in trace resources. It is set at link time.
var Version = "dev"

// Logging pairs the root logger with its adjustable level.
type Logging struct {
	Logger *zap.Logger
	Level  zap.AtomicLevel
}

// ProvideLogging builds the root logger. The cleanup flushes it.
func ProvideLogging(cfg *config.Config) (*Logging, func(), error) {
	logger, level, err := observability.NewLeveledLogger(observability.LoggerConfig{
		Environment: string(cfg.Environment),
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
	})
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() { _ = logger.Sync() }
	return &Logging{Logger: logger, Level: level}, cleanup, nil
}

// ProvideLogger exposes the root logger.
func ProvideLogger(l *Logging) *zap.Logger {
	return l.Logger
}

// ProvideCollector returns nil when metrics are disabled.
func ProvideCollector(cfg *config.Config) *observability.Collector {
	if !cfg.Metrics.Enabled {
		return nil
	}
	return observability.NewCollector(cfg.Metrics.Namespace)
}

// ProvideRecorder adapts the collector to the engine's recorder port. A
// disabled collector yields a nil port, which the engine replaces with a
// no-op.
func ProvideRecorder(c *observability.Collector) monitor.Recorder {
	if c == nil {
		return nil
	}
	return c
}

// ProvideTracing initializes tracing. The cleanup flushes pending spans.
func ProvideTracing(cfg *config.Config, logger *zap.Logger) (*observability.TracerProvider, func(), error) {
	tp, err := observability.InitTracing(observability.TracingConfig{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: "usbspeed",
		Version:     Version,
		Environment: string(cfg.Environment),
		Endpoint:    cfg.Tracing.Endpoint,
		SampleRate:  cfg.Tracing.SampleRate,
	})
	if err != nil {
		return nil, nil, errors.NewInternal("failed to initialize tracing", err)
	}
	cleanup := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			logger.Warn("Tracer shutdown failed", zap.Error(err))
		}
	}
	return tp, cleanup, nil
}

// ProvideTopologySource reads the fixture when one is configured and runs
// the profiler command otherwise.
func ProvideTopologySource(cfg *config.Config, logger *zap.Logger) monitor.TopologySource {
	if cfg.Profiler.Fixture != "" {
		logger.Info("Reading topology from fixture", zap.String("path", cfg.Profiler.Fixture))
		return profiler.NewFileSource(cfg.Profiler.Fixture)
	}
	return profiler.NewCommandSource(cfg.Profiler.Command, cfg.Profiler.Args, logger)
}

// ProvideNotifier fans out to every configured sink.
func ProvideNotifier(ctx context.Context, cfg *config.Config, logger *zap.Logger) (monitor.Notifier, error) {
	var sinks []monitor.Notifier

	if cfg.Notify.Log {
		sinks = append(sinks, notify.NewLogNotifier(logger))
	}

	if cfg.Notify.Desktop {
		desktop := notify.NewDesktopNotifier(logger)
		if err := desktop.Authorize(); err != nil {
			logger.Warn("Desktop notifications unavailable", zap.Error(err))
		}
		sinks = append(sinks, desktop)
	}

	if cfg.Notify.Webhook.URL != "" {
		sinks = append(sinks, notify.NewWebhookNotifier(
			cfg.Notify.Webhook.URL,
			cfg.Notify.Webhook.Timeout,
			notify.DefaultBreakerConfig("webhook"),
			logger,
		))
	}

	if cfg.Notify.EventBridge.Bus != "" {
		client, err := notify.NewEventBridgeClient(ctx, cfg.Notify.EventBridge.Region)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, notify.NewEventBridgeNotifier(
			client, cfg.Notify.EventBridge.Bus, cfg.Notify.EventBridge.Source, logger))
	}

	multi := notify.NewMulti(logger, sinks...)
	logger.Info("Notification sinks configured", zap.Int("sinks", multi.Len()))
	return multi, nil
}

// ProvideLabels selects the label table and applies the title override.
func ProvideLabels(cfg *config.Config) *topology.Labels {
	labels := topology.LabelsFor(cfg.Notify.Language)
	if cfg.Notify.Title == "" {
		return labels
	}
	custom := *labels
	custom.Title = cfg.Notify.Title
	return &custom
}

func ProvideFlattener(cfg *config.Config, labels *topology.Labels) *topology.Flattener {
	return topology.NewFlattener(labels, topology.WithMaxDepth(cfg.Monitor.MaxDepth))
}

func ProvideFormatter(labels *topology.Labels) *snapshot.Formatter {
	return snapshot.NewFormatter(labels)
}

// ProvideEngine builds the monitor engine.
func ProvideEngine(
	cfg *config.Config,
	source monitor.TopologySource,
	notifier monitor.Notifier,
	flattener *topology.Flattener,
	formatter *snapshot.Formatter,
	recorder monitor.Recorder,
	tp *observability.TracerProvider,
	logger *zap.Logger,
) *monitor.Engine {
	return monitor.NewEngine(monitor.EngineParams{
		Source:          source,
		Notifier:        notifier,
		Flattener:       flattener,
		Formatter:       formatter,
		Recorder:        recorder,
		Tracer:          tp.Tracer(),
		Logger:          logger,
		Debounce:        cfg.Monitor.Debounce,
		QueryTimeout:    cfg.Monitor.QueryTimeout,
		FeedSize:        cfg.Monitor.FeedSize,
		NotifyUnchanged: cfg.Monitor.NotifyUnchanged,
	})
}

// Hotplug starts the configured signal sources on demand.
type Hotplug struct {
	paths        []string
	pollInterval time.Duration
	logger       *zap.Logger
}

func ProvideHotplug(cfg *config.Config, logger *zap.Logger) *Hotplug {
	return &Hotplug{
		paths:        cfg.Hotplug.Paths,
		pollInterval: cfg.Hotplug.PollInterval,
		logger:       logger,
	}
}

// Start merges the filesystem watcher and the poller into one signal
// channel. A host without watchable paths relies on polling alone.
func (h *Hotplug) Start(ctx context.Context) <-chan monitor.Signal {
	var sources []<-chan monitor.Signal

	if len(h.paths) > 0 {
		watcher, err := hotplug.NewFSWatcher(h.paths, h.logger)
		if err != nil {
			h.logger.Warn("Device tree watching unavailable", zap.Error(err))
		} else {
			h.logger.Info("Watching device tree", zap.Strings("paths", watcher.Watched()))
			sources = append(sources, watcher.Watch(ctx))
		}
	}
	if h.pollInterval > 0 {
		h.logger.Info("Polling for topology changes", zap.Duration("interval", h.pollInterval))
		sources = append(sources, hotplug.Poll(ctx, h.pollInterval))
	}
	if len(sources) == 0 {
		h.logger.Warn("No hotplug signal source; rescans happen only on request")
	}
	return hotplug.Merge(ctx, sources...)
}

// ProvideRouter builds the API handler.
func ProvideRouter(engine *monitor.Engine, collector *observability.Collector, logger *zap.Logger) http.Handler {
	params := rest.RouterParams{
		Monitor: engine,
		Logger:  logger,
	}
	if collector != nil {
		params.Metrics = collector
		params.MetricsHandler = promhttp.HandlerFor(collector.GetRegistry(), promhttp.HandlerOpts{})
	}
	return rest.NewRouter(params).Setup()
}

// ProvideServer returns nil when the API is disabled.
func ProvideServer(cfg *config.Config, handler http.Handler, logger *zap.Logger) *rest.Server {
	if cfg.HTTP.Addr == "" {
		return nil
	}
	return rest.NewServer(cfg.HTTP.Addr, handler, cfg.HTTP.ShutdownTimeout, logger)
}
