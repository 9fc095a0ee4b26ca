//go:build !wireinject
// +build !wireinject

package di

import (
	"context"

	"usbspeed/internal/config"
	"usbspeed/internal/errors"
)

// NewContainer builds the process from cfg. The returned cleanup flushes
// tracing and logging and must be called once the container stops.
func NewContainer(ctx context.Context, cfg *config.Config) (*Container, func(), error) {
	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	logging, logCleanup, err := ProvideLogging(cfg)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to create logger")
	}
	cleanups = append(cleanups, logCleanup)
	logger := ProvideLogger(logging)

	tracing, traceCleanup, err := ProvideTracing(cfg, logger)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	cleanups = append(cleanups, traceCleanup)

	notifier, err := ProvideNotifier(ctx, cfg, logger)
	if err != nil {
		cleanup()
		return nil, nil, errors.Wrap(err, "failed to configure notifications")
	}

	collector := ProvideCollector(cfg)
	labels := ProvideLabels(cfg)
	engine := ProvideEngine(
		cfg,
		ProvideTopologySource(cfg, logger),
		notifier,
		ProvideFlattener(cfg, labels),
		ProvideFormatter(labels),
		ProvideRecorder(collector),
		tracing,
		logger,
	)
	handler := ProvideRouter(engine, collector, logger)

	return &Container{
		Config:    cfg,
		Logging:   logging,
		Logger:    logger,
		Collector: collector,
		Tracing:   tracing,
		Engine:    engine,
		Hotplug:   ProvideHotplug(cfg, logger),
		Handler:   handler,
		Server:    ProvideServer(cfg, handler, logger),
	}, cleanup, nil
}
