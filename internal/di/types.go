package di

import (
	"context"
	"net/http"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"usbspeed/internal/application/monitor"
	"usbspeed/internal/config"
	"usbspeed/internal/infrastructure/observability"
	"usbspeed/internal/interfaces/http/rest"
)

// Container holds the wired process. It is built by NewContainer, or by
// the generated InitializeContainer when Wire is used.
type Container struct {
	Config    *config.Config
	Logging   *Logging
	Logger    *zap.Logger
	Collector *observability.Collector
	Tracing   *observability.TracerProvider
	Engine    *monitor.Engine
	Hotplug   *Hotplug
	Handler   http.Handler
	// Server is nil when the API is disabled.
	Server *rest.Server
}

// Run primes the snapshot store, then consumes hotplug signals and serves
// the API until ctx is cancelled. A failed initial scan is logged and the
// first successful rescan diffs against an empty snapshot.
func (c *Container) Run(ctx context.Context) error {
	_ = c.Engine.Prime(ctx)

	g, ctx := errgroup.WithContext(ctx)
	signals := c.Hotplug.Start(ctx)

	g.Go(func() error {
		return c.Engine.Run(ctx, signals)
	})
	if c.Server != nil {
		g.Go(func() error {
			return c.Server.Serve(ctx)
		})
	}
	return g.Wait()
}

// WatchConfig reloads the configuration file on change and applies the
// new log level. Other settings take effect on restart.
func (c *Container) WatchConfig(loader *config.Loader) (*config.Watcher, error) {
	w, err := config.NewWatcher(loader, c.Config, c.Logger)
	if err != nil {
		return nil, err
	}
	w.OnChange(func(next *config.Config) {
		if next.Logging.Level != c.Logging.Level.String() {
			if err := c.Logging.Level.UnmarshalText([]byte(next.Logging.Level)); err != nil {
				c.Logger.Warn("Ignoring log level", zap.String("level", next.Logging.Level), zap.Error(err))
				return
			}
			c.Logger.Info("Log level changed", zap.String("level", next.Logging.Level))
		}
	})
	return w, nil
}
