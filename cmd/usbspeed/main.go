// Command usbspeed watches the USB and Thunderbolt device topology and
// reports devices that appear or disappear, together with their link
// speed.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"usbspeed/internal/application/monitor"
	"usbspeed/internal/cli"
	"usbspeed/internal/config"
	"usbspeed/internal/di"
	"usbspeed/internal/errors"
)

func main() {
	opts, err := cli.Parse(os.Args[1:])
	if err != nil {
		if cli.IsHelp(err) {
			os.Exit(0)
		}
		os.Exit(2)
	}

	if opts.Version {
		fmt.Printf("usbspeed, version: %s\n", di.Version)
		return
	}

	if err := run(opts); err != nil {
		log.Fatalf("usbspeed: %v", err)
	}
}

func run(opts *cli.Option) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loader := config.NewLoader(opts.Config).WithOverrides(func(cfg *config.Config) {
		applyOptions(cfg, opts)
	})
	cfg, err := loader.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load configuration")
	}

	container, cleanup, err := di.NewContainer(ctx, cfg)
	if err != nil {
		return errors.Wrap(err, "failed to initialize container")
	}
	defer cleanup()
	logger := container.Logger

	if opts.Once {
		return printOnce(ctx, container, opts.JSON, os.Stdout)
	}

	logger.Info("Starting usbspeed",
		zap.String("version", di.Version),
		zap.String("environment", string(cfg.Environment)),
		zap.Strings("config_sources", cfg.LoadedFrom),
	)

	if opts.WatchConfig && opts.Config != "" {
		watcher, err := container.WatchConfig(loader)
		if err != nil {
			logger.Warn("Configuration hot reloading disabled", zap.Error(err))
		} else {
			defer watcher.Stop()
		}
	}

	stopRescan := notifyRescan(func() {
		container.Engine.Signal(monitor.Signal{Source: "signal"})
	})
	defer stopRescan()

	if err := container.Run(ctx); err != nil {
		logger.Error("Monitor stopped", zap.Error(err))
		return err
	}
	logger.Info("Monitor stopped")
	return nil
}

// applyOptions lets command-line flags override the loaded configuration.
// It runs inside the loader so reloads keep the overrides.
func applyOptions(cfg *config.Config, opts *cli.Option) {
	if opts.Debug {
		cfg.Logging.Level = "debug"
	}
	if opts.Fixture != "" {
		cfg.Profiler.Fixture = opts.Fixture
	}
	if opts.Once {
		cfg.HTTP.Addr = ""
		cfg.Notify.Desktop = false
	}
}

// printOnce scans without notifying and prints the flattened devices.
func printOnce(ctx context.Context, c *di.Container, asJSON bool, w io.Writer) error {
	if err := c.Engine.Prime(ctx); err != nil {
		return err
	}
	devices := c.Engine.Current().Devices()

	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(devices)
	}
	for _, d := range devices {
		fmt.Fprintf(w, "%*s%s\n", d.Depth*2, "", d.Line())
	}
	return nil
}
