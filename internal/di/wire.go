//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"github.com/google/wire"

	"usbspeed/internal/config"
)

// SuperSet is the main provider set containing all providers
var SuperSet = wire.NewSet(
	ProvideLogging,
	ProvideLogger,
	ProvideTracing,
	ProvideCollector,
	ProvideRecorder,
	ProvideTopologySource,
	ProvideNotifier,
	ProvideLabels,
	ProvideFlattener,
	ProvideFormatter,
	ProvideEngine,
	ProvideHotplug,
	ProvideRouter,
	ProvideServer,
	wire.Struct(new(Container), "*"),
)

// InitializeContainer creates a fully wired container
func InitializeContainer(ctx context.Context, cfg *config.Config) (*Container, func(), error) {
	wire.Build(SuperSet)
	return nil, nil, nil // Wire will replace this
}
