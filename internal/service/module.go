package service

import (
	"log/slog"

	"github.com/kodokojo/eventgate/config"
	"github.com/kodokojo/eventgate/internal/adapter/directory"
	"github.com/kodokojo/eventgate/internal/domain/registry"
	"go.uber.org/fx"
)

var Module = fx.Module("service",
	fx.Provide(
		func(cfg *config.Config) directory.Directory {
			client := directory.NewClient(cfg.Directory.BaseURL, cfg.Directory.Timeout)
			return directory.NewCachingDirectory(client, cfg.Directory.CacheSize, cfg.Directory.CacheTTL)
		},
		fx.Annotate(
			NewDeliveryService,
			fx.As(new(Deliverer)),
		),
		func(reg *registry.Registry, dir directory.Directory, logger *slog.Logger, cfg *config.Config, instanceID InstanceID) *Router {
			return NewRouter(reg, dir, logger, RoutingConfig{
				AllowedTypes: cfg.Routing.AllowedTypes,
				InstanceID:   string(instanceID),
				PushTimeout:  cfg.Push.SendTimeout,
			})
		},
	),

	// Cross-cutting logging around the directory collaborator.
	fx.Decorate(func(next directory.Directory, logger *slog.Logger) directory.Directory {
		return NewDirectoryMiddleware(next, logger)
	}),
)

// InstanceID identifies this gateway instance on the bus: it suffixes the
// reply topic and marks broadcasts to break echo loops.
type InstanceID string
