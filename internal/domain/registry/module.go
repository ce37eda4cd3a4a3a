package registry

import (
	"context"
	"log/slog"

	"github.com/kodokojo/eventgate/config"
	"go.uber.org/fx"
)

var Module = fx.Module("registry",
	fx.Provide(
		func(cfg *config.Config, logger *slog.Logger) *Registry {
			return NewRegistry(logger,
				WithGraceWindow(cfg.Push.GraceWindow),
				WithMailboxSize(cfg.Push.MailboxSize),
			)
		},
	),
	fx.Invoke(func(lc fx.Lifecycle, r *Registry) {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				r.Shutdown()
				return nil
			},
		})
	}),
)
