package amqp

import (
	"context"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/kodokojo/eventgate/config"
	"github.com/kodokojo/eventgate/internal/adapter/pubsub"
	"github.com/kodokojo/eventgate/internal/domain/correlator"
	"go.uber.org/fx"
)

var Module = fx.Module("amqp-handler",
	fx.Provide(
		func(provider pubsub.Provider) (pubsub.Dispatcher, error) {
			pub, err := provider.Publisher()
			if err != nil {
				return nil, err
			}
			return pubsub.NewDispatcher(pub), nil
		},
		func(dispatcher pubsub.Dispatcher, logger *slog.Logger, replyTopic ReplyTopic) *correlator.Correlator {
			return correlator.New(dispatcher, logger, string(replyTopic))
		},
		NewBusHandler,
		NewWatermillRouter,
	),

	fx.Invoke(func(lc fx.Lifecycle, router *message.Router, h *BusHandler, provider pubsub.Provider, cfg *config.Config, logger *slog.Logger) error {
		if err := h.RegisterHandlers(router, provider, cfg.Routing.AllowedTypes); err != nil {
			return err
		}

		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				go func() {
					if err := router.Run(context.Background()); err != nil {
						logger.Error("bus router stopped", "err", err)
					}
				}()
				select {
				case <-router.Running():
					return nil
				case <-ctx.Done():
					return ctx.Err()
				}
			},
			OnStop: func(context.Context) error {
				return router.Close()
			},
		})
		return nil
	}),
)

// ReplyTopic is the per-instance topic replies are addressed to, derived
// from the instance id at bootstrap.
type ReplyTopic string
