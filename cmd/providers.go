package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/kodokojo/eventgate/config"
	"github.com/kodokojo/eventgate/internal/adapter/pubsub"
	"github.com/kodokojo/eventgate/internal/service"
	"go.uber.org/fx"
)

func ProvideLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Log.Level)); err != nil {
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Log.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler).With("service", cfg.Service.Name)
}

func ProvideWatermillLogger(logger *slog.Logger) watermill.LoggerAdapter {
	return watermill.NewSlogLogger(logger)
}

func ProvidePubSub(cfg *config.Config, instanceID service.InstanceID, wmLogger watermill.LoggerAdapter, lc fx.Lifecycle) (pubsub.Provider, error) {
	var (
		provider pubsub.Provider
		err      error
	)
	switch cfg.Bus.Driver {
	case "amqp":
		provider, err = pubsub.NewAMQPProvider(cfg.Bus.URL, cfg.Bus.Exchange, string(instanceID), wmLogger)
	case "memory":
		provider = pubsub.NewMemoryProvider(wmLogger)
	default:
		err = fmt.Errorf("unknown bus driver %q", cfg.Bus.Driver)
	}
	if err != nil {
		return nil, err
	}

	lc.Append(fx.StopHook(provider.Close))
	return provider, nil
}
