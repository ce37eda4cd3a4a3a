package http

import (
	"context"
	"log/slog"
	"time"

	"github.com/kodokojo/eventgate/config"
	"github.com/kodokojo/eventgate/internal/adapter/directory"
	"github.com/kodokojo/eventgate/internal/domain/correlator"
	"github.com/kodokojo/eventgate/internal/domain/registry"
	"github.com/kodokojo/eventgate/internal/handler/httpapi"
	"github.com/kodokojo/eventgate/internal/handler/sse"
	"github.com/kodokojo/eventgate/internal/handler/ws"
	"github.com/kodokojo/eventgate/internal/service"
	"go.uber.org/fx"
)

var Module = fx.Module("http-server",
	fx.Provide(
		func(cfg *config.Config, logger *slog.Logger, deliverer service.Deliverer) *ws.Handler {
			return ws.NewHandler(logger, deliverer, cfg.Push.GraceWindow)
		},
		func(cfg *config.Config, logger *slog.Logger, deliverer service.Deliverer) *sse.Handler {
			return sse.NewHandler(logger, deliverer, cfg.Push.HeartbeatInterval)
		},
		func(corr *correlator.Correlator, dir directory.Directory, logger *slog.Logger) *httpapi.Gateway {
			return httpapi.NewGateway(corr, dir, logger, 30*time.Second)
		},
		func(cfg *config.Config, logger *slog.Logger, wsHandler *ws.Handler, sseHandler *sse.Handler, gateway *httpapi.Gateway, reg *registry.Registry, corr *correlator.Correlator) *Server {
			return NewServer(cfg.HTTP.Listen, logger, wsHandler, sseHandler, gateway, reg, corr)
		},
	),
	fx.Invoke(func(lc fx.Lifecycle, s *Server) {
		lc.Append(fx.Hook{
			OnStart: func(context.Context) error { return s.Start() },
			OnStop:  func(ctx context.Context) error { return s.Stop(ctx) },
		})
	}),
)
