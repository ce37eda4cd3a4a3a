package cmd

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/kodokojo/eventgate/config"
	httpsrv "github.com/kodokojo/eventgate/infra/server/http"
	"github.com/kodokojo/eventgate/internal/domain/registry"
	amqphandler "github.com/kodokojo/eventgate/internal/handler/amqp"
	"github.com/kodokojo/eventgate/internal/service"
	"go.uber.org/fx"
)

func NewApp(cfg *config.Config) *fx.App {
	instanceID := uuid.NewString()[:8]

	return fx.New(
		fx.Provide(
			func() *config.Config { return cfg },
			func() service.InstanceID { return service.InstanceID(instanceID) },
			func() amqphandler.ReplyTopic {
				return amqphandler.ReplyTopic(fmt.Sprintf("%s.reply.%s", cfg.Service.Name, instanceID))
			},
			ProvideLogger,
			ProvideWatermillLogger,
			ProvidePubSub,
		),
		registry.Module,
		service.Module,
		amqphandler.Module,
		httpsrv.Module,
	)
}
