package amqp

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/kodokojo/eventgate/internal/adapter/pubsub"
	"github.com/kodokojo/eventgate/internal/domain/correlator"
	"github.com/kodokojo/eventgate/internal/domain/event"
	"github.com/kodokojo/eventgate/internal/service"
)

const poisonTopic = "eventgate.poison"

// BusHandler binds the bus to the core: REPLY events feed the correlator,
// NOTICE events feed the notification router.
type BusHandler struct {
	correlator *correlator.Correlator
	notifier   *service.Router
	dispatcher pubsub.Dispatcher
	logger     *slog.Logger
}

func NewBusHandler(c *correlator.Correlator, notifier *service.Router, dispatcher pubsub.Dispatcher, logger *slog.Logger) *BusHandler {
	return &BusHandler{
		correlator: c,
		notifier:   notifier,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

func NewWatermillRouter(wmLogger watermill.LoggerAdapter) (*message.Router, error) {
	return message.NewRouter(message.RouterConfig{}, wmLogger)
}

// RegisterHandlers wires one consumer per subscribed topic: the instance
// reply topic plus every notice type eligible for push.
func (h *BusHandler) RegisterHandlers(router *message.Router, provider pubsub.Provider, noticeTopics []string) error {
	poison, err := middleware.PoisonQueue(h.dispatcher.Publisher(), poisonTopic)
	if err != nil {
		return fmt.Errorf("amqp: poison queue setup: %w", err)
	}

	configs := []struct {
		name    string
		topic   string
		handler message.NoPublishHandlerFunc
	}{
		{"replies", h.correlator.ReplyTopic(), h.onReply},
	}
	for _, topic := range noticeTopics {
		configs = append(configs, struct {
			name    string
			topic   string
			handler message.NoPublishHandlerFunc
		}{"notice." + topic, topic, h.onNotice})
	}

	for _, c := range configs {
		sub, err := provider.Subscriber(c.name)
		if err != nil {
			return err
		}

		router.AddConsumerHandler(c.name, c.topic, sub, c.handler).AddMiddleware(
			TraceIDMiddleware,
			LoggingMiddleware(h.logger),
			NewRetryMiddleware().Middleware,
			poison,
			middleware.Timeout(30*time.Second),
		)
	}

	h.logger.Info("bus pipeline ready",
		"reply_topic", h.correlator.ReplyTopic(),
		"notice_topics", noticeTopics,
	)
	return nil
}

// onReply matches an inbound REPLY against the pending request table.
// Undecodable or unmatched messages are terminal: log and ack.
func (h *BusHandler) onReply(msg *message.Message) error {
	ev, err := event.Decode(msg.Payload)
	if err != nil {
		h.logger.Error("undecodable message on reply topic", "msg_id", msg.UUID, "err", err)
		return nil
	}
	h.correlator.Resolve(ev)
	return nil
}

// onNotice fans a broadcast out to connected clients. Push failures are
// handled per-session inside Dispatch; nothing here warrants a redelivery.
func (h *BusHandler) onNotice(msg *message.Message) error {
	ev, err := event.Decode(msg.Payload)
	if err != nil {
		h.logger.Error("undecodable notice", "msg_id", msg.UUID, "err", err)
		return nil
	}
	h.notifier.Dispatch(msg.Context(), ev)
	return nil
}
