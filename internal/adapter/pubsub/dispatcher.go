package pubsub

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/kodokojo/eventgate/internal/domain/event"
)

// Dispatcher publishes domain events without exposing watermill to callers.
type Dispatcher interface {
	Publish(ctx context.Context, ev *event.Event) error
	Publisher() message.Publisher
}

type eventDispatcher struct {
	publisher message.Publisher
}

func NewDispatcher(pub message.Publisher) Dispatcher {
	return &eventDispatcher{publisher: pub}
}

// TopicFor maps an event to its bus topic: replies go to the requester's
// reply topic, everything else is routed by event type.
func TopicFor(ev *event.Event) string {
	if ev.Role == event.RoleReply {
		if replyTo := ev.Header(event.HeaderReplyTo); replyTo != "" {
			return replyTo
		}
	}
	return ev.Type
}

func (d *eventDispatcher) Publish(ctx context.Context, ev *event.Event) error {
	if ev == nil {
		return fmt.Errorf("dispatcher: cannot publish nil event")
	}

	payload, err := event.Encode(ev)
	if err != nil {
		return fmt.Errorf("dispatcher: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)
	msg.Metadata.Set("type", ev.Type)
	if ev.CorrelationID != "" {
		msg.Metadata.Set("correlation_id", ev.CorrelationID)
	}

	topic := TopicFor(ev)
	if err := d.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("dispatcher: publish to %q: %w", topic, err)
	}
	return nil
}

func (d *eventDispatcher) Publisher() message.Publisher {
	return d.publisher
}
