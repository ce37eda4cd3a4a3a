package pubsub

import (
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-amqp/v3/pkg/amqp"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// Provider abstracts how publishers and subscribers are built, so the rest
// of the service does not care whether the bus is RabbitMQ or in-process.
type Provider interface {
	Publisher() (message.Publisher, error)
	// Subscriber builds a subscriber consuming from a queue bound to the
	// given topic on the shared exchange. Queue names must be unique per
	// node so every instance sees every broadcast.
	Subscriber(queue string) (message.Subscriber, error)
	Close() error
}

// NewAMQPProvider connects to RabbitMQ with a durable topic exchange. The
// queueSuffix distinguishes this node's queues from its siblings'.
func NewAMQPProvider(url, exchange, queueSuffix string, logger watermill.LoggerAdapter) (Provider, error) {
	build := func(queue string) amqp.Config {
		cfg := amqp.NewDurablePubSubConfig(url,
			amqp.GenerateQueueNameTopicNameWithSuffix(queueSuffix+"."+queue))
		cfg.Exchange.GenerateName = func(string) string { return exchange }
		cfg.Exchange.Type = "topic"
		cfg.Exchange.Durable = true
		cfg.QueueBind.GenerateRoutingKey = func(topic string) string { return topic }
		cfg.Publish.GenerateRoutingKey = func(topic string) string { return topic }
		return cfg
	}

	pub, err := amqp.NewPublisher(build("pub"), logger)
	if err != nil {
		return nil, fmt.Errorf("pubsub: amqp publisher: %w", err)
	}

	return &amqpProvider{url: url, build: build, pub: pub, logger: logger}, nil
}

type amqpProvider struct {
	url    string
	build  func(queue string) amqp.Config
	pub    message.Publisher
	logger watermill.LoggerAdapter
	subs   []message.Subscriber
}

func (p *amqpProvider) Publisher() (message.Publisher, error) {
	return p.pub, nil
}

func (p *amqpProvider) Subscriber(queue string) (message.Subscriber, error) {
	sub, err := amqp.NewSubscriber(p.build(queue), p.logger)
	if err != nil {
		return nil, fmt.Errorf("pubsub: amqp subscriber %q: %w", queue, err)
	}
	p.subs = append(p.subs, sub)
	return sub, nil
}

func (p *amqpProvider) Close() error {
	err := p.pub.Close()
	for _, s := range p.subs {
		if cerr := s.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

// NewMemoryProvider builds an in-process bus, used by the dev driver and the
// test suite. Publisher and subscribers share one gochannel instance.
func NewMemoryProvider(logger watermill.LoggerAdapter) Provider {
	ps := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: 256,
	}, logger)
	return &memoryProvider{ps: ps}
}

type memoryProvider struct {
	ps *gochannel.GoChannel
}

func (p *memoryProvider) Publisher() (message.Publisher, error)        { return p.ps, nil }
func (p *memoryProvider) Subscriber(string) (message.Subscriber, error) { return p.ps, nil }
func (p *memoryProvider) Close() error                                 { return p.ps.Close() }
