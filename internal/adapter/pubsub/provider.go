package pubsub

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-amqp/v3/pkg/amqp"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// Provider builds publishers and subscribers for the lifecycle bus. With an
// AMQP URL every queue binds to a durable topic exchange; without one a
// single in-process channel serves both ends.
type Provider struct {
	amqpURL  string
	exchange string
	logger   watermill.LoggerAdapter

	mu      sync.Mutex
	local   *gochannel.GoChannel
	closers []func() error
}

func NewProvider(amqpURL, exchange string, logger watermill.LoggerAdapter) *Provider {
	p := &Provider{
		amqpURL:  amqpURL,
		exchange: exchange,
		logger:   logger,
	}
	if amqpURL == "" {
		p.local = gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 256}, logger)
		p.closers = append(p.closers, p.local.Close)
	}
	return p
}

// IsLocal reports whether the bus stays in-process.
func (p *Provider) IsLocal() bool { return p.local != nil }

func (p *Provider) topicConfig(queue string) amqp.Config {
	cfg := amqp.NewDurablePubSubConfig(p.amqpURL, amqp.GenerateQueueNameConstant(queue))
	cfg.Exchange = amqp.ExchangeConfig{
		GenerateName: func(string) string { return p.exchange },
		Type:         "topic",
		Durable:      true,
	}
	cfg.Publish.GenerateRoutingKey = func(topic string) string { return topic }
	cfg.QueueBind.GenerateRoutingKey = func(topic string) string { return topic }
	return cfg
}

func (p *Provider) BuildPublisher() (message.Publisher, error) {
	if p.local != nil {
		return p.local, nil
	}

	pub, err := amqp.NewPublisher(p.topicConfig(""), p.logger)
	if err != nil {
		return nil, fmt.Errorf("amqp publisher: %w", err)
	}
	p.track(pub.Close)
	return pub, nil
}

// BuildSubscriber binds queue to the exchange; the topic passed to Subscribe
// becomes the binding key.
func (p *Provider) BuildSubscriber(queue string) (message.Subscriber, error) {
	if p.local != nil {
		return p.local, nil
	}

	sub, err := amqp.NewSubscriber(p.topicConfig(queue), p.logger)
	if err != nil {
		return nil, fmt.Errorf("amqp subscriber %s: %w", queue, err)
	}
	p.track(sub.Close)
	return sub, nil
}

func (p *Provider) track(fn func() error) {
	p.mu.Lock()
	p.closers = append(p.closers, fn)
	p.mu.Unlock()
}

func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	for i := len(p.closers) - 1; i >= 0; i-- {
		if err := p.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	p.closers = nil
	return errors.Join(errs...)
}
