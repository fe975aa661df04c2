package engine

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"

	flowerrors "github.com/drblury/flowmgmt/internal/runtime/errors"
	"github.com/drblury/flowmgmt/internal/runtime/logging"
	"github.com/drblury/flowmgmt/internal/runtime/metadata"
)

// BrokerComponent bridges routes to a Watermill publisher and subscriber, so
// "broker:orders" publishes to and consumes from the "orders" topic of
// whichever transport backs the component.
type BrokerComponent struct {
	Publisher  message.Publisher
	Subscriber message.Subscriber
}

func (b *BrokerComponent) CreateEndpoint(c *Context, uri, remaining string, _ url.Values) (Endpoint, error) {
	if remaining == "" {
		return nil, fmt.Errorf("broker endpoint %q: %w: missing topic", uri, flowerrors.ErrInvalidArgument)
	}
	return &brokerEndpoint{uri: uri, topic: remaining, component: b, logger: c.logger}, nil
}

type brokerEndpoint struct {
	serviceSupport
	uri       string
	topic     string
	component *BrokerComponent
	logger    logging.ServiceLogger
}

func (e *brokerEndpoint) URI() string     { return e.uri }
func (e *brokerEndpoint) Singleton() bool { return true }

func (e *brokerEndpoint) CreateProducer() (Producer, error) {
	if e.component.Publisher == nil {
		return nil, fmt.Errorf("%s: %w: no publisher configured", e.uri, flowerrors.ErrInvalidArgument)
	}
	return &brokerProducer{endpoint: e}, nil
}

func (e *brokerEndpoint) CreateConsumer(processor Processor) (Consumer, error) {
	if e.component.Subscriber == nil {
		return nil, fmt.Errorf("%s: %w: no subscriber configured", e.uri, flowerrors.ErrInvalidArgument)
	}
	return &brokerConsumer{endpoint: e, processor: processor}, nil
}

type brokerProducer struct {
	serviceSupport
	endpoint *brokerEndpoint
}

func (p *brokerProducer) Endpoint() Endpoint { return p.endpoint }

func (p *brokerProducer) Process(_ context.Context, ex *Exchange) error {
	out := message.NewMessage(ex.ID, append([]byte(nil), ex.Message.Payload...))
	out.Metadata = metadata.Clone(ex.Message.Metadata)
	if err := p.endpoint.component.Publisher.Publish(p.endpoint.topic, out); err != nil {
		return fmt.Errorf("publish to %s: %w", p.endpoint.topic, err)
	}
	return nil
}

type brokerConsumer struct {
	serviceSupport
	endpoint  *brokerEndpoint
	processor Processor

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func (c *brokerConsumer) Endpoint() Endpoint { return c.endpoint }

func (c *brokerConsumer) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	messages, err := c.endpoint.component.Subscriber.Subscribe(runCtx, c.endpoint.topic)
	if err != nil {
		cancel()
		return fmt.Errorf("subscribe to %s: %w", c.endpoint.topic, err)
	}
	done := make(chan struct{})
	c.mu.Lock()
	c.cancel, c.done = cancel, done
	c.mu.Unlock()

	go c.run(runCtx, messages, done)
	return c.serviceSupport.Start(ctx)
}

func (c *brokerConsumer) run(ctx context.Context, messages <-chan *message.Message, done chan struct{}) {
	defer close(done)
	for msg := range messages {
		msg.SetContext(ctx)
		ex := FromMessage(msg)
		// Failures were already through the route's error policy, so the
		// message is acked either way to keep the broker from redelivering.
		if err := c.processor(ctx, ex); err != nil {
			c.endpoint.logger.Error("Broker exchange failed", err, logging.LogFields{
				"topic":       c.endpoint.topic,
				"exchange_id": ex.ID,
			})
		}
		msg.Ack()
	}
}

func (c *brokerConsumer) Stop(ctx context.Context) error {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	return c.serviceSupport.Stop(ctx)
}
