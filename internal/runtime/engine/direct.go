package engine

import (
	"context"
	"fmt"
	"net/url"
	"sync/atomic"

	flowerrors "github.com/drblury/flowmgmt/internal/runtime/errors"
)

// DirectComponent provides synchronous in-process endpoints: the producer
// runs the consuming route on the caller's goroutine.
type DirectComponent struct{}

func (DirectComponent) CreateEndpoint(_ *Context, uri, remaining string, _ url.Values) (Endpoint, error) {
	if remaining == "" {
		return nil, fmt.Errorf("direct endpoint %q: %w: missing name", uri, flowerrors.ErrInvalidArgument)
	}
	return &directEndpoint{uri: uri}, nil
}

type directEndpoint struct {
	serviceSupport
	uri      string
	consumer atomic.Pointer[directConsumer]
}

func (e *directEndpoint) URI() string     { return e.uri }
func (e *directEndpoint) Singleton() bool { return true }

func (e *directEndpoint) CreateProducer() (Producer, error) {
	return &directProducer{endpoint: e}, nil
}

func (e *directEndpoint) CreateConsumer(processor Processor) (Consumer, error) {
	return &directConsumer{endpoint: e, processor: processor}, nil
}

type directProducer struct {
	serviceSupport
	endpoint *directEndpoint
}

func (p *directProducer) Endpoint() Endpoint { return p.endpoint }

func (p *directProducer) Process(ctx context.Context, ex *Exchange) error {
	consumer := p.endpoint.consumer.Load()
	if consumer == nil {
		return fmt.Errorf("%s: %w", p.endpoint.uri, flowerrors.ErrNoConsumers)
	}
	ex.depth++
	defer func() { ex.depth-- }()
	return consumer.processor(ctx, ex)
}

type directConsumer struct {
	serviceSupport
	endpoint  *directEndpoint
	processor Processor
}

func (c *directConsumer) Endpoint() Endpoint { return c.endpoint }

func (c *directConsumer) Start(ctx context.Context) error {
	if !c.endpoint.consumer.CompareAndSwap(nil, c) {
		return fmt.Errorf("%s: %w: endpoint already has a consumer", c.endpoint.uri, flowerrors.ErrInvalidArgument)
	}
	return c.serviceSupport.Start(ctx)
}

func (c *directConsumer) Stop(ctx context.Context) error {
	c.endpoint.consumer.CompareAndSwap(c, nil)
	return c.serviceSupport.Stop(ctx)
}
