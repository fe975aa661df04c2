package engine

import (
	"context"
	"net/url"
)

// Processor handles one exchange.
type Processor func(ctx context.Context, ex *Exchange) error

// Service is anything with a managed lifecycle: endpoints, producers,
// consumers and context services such as the shutdown strategy.
type Service interface {
	Status() Status
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Component creates endpoints for one uri scheme.
type Component interface {
	CreateEndpoint(c *Context, uri string, remaining string, params url.Values) (Endpoint, error)
}

// Endpoint is a named message source or destination.
type Endpoint interface {
	Service
	// URI is the normalized endpoint uri.
	URI() string
	Singleton() bool
	CreateProducer() (Producer, error)
	CreateConsumer(processor Processor) (Consumer, error)
}

// Producer sends exchanges to its endpoint.
type Producer interface {
	Service
	Endpoint() Endpoint
	Process(ctx context.Context, ex *Exchange) error
}

// Consumer feeds exchanges from its endpoint into a route.
type Consumer interface {
	Service
	Endpoint() Endpoint
}

// BrowsableEndpoint exposes the exchanges an endpoint currently holds.
type BrowsableEndpoint interface {
	Exchanges() []*Exchange
}

// QueueSizer is implemented by buffering endpoints.
type QueueSizer interface {
	QueueSize() int
}

// serviceSupport implements the Status half of Service.
type serviceSupport struct {
	status statusHolder
}

func (s *serviceSupport) Status() Status { return s.status.Load() }

func (s *serviceSupport) Start(context.Context) error {
	s.status.Store(StatusStarted)
	return nil
}

func (s *serviceSupport) Stop(context.Context) error {
	s.status.Store(StatusStopped)
	return nil
}
