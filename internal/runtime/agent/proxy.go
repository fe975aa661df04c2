package agent

import (
	"context"
	"fmt"

	"github.com/drblury/flowmgmt/internal/runtime/managed"
	"github.com/drblury/flowmgmt/internal/runtime/naming"
	"github.com/drblury/flowmgmt/internal/runtime/registry"
	"github.com/drblury/flowmgmt/internal/runtime/stats"

	flowerrors "github.com/drblury/flowmgmt/internal/runtime/errors"
)

// Proxy addresses a managed object by name. Every call looks the name up
// again, so a proxy never holds on to an unregistered object.
type Proxy struct {
	agent *Agent
	name  naming.Name
}

// Proxy returns a proxy for name. The name does not have to be registered yet.
func (a *Agent) Proxy(name naming.Name) *Proxy {
	return &Proxy{agent: a, name: name}
}

func (p *Proxy) Name() naming.Name { return p.name }

func (p *Proxy) record() (*registry.Record, error) {
	rec, ok := p.agent.Lookup(p.name)
	if !ok {
		return nil, fmt.Errorf("%s: %w", p.name, flowerrors.ErrNotFound)
	}
	return rec, nil
}

func (p *Proxy) Handle() (registry.Handle, error) {
	rec, err := p.record()
	if err != nil {
		return nil, err
	}
	return rec.Handle, nil
}

// Stats returns the statistics of the object, nil for unmeasured kinds.
func (p *Proxy) Stats() (*stats.Statistics, error) {
	rec, err := p.record()
	if err != nil {
		return nil, err
	}
	return rec.Stats, nil
}

func (p *Proxy) AttributeNames() ([]string, error) {
	h, err := p.Handle()
	if err != nil {
		return nil, err
	}
	return h.AttributeNames(), nil
}

func (p *Proxy) Attribute(name string) (any, error) {
	h, err := p.Handle()
	if err != nil {
		return nil, err
	}
	return h.Attribute(name)
}

func (p *Proxy) Invoke(ctx context.Context, op string, args ...any) (any, error) {
	h, err := p.Handle()
	if err != nil {
		return nil, err
	}
	return h.Invoke(ctx, op, args...)
}

// Attr reads an attribute and asserts its type. A value of another type
// fails with ErrCapabilityMismatch.
func Attr[V any](p *Proxy, name string) (V, error) {
	var zero V
	v, err := p.Attribute(name)
	if err != nil {
		return zero, err
	}
	typed, ok := v.(V)
	if !ok {
		return zero, fmt.Errorf("%s attribute %q is %T: %w", p.name, name, v, flowerrors.ErrCapabilityMismatch)
	}
	return typed, nil
}

// TypedProxy is a Proxy whose handle is known to be a T.
type TypedProxy[T registry.Handle] struct {
	*Proxy
}

type (
	ContextProxy    = TypedProxy[*managed.Context]
	RouteProxy      = TypedProxy[*managed.Route]
	ProcessorProxy  = TypedProxy[*managed.Processor]
	EndpointProxy   = TypedProxy[*managed.Endpoint]
	ProducerProxy   = TypedProxy[*managed.Producer]
	ConsumerProxy   = TypedProxy[*managed.Consumer]
	ThreadPoolProxy = TypedProxy[*managed.ThreadPool]
	ServiceProxy    = TypedProxy[*managed.Service]
)

// NewProxy returns a typed proxy for name. It fails with ErrNotFound when
// nothing is registered under name and with ErrCapabilityMismatch when the
// registered object is not a T.
func NewProxy[T registry.Handle](a *Agent, name naming.Name) (*TypedProxy[T], error) {
	p := &TypedProxy[T]{Proxy: a.Proxy(name)}
	if _, err := p.Get(); err != nil {
		return nil, err
	}
	return p, nil
}

// Get resolves the handle again and asserts its type.
func (p *TypedProxy[T]) Get() (T, error) {
	var zero T
	h, err := p.Handle()
	if err != nil {
		return zero, err
	}
	typed, ok := h.(T)
	if !ok {
		return zero, fmt.Errorf("%s is %T: %w", p.name, h, flowerrors.ErrCapabilityMismatch)
	}
	return typed, nil
}

// ContextProxyFor resolves the managed context registered under the given
// management name.
func (a *Agent) ContextProxyFor(managementName string) (*ContextProxy, error) {
	return NewProxy[*managed.Context](a, a.Strategy().Resolve(naming.KindContext, managementName, ""))
}

// RouteProxyFor resolves a managed route of a context.
func (a *Agent) RouteProxyFor(managementName, routeID string) (*RouteProxy, error) {
	return NewProxy[*managed.Route](a, a.Strategy().Resolve(naming.KindRoute, managementName, routeID))
}

// ProcessorProxyFor resolves a managed processor of a context.
func (a *Agent) ProcessorProxyFor(managementName, processorID string) (*ProcessorProxy, error) {
	return NewProxy[*managed.Processor](a, a.Strategy().Resolve(naming.KindProcessor, managementName, processorID))
}

// EndpointProxyFor resolves a managed endpoint of a context.
func (a *Agent) EndpointProxyFor(managementName, uri string) (*EndpointProxy, error) {
	return NewProxy[*managed.Endpoint](a, a.Strategy().Resolve(naming.KindEndpoint, managementName, uri))
}
