// Package mgmttest builds managed contexts for tests. A Harness owns one
// engine context bound to its own agent; siblings share the registry and the
// name counter so clashes between contexts can be provoked.
package mgmttest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/drblury/flowmgmt/internal/runtime/agent"
	"github.com/drblury/flowmgmt/internal/runtime/config"
	"github.com/drblury/flowmgmt/internal/runtime/engine"
	"github.com/drblury/flowmgmt/internal/runtime/lifecycle"
	"github.com/drblury/flowmgmt/internal/runtime/naming"
	"github.com/drblury/flowmgmt/internal/runtime/registry"
)

// Harness is a managed context under test.
type Harness struct {
	T        testing.TB
	Config   *config.Config
	Counter  *naming.Counter
	Registry *registry.Registry
	Agent    *agent.Agent
	Context  *engine.Context
	Binder   *lifecycle.Binder
}

type options struct {
	configure  []func(*config.Config)
	contextOps []engine.Option
	counter    *naming.Counter
	registry   *registry.Registry
	hostname   func() (string, error)
}

// Option customizes a Harness.
type Option func(*options)

// WithConfig adjusts the management settings before the agent is built.
func WithConfig(fn func(*config.Config)) Option {
	return func(o *options) { o.configure = append(o.configure, fn) }
}

// WithContextOptions passes options to engine.NewContext.
func WithContextOptions(opts ...engine.Option) Option {
	return func(o *options) { o.contextOps = append(o.contextOps, opts...) }
}

func WithHostname(host string) Option {
	return func(o *options) { o.hostname = func() (string, error) { return host, nil } }
}

// New builds a stopped harness with a fresh counter starting at zero.
func New(t testing.TB, opts ...Option) *Harness {
	t.Helper()
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.counter == nil {
		o.counter = naming.NewCounterAt(0)
	}
	if o.registry == nil {
		o.registry = registry.New()
	}

	cfg := config.Default()
	for _, fn := range o.configure {
		fn(cfg)
	}
	agentOpts := []agent.Option{agent.WithRegistry(o.registry), agent.WithCounter(o.counter)}
	if o.hostname != nil {
		agentOpts = append(agentOpts, agent.WithHostnameFunc(o.hostname))
	}
	a, err := agent.New(cfg, agentOpts...)
	require.NoError(t, err)

	c := engine.NewContext(o.contextOps...)
	h := &Harness{
		T:        t,
		Config:   cfg,
		Counter:  o.counter,
		Registry: o.registry,
		Agent:    a,
		Context:  c,
		Binder:   lifecycle.Bind(c, a),
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = c.Stop(ctx)
	})
	return h
}

// Sibling builds another harness sharing the registry and counter of h.
func (h *Harness) Sibling(opts ...Option) *Harness {
	h.T.Helper()
	shared := func(o *options) {
		o.counter = h.Counter
		o.registry = h.Registry
	}
	return New(h.T, append([]Option{shared}, opts...)...)
}

// Start adds defs and starts the context, failing the test on error.
func (h *Harness) Start(defs ...*engine.RouteDefinition) {
	h.T.Helper()
	require.NoError(h.T, h.TryStart(defs...))
}

// TryStart adds defs and starts the context.
func (h *Harness) TryStart(defs ...*engine.RouteDefinition) error {
	ctx := context.Background()
	if len(defs) > 0 {
		if err := h.Context.AddRoutes(ctx, defs...); err != nil {
			return err
		}
	}
	return h.Context.Start(ctx)
}

// ManagementName is the name the context is registered under.
func (h *Harness) ManagementName() string {
	return h.Binder.Identity().ManagementName
}

// Name resolves a name inside the harness context.
func (h *Harness) Name(kind naming.Kind, local string) naming.Name {
	return h.Agent.Strategy().Resolve(kind, h.ManagementName(), local)
}

// Names lists the registered names of kind in the harness context.
func (h *Harness) Names(kind naming.Kind) []naming.Name {
	p := registry.KindPattern(h.Agent.Strategy().Domain, kind)
	p.Context = naming.EscapeLocal(h.ManagementName())
	return h.Agent.Query(p)
}

// Locals lists the local names of kind in the harness context.
func (h *Harness) Locals(kind naming.Kind) []string {
	names := h.Names(kind)
	out := make([]string, 0, len(names))
	for _, n := range names {
		out = append(out, n.Local)
	}
	return out
}

// Attr reads an attribute, failing the test on error.
func (h *Harness) Attr(kind naming.Kind, local, attr string) any {
	h.T.Helper()
	v, err := h.Agent.Proxy(h.Name(kind, local)).Attribute(attr)
	require.NoError(h.T, err)
	return v
}

// Invoke runs an operation, failing the test on error.
func (h *Harness) Invoke(kind naming.Kind, local, op string, args ...any) any {
	h.T.Helper()
	v, err := h.Agent.Proxy(h.Name(kind, local)).Invoke(context.Background(), op, args...)
	require.NoError(h.T, err)
	return v
}

// Mock returns the mock endpoint for uri.
func (h *Harness) Mock(uri string) *engine.MockEndpoint {
	h.T.Helper()
	ep, err := h.Context.Endpoint(uri)
	require.NoError(h.T, err)
	mock, ok := ep.(*engine.MockEndpoint)
	require.True(h.T, ok, "%s is not a mock endpoint", uri)
	return mock
}

// Send sends body to uri, failing the test on error.
func (h *Harness) Send(uri string, body any) {
	h.T.Helper()
	require.NoError(h.T, h.Context.SendBody(context.Background(), uri, body))
}
