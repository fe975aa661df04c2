// Package lifecycle binds an engine context to a management agent: every
// object the context adds is offered to the agent and every object it
// removes is unregistered again.
package lifecycle

import (
	"errors"
	"sync"

	"github.com/drblury/flowmgmt/internal/runtime/agent"
	"github.com/drblury/flowmgmt/internal/runtime/engine"
	"github.com/drblury/flowmgmt/internal/runtime/logging"
	"github.com/drblury/flowmgmt/internal/runtime/managed"
	"github.com/drblury/flowmgmt/internal/runtime/naming"
	"github.com/drblury/flowmgmt/internal/runtime/registry"
	"github.com/drblury/flowmgmt/internal/runtime/stats"

	flowerrors "github.com/drblury/flowmgmt/internal/runtime/errors"
)

type statsKey struct {
	kind  naming.Kind
	local string
}

// binding is what the binder remembers about one registered object.
type binding struct {
	name naming.Name
	// detach clears the observer the binder installed, if any.
	detach func()
}

// Binder implements engine.LifecycleStrategy for one context.
type Binder struct {
	agent     *agent.Agent
	logger    logging.ServiceLogger
	resources *stats.ResourceTracker

	mu      sync.Mutex
	context *engine.Context
	env     *managed.Env
	// identity is assigned at the first successful registration and reused
	// on every restart of the context.
	identity *naming.ContextIdentity
	active   bool
	started  bool
	bindings map[any]binding
	stats    map[statsKey]*stats.Statistics
}

// Option customizes a Binder.
type Option func(*Binder)

// WithLogger sets the binder logger. Defaults to the context logger.
func WithLogger(l logging.ServiceLogger) Option {
	return func(b *Binder) { b.logger = l }
}

// WithResourceTracker shares a resource tracker between contexts.
func WithResourceTracker(r *stats.ResourceTracker) Option {
	return func(b *Binder) { b.resources = r }
}

// Bind creates a binder for c and installs it as a lifecycle strategy.
// Registration happens when the context starts.
func Bind(c *engine.Context, a *agent.Agent, opts ...Option) *Binder {
	b := &Binder{
		agent:    a,
		context:  c,
		bindings: make(map[any]binding),
		stats:    make(map[statsKey]*stats.Statistics),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = c.Logger()
	}
	if b.resources == nil {
		b.resources = stats.NewResourceTracker()
	}
	c.AddLifecycleStrategy(b)
	return b
}

// Identity returns the identity the context is registered under. It is the
// zero value while management is inactive for the context.
func (b *Binder) Identity() naming.ContextIdentity {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.env == nil {
		return naming.ContextIdentity{}
	}
	return b.env.Identity
}

// Active reports whether the context is registered.
func (b *Binder) Active() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.active
}

func (b *Binder) Agent() *agent.Agent { return b.agent }

// Stats returns the statistics of a registered object of the bound context.
// It implements dump.StatsLookup.
func (b *Binder) Stats(kind naming.Kind, local string) *stats.Statistics {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stats[statsKey{kind: kind, local: local}]
}

func (b *Binder) OnContextStarting(c *engine.Context) error {
	if !b.agent.Available() {
		b.agent.Reopen()
	}
	env := &managed.Env{Context: c, Stats: b, Resources: b.resources}
	handle := managed.NewContext(env)
	id, rec, err := b.registerContext(c, handle)
	if errors.Is(err, flowerrors.ErrRegistrationDisabled) {
		b.logger.Debug("Management disabled for context", logging.LogFields{"context": c.Name()})
		return nil
	}
	if err != nil {
		return err
	}
	env.Identity = id

	b.mu.Lock()
	b.env = env
	b.identity = &id
	b.active = true
	b.started = false
	b.mu.Unlock()

	b.bind(c, rec, statsKey{kind: naming.KindContext, local: id.ManagementName}, func(s *stats.Statistics) {
		c.SetObserver(s)
	}, func() { c.SetObserver(nil) })

	b.logger.Info("Context registered for management", logging.LogFields{
		"context":         c.Name(),
		"management_name": id.ManagementName,
	})

	// Endpoints created before the context registered are enlisted now.
	for _, ep := range c.Endpoints() {
		b.OnEndpointAdd(ep)
	}
	return nil
}

// registerContext reuses the identity of an earlier start. When that name
// was taken meanwhile a fresh one is derived, unless the pattern fixes it.
func (b *Binder) registerContext(c *engine.Context, handle registry.Handle) (naming.ContextIdentity, *registry.Record, error) {
	b.mu.Lock()
	cached := b.identity
	b.mu.Unlock()
	if cached != nil {
		rec, err := b.agent.RegisterContextAs(*cached, handle)
		if !errors.Is(err, flowerrors.ErrNameClash) {
			return *cached, rec, err
		}
		b.logger.Debug("Previous management name taken", logging.LogFields{"management_name": cached.ManagementName})
	}
	return b.agent.RegisterContext(c.Name(), c.NameGenerated(), handle)
}

func (b *Binder) OnContextStarted(*engine.Context) {
	b.mu.Lock()
	b.started = b.active
	b.mu.Unlock()
}

// OnContextStartFailed aborts the agent: nothing registered for the context
// stays visible and the agent rejects registrations until the next start.
func (b *Binder) OnContextStartFailed(c *engine.Context, err error) {
	b.logger.Error("Context startup failed, aborting management", err, logging.LogFields{"context": c.Name()})
	b.agent.Abort()
	b.reset()
}

func (b *Binder) OnContextStopped(*engine.Context) {
	b.mu.Lock()
	active := b.active
	var name string
	if b.env != nil {
		name = b.env.Identity.ManagementName
	}
	b.mu.Unlock()
	if !active {
		return
	}
	removed := b.agent.UnregisterContext(name)
	b.reset()
	b.logger.Debug("Context unregistered", logging.LogFields{"management_name": name, "removed": removed})
}

// reset detaches every observer and forgets all bindings.
func (b *Binder) reset() {
	b.mu.Lock()
	bindings := b.bindings
	b.bindings = make(map[any]binding)
	b.stats = make(map[statsKey]*stats.Statistics)
	b.active = false
	b.started = false
	b.mu.Unlock()
	for _, bd := range bindings {
		if bd.detach != nil {
			bd.detach()
		}
	}
}

func (b *Binder) OnEndpointAdd(ep engine.Endpoint) {
	env, ok := b.current()
	if !ok {
		return
	}
	b.register(ep, agent.Request{
		Kind:   naming.KindEndpoint,
		Local:  ep.URI(),
		Handle: managed.NewEndpoint(env, ep),
	}, nil, nil)
}

func (b *Binder) OnServiceAdd(svc engine.Service, route *engine.Route) {
	env, ok := b.current()
	if !ok {
		return
	}
	if route == nil {
		b.register(svc, agent.Request{
			Kind:   naming.KindService,
			Local:  managed.ServiceName(svc),
			Handle: managed.NewService(env, svc),
		}, nil, nil)
		return
	}
	switch s := svc.(type) {
	case engine.Consumer:
		b.register(svc, agent.Request{
			Kind:              naming.KindConsumer,
			Local:             route.ID() + "/" + s.Endpoint().URI(),
			Handle:            managed.NewConsumer(env, s, route),
			AddedAfterStartup: b.afterStartup(),
		}, nil, nil)
	case engine.Producer:
		b.register(svc, agent.Request{
			Kind:              naming.KindProducer,
			Local:             producerLocal(route, s),
			Handle:            managed.NewProducer(env, s, route),
			AddedAfterStartup: b.afterStartup(),
		}, nil, nil)
	}
}

func (b *Binder) OnServiceRemove(svc engine.Service, _ *engine.Route) {
	b.unregister(svc)
}

func (b *Binder) OnRoutesAdd(routes []*engine.Route) {
	env, ok := b.current()
	if !ok {
		return
	}
	after := b.afterStartup()
	for _, r := range routes {
		registered := b.register(r, agent.Request{
			Kind:              naming.KindRoute,
			Local:             r.ID(),
			Handle:            managed.NewRoute(env, r),
			AddedAfterStartup: after,
		}, func(s *stats.Statistics) { r.SetObserver(s) }, func() { r.SetObserver(nil) })
		if !registered {
			continue
		}
		for _, n := range r.Processors() {
			b.register(n, agent.Request{
				Kind:              naming.KindProcessor,
				Local:             n.ID(),
				Handle:            managed.NewProcessor(env, n),
				AddedAfterStartup: after,
				CustomID:          n.HasCustomID(),
				Internal:          n.IsInternal(),
			}, func(s *stats.Statistics) { n.SetObserver(s) }, func() { n.SetObserver(nil) })
		}
	}
}

func (b *Binder) OnRoutesRemove(routes []*engine.Route) {
	for _, r := range routes {
		for _, n := range r.Processors() {
			b.unregister(n)
		}
		b.unregister(r)
	}
}

func (b *Binder) OnThreadPoolAdd(pool *engine.ThreadPool) {
	env, ok := b.current()
	if !ok {
		return
	}
	b.register(pool, agent.Request{
		Kind:              naming.KindThreadPool,
		Local:             pool.ID(),
		Handle:            managed.NewThreadPool(env, pool),
		AddedAfterStartup: b.afterStartup(),
	}, nil, nil)
}

func (b *Binder) OnThreadPoolRemove(pool *engine.ThreadPool) {
	b.unregister(pool)
}

func (b *Binder) current() (*managed.Env, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.env, b.active
}

func (b *Binder) afterStartup() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.started
}

// register offers req to the agent under the bound context. attach installs
// the statistics of measured objects. A clash is logged and the object is
// left unmanaged.
func (b *Binder) register(obj any, req agent.Request, attach func(*stats.Statistics), detach func()) bool {
	env, ok := b.current()
	if !ok {
		return false
	}
	b.mu.Lock()
	_, bound := b.bindings[obj]
	b.mu.Unlock()
	if bound {
		return true
	}
	req.Context = env.Identity.ManagementName
	if !b.agent.Eligible(req) {
		return false
	}
	rec, err := b.agent.Register(req)
	if err != nil {
		if !errors.Is(err, flowerrors.ErrRegistrationDisabled) {
			b.logger.Error("Cannot register managed object", err, logging.LogFields{
				"kind":  req.Kind.String(),
				"local": req.Local,
			})
		}
		return false
	}
	b.bind(obj, rec, statsKey{kind: req.Kind, local: rec.Name.Local}, attach, detach)
	return true
}

func (b *Binder) bind(obj any, rec *registry.Record, key statsKey, attach func(*stats.Statistics), detach func()) {
	b.mu.Lock()
	b.bindings[obj] = binding{name: rec.Name, detach: detach}
	if rec.Stats != nil {
		b.stats[key] = rec.Stats
	}
	b.mu.Unlock()
	if attach != nil && rec.Stats != nil {
		attach(rec.Stats)
	}
}

func (b *Binder) unregister(obj any) {
	b.mu.Lock()
	bd, ok := b.bindings[obj]
	if ok {
		delete(b.bindings, obj)
		delete(b.stats, statsKey{kind: bd.name.Kind, local: bd.name.Local})
	}
	b.mu.Unlock()
	if !ok {
		return
	}
	if bd.detach != nil {
		bd.detach()
	}
	b.agent.Unregister(bd.name)
}

// producerLocal names a producer after the step that owns it, falling back
// to the endpoint uri for producers outside the step tree.
func producerLocal(r *engine.Route, p engine.Producer) string {
	if n := findProducerNode(r, p); n != nil {
		return r.ID() + "/" + n.ID()
	}
	return r.ID() + "/" + p.Endpoint().URI()
}

func findProducerNode(r *engine.Route, p engine.Producer) *engine.Node {
	var found *engine.Node
	var visit func(nodes []*engine.Node)
	visit = func(nodes []*engine.Node) {
		for _, n := range nodes {
			if found != nil {
				return
			}
			if n.Producer() == p {
				found = n
				return
			}
			visit(n.Children())
		}
	}
	visit(r.Nodes())
	if found == nil && r.ErrorPolicy() != nil {
		visit(r.ErrorPolicy().Steps())
	}
	return found
}
