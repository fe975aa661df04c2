package engine

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"net/url"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	flowerrors "github.com/drblury/flowmgmt/internal/runtime/errors"
	"github.com/drblury/flowmgmt/internal/runtime/logging"
	"github.com/drblury/flowmgmt/internal/runtime/naming"
)

const (
	// DefaultContextName is used when no name is given.
	DefaultContextName = "camel"
	// Version is reported by contexts that do not set their own.
	Version = "1.0.0"

	tracerName = "github.com/drblury/flowmgmt/engine"
)

// Context owns routes, endpoints and services and drives their lifecycle.
type Context struct {
	name            string
	generatedName   bool
	version         string
	logger          logging.ServiceLogger
	tracer          trace.Tracer
	hooks           ExchangeHooks
	sourceLocations bool
	globalOptions   map[string]string
	components      map[string]Component

	// ctrl serializes lifecycle changes; mu guards the collections below.
	ctrl sync.Mutex
	mu   sync.RWMutex

	definitions   []*RouteDefinition
	templates     []*RouteDefinition
	intercepts    []*Node
	routes        []*Route
	endpoints     map[string]Endpoint
	endpointOrder []string
	services      []Service
	strategies    []LifecycleStrategy
	nodeSeq       map[string]int
	routeSeq      int

	shutdown  *ShutdownStrategy
	status    statusHolder
	observer  observerSlot
	startedAt atomic.Int64
}

// Option configures a Context.
type Option func(*Context)

// WithName sets the context name. Without it the context is called "camel"
// and the name counts as generated.
func WithName(name string) Option {
	return func(c *Context) {
		if name != "" {
			c.name = name
			c.generatedName = false
		}
	}
}

func WithLogger(logger logging.ServiceLogger) Option {
	return func(c *Context) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(c *Context) {
		if tracer != nil {
			c.tracer = tracer
		}
	}
}

func WithVersion(version string) Option {
	return func(c *Context) { c.version = version }
}

// WithGlobalOption sets a free-form context option shown by management.
func WithGlobalOption(key, value string) Option {
	return func(c *Context) { c.globalOptions[key] = value }
}

// WithSourceLocations includes step source locations in structure output.
func WithSourceLocations(enabled bool) Option {
	return func(c *Context) { c.sourceLocations = enabled }
}

// WithComponent registers a component for scheme, replacing a default one.
func WithComponent(scheme string, component Component) Option {
	return func(c *Context) { c.components[scheme] = component }
}

func WithHooks(hooks ExchangeHooks) Option {
	return func(c *Context) { c.hooks = c.hooks.Merge(hooks) }
}

func WithShutdownTimeout(d time.Duration) Option {
	return func(c *Context) { c.shutdown.SetTimeout(d) }
}

// WithLifecycleStrategy adds a lifecycle strategy before anything is created.
func WithLifecycleStrategy(s LifecycleStrategy) Option {
	return func(c *Context) { c.strategies = append(c.strategies, s) }
}

// NewContext returns a stopped context with the direct, seda, mock and log
// components.
func NewContext(opts ...Option) *Context {
	c := &Context{
		name:          DefaultContextName,
		generatedName: true,
		version:       Version,
		logger:        logging.NewNopServiceLogger(),
		tracer:        otel.Tracer(tracerName),
		globalOptions: map[string]string{},
		components: map[string]Component{
			"direct": DirectComponent{},
			"seda":   SedaComponent{},
			"mock":   MockComponent{},
			"log":    LogComponent{},
		},
		endpoints: map[string]Endpoint{},
		nodeSeq:   map[string]int{},
	}
	c.shutdown = newShutdownStrategy(0, c.logger)
	for _, opt := range opts {
		opt(c)
	}
	c.shutdown.logger = c.logger
	c.services = []Service{c.shutdown}
	return c
}

func (c *Context) Name() string                        { return c.name }
func (c *Context) NameGenerated() bool                 { return c.generatedName }
func (c *Context) Version() string                     { return c.version }
func (c *Context) Logger() logging.ServiceLogger       { return c.logger }
func (c *Context) Status() Status                      { return c.status.Load() }
func (c *Context) ShutdownStrategy() *ShutdownStrategy { return c.shutdown }
func (c *Context) SourceLocationsEnabled() bool        { return c.sourceLocations }
func (c *Context) SetObserver(o Observer)              { c.observer.Set(o) }
func (c *Context) GlobalOptions() map[string]string    { return maps.Clone(c.globalOptions) }

// Uptime is zero while the context is not started.
func (c *Context) Uptime() time.Duration {
	started := c.startedAt.Load()
	if started == 0 || !c.status.Is(StatusStarted) {
		return 0
	}
	return time.Since(time.Unix(0, started))
}

// AddLifecycleStrategy registers s for future events.
func (c *Context) AddLifecycleStrategy(s LifecycleStrategy) {
	c.mu.Lock()
	c.strategies = append(c.strategies, s)
	c.mu.Unlock()
}

func (c *Context) lifecycle() []LifecycleStrategy {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.strategies)
}

// Routes returns the built routes in start order.
func (c *Context) Routes() []*Route {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.routes)
}

func (c *Context) Route(id string) *Route {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, r := range c.routes {
		if r.id == id {
			return r
		}
	}
	return nil
}

// Definitions returns the non-template route definitions.
func (c *Context) Definitions() []*RouteDefinition {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.definitions)
}

func (c *Context) Templates() []*RouteDefinition {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.templates)
}

// Endpoints returns the endpoints in creation order.
func (c *Context) Endpoints() []Endpoint {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Endpoint, 0, len(c.endpointOrder))
	for _, uri := range c.endpointOrder {
		out = append(out, c.endpoints[uri])
	}
	return out
}

// Services returns the context-level services.
func (c *Context) Services() []Service {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.services)
}

// ThreadPools returns the pools owned by route steps.
func (c *Context) ThreadPools() []*ThreadPool {
	var out []*ThreadPool
	for _, r := range c.Routes() {
		out = append(out, r.ThreadPools()...)
	}
	return out
}

// InterceptFrom prepends steps to every route built afterwards.
func (c *Context) InterceptFrom(steps ...*Node) {
	c.mu.Lock()
	c.intercepts = append(c.intercepts, steps...)
	c.mu.Unlock()
}

// Endpoint returns the endpoint for uri, creating it on first use.
func (c *Context) Endpoint(uri string) (Endpoint, error) {
	normalized := naming.NormalizeEndpointURI(uri)

	c.mu.Lock()
	if ep, ok := c.endpoints[normalized]; ok {
		c.mu.Unlock()
		return ep, nil
	}
	scheme := naming.Scheme(normalized)
	component, ok := c.components[scheme]
	if !ok {
		c.mu.Unlock()
		return nil, fmt.Errorf("endpoint %q: %w: %q", uri, flowerrors.ErrUnknownComponent, scheme)
	}
	rest := strings.TrimPrefix(strings.TrimPrefix(normalized, scheme+":"), "//")
	remaining, rawQuery, _ := strings.Cut(rest, "?")
	params, err := url.ParseQuery(rawQuery)
	if err != nil {
		c.mu.Unlock()
		return nil, fmt.Errorf("endpoint %q: %w", uri, err)
	}
	ep, err := component.CreateEndpoint(c, normalized, remaining, params)
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}
	c.endpoints[normalized] = ep
	c.endpointOrder = append(c.endpointOrder, normalized)
	c.mu.Unlock()

	if c.status.Is(StatusStarted) {
		if err := ep.Start(context.Background()); err != nil {
			return nil, fmt.Errorf("start endpoint %q: %w", normalized, err)
		}
	}
	for _, s := range c.lifecycle() {
		s.OnEndpointAdd(ep)
	}
	return ep, nil
}

// AddRoutes adds route definitions. Templates are kept aside. Routes added to
// a started context are built and started right away.
func (c *Context) AddRoutes(ctx context.Context, defs ...*RouteDefinition) error {
	c.ctrl.Lock()
	defer c.ctrl.Unlock()

	for _, def := range defs {
		if def.IsTemplate() {
			c.mu.Lock()
			c.templates = append(c.templates, def)
			c.mu.Unlock()
			continue
		}
		if err := c.addDefinition(def); err != nil {
			return err
		}
		if !c.status.Is(StatusStarted) {
			continue
		}
		r, err := c.buildRoute(def)
		if err != nil {
			c.dropDefinition(def)
			return err
		}
		c.announce([]*Route{r})
		if def.autoStartup {
			if err := r.start(ctx); err != nil {
				return err
			}
		}
	}
	return nil
}

// AddRouteFromTemplate instantiates a template as a new route.
func (c *Context) AddRouteFromTemplate(ctx context.Context, routeID, templateID string, params map[string]string) error {
	var tmpl *RouteDefinition
	for _, t := range c.Templates() {
		if t.templateID == templateID {
			tmpl = t
			break
		}
	}
	if tmpl == nil {
		return fmt.Errorf("route template %q: %w", templateID, flowerrors.ErrNotFound)
	}
	for _, p := range tmpl.templateParams {
		if _, ok := params[p]; !ok {
			return fmt.Errorf("route template %q: %w: missing parameter %q", templateID, flowerrors.ErrInvalidArgument, p)
		}
	}
	return c.AddRoutes(ctx, tmpl.instantiate(routeID, params))
}

func (c *Context) addDefinition(def *RouteDefinition) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if def.id != "" {
		for _, existing := range c.definitions {
			if existing.id == def.id {
				return fmt.Errorf("route %q: %w", def.id, flowerrors.ErrDuplicateRouteID)
			}
		}
	}
	c.definitions = append(c.definitions, def)
	return nil
}

func (c *Context) dropDefinition(def *RouteDefinition) {
	c.mu.Lock()
	c.definitions = slices.DeleteFunc(c.definitions, func(d *RouteDefinition) bool { return d == def })
	c.mu.Unlock()
}

// RemoveRoute stops a route, releases its pools and forgets its definition.
func (c *Context) RemoveRoute(ctx context.Context, id string) error {
	c.ctrl.Lock()
	defer c.ctrl.Unlock()

	r := c.Route(id)
	if r == nil {
		return fmt.Errorf("route %q: %w", id, flowerrors.ErrRouteNotFound)
	}
	r.stop(ctx, c.shutdown.Timeout())
	c.retire([]*Route{r})

	c.mu.Lock()
	c.routes = slices.DeleteFunc(c.routes, func(x *Route) bool { return x == r })
	c.definitions = slices.DeleteFunc(c.definitions, func(d *RouteDefinition) bool { return d == r.def })
	c.mu.Unlock()
	return nil
}

func (c *Context) StartRoute(ctx context.Context, id string) error {
	c.ctrl.Lock()
	defer c.ctrl.Unlock()
	r := c.Route(id)
	if r == nil {
		return fmt.Errorf("route %q: %w", id, flowerrors.ErrRouteNotFound)
	}
	if !c.status.Is(StatusStarted) {
		return fmt.Errorf("route %q: %w", id, flowerrors.ErrContextNotStarted)
	}
	return r.start(ctx)
}

func (c *Context) StopRoute(ctx context.Context, id string) error {
	c.ctrl.Lock()
	defer c.ctrl.Unlock()
	r := c.Route(id)
	if r == nil {
		return fmt.Errorf("route %q: %w", id, flowerrors.ErrRouteNotFound)
	}
	r.stop(ctx, c.shutdown.Timeout())
	return nil
}

// Start starts services, builds every route and starts the auto-startup ones.
// Any failure unwinds what was started and is reported as ErrStartupAborted.
func (c *Context) Start(ctx context.Context) error {
	c.ctrl.Lock()
	defer c.ctrl.Unlock()

	if c.status.Is(StatusStarted) {
		return nil
	}
	if !c.status.swap(StatusStopped, StatusStarting) {
		return fmt.Errorf("start context %q: %w: status %s", c.name, flowerrors.ErrInvalidArgument, c.status.Load())
	}

	strategies := c.lifecycle()
	for _, s := range strategies {
		if err := s.OnContextStarting(c); err != nil {
			return c.abortStart(ctx, nil, err)
		}
	}

	for _, svc := range c.Services() {
		if err := svc.Start(ctx); err != nil {
			return c.abortStart(ctx, nil, err)
		}
		for _, s := range c.lifecycle() {
			s.OnServiceAdd(svc, nil)
		}
	}
	for _, ep := range c.Endpoints() {
		if err := ep.Start(ctx); err != nil {
			return c.abortStart(ctx, nil, err)
		}
	}

	var built []*Route
	for _, def := range c.Definitions() {
		r, err := c.buildRoute(def)
		if err != nil {
			return c.abortStart(ctx, built, err)
		}
		built = append(built, r)
	}
	c.announce(built)

	for _, r := range built {
		if !r.def.autoStartup {
			continue
		}
		if err := r.start(ctx); err != nil {
			return c.abortStart(ctx, built, err)
		}
	}

	c.startedAt.Store(time.Now().UnixNano())
	c.status.Store(StatusStarted)
	c.logger.Info("Context started", logging.LogFields{
		"context": c.name,
		"routes":  len(built),
	})
	for _, s := range c.lifecycle() {
		s.OnContextStarted(c)
	}
	return nil
}

func (c *Context) abortStart(ctx context.Context, built []*Route, cause error) error {
	for _, r := range built {
		r.stop(ctx, 0)
	}
	c.mu.Lock()
	c.routes = nil
	c.mu.Unlock()
	for _, r := range built {
		r.release()
	}
	for _, ep := range c.Endpoints() {
		_ = ep.Stop(ctx)
	}
	for _, svc := range c.Services() {
		_ = svc.Stop(ctx)
	}
	c.status.Store(StatusStopped)

	err := fmt.Errorf("start context %q: %w: %w", c.name, flowerrors.ErrStartupAborted, cause)
	c.logger.Error("Context startup aborted", err, logging.LogFields{"context": c.name})
	for _, s := range c.lifecycle() {
		s.OnContextStartFailed(c, err)
	}
	return err
}

// Stop shuts routes down through the shutdown strategy, then stops endpoints
// and services. Definitions are kept so the context can be started again.
func (c *Context) Stop(ctx context.Context) error {
	c.ctrl.Lock()
	defer c.ctrl.Unlock()

	if !c.status.swap(StatusStarted, StatusStopping) {
		return nil
	}
	routes := c.Routes()
	c.shutdown.shutdown(ctx, routes)
	c.retire(routes)

	c.mu.Lock()
	c.routes = nil
	c.mu.Unlock()

	var errs []error
	for _, ep := range c.Endpoints() {
		if err := ep.Stop(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	for _, svc := range c.Services() {
		if err := svc.Stop(ctx); err != nil {
			errs = append(errs, err)
		}
		for _, s := range c.lifecycle() {
			s.OnServiceRemove(svc, nil)
		}
	}
	c.status.Store(StatusStopped)
	c.startedAt.Store(0)
	c.logger.Info("Context stopped", logging.LogFields{"context": c.name})
	for _, s := range c.lifecycle() {
		s.OnContextStopped(c)
	}
	return errors.Join(errs...)
}

// announce publishes freshly built routes, then their services and pools.
func (c *Context) announce(routes []*Route) {
	if len(routes) == 0 {
		return
	}
	c.mu.Lock()
	c.routes = append(c.routes, routes...)
	c.mu.Unlock()

	strategies := c.lifecycle()
	for _, s := range strategies {
		s.OnRoutesAdd(routes)
	}
	for _, r := range routes {
		for _, s := range strategies {
			s.OnServiceAdd(r.consumer, r)
			for _, p := range r.producers {
				s.OnServiceAdd(p, r)
			}
			for _, pool := range r.ThreadPools() {
				s.OnThreadPoolAdd(pool)
			}
		}
	}
}

// retire releases route resources and reports their removal.
func (c *Context) retire(routes []*Route) {
	strategies := c.lifecycle()
	for _, r := range routes {
		pools := r.release()
		for _, s := range strategies {
			for _, pool := range pools {
				s.OnThreadPoolRemove(pool)
			}
			s.OnServiceRemove(r.consumer, r)
			for _, p := range r.producers {
				s.OnServiceRemove(p, r)
			}
		}
	}
	if len(routes) > 0 {
		for _, s := range strategies {
			s.OnRoutesRemove(routes)
		}
	}
}

// buildRoute turns a definition into a stopped route with its endpoint,
// producers, consumer and pools.
func (c *Context) buildRoute(def *RouteDefinition) (*Route, error) {
	c.mu.Lock()
	id := def.id
	if id == "" {
		id = def.generatedID
	}
	for id == "" || (def.id == "" && def.generatedID == "" && c.routeIDTaken(id)) {
		c.routeSeq++
		id = fmt.Sprintf("route%d", c.routeSeq)
	}
	for _, existing := range c.routes {
		if existing.id == id {
			c.mu.Unlock()
			return nil, fmt.Errorf("route %q: %w", id, flowerrors.ErrDuplicateRouteID)
		}
	}
	if def.id == "" {
		def.generatedID = id
	}
	if !slices.Equal(def.interceptSource, c.intercepts) {
		def.interceptSource = slices.Clone(c.intercepts)
		def.intercepts = make([]*Node, 0, len(c.intercepts))
		for _, n := range c.intercepts {
			def.intercepts = append(def.intercepts, interceptFor(n, id))
		}
	}
	nodes := make([]*Node, 0, len(def.intercepts)+len(def.steps))
	nodes = append(nodes, def.intercepts...)
	nodes = append(nodes, def.steps...)
	c.mu.Unlock()

	r := &Route{ctx: c, def: def, id: id, nodes: nodes, policy: def.policy}
	fail := func(err error) (*Route, error) {
		r.release()
		return nil, fmt.Errorf("route %q: %w", id, err)
	}

	endpoint, err := c.Endpoint(def.from)
	if err != nil {
		return nil, fmt.Errorf("route %q: %w", id, err)
	}
	r.endpoint = endpoint
	r.from = endpoint.URI()

	var all []*Node
	for _, n := range nodes {
		n.walk(func(x *Node) { all = append(all, x) })
	}
	if r.policy != nil {
		for _, n := range r.policy.steps {
			n.walk(func(x *Node) { all = append(all, x) })
		}
	}
	for _, n := range all {
		n.route = r
		n.index = -1
		c.assignNodeID(n)
		if !n.container && !n.internal {
			n.index = len(r.processors)
			r.processors = append(r.processors, n)
		}
		switch n.typ {
		case NodeTo:
			ep, err := c.Endpoint(n.uri)
			if err != nil {
				return fail(fmt.Errorf("step %s: %w", n.id, err))
			}
			p, err := ep.CreateProducer()
			if err != nil {
				return fail(fmt.Errorf("step %s: %w", n.id, err))
			}
			n.producer = p
			r.producers = append(r.producers, p)
		case NodeAggregate:
			n.aggregator = newAggregator(n, id)
			r.aggregators = append(r.aggregators, n.aggregator)
		}
	}

	consumer, err := endpoint.CreateConsumer(r.handle)
	if err != nil {
		return fail(err)
	}
	r.consumer = consumer
	return r, nil
}

// interceptFor clones an intercepted step for route routeID. Custom ids get
// the route id appended so every route has its own copy of the step.
func interceptFor(n *Node, routeID string) *Node {
	c := n.clone(identity)
	c.walk(func(x *Node) {
		if x.customID {
			x.id = x.id + "-" + routeID
		}
	})
	return c
}

// routeIDTaken reports whether id is used by a route or an explicit
// definition. Callers hold mu.
func (c *Context) routeIDTaken(id string) bool {
	for _, r := range c.routes {
		if r.id == id {
			return true
		}
	}
	for _, d := range c.definitions {
		if d.id == id {
			return true
		}
	}
	return false
}

func (c *Context) assignNodeID(n *Node) {
	if n.id != "" {
		return
	}
	c.mu.Lock()
	c.nodeSeq[n.typ]++
	n.id = fmt.Sprintf("%s%d", n.typ, c.nodeSeq[n.typ])
	c.mu.Unlock()
}

// SendBody sends body to uri and waits for synchronous endpoints to finish.
func (c *Context) SendBody(ctx context.Context, uri string, body any) error {
	_, err := c.RequestBody(ctx, uri, body)
	return err
}

// RequestBody sends body to uri and returns the resulting body.
func (c *Context) RequestBody(ctx context.Context, uri string, body any) (string, error) {
	if !c.status.Is(StatusStarted) {
		return "", fmt.Errorf("send to %q: %w", uri, flowerrors.ErrContextNotStarted)
	}
	ep, err := c.Endpoint(uri)
	if err != nil {
		return "", err
	}
	producer, err := ep.CreateProducer()
	if err != nil {
		return "", err
	}
	if err := producer.Start(ctx); err != nil {
		return "", err
	}
	defer func() { _ = producer.Stop(ctx) }()

	ex := NewExchange(ctx, body)
	if err := producer.Process(ctx, ex); err != nil {
		return ex.Body(), err
	}
	return ex.Body(), nil
}
