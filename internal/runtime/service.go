package runtime

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/drblury/flowmgmt/internal/runtime/agent"
	"github.com/drblury/flowmgmt/internal/runtime/api"
	configpkg "github.com/drblury/flowmgmt/internal/runtime/config"
	"github.com/drblury/flowmgmt/internal/runtime/engine"
	flowerrors "github.com/drblury/flowmgmt/internal/runtime/errors"
	"github.com/drblury/flowmgmt/internal/runtime/lifecycle"
	loggingpkg "github.com/drblury/flowmgmt/internal/runtime/logging"
	"github.com/drblury/flowmgmt/internal/runtime/metrics"
	"github.com/drblury/flowmgmt/internal/runtime/naming"
	"github.com/drblury/flowmgmt/internal/runtime/registry"
	"github.com/drblury/flowmgmt/internal/runtime/stats"
	"github.com/drblury/flowmgmt/transport"
	_ "github.com/drblury/flowmgmt/transport/transports"
)

const (
	DefaultWebUIPort   = 8081
	DefaultMetricsPort = 9090

	// BrokerScheme is the endpoint scheme served by the configured transport.
	BrokerScheme = "broker"

	tracerName = "github.com/drblury/flowmgmt"
)

var listen = net.Listen

// ServiceDependencies holds the optional collaborators of a Service. Leave
// fields nil to use the defaults.
type ServiceDependencies struct {
	// Transports resolves Conf.BrokerSystem. Defaults to transport.DefaultRegistry.
	Transports *transport.Registry
	Tracer     trace.Tracer
	// ExchangeHooks observe every exchange of every context. LogExchanges
	// installs engine.LoggingHooks when no hooks are given.
	ExchangeHooks *engine.ExchangeHooks
	LogExchanges  bool
}

// ManagedContext is a context created by the service together with the
// agent and binder that instrument it.
type ManagedContext struct {
	Context *engine.Context
	Agent   *agent.Agent
	Binder  *lifecycle.Binder
}

// Service owns the shared management registry and builds instrumented
// contexts on top of it. It also serves the management API and the
// Prometheus metrics.
type Service struct {
	Conf   *configpkg.Config
	Logger loggingpkg.ServiceLogger

	registry  *registry.Registry
	counter   *naming.Counter
	resources *stats.ResourceTracker
	tracer    trace.Tracer
	hooks     *engine.ExchangeHooks

	broker     transport.Transport
	brokerCaps transport.Capabilities

	agent   *agent.Agent
	gather  *prometheus.Registry
	ops     *metrics.Operations
	handler http.Handler

	mu       sync.Mutex
	contexts []*ManagedContext
	servers  map[string]*http.Server
	addrs    map[string]net.Addr
	stopped  bool
}

// NewService validates conf, builds the broker transport and prepares the
// management API. Contexts are added with NewContext before calling Start.
func NewService(ctx context.Context, conf *configpkg.Config, log loggingpkg.ServiceLogger, deps ServiceDependencies) (*Service, error) {
	if conf == nil {
		return nil, flowerrors.ErrConfigRequired
	}
	if log == nil {
		return nil, flowerrors.ErrLoggerRequired
	}
	if err := conf.Validate(); err != nil {
		return nil, flowerrors.NewConfigValidationError(err)
	}
	log.Info("Creating management service", loggingpkg.LogFields{
		"broker_system": conf.BrokerSystem,
		"config":        conf.String(),
	})

	s := &Service{
		Conf:      conf,
		Logger:    log,
		registry:  registry.New(),
		counter:   naming.NewCounter(),
		resources: stats.NewResourceTracker(),
		tracer:    deps.Tracer,
		hooks:     deps.ExchangeHooks,
		servers:   make(map[string]*http.Server),
		addrs:     make(map[string]net.Addr),
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer(tracerName)
	}
	if s.hooks == nil && deps.LogExchanges {
		h := engine.LoggingHooks(log)
		s.hooks = &h
	}

	a, err := agent.New(conf, s.agentOptions()...)
	if err != nil {
		return nil, err
	}
	s.agent = a

	transports := deps.Transports
	if transports == nil {
		transports = transport.DefaultRegistry
	}
	broker, err := transports.Build(ctx, conf, loggingpkg.NewWatermillAdapter(log))
	if err != nil {
		return nil, fmt.Errorf("build %s broker: %w", conf.BrokerSystem, err)
	}
	s.broker = broker
	s.brokerCaps = transports.Capabilities(conf.BrokerSystem)

	gather, ops, err := metrics.NewRegistry(s.registry)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("metrics registry: %w", err), broker.Close())
	}
	s.gather, s.ops = gather, ops

	apiOpts := []api.Option{
		api.WithLogger(log),
		api.WithTracer(s.tracer),
		api.WithOperationMetrics(ops),
		api.WithCORSOrigins(conf.WebUICORSAllowedOrigins),
	}
	if conf.MetricsEnabled && s.metricsOnWebUI() {
		apiOpts = append(apiOpts, api.WithMetricsHandler(metrics.Handler(gather)))
	}
	s.handler = api.New(s.agent, apiOpts...).Handler()

	return s, nil
}

func (s *Service) agentOptions() []agent.Option {
	return []agent.Option{
		agent.WithRegistry(s.registry),
		agent.WithCounter(s.counter),
		agent.WithLogger(s.Logger),
	}
}

// NewContext builds a context wired to the broker transport and binds a
// dedicated agent to it. opts are applied after the service defaults.
func (s *Service) NewContext(opts ...engine.Option) (*ManagedContext, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil, flowerrors.ErrServiceStopped
	}

	a, err := agent.New(s.Conf, s.agentOptions()...)
	if err != nil {
		return nil, err
	}

	defaults := []engine.Option{
		engine.WithLogger(s.Logger),
		engine.WithTracer(s.tracer),
		engine.WithComponent(BrokerScheme, &engine.BrokerComponent{
			Publisher:  s.broker.Publisher,
			Subscriber: s.broker.Subscriber,
		}),
	}
	if s.Conf.ShutdownTimeout > 0 {
		defaults = append(defaults, engine.WithShutdownTimeout(s.Conf.ShutdownTimeout))
	}
	if s.hooks != nil {
		defaults = append(defaults, engine.WithHooks(*s.hooks))
	}
	c := engine.NewContext(append(defaults, opts...)...)

	mc := &ManagedContext{
		Context: c,
		Agent:   a,
		Binder:  lifecycle.Bind(c, a, lifecycle.WithLogger(s.Logger), lifecycle.WithResourceTracker(s.resources)),
	}
	s.contexts = append(s.contexts, mc)
	return mc, nil
}

// Contexts returns the contexts in creation order.
func (s *Service) Contexts() []*ManagedContext {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.contexts)
}

// Agent returns the service agent. It shares the registry of every context
// agent and is what the management API queries.
func (s *Service) Agent() *agent.Agent { return s.agent }

func (s *Service) Registry() *registry.Registry { return s.registry }

// BrokerCapabilities describes the transport behind broker: endpoints.
func (s *Service) BrokerCapabilities() transport.Capabilities { return s.brokerCaps }

// Handler serves the management API, including /metrics when metrics share
// the API port.
func (s *Service) Handler() http.Handler { return s.handler }

// Gatherer exposes the Prometheus registry of the service.
func (s *Service) Gatherer() prometheus.Gatherer { return s.gather }

// ServerAddr returns the listen address of a running server ("webui" or
// "metrics"), nil when it is not running.
func (s *Service) ServerAddr(name string) net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addrs[name]
}

// Start starts every context and the configured HTTP servers, then blocks
// until ctx is cancelled and stops the service.
func (s *Service) Start(ctx context.Context) error {
	if err := s.StartContexts(ctx); err != nil {
		return errors.Join(err, s.Stop(context.Background()))
	}
	if err := s.startServers(); err != nil {
		return errors.Join(err, s.Stop(context.Background()))
	}

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), s.stopTimeout())
	defer cancel()
	return s.Stop(stopCtx)
}

// StartContexts starts the contexts in creation order. When one fails the
// contexts started before it are stopped again.
func (s *Service) StartContexts(ctx context.Context) error {
	contexts := s.Contexts()
	for i, mc := range contexts {
		if err := mc.Context.Start(ctx); err != nil {
			errs := []error{fmt.Errorf("start context %s: %w", mc.Context.Name(), err)}
			for j := i - 1; j >= 0; j-- {
				errs = append(errs, contexts[j].Context.Stop(ctx))
			}
			return errors.Join(errs...)
		}
	}
	return nil
}

// Stop stops the contexts in reverse creation order, shuts the HTTP servers
// down and closes the broker transport. Later calls return nil.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	contexts := slices.Clone(s.contexts)
	servers := s.servers
	s.servers = make(map[string]*http.Server)
	s.addrs = make(map[string]net.Addr)
	s.mu.Unlock()

	var errs []error
	for i := len(contexts) - 1; i >= 0; i-- {
		if err := contexts[i].Context.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stop context %s: %w", contexts[i].Context.Name(), err))
		}
	}
	for name, srv := range servers {
		if err := srv.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown %s server: %w", name, err))
		}
	}
	if err := s.broker.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close broker: %w", err))
	}
	s.Logger.Info("Management service stopped", loggingpkg.LogFields{"contexts": len(contexts)})
	return errors.Join(errs...)
}

func (s *Service) stopTimeout() time.Duration {
	if s.Conf.ShutdownTimeout > 0 {
		return s.Conf.ShutdownTimeout
	}
	return 30 * time.Second
}

func (s *Service) webUIPort() int {
	if s.Conf.WebUIPort > 0 {
		return s.Conf.WebUIPort
	}
	return DefaultWebUIPort
}

func (s *Service) metricsPort() int {
	if s.Conf.MetricsPort > 0 {
		return s.Conf.MetricsPort
	}
	return DefaultMetricsPort
}

func (s *Service) metricsOnWebUI() bool {
	return s.Conf.WebUIEnabled && s.metricsPort() == s.webUIPort()
}

func (s *Service) startServers() error {
	if s.Conf.WebUIEnabled {
		if err := s.serve("webui", s.webUIPort(), s.handler); err != nil {
			return err
		}
	}
	if s.Conf.MetricsEnabled && !s.metricsOnWebUI() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler(s.gather))
		if err := s.serve("metrics", s.metricsPort(), mux); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) serve(name string, port int, handler http.Handler) error {
	ln, err := listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return fmt.Errorf("listen %s server: %w", name, err)
	}
	srv := &http.Server{Handler: handler, ReadHeaderTimeout: 10 * time.Second}

	s.mu.Lock()
	s.servers[name] = srv
	s.addrs[name] = ln.Addr()
	s.mu.Unlock()

	s.Logger.Info("Starting HTTP server", loggingpkg.LogFields{"server": name, "address": ln.Addr().String()})
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.Logger.Error("HTTP server failed", err, loggingpkg.LogFields{"server": name})
		}
	}()
	return nil
}
