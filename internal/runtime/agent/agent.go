// Package agent owns the registry of managed objects. It decides which
// objects are registered, derives their names, attaches statistics and
// answers queries.
package agent

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/drblury/flowmgmt/internal/runtime/config"
	"github.com/drblury/flowmgmt/internal/runtime/logging"
	"github.com/drblury/flowmgmt/internal/runtime/naming"
	"github.com/drblury/flowmgmt/internal/runtime/registry"
	"github.com/drblury/flowmgmt/internal/runtime/stats"

	flowerrors "github.com/drblury/flowmgmt/internal/runtime/errors"
)

// maxContextAttempts bounds the clash loop of RegisterContext.
const maxContextAttempts = 1000

// Request describes one object offered for registration.
type Request struct {
	Kind naming.Kind
	// Context is the management name of the owning context.
	Context string
	// Local is the local name hint. It is ignored for the context kind.
	Local  string
	Handle registry.Handle
	// AddedAfterStartup marks objects that appeared after the context started.
	AddedAfterStartup bool
	// CustomID marks processors that were given an explicit id.
	CustomID bool
	// Internal marks steps that belong to the engine rather than the user.
	Internal bool
}

// StatsAttacher is implemented by handles that report statistics.
type StatsAttacher interface {
	AttachStats(s *stats.Statistics)
}

// Agent is safe for concurrent use. Settings changes take effect at the next
// registration; existing records keep their names.
type Agent struct {
	mu       sync.RWMutex
	cfg      config.Config
	strategy *naming.Strategy

	counter  *naming.Counter
	hostname func() (string, error)
	registry *registry.Registry
	logger   logging.ServiceLogger

	unavailable atomic.Bool
	owned       map[naming.Name]struct{}
}

// Option customizes an Agent.
type Option func(*Agent)

// WithRegistry shares a registry between agents.
func WithRegistry(r *registry.Registry) Option {
	return func(a *Agent) { a.registry = r }
}

// WithCounter shares the context name counter. Agents of one process should
// share it so generated context names never repeat.
func WithCounter(c *naming.Counter) Option {
	return func(a *Agent) { a.counter = c }
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(l logging.ServiceLogger) Option {
	return func(a *Agent) { a.logger = l }
}

// WithHostnameFunc replaces os.Hostname when IncludeHostName is set.
func WithHostnameFunc(fn func() (string, error)) Option {
	return func(a *Agent) { a.hostname = fn }
}

// New validates cfg and builds an agent from a copy of it.
func New(cfg *config.Config, opts ...Option) (*Agent, error) {
	if cfg == nil {
		return nil, flowerrors.ErrConfigRequired
	}
	if err := cfg.Validate(); err != nil {
		return nil, flowerrors.NewConfigValidationError(err)
	}
	a := &Agent{
		cfg:   *cfg,
		owned: make(map[naming.Name]struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.registry == nil {
		a.registry = registry.New()
	}
	if a.counter == nil {
		a.counter = naming.NewCounter()
	}
	if a.logger == nil {
		a.logger = logging.NewNopServiceLogger()
	}
	a.rebuildStrategy()
	return a, nil
}

// rebuildStrategy must be called with mu held or before the agent is shared.
func (a *Agent) rebuildStrategy() {
	var opts []naming.StrategyOption
	if a.hostname != nil {
		opts = append(opts, naming.WithHostnameFunc(a.hostname))
	}
	a.strategy = naming.NewStrategy(a.cfg.Domain(), a.cfg.Pattern(), a.cfg.IncludeHostName, a.counter, opts...)
}

func (a *Agent) Registry() *registry.Registry { return a.registry }

// Strategy returns the naming strategy of the current settings.
func (a *Agent) Strategy() *naming.Strategy {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.strategy
}

// Settings returns a copy of the current settings.
func (a *Agent) Settings() config.Config {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.cfg
}

// Available reports whether the agent accepts registrations. An aborted
// agent stays unavailable until Reopen.
func (a *Agent) Available() bool {
	return !a.unavailable.Load()
}

// Abort unregisters everything this agent registered and marks it
// unavailable.
func (a *Agent) Abort() {
	a.unavailable.Store(true)
	a.mu.Lock()
	owned := a.owned
	a.owned = make(map[naming.Name]struct{})
	a.mu.Unlock()
	for name := range owned {
		a.registry.Unregister(name)
	}
	a.logger.Debug("Management agent aborted", logging.LogFields{"unregistered": len(owned)})
}

// Reopen makes an aborted agent available again.
func (a *Agent) Reopen() {
	a.unavailable.Store(false)
}

func (a *Agent) update(fn func(cfg *config.Config)) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	next := a.cfg
	fn(&next)
	if err := next.Validate(); err != nil {
		return flowerrors.NewConfigValidationError(err)
	}
	a.cfg = next
	a.rebuildStrategy()
	return nil
}

func (a *Agent) SetEnabled(v bool) error {
	return a.update(func(c *config.Config) { c.Enabled = v })
}

func (a *Agent) SetStatisticsLevel(l config.StatisticsLevel) error {
	return a.update(func(c *config.Config) { c.StatisticsLevel = l })
}

func (a *Agent) SetMBeansLevel(l config.MBeansLevel) error {
	return a.update(func(c *config.Config) { c.MBeansLevel = l })
}

func (a *Agent) SetRegisterNewRoutes(v bool) error {
	return a.update(func(c *config.Config) { c.RegisterNewRoutes = v })
}

func (a *Agent) SetRegisterAlways(v bool) error {
	return a.update(func(c *config.Config) { c.RegisterAlways = v })
}

func (a *Agent) SetOnlyRegisterProcessorsWithCustomID(v bool) error {
	return a.update(func(c *config.Config) { c.OnlyRegisterProcessorsWithCustomID = v })
}

func (a *Agent) SetIncludeHostName(v bool) error {
	return a.update(func(c *config.Config) { c.IncludeHostName = v })
}

func (a *Agent) SetNamePattern(p string) error {
	return a.update(func(c *config.Config) { c.NamePattern = p })
}

func (a *Agent) SetDomainName(d string) error {
	return a.update(func(c *config.Config) { c.DomainName = d })
}

// Eligible reports whether req passes the registration gates of the current
// settings.
func (a *Agent) Eligible(req Request) bool {
	a.mu.RLock()
	cfg := a.cfg
	a.mu.RUnlock()
	return a.Available() && eligible(&cfg, req)
}

// eligible applies the gates in order: enabled, statistics level, mbeans
// level, then the policy for objects added after startup.
func eligible(cfg *config.Config, req Request) bool {
	if !cfg.Enabled || req.Internal {
		return false
	}
	if !levelPermits(cfg.StatisticsLevel, req.Kind) || !mbeansPermits(cfg.MBeansLevel, req.Kind) {
		return false
	}
	if req.Kind == naming.KindProcessor && cfg.OnlyRegisterProcessorsWithCustomID && !req.CustomID {
		return false
	}
	if req.AddedAfterStartup && req.Kind.RouteScoped() && !cfg.RegisterAlways && !cfg.RegisterNewRoutes {
		return false
	}
	return true
}

func levelPermits(level config.StatisticsLevel, kind naming.Kind) bool {
	switch level {
	case config.StatisticsOff:
		return false
	case config.StatisticsContextOnly:
		return kind == naming.KindContext || kind == naming.KindService
	case config.StatisticsRoutesOnly:
		return kind != naming.KindProcessor
	default:
		return true
	}
}

func mbeansPermits(level config.MBeansLevel, kind naming.Kind) bool {
	switch kind {
	case naming.KindContext:
		return true
	case naming.KindRoute:
		return level.IncludesRoutes()
	case naming.KindProcessor:
		return level.IncludesProcessors()
	default:
		return level != config.MBeansContextOnly
	}
}

// measuredKind reports whether objects of kind carry statistics.
func measuredKind(kind naming.Kind) bool {
	switch kind {
	case naming.KindContext, naming.KindRoute, naming.KindProcessor:
		return true
	default:
		return false
	}
}

// Register registers req under the name derived from the current settings.
// It fails with ErrRegistrationDisabled when a gate rejects the request and
// with ErrNameClash when the name belongs to another object.
func (a *Agent) Register(req Request) (*registry.Record, error) {
	if req.Handle == nil {
		return nil, fmt.Errorf("register %s %q: %w: nil handle", req.Kind, req.Local, flowerrors.ErrInvalidArgument)
	}
	a.mu.RLock()
	cfg := a.cfg
	strategy := a.strategy
	a.mu.RUnlock()

	if !a.Available() || !eligible(&cfg, req) {
		return nil, fmt.Errorf("register %s %q: %w", req.Kind, req.Local, flowerrors.ErrRegistrationDisabled)
	}
	name := strategy.Resolve(req.Kind, req.Context, req.Local)
	return a.insert(name, req.Handle, &cfg)
}

// RegisterIfEligible registers req when the gates allow it and reports
// whether a record now exists. A gate rejection is not an error.
func (a *Agent) RegisterIfEligible(req Request) (bool, error) {
	if _, err := a.Register(req); err != nil {
		if errors.Is(err, flowerrors.ErrRegistrationDisabled) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (a *Agent) insert(name naming.Name, handle registry.Handle, cfg *config.Config) (*registry.Record, error) {
	var s *stats.Statistics
	if measuredKind(name.Kind) {
		if existing, ok := a.registry.Lookup(name); ok && existing.Handle == handle {
			return existing, nil
		}
		var opts []stats.Option
		if name.Kind == naming.KindContext && cfg.StatisticsLevel == config.StatisticsExtended {
			opts = append(opts, stats.WithEndpointUtilization(0))
		}
		s = stats.New(opts...)
		if attacher, ok := handle.(StatsAttacher); ok {
			attacher.AttachStats(s)
		}
	}
	rec, err := a.registry.Register(registry.Record{Name: name, Handle: handle, Stats: s})
	if err != nil {
		return nil, err
	}
	a.mu.Lock()
	// Abort flips availability before it collects owned names, so a record
	// inserted concurrently is either collected by Abort or dropped here.
	if !a.Available() {
		a.mu.Unlock()
		a.registry.Unregister(name)
		return nil, fmt.Errorf("register %s: %w: agent aborted", name, flowerrors.ErrRegistrationDisabled)
	}
	a.owned[name] = struct{}{}
	a.mu.Unlock()
	a.logger.Trace("Registered managed object", logging.LogFields{"name": name.String()})
	return rec, nil
}

// RegisterContext registers the managed context of a context created as raw.
// On a clash a generated or default-pattern name is retried with the next
// counter value; a name fixed by a user pattern fails with ErrNameClash.
func (a *Agent) RegisterContext(raw string, generated bool, handle registry.Handle) (naming.ContextIdentity, *registry.Record, error) {
	a.mu.RLock()
	cfg := a.cfg
	strategy := a.strategy
	a.mu.RUnlock()

	id := strategy.ContextIdentity(raw, generated)
	req := Request{Kind: naming.KindContext, Context: id.ManagementName, Handle: handle}
	if handle == nil {
		return id, nil, fmt.Errorf("register context %q: %w: nil handle", raw, flowerrors.ErrInvalidArgument)
	}
	if !a.Available() || !eligible(&cfg, req) {
		return id, nil, fmt.Errorf("register context %q: %w", raw, flowerrors.ErrRegistrationDisabled)
	}

	fixed := cfg.HasCustomPattern() && !strings.Contains(cfg.Pattern(), "#counter#")
	for attempt := 0; ; attempt++ {
		name := strategy.Resolve(naming.KindContext, id.ManagementName, "")
		if existing, ok := a.registry.Lookup(name); ok && existing.Handle != handle {
			if fixed || attempt >= maxContextAttempts {
				return id, nil, fmt.Errorf("register context %q as %q: %w", raw, id.ManagementName, flowerrors.ErrNameClash)
			}
			a.logger.Debug("Management name taken, retrying", logging.LogFields{
				"context": raw,
				"name":    id.ManagementName,
			})
			id = strategy.Retry(id)
			continue
		}
		rec, err := a.insert(name, handle, &cfg)
		if err != nil {
			// Lost a race for the name; try the next one unless it is fixed.
			if !fixed && attempt < maxContextAttempts && errors.Is(err, flowerrors.ErrNameClash) {
				id = strategy.Retry(id)
				continue
			}
			return id, nil, err
		}
		return id, rec, nil
	}
}

// RegisterContextAs registers handle under an identity obtained earlier from
// RegisterContext, so a restarted context keeps its management name. It
// fails with ErrNameClash when another object holds the name meanwhile.
func (a *Agent) RegisterContextAs(id naming.ContextIdentity, handle registry.Handle) (*registry.Record, error) {
	a.mu.RLock()
	cfg := a.cfg
	strategy := a.strategy
	a.mu.RUnlock()

	if handle == nil {
		return nil, fmt.Errorf("register context %q: %w: nil handle", id.RawName, flowerrors.ErrInvalidArgument)
	}
	req := Request{Kind: naming.KindContext, Context: id.ManagementName, Handle: handle}
	if !a.Available() || !eligible(&cfg, req) {
		return nil, fmt.Errorf("register context %q: %w", id.RawName, flowerrors.ErrRegistrationDisabled)
	}
	name := strategy.Resolve(naming.KindContext, id.ManagementName, "")
	if existing, ok := a.registry.Lookup(name); ok && existing.Handle != handle {
		return nil, fmt.Errorf("register context %q as %q: %w", id.RawName, id.ManagementName, flowerrors.ErrNameClash)
	}
	return a.insert(name, handle, &cfg)
}

// Unregister removes name. Removing an absent name is a no-op.
func (a *Agent) Unregister(name naming.Name) bool {
	a.mu.Lock()
	delete(a.owned, name)
	a.mu.Unlock()
	return a.registry.Unregister(name)
}

// UnregisterContext removes every record of the context with the given
// management name.
func (a *Agent) UnregisterContext(managementName string) int {
	a.mu.Lock()
	for name := range a.owned {
		if name.Context == managementName {
			delete(a.owned, name)
		}
	}
	a.mu.Unlock()
	return a.registry.UnregisterContext(managementName)
}

// Query returns the registered names matching p. A disabled or aborted agent
// always returns an empty result.
func (a *Agent) Query(p registry.Pattern) []naming.Name {
	if !a.queryable() {
		return []naming.Name{}
	}
	return a.registry.Query(p)
}

// QueryString parses s as a name pattern and runs Query.
func (a *Agent) QueryString(s string) ([]naming.Name, error) {
	p, err := registry.ParsePattern(s)
	if err != nil {
		return nil, fmt.Errorf("query %q: %w: %w", s, flowerrors.ErrInvalidArgument, err)
	}
	return a.Query(p), nil
}

func (a *Agent) IsRegistered(name naming.Name) bool {
	return a.queryable() && a.registry.IsRegistered(name)
}

func (a *Agent) Lookup(name naming.Name) (*registry.Record, bool) {
	if !a.queryable() {
		return nil, false
	}
	return a.registry.Lookup(name)
}

func (a *Agent) queryable() bool {
	a.mu.RLock()
	enabled := a.cfg.Enabled
	a.mu.RUnlock()
	return enabled && a.Available()
}
