package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/flowmgmt/internal/runtime/config"
	"github.com/drblury/flowmgmt/internal/runtime/managed"
	"github.com/drblury/flowmgmt/internal/runtime/naming"
	"github.com/drblury/flowmgmt/internal/runtime/registry"
	"github.com/drblury/flowmgmt/internal/runtime/stats"

	flowerrors "github.com/drblury/flowmgmt/internal/runtime/errors"
)

type fakeHandle struct {
	kind  naming.Kind
	stats *stats.Statistics
	attrs map[string]any
}

func (h *fakeHandle) Kind() naming.Kind               { return h.kind }
func (h *fakeHandle) AttachStats(s *stats.Statistics) { h.stats = s }
func (h *fakeHandle) AttributeNames() []string        { return nil }
func (h *fakeHandle) Attribute(name string) (any, error) {
	v, ok := h.attrs[name]
	if !ok {
		return nil, flowerrors.ErrUnknownAttribute
	}
	return v, nil
}

func (h *fakeHandle) Invoke(_ context.Context, op string, _ ...any) (any, error) {
	return op, nil
}

func newAgent(t *testing.T, configure func(*config.Config), opts ...Option) *Agent {
	t.Helper()
	cfg := config.Default()
	if configure != nil {
		configure(cfg)
	}
	opts = append([]Option{WithCounter(naming.NewCounterAt(0))}, opts...)
	a, err := New(cfg, opts...)
	require.NoError(t, err)
	return a
}

func TestNewValidatesConfig(t *testing.T) {
	_, err := New(nil)
	require.ErrorIs(t, err, flowerrors.ErrConfigRequired)

	cfg := config.Default()
	cfg.StatisticsLevel = config.StatisticsLevel(42)
	_, err = New(cfg)
	var validation flowerrors.ConfigValidationError
	require.True(t, errors.As(err, &validation))
}

func TestEligibilityGates(t *testing.T) {
	tests := []struct {
		name      string
		configure func(*config.Config)
		req       Request
		want      bool
	}{
		{
			name: "default registers processors",
			req:  Request{Kind: naming.KindProcessor},
			want: true,
		},
		{
			name:      "disabled registers nothing",
			configure: func(c *config.Config) { c.Enabled = false },
			req:       Request{Kind: naming.KindContext},
		},
		{
			name:      "statistics off registers nothing",
			configure: func(c *config.Config) { c.StatisticsLevel = config.StatisticsOff },
			req:       Request{Kind: naming.KindContext},
		},
		{
			name:      "context only keeps services",
			configure: func(c *config.Config) { c.StatisticsLevel = config.StatisticsContextOnly },
			req:       Request{Kind: naming.KindService},
			want:      true,
		},
		{
			name:      "context only drops routes",
			configure: func(c *config.Config) { c.StatisticsLevel = config.StatisticsContextOnly },
			req:       Request{Kind: naming.KindRoute},
		},
		{
			name:      "routes only drops processors",
			configure: func(c *config.Config) { c.StatisticsLevel = config.StatisticsRoutesOnly },
			req:       Request{Kind: naming.KindProcessor},
		},
		{
			name:      "mbeans routes only drops processors",
			configure: func(c *config.Config) { c.MBeansLevel = config.MBeansRoutesOnly },
			req:       Request{Kind: naming.KindProcessor},
		},
		{
			name:      "mbeans context only drops endpoints",
			configure: func(c *config.Config) { c.MBeansLevel = config.MBeansContextOnly },
			req:       Request{Kind: naming.KindEndpoint},
		},
		{
			name:      "late route rejected without registerNewRoutes",
			configure: func(c *config.Config) { c.RegisterNewRoutes = false },
			req:       Request{Kind: naming.KindRoute, AddedAfterStartup: true},
		},
		{
			name:      "late endpoint unaffected by registerNewRoutes",
			configure: func(c *config.Config) { c.RegisterNewRoutes = false },
			req:       Request{Kind: naming.KindEndpoint, AddedAfterStartup: true},
			want:      true,
		},
		{
			name: "registerAlways overrides registerNewRoutes",
			configure: func(c *config.Config) {
				c.RegisterNewRoutes = false
				c.RegisterAlways = true
			},
			req:  Request{Kind: naming.KindRoute, AddedAfterStartup: true},
			want: true,
		},
		{
			name:      "generated processor ids skipped",
			configure: func(c *config.Config) { c.OnlyRegisterProcessorsWithCustomID = true },
			req:       Request{Kind: naming.KindProcessor},
		},
		{
			name:      "custom processor ids kept",
			configure: func(c *config.Config) { c.OnlyRegisterProcessorsWithCustomID = true },
			req:       Request{Kind: naming.KindProcessor, CustomID: true},
			want:      true,
		},
		{
			name: "internal steps never registered",
			req:  Request{Kind: naming.KindProcessor, Internal: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newAgent(t, tt.configure)
			assert.Equal(t, tt.want, a.Eligible(tt.req))

			tt.req.Context = "camel"
			tt.req.Local = "x"
			tt.req.Handle = &fakeHandle{kind: tt.req.Kind}
			ok, err := a.RegisterIfEligible(tt.req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestRegisterAttachesStatisticsToMeasuredKinds(t *testing.T) {
	a := newAgent(t, func(c *config.Config) { c.StatisticsLevel = config.StatisticsExtended })

	route := &fakeHandle{kind: naming.KindRoute}
	rec, err := a.Register(Request{Kind: naming.KindRoute, Context: "camel", Local: "foo", Handle: route})
	require.NoError(t, err)
	require.NotNil(t, rec.Stats)
	assert.Same(t, rec.Stats, route.stats)
	assert.False(t, rec.Stats.UtilizationEnabled())

	ctxHandle := &fakeHandle{kind: naming.KindContext}
	rec, err = a.Register(Request{Kind: naming.KindContext, Context: "camel", Handle: ctxHandle})
	require.NoError(t, err)
	assert.True(t, rec.Stats.UtilizationEnabled())

	endpoint := &fakeHandle{kind: naming.KindEndpoint}
	rec, err = a.Register(Request{Kind: naming.KindEndpoint, Context: "camel", Local: "direct:a", Handle: endpoint})
	require.NoError(t, err)
	assert.Nil(t, rec.Stats)
	assert.Nil(t, endpoint.stats)
	assert.Equal(t, "direct://a", rec.Name.Local)
}

func TestRegisterIsIdempotentForTheSameHandle(t *testing.T) {
	a := newAgent(t, nil)
	h := &fakeHandle{kind: naming.KindRoute}
	req := Request{Kind: naming.KindRoute, Context: "camel", Local: "foo", Handle: h}

	first, err := a.Register(req)
	require.NoError(t, err)
	second, err := a.Register(req)
	require.NoError(t, err)
	assert.Same(t, first, second)

	req.Handle = &fakeHandle{kind: naming.KindRoute}
	_, err = a.Register(req)
	require.ErrorIs(t, err, flowerrors.ErrNameClash)
}

func TestRegisterContextGeneratedNames(t *testing.T) {
	reg := registry.New()
	counter := naming.NewCounterAt(0)
	first := newAgent(t, nil, WithRegistry(reg), WithCounter(counter))
	second := newAgent(t, nil, WithRegistry(reg), WithCounter(counter))

	id1, _, err := first.RegisterContext("camel", true, &fakeHandle{kind: naming.KindContext})
	require.NoError(t, err)
	id2, _, err := second.RegisterContext("camel", true, &fakeHandle{kind: naming.KindContext})
	require.NoError(t, err)

	assert.Equal(t, "camel-1", id1.ManagementName)
	assert.Equal(t, "camel-2", id2.ManagementName)
	assert.Len(t, first.Query(registry.KindPattern(config.DefaultDomain, naming.KindContext)), 2)
}

func TestRegisterContextExplicitNameRetriesOnClash(t *testing.T) {
	reg := registry.New()
	counter := naming.NewCounterAt(0)
	first := newAgent(t, nil, WithRegistry(reg), WithCounter(counter))
	second := newAgent(t, nil, WithRegistry(reg), WithCounter(counter))

	id1, _, err := first.RegisterContext("orders", false, &fakeHandle{kind: naming.KindContext})
	require.NoError(t, err)
	id2, _, err := second.RegisterContext("orders", false, &fakeHandle{kind: naming.KindContext})
	require.NoError(t, err)

	assert.Equal(t, "orders", id1.ManagementName)
	assert.Equal(t, "orders-1", id2.ManagementName)
	assert.Equal(t, "orders", id2.RawName)
}

func TestRegisterContextFixedPatternClashIsFatal(t *testing.T) {
	reg := registry.New()
	fixed := func(c *config.Config) { c.NamePattern = "prod-#name#" }
	first := newAgent(t, fixed, WithRegistry(reg))
	second := newAgent(t, fixed, WithRegistry(reg))

	id, _, err := first.RegisterContext("orders", false, &fakeHandle{kind: naming.KindContext})
	require.NoError(t, err)
	assert.Equal(t, "prod-orders", id.ManagementName)

	_, _, err = second.RegisterContext("orders", false, &fakeHandle{kind: naming.KindContext})
	require.ErrorIs(t, err, flowerrors.ErrNameClash)
}

func TestRegisterContextCounterPatternRetries(t *testing.T) {
	reg := registry.New()
	counter := naming.NewCounterAt(0)
	pattern := func(c *config.Config) { c.NamePattern = "#name#-#counter#" }
	first := newAgent(t, pattern, WithRegistry(reg), WithCounter(counter))
	second := newAgent(t, pattern, WithRegistry(reg), WithCounter(counter))

	id1, _, err := first.RegisterContext("orders", false, &fakeHandle{kind: naming.KindContext})
	require.NoError(t, err)
	id2, _, err := second.RegisterContext("orders", false, &fakeHandle{kind: naming.KindContext})
	require.NoError(t, err)
	assert.NotEqual(t, id1.ManagementName, id2.ManagementName)
}

func TestRegisterContextIncludesHostName(t *testing.T) {
	a := newAgent(t,
		func(c *config.Config) { c.IncludeHostName = true },
		WithHostnameFunc(func() (string, error) { return "node-a", nil }),
	)
	id, rec, err := a.RegisterContext("orders", false, &fakeHandle{kind: naming.KindContext})
	require.NoError(t, err)
	assert.Equal(t, "node-a/orders", id.ManagementName)
	assert.Equal(t, `flowmgmt:context=node-a/orders,type=context,name="node-a/orders"`, rec.Name.String())
}

func TestDisabledAgentAnswersEmpty(t *testing.T) {
	reg := registry.New()
	enabled := newAgent(t, nil, WithRegistry(reg))
	_, err := enabled.Register(Request{Kind: naming.KindRoute, Context: "camel", Local: "foo", Handle: &fakeHandle{kind: naming.KindRoute}})
	require.NoError(t, err)

	disabled := newAgent(t, func(c *config.Config) { c.Enabled = false }, WithRegistry(reg))
	_, _, err = disabled.RegisterContext("camel", true, &fakeHandle{kind: naming.KindContext})
	require.ErrorIs(t, err, flowerrors.ErrRegistrationDisabled)

	assert.Empty(t, disabled.Query(registry.All))
	assert.NotNil(t, disabled.Query(registry.All))
	name := enabled.Strategy().Resolve(naming.KindRoute, "camel", "foo")
	assert.False(t, disabled.IsRegistered(name))
	assert.True(t, enabled.IsRegistered(name))
}

func TestAbortUnregistersOwnedRecords(t *testing.T) {
	reg := registry.New()
	other := newAgent(t, nil, WithRegistry(reg))
	_, err := other.Register(Request{Kind: naming.KindRoute, Context: "other", Local: "bar", Handle: &fakeHandle{kind: naming.KindRoute}})
	require.NoError(t, err)

	a := newAgent(t, nil, WithRegistry(reg))
	_, _, err = a.RegisterContext("camel", false, &fakeHandle{kind: naming.KindContext})
	require.NoError(t, err)
	_, err = a.Register(Request{Kind: naming.KindRoute, Context: "camel", Local: "foo", Handle: &fakeHandle{kind: naming.KindRoute}})
	require.NoError(t, err)
	require.Equal(t, 3, reg.Len())

	a.Abort()
	assert.False(t, a.Available())
	assert.Equal(t, 1, reg.Len())
	assert.Empty(t, a.Query(registry.All))
	_, err = a.Register(Request{Kind: naming.KindRoute, Context: "camel", Local: "foo", Handle: &fakeHandle{kind: naming.KindRoute}})
	require.ErrorIs(t, err, flowerrors.ErrRegistrationDisabled)

	a.Reopen()
	assert.True(t, a.Available())
	assert.Len(t, a.Query(registry.All), 1)
}

// abortingHandle aborts its agent while the agent is inserting it.
type abortingHandle struct {
	fakeHandle
	agent *Agent
}

func (h *abortingHandle) AttachStats(*stats.Statistics) { h.agent.Abort() }

func TestAbortDuringRegisterLeavesNoRecord(t *testing.T) {
	reg := registry.New()
	a := newAgent(t, nil, WithRegistry(reg))
	h := &abortingHandle{fakeHandle: fakeHandle{kind: naming.KindRoute}, agent: a}

	_, err := a.Register(Request{Kind: naming.KindRoute, Context: "camel", Local: "foo", Handle: h})
	require.ErrorIs(t, err, flowerrors.ErrRegistrationDisabled)
	assert.Zero(t, reg.Len())

	a.Reopen()
	assert.Empty(t, a.Query(registry.All))
}

func TestRegisterContextAsKeepsIdentity(t *testing.T) {
	reg := registry.New()
	counter := naming.NewCounterAt(0)
	a := newAgent(t, nil, WithRegistry(reg), WithCounter(counter))
	other := newAgent(t, nil, WithRegistry(reg), WithCounter(counter))

	id, rec, err := a.RegisterContext("camel", true, &fakeHandle{kind: naming.KindContext})
	require.NoError(t, err)
	a.UnregisterContext(id.ManagementName)

	again, err := a.RegisterContextAs(id, &fakeHandle{kind: naming.KindContext})
	require.NoError(t, err)
	assert.Equal(t, rec.Name, again.Name)
	assert.Equal(t, int64(1), counter.Current())

	_, err = other.RegisterContextAs(id, &fakeHandle{kind: naming.KindContext})
	require.ErrorIs(t, err, flowerrors.ErrNameClash)
}

func TestSettingsApplyToNextRegistration(t *testing.T) {
	a := newAgent(t, nil)
	rec, err := a.Register(Request{Kind: naming.KindRoute, Context: "camel", Local: "foo", Handle: &fakeHandle{kind: naming.KindRoute}})
	require.NoError(t, err)
	assert.Equal(t, config.DefaultDomain, rec.Name.Domain)

	require.NoError(t, a.SetDomainName("ops"))
	rec2, err := a.Register(Request{Kind: naming.KindRoute, Context: "camel", Local: "bar", Handle: &fakeHandle{kind: naming.KindRoute}})
	require.NoError(t, err)
	assert.Equal(t, "ops", rec2.Name.Domain)
	assert.True(t, a.IsRegistered(rec.Name))

	require.NoError(t, a.SetStatisticsLevel(config.StatisticsOff))
	ok, err := a.RegisterIfEligible(Request{Kind: naming.KindRoute, Context: "camel", Local: "baz", Handle: &fakeHandle{kind: naming.KindRoute}})
	require.NoError(t, err)
	assert.False(t, ok)

	err = a.SetDomainName("bad:domain")
	var validation flowerrors.ConfigValidationError
	require.True(t, errors.As(err, &validation))
	assert.Equal(t, "ops", a.Settings().DomainName)
}

func TestQueryString(t *testing.T) {
	a := newAgent(t, nil)
	for _, local := range []string{"foo", "bar"} {
		_, err := a.Register(Request{Kind: naming.KindRoute, Context: "camel", Local: local, Handle: &fakeHandle{kind: naming.KindRoute}})
		require.NoError(t, err)
	}
	names, err := a.QueryString(`flowmgmt:type=routes,name="f*"`)
	require.NoError(t, err)
	require.Len(t, names, 1)
	assert.Equal(t, "foo", names[0].Local)
}

func TestProxyResolvesOnEveryCall(t *testing.T) {
	a := newAgent(t, nil)
	h := &fakeHandle{kind: naming.KindRoute, attrs: map[string]any{"RouteId": "foo", "Total": int64(3)}}
	rec, err := a.Register(Request{Kind: naming.KindRoute, Context: "camel", Local: "foo", Handle: h})
	require.NoError(t, err)

	p := a.Proxy(rec.Name)
	id, err := Attr[string](p, "RouteId")
	require.NoError(t, err)
	assert.Equal(t, "foo", id)

	_, err = Attr[string](p, "Total")
	require.ErrorIs(t, err, flowerrors.ErrCapabilityMismatch)

	out, err := p.Invoke(context.Background(), "start")
	require.NoError(t, err)
	assert.Equal(t, "start", out)

	s, err := p.Stats()
	require.NoError(t, err)
	assert.Same(t, h.stats, s)

	a.Unregister(rec.Name)
	_, err = p.Attribute("RouteId")
	require.ErrorIs(t, err, flowerrors.ErrNotFound)
}

func TestNewProxyChecksType(t *testing.T) {
	a := newAgent(t, nil)
	rec, err := a.Register(Request{Kind: naming.KindRoute, Context: "camel", Local: "foo", Handle: &fakeHandle{kind: naming.KindRoute}})
	require.NoError(t, err)

	_, err = NewProxy[*managed.Route](a, rec.Name)
	require.ErrorIs(t, err, flowerrors.ErrCapabilityMismatch)

	_, err = NewProxy[*fakeHandle](a, rec.Name)
	require.NoError(t, err)

	_, err = a.RouteProxyFor("camel", "missing")
	require.ErrorIs(t, err, flowerrors.ErrNotFound)
}
