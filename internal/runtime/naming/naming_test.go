package naming

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindStrings(t *testing.T) {
	want := []string{"context", "routes", "processors", "endpoints", "producers", "consumers", "threadpools", "services"}
	kinds := Kinds()
	require.Len(t, kinds, len(want))
	for i, kind := range kinds {
		assert.Equal(t, want[i], kind.String())
		parsed, err := ParseKind(want[i])
		require.NoError(t, err)
		assert.Equal(t, kind, parsed)
	}
	_, err := ParseKind("beans")
	assert.Error(t, err)
	assert.False(t, Kind(99).Valid())
	assert.Equal(t, "Kind(99)", Kind(99).String())
}

func TestNameStringAndParse(t *testing.T) {
	tests := []struct {
		name Name
		want string
	}{
		{
			name: Name{Domain: "flowmgmt", Context: "camel-1", Kind: KindRoute, Local: "foo"},
			want: `flowmgmt:context=camel-1,type=routes,name="foo"`,
		},
		{
			name: Name{Domain: "flowmgmt", Context: "camel-1", Kind: KindEndpoint, Local: "seda://foo?size=10"},
			want: `flowmgmt:context=camel-1,type=endpoints,name="seda\://foo\?size=10"`,
		},
		{
			name: Name{Domain: "flowmgmt", Context: "host/a,b", Kind: KindContext, Local: `say "hi"*`},
			want: `flowmgmt:context=host/a\,b,type=context,name="say \"hi\"\*"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.name.String())
			parsed, err := Parse(tt.want)
			require.NoError(t, err)
			assert.Equal(t, tt.name, parsed)
		})
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	for _, input := range []string{
		"",
		"no-domain",
		`d:type=routes,name="x"`,
		`d:context=c,name="x"`,
		`d:context=c,type=bogus,name="x"`,
		`d:context=c,type=routes,name=x`,
		`d:context=c,type=routes,name="x"trailing`,
	} {
		_, err := Parse(input)
		require.Error(t, err, input)
		assert.True(t, errors.Is(err, errMalformedName))
	}
}

func TestEscapeLocalRoundTrip(t *testing.T) {
	raw := `mock:result?x="1"&y=*`
	escaped := EscapeLocal(raw)
	assert.NotContains(t, UnescapeLocal(escaped), `\`)
	assert.Equal(t, raw, UnescapeLocal(escaped))
	assert.Equal(t, "plain", EscapeLocal("plain"))
}

func TestNormalizeEndpointURI(t *testing.T) {
	tests := map[string]string{
		"direct:start":                           "direct://start",
		"mock://result":                          "mock://result",
		"seda:foo?size=10&concurrentConsumers=2": "seda://foo?concurrentConsumers=2&size=10",
		"log:foo?level=INFO&showAll=true":        "log://foo?level=INFO&showAll=true",
		"broker:orders?group=a b":                "broker://orders?group=a+b",
		"  direct:x  ":                           "direct://x",
		"nocolon":                                "nocolon",
		"seda:q?":                                "seda://q",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeEndpointURI(in), in)
	}
}

func TestBaseURIAndScheme(t *testing.T) {
	assert.Equal(t, "seda://foo", BaseURI("seda://foo?size=10&x=?"))
	assert.Equal(t, "direct:start", BaseURI("direct:start"))
	assert.Equal(t, "seda", Scheme("seda:foo"))
	assert.Equal(t, "", Scheme("foo"))
}

func TestCounter(t *testing.T) {
	c := NewCounterAt(0)
	assert.Equal(t, int64(1), c.Next())
	assert.Equal(t, int64(2), c.Next())
	assert.Equal(t, int64(2), c.Current())

	shared := NewCounter()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			shared.Next()
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(50), shared.Current())
}

func TestStrategyContextIdentity(t *testing.T) {
	s := NewStrategy("flowmgmt", "", false, NewCounterAt(0))

	first := s.ContextIdentity("camel", true)
	second := s.ContextIdentity("camel", true)
	assert.Equal(t, ContextIdentity{RawName: "camel", ManagementName: "camel-1"}, first)
	assert.Equal(t, ContextIdentity{RawName: "camel", ManagementName: "camel-2"}, second)

	explicit := s.ContextIdentity("orders", false)
	assert.Equal(t, "orders", explicit.ManagementName)

	retried := s.Retry(explicit)
	assert.Equal(t, "orders-3", retried.ManagementName)
	assert.Equal(t, "orders", retried.RawName)
}

func TestStrategyPatternAndHost(t *testing.T) {
	host := func() (string, error) { return "node-a", nil }
	s := NewStrategy("flowmgmt", "ops-#name#", true, NewCounterAt(0), WithHostnameFunc(host))
	assert.Equal(t, "node-a/ops-orders", s.ContextIdentity("orders", false).ManagementName)

	counted := NewStrategy("flowmgmt", "#name#-#counter#", false, NewCounterAt(6))
	assert.Equal(t, "orders-7", counted.ContextIdentity("orders", false).ManagementName)
	assert.Equal(t, "orders-8", counted.ContextIdentity("orders", false).ManagementName)

	failing := NewStrategy("flowmgmt", "", true, nil, WithHostnameFunc(func() (string, error) {
		return "", errors.New("no host")
	}))
	assert.Equal(t, "orders", failing.ContextIdentity("orders", false).ManagementName)
}

func TestStrategySharesCounter(t *testing.T) {
	counter := NewCounterAt(0)
	a := NewStrategy("d", "", false, counter)
	b := NewStrategy("d", "", false, counter)
	assert.Equal(t, "camel-1", a.ContextIdentity("camel", true).ManagementName)
	assert.Equal(t, "camel-2", b.ContextIdentity("camel", true).ManagementName)
}

func TestStrategyResolveIsDeterministic(t *testing.T) {
	s := NewStrategy("flowmgmt", "", false, NewCounter())

	endpoint := s.Resolve(KindEndpoint, "camel-1", "seda:foo?b=2&a=1")
	assert.Equal(t, Name{Domain: "flowmgmt", Context: "camel-1", Kind: KindEndpoint, Local: "seda://foo?a=1&b=2"}, endpoint)
	assert.Equal(t, endpoint, s.Resolve(KindEndpoint, "camel-1", "seda:foo?b=2&a=1"))

	ctx := s.Resolve(KindContext, "camel-1", "ignored")
	assert.Equal(t, "camel-1", ctx.Local)

	route := s.Resolve(KindRoute, "camel-1", "foo")
	assert.Equal(t, "foo", route.Local)
	assert.True(t, KindRoute.RouteScoped())
	assert.False(t, KindEndpoint.RouteScoped())
}
