// Package naming derives management names for runtime objects.
package naming

import (
	"os"
	"strconv"
	"strings"
)

const (
	nameToken    = "#name#"
	counterToken = "#counter#"
)

// ContextIdentity pairs the name a context was created with and the name it
// is registered under.
type ContextIdentity struct {
	RawName        string
	ManagementName string
}

// Strategy computes management names. It is a value built from the current
// agent settings; the counter is the only shared state.
type Strategy struct {
	Domain          string
	Pattern         string
	IncludeHostName bool

	counter  *Counter
	hostname func() (string, error)
}

// StrategyOption customizes a Strategy.
type StrategyOption func(*Strategy)

// WithHostnameFunc replaces os.Hostname, mainly for tests.
func WithHostnameFunc(fn func() (string, error)) StrategyOption {
	return func(s *Strategy) { s.hostname = fn }
}

// NewStrategy builds a strategy. An empty pattern maps names to themselves.
func NewStrategy(domain, pattern string, includeHostName bool, counter *Counter, opts ...StrategyOption) *Strategy {
	if pattern == "" {
		pattern = nameToken
	}
	if counter == nil {
		counter = NewCounter()
	}
	s := &Strategy{
		Domain:          domain,
		Pattern:         pattern,
		IncludeHostName: includeHostName,
		counter:         counter,
		hostname:        os.Hostname,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NextName returns raw suffixed with the next counter value.
func (s *Strategy) NextName(raw string) string {
	return raw + "-" + strconv.FormatInt(s.counter.Next(), 10)
}

// ContextIdentity derives the identity of a context. Generated contexts always
// receive a counter suffix so two unnamed contexts never share a name;
// explicitly named contexts go through the pattern unchanged.
func (s *Strategy) ContextIdentity(raw string, generated bool) ContextIdentity {
	base := raw
	if generated {
		base = s.NextName(raw)
	}
	return ContextIdentity{RawName: raw, ManagementName: s.applyPattern(base)}
}

// Retry derives the identity used after a clash on previous: the raw name
// gets a fresh suffix and the pattern is applied again.
func (s *Strategy) Retry(previous ContextIdentity) ContextIdentity {
	return ContextIdentity{RawName: previous.RawName, ManagementName: s.applyPattern(s.NextName(previous.RawName))}
}

func (s *Strategy) applyPattern(name string) string {
	out := strings.ReplaceAll(s.Pattern, nameToken, name)
	if strings.Contains(out, counterToken) {
		out = strings.ReplaceAll(out, counterToken, strconv.FormatInt(s.counter.Next(), 10))
	}
	if s.IncludeHostName {
		if host, err := s.hostname(); err == nil && host != "" {
			out = host + "/" + out
		}
	}
	return out
}

// Resolve names an object of the given kind inside a context. Endpoint hints
// are normalized uris; the context kind is named after the context itself.
func (s *Strategy) Resolve(kind Kind, contextName, localHint string) Name {
	local := localHint
	switch kind {
	case KindContext:
		local = contextName
	case KindEndpoint:
		local = NormalizeEndpointURI(localHint)
	}
	return Name{Domain: s.Domain, Context: contextName, Kind: kind, Local: local}
}
