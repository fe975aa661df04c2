package registry

import (
	"fmt"
	"strings"

	"github.com/drblury/flowmgmt/internal/runtime/naming"
)

// Pattern selects names. Every field is either empty (match anything), an
// exact value, or a value with a trailing '*' matching by prefix. Values use
// the escaped form of naming.EscapeLocal.
type Pattern struct {
	Domain  string
	Context string
	Kind    string
	Local   string
}

// All matches every name.
var All = Pattern{}

// KindPattern matches every name of kind in domain.
func KindPattern(domain string, kind naming.Kind) Pattern {
	return Pattern{Domain: domain, Kind: kind.String()}
}

// ExactPattern matches only name.
func ExactPattern(name naming.Name) Pattern {
	return Pattern{
		Domain:  name.Domain,
		Context: naming.EscapeLocal(name.Context),
		Kind:    name.Kind.String(),
		Local:   naming.EscapeLocal(name.Local),
	}
}

// ContextPattern matches every name registered for contextName.
func ContextPattern(domain, contextName string) Pattern {
	return Pattern{Domain: domain, Context: naming.EscapeLocal(contextName)}
}

// Matches reports whether name is selected by p.
func (p Pattern) Matches(name naming.Name) bool {
	return matchSegment(p.Domain, name.Domain) &&
		matchSegment(p.Context, name.Context) &&
		matchSegment(p.Kind, name.Kind.String()) &&
		matchSegment(p.Local, name.Local)
}

func matchSegment(pattern, value string) bool {
	if pattern == "" || pattern == "*" {
		return true
	}
	if prefix, ok := strings.CutSuffix(pattern, "*"); ok && !strings.HasSuffix(prefix, `\`) {
		return strings.HasPrefix(value, naming.UnescapeLocal(prefix))
	}
	return naming.UnescapeLocal(pattern) == value
}

// ParsePattern reads patterns such as
//
//	flowmgmt:type=routes,*
//	flowmgmt:context=camel-1,type=processors,name="to*"
//	*:type=thread*
//
// A bare "*" or empty string matches everything. Canonical name strings are
// accepted and match exactly that name.
func ParsePattern(s string) (Pattern, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "*" || s == "*:*" {
		return All, nil
	}
	domain, props, ok := strings.Cut(s, ":")
	if !ok {
		return Pattern{}, fmt.Errorf("pattern %q: missing domain separator", s)
	}
	p := Pattern{Domain: domain}
	if domain == "*" {
		p.Domain = ""
	}
	for _, prop := range splitProperties(props) {
		if prop == "*" || prop == "" {
			continue
		}
		key, value, ok := strings.Cut(prop, "=")
		if !ok {
			return Pattern{}, fmt.Errorf("pattern %q: property %q is not key=value", s, prop)
		}
		switch key {
		case "context":
			p.Context = value
		case "type":
			p.Kind = value
		case "name":
			p.Local = trimQuotes(value)
		default:
			return Pattern{}, fmt.Errorf("pattern %q: unknown property %q", s, key)
		}
	}
	return p, nil
}

// splitProperties splits on commas that are neither escaped nor quoted.
func splitProperties(s string) []string {
	var (
		out     []string
		current strings.Builder
		escaped bool
		quoted  bool
	)
	for _, r := range s {
		switch {
		case escaped:
			escaped = false
		case r == '\\':
			escaped = true
		case r == '"':
			quoted = !quoted
		case r == ',' && !quoted:
			out = append(out, current.String())
			current.Reset()
			continue
		}
		current.WriteRune(r)
	}
	return append(out, current.String())
}

func trimQuotes(s string) string {
	if len(s) >= 2 && strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) {
		return s[1 : len(s)-1]
	}
	return s
}
