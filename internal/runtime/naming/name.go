package naming

import (
	"errors"
	"fmt"
	"strings"
)

// Name identifies a managed object inside one registry.
//
// The canonical string form is
//
//	<domain>:context=<context>,type=<kind>,name="<local>"
//
// where the context and local segments are backslash-escaped so the string
// can always be parsed back.
type Name struct {
	Domain  string
	Context string
	Kind    Kind
	Local   string
}

func (n Name) String() string {
	var b strings.Builder
	b.Grow(len(n.Domain) + len(n.Context) + len(n.Local) + 32)
	b.WriteString(n.Domain)
	b.WriteString(":context=")
	b.WriteString(escape(n.Context, contextReserved))
	b.WriteString(",type=")
	b.WriteString(n.Kind.String())
	b.WriteString(`,name="`)
	b.WriteString(EscapeLocal(n.Local))
	b.WriteByte('"')
	return b.String()
}

// IsZero reports whether n is the zero Name.
func (n Name) IsZero() bool {
	return n == Name{}
}

const (
	localReserved   = `\"*?:`
	contextReserved = `\"*?:,=`
)

// EscapeLocal backslash-escapes the characters that would otherwise break the
// quoted name segment or be mistaken for wildcards.
func EscapeLocal(s string) string {
	return escape(s, localReserved)
}

// UnescapeLocal reverses EscapeLocal.
func UnescapeLocal(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	escaped := false
	for _, r := range s {
		if escaped {
			b.WriteRune(r)
			escaped = false
			continue
		}
		if r == '\\' {
			escaped = true
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func escape(s, reserved string) string {
	if !strings.ContainsAny(s, reserved) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 8)
	for _, r := range s {
		if strings.ContainsRune(reserved, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

var errMalformedName = errors.New("malformed management name")

// Parse reads the canonical string form produced by Name.String.
func Parse(s string) (Name, error) {
	domain, rest, ok := strings.Cut(s, ":")
	if !ok || domain == "" {
		return Name{}, fmt.Errorf("%w: %q: missing domain", errMalformedName, s)
	}
	ctx, rest, ok := scanValue(rest, "context=", ',')
	if !ok {
		return Name{}, fmt.Errorf("%w: %q: missing context", errMalformedName, s)
	}
	kindText, rest, ok := scanValue(rest, "type=", ',')
	if !ok {
		return Name{}, fmt.Errorf("%w: %q: missing type", errMalformedName, s)
	}
	kind, err := ParseKind(kindText)
	if err != nil {
		return Name{}, fmt.Errorf("%w: %q: %v", errMalformedName, s, err)
	}
	local, ok := scanQuoted(rest, "name=")
	if !ok {
		return Name{}, fmt.Errorf("%w: %q: missing name", errMalformedName, s)
	}
	return Name{Domain: domain, Context: ctx, Kind: kind, Local: local}, nil
}

// scanValue reads key followed by an escaped value up to an unescaped stop rune.
func scanValue(s, key string, stop rune) (value, rest string, ok bool) {
	if !strings.HasPrefix(s, key) {
		return "", "", false
	}
	s = s[len(key):]
	var b strings.Builder
	escaped := false
	for i, r := range s {
		switch {
		case escaped:
			b.WriteRune(r)
			escaped = false
		case r == '\\':
			escaped = true
		case r == stop:
			return b.String(), s[i+1:], true
		default:
			b.WriteRune(r)
		}
	}
	return "", "", false
}

// scanQuoted reads key followed by a double-quoted escaped value that must end the input.
func scanQuoted(s, key string) (string, bool) {
	if !strings.HasPrefix(s, key+`"`) {
		return "", false
	}
	s = s[len(key)+1:]
	var b strings.Builder
	escaped := false
	for i, r := range s {
		switch {
		case escaped:
			b.WriteRune(r)
			escaped = false
		case r == '\\':
			escaped = true
		case r == '"':
			return b.String(), i == len(s)-1
		default:
			b.WriteRune(r)
		}
	}
	return "", false
}
