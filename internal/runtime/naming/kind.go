package naming

import "fmt"

// Kind is the closed set of managed object kinds. The kind selects the
// attribute and operation table of a managed object and the type segment of
// its name.
type Kind int

const (
	KindContext Kind = iota
	KindRoute
	KindProcessor
	KindEndpoint
	KindProducer
	KindConsumer
	KindThreadPool
	KindService
)

var kindNames = [...]string{
	KindContext:    "context",
	KindRoute:      "routes",
	KindProcessor:  "processors",
	KindEndpoint:   "endpoints",
	KindProducer:   "producers",
	KindConsumer:   "consumers",
	KindThreadPool: "threadpools",
	KindService:    "services",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// Valid reports whether k is one of the declared kinds.
func (k Kind) Valid() bool {
	return k >= 0 && int(k) < len(kindNames)
}

// RouteScoped reports whether objects of this kind belong to a route and are
// therefore subject to the register-new-routes policy.
func (k Kind) RouteScoped() bool {
	switch k {
	case KindRoute, KindProcessor, KindConsumer, KindProducer, KindThreadPool:
		return true
	default:
		return false
	}
}

// ParseKind converts the type segment of a name back into a Kind.
func ParseKind(s string) (Kind, error) {
	for i, name := range kindNames {
		if name == s {
			return Kind(i), nil
		}
	}
	return 0, fmt.Errorf("unknown kind %q", s)
}

// Kinds returns every declared kind in declaration order.
func Kinds() []Kind {
	out := make([]Kind, len(kindNames))
	for i := range kindNames {
		out[i] = Kind(i)
	}
	return out
}
