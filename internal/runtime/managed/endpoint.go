package managed

import (
	"context"

	"github.com/drblury/flowmgmt/internal/runtime/dump"
	"github.com/drblury/flowmgmt/internal/runtime/engine"
	"github.com/drblury/flowmgmt/internal/runtime/naming"
)

// Endpoint is the managed view of an endpoint.
type Endpoint struct {
	env      *Env
	endpoint engine.Endpoint
}

func NewEndpoint(env *Env, ep engine.Endpoint) *Endpoint {
	return &Endpoint{env: env, endpoint: ep}
}

var endpointDescriptor = &descriptor[*Endpoint]{
	kind: naming.KindEndpoint,
	attrs: map[string]attribute[*Endpoint]{
		"EndpointUri":     {get: func(e *Endpoint) any { return e.endpoint.URI() }},
		"EndpointBaseUri": {get: func(e *Endpoint) any { return naming.BaseURI(e.endpoint.URI()) }},
		"State":           {get: func(e *Endpoint) any { return e.endpoint.Status().String() }},
		"Singleton":       {get: func(e *Endpoint) any { return e.endpoint.Singleton() }},
		"CamelId":         {get: func(e *Endpoint) any { return e.env.Identity.ManagementName }},
		"Hits": {
			get:       func(e *Endpoint) any { return e.Hits() },
			available: func(e *Endpoint) bool { return e.contextStatsTracksHits() },
		},
	},
	ops: map[string]operation[*Endpoint]{
		"browseAllMessagesAsXml": func(_ context.Context, e *Endpoint, args []any) (any, error) {
			includeBody, err := argBool(args, 0, false)
			if err != nil {
				return nil, err
			}
			return e.BrowseAllMessagesAsXML(includeBody)
		},
		"queueSize": func(_ context.Context, e *Endpoint, _ []any) (any, error) {
			return e.QueueSize(), nil
		},
	},
}

func (e *Endpoint) Kind() naming.Kind        { return naming.KindEndpoint }
func (e *Endpoint) AttributeNames() []string { return endpointDescriptor.attributeNames(e) }
func (e *Endpoint) Operations() []string     { return endpointDescriptor.operationNames() }
func (e *Endpoint) Target() engine.Endpoint  { return e.endpoint }

func (e *Endpoint) Attribute(name string) (any, error) {
	return endpointDescriptor.attribute(e, name)
}

func (e *Endpoint) Invoke(ctx context.Context, op string, args ...any) (any, error) {
	return endpointDescriptor.invoke(ctx, e, op, args)
}

// QueueSize reports buffered exchanges; endpoints without a buffer report 0.
func (e *Endpoint) QueueSize() int {
	if q, ok := e.endpoint.(engine.QueueSizer); ok {
		return q.QueueSize()
	}
	return 0
}

// BrowseAllMessagesAsXML lists the exchanges a browsable endpoint holds.
// Other endpoints yield an empty document.
func (e *Endpoint) BrowseAllMessagesAsXML(includeBody bool) (string, error) {
	var exchanges []*engine.Exchange
	if b, ok := e.endpoint.(engine.BrowsableEndpoint); ok {
		exchanges = b.Exchanges()
	}
	return dump.MessagesXML(exchanges, includeBody)
}

// Hits is how often the endpoint appears in the context utilization sample.
func (e *Endpoint) Hits() int {
	s := e.env.lookup(naming.KindContext, e.env.Identity.ManagementName)
	if s == nil {
		return 0
	}
	for _, h := range s.EndpointUtilization() {
		if h.URI == e.endpoint.URI() {
			return h.Hits
		}
	}
	return 0
}

func (e *Endpoint) contextStatsTracksHits() bool {
	s := e.env.lookup(naming.KindContext, e.env.Identity.ManagementName)
	return s != nil && s.UtilizationEnabled()
}
