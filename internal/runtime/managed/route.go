package managed

import (
	"context"
	"slices"

	"github.com/drblury/flowmgmt/internal/runtime/dump"
	"github.com/drblury/flowmgmt/internal/runtime/engine"
	"github.com/drblury/flowmgmt/internal/runtime/naming"
)

// Route is the managed view of a route.
type Route struct {
	measured
	env   *Env
	route *engine.Route
}

func NewRoute(env *Env, r *engine.Route) *Route {
	return &Route{env: env, route: r}
}

var routeDescriptor = &descriptor[*Route]{
	kind: naming.KindRoute,
	attrs: with(counterAttributes[*Route](), map[string]attribute[*Route]{
		"RouteId":     {get: func(r *Route) any { return r.route.ID() }},
		"State":       {get: func(r *Route) any { return r.route.Status().String() }},
		"Description": {get: func(r *Route) any { return r.route.Description() }},
		"EndpointUri": {get: func(r *Route) any { return r.route.FromURI() }},
		"CamelId":     {get: func(r *Route) any { return r.env.Identity.ManagementName }},
		"Uptime":      {get: func(r *Route) any { return r.route.Uptime().String() }},
		"OldestInflightDuration": {get: func(r *Route) any {
			if oldest := r.snapshot().OldestInflight; oldest != nil {
				return oldest.Duration.Milliseconds()
			}
			return nil
		}},
		"OldestInflightExchangeId": {get: func(r *Route) any {
			if oldest := r.snapshot().OldestInflight; oldest != nil {
				return oldest.ExchangeID
			}
			return nil
		}},
	}),
	ops: map[string]operation[*Route]{
		"start": func(ctx context.Context, r *Route, _ []any) (any, error) {
			return nil, r.env.Context.StartRoute(ctx, r.route.ID())
		},
		"stop": func(ctx context.Context, r *Route, _ []any) (any, error) {
			return nil, r.env.Context.StopRoute(ctx, r.route.ID())
		},
		"remove": func(ctx context.Context, r *Route, _ []any) (any, error) {
			return nil, r.env.Context.RemoveRoute(ctx, r.route.ID())
		},
		"getRouteProperties": func(_ context.Context, r *Route, _ []any) (any, error) {
			return r.Properties(), nil
		},
		"dumpRouteStatsAsXml": func(_ context.Context, r *Route, args []any) (any, error) {
			includeProcessors, err := argBool(args, 0, true)
			if err != nil {
				return nil, err
			}
			fullStats, err := argBool(args, 1, false)
			if err != nil {
				return nil, err
			}
			return dump.RouteStatsXML(r.route, r.env.statsLookup(), includeProcessors, fullStats)
		},
		"dumpRouteAsYaml": func(_ context.Context, r *Route, _ []any) (any, error) {
			return dump.StructureYAML([]dump.Route{dump.RouteStructure(r.route, r.env.Context.SourceLocationsEnabled())})
		},
		"dumpRouteAsXml": func(_ context.Context, r *Route, _ []any) (any, error) {
			return dump.StructureXML([]dump.Route{dump.RouteStructure(r.route, r.env.Context.SourceLocationsEnabled())})
		},
		"reset": func(_ context.Context, r *Route, args []any) (any, error) {
			includeProcessors, err := argBool(args, 0, false)
			if err != nil {
				return nil, err
			}
			r.Reset(includeProcessors)
			return nil, nil
		},
	},
}

func (r *Route) Kind() naming.Kind        { return naming.KindRoute }
func (r *Route) AttributeNames() []string { return routeDescriptor.attributeNames(r) }
func (r *Route) Operations() []string     { return routeDescriptor.operationNames() }
func (r *Route) Target() *engine.Route    { return r.route }

func (r *Route) Attribute(name string) (any, error) {
	return routeDescriptor.attribute(r, name)
}

func (r *Route) Invoke(ctx context.Context, op string, args ...any) (any, error) {
	return routeDescriptor.invoke(ctx, r, op, args)
}

// Properties returns the route properties in declaration order.
func (r *Route) Properties() []engine.Property {
	return slices.Clone(r.route.Properties())
}

// Reset zeroes the route counters and, optionally, those of its steps.
func (r *Route) Reset(includeProcessors bool) {
	r.reset()
	if !includeProcessors {
		return
	}
	for _, n := range r.route.Processors() {
		if s := r.env.lookup(naming.KindProcessor, n.ID()); s != nil {
			s.Reset()
		}
	}
}
