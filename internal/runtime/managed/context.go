package managed

import (
	"context"

	"github.com/drblury/flowmgmt/internal/runtime/dump"
	"github.com/drblury/flowmgmt/internal/runtime/engine"
	"github.com/drblury/flowmgmt/internal/runtime/naming"
	"github.com/drblury/flowmgmt/internal/runtime/stats"
)

// Context is the managed view of an engine context.
type Context struct {
	measured
	env *Env
}

func NewContext(env *Env) *Context {
	return &Context{env: env}
}

var contextDescriptor = &descriptor[*Context]{
	kind: naming.KindContext,
	attrs: with(counterAttributes[*Context](), map[string]attribute[*Context]{
		"Id":             {get: func(c *Context) any { return c.env.Context.Name() }},
		"ManagementName": {get: func(c *Context) any { return c.env.Identity.ManagementName }},
		"State":          {get: func(c *Context) any { return c.env.Context.Status().String() }},
		"Version":        {get: func(c *Context) any { return c.env.Context.Version() }},
		"GlobalOptions":  {get: func(c *Context) any { return c.env.Context.GlobalOptions() }},
		"Uptime":         {get: func(c *Context) any { return c.env.Context.Uptime().String() }},
		"UptimeMillis":   {get: func(c *Context) any { return c.env.Context.Uptime().Milliseconds() }},
		"TotalRoutes":    {get: func(c *Context) any { return len(c.env.Context.Routes()) }},
		"Goroutines":     {get: func(c *Context) any { return c.env.Resources.Snapshot().Goroutines }},
		"MemoryBytes":    {get: func(c *Context) any { return c.env.Resources.Snapshot().MemoryBytes }},
		"EndpointUtilization": {
			get:       func(c *Context) any { return utilization(c.stats) },
			available: func(c *Context) bool { return c.stats != nil && c.stats.UtilizationEnabled() },
		},
	}),
	ops: map[string]operation[*Context]{
		"start": func(ctx context.Context, c *Context, _ []any) (any, error) {
			return nil, c.env.Context.Start(ctx)
		},
		"stop": func(ctx context.Context, c *Context, _ []any) (any, error) {
			return nil, c.env.Context.Stop(ctx)
		},
		"requestBody": func(ctx context.Context, c *Context, args []any) (any, error) {
			uri, err := argString(args, 0)
			if err != nil {
				return nil, err
			}
			var body any
			if len(args) > 1 {
				body = args[1]
			}
			return c.env.Context.RequestBody(ctx, uri, body)
		},
		"dumpStructureRoutesAsYaml": func(_ context.Context, c *Context, _ []any) (any, error) {
			return c.DumpStructureRoutesAsYAML()
		},
		"dumpRoutesAsXml": func(_ context.Context, c *Context, _ []any) (any, error) {
			return c.DumpRoutesAsXML()
		},
		"dumpRouteTemplatesAsXml": func(_ context.Context, c *Context, _ []any) (any, error) {
			return dump.TemplatesXML(dump.TemplateStructures(c.env.Context))
		},
		"dumpRoutesStatsAsXml": func(_ context.Context, c *Context, args []any) (any, error) {
			includeProcessors, err := argBool(args, 0, true)
			if err != nil {
				return nil, err
			}
			fullStats, err := argBool(args, 1, false)
			if err != nil {
				return nil, err
			}
			return c.DumpRoutesStatsAsXML(includeProcessors, fullStats)
		},
		"reset": func(_ context.Context, c *Context, _ []any) (any, error) {
			c.reset()
			return nil, nil
		},
	},
}

func (c *Context) Kind() naming.Kind        { return naming.KindContext }
func (c *Context) AttributeNames() []string { return contextDescriptor.attributeNames(c) }
func (c *Context) Operations() []string     { return contextDescriptor.operationNames() }

func (c *Context) Attribute(name string) (any, error) {
	return contextDescriptor.attribute(c, name)
}

func (c *Context) Invoke(ctx context.Context, op string, args ...any) (any, error) {
	return contextDescriptor.invoke(ctx, c, op, args)
}

// Target returns the managed engine context.
func (c *Context) Target() *engine.Context { return c.env.Context }

func (c *Context) DumpStructureRoutesAsYAML() (string, error) {
	routes, err := dump.Structure(c.env.Context, "")
	if err != nil {
		return "", err
	}
	return dump.StructureYAML(routes)
}

func (c *Context) DumpRoutesAsXML() (string, error) {
	routes, err := dump.Structure(c.env.Context, "")
	if err != nil {
		return "", err
	}
	return dump.StructureXML(routes)
}

func (c *Context) DumpRoutesStatsAsXML(includeProcessors, fullStats bool) (string, error) {
	return dump.ContextStatsXML(c.env.Context, c.env.Context.Name(), contextLookup{c}, includeProcessors, fullStats)
}

// contextLookup answers the context kind with the object's own statistics.
type contextLookup struct{ c *Context }

func (l contextLookup) Stats(kind naming.Kind, local string) *stats.Statistics {
	if kind == naming.KindContext {
		return l.c.stats
	}
	return l.c.env.lookup(kind, local)
}

func utilization(s *stats.Statistics) map[string]int {
	out := map[string]int{}
	for _, h := range s.EndpointUtilization() {
		out[h.URI] = h.Hits
	}
	return out
}
