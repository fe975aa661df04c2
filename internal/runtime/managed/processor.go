package managed

import (
	"context"

	"github.com/drblury/flowmgmt/internal/runtime/dump"
	"github.com/drblury/flowmgmt/internal/runtime/engine"
	"github.com/drblury/flowmgmt/internal/runtime/naming"
)

// Processor is the managed view of a route step.
type Processor struct {
	measured
	env  *Env
	node *engine.Node
}

func NewProcessor(env *Env, n *engine.Node) *Processor {
	return &Processor{env: env, node: n}
}

var processorDescriptor = &descriptor[*Processor]{
	kind: naming.KindProcessor,
	attrs: with(counterAttributes[*Processor](), map[string]attribute[*Processor]{
		"ProcessorId": {get: func(p *Processor) any { return p.node.ID() }},
		"NodeType":    {get: func(p *Processor) any { return p.node.Type() }},
		"Index":       {get: func(p *Processor) any { return p.node.Index() }},
		"RouteId":     {get: func(p *Processor) any { return p.node.Route().ID() }},
		"CamelId":     {get: func(p *Processor) any { return p.env.Identity.ManagementName }},
		"Disabled":    {get: func(p *Processor) any { return p.node.Disabled() }},
		"State":       {get: func(p *Processor) any { return p.node.Route().Status().String() }},
		"SourceLocation": {
			get: func(p *Processor) any { return p.node.Location().File },
			available: func(p *Processor) bool {
				return p.env.Context.SourceLocationsEnabled() && !p.node.Location().IsZero()
			},
		},
		"SourceLineNumber": {
			get: func(p *Processor) any { return p.node.Location().Line },
			available: func(p *Processor) bool {
				return p.env.Context.SourceLocationsEnabled() && !p.node.Location().IsZero()
			},
		},
	}),
	ops: map[string]operation[*Processor]{
		"enable": func(_ context.Context, p *Processor, _ []any) (any, error) {
			p.node.SetDisabled(false)
			return nil, nil
		},
		"disable": func(_ context.Context, p *Processor, _ []any) (any, error) {
			p.node.SetDisabled(true)
			return nil, nil
		},
		"dumpProcessorStatsAsXml": func(_ context.Context, p *Processor, args []any) (any, error) {
			fullStats, err := argBool(args, 0, false)
			if err != nil {
				return nil, err
			}
			return dump.ProcessorStatsXML(p.node, p.env.statsLookup(), fullStats)
		},
		"reset": func(_ context.Context, p *Processor, _ []any) (any, error) {
			p.reset()
			return nil, nil
		},
	},
}

func (p *Processor) Kind() naming.Kind        { return naming.KindProcessor }
func (p *Processor) AttributeNames() []string { return processorDescriptor.attributeNames(p) }
func (p *Processor) Operations() []string     { return processorDescriptor.operationNames() }
func (p *Processor) Target() *engine.Node     { return p.node }

func (p *Processor) Attribute(name string) (any, error) {
	return processorDescriptor.attribute(p, name)
}

func (p *Processor) Invoke(ctx context.Context, op string, args ...any) (any, error) {
	return processorDescriptor.invoke(ctx, p, op, args)
}
