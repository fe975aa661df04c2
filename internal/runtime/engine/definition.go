package engine

import (
	"strings"
	"time"
)

// Property is an ordered route property.
type Property struct {
	Key   string `json:"key" yaml:"key"`
	Value string `json:"value" yaml:"value"`
}

// ErrorPolicy is the onException block of a route.
type ErrorPolicy struct {
	// Handled marks failures as dealt with so the caller sees success.
	Handled         bool
	MaxRedeliveries int
	RedeliveryDelay time.Duration
	steps           []*Node
}

// Steps returns the steps run for a failed exchange.
func (p *ErrorPolicy) Steps() []*Node { return p.steps }

// RouteDefinition declares a route. Build one with From and add it to a
// context with AddRoutes.
type RouteDefinition struct {
	id          string
	description string
	from        string
	properties  []Property
	steps       []*Node
	policy      *ErrorPolicy
	autoStartup bool

	templateID     string
	templateParams []string

	// generatedID and intercepts are fixed by the first build so a rebuilt
	// route keeps its id and step ids.
	generatedID     string
	intercepts      []*Node
	interceptSource []*Node
}

// From starts a route definition consuming from uri.
func From(uri string) *RouteDefinition {
	return &RouteDefinition{from: uri, autoStartup: true}
}

func (d *RouteDefinition) RouteID(id string) *RouteDefinition {
	d.id = id
	return d
}

func (d *RouteDefinition) Describe(description string) *RouteDefinition {
	d.description = description
	return d
}

// Property appends a route property. Order is kept.
func (d *RouteDefinition) Property(key, value string) *RouteDefinition {
	d.properties = append(d.properties, Property{Key: key, Value: value})
	return d
}

// Steps appends steps to the route.
func (d *RouteDefinition) Steps(steps ...*Node) *RouteDefinition {
	d.steps = append(d.steps, steps...)
	return d
}

// OnException sets the route error policy. The given steps run for every
// failed exchange once redeliveries are exhausted.
func (d *RouteDefinition) OnException(handled bool, maxRedeliveries int, delay time.Duration, steps ...*Node) *RouteDefinition {
	for _, s := range steps {
		s.walk(func(n *Node) { n.internal = true })
	}
	d.policy = &ErrorPolicy{
		Handled:         handled,
		MaxRedeliveries: maxRedeliveries,
		RedeliveryDelay: delay,
		steps:           steps,
	}
	return d
}

// NoAutoStartup keeps the route stopped when the context starts.
func (d *RouteDefinition) NoAutoStartup() *RouteDefinition {
	d.autoStartup = false
	return d
}

// AsTemplate turns the definition into a route template. Template routes are
// never started; AddRouteFromTemplate instantiates them, replacing "{{param}}"
// in uris and log messages.
func (d *RouteDefinition) AsTemplate(templateID string, params ...string) *RouteDefinition {
	d.templateID = templateID
	d.templateParams = params
	return d
}

func (d *RouteDefinition) ID() string                   { return d.id }
func (d *RouteDefinition) Description() string          { return d.description }
func (d *RouteDefinition) FromURI() string              { return d.from }
func (d *RouteDefinition) Properties() []Property       { return d.properties }
func (d *RouteDefinition) Nodes() []*Node               { return d.steps }
func (d *RouteDefinition) ErrorPolicy() *ErrorPolicy    { return d.policy }
func (d *RouteDefinition) IsTemplate() bool             { return d.templateID != "" }
func (d *RouteDefinition) TemplateID() string           { return d.templateID }
func (d *RouteDefinition) TemplateParameters() []string { return d.templateParams }

// instantiate copies a template into a plain definition.
func (d *RouteDefinition) instantiate(routeID string, params map[string]string) *RouteDefinition {
	pairs := make([]string, 0, len(params)*2)
	for k, v := range params {
		pairs = append(pairs, "{{"+k+"}}", v)
	}
	replacer := strings.NewReplacer(pairs...)
	substitute := replacer.Replace

	out := &RouteDefinition{
		id:          routeID,
		description: substitute(d.description),
		from:        substitute(d.from),
		properties:  append([]Property(nil), d.properties...),
		autoStartup: d.autoStartup,
	}
	for _, s := range d.steps {
		out.steps = append(out.steps, s.clone(substitute))
	}
	if d.policy != nil {
		p := *d.policy
		p.steps = nil
		for _, s := range d.policy.steps {
			p.steps = append(p.steps, s.clone(substitute))
		}
		out.policy = &p
	}
	return out
}
