// Package dump renders route topology, statistics and browsed messages as
// YAML and XML documents.
package dump

import (
	"fmt"
	"maps"
	"slices"

	"github.com/drblury/flowmgmt/internal/runtime/engine"
	flowerrors "github.com/drblury/flowmgmt/internal/runtime/errors"
)

// Step is one node of a structure dump.
type Step struct {
	Type       string
	ID         string
	CustomID   bool
	Disabled   bool
	Attributes map[string]string
	// Line and Origin locate the step declaration when source locations are
	// enabled on the context.
	Line   int
	Origin string
	Steps  []Step
}

// Route is the structure of a route or route template.
type Route struct {
	ID          string
	Description string
	From        string
	Properties  []engine.Property
	Steps       []Step
	// OnException holds the error handling steps, if any.
	OnException []Step

	TemplateID         string
	TemplateParameters []string
}

// Structure returns the structure of route routeID, or of every route when
// routeID is empty.
func Structure(c *engine.Context, routeID string) ([]Route, error) {
	withLocations := c.SourceLocationsEnabled()
	if routeID == "" {
		routes := c.Routes()
		out := make([]Route, 0, len(routes))
		for _, r := range routes {
			out = append(out, RouteStructure(r, withLocations))
		}
		return out, nil
	}
	r := c.Route(routeID)
	if r == nil {
		return nil, fmt.Errorf("route %q: %w", routeID, flowerrors.ErrRouteNotFound)
	}
	return []Route{RouteStructure(r, withLocations)}, nil
}

// RouteStructure describes a running route, including intercepted steps.
func RouteStructure(r *engine.Route, withLocations bool) Route {
	out := Route{
		ID:          r.ID(),
		Description: r.Description(),
		From:        r.FromURI(),
		Properties:  r.Properties(),
		Steps:       steps(r.Nodes(), withLocations),
	}
	if p := r.ErrorPolicy(); p != nil {
		out.OnException = steps(p.Steps(), withLocations)
	}
	return out
}

// TemplateStructures describes route templates.
func TemplateStructures(c *engine.Context) []Route {
	withLocations := c.SourceLocationsEnabled()
	var out []Route
	for _, def := range c.Templates() {
		r := Route{
			ID:                 def.ID(),
			Description:        def.Description(),
			From:               def.FromURI(),
			Properties:         def.Properties(),
			Steps:              steps(def.Nodes(), withLocations),
			TemplateID:         def.TemplateID(),
			TemplateParameters: def.TemplateParameters(),
		}
		if p := def.ErrorPolicy(); p != nil {
			r.OnException = steps(p.Steps(), withLocations)
		}
		out = append(out, r)
	}
	return out
}

func steps(nodes []*engine.Node, withLocations bool) []Step {
	out := make([]Step, 0, len(nodes))
	for _, n := range nodes {
		s := Step{
			Type:       n.Type(),
			ID:         n.ID(),
			CustomID:   n.HasCustomID(),
			Disabled:   n.Disabled(),
			Attributes: n.Attributes(),
			Steps:      steps(n.Children(), withLocations),
		}
		if loc := n.Location(); withLocations && !loc.IsZero() {
			s.Line = loc.Line
			s.Origin = loc.File
		}
		out = append(out, s)
	}
	return out
}

func sortedKeys(m map[string]string) []string {
	return slices.Sorted(maps.Keys(m))
}
