// Package managed implements the managed object of every kind. Each kind has
// one static descriptor: a table of attribute getters and named operations
// that the registry Handle interface dispatches through.
package managed

import (
	"context"
	"fmt"
	"slices"

	flowerrors "github.com/drblury/flowmgmt/internal/runtime/errors"
	"github.com/drblury/flowmgmt/internal/runtime/naming"
	"github.com/drblury/flowmgmt/internal/runtime/stats"
)

type attribute[T any] struct {
	get func(T) any
	// available hides the attribute when it returns false.
	available func(T) bool
}

type operation[T any] func(ctx context.Context, obj T, args []any) (any, error)

type descriptor[T any] struct {
	kind  naming.Kind
	attrs map[string]attribute[T]
	ops   map[string]operation[T]
}

func (d *descriptor[T]) attributeNames(obj T) []string {
	names := make([]string, 0, len(d.attrs))
	for name, a := range d.attrs {
		if a.available == nil || a.available(obj) {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names
}

func (d *descriptor[T]) attribute(obj T, name string) (any, error) {
	a, ok := d.attrs[name]
	if !ok || (a.available != nil && !a.available(obj)) {
		return nil, fmt.Errorf("%s attribute %q: %w", d.kind, name, flowerrors.ErrUnknownAttribute)
	}
	return a.get(obj), nil
}

func (d *descriptor[T]) invoke(ctx context.Context, obj T, op string, args []any) (any, error) {
	fn, ok := d.ops[op]
	if !ok {
		return nil, fmt.Errorf("%s operation %q: %w", d.kind, op, flowerrors.ErrUnknownOperation)
	}
	return fn(ctx, obj, args)
}

func (d *descriptor[T]) operationNames() []string {
	names := make([]string, 0, len(d.ops))
	for name := range d.ops {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// measured is embedded by objects that carry statistics.
type measured struct {
	stats *stats.Statistics
}

// AttachStats sets the statistics the object reports. The agent calls it
// before the object is published.
func (m *measured) AttachStats(s *stats.Statistics) { m.stats = s }

func (m *measured) Stats() *stats.Statistics { return m.stats }

func (m *measured) snapshot() stats.Snapshot {
	if m.stats == nil {
		return stats.Snapshot{}
	}
	return m.stats.Snapshot()
}

func (m *measured) reset() {
	if m.stats != nil {
		m.stats.Reset()
	}
}

// counterAttributes are shared by every measured kind.
func counterAttributes[T interface{ snapshot() stats.Snapshot }]() map[string]attribute[T] {
	return map[string]attribute[T]{
		"ExchangesTotal":     {get: func(o T) any { return o.snapshot().ExchangesTotal }},
		"ExchangesCompleted": {get: func(o T) any { return o.snapshot().ExchangesCompleted }},
		"ExchangesFailed":    {get: func(o T) any { return o.snapshot().ExchangesFailed }},
		"FailuresHandled":    {get: func(o T) any { return o.snapshot().FailuresHandled }},
		"Redeliveries":       {get: func(o T) any { return o.snapshot().Redeliveries }},
		"ExchangesInflight":  {get: func(o T) any { return o.snapshot().ExchangesInflight }},
		"MinProcessingTime":  {get: func(o T) any { return o.snapshot().Processing.Min.Milliseconds() }},
		"MaxProcessingTime":  {get: func(o T) any { return o.snapshot().Processing.Max.Milliseconds() }},
		"MeanProcessingTime": {get: func(o T) any { return o.snapshot().Processing.Mean.Milliseconds() }},
		"LastProcessingTime": {get: func(o T) any { return o.snapshot().Processing.Last.Milliseconds() }},
	}
}

func with[T any](base map[string]attribute[T], extra map[string]attribute[T]) map[string]attribute[T] {
	for k, v := range extra {
		base[k] = v
	}
	return base
}
