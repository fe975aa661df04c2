// Package engine is a small in-process routing engine: routes consume from an
// endpoint and pass each exchange through a pipeline of steps. It exposes the
// lifecycle events, statistics hooks and structure that the management layer
// observes.
package engine
