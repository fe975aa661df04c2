package naming

import "sync/atomic"

// Counter hands out the numeric suffixes used to resolve context name clashes.
// One counter is shared by every strategy of a process; tests construct their
// own with NewCounterAt to make generated names deterministic.
type Counter struct {
	n atomic.Int64
}

// NewCounter returns a counter whose first Next value is 1.
func NewCounter() *Counter {
	return &Counter{}
}

// NewCounterAt returns a counter whose first Next value is start+1.
func NewCounterAt(start int64) *Counter {
	c := &Counter{}
	c.n.Store(start)
	return c
}

// Next increments and returns the counter.
func (c *Counter) Next() int64 {
	return c.n.Add(1)
}

// Current returns the last value handed out.
func (c *Counter) Current() int64 {
	return c.n.Load()
}
