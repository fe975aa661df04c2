// Package stats gathers the performance counters attached to managed objects.
package stats

import (
	"sync"
	"sync/atomic"
	"time"
)

const defaultUtilizationSamples = 256

// Inflight describes the oldest exchange still being processed.
type Inflight struct {
	ExchangeID string
	Started    time.Time
	Duration   time.Duration
}

type inflightEntry struct {
	started time.Time
	seq     uint64
}

// Statistics holds the counters of one managed object. Counters only grow
// until Reset is called explicitly.
type Statistics struct {
	total        atomic.Uint64
	completed    atomic.Uint64
	failed       atomic.Uint64
	handled      atomic.Uint64
	redeliveries atomic.Uint64

	mu       sync.Mutex
	inflight map[string]inflightEntry
	seq      uint64
	timing   *processingWindow
	firstAt  time.Time
	lastAt   time.Time
	resetAt  time.Time
	hits     *utilizationWindow
	now      func() time.Time
}

// Option customizes a Statistics.
type Option func(*Statistics)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Statistics) { s.now = now }
}

// WithEndpointUtilization enables the rolling endpoint hit sample. Without it
// RecordEndpointHit is a no-op and nothing is allocated for tracking.
func WithEndpointUtilization(samples int) Option {
	return func(s *Statistics) {
		if samples <= 0 {
			samples = defaultUtilizationSamples
		}
		s.hits = newUtilizationWindow(samples)
	}
}

// New returns empty statistics.
func New(opts ...Option) *Statistics {
	s := &Statistics{
		inflight: make(map[string]inflightEntry),
		timing:   newProcessingWindow(processingSampleSize),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OnExchangeStart records id as inflight.
func (s *Statistics) OnExchangeStart(id string) {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, dup := s.inflight[id]; !dup {
		s.seq++
		s.inflight[id] = inflightEntry{started: now, seq: s.seq}
	}
	if s.firstAt.IsZero() {
		s.firstAt = now
	}
	s.total.Add(1)
}

// OnExchangeComplete removes id from the inflight set. Completed is always
// counted; a failure counts as failed unless it was handled.
func (s *Statistics) OnExchangeComplete(id string, failed, handled bool) {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, ok := s.inflight[id]; ok {
		delete(s.inflight, id)
		s.timing.Add(now.Sub(entry.started))
	}
	s.lastAt = now
	s.completed.Add(1)
	switch {
	case failed && handled:
		s.handled.Add(1)
	case failed:
		s.failed.Add(1)
	}
}

// OnRedelivery counts one redelivery attempt.
func (s *Statistics) OnRedelivery() {
	s.redeliveries.Add(1)
}

// RecordEndpointHit notes a send to or receive from uri.
func (s *Statistics) RecordEndpointHit(uri string) {
	if s.hits == nil {
		return
	}
	s.mu.Lock()
	s.hits.Add(uri)
	s.mu.Unlock()
}

// UtilizationEnabled reports whether endpoint hits are tracked.
func (s *Statistics) UtilizationEnabled() bool {
	return s.hits != nil
}

// EndpointUtilization returns hit counts of the recent sample, busiest first.
// It returns nil when tracking is disabled.
func (s *Statistics) EndpointUtilization() []EndpointHits {
	if s.hits == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits.Snapshot()
}

// InflightCount returns the number of exchanges currently inflight.
func (s *Statistics) InflightCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inflight)
}

// OldestInflight returns the exchange with the earliest start; ties go to the
// one recorded first. ok is false exactly when nothing is inflight.
func (s *Statistics) OldestInflight() (Inflight, bool) {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.oldestLocked(now)
}

func (s *Statistics) oldestLocked(now time.Time) (Inflight, bool) {
	var (
		oldestID string
		oldest   inflightEntry
		found    bool
	)
	for id, entry := range s.inflight {
		if !found || entry.started.Before(oldest.started) ||
			(entry.started.Equal(oldest.started) && entry.seq < oldest.seq) {
			oldestID, oldest, found = id, entry, true
		}
	}
	if !found {
		return Inflight{}, false
	}
	return Inflight{ExchangeID: oldestID, Started: oldest.started, Duration: now.Sub(oldest.started)}, true
}

// Snapshot returns a consistent copy of every counter. It never mutates state.
func (s *Statistics) Snapshot() Snapshot {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		ExchangesTotal:     s.total.Load(),
		ExchangesCompleted: s.completed.Load(),
		ExchangesFailed:    s.failed.Load(),
		FailuresHandled:    s.handled.Load(),
		Redeliveries:       s.redeliveries.Load(),
		ExchangesInflight:  len(s.inflight),
		Processing:         s.timing.Snapshot(),
		FirstExchangeAt:    s.firstAt,
		LastExchangeAt:     s.lastAt,
		ResetAt:            s.resetAt,
	}
	if oldest, ok := s.oldestLocked(now); ok {
		snap.OldestInflight = &oldest
	}
	return snap
}

// Reset zeroes every counter and sample. Exchanges still inflight stay tracked.
func (s *Statistics) Reset() {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	s.total.Store(0)
	s.completed.Store(0)
	s.failed.Store(0)
	s.handled.Store(0)
	s.redeliveries.Store(0)
	s.timing = newProcessingWindow(processingSampleSize)
	s.firstAt = time.Time{}
	s.lastAt = time.Time{}
	s.resetAt = now
	if s.hits != nil {
		s.hits = newUtilizationWindow(len(s.hits.uris))
	}
}

// Snapshot is a point-in-time copy of a Statistics.
type Snapshot struct {
	ExchangesTotal     uint64
	ExchangesCompleted uint64
	ExchangesFailed    uint64
	FailuresHandled    uint64
	Redeliveries       uint64
	ExchangesInflight  int
	// OldestInflight is nil when nothing is inflight.
	OldestInflight  *Inflight
	Processing      ProcessingTime
	FirstExchangeAt time.Time
	LastExchangeAt  time.Time
	ResetAt         time.Time
}
