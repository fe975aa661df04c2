package stats

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestCompletionOutcomes(t *testing.T) {
	tests := []struct {
		name                    string
		failed, handled         bool
		wantFailed, wantHandled uint64
	}{
		{"success", false, false, 0, 0},
		{"unhandled failure", true, false, 1, 0},
		{"handled failure", true, true, 0, 1},
		{"handled flag without failure", false, true, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New()
			s.OnExchangeStart("x")
			s.OnExchangeComplete("x", tt.failed, tt.handled)

			snap := s.Snapshot()
			assert.Equal(t, uint64(1), snap.ExchangesTotal)
			assert.Equal(t, uint64(1), snap.ExchangesCompleted)
			assert.Equal(t, tt.wantFailed, snap.ExchangesFailed)
			assert.Equal(t, tt.wantHandled, snap.FailuresHandled)
			assert.Zero(t, snap.ExchangesInflight)
			assert.Nil(t, snap.OldestInflight)
		})
	}
}

func TestOldestInflight(t *testing.T) {
	clock := newFakeClock()
	s := New(WithClock(clock.Now))

	_, ok := s.OldestInflight()
	assert.False(t, ok)

	s.OnExchangeStart("b")
	s.OnExchangeStart("a") // same timestamp, recorded later
	clock.Advance(time.Second)
	s.OnExchangeStart("c")
	clock.Advance(time.Second)

	oldest, ok := s.OldestInflight()
	require.True(t, ok)
	assert.Equal(t, "b", oldest.ExchangeID)
	assert.Equal(t, 2*time.Second, oldest.Duration)

	s.OnExchangeComplete("b", false, false)
	oldest, ok = s.OldestInflight()
	require.True(t, ok)
	assert.Equal(t, "a", oldest.ExchangeID)

	s.OnExchangeComplete("a", false, false)
	s.OnExchangeComplete("c", false, false)
	_, ok = s.OldestInflight()
	assert.False(t, ok)
	assert.Zero(t, s.InflightCount())
}

func TestSnapshotIsReadOnly(t *testing.T) {
	s := New()
	s.OnExchangeStart("1")
	s.OnExchangeComplete("1", false, false)

	first := s.Snapshot()
	second := s.Snapshot()
	assert.Equal(t, first, second)
	assert.Equal(t, uint64(1), second.ExchangesCompleted)
}

func TestProcessingTime(t *testing.T) {
	clock := newFakeClock()
	s := New(WithClock(clock.Now))

	for i, d := range []time.Duration{10 * time.Millisecond, 30 * time.Millisecond, 20 * time.Millisecond} {
		id := fmt.Sprint(i)
		s.OnExchangeStart(id)
		clock.Advance(d)
		s.OnExchangeComplete(id, false, false)
	}

	p := s.Snapshot().Processing
	assert.Equal(t, int64(3), p.Count)
	assert.Equal(t, 10*time.Millisecond, p.Min)
	assert.Equal(t, 30*time.Millisecond, p.Max)
	assert.Equal(t, 20*time.Millisecond, p.Mean)
	assert.Equal(t, 20*time.Millisecond, p.Last)
	assert.Equal(t, 20*time.Millisecond, p.P50)
}

func TestCompletionWithoutStartStillCounts(t *testing.T) {
	s := New()
	s.OnExchangeComplete("unknown", true, false)
	snap := s.Snapshot()
	assert.Equal(t, uint64(1), snap.ExchangesCompleted)
	assert.Equal(t, uint64(1), snap.ExchangesFailed)
	assert.Zero(t, snap.Processing.Count)
}

func TestConcurrentUpdatesLoseNothing(t *testing.T) {
	s := New()
	const workers, perWorker = 8, 250

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				id := fmt.Sprintf("%d-%d", w, i)
				s.OnExchangeStart(id)
				_ = s.Snapshot()
				s.OnExchangeComplete(id, i%2 == 0, false)
				s.OnRedelivery()
			}
		}(w)
	}
	wg.Wait()

	snap := s.Snapshot()
	assert.Equal(t, uint64(workers*perWorker), snap.ExchangesTotal)
	assert.Equal(t, uint64(workers*perWorker), snap.ExchangesCompleted)
	assert.Equal(t, uint64(workers*perWorker/2), snap.ExchangesFailed)
	assert.Equal(t, uint64(workers*perWorker), snap.Redeliveries)
	assert.Zero(t, snap.ExchangesInflight)
}

func TestReset(t *testing.T) {
	clock := newFakeClock()
	s := New(WithClock(clock.Now), WithEndpointUtilization(4))
	s.OnExchangeStart("done")
	s.OnExchangeComplete("done", true, false)
	s.OnExchangeStart("pending")
	s.OnRedelivery()
	s.RecordEndpointHit("mock://a")

	clock.Advance(time.Minute)
	s.Reset()

	snap := s.Snapshot()
	assert.Zero(t, snap.ExchangesTotal)
	assert.Zero(t, snap.ExchangesCompleted)
	assert.Zero(t, snap.ExchangesFailed)
	assert.Zero(t, snap.Redeliveries)
	assert.Zero(t, snap.Processing.Count)
	assert.Equal(t, 1, snap.ExchangesInflight)
	assert.Equal(t, clock.Now(), snap.ResetAt)
	assert.Empty(t, s.EndpointUtilization())
}

func TestEndpointUtilization(t *testing.T) {
	disabled := New()
	disabled.RecordEndpointHit("mock://a")
	assert.False(t, disabled.UtilizationEnabled())
	assert.Nil(t, disabled.EndpointUtilization())

	s := New(WithEndpointUtilization(3))
	assert.True(t, s.UtilizationEnabled())
	s.RecordEndpointHit("mock://old")
	s.RecordEndpointHit("mock://a")
	s.RecordEndpointHit("mock://b")
	s.RecordEndpointHit("mock://a")

	assert.Equal(t, []EndpointHits{{URI: "mock://a", Hits: 2}, {URI: "mock://b", Hits: 1}}, s.EndpointUtilization())
}

func TestResourceTrackerSnapshot(t *testing.T) {
	tracker := NewResourceTracker()
	first := tracker.Snapshot()
	assert.Positive(t, first.Goroutines)
	assert.Positive(t, first.MemoryBytes)
	assert.Zero(t, first.CPUPercent)

	var nilTracker *ResourceTracker
	assert.Equal(t, ResourceUsage{}, nilTracker.Snapshot())
}

func TestPercentile(t *testing.T) {
	assert.Zero(t, percentile(nil, 0.5))
	samples := []int64{1, 2, 3, 4}
	assert.Equal(t, int64(1), percentile(samples, 0))
	assert.Equal(t, int64(4), percentile(samples, 1))
	assert.Equal(t, int64(2), percentile(samples, 0.5))
}
