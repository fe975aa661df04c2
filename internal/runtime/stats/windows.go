package stats

import (
	"cmp"
	"math"
	"slices"
	"time"
)

const processingSampleSize = 256

// ProcessingTime summarizes how long completed exchanges took.
type ProcessingTime struct {
	Count int64
	Total time.Duration
	Min   time.Duration
	Max   time.Duration
	Mean  time.Duration
	Last  time.Duration
	P50   time.Duration
	P95   time.Duration
	P99   time.Duration
}

// processingWindow keeps exact aggregates plus a ring of recent samples for
// percentiles.
type processingWindow struct {
	samples []int64
	next    int
	filled  int

	count int64
	total int64
	min   int64
	max   int64
	last  int64
}

func newProcessingWindow(size int) *processingWindow {
	if size <= 0 {
		size = processingSampleSize
	}
	return &processingWindow{samples: make([]int64, size)}
}

func (pw *processingWindow) Add(d time.Duration) {
	v := int64(d)
	pw.samples[pw.next] = v
	pw.next = (pw.next + 1) % len(pw.samples)
	if pw.filled < len(pw.samples) {
		pw.filled++
	}
	if pw.count == 0 || v < pw.min {
		pw.min = v
	}
	if v > pw.max {
		pw.max = v
	}
	pw.count++
	pw.total += v
	pw.last = v
}

func (pw *processingWindow) Snapshot() ProcessingTime {
	out := ProcessingTime{
		Count: pw.count,
		Total: time.Duration(pw.total),
		Min:   time.Duration(pw.min),
		Max:   time.Duration(pw.max),
		Last:  time.Duration(pw.last),
	}
	if pw.count > 0 {
		out.Mean = time.Duration(pw.total / pw.count)
	}
	if pw.filled == 0 {
		return out
	}
	samples := make([]int64, pw.filled)
	for i := 0; i < pw.filled; i++ {
		idx := pw.next - pw.filled + i
		if idx < 0 {
			idx += len(pw.samples)
		}
		samples[i] = pw.samples[idx]
	}
	slices.Sort(samples)
	out.P50 = time.Duration(percentile(samples, 0.50))
	out.P95 = time.Duration(percentile(samples, 0.95))
	out.P99 = time.Duration(percentile(samples, 0.99))
	return out
}

func percentile(samples []int64, quantile float64) int64 {
	if len(samples) == 0 {
		return 0
	}
	if quantile <= 0 {
		return samples[0]
	}
	if quantile >= 1 {
		return samples[len(samples)-1]
	}
	pos := quantile * float64(len(samples)-1)
	lower := int(math.Floor(pos))
	upper := int(math.Ceil(pos))
	if lower == upper {
		return samples[lower]
	}
	frac := pos - float64(lower)
	return samples[lower] + int64(float64(samples[upper]-samples[lower])*frac)
}

// EndpointHits is the number of hits an endpoint received in the recent sample.
type EndpointHits struct {
	URI  string
	Hits int
}

// utilizationWindow is a ring of the most recent endpoint hits.
type utilizationWindow struct {
	uris   []string
	next   int
	filled int
}

func newUtilizationWindow(size int) *utilizationWindow {
	return &utilizationWindow{uris: make([]string, size)}
}

func (uw *utilizationWindow) Add(uri string) {
	uw.uris[uw.next] = uri
	uw.next = (uw.next + 1) % len(uw.uris)
	if uw.filled < len(uw.uris) {
		uw.filled++
	}
}

func (uw *utilizationWindow) Snapshot() []EndpointHits {
	counts := make(map[string]int)
	for i := 0; i < uw.filled; i++ {
		counts[uw.uris[i]]++
	}
	out := make([]EndpointHits, 0, len(counts))
	for uri, hits := range counts {
		out = append(out, EndpointHits{URI: uri, Hits: hits})
	}
	slices.SortFunc(out, func(a, b EndpointHits) int {
		if c := cmp.Compare(b.Hits, a.Hits); c != 0 {
			return c
		}
		return cmp.Compare(a.URI, b.URI)
	})
	return out
}
