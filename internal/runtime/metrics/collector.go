// Package metrics exports the statistics held in a management registry to
// Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/drblury/flowmgmt/internal/runtime/registry"
)

const namespace = "flowmgmt"

var recordLabels = []string{"context", "kind", "name"}

func newDesc(name, help string, labels []string) *prometheus.Desc {
	return prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, labels, nil)
}

var (
	descExchangesTotal     = newDesc("exchanges_total", "Exchanges that entered the managed object.", recordLabels)
	descExchangesCompleted = newDesc("exchanges_completed_total", "Exchanges that completed, including handled failures.", recordLabels)
	descExchangesFailed    = newDesc("exchanges_failed_total", "Exchanges that failed without being handled.", recordLabels)
	descFailuresHandled    = newDesc("failures_handled_total", "Failures handled by an exception policy.", recordLabels)
	descRedeliveries       = newDesc("redeliveries_total", "Redelivery attempts.", recordLabels)
	descInflight           = newDesc("exchanges_inflight", "Exchanges currently being processed.", recordLabels)
	descProcessing         = newDesc("processing_seconds", "Processing time of completed exchanges.", recordLabels)
	descManagedObjects     = newDesc("managed_objects", "Registered managed objects.", []string{"kind"})
)

// Collector reads the registry on every scrape, so objects appear and
// disappear with their registrations.
type Collector struct {
	registry *registry.Registry
}

var _ prometheus.Collector = (*Collector)(nil)

func NewCollector(reg *registry.Registry) *Collector {
	return &Collector{registry: reg}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- descExchangesTotal
	ch <- descExchangesCompleted
	ch <- descExchangesFailed
	ch <- descFailuresHandled
	ch <- descRedeliveries
	ch <- descInflight
	ch <- descProcessing
	ch <- descManagedObjects
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	perKind := make(map[string]int)
	for _, rec := range c.registry.Records() {
		kind := rec.Kind.String()
		perKind[kind]++
		if rec.Stats == nil {
			continue
		}

		labels := []string{rec.Name.Context, kind, rec.Name.Local}
		snap := rec.Stats.Snapshot()
		counter := func(desc *prometheus.Desc, v uint64) {
			ch <- prometheus.MustNewConstMetric(desc, prometheus.CounterValue, float64(v), labels...)
		}
		counter(descExchangesTotal, snap.ExchangesTotal)
		counter(descExchangesCompleted, snap.ExchangesCompleted)
		counter(descExchangesFailed, snap.ExchangesFailed)
		counter(descFailuresHandled, snap.FailuresHandled)
		counter(descRedeliveries, snap.Redeliveries)
		ch <- prometheus.MustNewConstMetric(descInflight, prometheus.GaugeValue, float64(snap.ExchangesInflight), labels...)

		pt := snap.Processing
		ch <- prometheus.MustNewConstSummary(descProcessing,
			uint64(pt.Count), pt.Total.Seconds(),
			map[float64]float64{
				0.5:  pt.P50.Seconds(),
				0.95: pt.P95.Seconds(),
				0.99: pt.P99.Seconds(),
			},
			labels...)
	}
	for kind, n := range perKind {
		ch <- prometheus.MustNewConstMetric(descManagedObjects, prometheus.GaugeValue, float64(n), kind)
	}
}
