package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/drblury/flowmgmt/internal/runtime/registry"
)

// NewRegistry returns a Prometheus registry carrying the registry collector,
// the operation counters and the Go runtime collectors.
func NewRegistry(reg *registry.Registry) (*prometheus.Registry, *Operations, error) {
	promReg := prometheus.NewRegistry()
	if err := promReg.Register(NewCollector(reg)); err != nil {
		return nil, nil, err
	}
	if err := promReg.Register(collectors.NewGoCollector()); err != nil {
		return nil, nil, err
	}
	if err := promReg.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return nil, nil, err
	}
	ops := NewOperations(promReg)
	if err := ops.Register(); err != nil {
		return nil, nil, err
	}
	return promReg, ops, nil
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
