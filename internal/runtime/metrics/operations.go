package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Operations counts control operations invoked through the management
// binding.
type Operations struct {
	mu sync.Mutex

	invocations *prometheus.CounterVec
	duration    *prometheus.HistogramVec

	registerer prometheus.Registerer
	registered bool
}

func NewOperations(registerer prometheus.Registerer) *Operations {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	return &Operations{
		registerer: registerer,
		invocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "operations",
			Name:      "invocations_total",
			Help:      "Control operations invoked on managed objects.",
		}, []string{"kind", "operation", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "operations",
			Name:      "duration_seconds",
			Help:      "Time spent in control operations.",
			Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 5, 30},
		}, []string{"kind", "operation"}),
	}
}

// Register registers the collectors. Safe to call multiple times.
func (o *Operations) Register() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.registered {
		return nil
	}
	for _, c := range []prometheus.Collector{o.invocations, o.duration} {
		if err := o.registerer.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	o.registered = true
	return nil
}

// Observe records one invocation. A nil receiver records nothing.
func (o *Operations) Observe(kind, operation string, took time.Duration, err error) {
	if o == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	o.invocations.WithLabelValues(kind, operation, outcome).Inc()
	o.duration.WithLabelValues(kind, operation).Observe(took.Seconds())
}
