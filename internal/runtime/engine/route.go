package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/drblury/flowmgmt/internal/runtime/logging"
	"github.com/drblury/flowmgmt/internal/runtime/metadata"
)

// Route is a running instance of a RouteDefinition.
type Route struct {
	ctx  *Context
	def  *RouteDefinition
	id   string
	from string

	nodes      []*Node
	processors []*Node
	policy     *ErrorPolicy

	endpoint    Endpoint
	consumer    Consumer
	producers   []Producer
	aggregators []*aggregator

	status    statusHolder
	observer  observerSlot
	inflight  atomic.Int64
	startedAt atomic.Int64
	mu        sync.Mutex
}

func (r *Route) ID() string                   { return r.id }
func (r *Route) Description() string          { return r.def.description }
func (r *Route) Properties() []Property       { return r.def.properties }
func (r *Route) Definition() *RouteDefinition { return r.def }
func (r *Route) Context() *Context            { return r.ctx }
func (r *Route) FromURI() string              { return r.from }
func (r *Route) Endpoint() Endpoint           { return r.endpoint }
func (r *Route) Consumer() Consumer           { return r.consumer }
func (r *Route) Producers() []Producer        { return r.producers }
func (r *Route) Status() Status               { return r.status.Load() }
func (r *Route) InflightExchanges() int64     { return r.inflight.Load() }
func (r *Route) SetObserver(o Observer)       { r.observer.Set(o) }
func (r *Route) ErrorPolicy() *ErrorPolicy    { return r.policy }

// Nodes returns the top-level steps, including intercepted ones.
func (r *Route) Nodes() []*Node { return r.nodes }

// Processors returns every counted step in declaration order. Branch
// containers and error handling steps are left out.
func (r *Route) Processors() []*Node { return r.processors }

// Processor finds a step by id.
func (r *Route) Processor(id string) *Node {
	for _, n := range r.processors {
		if n.id == id {
			return n
		}
	}
	return nil
}

// ThreadPools returns the pools owned by the route's steps.
func (r *Route) ThreadPools() []*ThreadPool {
	var out []*ThreadPool
	for _, a := range r.aggregators {
		out = append(out, a.pools()...)
	}
	return out
}

// Uptime is zero while the route is not started.
func (r *Route) Uptime() time.Duration {
	started := r.startedAt.Load()
	if started == 0 || !r.status.Is(StatusStarted) {
		return 0
	}
	return time.Since(time.Unix(0, started))
}

func (r *Route) policyHandles() bool {
	return r.policy != nil && r.policy.Handled
}

// start opens producers before the consumer so nothing arrives unhandled.
func (r *Route) start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status.Is(StatusStarted) {
		return nil
	}
	r.status.Store(StatusStarting)
	for _, p := range r.producers {
		if err := p.Start(ctx); err != nil {
			r.status.Store(StatusFailed)
			return fmt.Errorf("route %s: start producer %s: %w", r.id, p.Endpoint().URI(), err)
		}
	}
	if err := r.consumer.Start(ctx); err != nil {
		r.status.Store(StatusFailed)
		return fmt.Errorf("route %s: start consumer %s: %w", r.id, r.from, err)
	}
	r.startedAt.Store(time.Now().UnixNano())
	r.status.Store(StatusStarted)
	return nil
}

// stop stops the consumer, then waits up to timeout for in-flight exchanges.
// It returns how many were still in flight when it gave up.
func (r *Route) stop(ctx context.Context, timeout time.Duration) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status.Is(StatusStopped) {
		return 0
	}
	r.status.Store(StatusStopping)
	if err := r.consumer.Stop(ctx); err != nil {
		r.ctx.logger.Error("Failed to stop route consumer", err, logging.LogFields{"route_id": r.id})
	}

	deadline := time.Now().Add(timeout)
	for r.inflight.Load() > 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	pending := r.inflight.Load()

	for _, p := range r.producers {
		if err := p.Stop(ctx); err != nil {
			r.ctx.logger.Error("Failed to stop route producer", err, logging.LogFields{"route_id": r.id})
		}
	}
	r.status.Store(StatusStopped)
	return pending
}

// release shuts down the route's thread pools.
func (r *Route) release() []*ThreadPool {
	pools := r.ThreadPools()
	for _, a := range r.aggregators {
		a.close()
	}
	return pools
}

// handle is the consumer callback of the route.
func (r *Route) handle(ctx context.Context, ex *Exchange) error {
	r.inflight.Add(1)
	defer r.inflight.Add(-1)

	top := ex.depth == 0
	if ex.RouteID == "" {
		ex.RouteID = r.id
		ex.SetHeader(metadata.RouteID, r.id)
		ex.SetHeader(metadata.FromEndpoint, r.from)
	}
	if top {
		r.ctx.observer.start(ex.ID)
		r.ctx.observer.hit(r.from)
	}
	r.observer.start(ex.ID)

	ctx, span := r.ctx.tracer.Start(ctx, "ProcessExchange",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("flowmgmt.route_id", r.id),
			attribute.String("flowmgmt.exchange_id", ex.ID),
			attribute.String("flowmgmt.endpoint", r.from),
		),
	)
	defer span.End()

	info := ExchangeInfo{
		RouteID:    r.id,
		ExchangeID: ex.ID,
		Endpoint:   r.from,
		Metadata:   ex.Message.Metadata,
		Context:    ctx,
		StartedAt:  time.Now(),
	}
	hooks := r.ctx.hooks
	if hooks.OnExchangeStart != nil {
		hooks.OnExchangeStart(info)
	}

	err := r.runSteps(ctx, ex, r.nodes)
	failed := err != nil
	handled := failed && r.policyHandles()
	if failed {
		ex.Err = err
		span.RecordError(err)
	}
	if failed && r.policy != nil {
		ex.SetHeader(metadata.ExceptionCaught, err.Error())
		if perr := r.runSteps(ctx, ex, r.policy.steps); perr != nil {
			r.ctx.logger.Error("Error handler failed", perr, logging.LogFields{
				"route_id":    r.id,
				"exchange_id": ex.ID,
			})
		}
	}
	if handled {
		ex.Handled = true
		err = nil
	}

	r.observer.complete(ex.ID, failed, handled)
	if top {
		r.ctx.observer.complete(ex.ID, failed, handled)
	}

	info.Duration = time.Since(info.StartedAt)
	info.Redeliveries = metadata.Redeliveries(ex.Message)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		if hooks.OnExchangeError != nil {
			hooks.OnExchangeError(info, err)
		}
		return err
	}
	if hooks.OnExchangeDone != nil {
		hooks.OnExchangeDone(info)
	}
	return nil
}

func (r *Route) runSteps(ctx context.Context, ex *Exchange, steps []*Node) error {
	for _, n := range steps {
		if ex.stopped {
			return nil
		}
		if err := n.run(ctx, ex); err != nil {
			return err
		}
	}
	return nil
}
