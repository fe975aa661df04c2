package engine

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"sync"

	"github.com/eapache/queue"

	flowerrors "github.com/drblury/flowmgmt/internal/runtime/errors"
	"github.com/drblury/flowmgmt/internal/runtime/logging"
)

// ErrQueueFull is returned when a bounded seda queue rejects an exchange.
var ErrQueueFull = errors.New("flowmgmt: queue full")

// SedaComponent provides asynchronous in-memory queues. Producers enqueue a
// copy of the exchange and return; consumers drain the queue on their own
// goroutines.
//
// Supported parameters: size (0 means unbounded), concurrentConsumers
// (default 1) and blockWhenFull.
type SedaComponent struct{}

func (SedaComponent) CreateEndpoint(c *Context, uri, remaining string, params url.Values) (Endpoint, error) {
	if remaining == "" {
		return nil, fmt.Errorf("seda endpoint %q: %w: missing name", uri, flowerrors.ErrInvalidArgument)
	}
	size, err := intParam(params, "size", 0)
	if err != nil {
		return nil, fmt.Errorf("seda endpoint %q: %w", uri, err)
	}
	consumers, err := intParam(params, "concurrentConsumers", 1)
	if err != nil {
		return nil, fmt.Errorf("seda endpoint %q: %w", uri, err)
	}
	if consumers < 1 {
		return nil, fmt.Errorf("seda endpoint %q: %w: concurrentConsumers must be positive", uri, flowerrors.ErrInvalidArgument)
	}
	ep := &SedaEndpoint{
		uri:                 uri,
		size:                size,
		concurrentConsumers: consumers,
		blockWhenFull:       params.Get("blockWhenFull") == "true",
		q:                   queue.New(),
		logger:              c.logger,
	}
	ep.notEmpty = sync.NewCond(&ep.mu)
	ep.notFull = sync.NewCond(&ep.mu)
	return ep, nil
}

func intParam(params url.Values, key string, def int) (int, error) {
	raw := params.Get(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%w: %s=%q", flowerrors.ErrInvalidArgument, key, raw)
	}
	return v, nil
}

// SedaEndpoint is a FIFO queue shared by its producers and consumers.
type SedaEndpoint struct {
	serviceSupport
	uri                 string
	size                int
	concurrentConsumers int
	blockWhenFull       bool
	logger              logging.ServiceLogger

	mu       sync.Mutex
	notEmpty *sync.Cond
	notFull  *sync.Cond
	q        *queue.Queue
}

func (e *SedaEndpoint) URI() string     { return e.uri }
func (e *SedaEndpoint) Singleton() bool { return true }

func (e *SedaEndpoint) CreateProducer() (Producer, error) {
	return &sedaProducer{endpoint: e}, nil
}

func (e *SedaEndpoint) CreateConsumer(processor Processor) (Consumer, error) {
	return &sedaConsumer{endpoint: e, processor: processor}, nil
}

// QueueSize returns the number of exchanges waiting.
func (e *SedaEndpoint) QueueSize() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.q.Length()
}

// Exchanges returns copies of the queued exchanges, oldest first.
func (e *SedaEndpoint) Exchanges() []*Exchange {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*Exchange, e.q.Length())
	for i := range out {
		out[i] = e.q.Get(i).(*Exchange).Copy()
	}
	return out
}

func (e *SedaEndpoint) offer(ctx context.Context, ex *Exchange) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for e.size > 0 && e.q.Length() >= e.size {
		if !e.blockWhenFull {
			return fmt.Errorf("%s: %w (size %d)", e.uri, ErrQueueFull, e.size)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		e.notFull.Wait()
	}
	e.q.Add(ex)
	e.notEmpty.Signal()
	return nil
}

// poll blocks until an exchange is available or stop reports true.
func (e *SedaEndpoint) poll(stop func() bool) (*Exchange, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for e.q.Length() == 0 {
		if stop() {
			return nil, false
		}
		e.notEmpty.Wait()
	}
	if stop() {
		return nil, false
	}
	ex := e.q.Remove().(*Exchange)
	e.notFull.Signal()
	return ex, true
}

func (e *SedaEndpoint) wakeAll() {
	e.mu.Lock()
	e.notEmpty.Broadcast()
	e.notFull.Broadcast()
	e.mu.Unlock()
}

type sedaProducer struct {
	serviceSupport
	endpoint *SedaEndpoint
}

func (p *sedaProducer) Endpoint() Endpoint { return p.endpoint }

func (p *sedaProducer) Process(ctx context.Context, ex *Exchange) error {
	queued := ex.Copy()
	queued.depth = 0
	queued.RouteID = ""
	return p.endpoint.offer(ctx, queued)
}

type sedaConsumer struct {
	serviceSupport
	endpoint  *SedaEndpoint
	processor Processor

	mu       sync.Mutex
	stopping bool
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

func (c *sedaConsumer) Endpoint() Endpoint { return c.endpoint }

func (c *sedaConsumer) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c.mu.Lock()
	c.stopping = false
	c.cancel = cancel
	c.mu.Unlock()

	for i := 0; i < c.endpoint.concurrentConsumers; i++ {
		c.wg.Add(1)
		go c.run(runCtx)
	}
	return c.serviceSupport.Start(ctx)
}

func (c *sedaConsumer) isStopping() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopping
}

func (c *sedaConsumer) run(ctx context.Context) {
	defer c.wg.Done()
	for {
		ex, ok := c.endpoint.poll(c.isStopping)
		if !ok {
			return
		}
		ex.Message.SetContext(ctx)
		if err := c.processor(ctx, ex); err != nil && c.endpoint.logger != nil {
			c.endpoint.logger.Error("Seda exchange failed", err, logging.LogFields{
				"endpoint":    c.endpoint.uri,
				"exchange_id": ex.ID,
			})
		}
	}
}

// Stop lets the exchange in progress finish; queued exchanges stay queued.
func (c *sedaConsumer) Stop(ctx context.Context) error {
	c.mu.Lock()
	c.stopping = true
	cancel := c.cancel
	c.mu.Unlock()

	c.endpoint.wakeAll()
	c.wg.Wait()
	if cancel != nil {
		cancel()
	}
	return c.serviceSupport.Stop(ctx)
}
