package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/drblury/flowmgmt/internal/runtime/logging"
)

// AggregateConfig controls an Aggregate step.
type AggregateConfig struct {
	// Correlation groups exchanges. Nil puts everything in one group.
	Correlation func(*Exchange) string
	// Strategy merges an incoming exchange into the group. Nil joins bodies
	// with a newline.
	Strategy func(group, incoming *Exchange) *Exchange
	// CompletionSize completes a group once it holds that many exchanges.
	CompletionSize int
	// CompletionTimeout completes groups that have been open that long.
	CompletionTimeout time.Duration
}

// Aggregate collects exchanges into groups and runs steps for every completed
// group on a worker pool owned by the step.
func Aggregate(cfg AggregateConfig, steps ...*Node) *Node {
	n := newNode(NodeAggregate)
	n.aggregate = &cfg
	n.children = steps
	return n
}

type aggregateGroup struct {
	ex     *Exchange
	size   int
	opened time.Time
}

type aggregator struct {
	node    *Node
	cfg     AggregateConfig
	workers *ThreadPool
	checker *ThreadPool

	mu     sync.Mutex
	groups map[string]*aggregateGroup
	stop   chan struct{}
	once   sync.Once
}

func newAggregator(n *Node, routeID string) *aggregator {
	a := &aggregator{
		node:   n,
		cfg:    *n.aggregate,
		groups: make(map[string]*aggregateGroup),
		stop:   make(chan struct{}),
	}
	a.workers = newThreadPool(routeID+"-"+n.id+"-Aggregator", n.id, routeID, 1)
	if a.cfg.CompletionTimeout > 0 {
		a.checker = newThreadPool(routeID+"-"+n.id+"-AggregateTimeoutChecker", n.id, routeID, 1)
		interval := max(a.cfg.CompletionTimeout/4, 10*time.Millisecond)
		_ = a.checker.Submit(func() { a.watch(interval) })
	}
	return a
}

func (a *aggregator) pools() []*ThreadPool {
	if a.checker == nil {
		return []*ThreadPool{a.workers}
	}
	return []*ThreadPool{a.workers, a.checker}
}

func (a *aggregator) add(ex *Exchange) error {
	key := ""
	if a.cfg.Correlation != nil {
		key = a.cfg.Correlation(ex)
	}

	a.mu.Lock()
	g, ok := a.groups[key]
	if !ok {
		g = &aggregateGroup{ex: ex.Copy(), size: 1, opened: time.Now()}
		g.ex.ID = ""
		a.groups[key] = g
	} else {
		g.ex = a.merge(g.ex, ex)
		g.size++
	}
	var done *Exchange
	if a.cfg.CompletionSize > 0 && g.size >= a.cfg.CompletionSize {
		delete(a.groups, key)
		done = g.ex
	}
	a.mu.Unlock()

	if done != nil {
		return a.complete(done)
	}
	return nil
}

func (a *aggregator) merge(group, incoming *Exchange) *Exchange {
	if a.cfg.Strategy != nil {
		return a.cfg.Strategy(group, incoming)
	}
	group.SetBody(group.Body() + "\n" + incoming.Body())
	return group
}

func (a *aggregator) complete(group *Exchange) error {
	out := NewExchange(context.Background(), group.Message.Payload)
	out.Message.Metadata = group.Message.Metadata
	out.RouteID = a.node.route.id

	err := a.workers.Submit(func() {
		if err := a.node.route.runSteps(context.Background(), out, a.node.children); err != nil {
			a.node.route.ctx.logger.Error("Aggregated exchange failed", err, logging.LogFields{
				"route_id":    a.node.route.id,
				"node_id":     a.node.id,
				"exchange_id": out.ID,
			})
		}
	})
	if err != nil {
		return fmt.Errorf("aggregate %s: %w", a.node.id, err)
	}
	return nil
}

func (a *aggregator) watch(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-a.stop:
			return
		case now := <-ticker.C:
			for _, g := range a.expired(now) {
				_ = a.complete(g)
			}
		}
	}
}

func (a *aggregator) expired(now time.Time) []*Exchange {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []*Exchange
	for key, g := range a.groups {
		if now.Sub(g.opened) >= a.cfg.CompletionTimeout {
			out = append(out, g.ex)
			delete(a.groups, key)
		}
	}
	return out
}

// close stops the timeout checker and waits for running completions.
// Groups still open are dropped.
func (a *aggregator) close() {
	a.once.Do(func() {
		close(a.stop)
		if a.checker != nil {
			a.checker.Shutdown()
		}
		a.workers.Shutdown()
	})
}
