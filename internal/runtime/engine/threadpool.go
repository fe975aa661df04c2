package engine

import (
	"errors"
	"sync"
	"sync/atomic"
)

// ErrPoolShutdown is returned when submitting to a pool that was shut down.
var ErrPoolShutdown = errors.New("flowmgmt: thread pool shut down")

// ThreadPool is a fixed set of worker goroutines owned by a route step.
type ThreadPool struct {
	id      string
	source  string
	routeID string
	size    int

	tasks     chan func()
	running   atomic.Int64
	pending   atomic.Int64
	completed atomic.Uint64
	shutdown  atomic.Bool

	mu sync.RWMutex
	wg sync.WaitGroup
}

func newThreadPool(id, source, routeID string, size int) *ThreadPool {
	if size < 1 {
		size = 1
	}
	p := &ThreadPool{
		id:      id,
		source:  source,
		routeID: routeID,
		size:    size,
		tasks:   make(chan func(), 1024),
	}
	for i := 0; i < size; i++ {
		p.wg.Add(1)
		go p.work()
	}
	return p
}

func (p *ThreadPool) ID() string      { return p.id }
func (p *ThreadPool) Source() string  { return p.source }
func (p *ThreadPool) RouteID() string { return p.routeID }
func (p *ThreadPool) PoolSize() int   { return p.size }

func (p *ThreadPool) RunningWorkers() int64  { return p.running.Load() }
func (p *ThreadPool) PendingTasks() int64    { return p.pending.Load() }
func (p *ThreadPool) CompletedTasks() uint64 { return p.completed.Load() }
func (p *ThreadPool) IsShutdown() bool       { return p.shutdown.Load() }

// Submit queues task. It blocks while the task buffer is full.
func (p *ThreadPool) Submit(task func()) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.shutdown.Load() {
		return ErrPoolShutdown
	}
	p.pending.Add(1)
	p.tasks <- task
	return nil
}

// Shutdown stops accepting tasks and waits for queued ones to finish.
func (p *ThreadPool) Shutdown() {
	p.mu.Lock()
	if p.shutdown.Swap(true) {
		p.mu.Unlock()
		return
	}
	close(p.tasks)
	p.mu.Unlock()
	p.wg.Wait()
}

func (p *ThreadPool) work() {
	defer p.wg.Done()
	for task := range p.tasks {
		p.pending.Add(-1)
		p.running.Add(1)
		task()
		p.running.Add(-1)
		p.completed.Add(1)
	}
}
