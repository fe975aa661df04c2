package engine

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	flowerrors "github.com/drblury/flowmgmt/internal/runtime/errors"
)

// MockComponent provides recording endpoints for tests and demos.
type MockComponent struct{}

func (MockComponent) CreateEndpoint(_ *Context, uri, remaining string, _ url.Values) (Endpoint, error) {
	if remaining == "" {
		return nil, fmt.Errorf("mock endpoint %q: %w: missing name", uri, flowerrors.ErrInvalidArgument)
	}
	return &MockEndpoint{uri: uri, changed: make(chan struct{})}, nil
}

// MockEndpoint records every exchange sent to it.
type MockEndpoint struct {
	serviceSupport
	uri string

	mu       sync.Mutex
	received []*Exchange
	expected int
	changed  chan struct{}
}

func (e *MockEndpoint) URI() string     { return e.uri }
func (e *MockEndpoint) Singleton() bool { return true }

func (e *MockEndpoint) CreateProducer() (Producer, error) {
	return &mockProducer{endpoint: e}, nil
}

func (e *MockEndpoint) CreateConsumer(Processor) (Consumer, error) {
	return nil, fmt.Errorf("%s: %w: mock endpoints cannot be consumed", e.uri, flowerrors.ErrInvalidArgument)
}

// ExpectedMessageCount sets the count AssertSatisfied waits for.
func (e *MockEndpoint) ExpectedMessageCount(n int) {
	e.mu.Lock()
	e.expected = n
	e.mu.Unlock()
}

// AssertSatisfied waits until at least the expected number of exchanges
// arrived or timeout elapses.
func (e *MockEndpoint) AssertSatisfied(timeout time.Duration) error {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	for {
		e.mu.Lock()
		got, want, changed := len(e.received), e.expected, e.changed
		e.mu.Unlock()
		if got >= want {
			return nil
		}
		select {
		case <-changed:
		case <-deadline.C:
			return fmt.Errorf("%s: expected %d exchanges, received %d", e.uri, want, got)
		}
	}
}

// ReceivedCount returns how many exchanges arrived.
func (e *MockEndpoint) ReceivedCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.received)
}

// Exchanges returns copies of the received exchanges in arrival order.
func (e *MockEndpoint) Exchanges() []*Exchange {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*Exchange, len(e.received))
	for i, ex := range e.received {
		out[i] = ex.Copy()
	}
	return out
}

// QueueSize reports the number of recorded exchanges.
func (e *MockEndpoint) QueueSize() int {
	return e.ReceivedCount()
}

// Reset clears recorded exchanges and expectations.
func (e *MockEndpoint) Reset() {
	e.mu.Lock()
	e.received = nil
	e.expected = 0
	e.mu.Unlock()
}

func (e *MockEndpoint) record(ex *Exchange) {
	e.mu.Lock()
	e.received = append(e.received, ex.Copy())
	close(e.changed)
	e.changed = make(chan struct{})
	e.mu.Unlock()
}

type mockProducer struct {
	serviceSupport
	endpoint *MockEndpoint
}

func (p *mockProducer) Endpoint() Endpoint { return p.endpoint }

func (p *mockProducer) Process(_ context.Context, ex *Exchange) error {
	p.endpoint.record(ex)
	return nil
}
