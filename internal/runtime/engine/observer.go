package engine

import "sync/atomic"

// Observer receives exchange events of a context, route or step. The
// management layer attaches statistics through it; nothing is tracked while
// no observer is set.
type Observer interface {
	OnExchangeStart(id string)
	OnExchangeComplete(id string, failed, handled bool)
	OnRedelivery()
}

// EndpointHitRecorder is optionally implemented by context observers that
// track endpoint utilization.
type EndpointHitRecorder interface {
	RecordEndpointHit(uri string)
}

type observerBox struct {
	o Observer
}

type observerSlot struct {
	p atomic.Pointer[observerBox]
}

func (s *observerSlot) Set(o Observer) {
	if o == nil {
		s.p.Store(nil)
		return
	}
	s.p.Store(&observerBox{o: o})
}

func (s *observerSlot) Load() Observer {
	if box := s.p.Load(); box != nil {
		return box.o
	}
	return nil
}

func (s *observerSlot) start(id string) {
	if o := s.Load(); o != nil {
		o.OnExchangeStart(id)
	}
}

func (s *observerSlot) complete(id string, failed, handled bool) {
	if o := s.Load(); o != nil {
		o.OnExchangeComplete(id, failed, handled)
	}
}

func (s *observerSlot) redelivery() {
	if o := s.Load(); o != nil {
		o.OnRedelivery()
	}
}

func (s *observerSlot) hit(uri string) {
	if rec, ok := s.Load().(EndpointHitRecorder); ok {
		rec.RecordEndpointHit(uri)
	}
}
