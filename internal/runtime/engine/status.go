package engine

import "sync/atomic"

// Status is the lifecycle state of a context, route, endpoint or service.
type Status int32

const (
	StatusStopped Status = iota
	StatusStarting
	StatusStarted
	StatusStopping
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusStopped:
		return "Stopped"
	case StatusStarting:
		return "Starting"
	case StatusStarted:
		return "Started"
	case StatusStopping:
		return "Stopping"
	case StatusFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

type statusHolder struct {
	v atomic.Int32
}

func (h *statusHolder) Load() Status     { return Status(h.v.Load()) }
func (h *statusHolder) Store(s Status)   { h.v.Store(int32(s)) }
func (h *statusHolder) Is(s Status) bool { return h.Load() == s }
func (h *statusHolder) swap(from, to Status) bool {
	return h.v.CompareAndSwap(int32(from), int32(to))
}
