package engine

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/drblury/flowmgmt/internal/runtime/logging"
)

// DefaultShutdownTimeout bounds how long a stopping route waits for its
// in-flight exchanges.
const DefaultShutdownTimeout = 45 * time.Second

// ShutdownStrategy stops routes gracefully when the context stops.
type ShutdownStrategy struct {
	serviceSupport

	mu           sync.RWMutex
	timeout      time.Duration
	loggingLevel string
	reverse      bool
	logger       logging.ServiceLogger
}

func newShutdownStrategy(timeout time.Duration, logger logging.ServiceLogger) *ShutdownStrategy {
	if timeout <= 0 {
		timeout = DefaultShutdownTimeout
	}
	return &ShutdownStrategy{timeout: timeout, loggingLevel: "INFO", logger: logger}
}

func (s *ShutdownStrategy) Timeout() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.timeout
}

func (s *ShutdownStrategy) SetTimeout(d time.Duration) {
	s.mu.Lock()
	s.timeout = d
	s.mu.Unlock()
}

// TimeUnit is the unit Timeout is reported in.
func (s *ShutdownStrategy) TimeUnit() string { return "SECONDS" }

func (s *ShutdownStrategy) LoggingLevel() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loggingLevel
}

func (s *ShutdownStrategy) SetLoggingLevel(level string) {
	s.mu.Lock()
	s.loggingLevel = strings.ToUpper(level)
	s.mu.Unlock()
}

func (s *ShutdownStrategy) ShutdownRoutesInReverseOrder() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reverse
}

func (s *ShutdownStrategy) SetShutdownRoutesInReverseOrder(reverse bool) {
	s.mu.Lock()
	s.reverse = reverse
	s.mu.Unlock()
}

// shutdown stops routes one by one in start order, or reversed.
func (s *ShutdownStrategy) shutdown(ctx context.Context, routes []*Route) {
	ordered := append([]*Route(nil), routes...)
	if s.ShutdownRoutesInReverseOrder() {
		for i, j := 0, len(ordered)-1; i < j; i, j = i+1, j-1 {
			ordered[i], ordered[j] = ordered[j], ordered[i]
		}
	}
	timeout := s.Timeout()
	for _, r := range ordered {
		if pending := r.stop(ctx, timeout); pending > 0 {
			s.log("Shutdown timeout exceeded, route stopped with exchanges in flight", logging.LogFields{
				"route_id": r.id,
				"inflight": pending,
				"timeout":  timeout,
			})
		}
	}
}

func (s *ShutdownStrategy) log(msg string, fields logging.LogFields) {
	switch s.LoggingLevel() {
	case "OFF":
	case "DEBUG":
		s.logger.Debug(msg, fields)
	case "TRACE":
		s.logger.Trace(msg, fields)
	case "ERROR":
		s.logger.Error(msg, nil, fields)
	default:
		s.logger.Info(msg, fields)
	}
}
