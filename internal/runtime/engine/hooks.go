package engine

import (
	"context"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/drblury/flowmgmt/internal/runtime/logging"
)

// ExchangeInfo describes an exchange passing through a route.
type ExchangeInfo struct {
	RouteID    string
	ExchangeID string
	Endpoint   string
	Metadata   message.Metadata
	Context    context.Context
	StartedAt  time.Time
	// Duration is only set for OnExchangeDone and OnExchangeError.
	Duration time.Duration
	// Redeliveries is the number of redelivery attempts of the failing step.
	Redeliveries int
}

// ExchangeHooks are optional callbacks around route processing. Nil hooks are skipped.
type ExchangeHooks struct {
	OnExchangeStart func(info ExchangeInfo)
	OnExchangeDone  func(info ExchangeInfo)
	// OnExchangeError is called for failures that no error policy handled.
	OnExchangeError func(info ExchangeInfo, err error)
}

// Merge combines two hook sets; hooks from other run after hooks from h.
func (h ExchangeHooks) Merge(other ExchangeHooks) ExchangeHooks {
	return ExchangeHooks{
		OnExchangeStart: chainInfoHooks(h.OnExchangeStart, other.OnExchangeStart),
		OnExchangeDone:  chainInfoHooks(h.OnExchangeDone, other.OnExchangeDone),
		OnExchangeError: chainErrorHooks(h.OnExchangeError, other.OnExchangeError),
	}
}

func chainInfoHooks(a, b func(ExchangeInfo)) func(ExchangeInfo) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(info ExchangeInfo) {
		a(info)
		b(info)
	}
}

func chainErrorHooks(a, b func(ExchangeInfo, error)) func(ExchangeInfo, error) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(info ExchangeInfo, err error) {
		a(info, err)
		b(info, err)
	}
}

// LoggingHooks logs exchange lifecycle events at debug level and unhandled
// failures at error level.
func LoggingHooks(logger logging.ServiceLogger) ExchangeHooks {
	return ExchangeHooks{
		OnExchangeStart: func(info ExchangeInfo) {
			logger.Debug("Exchange started", logging.LogFields{
				"route_id":    info.RouteID,
				"exchange_id": info.ExchangeID,
				"endpoint":    info.Endpoint,
			})
		},
		OnExchangeDone: func(info ExchangeInfo) {
			logger.Debug("Exchange completed", logging.LogFields{
				"route_id":    info.RouteID,
				"exchange_id": info.ExchangeID,
				"duration_ms": info.Duration.Milliseconds(),
			})
		},
		OnExchangeError: func(info ExchangeInfo, err error) {
			logger.Error("Exchange failed", err, logging.LogFields{
				"route_id":     info.RouteID,
				"exchange_id":  info.ExchangeID,
				"duration_ms":  info.Duration.Milliseconds(),
				"redeliveries": info.Redeliveries,
			})
		},
	}
}
