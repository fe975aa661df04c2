package engine

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	flowerrors "github.com/drblury/flowmgmt/internal/runtime/errors"
	"github.com/drblury/flowmgmt/internal/runtime/logging"
	"github.com/drblury/flowmgmt/internal/runtime/metadata"
)

// LogComponent writes exchanges to the context logger.
//
// Supported parameters: level (trace, debug, info or error; default info) and
// showHeaders.
type LogComponent struct{}

func (LogComponent) CreateEndpoint(c *Context, uri, remaining string, params url.Values) (Endpoint, error) {
	level := strings.ToLower(params.Get("level"))
	switch level {
	case "":
		level = "info"
	case "trace", "debug", "info", "error":
	default:
		return nil, fmt.Errorf("log endpoint %q: %w: level %q", uri, flowerrors.ErrInvalidArgument, level)
	}
	return &logEndpoint{
		uri:         uri,
		category:    remaining,
		level:       level,
		showHeaders: params.Get("showHeaders") == "true",
		logger:      c.logger,
	}, nil
}

type logEndpoint struct {
	serviceSupport
	uri         string
	category    string
	level       string
	showHeaders bool
	logger      logging.ServiceLogger
}

func (e *logEndpoint) URI() string     { return e.uri }
func (e *logEndpoint) Singleton() bool { return true }

func (e *logEndpoint) CreateProducer() (Producer, error) {
	return &logProducer{endpoint: e}, nil
}

func (e *logEndpoint) CreateConsumer(Processor) (Consumer, error) {
	return nil, fmt.Errorf("%s: %w: log endpoints cannot be consumed", e.uri, flowerrors.ErrInvalidArgument)
}

type logProducer struct {
	serviceSupport
	endpoint *logEndpoint
}

func (p *logProducer) Endpoint() Endpoint { return p.endpoint }

func (p *logProducer) Process(_ context.Context, ex *Exchange) error {
	fields := logging.LogFields{
		"category":    p.endpoint.category,
		"exchange_id": ex.ID,
		"body":        ex.Body(),
	}
	if p.endpoint.showHeaders {
		for _, h := range metadata.Sorted(ex.Message.Metadata) {
			fields["header."+h.Key] = h.Value
		}
	}
	emit(p.endpoint.logger, p.endpoint.level, "Exchange", fields)
	return nil
}

func emit(logger logging.ServiceLogger, level, msg string, fields logging.LogFields) {
	switch level {
	case "trace":
		logger.Trace(msg, fields)
	case "debug":
		logger.Debug(msg, fields)
	case "error":
		logger.Error(msg, nil, fields)
	default:
		logger.Info(msg, fields)
	}
}
