package engine

import (
	"context"
	"fmt"
	"maps"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/drblury/flowmgmt/internal/runtime/ids"
	"github.com/drblury/flowmgmt/internal/runtime/metadata"
)

// Exchange is one message travelling through routes. The payload and headers
// live in the wrapped Watermill message; its UUID is the exchange id.
type Exchange struct {
	ID      string
	Message *message.Message
	// RouteID is the route that first received the exchange.
	RouteID string
	// Err is the failure of the last step, if any.
	Err error
	// Handled is set when an error policy handled Err.
	Handled bool

	properties map[string]any
	stopped    bool
	depth      int
}

// NewExchange creates an exchange with a fresh id carrying body.
func NewExchange(ctx context.Context, body any) *Exchange {
	id := ids.NewExchangeID()
	msg := message.NewMessage(id, toPayload(body))
	if ctx != nil {
		msg.SetContext(ctx)
	}
	return &Exchange{ID: id, Message: msg}
}

// FromMessage wraps msg, reusing its UUID as the exchange id when set.
func FromMessage(msg *message.Message) *Exchange {
	if msg.UUID == "" {
		msg.UUID = ids.NewExchangeID()
	}
	return &Exchange{ID: msg.UUID, Message: msg}
}

func (e *Exchange) Context() context.Context {
	return e.Message.Context()
}

// Body returns the payload as a string.
func (e *Exchange) Body() string {
	return string(e.Message.Payload)
}

// SetBody replaces the payload.
func (e *Exchange) SetBody(body any) {
	e.Message.Payload = toPayload(body)
}

func (e *Exchange) Header(key string) string {
	return e.Message.Metadata.Get(key)
}

func (e *Exchange) SetHeader(key, value string) {
	e.Message.Metadata.Set(key, value)
}

// Property returns an exchange-scoped value that is not sent over brokers.
func (e *Exchange) Property(key string) (any, bool) {
	v, ok := e.properties[key]
	return v, ok
}

func (e *Exchange) SetProperty(key string, value any) {
	if e.properties == nil {
		e.properties = make(map[string]any)
	}
	e.properties[key] = value
}

// Stop ends the pipeline for this exchange after the current step.
func (e *Exchange) Stop() {
	e.stopped = true
}

// Copy returns an independent exchange with the same id, payload and headers.
func (e *Exchange) Copy() *Exchange {
	msg := message.NewMessage(e.Message.UUID, append([]byte(nil), e.Message.Payload...))
	msg.Metadata = metadata.Clone(e.Message.Metadata)
	msg.SetContext(e.Message.Context())
	return &Exchange{
		ID:         e.ID,
		Message:    msg,
		RouteID:    e.RouteID,
		Err:        e.Err,
		Handled:    e.Handled,
		properties: maps.Clone(e.properties),
		depth:      e.depth,
	}
}

func toPayload(body any) []byte {
	switch v := body.(type) {
	case nil:
		return nil
	case []byte:
		return append([]byte(nil), v...)
	case string:
		return []byte(v)
	case fmt.Stringer:
		return []byte(v.String())
	default:
		return []byte(fmt.Sprint(v))
	}
}
