// Package metadata holds the header keys the engine stamps on exchanges and
// helpers to read them back from Watermill messages.
package metadata

import (
	"slices"
	"strconv"

	"github.com/ThreeDotsLabs/watermill/message"
)

const (
	// RouteID is the id of the route that received the exchange.
	RouteID = "flowmgmt_route_id"
	// FromEndpoint is the normalized uri of the consuming endpoint.
	FromEndpoint = "flowmgmt_from_endpoint"
	// RedeliveryCounter counts redelivery attempts of the failing step.
	RedeliveryCounter = "flowmgmt_redelivery_counter"
	// ExceptionCaught carries the error message of a handled failure.
	ExceptionCaught = "flowmgmt_exception_caught"
)

// Header is a single key/value pair in stable order.
type Header struct {
	Key   string
	Value string
}

// Sorted returns the headers of md ordered by key.
func Sorted(md message.Metadata) []Header {
	keys := make([]string, 0, len(md))
	for k := range md {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	out := make([]Header, 0, len(keys))
	for _, k := range keys {
		out = append(out, Header{Key: k, Value: md[k]})
	}
	return out
}

// Clone returns a copy of md that is never nil.
func Clone(md message.Metadata) message.Metadata {
	cloned := make(message.Metadata, len(md))
	for k, v := range md {
		cloned[k] = v
	}
	return cloned
}

// Redeliveries reads RedeliveryCounter, treating absent or malformed values as zero.
func Redeliveries(msg *message.Message) int {
	n, err := strconv.Atoi(msg.Metadata.Get(RedeliveryCounter))
	if err != nil {
		return 0
	}
	return n
}

// IncRedeliveries bumps RedeliveryCounter and returns the new value.
func IncRedeliveries(msg *message.Message) int {
	n := Redeliveries(msg) + 1
	msg.Metadata.Set(RedeliveryCounter, strconv.Itoa(n))
	return n
}
