package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"

	"github.com/drblury/flowmgmt/internal/runtime/logging"
	"github.com/drblury/flowmgmt/internal/runtime/metadata"
)

// Node type tags.
const (
	NodeTo          = "to"
	NodeLog         = "log"
	NodeProcess     = "process"
	NodeSetBody     = "setBody"
	NodeSetHeader   = "setHeader"
	NodeFilter      = "filter"
	NodeChoice      = "choice"
	NodeWhen        = "when"
	NodeOtherwise   = "otherwise"
	NodeAggregate   = "aggregate"
	NodeDelay       = "delay"
	NodeOnException = "onException"
)

// SourceLocation is where a step was declared.
type SourceLocation struct {
	File string
	Line int
}

func (l SourceLocation) IsZero() bool { return l.File == "" && l.Line == 0 }

// Node is one step of a route. Nodes are built with the step constructors
// (To, Log, Choice...) and become live once their route is built.
type Node struct {
	id       string
	customID bool
	typ      string
	location SourceLocation
	children []*Node
	disabled atomic.Bool

	// branch containers (when/otherwise) group steps but are not steps themselves
	container bool
	// internal nodes belong to error handling and are not counted as steps
	internal bool

	uri       string
	text      string
	header    string
	value     any
	predicate func(*Exchange) bool
	process   func(*Exchange) error
	delay     time.Duration
	aggregate *AggregateConfig

	route      *Route
	index      int
	producer   Producer
	aggregator *aggregator
	observer   observerSlot
}

func newNode(typ string) *Node {
	n := &Node{typ: typ, index: -1}
	if _, file, line, ok := runtime.Caller(2); ok {
		n.location = SourceLocation{File: filepath.Base(file), Line: line}
	}
	return n
}

// To sends the exchange to uri.
func To(uri string) *Node {
	n := newNode(NodeTo)
	n.uri = uri
	return n
}

// Log logs message at info level. "${body}" and "${routeId}" are replaced.
func Log(message string) *Node {
	n := newNode(NodeLog)
	n.text = message
	return n
}

// Process runs fn against the exchange.
func Process(fn func(*Exchange) error) *Node {
	n := newNode(NodeProcess)
	n.process = fn
	return n
}

// SetBody replaces the body with value, or with the result of value when it
// is a func(*Exchange) any.
func SetBody(value any) *Node {
	n := newNode(NodeSetBody)
	n.value = value
	return n
}

// SetHeader sets header key to value, or to the result of value when it is a
// func(*Exchange) any.
func SetHeader(key string, value any) *Node {
	n := newNode(NodeSetHeader)
	n.header = key
	n.value = value
	return n
}

// Filter runs steps only for exchanges matching predicate.
func Filter(predicate func(*Exchange) bool, steps ...*Node) *Node {
	n := newNode(NodeFilter)
	n.predicate = predicate
	n.children = steps
	return n
}

// Choice runs the first matching When branch, or the Otherwise branch.
func Choice(branches ...*Node) *Node {
	n := newNode(NodeChoice)
	n.children = branches
	return n
}

// When is a Choice branch.
func When(predicate func(*Exchange) bool, steps ...*Node) *Node {
	n := newNode(NodeWhen)
	n.container = true
	n.predicate = predicate
	n.children = steps
	return n
}

// Otherwise is the fallback Choice branch.
func Otherwise(steps ...*Node) *Node {
	n := newNode(NodeOtherwise)
	n.container = true
	n.children = steps
	return n
}

// Delay pauses the exchange.
func Delay(d time.Duration) *Node {
	n := newNode(NodeDelay)
	n.delay = d
	return n
}

// WithID assigns an explicit id.
func (n *Node) WithID(id string) *Node {
	n.id = id
	n.customID = id != ""
	return n
}

// Disable excludes the step from message flow. It stays part of the route
// structure.
func (n *Node) Disable() *Node {
	n.disabled.Store(true)
	return n
}

func (n *Node) ID() string                { return n.id }
func (n *Node) HasCustomID() bool         { return n.customID }
func (n *Node) Type() string              { return n.typ }
func (n *Node) Location() SourceLocation  { return n.location }
func (n *Node) Children() []*Node         { return n.children }
func (n *Node) IsContainer() bool         { return n.container }
func (n *Node) IsInternal() bool          { return n.internal }
func (n *Node) Disabled() bool            { return n.disabled.Load() }
func (n *Node) SetDisabled(disabled bool) { n.disabled.Store(disabled) }
func (n *Node) SetObserver(o Observer)    { n.observer.Set(o) }

// Index is the position among the steps of the route, or -1 for branch
// containers and error handling steps.
func (n *Node) Index() int { return n.index }

// Route returns the owning route once the route is built.
func (n *Node) Route() *Route { return n.route }

// URI is the endpoint uri of a "to" step.
func (n *Node) URI() string { return n.uri }

// Producer is the producer of a built "to" step, nil otherwise.
func (n *Node) Producer() Producer { return n.producer }

// Attributes returns the type-specific settings shown in structure dumps.
func (n *Node) Attributes() map[string]string {
	attrs := map[string]string{}
	switch n.typ {
	case NodeTo:
		attrs["uri"] = n.uri
		if n.producer != nil {
			attrs["uri"] = n.producer.Endpoint().URI()
		}
	case NodeLog:
		attrs["message"] = n.text
	case NodeSetHeader:
		attrs["name"] = n.header
	case NodeDelay:
		attrs["delay"] = n.delay.String()
	case NodeAggregate:
		if n.aggregate.CompletionSize > 0 {
			attrs["completionSize"] = fmt.Sprint(n.aggregate.CompletionSize)
		}
		if n.aggregate.CompletionTimeout > 0 {
			attrs["completionTimeout"] = n.aggregate.CompletionTimeout.String()
		}
	}
	return attrs
}

// clone copies the declaration of n and its children, without runtime state.
func (n *Node) clone(substitute func(string) string) *Node {
	c := &Node{
		id:        n.id,
		customID:  n.customID,
		typ:       n.typ,
		location:  n.location,
		container: n.container,
		internal:  n.internal,
		uri:       substitute(n.uri),
		text:      substitute(n.text),
		header:    n.header,
		value:     n.value,
		predicate: n.predicate,
		process:   n.process,
		delay:     n.delay,
		aggregate: n.aggregate,
		index:     -1,
	}
	c.disabled.Store(n.disabled.Load())
	for _, child := range n.children {
		c.children = append(c.children, child.clone(substitute))
	}
	return c
}

func identity(s string) string { return s }

// run executes the step with statistics, skipping disabled steps entirely.
func (n *Node) run(ctx context.Context, ex *Exchange) error {
	if n.disabled.Load() {
		return nil
	}
	n.observer.start(ex.ID)
	err := n.invoke(ctx, ex)
	failed := err != nil
	n.observer.complete(ex.ID, failed, failed && n.route.policyHandles())
	return err
}

// invoke applies the route's redelivery policy to leaf steps.
func (n *Node) invoke(ctx context.Context, ex *Exchange) error {
	policy := n.route.policy
	if policy == nil || policy.MaxRedeliveries == 0 || n.internal || len(n.children) > 0 {
		return n.exec(ctx, ex)
	}

	attempt := 0
	handler := func(msg *message.Message) ([]*message.Message, error) {
		if attempt > 0 {
			metadata.IncRedeliveries(msg)
			n.observer.redelivery()
			n.route.observer.redelivery()
			n.route.ctx.observer.redelivery()
		}
		attempt++
		return nil, n.exec(msg.Context(), ex)
	}
	retry := middleware.Retry{
		MaxRetries:      policy.MaxRedeliveries,
		InitialInterval: policy.RedeliveryDelay,
		MaxInterval:     policy.RedeliveryDelay,
		Multiplier:      1,
		OnRetryHook: func(retryNum int, delay time.Duration) {
			n.route.ctx.logger.Debug("Redelivery attempt failed", logging.LogFields{
				"route_id":    n.route.id,
				"node_id":     n.id,
				"exchange_id": ex.ID,
				"attempt":     retryNum,
				"next_delay":  delay,
			})
		},
	}
	ex.Message.SetContext(ctx)
	_, err := retry.Middleware(handler)(ex.Message)
	return err
}

func (n *Node) exec(ctx context.Context, ex *Exchange) error {
	switch n.typ {
	case NodeTo:
		n.route.ctx.observer.hit(n.producer.Endpoint().URI())
		return n.producer.Process(ctx, ex)
	case NodeLog:
		n.route.ctx.logger.Info(n.expand(ex), logging.LogFields{
			"route_id":    n.route.id,
			"exchange_id": ex.ID,
		})
		return nil
	case NodeProcess:
		return n.process(ex)
	case NodeSetBody:
		ex.SetBody(evaluate(n.value, ex))
		return nil
	case NodeSetHeader:
		ex.SetHeader(n.header, fmt.Sprint(evaluate(n.value, ex)))
		return nil
	case NodeFilter:
		if !n.predicate(ex) {
			return nil
		}
		return n.route.runSteps(ctx, ex, n.children)
	case NodeChoice:
		for _, branch := range n.children {
			if branch.typ == NodeOtherwise || branch.predicate(ex) {
				return n.route.runSteps(ctx, ex, branch.children)
			}
		}
		return nil
	case NodeDelay:
		timer := time.NewTimer(n.delay)
		defer timer.Stop()
		select {
		case <-timer.C:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	case NodeAggregate:
		return n.aggregator.add(ex)
	default:
		return fmt.Errorf("node %s: unsupported type %q", n.id, n.typ)
	}
}

func (n *Node) expand(ex *Exchange) string {
	return strings.NewReplacer("${body}", ex.Body(), "${routeId}", n.route.id, "${id}", ex.ID).Replace(n.text)
}

func evaluate(value any, ex *Exchange) any {
	if fn, ok := value.(func(*Exchange) any); ok {
		return fn(ex)
	}
	return value
}

// walk visits n and its descendants in declaration order.
func (n *Node) walk(visit func(*Node)) {
	visit(n)
	for _, child := range n.children {
		child.walk(visit)
	}
}
