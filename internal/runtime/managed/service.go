package managed

import (
	"context"
	"fmt"
	"time"

	"github.com/drblury/flowmgmt/internal/runtime/engine"
	flowerrors "github.com/drblury/flowmgmt/internal/runtime/errors"
	"github.com/drblury/flowmgmt/internal/runtime/naming"
)

// Producer is the managed view of a route producer.
type Producer struct {
	env      *Env
	producer engine.Producer
	route    *engine.Route
}

func NewProducer(env *Env, p engine.Producer, r *engine.Route) *Producer {
	return &Producer{env: env, producer: p, route: r}
}

// Consumer is the managed view of a route consumer.
type Consumer struct {
	env      *Env
	consumer engine.Consumer
	route    *engine.Route
}

func NewConsumer(env *Env, c engine.Consumer, r *engine.Route) *Consumer {
	return &Consumer{env: env, consumer: c, route: r}
}

func serviceOps[T any](svc func(T) engine.Service) map[string]operation[T] {
	return map[string]operation[T]{
		"start": func(ctx context.Context, o T, _ []any) (any, error) { return nil, svc(o).Start(ctx) },
		"stop":  func(ctx context.Context, o T, _ []any) (any, error) { return nil, svc(o).Stop(ctx) },
	}
}

var producerDescriptor = &descriptor[*Producer]{
	kind: naming.KindProducer,
	attrs: map[string]attribute[*Producer]{
		"EndpointUri": {get: func(p *Producer) any { return p.producer.Endpoint().URI() }},
		"State":       {get: func(p *Producer) any { return p.producer.Status().String() }},
		"CamelId":     {get: func(p *Producer) any { return p.env.Identity.ManagementName }},
		"RouteId":     {get: func(p *Producer) any { return p.route.ID() }},
	},
	ops: serviceOps(func(p *Producer) engine.Service { return p.producer }),
}

var consumerDescriptor = &descriptor[*Consumer]{
	kind: naming.KindConsumer,
	attrs: map[string]attribute[*Consumer]{
		"EndpointUri": {get: func(c *Consumer) any { return c.consumer.Endpoint().URI() }},
		"State":       {get: func(c *Consumer) any { return c.consumer.Status().String() }},
		"CamelId":     {get: func(c *Consumer) any { return c.env.Identity.ManagementName }},
		"RouteId":     {get: func(c *Consumer) any { return c.route.ID() }},
	},
	ops: serviceOps(func(c *Consumer) engine.Service { return c.consumer }),
}

func (p *Producer) Kind() naming.Kind        { return naming.KindProducer }
func (p *Producer) AttributeNames() []string { return producerDescriptor.attributeNames(p) }
func (p *Producer) Operations() []string     { return producerDescriptor.operationNames() }
func (p *Producer) Target() engine.Producer  { return p.producer }

func (p *Producer) Attribute(name string) (any, error) {
	return producerDescriptor.attribute(p, name)
}

func (p *Producer) Invoke(ctx context.Context, op string, args ...any) (any, error) {
	return producerDescriptor.invoke(ctx, p, op, args)
}

func (c *Consumer) Kind() naming.Kind        { return naming.KindConsumer }
func (c *Consumer) AttributeNames() []string { return consumerDescriptor.attributeNames(c) }
func (c *Consumer) Operations() []string     { return consumerDescriptor.operationNames() }
func (c *Consumer) Target() engine.Consumer  { return c.consumer }

func (c *Consumer) Attribute(name string) (any, error) {
	return consumerDescriptor.attribute(c, name)
}

func (c *Consumer) Invoke(ctx context.Context, op string, args ...any) (any, error) {
	return consumerDescriptor.invoke(ctx, c, op, args)
}

// Service is the managed view of a context service.
type Service struct {
	env     *Env
	service engine.Service
}

func NewService(env *Env, svc engine.Service) *Service {
	return &Service{env: env, service: svc}
}

func isShutdownStrategy(s *Service) bool {
	_, ok := s.service.(*engine.ShutdownStrategy)
	return ok
}

func shutdownStrategy(s *Service) *engine.ShutdownStrategy {
	return s.service.(*engine.ShutdownStrategy)
}

var serviceDescriptor = &descriptor[*Service]{
	kind: naming.KindService,
	attrs: map[string]attribute[*Service]{
		"State":       {get: func(s *Service) any { return s.service.Status().String() }},
		"CamelId":     {get: func(s *Service) any { return s.env.Identity.ManagementName }},
		"ServiceType": {get: func(s *Service) any { return ServiceName(s.service) }},
		"Timeout": {
			get:       func(s *Service) any { return int64(shutdownStrategy(s).Timeout() / time.Second) },
			available: isShutdownStrategy,
		},
		"TimeUnit": {
			get:       func(s *Service) any { return shutdownStrategy(s).TimeUnit() },
			available: isShutdownStrategy,
		},
		"LoggingLevel": {
			get:       func(s *Service) any { return shutdownStrategy(s).LoggingLevel() },
			available: isShutdownStrategy,
		},
		"ShutdownRoutesInReverseOrder": {
			get:       func(s *Service) any { return shutdownStrategy(s).ShutdownRoutesInReverseOrder() },
			available: isShutdownStrategy,
		},
	},
	ops: map[string]operation[*Service]{
		"setTimeout": func(_ context.Context, s *Service, args []any) (any, error) {
			if !isShutdownStrategy(s) {
				return nil, fmt.Errorf("setTimeout on %s: %w", ServiceName(s.service), flowerrors.ErrUnknownOperation)
			}
			seconds, err := argInt64(args, 0)
			if err != nil {
				return nil, err
			}
			if seconds <= 0 {
				return nil, fmt.Errorf("setTimeout: %w: timeout must be positive", flowerrors.ErrInvalidArgument)
			}
			shutdownStrategy(s).SetTimeout(time.Duration(seconds) * time.Second)
			return nil, nil
		},
		"setShutdownRoutesInReverseOrder": func(_ context.Context, s *Service, args []any) (any, error) {
			if !isShutdownStrategy(s) {
				return nil, fmt.Errorf("setShutdownRoutesInReverseOrder on %s: %w", ServiceName(s.service), flowerrors.ErrUnknownOperation)
			}
			reverse, err := argBool(args, 0, true)
			if err != nil {
				return nil, err
			}
			shutdownStrategy(s).SetShutdownRoutesInReverseOrder(reverse)
			return nil, nil
		},
	},
}

func (s *Service) Kind() naming.Kind        { return naming.KindService }
func (s *Service) AttributeNames() []string { return serviceDescriptor.attributeNames(s) }
func (s *Service) Operations() []string     { return serviceDescriptor.operationNames() }
func (s *Service) Target() engine.Service   { return s.service }

func (s *Service) Attribute(name string) (any, error) {
	return serviceDescriptor.attribute(s, name)
}

func (s *Service) Invoke(ctx context.Context, op string, args ...any) (any, error) {
	return serviceDescriptor.invoke(ctx, s, op, args)
}

// ServiceName is the local management name of a context service.
func ServiceName(svc engine.Service) string {
	switch svc.(type) {
	case *engine.ShutdownStrategy:
		return "ShutdownStrategy"
	default:
		return fmt.Sprintf("%T", svc)
	}
}
