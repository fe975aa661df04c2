// Package flowmgmt instruments a running routing engine for management. It
// discovers the contexts, routes, processing steps, endpoints, producers,
// consumers, thread pools and services of an engine while it runs, names
// them deterministically, keeps them in a queryable registry together with
// live exchange statistics and exposes attributes and control operations on
// each of them.
//
// A Service owns the shared registry. Contexts created through
// Service.NewContext are bound to their own agent, so objects appear in the
// registry as the context starts or is mutated and disappear again when it
// stops. The registry can be queried in-process through an Agent and typed
// proxies, or over HTTP through the management API served by the Service.
//
// # Configuration
//
// Config carries the registration gates (StatisticsLevel, MBeansLevel,
// RegisterNewRoutes, RegisterAlways, OnlyRegisterProcessorsWithCustomID),
// the naming settings (DomainName, NamePattern, IncludeHostName) and the
// broker selection behind broker: endpoints. ConfigFromEnv reads all of them
// from the environment.
//
// # Transports
//
// broker: endpoints publish to and consume from one of the built-in brokers:
//   - channel: In-memory Go channels for testing
//   - kafka: Streaming with consumer groups
//   - rabbitmq: AMQP-based durable queues
//   - nats and nats-jetstream: Core subjects or persisted streams
//   - aws: SNS topics fanned out to SQS queues
//   - http: Webhook delivery
//
// # Observability
//
// Every registered statistics set is exported to Prometheus. The management
// API and every exchange through a route are traced with OpenTelemetry.
package flowmgmt
