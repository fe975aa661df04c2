/*
Package runtime wires the management layer of flowmgmt into a runnable service.

# Architecture Overview

A Service owns one management registry shared by every context it creates.
Each context gets its own agent and lifecycle binder, so removing or
restarting one context only touches the records it registered. A separate
service agent answers queries for the HTTP API.

	engine lifecycle events -> lifecycle.Binder -> agent.Agent -> naming -> registry

# Package Structure

## Core Service (service.go)

The Service struct builds and owns:
  - The broker transport behind broker: endpoints
  - The shared registry and context name counter
  - One agent and binder per context
  - The management API and the Prometheus registry
  - HTTP servers for the API and for metrics

# Sub-packages

  - agent/: Registration gates, naming and typed proxies
  - api/: HTTP binding of the registry
  - config/: Management and broker configuration with validation
  - dump/: XML and YAML topology and statistics dumps
  - engine/: The routing engine being managed
  - errors/: Sentinel errors and error types
  - ids/: ULID generation for exchange ids
  - jsoncodec/: JSON marshaling utilities
  - lifecycle/: Engine lifecycle strategy feeding the agent
  - logging/: Logger interface and adapters
  - managed/: Attribute and operation sets per managed kind
  - metadata/: Message metadata utilities
  - metrics/: Prometheus collectors
  - mgmttest/: Test harness for instrumented contexts
  - naming/: Management names and clash handling
  - registry/: Name to record map with pattern queries
  - stats/: Exchange statistics and process resource usage

# Usage Example

	cfg := config.Default()
	cfg.WebUIEnabled = true

	svc, err := runtime.NewService(ctx, cfg, logger, runtime.ServiceDependencies{})
	if err != nil {
		return err
	}
	mc, err := svc.NewContext(engine.WithName("orders"))
	if err != nil {
		return err
	}
	err = mc.Context.AddRoutes(ctx,
		engine.From("broker:orders").RouteID("orders").Steps(engine.To("log:orders")),
	)
	if err != nil {
		return err
	}
	return svc.Start(ctx)
*/
package runtime
