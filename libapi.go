package flowmgmt

import (
	"io"

	runtimepkg "github.com/drblury/flowmgmt/internal/runtime"
	agentpkg "github.com/drblury/flowmgmt/internal/runtime/agent"
	configpkg "github.com/drblury/flowmgmt/internal/runtime/config"
	enginepkg "github.com/drblury/flowmgmt/internal/runtime/engine"
	errspkg "github.com/drblury/flowmgmt/internal/runtime/errors"
	idspkg "github.com/drblury/flowmgmt/internal/runtime/ids"
	"github.com/drblury/flowmgmt/internal/runtime/jsoncodec"
	loggingpkg "github.com/drblury/flowmgmt/internal/runtime/logging"
	managedpkg "github.com/drblury/flowmgmt/internal/runtime/managed"
	metadatapkg "github.com/drblury/flowmgmt/internal/runtime/metadata"
	namingpkg "github.com/drblury/flowmgmt/internal/runtime/naming"
	registrypkg "github.com/drblury/flowmgmt/internal/runtime/registry"
	statspkg "github.com/drblury/flowmgmt/internal/runtime/stats"
	transportpkg "github.com/drblury/flowmgmt/transport"
)

type (
	Config              = configpkg.Config
	StatisticsLevel     = configpkg.StatisticsLevel
	MBeansLevel         = configpkg.MBeansLevel
	Service             = runtimepkg.Service
	ServiceDependencies = runtimepkg.ServiceDependencies
	ManagedContext      = runtimepkg.ManagedContext

	// Engine types
	Context           = enginepkg.Context
	ContextOption     = enginepkg.Option
	RouteDefinition   = enginepkg.RouteDefinition
	Route             = enginepkg.Route
	Node              = enginepkg.Node
	Exchange          = enginepkg.Exchange
	ExchangeHooks     = enginepkg.ExchangeHooks
	ExchangeInfo      = enginepkg.ExchangeInfo
	AggregateConfig   = enginepkg.AggregateConfig
	LifecycleStrategy = enginepkg.LifecycleStrategy
	MockEndpoint      = enginepkg.MockEndpoint

	// Management types
	Agent           = agentpkg.Agent
	Proxy           = agentpkg.Proxy
	ContextProxy    = agentpkg.ContextProxy
	RouteProxy      = agentpkg.RouteProxy
	ProcessorProxy  = agentpkg.ProcessorProxy
	EndpointProxy   = agentpkg.EndpointProxy
	ManagedRoute    = managedpkg.Route
	ManagedStep     = managedpkg.Processor
	ManagedEndpoint = managedpkg.Endpoint
	Name            = namingpkg.Name
	Kind            = namingpkg.Kind
	Pattern         = registrypkg.Pattern
	Record          = registrypkg.Record
	Handle          = registrypkg.Handle
	Statistics      = statspkg.Statistics
	StatsSnapshot   = statspkg.Snapshot
	ResourceUsage   = statspkg.ResourceUsage
	ResourceTracker = statspkg.ResourceTracker

	LogFields             = loggingpkg.LogFields
	ServiceLogger         = loggingpkg.ServiceLogger
	LogOptions            = loggingpkg.Options
	ConfigValidationError = errspkg.ConfigValidationError

	// Transport types
	TransportBuilder      = transportpkg.Builder
	TransportConfig       = transportpkg.Config
	TransportRegistry     = transportpkg.Registry
	TransportCapabilities = transportpkg.Capabilities
)

const (
	KindContext    = namingpkg.KindContext
	KindRoute      = namingpkg.KindRoute
	KindProcessor  = namingpkg.KindProcessor
	KindEndpoint   = namingpkg.KindEndpoint
	KindProducer   = namingpkg.KindProducer
	KindConsumer   = namingpkg.KindConsumer
	KindThreadPool = namingpkg.KindThreadPool
	KindService    = namingpkg.KindService

	StatisticsOff         = configpkg.StatisticsOff
	StatisticsContextOnly = configpkg.StatisticsContextOnly
	StatisticsRoutesOnly  = configpkg.StatisticsRoutesOnly
	StatisticsDefault     = configpkg.StatisticsDefault
	StatisticsExtended    = configpkg.StatisticsExtended

	MBeansDefault     = configpkg.MBeansDefault
	MBeansRoutesOnly  = configpkg.MBeansRoutesOnly
	MBeansContextOnly = configpkg.MBeansContextOnly

	DefaultDomain = configpkg.DefaultDomain
)

var (
	NewService     = runtimepkg.NewService
	DefaultConfig  = configpkg.Default
	ConfigFromEnv  = configpkg.FromEnv
	ValidateConfig = configpkg.ValidateConfig
	NewAgent       = agentpkg.New

	// Route building
	NewContext          = enginepkg.NewContext
	WithName            = enginepkg.WithName
	WithShutdownTimeout = enginepkg.WithShutdownTimeout
	WithGlobalOption    = enginepkg.WithGlobalOption
	WithSourceLocations = enginepkg.WithSourceLocations
	LoggingHooks        = enginepkg.LoggingHooks
	From                = enginepkg.From
	To                  = enginepkg.To
	Log                 = enginepkg.Log
	Process             = enginepkg.Process
	SetBody             = enginepkg.SetBody
	SetHeader           = enginepkg.SetHeader
	Filter              = enginepkg.Filter
	Choice              = enginepkg.Choice
	When                = enginepkg.When
	Otherwise           = enginepkg.Otherwise
	Aggregate           = enginepkg.Aggregate
	Delay               = enginepkg.Delay

	// Names and queries
	ParseName      = namingpkg.Parse
	ParseKind      = namingpkg.ParseKind
	ParsePattern   = registrypkg.ParsePattern
	KindPattern    = registrypkg.KindPattern
	ContextPattern = registrypkg.ContextPattern
	ExactPattern   = registrypkg.ExactPattern

	// Modular transport registry
	// Import individual transports via: _ "github.com/drblury/flowmgmt/transport/kafka"
	DefaultTransportRegistry = transportpkg.DefaultRegistry
	RegisterTransport        = transportpkg.Register
	BuildTransport           = transportpkg.Build
	TransportCapabilitiesOf  = transportpkg.CapabilitiesOf

	Marshal    = jsoncodec.Marshal
	Unmarshal  = jsoncodec.Unmarshal
	Encode     = jsoncodec.Encode
	DecodeArgs = jsoncodec.DecodeArgs

	ErrNameClash            = errspkg.ErrNameClash
	ErrNotFound             = errspkg.ErrNotFound
	ErrRegistrationDisabled = errspkg.ErrRegistrationDisabled
	ErrStartupAborted       = errspkg.ErrStartupAborted
	ErrDuplicateRouteID     = errspkg.ErrDuplicateRouteID
	ErrCapabilityMismatch   = errspkg.ErrCapabilityMismatch
	ErrUnknownOperation     = errspkg.ErrUnknownOperation
	ErrUnknownAttribute     = errspkg.ErrUnknownAttribute
	ErrInvalidArgument      = errspkg.ErrInvalidArgument
	ErrNoConsumers          = errspkg.ErrNoConsumers
	ErrUnknownComponent     = errspkg.ErrUnknownComponent
	ErrContextNotStarted    = errspkg.ErrContextNotStarted
	ErrRouteNotFound        = errspkg.ErrRouteNotFound
	ErrConfigRequired       = errspkg.ErrConfigRequired
	ErrLoggerRequired       = errspkg.ErrLoggerRequired
	ErrServiceStopped       = errspkg.ErrServiceStopped

	NewSlogServiceLogger    = loggingpkg.NewSlogServiceLogger
	NewZerologServiceLogger = loggingpkg.NewZerologServiceLogger
	NewNopServiceLogger     = loggingpkg.NewNopServiceLogger
	NewLoggerFromOptions    = loggingpkg.NewFromOptions

	CloneMetadata = metadatapkg.Clone
	Redeliveries  = metadatapkg.Redeliveries

	NewExchangeID     = idspkg.NewExchangeID
	ExchangeCreatedAt = idspkg.CreatedAt
)

// NewProxy resolves a typed proxy for name, failing with ErrNotFound or
// ErrCapabilityMismatch.
func NewProxy[T Handle](a *Agent, name Name) (*agentpkg.TypedProxy[T], error) {
	return agentpkg.NewProxy[T](a, name)
}

// Attr reads a typed attribute through a proxy.
func Attr[V any](p *Proxy, name string) (V, error) {
	return agentpkg.Attr[V](p, name)
}

// NewLogger builds the logger described by the Log* fields of cfg. The
// closer releases the log file when one is configured.
func NewLogger(cfg *Config) (ServiceLogger, io.Closer, error) {
	if cfg == nil {
		return nil, nil, ErrConfigRequired
	}
	return loggingpkg.NewFromOptions(loggingpkg.Options{
		Level:      cfg.LogLevel,
		Format:     cfg.LogFormat,
		File:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
	})
}
