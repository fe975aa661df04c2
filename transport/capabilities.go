package transport

// Capabilities describes what a broker backend guarantees to broker:
// endpoints.
type Capabilities struct {
	Name string

	// SupportsOrdering reports that messages of one topic arrive in publish order.
	SupportsOrdering bool
	// SupportsAck reports that acknowledging a message removes it from the broker.
	SupportsAck bool
	// SupportsNack reports that a negative acknowledgment triggers redelivery.
	SupportsNack bool
	// Durable reports that published messages survive a broker restart.
	Durable bool
	// SupportsPartitioning reports topic partitions with per-partition ordering.
	SupportsPartitioning bool
	// MaxMessageSize is in bytes, zero when unlimited or unknown.
	MaxMessageSize int64
}

// ReliableDelivery reports at-least-once delivery.
func (c Capabilities) ReliableDelivery() bool {
	return c.SupportsAck && c.SupportsNack
}

var (
	ChannelCapabilities = Capabilities{
		Name:             "channel",
		SupportsOrdering: true,
		SupportsAck:      true,
		SupportsNack:     true,
	}

	KafkaCapabilities = Capabilities{
		Name:                 "kafka",
		SupportsOrdering:     true,
		SupportsAck:          true,
		Durable:              true,
		SupportsPartitioning: true,
		MaxMessageSize:       1 << 20,
	}

	RabbitMQCapabilities = Capabilities{
		Name:             "rabbitmq",
		SupportsOrdering: true,
		SupportsAck:      true,
		SupportsNack:     true,
		Durable:          true,
	}

	NATSCapabilities = Capabilities{
		Name:           "nats",
		MaxMessageSize: 1 << 20,
	}

	NATSJetStreamCapabilities = Capabilities{
		Name:             "nats-jetstream",
		SupportsOrdering: true,
		SupportsAck:      true,
		SupportsNack:     true,
		Durable:          true,
		MaxMessageSize:   1 << 20,
	}

	AWSCapabilities = Capabilities{
		Name:           "aws",
		SupportsAck:    true,
		SupportsNack:   true,
		Durable:        true,
		MaxMessageSize: 256 << 10,
	}

	HTTPCapabilities = Capabilities{
		Name: "http",
	}
)
