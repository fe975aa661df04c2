// Package nats provides the NATS brokers. "nats" uses core subjects and
// "nats-jetstream" persists messages in JetStream streams.
package nats

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	nc "github.com/nats-io/nats.go"

	"github.com/drblury/flowmgmt/transport"
)

const (
	TransportName          = "nats"
	JetStreamTransportName = "nats-jetstream"

	// DefaultQueueGroup makes consumers of one topic compete for messages.
	DefaultQueueGroup = "flowmgmt"
)

// PublisherFactory allows overriding the publisher creation for testing.
var PublisherFactory = func(cfg nats.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
	return nats.NewPublisher(cfg, logger)
}

// SubscriberFactory allows overriding the subscriber creation for testing.
var SubscriberFactory = func(cfg nats.SubscriberConfig, logger watermill.LoggerAdapter) (message.Subscriber, error) {
	return nats.NewSubscriber(cfg, logger)
}

func init() {
	transport.Register(TransportName, Build, transport.NATSCapabilities)
	transport.Register(JetStreamTransportName, BuildJetStream, transport.NATSJetStreamCapabilities)
}

// Build creates a core NATS transport. Messages are not persisted.
func Build(ctx context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (transport.Transport, error) {
	return build(ctx, cfg, logger, nats.JetStreamConfig{Disabled: true})
}

// BuildJetStream creates a JetStream transport. Streams are provisioned on
// first use of a topic.
func BuildJetStream(ctx context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (transport.Transport, error) {
	return build(ctx, cfg, logger, nats.JetStreamConfig{
		AutoProvision: true,
		DurablePrefix: DefaultQueueGroup,
	})
}

func build(_ context.Context, cfg transport.Config, logger watermill.LoggerAdapter, js nats.JetStreamConfig) (transport.Transport, error) {
	url := cfg.GetNATSURL()
	if url == "" {
		return transport.Transport{}, errors.New("nats: URL is required")
	}
	options := connectOptions(cfg.GetNATSClientName())
	marshaler := &nats.NATSMarshaler{}

	publisher, err := PublisherFactory(nats.PublisherConfig{
		URL:         url,
		NatsOptions: options,
		Marshaler:   marshaler,
		JetStream:   js,
	}, logger)
	if err != nil {
		return transport.Transport{}, fmt.Errorf("nats publisher: %w", err)
	}

	subscriber, err := SubscriberFactory(nats.SubscriberConfig{
		URL:              url,
		QueueGroupPrefix: DefaultQueueGroup,
		NatsOptions:      options,
		Unmarshaler:      marshaler,
		JetStream:        js,
	}, logger)
	if err != nil {
		return transport.Transport{}, errors.Join(fmt.Errorf("nats subscriber: %w", err), publisher.Close())
	}

	return transport.Transport{Publisher: publisher, Subscriber: subscriber}, nil
}

func connectOptions(clientName string) []nc.Option {
	options := []nc.Option{
		nc.RetryOnFailedConnect(true),
		nc.MaxReconnects(-1),
		nc.ReconnectWait(time.Second),
	}
	if clientName != "" {
		options = append(options, nc.Name(clientName))
	}
	return options
}
