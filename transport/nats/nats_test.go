package nats

import (
	"context"
	"errors"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/flowmgmt/transport"
	"github.com/drblury/flowmgmt/transport/transporttest"
)

type captured struct {
	pub    nats.PublisherConfig
	sub    nats.SubscriberConfig
	pubSub *transporttest.PubSub
}

func install(t *testing.T, pubErr, subErr error) *captured {
	t.Helper()
	origPub, origSub := PublisherFactory, SubscriberFactory
	t.Cleanup(func() { PublisherFactory, SubscriberFactory = origPub, origSub })

	c := &captured{pubSub: &transporttest.PubSub{}}
	PublisherFactory = func(cfg nats.PublisherConfig, _ watermill.LoggerAdapter) (message.Publisher, error) {
		c.pub = cfg
		return c.pubSub, pubErr
	}
	SubscriberFactory = func(cfg nats.SubscriberConfig, _ watermill.LoggerAdapter) (message.Subscriber, error) {
		c.sub = cfg
		return c.pubSub, subErr
	}
	return c
}

var natsConfig = &transporttest.Config{NATSURL: "nats://localhost:4222", NATSClientName: "orders"}

func TestRegistered(t *testing.T) {
	assert.True(t, transport.DefaultRegistry.Has(TransportName))
	assert.True(t, transport.DefaultRegistry.Has(JetStreamTransportName))
	assert.False(t, transport.CapabilitiesOf(TransportName).ReliableDelivery())
	assert.True(t, transport.CapabilitiesOf(JetStreamTransportName).Durable)
}

func TestBuildCore(t *testing.T) {
	c := install(t, nil, nil)

	tr, err := Build(context.Background(), natsConfig, watermill.NopLogger{})
	require.NoError(t, err)
	assert.Same(t, c.pubSub, tr.Publisher)
	assert.Equal(t, "nats://localhost:4222", c.pub.URL)
	assert.True(t, c.pub.JetStream.Disabled)
	assert.True(t, c.sub.JetStream.Disabled)
	assert.Equal(t, DefaultQueueGroup, c.sub.QueueGroupPrefix)
	assert.Len(t, c.pub.NatsOptions, 4)
}

func TestBuildJetStream(t *testing.T) {
	c := install(t, nil, nil)

	_, err := BuildJetStream(context.Background(), natsConfig, watermill.NopLogger{})
	require.NoError(t, err)
	assert.False(t, c.pub.JetStream.Disabled)
	assert.True(t, c.sub.JetStream.AutoProvision)
}

func TestBuildRequiresURL(t *testing.T) {
	install(t, nil, nil)
	_, err := Build(context.Background(), &transporttest.Config{}, watermill.NopLogger{})
	require.ErrorContains(t, err, "URL is required")
}

func TestBuildFailures(t *testing.T) {
	boom := errors.New("boom")

	c := install(t, boom, nil)
	_, err := Build(context.Background(), natsConfig, watermill.NopLogger{})
	require.ErrorIs(t, err, boom)
	assert.Zero(t, c.pubSub.Closed)

	c = install(t, nil, boom)
	_, err = Build(context.Background(), natsConfig, watermill.NopLogger{})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, c.pubSub.Closed)
}

func TestConnectOptionsWithoutClientName(t *testing.T) {
	assert.Len(t, connectOptions(""), 3)
}
