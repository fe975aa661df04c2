package channel

import (
	"context"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/flowmgmt/transport"
	"github.com/drblury/flowmgmt/transport/transporttest"
)

func TestRegisteredWithDefaultRegistry(t *testing.T) {
	assert.True(t, transport.DefaultRegistry.Has(TransportName))
	assert.Equal(t, transport.ChannelCapabilities, transport.CapabilitiesOf(TransportName))
}

func TestBuildDeliversMessages(t *testing.T) {
	tr, err := Build(context.Background(), &transporttest.Config{}, watermill.NopLogger{})
	require.NoError(t, err)
	defer func() { require.NoError(t, tr.Close()) }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	messages, err := tr.Subscriber.Subscribe(ctx, "orders")
	require.NoError(t, err)

	go func() {
		_ = tr.Publisher.Publish("orders", message.NewMessage("1", []byte("hello")))
	}()

	msg := <-messages
	assert.Equal(t, "hello", string(msg.Payload))
	msg.Ack()
}

func TestBuildUsesFactory(t *testing.T) {
	original := Factory
	defer func() { Factory = original }()

	ps := &transporttest.PubSub{}
	var got gochannel.Config
	Factory = func(cfg gochannel.Config, _ watermill.LoggerAdapter) (message.Publisher, message.Subscriber) {
		got = cfg
		return ps, ps
	}

	tr, err := Build(context.Background(), &transporttest.Config{}, watermill.NopLogger{})
	require.NoError(t, err)
	assert.Same(t, ps, tr.Publisher)
	assert.Equal(t, int64(OutputBuffer), got.OutputChannelBuffer)
	assert.True(t, got.BlockPublishUntilSubscriberAck)
}
