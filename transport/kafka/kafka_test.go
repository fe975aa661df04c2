package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v3/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/flowmgmt/transport"
	"github.com/drblury/flowmgmt/transport/transporttest"
)

func stubFactories(t *testing.T, pub, sub func() error) (*transporttest.PubSub, *kafka.PublisherConfig, *kafka.SubscriberConfig) {
	t.Helper()
	origPub, origSub := PublisherFactory, SubscriberFactory
	t.Cleanup(func() { PublisherFactory, SubscriberFactory = origPub, origSub })

	ps := &transporttest.PubSub{}
	var pubCfg kafka.PublisherConfig
	var subCfg kafka.SubscriberConfig
	PublisherFactory = func(cfg kafka.PublisherConfig, _ watermill.LoggerAdapter) (message.Publisher, error) {
		pubCfg = cfg
		return ps, pub()
	}
	SubscriberFactory = func(cfg kafka.SubscriberConfig, _ watermill.LoggerAdapter) (message.Subscriber, error) {
		subCfg = cfg
		return ps, sub()
	}
	return ps, &pubCfg, &subCfg
}

func ok() error { return nil }

func TestRegistered(t *testing.T) {
	assert.True(t, transport.DefaultRegistry.Has(TransportName))
	assert.True(t, transport.CapabilitiesOf(TransportName).SupportsPartitioning)
}

func TestBuildPassesSettings(t *testing.T) {
	_, pubCfg, subCfg := stubFactories(t, ok, ok)

	tr, err := Build(context.Background(), &transporttest.Config{
		KafkaBrokers:       []string{"localhost:9092"},
		KafkaClientID:      "orders-svc",
		KafkaConsumerGroup: "orders",
	}, watermill.NopLogger{})
	require.NoError(t, err)
	assert.NotNil(t, tr.Publisher)

	assert.Equal(t, []string{"localhost:9092"}, pubCfg.Brokers)
	assert.Equal(t, "orders-svc", pubCfg.OverwriteSaramaConfig.ClientID)
	assert.Equal(t, "orders", subCfg.ConsumerGroup)
	assert.Equal(t, "orders-svc", subCfg.OverwriteSaramaConfig.ClientID)
}

func TestBuildDefaultsConsumerGroup(t *testing.T) {
	_, _, subCfg := stubFactories(t, ok, ok)

	_, err := Build(context.Background(), &transporttest.Config{KafkaBrokers: []string{"b:9092"}}, watermill.NopLogger{})
	require.NoError(t, err)
	assert.Equal(t, DefaultConsumerGroup, subCfg.ConsumerGroup)
}

func TestBuildErrors(t *testing.T) {
	t.Run("missing brokers", func(t *testing.T) {
		_, err := Build(context.Background(), &transporttest.Config{}, watermill.NopLogger{})
		require.ErrorContains(t, err, "brokers are required")
	})

	t.Run("publisher fails", func(t *testing.T) {
		stubFactories(t, func() error { return errors.New("publisher error") }, ok)
		_, err := Build(context.Background(), &transporttest.Config{KafkaBrokers: []string{"b:9092"}}, watermill.NopLogger{})
		require.ErrorContains(t, err, "publisher error")
	})

	t.Run("subscriber fails closes publisher", func(t *testing.T) {
		ps, _, _ := stubFactories(t, ok, func() error { return errors.New("subscriber error") })
		_, err := Build(context.Background(), &transporttest.Config{KafkaBrokers: []string{"b:9092"}}, watermill.NopLogger{})
		require.ErrorContains(t, err, "subscriber error")
		assert.Equal(t, 1, ps.Closed)
	})
}
