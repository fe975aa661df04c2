package http

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	watermillhttp "github.com/ThreeDotsLabs/watermill-http/v2/pkg/http"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/flowmgmt/transport"
	"github.com/drblury/flowmgmt/transport/transporttest"
)

type captured struct {
	pub    watermillhttp.PublisherConfig
	addr   string
	pubSub *transporttest.PubSub
}

func install(t *testing.T, pubErr, subErr error) *captured {
	t.Helper()
	origPub, origSub := PublisherFactory, SubscriberFactory
	t.Cleanup(func() { PublisherFactory, SubscriberFactory = origPub, origSub })

	c := &captured{pubSub: &transporttest.PubSub{}}
	PublisherFactory = func(cfg watermillhttp.PublisherConfig, _ watermill.LoggerAdapter) (message.Publisher, error) {
		c.pub = cfg
		return c.pubSub, pubErr
	}
	SubscriberFactory = func(addr string, _ watermillhttp.SubscriberConfig, _ watermill.LoggerAdapter) (message.Subscriber, error) {
		c.addr = addr
		return c.pubSub, subErr
	}
	return c
}

var httpConfig = &transporttest.Config{HTTPServerAddress: ":8090", HTTPPublisherURL: "http://peer:8090/"}

func TestRegistered(t *testing.T) {
	assert.True(t, transport.DefaultRegistry.Has(TransportName))
	assert.False(t, transport.CapabilitiesOf(TransportName).ReliableDelivery())
}

func TestBuildMarshalsToTopicURL(t *testing.T) {
	c := install(t, nil, nil)

	tr, err := Build(context.Background(), httpConfig, watermill.NopLogger{})
	require.NoError(t, err)
	assert.Same(t, c.pubSub, tr.Publisher)
	assert.Equal(t, ":8090", c.addr)

	req, err := c.pub.MarshalMessageFunc("orders", message.NewMessage("1", []byte("payload")))
	require.NoError(t, err)
	assert.Equal(t, "http://peer:8090/orders", req.URL.String())
	body, err := io.ReadAll(req.Body)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(body))
}

func TestBuildValidatesConfig(t *testing.T) {
	install(t, nil, nil)

	_, err := Build(context.Background(), &transporttest.Config{HTTPPublisherURL: "http://peer"}, watermill.NopLogger{})
	require.ErrorContains(t, err, "server address is required")
	_, err = Build(context.Background(), &transporttest.Config{HTTPServerAddress: ":1"}, watermill.NopLogger{})
	require.ErrorContains(t, err, "publisher URL is required")
}

func TestBuildClosesPublisherWhenSubscriberFails(t *testing.T) {
	boom := errors.New("boom")
	c := install(t, nil, boom)

	_, err := Build(context.Background(), httpConfig, watermill.NopLogger{})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, c.pubSub.Closed)
}

func TestTopicURL(t *testing.T) {
	assert.Equal(t, "http://a/b", TopicURL("http://a/", "/b"))
	assert.Equal(t, "http://a/b", TopicURL("http://a", "b"))
}
