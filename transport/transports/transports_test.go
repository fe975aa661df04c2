package transports

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/drblury/flowmgmt/transport"
)

func TestBuiltinsRegistered(t *testing.T) {
	assert.Equal(t, []string{
		"aws", "channel", "http", "kafka", "nats", "nats-jetstream", "rabbitmq",
	}, transport.DefaultRegistry.Names())
}
