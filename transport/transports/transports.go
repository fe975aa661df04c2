// Package transports registers every built-in broker with the default
// transport registry.
package transports

import (
	_ "github.com/drblury/flowmgmt/transport/aws"
	_ "github.com/drblury/flowmgmt/transport/channel"
	_ "github.com/drblury/flowmgmt/transport/http"
	_ "github.com/drblury/flowmgmt/transport/kafka"
	_ "github.com/drblury/flowmgmt/transport/nats"
	_ "github.com/drblury/flowmgmt/transport/rabbitmq"
)
