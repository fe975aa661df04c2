package metadata

import (
	"testing"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
)

func TestSorted(t *testing.T) {
	md := message.Metadata{"b": "2", "a": "1", "c": "3"}
	assert.Equal(t, []Header{{"a", "1"}, {"b", "2"}, {"c", "3"}}, Sorted(md))
	assert.Empty(t, Sorted(nil))
}

func TestCloneIsIndependent(t *testing.T) {
	md := message.Metadata{"k": "v"}
	cloned := Clone(md)
	cloned["k"] = "changed"
	assert.Equal(t, "v", md["k"])

	assert.NotNil(t, Clone(nil))
}

func TestRedeliveries(t *testing.T) {
	msg := message.NewMessage("1", nil)
	assert.Equal(t, 0, Redeliveries(msg))
	assert.Equal(t, 1, IncRedeliveries(msg))
	assert.Equal(t, 2, IncRedeliveries(msg))
	assert.Equal(t, "2", msg.Metadata.Get(RedeliveryCounter))

	msg.Metadata.Set(RedeliveryCounter, "garbage")
	assert.Equal(t, 0, Redeliveries(msg))
}
