package logging

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/bytedance/sonic"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		entry := map[string]any{}
		require.NoError(t, sonic.UnmarshalString(line, &entry), line)
		out = append(out, entry)
	}
	return out
}

func TestSlogServiceLoggerMapsLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewSlogServiceLogger(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

	logger.With(LogFields{"management_name": "camel-1"}).Info("Context registered for management", LogFields{"routes": 2})
	logger.Debug("Context unregistered", nil)
	logger.Error("Cannot register managed object", errors.New("name clash"), LogFields{"kind": "routes"})

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 3)
	assert.Equal(t, "INFO", entries[0]["level"])
	assert.Equal(t, "camel-1", entries[0]["management_name"])
	assert.Equal(t, float64(2), entries[0]["routes"])
	assert.Equal(t, "DEBUG", entries[1]["level"])
	assert.Equal(t, "ERROR", entries[2]["level"])
	assert.Equal(t, "name clash", entries[2]["error"])
}

func TestSlogTraceIsBelowDebug(t *testing.T) {
	var buf bytes.Buffer
	logger := NewSlogServiceLogger(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

	logger.Trace("Registered managed object", LogFields{"name": "flowmgmt:context=camel-1,type=routes,name=\"foo\""})
	assert.Empty(t, buf.String())
}

// Transports and the engine receive the service logger through the
// watermill bridge; fields added on either side must reach the backend.
func TestWatermillBridgeKeepsFields(t *testing.T) {
	var buf bytes.Buffer
	service := NewZerologServiceLogger(zerolog.New(&buf).Level(zerolog.TraceLevel))
	adapter := NewWatermillAdapter(service.With(LogFields{"transport": "nats"}))

	adapter.With(watermill.LogFields{"topic": "orders"}).Info("Subscribing", watermill.LogFields{"queue_group": "flowmgmt"})
	adapter.Error("Publish failed", errors.New("closed"), nil)
	adapter.Trace("Message acked", nil)

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 3)
	assert.Equal(t, "nats", entries[0]["transport"])
	assert.Equal(t, "orders", entries[0]["topic"])
	assert.Equal(t, "flowmgmt", entries[0]["queue_group"])
	assert.Equal(t, "error", entries[1]["level"])
	assert.Equal(t, "closed", entries[1]["error"])
	assert.NotContains(t, entries[1], "topic")
	assert.Equal(t, "trace", entries[2]["level"])
}

func TestWatermillServiceLoggerRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	inner := NewZerologServiceLogger(zerolog.New(&buf))
	logger := NewWatermillServiceLogger(NewWatermillAdapter(inner))

	logger.With(LogFields{"route": "foo"}).Info("Route started", nil)

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "foo", entries[0]["route"])
	assert.Equal(t, "Route started", entries[0]["message"])
}

func TestConstructorsRejectNil(t *testing.T) {
	assert.Panics(t, func() { NewSlogServiceLogger(nil) })
	assert.Panics(t, func() { NewWatermillServiceLogger(nil) })
	assert.Panics(t, func() { NewWatermillAdapter(nil) })
}

func TestEmptyFieldsAreNil(t *testing.T) {
	assert.Nil(t, toWatermillFields(LogFields{}))
	assert.Nil(t, fromWatermillFields(nil))
	assert.Equal(t, LogFields{"a": 1}, fromWatermillFields(toWatermillFields(LogFields{"a": 1})))
}

func TestNopServiceLogger(t *testing.T) {
	logger := NewNopServiceLogger()
	assert.NotPanics(t, func() {
		logger.With(LogFields{"context": "camel-1"}).Info("ignored", nil)
		logger.Error("ignored", errors.New("boom"), nil)
		NewWatermillAdapter(logger).Debug("ignored", nil)
	})
}
