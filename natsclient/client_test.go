package natsclient

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Joshuathomas18/drasi-mqtt-poc/errors"
)

func TestNewClientDefaults(t *testing.T) {
	c, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)

	assert.Equal(t, "nats://localhost:4222", c.URL())
	assert.Equal(t, StatusDisconnected, c.Status())
	assert.Equal(t, -1, c.maxReconnects)
	assert.Equal(t, 2*time.Second, c.reconnectWait)
	assert.Equal(t, 30*time.Second, c.drainTimeout)
	assert.False(t, c.IsHealthy())
}

func TestNewClientOptions(t *testing.T) {
	c, err := NewClient("nats://localhost:4222",
		WithMaxReconnects(3),
		WithReconnectWait(500*time.Millisecond),
		WithPingInterval(time.Minute),
		WithTimeout(time.Second),
		WithDrainTimeout(5*time.Second),
		WithCredentials("svc", "secret"),
		WithToken("tok"),
		WithName("drasi-mqtt-source"),
	)
	require.NoError(t, err)

	assert.Equal(t, 3, c.maxReconnects)
	assert.Equal(t, 500*time.Millisecond, c.reconnectWait)
	assert.Equal(t, time.Minute, c.pingInterval)
	assert.Equal(t, time.Second, c.timeout)
	assert.Equal(t, 5*time.Second, c.drainTimeout)
	assert.Equal(t, "svc", c.username)
	assert.Equal(t, "secret", c.password)
	assert.Equal(t, "tok", c.token)
	assert.Equal(t, "drasi-mqtt-source", c.clientName)
}

func TestPublishRequiresConnection(t *testing.T) {
	c, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)

	err = c.Publish(context.Background(), "drasi.changes", []byte(`{}`))
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrNotConnected)
	assert.True(t, errors.IsTransient(err))
}

func TestPublishToStreamRequiresConnection(t *testing.T) {
	c, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)

	err = c.PublishToStream(context.Background(), "drasi.changes", []byte(`{}`))
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrNotConnected)
}

func TestRTTRequiresConnection(t *testing.T) {
	c, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)

	_, err = c.RTT()
	assert.ErrorIs(t, err, errors.ErrNotConnected)
}

func TestCloseWithoutConnect(t *testing.T) {
	c, err := NewClient("nats://localhost:4222", WithCredentials("svc", "secret"))
	require.NoError(t, err)

	require.NoError(t, c.Close(context.Background()))
	// Idempotent, and credentials are wiped.
	require.NoError(t, c.Close(context.Background()))
	assert.Empty(t, c.username)
	assert.Empty(t, c.password)
	assert.Equal(t, StatusDisconnected, c.Status())
}

func TestConnectionStatusString(t *testing.T) {
	assert.Equal(t, "disconnected", StatusDisconnected.String())
	assert.Equal(t, "connecting", StatusConnecting.String())
	assert.Equal(t, "connected", StatusConnected.String())
	assert.Equal(t, "unknown", ConnectionStatus(42).String())
}
