package mqttclient

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Joshuathomas18/drasi-mqtt-poc/errors"
)

func TestValidateFilter(t *testing.T) {
	tests := []struct {
		name    string
		filter  string
		wantErr bool
	}{
		{name: "plain topic", filter: "lfx/drasi/sensors/temp-01"},
		{name: "trailing multi-level wildcard", filter: "lfx/drasi/sensors/#"},
		{name: "bare multi-level wildcard", filter: "#"},
		{name: "single-level wildcard segment", filter: "lfx/+/sensors/#"},
		{name: "empty filter", filter: "", wantErr: true},
		{name: "hash not final", filter: "lfx/#/sensors", wantErr: true},
		{name: "hash inside segment", filter: "lfx/drasi/sens#", wantErr: true},
		{name: "plus inside segment", filter: "lfx/dra+si/sensors", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFilter(tt.filter)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, errors.ErrInvalidPattern)
				assert.True(t, errors.IsFatal(err))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestNewDefaults(t *testing.T) {
	c := New("localhost", 1883)

	assert.Equal(t, defaultKeepAlive, c.keepAlive)
	assert.Equal(t, defaultConnectTimeout, c.connectTimeout)
	assert.Equal(t, defaultClientIDPrefix, c.clientIDPrefix)
	assert.Equal(t, defaultEventBuffer, cap(c.events))
	assert.Equal(t, StateDisconnected, c.State())
	assert.Empty(t, c.ClientID())
}

func TestNewOptions(t *testing.T) {
	c := New("broker.example", 8883,
		WithKeepAlive(30*time.Second),
		WithConnectTimeout(2*time.Second),
		WithClientIDPrefix("edge-probe"),
		WithCredentials("sensor", "hunter2"),
		WithEventBuffer(8),
	)

	assert.Equal(t, 30*time.Second, c.keepAlive)
	assert.Equal(t, 2*time.Second, c.connectTimeout)
	assert.Equal(t, "edge-probe", c.clientIDPrefix)
	assert.Equal(t, "sensor", c.username)
	assert.Equal(t, "hunter2", c.password)
	assert.Equal(t, 8, cap(c.events))
}

func TestOptionsIgnoreInvalidValues(t *testing.T) {
	c := New("localhost", 1883,
		WithKeepAlive(0),
		WithConnectTimeout(-time.Second),
		WithClientIDPrefix(""),
		WithEventBuffer(0),
		WithLogger(nil),
	)

	assert.Equal(t, defaultKeepAlive, c.keepAlive)
	assert.Equal(t, defaultConnectTimeout, c.connectTimeout)
	assert.Equal(t, defaultClientIDPrefix, c.clientIDPrefix)
	assert.Equal(t, defaultEventBuffer, cap(c.events))
	assert.NotNil(t, c.logger)
}

func TestSubscribeRequiresConnection(t *testing.T) {
	c := New("localhost", 1883)

	err := c.Subscribe("lfx/drasi/sensors/#", 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrNotConnected)
	assert.True(t, errors.IsTransient(err))
}

func TestSubscribeRejectsInvalidFilter(t *testing.T) {
	c := New("localhost", 1883)

	err := c.Subscribe("lfx/#/oops", 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvalidPattern)
}

func TestDeliverReleasesOnShutdown(t *testing.T) {
	c := New("localhost", 1883, WithEventBuffer(1))

	// Fill the buffer so the next deliver would block.
	c.deliver(ConnAckEvent{})

	released := make(chan struct{})
	go func() {
		c.deliver(MessageEvent{Topic: "lfx/drasi/sensors/temp-01"})
		close(released)
	}()

	c.Disconnect(0)

	select {
	case <-released:
	case <-time.After(time.Second):
		t.Fatal("deliver did not unblock after Disconnect")
	}
}

func TestConnectionLostSurfacesTransientFault(t *testing.T) {
	c := New("localhost", 1883)

	c.onConnectionLost(nil, assert.AnError)

	assert.Equal(t, StateFaulted, c.State())
	select {
	case err := <-c.Errors():
		assert.ErrorIs(t, err, errors.ErrConnectionLost)
		assert.True(t, errors.IsTransient(err))
	default:
		t.Fatal("expected fault on error channel")
	}
}

func TestConnectionLostDropsWhenFaultPending(t *testing.T) {
	c := New("localhost", 1883)

	for i := 0; i < cap(c.errs)+2; i++ {
		c.onConnectionLost(nil, assert.AnError)
	}

	// Channel holds only its capacity; extra faults were dropped, not queued.
	assert.Len(t, c.errs, cap(c.errs))
}

func TestMessageEventCopiesPayload(t *testing.T) {
	c := New("localhost", 1883)

	raw := []byte(`{"temperature": 21.5}`)
	c.onMessage(nil, fakeMessage{topic: "lfx/drasi/sensors/temp-01", payload: raw})
	raw[0] = 'X'

	ev := <-c.Events()
	msg, ok := ev.(MessageEvent)
	require.True(t, ok)
	assert.Equal(t, "lfx/drasi/sensors/temp-01", msg.Topic)
	assert.Equal(t, []byte(`{"temperature": 21.5}`), msg.Payload)
	assert.False(t, msg.ReceivedAt.IsZero())
}

func TestDisconnectIdempotent(t *testing.T) {
	c := New("localhost", 1883)

	c.Disconnect(0)
	c.Disconnect(0)

	assert.Equal(t, StateDisconnected, c.State())
}

func TestSessionStateString(t *testing.T) {
	assert.Equal(t, "disconnected", StateDisconnected.String())
	assert.Equal(t, "connecting", StateConnecting.String())
	assert.Equal(t, "subscribed", StateSubscribed.String())
	assert.Equal(t, "faulted", StateFaulted.String())
	assert.Equal(t, "unknown", SessionState(99).String())
}

// fakeMessage implements the subset of mqtt.Message the handler touches.
type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 1 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 0 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}
