// Package mqttclient wraps an MQTT v3.1.1 client with channel-based event
// delivery and explicit reconnect control. Automatic reconnection is
// deliberately disabled: the owning component drives the full
// connect/subscribe cycle so session state stays observable.
package mqttclient

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/Joshuathomas18/drasi-mqtt-poc/errors"
)

// Client owns a single broker connection and delivers broker events over a
// channel. It is safe for concurrent use, but Connect and Disconnect are
// expected to be called from a single supervising goroutine.
type Client struct {
	host string
	port int

	keepAlive      time.Duration
	connectTimeout time.Duration
	clientIDPrefix string
	username       string
	password       string
	eventBuffer    int
	logger         *slog.Logger

	mu       sync.Mutex
	client   mqtt.Client
	clientID string

	events chan Event
	errs   chan error
	done   chan struct{}

	state     atomic.Int32
	closeOnce sync.Once
}

// New creates a client for the given broker address. No network activity
// happens until Connect.
func New(host string, port int, opts ...Option) *Client {
	c := &Client{
		host:           host,
		port:           port,
		keepAlive:      defaultKeepAlive,
		connectTimeout: defaultConnectTimeout,
		clientIDPrefix: defaultClientIDPrefix,
		eventBuffer:    defaultEventBuffer,
		logger:         slog.Default(),
		done:           make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.events = make(chan Event, c.eventBuffer)
	c.errs = make(chan error, 4)
	c.state.Store(int32(StateDisconnected))
	return c
}

// ClientID returns the identifier used for the current or most recent
// connection, or empty if Connect has never been called.
func (c *Client) ClientID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clientID
}

// State reports the current session state.
func (c *Client) State() SessionState {
	return SessionState(c.state.Load())
}

// Events returns the channel carrying broker events. The channel is never
// closed; callers select against their own shutdown signal.
func (c *Client) Events() <-chan Event {
	return c.events
}

// Errors returns the channel carrying asynchronous transport faults such as
// an unexpected connection loss.
func (c *Client) Errors() <-chan error {
	return c.errs
}

// Connect establishes the broker session. A fresh client id is generated for
// every attempt so a half-dead previous session cannot collide with the new
// one. The attempt is bounded by both ctx and the configured connect timeout.
func (c *Client) Connect(ctx context.Context) error {
	select {
	case <-c.done:
		return errors.WrapFatal(errors.ErrShuttingDown, "mqttclient", "Connect", "connect")
	default:
	}

	c.state.Store(int32(StateConnecting))

	// Drop any remnant of a previous session before building the new one.
	c.mu.Lock()
	if prev := c.client; prev != nil {
		c.client = nil
		c.mu.Unlock()
		prev.Disconnect(0)
	} else {
		c.mu.Unlock()
	}

	clientID := fmt.Sprintf("%s-%s", c.clientIDPrefix, uuid.NewString())
	opts := mqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("tcp://%s:%d", c.host, c.port)).
		SetClientID(clientID).
		SetKeepAlive(c.keepAlive).
		SetCleanSession(true).
		SetAutoReconnect(false).
		SetConnectTimeout(c.connectTimeout).
		SetConnectionLostHandler(c.onConnectionLost).
		SetOnConnectHandler(c.onConnect)
	if c.username != "" {
		opts.SetUsername(c.username)
		opts.SetPassword(c.password)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()

	select {
	case <-token.Done():
	case <-ctx.Done():
		client.Disconnect(0)
		c.state.Store(int32(StateDisconnected))
		return errors.WrapTransient(ctx.Err(), "mqttclient", "Connect", "wait for broker")
	}
	if err := token.Error(); err != nil {
		c.state.Store(int32(StateFaulted))
		return errors.WrapTransient(err, "mqttclient", "Connect",
			fmt.Sprintf("connect to %s:%d", c.host, c.port))
	}

	c.mu.Lock()
	c.client = client
	c.clientID = clientID
	c.mu.Unlock()

	c.logger.Debug("broker session established",
		"broker", fmt.Sprintf("%s:%d", c.host, c.port),
		"client_id", clientID)
	return nil
}

// Subscribe registers the topic filter on the current session. Delivered
// messages surface as MessageEvent values on Events.
func (c *Client) Subscribe(filter string, qos byte) error {
	if err := ValidateFilter(filter); err != nil {
		return err
	}

	c.mu.Lock()
	client := c.client
	c.mu.Unlock()
	if client == nil || !client.IsConnected() {
		return errors.WrapTransient(errors.ErrNotConnected, "mqttclient", "Subscribe", "subscribe")
	}

	token := client.Subscribe(filter, qos, c.onMessage)
	if !token.WaitTimeout(c.connectTimeout) {
		c.state.Store(int32(StateFaulted))
		return errors.WrapTransient(errors.ErrSubscribeFailed, "mqttclient", "Subscribe",
			fmt.Sprintf("subscribe to %q timed out", filter))
	}
	if err := token.Error(); err != nil {
		c.state.Store(int32(StateFaulted))
		return errors.WrapTransient(fmt.Errorf("%w: %w", errors.ErrSubscribeFailed, err),
			"mqttclient", "Subscribe", fmt.Sprintf("subscribe to %q", filter))
	}

	c.state.Store(int32(StateSubscribed))
	return nil
}

// Disconnect tears down the broker session, waiting up to timeout for
// in-flight work to drain. Safe to call repeatedly.
func (c *Client) Disconnect(timeout time.Duration) {
	c.closeOnce.Do(func() {
		close(c.done)
	})

	c.mu.Lock()
	client := c.client
	c.client = nil
	c.mu.Unlock()

	if client != nil && client.IsConnected() {
		client.Disconnect(uint(timeout.Milliseconds()))
	}
	c.state.Store(int32(StateDisconnected))
}

func (c *Client) onConnect(_ mqtt.Client) {
	c.deliver(ConnAckEvent{SessionPresent: false})
}

func (c *Client) onConnectionLost(_ mqtt.Client, err error) {
	c.state.Store(int32(StateFaulted))
	fault := errors.WrapTransient(
		fmt.Errorf("%w: %w", errors.ErrConnectionLost, err),
		"mqttclient", "session", "broker connection")
	select {
	case c.errs <- fault:
	default:
		// The supervisor is already handling an earlier fault.
		c.logger.Warn("dropping connection-lost notification", "error", err)
	}
}

func (c *Client) onMessage(_ mqtt.Client, msg mqtt.Message) {
	payload := make([]byte, len(msg.Payload()))
	copy(payload, msg.Payload())
	c.deliver(MessageEvent{
		Topic:      msg.Topic(),
		Payload:    payload,
		ReceivedAt: time.Now().UTC(),
	})
}

// deliver blocks until the event is accepted or the client is shut down, so
// a slow consumer applies backpressure to the broker via the paho receive
// path rather than dropping data.
func (c *Client) deliver(ev Event) {
	select {
	case c.events <- ev:
	case <-c.done:
	}
}
