// Package natsclient manages the connector's NATS connection for the
// downstream change stream, with optional JetStream publishing for durable
// delivery.
package natsclient

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/Joshuathomas18/drasi-mqtt-poc/errors"
)

// ConnectionStatus represents the state of the NATS connection
type ConnectionStatus int

// Possible connection statuses
const (
	StatusDisconnected ConnectionStatus = iota
	StatusConnecting
	StatusConnected
)

// String returns the string representation of ConnectionStatus
func (s ConnectionStatus) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// Client wraps a NATS connection used on the emission side of the
// connector. Reconnection is delegated to the NATS library itself; unlike
// the broker session, a flapping change-stream connection does not need
// supervisor-visible state transitions.
type Client struct {
	url    string
	status atomic.Value // stores ConnectionStatus
	logger *slog.Logger

	conn *nats.Conn
	js   jetstream.JetStream

	maxReconnects int
	reconnectWait time.Duration
	pingInterval  time.Duration
	timeout       time.Duration
	drainTimeout  time.Duration

	username string
	password string
	token    string

	clientName string

	mu     sync.RWMutex
	closed atomic.Bool
}

// NewClient creates a new NATS client with optional configuration
func NewClient(url string, opts ...ClientOption) (*Client, error) {
	c := &Client{
		url:           url,
		logger:        slog.Default(),
		maxReconnects: -1,
		reconnectWait: 2 * time.Second,
		pingInterval:  30 * time.Second,
		timeout:       5 * time.Second,
		drainTimeout:  30 * time.Second,
	}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, errors.WrapInvalid(err, "natsclient", "NewClient", "apply option")
		}
	}

	c.status.Store(StatusDisconnected)

	return c, nil
}

// URL returns the NATS server URL
func (c *Client) URL() string {
	return c.url
}

// Status returns the current connection status
func (c *Client) Status() ConnectionStatus {
	val := c.status.Load()
	if val == nil {
		return StatusDisconnected
	}
	return val.(ConnectionStatus)
}

// IsHealthy returns true if the connection is established and live.
func (c *Client) IsHealthy() bool {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	return conn != nil && conn.IsConnected()
}

func (c *Client) buildConnectionOptions() []nats.Option {
	opts := []nats.Option{
		nats.MaxReconnects(c.maxReconnects),
		nats.ReconnectWait(c.reconnectWait),
		nats.PingInterval(c.pingInterval),
		nats.Timeout(c.timeout),
		nats.DrainTimeout(c.drainTimeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			c.logger.Warn("change stream disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(conn *nats.Conn) {
			c.logger.Info("change stream reconnected", "url", conn.ConnectedUrl())
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			c.status.Store(StatusDisconnected)
		}),
	}

	if c.username != "" && c.password != "" {
		opts = append(opts, nats.UserInfo(c.username, c.password))
	}
	if c.token != "" {
		opts = append(opts, nats.Token(c.token))
	}
	if c.clientName != "" {
		opts = append(opts, nats.Name(c.clientName))
	}

	return opts
}

// Connect establishes the connection, bounded by ctx. JetStream is
// initialized eagerly so durable publishing needs no further setup.
func (c *Client) Connect(ctx context.Context) error {
	c.status.Store(StatusConnecting)

	connectDone := make(chan error, 1)
	go func() {
		conn, err := nats.Connect(c.url, c.buildConnectionOptions()...)
		if err != nil {
			connectDone <- err
			return
		}

		js, err := jetstream.New(conn)
		if err != nil {
			conn.Close()
			connectDone <- err
			return
		}

		c.mu.Lock()
		c.conn = conn
		c.js = js
		c.mu.Unlock()

		connectDone <- nil
	}()

	select {
	case err := <-connectDone:
		if err != nil {
			c.status.Store(StatusDisconnected)
			return errors.WrapTransient(err, "natsclient", "Connect", "establish connection")
		}
	case <-ctx.Done():
		c.status.Store(StatusDisconnected)
		return errors.WrapTransient(ctx.Err(), "natsclient", "Connect", "wait for connection")
	}

	c.status.Store(StatusConnected)
	c.logger.Info("connected to change stream", "url", c.url)
	return nil
}

// Publish publishes a message on a core NATS subject.
func (c *Client) Publish(_ context.Context, subject string, data []byte) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	if conn == nil || !conn.IsConnected() {
		return errors.WrapTransient(errors.ErrNotConnected, "natsclient", "Publish", "publish")
	}

	if err := conn.Publish(subject, data); err != nil {
		return errors.WrapTransient(err, "natsclient", "Publish",
			fmt.Sprintf("publish to %q", subject))
	}
	return nil
}

// EnsureStream creates or updates the given JetStream stream.
func (c *Client) EnsureStream(ctx context.Context, cfg jetstream.StreamConfig) error {
	c.mu.RLock()
	js := c.js
	c.mu.RUnlock()

	if js == nil {
		return errors.WrapTransient(errors.ErrNotConnected, "natsclient", "EnsureStream", "ensure stream")
	}

	if _, err := js.CreateOrUpdateStream(ctx, cfg); err != nil {
		return errors.WrapTransient(err, "natsclient", "EnsureStream",
			fmt.Sprintf("create stream %q", cfg.Name))
	}
	return nil
}

// PublishToStream publishes a message through JetStream, waiting for the
// server acknowledgement.
func (c *Client) PublishToStream(ctx context.Context, subject string, data []byte) error {
	c.mu.RLock()
	js := c.js
	conn := c.conn
	c.mu.RUnlock()

	if js == nil || conn == nil || !conn.IsConnected() {
		return errors.WrapTransient(errors.ErrNotConnected, "natsclient", "PublishToStream", "publish")
	}

	if _, err := js.Publish(ctx, subject, data); err != nil {
		return errors.WrapTransient(err, "natsclient", "PublishToStream",
			fmt.Sprintf("publish to %q", subject))
	}
	return nil
}

// RTT returns the round-trip time to the NATS server.
func (c *Client) RTT() (time.Duration, error) {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	if conn == nil || !conn.IsConnected() {
		return 0, errors.ErrNotConnected
	}
	return conn.RTT()
}

// Close drains and closes the connection. Safe to call more than once.
func (c *Client) Close(ctx context.Context) error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.js = nil
	c.mu.Unlock()

	// Clear credentials once the connection is gone.
	defer func() {
		c.username = ""
		c.password = ""
		c.token = ""
		c.status.Store(StatusDisconnected)
	}()

	if conn == nil {
		return nil
	}

	drainTimeout := c.drainTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining > 0 && remaining < drainTimeout {
			drainTimeout = remaining
		}
	}

	drainDone := make(chan error, 1)
	go func() {
		drainDone <- conn.Drain()
	}()

	select {
	case err := <-drainDone:
		if err != nil {
			conn.Close()
			return errors.Wrap(err, "natsclient", "Close", "drain connection")
		}
	case <-time.After(drainTimeout):
		conn.Close()
		return errors.WrapTransient(
			fmt.Errorf("drain timeout after %v", drainTimeout),
			"natsclient", "Close", "drain connection")
	case <-ctx.Done():
		conn.Close()
		return errors.Wrap(ctx.Err(), "natsclient", "Close", "drain connection")
	}

	return nil
}
