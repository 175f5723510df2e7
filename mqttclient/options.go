package mqttclient

import (
	"log/slog"
	"time"
)

const (
	defaultKeepAlive      = 5 * time.Second
	defaultConnectTimeout = 10 * time.Second
	defaultClientIDPrefix = "drasi-source"
	defaultEventBuffer    = 256
)

// Option customizes a Client at construction time.
type Option func(*Client)

// WithKeepAlive sets the MQTT keep-alive interval.
func WithKeepAlive(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.keepAlive = d
		}
	}
}

// WithConnectTimeout bounds how long a single connect attempt may take.
func WithConnectTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.connectTimeout = d
		}
	}
}

// WithClientIDPrefix overrides the prefix of the generated client id. The
// full id is always made unique with a random suffix so concurrent
// connector instances do not evict each other's broker sessions.
func WithClientIDPrefix(prefix string) Option {
	return func(c *Client) {
		if prefix != "" {
			c.clientIDPrefix = prefix
		}
	}
}

// WithCredentials sets the username and password sent in the CONNECT packet.
func WithCredentials(username, password string) Option {
	return func(c *Client) {
		c.username = username
		c.password = password
	}
}

// WithEventBuffer sets the capacity of the delivered-event channel.
func WithEventBuffer(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.eventBuffer = n
		}
	}
}

// WithLogger attaches a logger for connection-level diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}
