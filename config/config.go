// Package config loads and validates the connector configuration from JSON
// files and environment overrides.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Joshuathomas18/drasi-mqtt-poc/errors"
	"github.com/Joshuathomas18/drasi-mqtt-poc/mqttclient"
)

// Config represents the complete connector configuration.
type Config struct {
	Broker  BrokerConfig  `json:"broker"`
	NATS    NATSConfig    `json:"nats"`
	Metrics MetricsConfig `json:"metrics"`
	Health  HealthConfig  `json:"health"`
}

// BrokerConfig defines the MQTT broker session settings.
type BrokerConfig struct {
	Host           string        `json:"host"`
	Port           int           `json:"port"`
	TopicPattern   string        `json:"topic_pattern"`
	QoS            byte          `json:"qos"`
	KeepAlive      time.Duration `json:"keep_alive"`
	ConnectTimeout time.Duration `json:"connect_timeout"`
	ClientIDPrefix string        `json:"client_id_prefix"`
	Username       string        `json:"username,omitempty"`
	Password       string        `json:"password,omitempty"`
}

// NATSConfig defines the downstream change-stream connection. When Enabled
// is false the connector logs change records instead of publishing them.
type NATSConfig struct {
	Enabled   bool     `json:"enabled"`
	URLs      []string `json:"urls,omitempty"`
	Subject   string   `json:"subject,omitempty"`
	JetStream bool     `json:"jetstream"`
	Stream    string   `json:"stream,omitempty"`
	Username  string   `json:"username,omitempty"`
	Password  string   `json:"password,omitempty"`
	Token     string   `json:"token,omitempty"`
}

// MetricsConfig defines the Prometheus endpoint settings.
type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Port    int    `json:"port"`
	Path    string `json:"path"`
}

// HealthConfig defines the health endpoint settings.
type HealthConfig struct {
	Enabled bool `json:"enabled"`
	Port    int  `json:"port"`
}

// Default returns the configuration used when no file or overrides are
// supplied: a local broker, the sensor topic subtree, and log-only output.
func Default() *Config {
	return &Config{
		Broker: BrokerConfig{
			Host:           "localhost",
			Port:           1883,
			TopicPattern:   "lfx/drasi/sensors/#",
			QoS:            1,
			KeepAlive:      5 * time.Second,
			ConnectTimeout: 10 * time.Second,
			ClientIDPrefix: "drasi-source",
		},
		NATS: NATSConfig{
			Enabled: false,
			URLs:    []string{"nats://localhost:4222"},
			Subject: "drasi.changes",
			Stream:  "DRASI_CHANGES",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
			Path:    "/metrics",
		},
		Health: HealthConfig{
			Enabled: true,
			Port:    9091,
		},
	}
}

// Validate checks the configuration. All failures are fatal: the connector
// refuses to start on a bad config rather than limping along.
func (c *Config) Validate() error {
	if c.Broker.Host == "" {
		return errors.WrapFatal(errors.ErrInvalidConfig, "config", "Validate", "broker.host is required")
	}
	if c.Broker.Port < 1 || c.Broker.Port > 65535 {
		return errors.WrapFatal(
			fmt.Errorf("%w: broker.port %d out of range", errors.ErrInvalidConfig, c.Broker.Port),
			"config", "Validate", "broker.port")
	}
	if err := mqttclient.ValidateFilter(c.Broker.TopicPattern); err != nil {
		return err
	}
	if c.Broker.QoS > 2 {
		return errors.WrapFatal(
			fmt.Errorf("%w: broker.qos must be 0, 1, or 2", errors.ErrInvalidConfig),
			"config", "Validate", "broker.qos")
	}
	if c.Broker.KeepAlive <= 0 {
		return errors.WrapFatal(
			fmt.Errorf("%w: broker.keep_alive must be positive", errors.ErrInvalidConfig),
			"config", "Validate", "broker.keep_alive")
	}

	if c.NATS.Enabled {
		if len(c.NATS.URLs) == 0 {
			return errors.WrapFatal(
				fmt.Errorf("%w: nats.urls required when nats is enabled", errors.ErrInvalidConfig),
				"config", "Validate", "nats.urls")
		}
		if c.NATS.Subject == "" {
			return errors.WrapFatal(
				fmt.Errorf("%w: nats.subject required when nats is enabled", errors.ErrInvalidConfig),
				"config", "Validate", "nats.subject")
		}
		if c.NATS.JetStream && c.NATS.Stream == "" {
			return errors.WrapFatal(
				fmt.Errorf("%w: nats.stream required when jetstream is enabled", errors.ErrInvalidConfig),
				"config", "Validate", "nats.stream")
		}
	}

	if c.Metrics.Enabled && (c.Metrics.Port < 1 || c.Metrics.Port > 65535) {
		return errors.WrapFatal(
			fmt.Errorf("%w: metrics.port %d out of range", errors.ErrInvalidConfig, c.Metrics.Port),
			"config", "Validate", "metrics.port")
	}
	if c.Health.Enabled && (c.Health.Port < 1 || c.Health.Port > 65535) {
		return errors.WrapFatal(
			fmt.Errorf("%w: health.port %d out of range", errors.ErrInvalidConfig, c.Health.Port),
			"config", "Validate", "health.port")
	}

	return nil
}

// URL returns the broker address in host:port form.
func (b BrokerConfig) URL() string {
	return fmt.Sprintf("%s:%d", b.Host, b.Port)
}

// UnmarshalJSON accepts durations either as Go duration strings ("5s") or
// as raw nanosecond numbers.
func (b *BrokerConfig) UnmarshalJSON(data []byte) error {
	type Alias BrokerConfig
	aux := &struct {
		KeepAlive      any `json:"keep_alive"`
		ConnectTimeout any `json:"connect_timeout"`
		*Alias
	}{
		Alias: (*Alias)(b),
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	keepAlive, err := parseDuration(aux.KeepAlive, b.KeepAlive)
	if err != nil {
		return fmt.Errorf("keep_alive: %w", err)
	}
	b.KeepAlive = keepAlive

	connectTimeout, err := parseDuration(aux.ConnectTimeout, b.ConnectTimeout)
	if err != nil {
		return fmt.Errorf("connect_timeout: %w", err)
	}
	b.ConnectTimeout = connectTimeout

	return nil
}

func parseDuration(v any, fallback time.Duration) (time.Duration, error) {
	switch d := v.(type) {
	case nil:
		return fallback, nil
	case string:
		return time.ParseDuration(d)
	case float64:
		return time.Duration(d), nil
	default:
		return 0, fmt.Errorf("unsupported duration value %v", v)
	}
}

// String returns a JSON representation with credentials masked.
func (c *Config) String() string {
	masked := *c
	if masked.Broker.Password != "" {
		masked.Broker.Password = "****"
	}
	if masked.NATS.Password != "" {
		masked.NATS.Password = "****"
	}
	if masked.NATS.Token != "" {
		masked.NATS.Token = "****"
	}
	data, _ := json.MarshalIndent(&masked, "", "  ")
	return string(data)
}

// Loader handles configuration loading with file and environment layers.
type Loader struct {
	envPrefix string
}

// NewLoader creates a loader using the DRASI_SOURCE environment prefix.
func NewLoader() *Loader {
	return &Loader{envPrefix: "DRASI_SOURCE"}
}

// LoadFile loads configuration from a JSON file on top of the defaults,
// then applies environment overrides and validates. An empty path skips the
// file layer.
func (l *Loader) LoadFile(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path) // #nosec G304 -- operator-supplied config path
		if err != nil {
			return nil, errors.WrapFatal(err, "config", "LoadFile", fmt.Sprintf("read %s", path))
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, errors.WrapFatal(err, "config", "LoadFile", fmt.Sprintf("parse %s", path))
		}
	}

	l.applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (l *Loader) applyEnvOverrides(cfg *Config) {
	if val := os.Getenv(l.envPrefix + "_BROKER_HOST"); val != "" {
		cfg.Broker.Host = val
	}
	if val := os.Getenv(l.envPrefix + "_BROKER_PORT"); val != "" {
		if port, err := strconv.Atoi(val); err == nil {
			cfg.Broker.Port = port
		}
	}
	if val := os.Getenv(l.envPrefix + "_BROKER_TOPIC"); val != "" {
		cfg.Broker.TopicPattern = val
	}
	if val := os.Getenv(l.envPrefix + "_BROKER_USERNAME"); val != "" {
		cfg.Broker.Username = val
	}
	if val := os.Getenv(l.envPrefix + "_BROKER_PASSWORD"); val != "" {
		cfg.Broker.Password = val
	}
	if val := os.Getenv(l.envPrefix + "_NATS_URLS"); val != "" {
		cfg.NATS.URLs = strings.Split(val, ",")
		cfg.NATS.Enabled = true
	}
	if val := os.Getenv(l.envPrefix + "_NATS_SUBJECT"); val != "" {
		cfg.NATS.Subject = val
	}
	if val := os.Getenv(l.envPrefix + "_NATS_TOKEN"); val != "" {
		cfg.NATS.Token = val
	}
}
