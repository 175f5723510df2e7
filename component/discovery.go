// Package component defines the Discoverable interface and lifecycle
// contracts shared by the connector's components.
package component

import (
	"time"
)

// Discoverable defines the interface for components that can be discovered
// and inspected by the management layer.
//
// Components implementing this interface can be:
// - Input components: accept external data (the MQTT source)
// - Output components: deliver records downstream (the change stream sink)
type Discoverable interface {
	// Meta returns basic component information
	Meta() Metadata

	// Health returns current health status
	Health() HealthStatus

	// DataFlow returns current data flow metrics
	DataFlow() FlowMetrics
}

// Metadata describes what a component is
type Metadata struct {
	Name        string `json:"name"`
	Type        string `json:"type"` // "input", "output"
	Description string `json:"description"`
	Version     string `json:"version"`
}

// HealthStatus describes the current health state of a component
type HealthStatus struct {
	Healthy    bool          `json:"healthy"`
	LastCheck  time.Time     `json:"last_check"`
	ErrorCount int           `json:"error_count"`
	LastError  string        `json:"last_error,omitempty"`
	Uptime     time.Duration `json:"uptime"`
}

// FlowMetrics describes the current data flow through a component
type FlowMetrics struct {
	MessagesPerSecond float64   `json:"messages_per_second"`
	BytesPerSecond    float64   `json:"bytes_per_second"`
	ErrorRate         float64   `json:"error_rate"`
	LastActivity      time.Time `json:"last_activity"`
}
