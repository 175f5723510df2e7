// Package health provides health monitoring for the connector's components.
package health

import (
	"regexp"
	"time"

	"github.com/Joshuathomas18/drasi-mqtt-poc/component"
)

// Pre-compiled regexes for error message sanitization
var (
	urlRegex        = regexp.MustCompile(`(?:https?|mqtts?|tcp|ssl|nats|wss?)://[^\s]+`)
	ipAddrRegex     = regexp.MustCompile(`\b\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}\b`)
	portRegex       = regexp.MustCompile(`:\d{2,5}\b`)
	credentialRegex = regexp.MustCompile(`(?i)(password|token|key|secret|credential)[^a-zA-Z]*[:=][^,\s}]+`)
)

// Status represents the health state of a component or system
type Status struct {
	Component   string    `json:"component"`
	Healthy     bool      `json:"healthy"`
	Status      string    `json:"status"` // "healthy", "unhealthy", "degraded"
	Message     string    `json:"message"`
	Timestamp   time.Time `json:"timestamp"`
	SubStatuses []Status  `json:"sub_statuses,omitempty"`
	Metrics     *Metrics  `json:"metrics,omitempty"`
}

// Metrics contains health-related metrics
type Metrics struct {
	Uptime       time.Duration `json:"uptime"`
	ErrorCount   int           `json:"error_count"`
	LastActivity time.Time     `json:"last_activity,omitempty"`
}

// IsHealthy returns true if the status is healthy
func (s Status) IsHealthy() bool {
	return s.Status == "healthy"
}

// IsDegraded returns true if the status is degraded
func (s Status) IsDegraded() bool {
	return s.Status == "degraded"
}

// IsUnhealthy returns true if the status is unhealthy
func (s Status) IsUnhealthy() bool {
	return s.Status == "unhealthy"
}

// sanitizeErrorMessage removes broker addresses and credentials from error
// messages before they appear on the health endpoint.
func sanitizeErrorMessage(err string) string {
	if err == "" {
		return ""
	}

	sanitized := urlRegex.ReplaceAllString(err, "[URL]")
	sanitized = ipAddrRegex.ReplaceAllString(sanitized, "[IP]")
	sanitized = portRegex.ReplaceAllString(sanitized, "[PORT]")
	sanitized = credentialRegex.ReplaceAllString(sanitized, "[REDACTED]")

	return sanitized
}

// FromComponentHealth converts a component.HealthStatus to a health.Status
func FromComponentHealth(name string, ch component.HealthStatus) Status {
	status := "unhealthy"
	if ch.Healthy {
		status = "healthy"
	}

	message := "Component healthy"
	if ch.LastError != "" {
		message = sanitizeErrorMessage(ch.LastError)
	}

	return Status{
		Component: name,
		Healthy:   ch.Healthy,
		Status:    status,
		Message:   message,
		Timestamp: time.Now(),
		Metrics: &Metrics{
			Uptime:       ch.Uptime,
			ErrorCount:   ch.ErrorCount,
			LastActivity: ch.LastCheck,
		},
	}
}
