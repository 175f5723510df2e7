package health

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Joshuathomas18/drasi-mqtt-poc/component"
)

func TestStatusPredicates(t *testing.T) {
	assert.True(t, NewHealthy("c", "ok").IsHealthy())
	assert.True(t, NewUnhealthy("c", "bad").IsUnhealthy())
	assert.True(t, NewDegraded("c", "meh").IsDegraded())
	assert.False(t, NewDegraded("c", "meh").IsHealthy())
}

func TestAggregateEmpty(t *testing.T) {
	status := Aggregate("system", nil)
	assert.True(t, status.IsHealthy())
}

func TestAggregateRules(t *testing.T) {
	healthy := NewHealthy("a", "ok")
	degraded := NewDegraded("b", "slow")
	unhealthy := NewUnhealthy("c", "down")

	tests := []struct {
		name string
		subs []Status
		want string
	}{
		{"all healthy", []Status{healthy, healthy}, "healthy"},
		{"one degraded", []Status{healthy, degraded}, "degraded"},
		{"one unhealthy", []Status{healthy, degraded, unhealthy}, "unhealthy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status := Aggregate("system", tt.subs)
			assert.Equal(t, tt.want, status.Status)
			assert.Len(t, status.SubStatuses, len(tt.subs))
		})
	}
}

func TestSanitizeErrorMessage(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		notWant string
	}{
		{"broker url", "dial tcp://broker.example.com:1883 refused", "broker.example.com"},
		{"ip address", "connect 192.168.1.50 refused", "192.168.1.50"},
		{"credentials", "auth failed password=hunter2", "hunter2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := sanitizeErrorMessage(tt.in)
			assert.NotContains(t, out, tt.notWant)
		})
	}
}

func TestFromComponentHealth(t *testing.T) {
	ch := component.HealthStatus{
		Healthy:    false,
		LastCheck:  time.Now(),
		ErrorCount: 3,
		LastError:  "connect mqtt://10.0.0.1:1883 refused",
		Uptime:     time.Minute,
	}

	status := FromComponentHealth("mqtt-input", ch)

	assert.Equal(t, "mqtt-input", status.Component)
	assert.True(t, status.IsUnhealthy())
	assert.NotContains(t, status.Message, "10.0.0.1")
	require.NotNil(t, status.Metrics)
	assert.Equal(t, 3, status.Metrics.ErrorCount)
	assert.Equal(t, time.Minute, status.Metrics.Uptime)
}

type stubComponent struct {
	healthy bool
}

func (s *stubComponent) Meta() component.Metadata {
	return component.Metadata{Name: "stub", Type: "input"}
}

func (s *stubComponent) Health() component.HealthStatus {
	return component.HealthStatus{Healthy: s.healthy, LastCheck: time.Now()}
}

func (s *stubComponent) DataFlow() component.FlowMetrics {
	return component.FlowMetrics{}
}

func TestHandlerServeHTTP(t *testing.T) {
	handler := NewHandler("drasi-mqtt-source")
	stub := &stubComponent{healthy: true}
	handler.Register("mqtt-input", stub)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)

	var status Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.True(t, status.Healthy)
	assert.Len(t, status.SubStatuses, 1)

	// Flip to unhealthy: status code follows
	stub.healthy = false
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandlerRejectsNonGet(t *testing.T) {
	handler := NewHandler("drasi-mqtt-source")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/healthz", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
