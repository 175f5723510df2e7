package mqtt

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Joshuathomas18/drasi-mqtt-poc/metric"
)

// Metrics holds Prometheus metrics for the MQTT source component
type Metrics struct {
	messagesReceived prometheus.Counter
	bytesReceived    prometheus.Counter
	recordsEmitted   prometheus.Counter
	decodeFailures   prometheus.Counter
	emitFailures     prometheus.Counter
	transportFaults  prometheus.Counter
	reconnects       prometheus.Counter
	sessionState     prometheus.Gauge
	emitLatency      prometheus.Histogram
	lastActivity     prometheus.Gauge
}

// newMetrics creates and registers MQTT source metrics. Returns nil when no
// registry is provided, and callers treat nil metrics as disabled.
func newMetrics(registry *metric.MetricsRegistry) *Metrics {
	if registry == nil {
		return nil
	}

	metrics := &Metrics{
		messagesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "drasi",
			Subsystem: "mqtt_source",
			Name:      "messages_received_total",
			Help:      "Total MQTT messages received from the broker",
		}),
		bytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "drasi",
			Subsystem: "mqtt_source",
			Name:      "bytes_received_total",
			Help:      "Total payload bytes received from the broker",
		}),
		recordsEmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "drasi",
			Subsystem: "mqtt_source",
			Name:      "records_emitted_total",
			Help:      "Change records delivered to the downstream sink",
		}),
		decodeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "drasi",
			Subsystem: "mqtt_source",
			Name:      "decode_failures_total",
			Help:      "Payloads rejected because they were not valid JSON",
		}),
		emitFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "drasi",
			Subsystem: "mqtt_source",
			Name:      "emit_failures_total",
			Help:      "Records that could not be delivered to the sink",
		}),
		transportFaults: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "drasi",
			Subsystem: "mqtt_source",
			Name:      "transport_faults_total",
			Help:      "Broker connection or subscription faults",
		}),
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "drasi",
			Subsystem: "mqtt_source",
			Name:      "reconnects_total",
			Help:      "Successful session establishments, including the first",
		}),
		sessionState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "drasi",
			Subsystem: "mqtt_source",
			Name:      "session_state",
			Help:      "Current session state (0=disconnected 1=connecting 2=subscribed 3=faulted)",
		}),
		emitLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "drasi",
			Subsystem: "mqtt_source",
			Name:      "emit_duration_seconds",
			Help:      "Time from message receipt to sink acknowledgement",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		lastActivity: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "drasi",
			Subsystem: "mqtt_source",
			Name:      "last_activity_timestamp",
			Help:      "Unix timestamp of the last received message",
		}),
	}

	const serviceName = "mqtt_source"
	registry.RegisterCounter(serviceName, "messages_received", metrics.messagesReceived)
	registry.RegisterCounter(serviceName, "bytes_received", metrics.bytesReceived)
	registry.RegisterCounter(serviceName, "records_emitted", metrics.recordsEmitted)
	registry.RegisterCounter(serviceName, "decode_failures", metrics.decodeFailures)
	registry.RegisterCounter(serviceName, "emit_failures", metrics.emitFailures)
	registry.RegisterCounter(serviceName, "transport_faults", metrics.transportFaults)
	registry.RegisterCounter(serviceName, "reconnects", metrics.reconnects)
	registry.RegisterGauge(serviceName, "session_state", metrics.sessionState)
	registry.RegisterHistogram(serviceName, "emit_latency", metrics.emitLatency)
	registry.RegisterGauge(serviceName, "last_activity", metrics.lastActivity)

	return metrics
}
