// Package drasimqttpoc provides an MQTT source connector for graph change
// processing. The connector subscribes to a broker topic subtree, normalizes
// every delivered message into a graph change record, and emits the records
// to a downstream change-processing pipeline.
//
// # Architecture
//
// One supervised pipeline runs per process:
//
//	┌─────────────────────────────────────┐
//	│        MQTT Broker Session          │  subscribe, deliver,
//	│        (mqttclient)                 │  detect faults
//	└──────────────────┬──────────────────┘
//	                   │ events
//	┌──────────────────▼──────────────────┐
//	│        Source Supervisor            │  connect/subscribe/consume
//	│        (input/mqtt)                 │  loop with backoff
//	└──────────────────┬──────────────────┘
//	                   │ topic + payload
//	┌──────────────────▼──────────────────┐
//	│        Router + Mapper              │  topic → identity/labels,
//	│        (router, mapper)             │  payload → properties
//	└──────────────────┬──────────────────┘
//	                   │ change records
//	┌──────────────────▼──────────────────┐
//	│        Change Stream Sink           │  NATS / JetStream publish,
//	│        (output/changestream)        │  or log-only
//	└─────────────────────────────────────┘
//
// The supervisor owns the session state machine. Transient faults tear the
// session down and rebuild it with exponential backoff; only configuration
// errors stop the connector.
//
// # Mapping Model
//
// Every MQTT message becomes one change record:
//
//   - the final topic segment becomes the record id
//   - the topic's configured labels classify the entity
//   - the JSON payload becomes the record's properties, untouched
//
// Payloads that are not valid JSON are skipped with a warning; the session
// stays up. Message order within the session is preserved end to end.
package drasimqttpoc
