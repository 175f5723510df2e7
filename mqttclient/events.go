package mqttclient

import "time"

// Event is the tagged union of transport events surfaced by a session.
// The receive loop dispatches with a type switch; unknown kinds fall through
// to a silent default arm so protocol-level traffic never pollutes logs.
type Event interface {
	eventKind() string
}

// MessageEvent carries one inbound publish. The payload is copied off the
// transport buffer before delivery, so receivers may retain it.
type MessageEvent struct {
	Topic      string
	Payload    []byte
	ReceivedAt time.Time
}

func (MessageEvent) eventKind() string { return "message" }

// ConnAckEvent signals a successful broker connection acknowledgment
type ConnAckEvent struct {
	SessionPresent bool
}

func (ConnAckEvent) eventKind() string { return "connack" }

// OtherEvent covers protocol events the connector ignores (pings, acks)
type OtherEvent struct {
	Kind string
}

func (OtherEvent) eventKind() string { return "other" }
