package mqttclient

// SessionState represents the connector's subscription session lifecycle.
// Exactly one live session exists per process instance; the supervisor loop
// owns the value and drives its transitions.
type SessionState int32

// Possible session states
const (
	StateDisconnected SessionState = iota
	StateConnecting
	StateSubscribed
	StateFaulted
)

// String returns the string representation of SessionState
func (s SessionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateSubscribed:
		return "subscribed"
	case StateFaulted:
		return "faulted"
	default:
		return "unknown"
	}
}
