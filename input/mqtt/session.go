package mqtt

import (
	"context"
	"time"

	"github.com/Joshuathomas18/drasi-mqtt-poc/mqttclient"
)

// Session is the broker session contract the supervisor drives. The
// production implementation is mqttclient.Client; tests substitute a fake to
// exercise the state machine without a broker.
type Session interface {
	Connect(ctx context.Context) error
	Subscribe(filter string, qos byte) error
	Events() <-chan mqttclient.Event
	Errors() <-chan error
	Disconnect(timeout time.Duration)
}

var _ Session = (*mqttclient.Client)(nil)
