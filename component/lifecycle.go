package component

import (
	"context"
	"time"
)

// LifecycleComponent defines components that support full lifecycle management:
//   - Initialize() error                  // Setup/validation only, NO context
//   - Start(ctx context.Context) error    // Start with context passed through
//   - Stop(timeout time.Duration) error   // Stop with timeout for graceful shutdown
//
// The component never stores the context; it receives it as a parameter and
// the caller coordinates cancellation.
type LifecycleComponent interface {
	Discoverable
	Initialize() error
	Start(ctx context.Context) error
	Stop(timeout time.Duration) error
}
