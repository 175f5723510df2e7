package health

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/Joshuathomas18/drasi-mqtt-poc/component"
)

// Handler serves aggregated component health as JSON.
// Components are registered once at startup; the handler polls their Health()
// on every request so the endpoint always reflects live state.
type Handler struct {
	name       string
	mu         sync.RWMutex
	components map[string]component.Discoverable
}

// NewHandler creates a health handler for the named system
func NewHandler(name string) *Handler {
	return &Handler{
		name:       name,
		components: make(map[string]component.Discoverable),
	}
}

// Register adds a component to health reporting
func (h *Handler) Register(name string, comp component.Discoverable) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.components[name] = comp
}

// Check returns the current aggregate status
func (h *Handler) Check() Status {
	h.mu.RLock()
	defer h.mu.RUnlock()

	subStatuses := make([]Status, 0, len(h.components))
	for name, comp := range h.components {
		subStatuses = append(subStatuses, FromComponentHealth(name, comp.Health()))
	}

	return Aggregate(h.name, subStatuses)
}

// ServeHTTP implements http.Handler. Unhealthy aggregates return 503 so load
// balancers and orchestrators can act on the status code alone.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	status := h.Check()

	w.Header().Set("Content-Type", "application/json")
	if status.IsUnhealthy() {
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	_ = json.NewEncoder(w).Encode(status)
}
