// Package router derives entity identity and labels from MQTT topic strings.
package router

// DefaultEntityID is the sentinel used when topic segmentation yields no
// usable trailing segment. Routing never fails: the connector ingests
// best-effort and never drops a message for an unparseable identity.
const DefaultEntityID = "unknown"

// DefaultPattern is the subscription filter the connector ships with
const DefaultPattern = "lfx/drasi/sensors/#"

// DefaultLabels are applied to topics routed under DefaultPattern
var DefaultLabels = []string{"Sensor", "IoTDevice"}

// Metadata carries the identity and labels derived from a topic.
// EntityID is always non-empty; Labels preserve table order.
type Metadata struct {
	EntityID string
	Labels   []string
}

// Table maps subscription patterns to the label set applied to topics
// received under them. This lets multiple topic families map to different
// label sets without changing the routing algorithm.
type Table map[string][]string

// Router is a pure topic-to-metadata function with a pattern label table.
// Route is deterministic and total over all string inputs.
type Router struct {
	labels Table
}

// New creates a router with the given pattern label table.
// A nil or empty table falls back to the default sensor mapping.
func New(labels Table) *Router {
	if len(labels) == 0 {
		labels = Table{DefaultPattern: DefaultLabels}
	}
	return &Router{labels: labels}
}

// Route derives metadata for a topic received under pattern.
// The identity is the final '/'-delimited segment of the topic; an empty
// topic or trailing delimiter yields the DefaultEntityID sentinel.
func (r *Router) Route(topic, pattern string) Metadata {
	return Metadata{
		EntityID: lastSegment(topic),
		Labels:   r.labelsFor(pattern),
	}
}

// labelsFor selects the label set for a pattern, defaulting to DefaultLabels
// for patterns not present in the table.
func (r *Router) labelsFor(pattern string) []string {
	if labels, ok := r.labels[pattern]; ok && len(labels) > 0 {
		out := make([]string, len(labels))
		copy(out, labels)
		return out
	}
	out := make([]string, len(DefaultLabels))
	copy(out, DefaultLabels)
	return out
}

// lastSegment returns the substring after the final '/', or DefaultEntityID
// when that substring is empty.
func lastSegment(topic string) string {
	segment := topic
	for i := len(topic) - 1; i >= 0; i-- {
		if topic[i] == '/' {
			segment = topic[i+1:]
			break
		}
	}
	if segment == "" {
		return DefaultEntityID
	}
	return segment
}
