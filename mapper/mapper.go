// Package mapper converts raw broker messages into graph change records.
package mapper

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	apperrors "github.com/Joshuathomas18/drasi-mqtt-poc/errors"
	"github.com/Joshuathomas18/drasi-mqtt-poc/graph"
	"github.com/Joshuathomas18/drasi-mqtt-poc/router"
)

// snippetLimit caps the payload diagnostic carried by a DecodeError
const snippetLimit = 64

// DecodeError reports a malformed message body. It carries the offending
// topic and a truncated payload snippet for diagnostics. Decode failure is
// the mapper's only failure mode: routing is total and never fails.
type DecodeError struct {
	Topic   string
	Snippet string
	Err     error
}

// Error implements the error interface
func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode failed for topic %q (payload %q): %v", e.Topic, e.Snippet, e.Err)
}

// Unwrap returns the underlying decode error
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Is reports DecodeError as ErrDecodeFailed for errors.Is checks
func (e *DecodeError) Is(target error) bool {
	return target == apperrors.ErrDecodeFailed
}

// Mapper builds change records from topic strings and message bodies.
// The body must be a well-formed JSON document; it is carried into the
// record's properties unmodified and unvalidated against any schema.
type Mapper struct {
	router  *router.Router
	pattern string
}

// New creates a mapper routing topics received under the given subscription
// pattern. A nil router falls back to the default label table.
func New(r *router.Router, pattern string) *Mapper {
	if r == nil {
		r = router.New(nil)
	}
	if pattern == "" {
		pattern = router.DefaultPattern
	}
	return &Mapper{router: r, pattern: pattern}
}

// Map decodes payload and merges it with topic-derived metadata into a
// change record. On malformed payloads it returns a *DecodeError and the
// zero record; the record is never partially constructed.
func (m *Mapper) Map(topic string, payload []byte) (graph.ChangeRecord, error) {
	properties, err := decodeStrict(payload)
	if err != nil {
		return graph.ChangeRecord{}, &DecodeError{
			Topic:   topic,
			Snippet: truncate(payload),
			Err:     err,
		}
	}

	meta := m.router.Route(topic, m.pattern)

	return graph.NewChangeRecord(meta.EntityID, meta.Labels, properties), nil
}

// decodeStrict parses payload as a single JSON document. Numbers decode as
// json.Number so values round-trip without float coercion, and trailing
// content after the document is rejected.
func decodeStrict(payload []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}

	// A second token means trailing content after the document
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("trailing content after JSON document")
	}

	return doc, nil
}

// truncate produces the bounded payload diagnostic
func truncate(payload []byte) string {
	if len(payload) <= snippetLimit {
		return string(payload)
	}
	return string(payload[:snippetLimit]) + "..."
}
