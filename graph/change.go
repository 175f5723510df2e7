// Package graph defines the graph-change record handed to the downstream
// change-processing pipeline.
package graph

import (
	"encoding/json"

	"github.com/Joshuathomas18/drasi-mqtt-poc/errors"
)

// ChangeRecord is the boundary artifact representing one entity observation.
// It is constructed atomically by the payload mapper from a single broker
// message and never mutated afterwards. Labels preserve insertion order and
// may contain duplicates, mirroring source labeling. Properties hold the
// decoded message body verbatim; the connector never inspects or rewrites
// body fields.
type ChangeRecord struct {
	ID         string   `json:"id"`
	Labels     []string `json:"labels"`
	Properties any      `json:"properties"`
}

// NewChangeRecord constructs a record from routing identity and a decoded body
func NewChangeRecord(id string, labels []string, properties any) ChangeRecord {
	return ChangeRecord{
		ID:         id,
		Labels:     labels,
		Properties: properties,
	}
}

// Validate checks the record's structural invariants
func (r ChangeRecord) Validate() error {
	if r.ID == "" {
		return errors.WrapInvalid(errors.ErrInvalidData,
			"ChangeRecord", "Validate", "id cannot be empty")
	}
	if len(r.Labels) == 0 {
		return errors.WrapInvalid(errors.ErrInvalidData,
			"ChangeRecord", "Validate", "labels cannot be empty")
	}
	return nil
}

// Encode serializes the record to its wire shape:
// {"id": ..., "labels": [...], "properties": {...}}
func (r ChangeRecord) Encode() ([]byte, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, errors.WrapInvalid(err, "ChangeRecord", "Encode", "marshal record")
	}
	return data, nil
}
