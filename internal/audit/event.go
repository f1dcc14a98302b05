package audit

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RecordType tags an audit record
type RecordType string

const (
	// TypeValidation summarizes one validation batch
	TypeValidation RecordType = "validation"

	// TypeCalibration summarizes one calibration pass
	TypeCalibration RecordType = "calibration"

	// TypeQueueProposal records a proposal that was generated and persisted
	TypeQueueProposal RecordType = "queue-proposal"

	// TypeQueueApply records an apply attempt, stale no-ops included
	TypeQueueApply RecordType = "queue-apply"
)

// Record is one line of the daily audit log. Event-specific fields are
// written at the top level next to the common ones.
type Record struct {
	ID        string
	Type      RecordType
	Timestamp time.Time
	Workflow  string
	Fields    map[string]any
}

var reservedKeys = map[string]bool{"id": true, "type": true, "timestamp": true, "workflow": true}

// NewRecord creates a record with id and timestamp populated
func NewRecord(recordType RecordType, workflow string) *Record {
	return &Record{
		ID:        uuid.New().String(),
		Type:      recordType,
		Timestamp: time.Now().UTC(),
		Workflow:  workflow,
		Fields:    make(map[string]any),
	}
}

// With adds an event-specific field. Common keys cannot be overwritten.
func (r *Record) With(key string, value any) *Record {
	if reservedKeys[key] {
		key = "field_" + key
	}
	if r.Fields == nil {
		r.Fields = make(map[string]any)
	}
	r.Fields[key] = value
	return r
}

// WithFields adds several fields
func (r *Record) WithFields(fields map[string]any) *Record {
	for k, v := range fields {
		r.With(k, v)
	}
	return r
}

// Get returns a field value
func (r *Record) Get(key string) (any, bool) {
	v, ok := r.Fields[key]
	return v, ok
}

// MarshalJSON flattens Fields next to the common keys
func (r Record) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Fields)+4)
	for k, v := range r.Fields {
		out[k] = v
	}
	out["id"] = r.ID
	out["type"] = r.Type
	out["timestamp"] = r.Timestamp.Format(time.RFC3339Nano)
	out["workflow"] = r.Workflow
	return json.Marshal(out)
}

// UnmarshalJSON splits the common keys from the event-specific ones
func (r *Record) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	id, _ := raw["id"].(string)
	typ, _ := raw["type"].(string)
	workflow, _ := raw["workflow"].(string)
	ts, _ := raw["timestamp"].(string)

	var parsed time.Time
	if ts != "" {
		t, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return fmt.Errorf("parse timestamp: %w", err)
		}
		parsed = t
	}

	for k := range reservedKeys {
		delete(raw, k)
	}

	*r = Record{
		ID:        id,
		Type:      RecordType(typ),
		Timestamp: parsed,
		Workflow:  workflow,
		Fields:    raw,
	}
	return nil
}
