package calibration

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/felixgeelhaar/cadence/internal/queue"
	"github.com/felixgeelhaar/cadence/internal/reviewer"
)

// Insert says where corrective subtasks go
type Insert string

const (
	Prepend Insert = "prepend"
	Append  Insert = "append"
)

// ParseInsert accepts prepend or append, case-insensitively
func ParseInsert(s string) (Insert, error) {
	switch Insert(strings.ToLower(strings.TrimSpace(s))) {
	case Prepend:
		return Prepend, nil
	case Append:
		return Append, nil
	default:
		return "", fmt.Errorf("insert mode %q must be prepend or append", s)
	}
}

// Report is the reviewer's calibration judgement
type Report struct {
	DriftDetected bool          `json:"drift_detected"`
	Summary       string        `json:"summary"`
	Insert        Insert        `json:"insert,omitempty"`
	Corrective    []queue.Draft `json:"corrective_subtasks,omitempty"`
}

// ParseReport reads a reviewer reply. An empty or missing insert mode is
// left empty for the caller to default.
func ParseReport(text string) (*Report, error) {
	raw := reviewer.ExtractJSON(text)
	if raw == "" {
		return nil, fmt.Errorf("no JSON object in reply")
	}

	var r Report
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return nil, err
	}
	if r.Insert != "" {
		insert, err := ParseInsert(string(r.Insert))
		if err != nil {
			return nil, err
		}
		r.Insert = insert
	}
	r.Summary = strings.TrimSpace(r.Summary)
	return &r, nil
}

// CreateOperations turns drafts into create operations at sequential
// indices: 0..n-1 for prepend, length..length+n-1 for append.
func CreateOperations(drafts []queue.Draft, insert Insert, length int) []queue.Operation {
	ops := make([]queue.Operation, 0, len(drafts))
	start := 0
	if insert == Append {
		start = length
	}
	for i, d := range drafts {
		ops = append(ops, queue.Create(start+i, d))
	}
	return ops
}
