package queue

import (
	"time"

	"github.com/google/uuid"
)

// Source identifies the producer of a proposal
type Source string

const (
	SourceValidation  Source = "validation"
	SourceCalibration Source = "calibration"
	SourceManual      Source = "manual"
)

// Proposal is a fingerprint-stamped batch of operations. The fingerprint is
// the one the producer observed when it read the queue; the batch is only
// applied against a queue that still has it.
type Proposal struct {
	ID          string      `json:"id"`
	Fingerprint Fingerprint `json:"fingerprint"`
	Operations  []Operation `json:"operations"`
	Source      Source      `json:"source"`
	Timestamp   time.Time   `json:"timestamp"`
}

// NewProposal stamps ops with the fingerprint of q. The operation slice is copied.
func NewProposal(q *Queue, source Source, ops []Operation) *Proposal {
	return &Proposal{
		ID:          uuid.New().String(),
		Fingerprint: q.Fingerprint(),
		Operations:  append([]Operation(nil), ops...),
		Source:      source,
		Timestamp:   time.Now().UTC(),
	}
}

// Empty reports whether the proposal carries no operations
func (p *Proposal) Empty() bool {
	return p == nil || len(p.Operations) == 0
}

// ApplyProposal applies p to q when q still has the fingerprint p was built
// against. Otherwise p is stale (or was already applied) and q is returned
// as-is with a nil error. Replaying a proposal is therefore always safe.
func ApplyProposal(q *Queue, p *Proposal) (*Queue, error) {
	if p == nil || !q.Fingerprint().Equal(p.Fingerprint) {
		return q, nil
	}
	return ApplyOperations(q, p.Operations)
}

// Mismatch describes whether a proposal still matches a queue
type Mismatch struct {
	Mismatched bool        `json:"mismatched"`
	Current    Fingerprint `json:"currentFingerprint"`
	Proposal   Fingerprint `json:"proposalFingerprint"`
}

// DetectMismatch compares the proposal's fingerprint with the queue's,
// for callers that want to warn before applying.
func DetectMismatch(p *Proposal, q *Queue) Mismatch {
	current := q.Fingerprint()
	return Mismatch{
		Mismatched: !current.Equal(p.Fingerprint),
		Current:    current,
		Proposal:   p.Fingerprint,
	}
}
