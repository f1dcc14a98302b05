package queue

import (
	"encoding/json"
	"fmt"

	"github.com/zeebo/blake3"

	"github.com/felixgeelhaar/cadence/internal/domain"
)

// Fingerprint is a blake3 digest over the ordered (id, done) pairs of a queue.
// Titles, descriptions and criteria do not contribute.
type Fingerprint struct {
	Hash string `json:"hash"`
}

// String returns the hex digest
func (f Fingerprint) String() string {
	return f.Hash
}

// Short returns the first 12 hex characters, for logs and banners
func (f Fingerprint) Short() string {
	if len(f.Hash) > 12 {
		return f.Hash[:12]
	}
	return f.Hash
}

// Equal reports whether two fingerprints match
func (f Fingerprint) Equal(other Fingerprint) bool {
	return f.Hash == other.Hash
}

type fingerprintEntry struct {
	ID   domain.SubtaskID `json:"id"`
	Done bool             `json:"done"`
}

// ComputeFingerprint is pure and deterministic: equal (id, done) sequences
// always produce equal fingerprints.
func ComputeFingerprint(q *Queue) Fingerprint {
	entries := make([]fingerprintEntry, 0, q.Len())
	if q != nil {
		for _, s := range q.Subtasks {
			entries = append(entries, fingerprintEntry{ID: s.ID, Done: s.Done})
		}
	}

	// Marshalling a slice of plain structs cannot fail.
	canonical, _ := json.Marshal(entries)

	hasher := blake3.New()
	_, _ = hasher.Write(canonical)

	return Fingerprint{Hash: fmt.Sprintf("%x", hasher.Sum(nil))}
}
