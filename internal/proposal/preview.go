package proposal

import (
	"encoding/json"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/felixgeelhaar/cadence/internal/errors"
	"github.com/felixgeelhaar/cadence/internal/queue"
)

// Preview renders what applying p to q would change, as a unified diff of
// the queue JSON. A stale proposal cannot be previewed.
func Preview(q *queue.Queue, p *queue.Proposal) (string, error) {
	if m := queue.DetectMismatch(p, q); m.Mismatched {
		return "", errors.NewStaleProposalError(m.Proposal.Hash, m.Current.Hash)
	}

	next, err := queue.ApplyOperations(q, p.Operations)
	if err != nil {
		return "", err
	}

	before, err := json.MarshalIndent(q.Subtasks, "", "  ")
	if err != nil {
		return "", err
	}
	after, err := json.MarshalIndent(next.Subtasks, "", "  ")
	if err != nil {
		return "", err
	}

	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(before) + "\n"),
		B:        difflib.SplitLines(string(after) + "\n"),
		FromFile: "queue.json",
		ToFile:   "queue.json (proposed)",
		Context:  2,
	})
}
