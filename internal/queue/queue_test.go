package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/cadence/internal/domain"
)

func sub(id string, done bool) Subtask {
	return Subtask{
		ID:                 domain.SubtaskID(id),
		Title:              "title " + id,
		Description:        "description " + id,
		AcceptanceCriteria: []string{"works"},
		TaskRef:            "TASK-001",
		Done:               done,
	}
}

func draft(title string) Draft {
	return Draft{Title: title, AcceptanceCriteria: []string{title + " done"}}
}

func ids(q *Queue) []string {
	out := make([]string, 0, q.Len())
	for _, s := range q.Subtasks {
		out = append(out, string(s.ID))
	}
	return out
}

func TestFingerprintIgnoresContent(t *testing.T) {
	a := New(sub("SUB-001", true), sub("SUB-002", false))
	b := a.Clone()
	b.Subtasks[0].Description = "rewritten"
	b.Subtasks[1].AcceptanceCriteria = []string{"other", "criteria"}
	b.Subtasks[1].Title = "new title"

	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
	assert.Len(t, a.Fingerprint().Hash, 64)
}

func TestFingerprintSensitivity(t *testing.T) {
	base := New(sub("SUB-001", false), sub("SUB-002", false))

	tests := []struct {
		name   string
		mutate func(q *Queue)
	}{
		{"done flag", func(q *Queue) { q.Subtasks[0].Done = true }},
		{"id", func(q *Queue) { q.Subtasks[1].ID = "SUB-003" }},
		{"order", func(q *Queue) { q.Subtasks[0], q.Subtasks[1] = q.Subtasks[1], q.Subtasks[0] }},
		{"length", func(q *Queue) { q.Subtasks = q.Subtasks[:1] }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := base.Clone()
			tt.mutate(q)
			assert.NotEqual(t, base.Fingerprint(), q.Fingerprint())
		})
	}
}

func TestFingerprintEmptyQueue(t *testing.T) {
	assert.Equal(t, ComputeFingerprint(nil), ComputeFingerprint(&Queue{}))
}

func TestNextIDIsGapTolerant(t *testing.T) {
	q := New(sub("SUB-001", true), sub("SUB-005", false))
	assert.Equal(t, domain.SubtaskID("SUB-006"), q.NextID())

	assert.Equal(t, domain.SubtaskID("SUB-001"), (&Queue{}).NextID())
}

func TestRunnableExcludesSkippedAndDone(t *testing.T) {
	q := New(sub("SUB-001", true), sub("SUB-002", false), sub("SUB-003", false))
	runnable := q.Runnable(map[domain.SubtaskID]bool{"SUB-002": true})

	require.Len(t, runnable, 1)
	assert.Equal(t, domain.SubtaskID("SUB-003"), runnable[0].ID)
}

func TestDraftValidate(t *testing.T) {
	tests := []struct {
		name    string
		draft   Draft
		wantErr bool
	}{
		{"valid", draft("a"), false},
		{"empty title", Draft{AcceptanceCriteria: []string{"x"}}, true},
		{"no criteria", Draft{Title: "x"}, true},
		{"blank criterion", Draft{Title: "x", AcceptanceCriteria: []string{" "}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.draft.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidDraft)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
