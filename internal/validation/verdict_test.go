package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/cadence/internal/queue"
)

func TestParseVerdict(t *testing.T) {
	tests := []struct {
		name string
		text string
		want Verdict
	}{
		{"aligned", `{"aligned": true}`, Aligned{}},
		{
			name: "misaligned fenced",
			text: "```json\n{\"aligned\": false, \"issue_type\": \"too_broad\", \"reason\": \"two features\", \"suggestion\": \"split\"}\n```",
			want: Misaligned{IssueType: IssueTooBroad, Reason: "two features", Suggestion: "split"},
		},
		{
			name: "missing reason",
			text: `{"aligned": false, "issue_type": "unfaithful"}`,
			want: Misaligned{IssueType: IssueUnfaithful, Reason: "no reason given"},
		},
		{
			name: "unknown issue kept verbatim",
			text: `{"aligned": false, "issue_type": "vibes", "reason": "meh"}`,
			want: Misaligned{IssueType: "vibes", Reason: "meh"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseVerdict(tt.text))
		})
	}
}

func TestParseVerdictFailures(t *testing.T) {
	for _, text := range []string{
		"looks good to me",
		`{"issue_type": "scope_creep"}`,
		`{"aligned": "yes"}`,
	} {
		v := ParseVerdict(text)
		pf, ok := v.(ParseFailure)
		require.True(t, ok, "text %q gave %#v", text, v)
		assert.Equal(t, text, pf.Raw)
		assert.Error(t, pf.Err)

		resolved, failed := Resolve(v)
		assert.True(t, failed)
		assert.Equal(t, Aligned{}, resolved)
	}
}

func TestIssueTypeKnown(t *testing.T) {
	assert.True(t, IssueScopeCreep.Known())
	assert.True(t, IssueTooNarrow.Known())
	assert.False(t, IssueType("vibes").Known())
}

func TestBuildPrompt(t *testing.T) {
	s := queue.Subtask{ID: "SUB-004", Title: "Add login", AcceptanceCriteria: []string{"form renders"}, TaskRef: "TASK-002"}

	bare := BuildPrompt(s, nil)
	assert.Contains(t, bare, `"id": "SUB-004"`)
	assert.Contains(t, bare, "scope_creep")
	assert.NotContains(t, bare, "Parent task")

	full := BuildPrompt(s, &Parents{Task: "# Task 2\nLogin page", StoryRef: "STORY-1", Story: "As a user I log in"})
	assert.Contains(t, full, "## Parent task (TASK-002)")
	assert.Contains(t, full, "## Parent story (STORY-1)")
	assert.True(t, strings.Index(full, "Parent task") < strings.Index(full, "Parent story"))
}
