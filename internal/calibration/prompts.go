package calibration

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/felixgeelhaar/cadence/internal/queue"
)

const basePrompt = `You are calibrating an autonomous coding run. Compare what has been built so far with what is still queued and decide whether the work has drifted from the plan.

Drift includes: completed work that left gaps the queue does not cover, queued subtasks that assume something that was never built, and repeated rework of the same area.

Output Requirements:
- Return ONLY valid JSON, no markdown or explanations
- {"drift_detected": false, "summary": "<one paragraph>"} when the run is on track
- Otherwise add "insert": "prepend" or "append" and "corrective_subtasks": [{"title": "...", "description": "...", "acceptanceCriteria": ["..."], "filesToRead": ["..."], "taskRef": "..."}]
- Use "prepend" when the corrections must run before the remaining queue`

type promptSubtask struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	TaskRef string `json:"taskRef,omitempty"`
}

// BuildPrompt renders the calibration prompt for h
func BuildPrompt(h History) string {
	var b strings.Builder
	b.WriteString(basePrompt)

	b.WriteString("\n\n## Recent commits\n\n")
	if len(h.Commits) == 0 {
		b.WriteString("(none)\n")
	}
	for _, c := range h.Commits {
		fmt.Fprintf(&b, "- %s\n", c)
	}

	fmt.Fprintf(&b, "\n## Completed subtasks\n\n```json\n%s\n```\n", summarize(h.Completed))
	fmt.Fprintf(&b, "\n## Remaining queue\n\n```json\n%s\n```\n", summarize(h.Pending))
	return b.String()
}

func summarize(subtasks []queue.Subtask) string {
	out := make([]promptSubtask, 0, len(subtasks))
	for _, s := range subtasks {
		out = append(out, promptSubtask{ID: string(s.ID), Title: s.Title, TaskRef: s.TaskRef})
	}
	data, _ := json.MarshalIndent(out, "", "  ")
	return string(data)
}
