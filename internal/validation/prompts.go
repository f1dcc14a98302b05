package validation

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/felixgeelhaar/cadence/internal/queue"
)

// basePrompt is the fixed instruction block sent ahead of every subtask
const basePrompt = `You are reviewing one subtask from an autonomous coding queue before it is executed.

Decide whether the subtask is faithful to its parent task and story and is sized so that a single focused session can complete it.

Classify problems as exactly one of:
- scope_creep: the subtask does work the parent task does not ask for
- too_broad: the subtask bundles several independent changes
- too_narrow: the subtask is trivial or cannot be verified on its own
- unfaithful: the subtask contradicts or misreads the parent task or story

Output Requirements:
- Return ONLY valid JSON, no markdown or explanations
- When the subtask is fine: {"aligned": true}
- Otherwise: {"aligned": false, "issue_type": "<one of the above>", "reason": "<one or two sentences>", "suggestion": "<how to fix it, optional>"}`

// BuildPrompt assembles the reviewer prompt for one subtask
func BuildPrompt(s queue.Subtask, parents *Parents) string {
	var b strings.Builder
	b.WriteString(basePrompt)

	definition, _ := json.MarshalIndent(s, "", "  ")
	fmt.Fprintf(&b, "\n\n## Subtask\n\n```json\n%s\n```\n", definition)

	if parents != nil && parents.Task != "" {
		fmt.Fprintf(&b, "\n## Parent task (%s)\n\n%s\n", s.TaskRef, strings.TrimSpace(parents.Task))
	}
	if parents != nil && parents.Story != "" {
		fmt.Fprintf(&b, "\n## Parent story (%s)\n\n%s\n", parents.StoryRef, strings.TrimSpace(parents.Story))
	}
	return b.String()
}
