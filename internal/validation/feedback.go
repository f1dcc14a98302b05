package validation

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/felixgeelhaar/cadence/internal/errors"
	"github.com/felixgeelhaar/cadence/internal/queue"
)

// WriteFeedback writes <dir>/<SUB-n>.md describing a misalignment and how
// to resolve it. An existing document for the same subtask is replaced.
func WriteFeedback(dir string, s queue.Subtask, m Misaligned, at time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", errors.Wrap(errors.ErrCodeDirectoryFailed, "create feedback directory", err)
	}

	path := filepath.Join(dir, string(s.ID)+".md")
	if err := os.WriteFile(path, []byte(renderFeedback(s, m, at)), 0600); err != nil {
		return "", errors.Wrap(errors.ErrCodeFileWriteFailed, "write feedback document", err)
	}
	return path, nil
}

func renderFeedback(s queue.Subtask, m Misaligned, at time.Time) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Validation feedback: %s %s\n\n", s.ID, s.Title)
	fmt.Fprintf(&b, "- **Subtask:** %s\n", s.ID)
	if s.TaskRef != "" {
		fmt.Fprintf(&b, "- **Task:** %s\n", s.TaskRef)
	}
	if s.StoryRef != "" {
		fmt.Fprintf(&b, "- **Story:** %s\n", s.StoryRef)
	}
	fmt.Fprintf(&b, "- **Issue:** %s\n", m.IssueType)
	fmt.Fprintf(&b, "- **Reviewed:** %s\n\n", at.UTC().Format(time.RFC3339))

	b.WriteString("## Reason\n\n")
	b.WriteString(m.Reason)
	b.WriteString("\n\n")

	if m.Suggestion != "" {
		b.WriteString("## Suggested fix\n\n")
		b.WriteString(m.Suggestion)
		b.WriteString("\n\n")
	}

	definition, _ := json.MarshalIndent(s, "", "  ")
	b.WriteString("## Subtask definition\n\n```json\n")
	b.Write(definition)
	b.WriteString("\n```\n\n")

	b.WriteString("## How to Resolve\n\n")
	fmt.Fprintf(&b, "1. **Fix** the subtask: edit %s in the queue file (or its parent task) and re-run `cadence validate --ids %s`.\n", s.ID, s.ID)
	fmt.Fprintf(&b, "2. **Skip** it: leave it on the skip list; the build loop will not run %s.\n", s.ID)
	fmt.Fprintf(&b, "3. **Remove** it: the validation proposal removes %s once applied. If `cadence validate` staged it for approval, run the `cadence queue apply` command it printed.\n", s.ID)
	return b.String()
}
