package validation

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/felixgeelhaar/cadence/internal/domain"
	"github.com/felixgeelhaar/cadence/internal/errors"
)

// SkippedSubtask records a subtask that validation took out of the run
type SkippedSubtask struct {
	ID           domain.SubtaskID `json:"id"`
	Title        string           `json:"title"`
	IssueType    IssueType        `json:"issueType"`
	Reason       string           `json:"reason"`
	Suggestion   string           `json:"suggestion,omitempty"`
	FeedbackPath string           `json:"feedbackPath,omitempty"`
	SkippedAt    time.Time        `json:"skippedAt"`
}

// SkipList is the set of skipped subtasks persisted across runs
type SkipList struct {
	path    string
	entries map[domain.SubtaskID]SkippedSubtask
}

type skipFile struct {
	Skipped []SkippedSubtask `json:"skipped"`
}

// LoadSkipList reads path. A missing file is an empty list.
func LoadSkipList(path string) (*SkipList, error) {
	l := &SkipList{path: path, entries: make(map[domain.SubtaskID]SkippedSubtask)}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return l, nil
		}
		return nil, errors.Wrap(errors.ErrCodeFileReadFailed, "read skip list", err)
	}

	var f skipFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, errors.NewFileUnmarshalError(path, "JSON", err)
	}
	for _, s := range f.Skipped {
		l.entries[s.ID] = s
	}
	return l, nil
}

// Add records s, replacing an older entry for the same id
func (l *SkipList) Add(s SkippedSubtask) {
	l.entries[s.ID] = s
}

// Merge adds every entry of skipped
func (l *SkipList) Merge(skipped []SkippedSubtask) {
	for _, s := range skipped {
		l.Add(s)
	}
}

// Remove forgets id, e.g. after the subtask was fixed
func (l *SkipList) Remove(id domain.SubtaskID) bool {
	if _, ok := l.entries[id]; !ok {
		return false
	}
	delete(l.entries, id)
	return true
}

// IDs returns the skipped ids as a set, for queue.Runnable
func (l *SkipList) IDs() map[domain.SubtaskID]bool {
	ids := make(map[domain.SubtaskID]bool, len(l.entries))
	for id := range l.entries {
		ids[id] = true
	}
	return ids
}

// Entries returns the entries ordered by id
func (l *SkipList) Entries() []SkippedSubtask {
	out := make([]SkippedSubtask, 0, len(l.entries))
	for _, s := range l.entries {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		a, aok := out[i].ID.Number()
		b, bok := out[j].ID.Number()
		if aok && bok && a != b {
			return a < b
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Len returns the number of skipped subtasks
func (l *SkipList) Len() int {
	return len(l.entries)
}

// Save writes the list back to its file
func (l *SkipList) Save() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0750); err != nil {
		return errors.Wrap(errors.ErrCodeDirectoryFailed, "create validation directory", err)
	}
	data, err := json.MarshalIndent(skipFile{Skipped: l.Entries()}, "", "  ")
	if err != nil {
		return errors.Wrap(errors.ErrCodeFileMarshal, "marshal skip list", err)
	}
	if err := os.WriteFile(l.path, append(data, '\n'), 0600); err != nil {
		return errors.Wrap(errors.ErrCodeFileWriteFailed, "write skip list", err)
	}
	return nil
}
