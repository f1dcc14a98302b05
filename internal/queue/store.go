package queue

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/felixgeelhaar/cadence/internal/errors"
)

// queueFile is the on-disk shape. Anything else in the file, including a
// stale "fingerprint" field written by other tools, is dropped on load.
type queueFile struct {
	Subtasks []Subtask `json:"subtasks"`
}

// Load reads a queue file. A missing file yields an empty queue so the first
// planning pass can create one.
func Load(path string) (*Queue, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Queue{}, nil
		}
		return nil, errors.Wrap(errors.ErrCodeFileReadFailed, "read queue file", err)
	}

	var f queueFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, errors.NewFileUnmarshalError(path, "JSON", err)
	}

	seen := make(map[string]bool, len(f.Subtasks))
	for i, s := range f.Subtasks {
		if s.ID == "" {
			return nil, errors.New(errors.ErrCodeQueueInvalidDraft, fmt.Sprintf("subtask at position %d has no id", i))
		}
		if seen[string(s.ID)] {
			return nil, errors.New(errors.ErrCodeQueueDuplicateID, fmt.Sprintf("duplicate subtask id %s", s.ID)).
				WithSuggestion("Edit the queue file so every subtask id is unique")
		}
		seen[string(s.ID)] = true
	}

	return &Queue{Subtasks: f.Subtasks}, nil
}

// Save writes q to path atomically: the JSON goes to a temp file in the same
// directory which is then renamed over the target.
func Save(path string, q *Queue) error {
	f := queueFile{Subtasks: []Subtask{}}
	if q != nil && q.Subtasks != nil {
		f.Subtasks = q.Subtasks
	}

	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return errors.Wrap(errors.ErrCodeFileMarshal, "marshal queue", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return errors.Wrap(errors.ErrCodeDirectoryFailed, "create queue directory", err)
	}

	tmp, err := os.CreateTemp(dir, ".queue-*.json")
	if err != nil {
		return errors.Wrap(errors.ErrCodeFileWriteFailed, "create temp queue file", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(errors.ErrCodeFileWriteFailed, "write temp queue file", err)
	}
	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return errors.Wrap(errors.ErrCodeFileWriteFailed, "chmod temp queue file", err)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(errors.ErrCodeFileWriteFailed, "close temp queue file", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return errors.Wrap(errors.ErrCodeFileWriteFailed, "replace queue file", err)
	}
	return nil
}
