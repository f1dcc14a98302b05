// Package checkpoint persists the state a paused cascade needs to resume,
// and commits outstanding repository changes before a gated level runs.
package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/felixgeelhaar/cadence/internal/errors"
)

// PauseFile is the file name of the pause state inside the checkpoints directory
const PauseFile = "pause.json"

// Pause records a checkpoint-and-exit stop
type Pause struct {
	Version  string `json:"version"`
	Workflow string `json:"workflow"`

	// Level ran and awaits approval; Gate is the gate that stopped the cascade
	Level string `json:"level"`
	Gate  string `json:"gate,omitempty"`

	// Next is where a resume starts; empty when Level was the target
	Next   string `json:"next,omitempty"`
	Target string `json:"target"`

	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`

	// Committed is true when outstanding changes were committed before Level ran
	Committed bool `json:"committed"`

	FeedbackPath  string    `json:"feedbackPath"`
	ResumeCommand string    `json:"resumeCommand"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Manager stores the pause state of one workflow
type Manager struct {
	dir string
}

// NewManager creates a manager for the given checkpoints directory
func NewManager(dir string) *Manager {
	return &Manager{dir: dir}
}

// Path returns the pause file location
func (m *Manager) Path() string {
	return filepath.Join(m.dir, PauseFile)
}

// Save persists the pause state, replacing any previous one
func (m *Manager) Save(p *Pause) error {
	if p == nil {
		return fmt.Errorf("pause state is nil")
	}
	if p.Version == "" {
		p.Version = "1"
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}

	if err := os.MkdirAll(m.dir, 0750); err != nil {
		return errors.Wrap(errors.ErrCodeDirectoryFailed, "create checkpoint directory", err)
	}

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return errors.Wrap(errors.ErrCodeFileMarshal, "marshal pause state", err)
	}
	if err := os.WriteFile(m.Path(), data, 0600); err != nil {
		return errors.Wrap(errors.ErrCodeFileWriteFailed, "write pause state", err)
	}
	return nil
}

// Load reads the pause state. A workflow that is not paused yields
// ErrCodeCascadeNoPausedState.
func (m *Manager) Load() (*Pause, error) {
	data, err := os.ReadFile(m.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New(errors.ErrCodeCascadeNoPausedState, "no paused cascade to resume").
				WithSuggestion("Start a cascade with: cadence cascade --from <level> --to <level>")
		}
		return nil, errors.Wrap(errors.ErrCodeFileReadFailed, "read pause state", err)
	}

	var p Pause
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, errors.NewFileUnmarshalError(m.Path(), "JSON", err)
	}
	return &p, nil
}

// Exists reports whether the workflow is paused
func (m *Manager) Exists() bool {
	_, err := os.Stat(m.Path())
	return err == nil
}

// Clear removes the pause state. Clearing an absent state is not an error.
func (m *Manager) Clear() error {
	if err := os.Remove(m.Path()); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(errors.ErrCodeFileWriteFailed, "remove pause state", err)
	}
	return nil
}
