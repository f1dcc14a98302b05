package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/cadence/internal/errors"
	"github.com/felixgeelhaar/cadence/internal/gate"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
}

func testLoader(t *testing.T) (*Loader, string, string) {
	t.Helper()
	project := t.TempDir()
	user := t.TempDir()
	l := NewLoader(project)
	l.SetUserDir(user)
	l.skipEnv = true
	return l, project, user
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default(t.TempDir())
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "default", cfg.Workflow)
	assert.Equal(t, 120*time.Second, cfg.Reviewer.Timeout)
	assert.Equal(t, gate.Always, cfg.Policies()[gate.CreateStories])
}

func TestLoadLayers(t *testing.T) {
	l, project, user := testLoader(t)

	writeFile(t, filepath.Join(user, FileName), `
provider: codex
approvals:
  createStories: manual
reviewer:
  timeout: 30s
`)
	writeFile(t, filepath.Join(project, ".cadence", FileName), `
workflow: payments
approvals:
  createTasks: notify
levels:
  build:
    command: make build-loop
`)

	cfg, err := l.Load()
	require.NoError(t, err)

	assert.Equal(t, "payments", cfg.Workflow)
	assert.Equal(t, "codex", cfg.Provider)
	assert.Equal(t, 30*time.Second, cfg.Reviewer.Timeout)
	assert.Equal(t, []string{"claude", "-p", "--output-format", "json"}, cfg.Reviewer.Command)
	assert.Equal(t, "make build-loop", cfg.LevelCommand("build"))
	assert.Equal(t, project, cfg.Root)

	policies := cfg.Policies()
	assert.Equal(t, gate.Manual, policies[gate.CreateStories])
	assert.Equal(t, gate.Notify, policies[gate.CreateTasks])
	assert.Equal(t, gate.Always, policies[gate.CorrectionTasks])
}

func TestLoadEnvOverrides(t *testing.T) {
	l, _, _ := testLoader(t)
	l.skipEnv = false

	t.Setenv("CADENCE_WORKFLOW", "from-env")
	t.Setenv("CADENCE_MODEL", "opus")
	t.Setenv("CADENCE_REVIEWER_TIMEOUT", "5s")
	t.Setenv("CADENCE_MODE", "supervised")

	cfg, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Workflow)
	assert.Equal(t, "opus", cfg.Model)
	assert.Equal(t, 5*time.Second, cfg.Reviewer.Timeout)
	assert.Equal(t, ModeSupervised, cfg.Validation.Mode)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name     string
		yaml     string
		wantCode errors.ErrorCode
	}{
		{"bad policy", "approvals:\n  createTasks: sometimes\n", errors.ErrCodeGatePolicyInvalid},
		{"bad gate", "approvals:\n  deploy: always\n", errors.ErrCodeGateUnknown},
		{"bad mode", "validation:\n  mode: yolo\n", errors.ErrCodeConfigInvalid},
		{"bad level", "levels:\n  deploy:\n    command: x\n", errors.ErrCodeCascadeLevelUnknown},
		{"bad reviewer", "reviewer:\n  kind: oracle\n", errors.ErrCodeReviewConfig},
		{"workflow path", "workflow: ../escape\n", errors.ErrCodeConfigInvalid},
		{"malformed", "approvals: [\n", errors.ErrCodeFileUnmarshal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, project, _ := testLoader(t)
			writeFile(t, filepath.Join(project, ".cadence", FileName), tt.yaml)

			_, err := l.Load()
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, tt.wantCode), "got %v", err)
		})
	}
}

func TestPaths(t *testing.T) {
	cfg := Default("/repo")
	cfg.Workflow = "wf"
	p := cfg.Paths()

	assert.Equal(t, "/repo/.cadence/workflows/wf/queue.json", p.QueueFile())
	assert.Equal(t, "/repo/.cadence/workflows/wf/logs", p.LogsDir())
	assert.Equal(t, "/repo/.cadence/workflows/wf/validation/skipped.json", p.SkipListFile())
	assert.Equal(t, "/repo/.cadence/milestones/current/tasks", p.TasksDir())
	assert.Equal(t, "/repo/.cadence/milestones/current/stories", p.StoriesDir())
}
