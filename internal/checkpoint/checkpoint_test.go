package checkpoint

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/cadence/internal/errors"
)

func TestManagerSaveLoadClear(t *testing.T) {
	m := NewManager(filepath.Join(t.TempDir(), "checkpoints"))
	assert.False(t, m.Exists())

	_, err := m.Load()
	assert.True(t, errors.HasCode(err, errors.ErrCodeCascadeNoPausedState))

	p := &Pause{
		Workflow:      "wf",
		Level:         "stories",
		Gate:          "createStories",
		Next:          "tasks",
		Target:        "build",
		Provider:      "claude",
		FeedbackPath:  "feedback/approval-stories.md",
		ResumeCommand: "cadence cascade --from tasks --to build",
	}
	require.NoError(t, m.Save(p))
	assert.True(t, m.Exists())

	loaded, err := m.Load()
	require.NoError(t, err)
	assert.Equal(t, "tasks", loaded.Next)
	assert.Equal(t, "1", loaded.Version)
	assert.False(t, loaded.CreatedAt.IsZero())

	info, err := os.Stat(m.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	require.NoError(t, m.Clear())
	require.NoError(t, m.Clear())
	assert.False(t, m.Exists())
}

type call struct {
	name string
	args []string
}

func fakeGit(status string, failOn string) (*GitCheckpointer, *[]call) {
	var calls []call
	g := &GitCheckpointer{dir: "/repo", run: func(_ context.Context, _ string, name string, args ...string) ([]byte, error) {
		calls = append(calls, call{name, args})
		if len(args) > 0 && args[0] == failOn {
			return []byte("fatal: not a git repository"), fmt.Errorf("exit status 128")
		}
		if len(args) > 0 && args[0] == "status" {
			return []byte(status), nil
		}
		return nil, nil
	}}
	return g, &calls
}

func TestGitCheckpointerCleanTree(t *testing.T) {
	g, calls := fakeGit("", "")
	committed, err := g.Checkpoint(context.Background(), "checkpoint")
	require.NoError(t, err)
	assert.False(t, committed)
	assert.Len(t, *calls, 1)
}

func TestGitCheckpointerDirtyTree(t *testing.T) {
	g, calls := fakeGit(" M main.go\n", "")
	committed, err := g.Checkpoint(context.Background(), "cadence: checkpoint before stories")
	require.NoError(t, err)
	assert.True(t, committed)
	require.Len(t, *calls, 3)
	assert.Equal(t, []string{"add", "-A"}, (*calls)[1].args)
	assert.Contains(t, (*calls)[2].args, "cadence: checkpoint before stories")
}

func TestGitCheckpointerFailure(t *testing.T) {
	g, _ := fakeGit("", "status")
	_, err := g.Checkpoint(context.Background(), "x")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeCascadeCheckpoint))
	assert.Contains(t, err.Error(), "not a git repository")
}

func TestGitCheckpointerRealRepo(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	dir := t.TempDir()
	for _, args := range [][]string{
		{"init", "-q"},
		{"config", "user.email", "test@example.com"},
		{"config", "user.name", "Test"},
	} {
		out, err := execRun(context.Background(), dir, "git", args...)
		require.NoError(t, err, string(out))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("a"), 0600))

	g := NewGitCheckpointer(dir)
	committed, err := g.Checkpoint(context.Background(), "checkpoint")
	require.NoError(t, err)
	assert.True(t, committed)

	committed, err = g.Checkpoint(context.Background(), "checkpoint")
	require.NoError(t, err)
	assert.False(t, committed)

	out, err := execRun(context.Background(), dir, "git", "log", "--oneline")
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(out), "checkpoint"))
}
