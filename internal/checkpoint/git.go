package checkpoint

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/felixgeelhaar/cadence/internal/errors"
)

// runFunc runs a command in dir and returns its combined output
type runFunc func(ctx context.Context, dir string, name string, args ...string) ([]byte, error)

func execRun(ctx context.Context, dir string, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	err := cmd.Run()
	return out.Bytes(), err
}

// GitCheckpointer commits all outstanding changes so the next level's output
// shows up as an isolated, uncommitted diff.
type GitCheckpointer struct {
	dir string
	run runFunc
}

// NewGitCheckpointer creates a checkpointer for the repository at dir
func NewGitCheckpointer(dir string) *GitCheckpointer {
	return &GitCheckpointer{dir: dir, run: execRun}
}

// Checkpoint commits everything when the worktree is dirty. It reports
// whether a commit was made; a clean tree is not an error.
func (g *GitCheckpointer) Checkpoint(ctx context.Context, message string) (bool, error) {
	status, err := g.run(ctx, g.dir, "git", "status", "--porcelain")
	if err != nil {
		return false, g.fail("git status", status, err)
	}
	if len(bytes.TrimSpace(status)) == 0 {
		return false, nil
	}

	if out, err := g.run(ctx, g.dir, "git", "add", "-A"); err != nil {
		return false, g.fail("git add", out, err)
	}
	if out, err := g.run(ctx, g.dir, "git", "commit", "--no-verify", "-m", message); err != nil {
		return false, g.fail("git commit", out, err)
	}
	return true, nil
}

func (g *GitCheckpointer) fail(step string, out []byte, err error) error {
	return errors.Wrap(errors.ErrCodeCascadeCheckpoint,
		fmt.Sprintf("%s failed: %s", step, strings.TrimSpace(string(out))), err).
		WithSuggestion("Run cadence from inside a git repository with a configured user.name and user.email")
}
