package calibration

import (
	"bytes"
	"context"
	"os/exec"
	"strconv"
	"strings"

	"github.com/felixgeelhaar/cadence/internal/log"
	"github.com/felixgeelhaar/cadence/internal/queue"
)

// History is the recent execution record shown to the reviewer
type History struct {
	Completed []queue.Subtask
	Pending   []queue.Subtask
	Commits   []string
}

type runFunc func(ctx context.Context, dir string, name string, args ...string) ([]byte, error)

func execRun(ctx context.Context, dir string, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	var out bytes.Buffer
	cmd.Stdout = &out
	err := cmd.Run()
	return out.Bytes(), err
}

// HistorySource collects history from the queue and the repository log
type HistorySource struct {
	repoDir string
	depth   int
	run     runFunc
	logger  *log.Logger
}

// NewHistorySource reads at most depth commits and completed subtasks
func NewHistorySource(repoDir string, depth int, logger *log.Logger) *HistorySource {
	if depth < 1 {
		depth = 20
	}
	return &HistorySource{
		repoDir: repoDir,
		depth:   depth,
		run:     execRun,
		logger:  log.OrDefault(logger).Component("calibration"),
	}
}

// Collect never fails: a repository without git history just yields no commits
func (h *HistorySource) Collect(ctx context.Context, q *queue.Queue) History {
	completed := q.Completed()
	if len(completed) > h.depth {
		completed = completed[len(completed)-h.depth:]
	}

	out, err := h.run(ctx, h.repoDir, "git", "log", "--oneline", "-n", strconv.Itoa(h.depth))
	var commits []string
	if err != nil {
		h.logger.WithError(err).Debug("git log unavailable, calibrating without commits")
	} else {
		for _, line := range strings.Split(string(out), "\n") {
			if line = strings.TrimSpace(line); line != "" {
				commits = append(commits, line)
			}
		}
	}

	return History{Completed: completed, Pending: q.Pending(), Commits: commits}
}
