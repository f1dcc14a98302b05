package reviewer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/felixgeelhaar/cadence/internal/errors"
)

// ExecutableReviewer runs a CLI with the prompt on stdin and reads the reply
// from stdout. Agent CLIs that print a JSON envelope such as
// {"result": "...", "total_cost_usd": 0.01} are unwrapped.
type ExecutableReviewer struct {
	path  string
	args  []string
	model string
}

// envelope is the --output-format json shape of agent CLIs
type envelope struct {
	Result       *string `json:"result"`
	TotalCostUSD float64 `json:"total_cost_usd"`
	Model        string  `json:"model"`
	IsError      bool    `json:"is_error"`
}

// NewExecutableReviewer creates a reviewer for argv. The executable must be on PATH.
func NewExecutableReviewer(argv []string, model string) (*ExecutableReviewer, error) {
	if len(argv) == 0 || argv[0] == "" {
		return nil, errors.NewReviewerConfigError("executable reviewer needs a command")
	}
	path, err := exec.LookPath(argv[0])
	if err != nil {
		return nil, errors.NewReviewerConfigError(fmt.Sprintf("executable not found: %s", argv[0])).
			WithSuggestion("Install the reviewer CLI or set reviewer.command in .cadence/config.yaml")
	}
	return &ExecutableReviewer{
		path:  path,
		args:  append([]string(nil), argv[1:]...),
		model: model,
	}, nil
}

// Review implements Reviewer
func (e *ExecutableReviewer) Review(ctx context.Context, prompt string) (*Reply, error) {
	start := time.Now()

	cmd := exec.CommandContext(ctx, e.path, e.args...)
	cmd.Stdin = strings.NewReader(prompt)
	cmd.Env = os.Environ()
	if e.model != "" {
		cmd.Env = append(cmd.Env, "CADENCE_REVIEW_MODEL="+e.model)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("reviewer exited: %w (stderr: %s)", err, strings.TrimSpace(stderr.String()))
	}

	reply := &Reply{
		Text:     stdout.String(),
		Duration: time.Since(start),
		Model:    e.model,
	}

	var env envelope
	if json.Unmarshal(bytes.TrimSpace(stdout.Bytes()), &env) == nil && env.Result != nil {
		if env.IsError {
			return nil, fmt.Errorf("reviewer reported an error: %s", *env.Result)
		}
		reply.Text = *env.Result
		reply.CostUSD = env.TotalCostUSD
		if env.Model != "" {
			reply.Model = env.Model
		}
	}

	return reply, nil
}
