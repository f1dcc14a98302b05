package cascade

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"mvdan.cc/sh/v3/shell"

	"github.com/felixgeelhaar/cadence/internal/errors"
	"github.com/felixgeelhaar/cadence/internal/gate"
)

// ExecContext is forwarded unchanged to every level executor
type ExecContext struct {
	Workflow string
	Provider string
	Model    string
}

// Executor does the work of one level
type Executor interface {
	Execute(ctx context.Context, level Level, ec ExecContext) error
}

// ExecutorFunc adapts a function to the Executor interface
type ExecutorFunc func(ctx context.Context, level Level, ec ExecContext) error

func (f ExecutorFunc) Execute(ctx context.Context, level Level, ec ExecContext) error {
	return f(ctx, level, ec)
}

// AwaitingApproval is returned by an executor whose level ran but whose
// output now waits behind a gate, such as calibration corrections staged
// under a manual correctionTasks policy. The runner stops with
// OutcomeAwaitingApproval instead of failing.
type AwaitingApproval struct {
	Gate          gate.Name
	FeedbackPath  string
	ResumeCommand string
}

func (a *AwaitingApproval) Error() string {
	return fmt.Sprintf("awaiting approval at gate %s", a.Gate)
}

// Dispatch routes each level to its own executor, falling back to Default
type Dispatch struct {
	ByLevel map[Level]Executor
	Default Executor
}

func (d *Dispatch) Execute(ctx context.Context, level Level, ec ExecContext) error {
	if e, ok := d.ByLevel[level]; ok {
		return e.Execute(ctx, level, ec)
	}
	if d.Default == nil {
		return errors.New(errors.ErrCodeCascadeExecutor, fmt.Sprintf("no executor for level %s", level))
	}
	return d.Default.Execute(ctx, level, ec)
}

// CommandExecutor runs the configured command of a level. Commands are
// split with shell word rules after expanding $CADENCE_* variables; no
// shell is spawned.
type CommandExecutor struct {
	commands map[Level]string
	dir      string
	stdout   io.Writer
	stderr   io.Writer
}

// NewCommandExecutor creates an executor running commands in dir
func NewCommandExecutor(commands map[Level]string, dir string, stdout, stderr io.Writer) *CommandExecutor {
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}
	return &CommandExecutor{commands: commands, dir: dir, stdout: stdout, stderr: stderr}
}

// Env returns the CADENCE_* variables a level command sees
func Env(level Level, ec ExecContext) map[string]string {
	return map[string]string{
		"CADENCE_LEVEL":    string(level),
		"CADENCE_WORKFLOW": ec.Workflow,
		"CADENCE_PROVIDER": ec.Provider,
		"CADENCE_MODEL":    ec.Model,
	}
}

// Argv expands and splits the command of level
func (c *CommandExecutor) Argv(level Level, ec ExecContext) ([]string, error) {
	command := strings.TrimSpace(c.commands[level])
	if command == "" {
		return nil, errors.New(errors.ErrCodeCascadeExecutor, fmt.Sprintf("no command configured for level %s", level)).
			WithSuggestion(fmt.Sprintf("Set levels.%s.command in .cadence/config.yaml", level))
	}

	vars := Env(level, ec)
	argv, err := shell.Fields(command, func(name string) string {
		if v, ok := vars[name]; ok {
			return v
		}
		return os.Getenv(name)
	})
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeConfigInvalid, fmt.Sprintf("cannot parse command of level %s", level), err)
	}
	if len(argv) == 0 {
		return nil, errors.New(errors.ErrCodeCascadeExecutor, fmt.Sprintf("command of level %s is empty", level))
	}
	return argv, nil
}

func (c *CommandExecutor) Execute(ctx context.Context, level Level, ec ExecContext) error {
	argv, err := c.Argv(level, ec)
	if err != nil {
		return err
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = c.dir
	cmd.Stdout = c.stdout
	cmd.Stderr = c.stderr
	cmd.Env = os.Environ()
	for k, v := range Env(level, ec) {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %w", strings.Join(argv, " "), err)
	}
	return nil
}
