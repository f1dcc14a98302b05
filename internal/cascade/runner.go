package cascade

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/felixgeelhaar/cadence/internal/checkpoint"
	"github.com/felixgeelhaar/cadence/internal/errors"
	"github.com/felixgeelhaar/cadence/internal/gate"
	"github.com/felixgeelhaar/cadence/internal/hooks"
	"github.com/felixgeelhaar/cadence/internal/log"
)

// Prompter asks a human to approve a level. tui.Prompter implements it.
type Prompter interface {
	Interactive() bool
	Approve(ctx context.Context, title, details string) (bool, error)
}

// Notifier fires hooks. hooks.Registry implements it.
type Notifier interface {
	Notify(ctx context.Context, eventType hooks.EventType, workflow string, data map[string]any)
}

// Checkpointer commits outstanding changes. checkpoint.GitCheckpointer implements it.
type Checkpointer interface {
	Checkpoint(ctx context.Context, message string) (bool, error)
}

// Outcome is how a run ended
type Outcome string

const (
	OutcomeCompleted        Outcome = "completed"
	OutcomeAborted          Outcome = "aborted"
	OutcomeAwaitingApproval Outcome = "awaiting-approval"
	OutcomeFailed           Outcome = "failed"
)

// Result describes a finished run. Checkpoint-and-exit is a result, not an
// error: the caller decides how to exit.
type Result struct {
	Completed []Level
	StoppedAt Level
	Err       error
	Success   bool
	Outcome   Outcome

	// Gate is the gate that stopped the run, if any
	Gate gate.Name

	// Committed is set when a checkpoint commit was made before the paused level
	Committed bool

	ResumeCommand string
	FeedbackPath  string
}

// Options wires a Runner
type Options struct {
	Workflow string
	Provider string
	Model    string
	Policies gate.Policies
	Force    bool
	Review   bool

	Executor     Executor
	Prompter     Prompter
	Notifier     Notifier
	Checkpointer Checkpointer
	Pauses       *checkpoint.Manager

	// FeedbackDir receives approval documents at checkpoint-and-exit stops
	FeedbackDir string
	Logger      *log.Logger
}

// Runner drives a cascade
type Runner struct {
	opts   Options
	logger *log.Logger
	now    func() time.Time
}

// NewRunner creates a runner
func NewRunner(opts Options) *Runner {
	if opts.Policies == nil {
		opts.Policies = gate.DefaultPolicies()
	}
	return &Runner{
		opts:   opts,
		logger: log.OrDefault(opts.Logger).Component("cascade").WithWorkflow(opts.Workflow),
		now:    time.Now,
	}
}

// Run executes from..to inclusive, evaluating each level's gate first
func (r *Runner) Run(ctx context.Context, from, to Level) *Result {
	result := &Result{}

	levels, err := Between(from, to)
	if err != nil {
		return r.fail(ctx, result, from, err)
	}

	ec := ExecContext{Workflow: r.opts.Workflow, Provider: r.opts.Provider, Model: r.opts.Model}
	flags := gate.Flags{Force: r.opts.Force, Review: r.opts.Review, TTY: r.interactive()}

	for _, level := range levels {
		if err := ctx.Err(); err != nil {
			return r.abort(result, level, err)
		}

		g := level.Gate()
		action := gate.Evaluate(g, r.opts.Policies, flags)
		r.logger.Debug("gate evaluated", "level", string(level), "gate", string(g), "action", string(action))

		switch action {
		case gate.Prompt:
			approved, err := r.approve(ctx, level, g)
			if err != nil {
				return r.abort(result, level, err)
			}
			if !approved {
				result.Gate = g
				return r.abort(result, level, errors.New(errors.ErrCodeCascadeRejected,
					fmt.Sprintf("level %s was rejected at gate %s", level, g)))
			}
		case gate.NotifyAndContinue:
			r.notify(ctx, hooks.EventGateNotify, map[string]any{
				"gate":  string(g),
				"level": string(level),
			})
		case gate.CheckpointAndExit:
			return r.pause(ctx, result, level, to, g, ec)
		}

		if err := r.execute(ctx, level, ec); err != nil {
			var pending *AwaitingApproval
			if stderrors.As(err, &pending) {
				return r.await(result, level, to, pending)
			}
			return r.fail(ctx, result, level, err)
		}
		result.Completed = append(result.Completed, level)
	}

	result.Success = true
	result.Outcome = OutcomeCompleted
	r.logger.Info("cascade completed", "from", string(from), "to", string(to))

	if r.opts.Pauses != nil {
		if err := r.opts.Pauses.Clear(); err != nil {
			r.logger.WithError(err).Warn("failed to clear pause state")
		}
	}
	r.notify(ctx, hooks.EventCascadeComplete, map[string]any{
		"from":      string(from),
		"to":        string(to),
		"completed": levelStrings(result.Completed),
	})
	return result
}

func (r *Runner) execute(ctx context.Context, level Level, ec ExecContext) error {
	if r.opts.Executor == nil {
		return errors.New(errors.ErrCodeCascadeExecutor, "no executor configured")
	}

	r.logger.Info("running level", "level", string(level))
	start := r.now()
	if err := r.opts.Executor.Execute(ctx, level, ec); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		var pending *AwaitingApproval
		if stderrors.As(err, &pending) {
			return err
		}
		if _, coded := errors.CodeOf(err); coded {
			return err
		}
		return errors.Wrap(errors.ErrCodeCascadeExecutor, fmt.Sprintf("level %s failed", level), err)
	}
	r.logger.Info("level finished", "level", string(level), "duration", r.now().Sub(start).String())
	return nil
}

// pause is the checkpoint-and-exit path: commit, run the level, then leave
// its output for a human together with the exact resume command.
func (r *Runner) pause(ctx context.Context, result *Result, level, to Level, g gate.Name, ec ExecContext) *Result {
	result.Gate = g

	if r.opts.Checkpointer != nil {
		committed, err := r.opts.Checkpointer.Checkpoint(ctx, fmt.Sprintf("cadence: checkpoint before %s", level))
		if err != nil {
			return r.fail(ctx, result, level, err)
		}
		result.Committed = committed
	}

	if err := r.execute(ctx, level, ec); err != nil {
		var pending *AwaitingApproval
		if stderrors.As(err, &pending) {
			return r.await(result, level, to, pending)
		}
		return r.fail(ctx, result, level, err)
	}
	result.Completed = append(result.Completed, level)

	next, hasNext := level.Next()
	if hasNext && level != to {
		result.ResumeCommand = ResumeCommand(next, to, r.opts.Provider, r.opts.Model)
	} else {
		next = ""
	}

	path, err := r.writeApproval(level, g, result)
	if err != nil {
		return r.fail(ctx, result, level, err)
	}
	result.FeedbackPath = path

	if r.opts.Pauses != nil {
		pause := &checkpoint.Pause{
			Workflow:      r.opts.Workflow,
			Level:         string(level),
			Gate:          string(g),
			Next:          string(next),
			Target:        string(to),
			Provider:      r.opts.Provider,
			Model:         r.opts.Model,
			Committed:     result.Committed,
			FeedbackPath:  path,
			ResumeCommand: result.ResumeCommand,
			CreatedAt:     r.now().UTC(),
		}
		if err := r.opts.Pauses.Save(pause); err != nil {
			return r.fail(ctx, result, level, err)
		}
	}

	result.StoppedAt = level
	result.Outcome = OutcomeAwaitingApproval
	r.logger.Info("awaiting approval", "level", string(level), "gate", string(g), "feedback", path)
	r.notify(ctx, hooks.EventApprovalRequired, map[string]any{
		"gate":     string(g),
		"level":    string(level),
		"feedback": path,
		"resume":   result.ResumeCommand,
	})
	return result
}

// await stops after a level whose executor left its output behind a gate.
// The executor has already notified; the runner only records the pause.
func (r *Runner) await(result *Result, level, to Level, pending *AwaitingApproval) *Result {
	result.Completed = append(result.Completed, level)
	result.StoppedAt = level
	result.Gate = pending.Gate
	result.FeedbackPath = pending.FeedbackPath
	result.ResumeCommand = pending.ResumeCommand
	result.Outcome = OutcomeAwaitingApproval

	if r.opts.Pauses != nil {
		var next Level
		if n, ok := level.Next(); ok && level != to {
			next = n
		}
		pause := &checkpoint.Pause{
			Workflow:      r.opts.Workflow,
			Level:         string(level),
			Gate:          string(pending.Gate),
			Next:          string(next),
			Target:        string(to),
			Provider:      r.opts.Provider,
			Model:         r.opts.Model,
			FeedbackPath:  pending.FeedbackPath,
			ResumeCommand: pending.ResumeCommand,
			CreatedAt:     r.now().UTC(),
		}
		if err := r.opts.Pauses.Save(pause); err != nil {
			r.logger.WithError(err).Warn("failed to save pause state")
		}
	}

	r.logger.Info("awaiting approval", "level", string(level), "gate", string(pending.Gate), "feedback", pending.FeedbackPath)
	return result
}

func (r *Runner) writeApproval(level Level, g gate.Name, result *Result) (string, error) {
	dir := r.opts.FeedbackDir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", errors.Wrap(errors.ErrCodeDirectoryFailed, "create feedback directory", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Approval required: %s\n\n", level)
	fmt.Fprintf(&b, "- **Gate:** %s\n", g)
	fmt.Fprintf(&b, "- **Workflow:** %s\n", r.opts.Workflow)
	fmt.Fprintf(&b, "- **Paused:** %s\n", r.now().UTC().Format(time.RFC3339))
	if result.Committed {
		b.WriteString("- **Checkpoint:** prior changes were committed; the diff below is this level's output\n")
	}
	b.WriteString("\nReview the output of this level with `git diff`.\n\n")

	b.WriteString("## Approve\n\n")
	if result.ResumeCommand != "" {
		fmt.Fprintf(&b, "Continue the cascade:\n\n```\n%s\n```\n\n", result.ResumeCommand)
	} else {
		b.WriteString("This was the last requested level. Commit the changes; nothing needs resuming.\n\n")
	}
	b.WriteString("## Reject\n\n")
	b.WriteString("Discard the level's output with `git checkout -- . && git clean -fd`, then re-run the level or stop here.\n\n")
	b.WriteString("## Modify\n\n")
	b.WriteString("Edit the generated files by hand, then approve as above.\n")

	path := filepath.Join(dir, fmt.Sprintf("approval-%s.md", level))
	if err := os.WriteFile(path, []byte(b.String()), 0600); err != nil {
		return "", errors.Wrap(errors.ErrCodeFileWriteFailed, "write approval document", err)
	}
	return path, nil
}

func (r *Runner) abort(result *Result, level Level, err error) *Result {
	result.StoppedAt = level
	result.Err = err
	result.Outcome = OutcomeAborted
	r.logger.Warn("cascade aborted", "level", string(level), "error", err.Error())
	return result
}

func (r *Runner) fail(ctx context.Context, result *Result, level Level, err error) *Result {
	if ctx.Err() != nil && err == ctx.Err() {
		return r.abort(result, level, err)
	}
	result.StoppedAt = level
	result.Err = err
	result.Outcome = OutcomeFailed
	r.logger.WithError(err).Error("cascade failed", "level", string(level))
	r.notify(ctx, hooks.EventCascadeFailed, map[string]any{
		"level": string(level),
		"error": err.Error(),
	})
	return result
}

// approve asks the prompter. Without one the answer is no.
func (r *Runner) approve(ctx context.Context, level Level, g gate.Name) (bool, error) {
	if r.opts.Prompter == nil {
		return false, nil
	}
	return r.opts.Prompter.Approve(ctx,
		fmt.Sprintf("Run %s?", level),
		fmt.Sprintf("Gate %s requires approval before %s runs.", g, level))
}

func (r *Runner) interactive() bool {
	return r.opts.Prompter != nil && r.opts.Prompter.Interactive()
}

func (r *Runner) notify(ctx context.Context, t hooks.EventType, data map[string]any) {
	if r.opts.Notifier == nil {
		return
	}
	r.opts.Notifier.Notify(ctx, t, r.opts.Workflow, data)
}

// ResumeCommand is the command that continues a paused cascade at next
func ResumeCommand(next, to Level, provider, model string) string {
	parts := []string{"cadence", "cascade", "--from", string(next), "--to", string(to)}
	if provider != "" {
		parts = append(parts, "--provider", provider)
	}
	if model != "" {
		parts = append(parts, "--model", model)
	}
	return strings.Join(parts, " ")
}

func levelStrings(levels []Level) []string {
	out := make([]string, len(levels))
	for i, l := range levels {
		out[i] = string(l)
	}
	return out
}
