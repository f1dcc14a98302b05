// Package calibration asks the reviewer whether a run has drifted from its
// plan and turns the corrective subtasks it suggests into a proposal.
package calibration

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/felixgeelhaar/cadence/internal/audit"
	"github.com/felixgeelhaar/cadence/internal/cascade"
	"github.com/felixgeelhaar/cadence/internal/gate"
	"github.com/felixgeelhaar/cadence/internal/hooks"
	"github.com/felixgeelhaar/cadence/internal/log"
	"github.com/felixgeelhaar/cadence/internal/proposal"
	"github.com/felixgeelhaar/cadence/internal/queue"
	"github.com/felixgeelhaar/cadence/internal/reviewer"
	"github.com/felixgeelhaar/cadence/internal/tui"
)

// Prompter asks a human to approve the corrections
type Prompter interface {
	Interactive() bool
	Confirm(ctx context.Context, question string, defaultValue bool) (bool, error)
}

// Notifier fires hooks
type Notifier interface {
	Notify(ctx context.Context, eventType hooks.EventType, workflow string, data map[string]any)
}

// Options wires a Calibrator
type Options struct {
	Workflow string
	Reviewer reviewer.Reviewer
	Timeout  time.Duration
	History  *HistorySource
	Store    *proposal.Store

	// Insert is used when the reviewer does not name a mode
	Insert Insert

	Policies gate.Policies
	Force    bool
	Review   bool
	Prompter Prompter
	Notifier Notifier
	Audit    *audit.Logger
	Out      io.Writer
	Logger   *log.Logger
}

// Calibrator runs calibration passes
type Calibrator struct {
	opts   Options
	logger *log.Logger
}

// New creates a calibrator
func New(opts Options) *Calibrator {
	if opts.Insert == "" {
		opts.Insert = Prepend
	}
	if opts.Policies == nil {
		opts.Policies = gate.DefaultPolicies()
	}
	if opts.Out == nil {
		opts.Out = io.Discard
	}
	return &Calibrator{
		opts:   opts,
		logger: log.OrDefault(opts.Logger).Component("calibration").WithWorkflow(opts.Workflow),
	}
}

// Result is the outcome of one pass
type Result struct {
	DriftDetected bool    `json:"driftDetected"`
	Summary       string  `json:"summary"`
	Insert        Insert  `json:"insert,omitempty"`
	Dropped       int     `json:"dropped"`
	FailOpen      bool    `json:"failOpen"`
	CostUSD       float64 `json:"costUsd"`

	Proposal     *queue.Proposal       `json:"proposal,omitempty"`
	Action       gate.Action           `json:"action,omitempty"`
	Apply        *proposal.ApplyResult `json:"apply,omitempty"`
	ArtifactPath string                `json:"artifactPath,omitempty"`
	ApplyCommand string                `json:"applyCommand,omitempty"`
}

// Execute runs a pass as the calibrate level of a cascade. Corrections staged
// behind the correctionTasks gate stop the cascade as awaiting approval.
func (c *Calibrator) Execute(ctx context.Context, _ cascade.Level, _ cascade.ExecContext) error {
	res, err := c.Calibrate(ctx)
	if err != nil {
		return err
	}
	if res.Action == gate.CheckpointAndExit {
		return &cascade.AwaitingApproval{
			Gate:          gate.CorrectionTasks,
			FeedbackPath:  res.ArtifactPath,
			ResumeCommand: res.ApplyCommand,
		}
	}
	return nil
}

// Calibrate runs one pass. Reviewer trouble resolves to "no drift found";
// only queue errors and cancellation are returned.
func (c *Calibrator) Calibrate(ctx context.Context) (*Result, error) {
	q, err := c.opts.Store.LoadQueue()
	if err != nil {
		return nil, err
	}

	var history History
	if c.opts.History != nil {
		history = c.opts.History.Collect(ctx, q)
	} else {
		history = History{Completed: q.Completed(), Pending: q.Pending()}
	}

	result := &Result{}
	report, err := c.review(ctx, history, result)
	if err != nil {
		return nil, err
	}

	result.DriftDetected = report.DriftDetected
	result.Summary = report.Summary

	drafts := c.validDrafts(report.Corrective)
	result.Dropped = len(report.Corrective) - len(drafts)

	if report.DriftDetected && len(drafts) > 0 {
		result.Insert = report.Insert
		if result.Insert == "" {
			result.Insert = c.opts.Insert
		}

		ops := CreateOperations(drafts, result.Insert, q.Len())
		result.Proposal = queue.NewProposal(q, queue.SourceCalibration, ops)

		path, err := c.opts.Store.Propose(ctx, result.Proposal)
		if err != nil {
			c.record(result)
			return result, err
		}
		result.ArtifactPath = path

		c.logger.Info("drift detected",
			"corrections", len(ops),
			"insert", string(result.Insert))
		c.notify(ctx, hooks.EventCalibrationDrift, map[string]any{
			"summary":     result.Summary,
			"corrections": len(ops),
			"insert":      string(result.Insert),
		})

		if err := c.route(ctx, result); err != nil {
			c.record(result)
			return result, err
		}
	} else {
		c.logger.Info("no drift found")
	}

	c.record(result)
	return result, nil
}

func (c *Calibrator) review(ctx context.Context, h History, result *Result) (*Report, error) {
	reply, err := reviewer.Invoke(ctx, c.opts.Reviewer, BuildPrompt(h), c.opts.Timeout)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		result.FailOpen = true
		c.logger.WithError(err).Warn("reviewer failed, assuming no drift")
		return &Report{Summary: "calibration skipped: reviewer unavailable"}, nil
	}
	result.CostUSD = reply.CostUSD

	report, err := ParseReport(reply.Text)
	if err != nil {
		result.FailOpen = true
		c.logger.WithError(err).Warn("unreadable calibration reply, assuming no drift")
		return &Report{Summary: "calibration skipped: unreadable reviewer reply"}, nil
	}
	return report, nil
}

func (c *Calibrator) validDrafts(drafts []queue.Draft) []queue.Draft {
	valid := make([]queue.Draft, 0, len(drafts))
	for i, d := range drafts {
		if err := d.Validate(); err != nil {
			c.logger.WithError(err).Warn("dropping corrective subtask", "position", i, "title", d.Title)
			continue
		}
		valid = append(valid, d)
	}
	return valid
}

// route takes the corrections through the correctionTasks gate
func (c *Calibrator) route(ctx context.Context, result *Result) error {
	p := result.Proposal
	action := gate.Evaluate(gate.CorrectionTasks, c.opts.Policies, gate.Flags{
		Force:  c.opts.Force,
		Review: c.opts.Review,
		TTY:    c.opts.Prompter != nil && c.opts.Prompter.Interactive(),
	})
	result.Action = action

	switch action {
	case gate.NotifyAndContinue:
		c.notify(ctx, hooks.EventGateNotify, map[string]any{
			"gate":        string(gate.CorrectionTasks),
			"proposal_id": p.ID,
			"corrections": len(p.Operations),
		})

	case gate.Prompt:
		fmt.Fprintf(c.opts.Out, "%s\n\n", result.Summary)
		if q, err := c.opts.Store.LoadQueue(); err == nil {
			if diff, err := proposal.Preview(q, p); err == nil {
				fmt.Fprintln(c.opts.Out, tui.DiffView(diff))
			}
		}
		ok := false
		if c.opts.Prompter != nil {
			var err error
			ok, err = c.opts.Prompter.Confirm(ctx,
				fmt.Sprintf("Add %d corrective subtask(s) to the queue?", len(p.Operations)), false)
			if err != nil {
				return err
			}
		}
		if !ok {
			c.logger.Info("corrections rejected", "proposal", p.ID)
			return nil
		}

	case gate.CheckpointAndExit:
		path := result.ArtifactPath
		result.ApplyCommand = "cadence queue apply " + path
		c.notify(ctx, hooks.EventApprovalRequired, map[string]any{
			"gate":     string(gate.CorrectionTasks),
			"artifact": path,
			"command":  result.ApplyCommand,
		})
		fmt.Fprintf(c.opts.Out, "Corrective subtasks staged for approval: %s\nApply them with: %s\n", path, result.ApplyCommand)
		return nil
	}

	res, err := c.opts.Store.Apply(ctx, p)
	if err != nil {
		return err
	}
	result.Apply = res
	return nil
}

func (c *Calibrator) record(result *Result) {
	if c.opts.Audit == nil {
		return
	}

	fields := map[string]any{
		"driftDetected": result.DriftDetected,
		"summary":       result.Summary,
		"failOpen":      result.FailOpen,
		"costUsd":       result.CostUSD,
		"dropped":       result.Dropped,
	}
	if result.Proposal != nil {
		fields["proposalId"] = result.Proposal.ID
		fields["corrections"] = len(result.Proposal.Operations)
		fields["insert"] = string(result.Insert)
		fields["action"] = string(result.Action)
	}
	if result.Apply != nil {
		fields["applied"] = result.Apply.Applied
	}
	if result.ArtifactPath != "" {
		fields["artifact"] = result.ArtifactPath
	}

	if _, err := c.opts.Audit.Record(audit.TypeCalibration, fields); err != nil {
		c.logger.WithError(err).Warn("failed to write audit record")
	}
}

func (c *Calibrator) notify(ctx context.Context, t hooks.EventType, data map[string]any) {
	if c.opts.Notifier == nil {
		return
	}
	c.opts.Notifier.Notify(ctx, t, c.opts.Workflow, data)
}
