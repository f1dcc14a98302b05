// Package validation asks the reviewer whether pending subtasks are faithful
// to their parent task and story, and turns rejections into a single
// fingerprint-stamped removal proposal.
package validation

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/felixgeelhaar/cadence/internal/audit"
	"github.com/felixgeelhaar/cadence/internal/config"
	"github.com/felixgeelhaar/cadence/internal/domain"
	"github.com/felixgeelhaar/cadence/internal/gate"
	"github.com/felixgeelhaar/cadence/internal/hooks"
	"github.com/felixgeelhaar/cadence/internal/log"
	"github.com/felixgeelhaar/cadence/internal/proposal"
	"github.com/felixgeelhaar/cadence/internal/queue"
	"github.com/felixgeelhaar/cadence/internal/reviewer"
	"github.com/felixgeelhaar/cadence/internal/tui"
)

// Choices offered to a supervising human for a misaligned subtask
const (
	ChoiceSkip     = "skip"
	ChoiceContinue = "continue"
)

// Prompter asks a supervising human. tui.Prompter implements it.
type Prompter interface {
	Interactive() bool
	Choose(ctx context.Context, question string, options []string, defaultValue string) (string, error)
	Confirm(ctx context.Context, question string, defaultValue bool) (bool, error)
}

// Notifier fires hooks. hooks.Registry implements it.
type Notifier interface {
	Notify(ctx context.Context, eventType hooks.EventType, workflow string, data map[string]any)
}

// Options wires a Validator to its collaborators
type Options struct {
	Workflow     string
	Mode         string
	Reviewer     reviewer.Reviewer
	Timeout      time.Duration
	Resolver     *ParentResolver
	Store        *proposal.Store
	SkipListPath string
	FeedbackDir  string
	Policies     gate.Policies
	Force        bool
	Review       bool
	Prompter     Prompter
	Notifier     Notifier
	Audit        *audit.Logger
	Out          io.Writer
	Logger       *log.Logger
}

// Validator runs validation batches for one workflow
type Validator struct {
	opts   Options
	logger *log.Logger
	now    func() time.Time
}

// New creates a validator. Mode defaults to headless.
func New(opts Options) *Validator {
	if opts.Mode == "" {
		opts.Mode = config.ModeHeadless
	}
	if opts.Policies == nil {
		opts.Policies = gate.DefaultPolicies()
	}
	if opts.Out == nil {
		opts.Out = io.Discard
	}
	return &Validator{
		opts:   opts,
		logger: log.OrDefault(opts.Logger).Component("validation").WithWorkflow(opts.Workflow),
		now:    time.Now,
	}
}

// Summary is the outcome of one batch
type Summary struct {
	Total   int              `json:"total"`
	Aligned int              `json:"aligned"`
	Kept    int              `json:"kept"`
	Skipped []SkippedSubtask `json:"skipped"`

	// Success is false when anything was skipped
	Success bool `json:"success"`

	// FailOpen counts reviewer failures and unreadable replies treated as aligned
	FailOpen int     `json:"failOpen"`
	CostUSD  float64 `json:"costUsd"`

	Proposal     *queue.Proposal       `json:"proposal,omitempty"`
	Action       gate.Action           `json:"action,omitempty"`
	Apply        *proposal.ApplyResult `json:"apply,omitempty"`
	ArtifactPath string                `json:"artifactPath,omitempty"`
	ApplyCommand string                `json:"applyCommand,omitempty"`

	// QueueChanged is set when another writer touched the queue during the batch
	QueueChanged bool `json:"queueChanged"`
}

// SkippedIDs lists the ids of skipped subtasks
func (s *Summary) SkippedIDs() []domain.SubtaskID {
	ids := make([]domain.SubtaskID, 0, len(s.Skipped))
	for _, sk := range s.Skipped {
		ids = append(ids, sk.ID)
	}
	return ids
}

// ValidateBatch reviews the pending subtasks named by ids, or every pending
// subtask when ids is empty. Reviewer trouble never fails the batch; an
// invariant violation while applying the removal proposal does.
func (v *Validator) ValidateBatch(ctx context.Context, ids []domain.SubtaskID) (*Summary, error) {
	snapshot, err := v.opts.Store.LoadQueue()
	if err != nil {
		return nil, err
	}

	batch := v.selectBatch(snapshot, ids)
	summary := &Summary{Total: len(batch)}

	watcher, err := proposal.Watch(ctx, v.opts.Store.QueuePath())
	if err != nil {
		v.logger.WithError(err).Debug("queue watch unavailable")
	} else {
		defer watcher.Close()
	}

	var ops []queue.Operation
	for _, s := range batch {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		verdict, err := v.review(ctx, s, summary)
		if err != nil {
			return summary, err
		}
		m, misaligned := verdict.(Misaligned)
		if !misaligned {
			summary.Aligned++
			continue
		}

		skip, err := v.decide(ctx, s, m)
		if err != nil {
			return summary, err
		}
		if !skip {
			summary.Kept++
			continue
		}

		skipped, err := v.skip(ctx, s, m)
		if err != nil {
			return summary, err
		}
		summary.Skipped = append(summary.Skipped, skipped)
		ops = append(ops, queue.Remove(s.ID))
	}

	if watcher != nil && watcher.Changed() {
		summary.QueueChanged = true
		v.logger.Warn("queue file changed during validation; the removal proposal may be stale")
	}

	if len(summary.Skipped) > 0 {
		if err := v.persistSkips(summary.Skipped); err != nil {
			v.logger.WithError(err).Warn("failed to update skip list")
		}
	}

	if len(ops) > 0 {
		summary.Proposal = queue.NewProposal(snapshot, queue.SourceValidation, ops)
		path, err := v.opts.Store.Propose(ctx, summary.Proposal)
		if err != nil {
			v.record(summary)
			return summary, err
		}
		summary.ArtifactPath = path

		if err := v.route(ctx, summary); err != nil {
			v.record(summary)
			return summary, err
		}
	}

	summary.Success = len(summary.Skipped) == 0
	v.record(summary)
	return summary, nil
}

func (v *Validator) selectBatch(q *queue.Queue, ids []domain.SubtaskID) []queue.Subtask {
	if len(ids) == 0 {
		return q.Pending()
	}

	var batch []queue.Subtask
	for _, id := range ids {
		s, ok := q.Find(id)
		switch {
		case !ok:
			v.logger.Warn("subtask not in queue, skipping", "subtask", string(id))
		case s.Done:
			v.logger.Warn("subtask already completed, skipping", "subtask", string(id))
		default:
			batch = append(batch, s)
		}
	}
	return batch
}

// review asks the reviewer about s. Reviewer failures and unreadable replies
// resolve to Aligned with a warning; only cancellation is returned.
func (v *Validator) review(ctx context.Context, s queue.Subtask, summary *Summary) (Verdict, error) {
	var parents *Parents
	if v.opts.Resolver != nil {
		p, err := v.opts.Resolver.Resolve(s)
		if err != nil {
			v.logger.WithError(err).Warn("failed to resolve parent task", "subtask", string(s.ID))
		} else {
			parents = p
		}
	}

	reply, err := reviewer.Invoke(ctx, v.opts.Reviewer, BuildPrompt(s, parents), v.opts.Timeout)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		summary.FailOpen++
		v.logger.WithError(err).Warn("reviewer failed, treating subtask as aligned", "subtask", string(s.ID))
		return Aligned{}, nil
	}
	summary.CostUSD += reply.CostUSD

	resolved, failed := Resolve(ParseVerdict(reply.Text))
	if failed {
		summary.FailOpen++
		v.logger.Warn("unreadable reviewer reply, treating subtask as aligned",
			"subtask", string(s.ID),
			"reply", truncate(reply.Text, 200))
	}
	if m, ok := resolved.(Misaligned); ok && !m.IssueType.Known() {
		v.logger.Warn("reviewer used an unknown issue type", "subtask", string(s.ID), "issue_type", string(m.IssueType))
	}
	return resolved, nil
}

// decide reports whether a misaligned subtask should be skipped. Only a
// supervised run on a terminal asks; everything else skips.
func (v *Validator) decide(ctx context.Context, s queue.Subtask, m Misaligned) (bool, error) {
	if v.opts.Mode != config.ModeSupervised || !v.interactive() {
		return true, nil
	}

	fmt.Fprintln(v.opts.Out, tui.VerdictView(tui.VerdictInfo{
		SubtaskID:  string(s.ID),
		Title:      s.Title,
		IssueType:  string(m.IssueType),
		Reason:     m.Reason,
		Suggestion: m.Suggestion,
	}))

	choice, err := v.opts.Prompter.Choose(ctx,
		fmt.Sprintf("Skip %s (propose removal) or continue with it?", s.ID),
		[]string{ChoiceSkip, ChoiceContinue}, ChoiceSkip)
	if err != nil {
		return false, err
	}
	return choice != ChoiceContinue, nil
}

func (v *Validator) skip(ctx context.Context, s queue.Subtask, m Misaligned) (SkippedSubtask, error) {
	now := v.now()
	skipped := SkippedSubtask{
		ID:         s.ID,
		Title:      s.Title,
		IssueType:  m.IssueType,
		Reason:     m.Reason,
		Suggestion: m.Suggestion,
		SkippedAt:  now.UTC(),
	}

	path, err := WriteFeedback(v.opts.FeedbackDir, s, m, now)
	if err != nil {
		return skipped, err
	}
	skipped.FeedbackPath = path

	v.logger.Info("subtask skipped",
		"subtask", string(s.ID),
		"issue_type", string(m.IssueType),
		"feedback", path)

	v.notify(ctx, hooks.EventValidationFailed, map[string]any{
		"subtask_id": string(s.ID),
		"title":      s.Title,
		"issue_type": string(m.IssueType),
		"reason":     m.Reason,
		"feedback":   path,
	})
	return skipped, nil
}

func (v *Validator) persistSkips(skipped []SkippedSubtask) error {
	if v.opts.SkipListPath == "" {
		return nil
	}
	list, err := LoadSkipList(v.opts.SkipListPath)
	if err != nil {
		return err
	}
	list.Merge(skipped)
	return list.Save()
}

// route takes the removal proposal through the applyValidation gate
func (v *Validator) route(ctx context.Context, summary *Summary) error {
	p := summary.Proposal
	action := gate.Evaluate(gate.ApplyValidation, v.opts.Policies, gate.Flags{
		Force:  v.opts.Force,
		Review: v.opts.Review,
		TTY:    v.interactive(),
	})
	summary.Action = action
	v.logger.Debug("gate evaluated", "gate", string(gate.ApplyValidation), "action", string(action))

	switch action {
	case gate.NotifyAndContinue:
		v.notify(ctx, hooks.EventGateNotify, map[string]any{
			"gate":        string(gate.ApplyValidation),
			"proposal_id": p.ID,
			"removals":    strings.Join(idStrings(summary.SkippedIDs()), ","),
		})
		return v.apply(ctx, summary)

	case gate.Prompt:
		if q, err := v.opts.Store.LoadQueue(); err == nil {
			if diff, err := proposal.Preview(q, p); err == nil {
				fmt.Fprintln(v.opts.Out, tui.DiffView(diff))
			} else {
				v.logger.WithError(err).Warn("cannot preview validation proposal")
			}
		}
		ok := false
		if v.opts.Prompter != nil {
			var err error
			ok, err = v.opts.Prompter.Confirm(ctx,
				fmt.Sprintf("Remove %d subtask(s) from the queue?", len(p.Operations)), false)
			if err != nil {
				return err
			}
		}
		if !ok {
			v.logger.Info("validation proposal rejected", "proposal", p.ID)
			return nil
		}
		return v.apply(ctx, summary)

	case gate.CheckpointAndExit:
		path := summary.ArtifactPath
		summary.ApplyCommand = "cadence queue apply " + path
		v.notify(ctx, hooks.EventApprovalRequired, map[string]any{
			"gate":     string(gate.ApplyValidation),
			"artifact": path,
			"command":  summary.ApplyCommand,
		})
		fmt.Fprintf(v.opts.Out, "Validation proposal staged for approval: %s\nApply it with: %s\n", path, summary.ApplyCommand)
		return nil

	default:
		return v.apply(ctx, summary)
	}
}

func (v *Validator) apply(ctx context.Context, summary *Summary) error {
	res, err := v.opts.Store.Apply(ctx, summary.Proposal)
	if err != nil {
		return err
	}
	summary.Apply = res
	return nil
}

func (v *Validator) record(summary *Summary) {
	if v.opts.Audit == nil {
		return
	}

	fields := map[string]any{
		"mode":     v.opts.Mode,
		"total":    summary.Total,
		"aligned":  summary.Aligned,
		"kept":     summary.Kept,
		"skipped":  idStrings(summary.SkippedIDs()),
		"success":  summary.Success,
		"failOpen": summary.FailOpen,
		"costUsd":  summary.CostUSD,
	}
	if summary.Proposal != nil {
		fields["proposalId"] = summary.Proposal.ID
		fields["action"] = string(summary.Action)
	}
	if summary.Apply != nil {
		fields["applied"] = summary.Apply.Applied
	}
	if summary.ArtifactPath != "" {
		fields["artifact"] = summary.ArtifactPath
	}

	if _, err := v.opts.Audit.Record(audit.TypeValidation, fields); err != nil {
		v.logger.WithError(err).Warn("failed to write audit record")
	}
}

func (v *Validator) interactive() bool {
	return v.opts.Prompter != nil && v.opts.Prompter.Interactive()
}

func (v *Validator) notify(ctx context.Context, t hooks.EventType, data map[string]any) {
	if v.opts.Notifier == nil {
		return
	}
	v.opts.Notifier.Notify(ctx, t, v.opts.Workflow, data)
}

func idStrings(ids []domain.SubtaskID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
