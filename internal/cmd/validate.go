package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/cadence/internal/config"
	"github.com/felixgeelhaar/cadence/internal/domain"
	"github.com/felixgeelhaar/cadence/internal/exitcode"
	"github.com/felixgeelhaar/cadence/internal/gate"
	"github.com/felixgeelhaar/cadence/internal/reviewer"
	"github.com/felixgeelhaar/cadence/internal/tui"
	"github.com/felixgeelhaar/cadence/internal/validation"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Review pending subtasks against their parent task and story",
	Long: `Ask the reviewer whether each pending subtask is faithful to its parent task
and story. Misaligned subtasks are skipped: a feedback file is written for
each, the skip list is updated and a removal proposal is routed through the
applyValidation approval gate.

Reviewer failures and unreadable replies count as aligned.

Examples:
  cadence validate
  cadence validate --ids SUB-004,SUB-007
  cadence validate --mode supervised`,
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().String("mode", "", "headless or supervised (default from config)")
	validateCmd.Flags().StringSlice("ids", nil, "subtask ids to validate (default: all pending)")
	validateCmd.Flags().Bool("force", false, "apply removals without any approval gate")
	validateCmd.Flags().Bool("review", false, "ask before applying removals")
	validateCmd.Flags().Bool("json", false, "print the summary as JSON")
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, _ []string) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	cfg := cmdCtx.Config

	mode, _ := cmd.Flags().GetString("mode")
	rawIDs, _ := cmd.Flags().GetStringSlice("ids")
	force, _ := cmd.Flags().GetBool("force")
	review, _ := cmd.Flags().GetBool("review")
	asJSON, _ := cmd.Flags().GetBool("json")

	if mode == "" {
		mode = cfg.Validation.Mode
	}
	if mode != config.ModeHeadless && mode != config.ModeSupervised {
		return fmt.Errorf("invalid --mode %q: must be headless or supervised", mode)
	}

	ids, err := parseIDs(rawIDs)
	if err != nil {
		return err
	}

	rev, err := reviewer.New(cfg.Reviewer)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON {
		out = io.Discard
	}

	v := validation.New(validation.Options{
		Workflow:     cfg.Workflow,
		Mode:         mode,
		Reviewer:     rev,
		Timeout:      cfg.Reviewer.Timeout,
		Resolver:     validation.NewParentResolver(cmdCtx.Paths.TasksDir(), cmdCtx.Paths.StoriesDir()),
		Store:        cmdCtx.Store,
		SkipListPath: cmdCtx.Paths.SkipListFile(),
		FeedbackDir:  cmdCtx.Paths.FeedbackDir(),
		Policies:     cfg.Policies(),
		Force:        force,
		Review:       review,
		Prompter:     cmdCtx.Prompter,
		Notifier:     cmdCtx.Hooks,
		Audit:        cmdCtx.Audit,
		Out:          out,
		Logger:       cmdCtx.Logger,
	})

	summary, err := v.ValidateBatch(cmd.Context(), ids)
	if err != nil {
		return err
	}

	if asJSON {
		if err := writeJSON(cmd.OutOrStdout(), summary); err != nil {
			return err
		}
	} else {
		printValidation(cmd.OutOrStdout(), summary)
	}

	if summary.Action == gate.CheckpointAndExit {
		fmt.Fprintln(cmd.ErrOrStderr(), tui.ApprovalBanner(tui.BannerInfo{
			Level:         "validate",
			Gate:          string(gate.ApplyValidation),
			FeedbackPath:  summary.ArtifactPath,
			ResumeCommand: summary.ApplyCommand,
		}))
		return exitcode.NewSilentError(exitcode.ApprovalRequired)
	}
	if !summary.Success {
		return exitcode.NewSilentError(exitcode.ValidationSkipped)
	}
	return nil
}

func parseIDs(raw []string) ([]domain.SubtaskID, error) {
	var ids []domain.SubtaskID
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		id, err := domain.NewSubtaskID(strings.ToUpper(r))
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func printValidation(w io.Writer, s *validation.Summary) {
	fmt.Fprintf(w, "Validated %d subtask(s): %d aligned, %d kept, %d skipped\n",
		s.Total, s.Aligned, s.Kept, len(s.Skipped))
	if s.FailOpen > 0 {
		fmt.Fprintf(w, "  %d reviewer failure(s) treated as aligned\n", s.FailOpen)
	}
	for _, sk := range s.Skipped {
		fmt.Fprintf(w, "  ✗ %s %s (%s)\n    %s\n", sk.ID, sk.Title, sk.IssueType, sk.FeedbackPath)
	}
	if s.CostUSD > 0 {
		fmt.Fprintf(w, "  Reviewer cost: $%.4f\n", s.CostUSD)
	}

	switch {
	case s.QueueChanged && s.Apply != nil && s.Apply.Stale:
		fmt.Fprintln(w, "Queue changed during validation; removals not applied. Skips still take effect.")
	case s.Apply != nil && s.Apply.Applied:
		fmt.Fprintf(w, "Applied removals: %d → %d subtasks\n", s.Apply.CountBefore, s.Apply.CountAfter)
	case s.Action == gate.CheckpointAndExit:
		fmt.Fprintf(w, "Removal proposal staged: %s\n", s.ArtifactPath)
	case s.Proposal != nil:
		fmt.Fprintf(w, "Removals not applied; proposal kept at %s\n", s.ArtifactPath)
	}
}
