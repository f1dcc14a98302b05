package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/cadence/internal/calibration"
	"github.com/felixgeelhaar/cadence/internal/exitcode"
	"github.com/felixgeelhaar/cadence/internal/gate"
	"github.com/felixgeelhaar/cadence/internal/reviewer"
	"github.com/felixgeelhaar/cadence/internal/tui"
)

var calibrateCmd = &cobra.Command{
	Use:   "calibrate",
	Short: "Check recent work against the remaining plan for drift",
	Long: `Show the reviewer the recently completed subtasks, the recent commit log
and the pending queue, and ask whether the plan has drifted from reality.

When drift is found the corrective subtasks become a proposal routed through
the correctionTasks approval gate. Reviewer failures count as "no drift".

Examples:
  cadence calibrate
  cadence calibrate --insert append
  cadence calibrate --review --json`,
	RunE: runCalibrate,
}

func init() {
	calibrateCmd.Flags().String("insert", "", "where corrective subtasks go when the reviewer does not say: prepend or append")
	calibrateCmd.Flags().Bool("force", false, "apply corrections without any approval gate")
	calibrateCmd.Flags().Bool("review", false, "ask before applying corrections")
	calibrateCmd.Flags().Bool("json", false, "print the result as JSON")
	rootCmd.AddCommand(calibrateCmd)
}

func runCalibrate(cmd *cobra.Command, _ []string) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}

	insertFlag, _ := cmd.Flags().GetString("insert")
	force, _ := cmd.Flags().GetBool("force")
	review, _ := cmd.Flags().GetBool("review")
	asJSON, _ := cmd.Flags().GetBool("json")

	out := cmd.OutOrStdout()
	if asJSON {
		out = io.Discard
	}

	c, err := newCalibrator(cmdCtx, out, insertFlag, force, review)
	if err != nil {
		return err
	}

	result, err := c.Calibrate(cmd.Context())
	if err != nil {
		return err
	}

	if asJSON {
		if err := writeJSON(cmd.OutOrStdout(), result); err != nil {
			return err
		}
	} else {
		printCalibration(cmd.OutOrStdout(), result)
	}

	if result.Action == gate.CheckpointAndExit {
		fmt.Fprintln(cmd.ErrOrStderr(), tui.ApprovalBanner(tui.BannerInfo{
			Level:         "calibrate",
			Gate:          string(gate.CorrectionTasks),
			FeedbackPath:  result.ArtifactPath,
			ResumeCommand: result.ApplyCommand,
		}))
		return exitcode.NewSilentError(exitcode.ApprovalRequired)
	}
	return nil
}

// newCalibrator wires a calibrator from configuration. insert overrides the
// configured default insertion mode when set.
func newCalibrator(cmdCtx *CommandContext, out io.Writer, insert string, force, review bool) (*calibration.Calibrator, error) {
	cfg := cmdCtx.Config

	if insert == "" {
		insert = cfg.Calibration.Insert
	}
	mode, err := calibration.ParseInsert(insert)
	if err != nil {
		return nil, err
	}

	rev, err := reviewer.New(cfg.Reviewer)
	if err != nil {
		return nil, err
	}

	return calibration.New(calibration.Options{
		Workflow: cfg.Workflow,
		Reviewer: rev,
		Timeout:  cfg.Reviewer.Timeout,
		History:  calibration.NewHistorySource(cmdCtx.Paths.Root, cfg.Calibration.HistoryDepth, cmdCtx.Logger),
		Store:    cmdCtx.Store,
		Insert:   mode,
		Policies: cfg.Policies(),
		Force:    force,
		Review:   review,
		Prompter: cmdCtx.Prompter,
		Notifier: cmdCtx.Hooks,
		Audit:    cmdCtx.Audit,
		Out:      out,
		Logger:   cmdCtx.Logger,
	}), nil
}

func printCalibration(w io.Writer, r *calibration.Result) {
	if !r.DriftDetected {
		if r.FailOpen {
			fmt.Fprintln(w, "No drift recorded: the reviewer could not be consulted.")
			return
		}
		fmt.Fprintln(w, "✓ No drift detected.")
		return
	}

	fmt.Fprintf(w, "Drift detected: %s\n", r.Summary)
	if r.Proposal != nil {
		fmt.Fprintf(w, "  %d corrective subtask(s), insert: %s\n", len(r.Proposal.Operations), r.Insert)
	}
	if r.Dropped > 0 {
		fmt.Fprintf(w, "  %d invalid suggestion(s) dropped\n", r.Dropped)
	}

	switch {
	case r.Apply != nil && r.Apply.Stale:
		fmt.Fprintln(w, "  Queue changed during calibration; corrections not applied.")
	case r.Apply != nil && r.Apply.Applied:
		fmt.Fprintf(w, "  Applied: %d → %d subtasks\n", r.Apply.CountBefore, r.Apply.CountAfter)
	case r.Action == gate.CheckpointAndExit:
		fmt.Fprintf(w, "  Staged: %s\n", r.ArtifactPath)
	default:
		fmt.Fprintln(w, "  Corrections were not applied.")
	}
}
