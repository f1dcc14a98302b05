package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/cadence/internal/checkpoint"
	"github.com/felixgeelhaar/cadence/internal/errors"
	"github.com/felixgeelhaar/cadence/internal/validation"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show queue progress, skips and any paused cascade",
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().Bool("json", false, "print status as JSON")
	rootCmd.AddCommand(statusCmd)
}

// Status is the state of one workflow
type Status struct {
	Workflow    string            `json:"workflow"`
	Total       int               `json:"total"`
	Done        int               `json:"done"`
	Pending     int               `json:"pending"`
	Runnable    int               `json:"runnable"`
	Skipped     int               `json:"skipped"`
	Fingerprint string            `json:"fingerprint"`
	Proposals   int               `json:"proposals"`
	Paused      *checkpoint.Pause `json:"paused,omitempty"`
}

func runStatus(cmd *cobra.Command, _ []string) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}

	st := Status{Workflow: cmdCtx.Config.Workflow}

	q, err := cmdCtx.Store.LoadQueue()
	if err != nil {
		return err
	}
	skips, err := validation.LoadSkipList(cmdCtx.Paths.SkipListFile())
	if err != nil {
		return err
	}
	st.Total = q.Len()
	st.Done = len(q.Completed())
	st.Pending = len(q.Pending())
	st.Runnable = len(q.Runnable(skips.IDs()))
	st.Skipped = skips.Len()
	st.Fingerprint = q.Fingerprint().Hash

	artifacts, err := cmdCtx.Store.List()
	if err != nil {
		return err
	}
	st.Proposals = len(artifacts)

	pause, err := checkpoint.NewManager(cmdCtx.Paths.CheckpointsDir()).Load()
	switch {
	case err == nil:
		st.Paused = pause
	case !errors.HasCode(err, errors.ErrCodeCascadeNoPausedState):
		return err
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		return writeJSON(cmd.OutOrStdout(), st)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Workflow:    %s\n", st.Workflow)
	fmt.Fprintf(w, "Subtasks:    %d total, %d done, %d pending (%d runnable)\n", st.Total, st.Done, st.Pending, st.Runnable)
	fmt.Fprintf(w, "Skipped:     %d\n", st.Skipped)
	fmt.Fprintf(w, "Fingerprint: %s\n", q.Fingerprint().Short())
	fmt.Fprintf(w, "Proposals:   %d on file\n", st.Proposals)
	if st.Paused != nil {
		fmt.Fprintf(w, "\nPaused after %s at gate %s\n", st.Paused.Level, st.Paused.Gate)
		if st.Paused.ResumeCommand != "" {
			fmt.Fprintf(w, "  Resume: %s\n", st.Paused.ResumeCommand)
		}
		if st.Paused.FeedbackPath != "" {
			fmt.Fprintf(w, "  Details: %s\n", st.Paused.FeedbackPath)
		}
	}
	return nil
}
