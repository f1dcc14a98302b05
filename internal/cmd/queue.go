package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/cadence/internal/errors"
	"github.com/felixgeelhaar/cadence/internal/exitcode"
	"github.com/felixgeelhaar/cadence/internal/proposal"
	"github.com/felixgeelhaar/cadence/internal/queue"
	"github.com/felixgeelhaar/cadence/internal/tui"
	"github.com/felixgeelhaar/cadence/internal/validation"
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Inspect the subtask queue and apply proposals",
	Long: `Inspect the subtask queue of the current workflow and change it through
fingerprint-stamped proposals.

A proposal records the queue fingerprint it was computed against. It is
applied only while the queue still has that fingerprint; otherwise applying
it is a no-op and a fresh proposal must be generated.`,
}

var queueShowCmd = &cobra.Command{
	Use:   "show",
	Short: "List the subtasks in queue order",
	RunE:  runQueueShow,
}

var queueFingerprintCmd = &cobra.Command{
	Use:   "fingerprint",
	Short: "Print the current queue fingerprint",
	RunE:  runQueueFingerprint,
}

var queueRunnableCmd = &cobra.Command{
	Use:   "runnable",
	Short: "List pending subtasks that validation has not skipped",
	RunE:  runQueueRunnable,
}

var queueProposeCmd = &cobra.Command{
	Use:   "propose",
	Short: "Stage a proposal from a JSON list of operations",
	Long: `Stamp a JSON array of operations with the current queue fingerprint and
save it as a proposal artifact. The queue itself is not changed.

Example operations file:
  [
    {"type": "create", "index": 0, "subtask": {"title": "Fix login", "acceptanceCriteria": ["tests pass"]}},
    {"type": "remove", "id": "SUB-007"},
    {"type": "reorder", "id": "SUB-003", "index": 0}
  ]

Examples:
  cadence queue propose --file ops.json
  cadence queue propose --file ops.json --apply`,
	RunE: runQueuePropose,
}

var queueApplyCmd = &cobra.Command{
	Use:   "apply <artifact>",
	Short: "Apply a staged proposal artifact",
	Args:  cobra.ExactArgs(1),
	RunE:  runQueueApply,
}

func init() {
	queueShowCmd.Flags().Bool("json", false, "print the queue file contents as JSON")
	queueProposeCmd.Flags().StringP("file", "f", "", "operations JSON file (- for stdin)")
	queueProposeCmd.Flags().Bool("apply", false, "apply immediately instead of staging")
	queueApplyCmd.Flags().Bool("preview", false, "show the diff without applying")
	_ = queueProposeCmd.MarkFlagRequired("file")

	queueCmd.AddCommand(queueShowCmd, queueFingerprintCmd, queueRunnableCmd, queueProposeCmd, queueApplyCmd)
	rootCmd.AddCommand(queueCmd)
}

func runQueueShow(cmd *cobra.Command, _ []string) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	q, err := cmdCtx.Store.LoadQueue()
	if err != nil {
		return err
	}

	asJSON, _ := cmd.Flags().GetBool("json")
	if asJSON {
		return writeJSON(cmd.OutOrStdout(), map[string]any{"subtasks": q.Subtasks})
	}

	skips, err := validation.LoadSkipList(cmdCtx.Paths.SkipListFile())
	if err != nil {
		return err
	}
	printSubtasks(cmd.OutOrStdout(), q.Subtasks, skips)
	fmt.Fprintf(cmd.OutOrStdout(), "\n%d subtasks, %d pending, fingerprint %s\n",
		q.Len(), len(q.Pending()), q.Fingerprint().Short())
	return nil
}

func runQueueFingerprint(cmd *cobra.Command, _ []string) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	q, err := cmdCtx.Store.LoadQueue()
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), q.Fingerprint().Hash)
	return nil
}

func runQueueRunnable(cmd *cobra.Command, _ []string) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	q, err := cmdCtx.Store.LoadQueue()
	if err != nil {
		return err
	}
	skips, err := validation.LoadSkipList(cmdCtx.Paths.SkipListFile())
	if err != nil {
		return err
	}
	for _, s := range q.Runnable(skips.IDs()) {
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", s.ID, s.Title)
	}
	return nil
}

func runQueuePropose(cmd *cobra.Command, _ []string) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}

	file, _ := cmd.Flags().GetString("file")
	applyNow, _ := cmd.Flags().GetBool("apply")

	ops, err := readOperations(cmd.InOrStdin(), file)
	if err != nil {
		return err
	}

	q, err := cmdCtx.Store.LoadQueue()
	if err != nil {
		return err
	}
	p := queue.NewProposal(q, queue.SourceManual, ops)
	if err := proposal.Validate(p); err != nil {
		return err
	}

	// Dry-run against the snapshot so a broken batch is rejected before it is staged.
	if _, err := queue.ApplyOperations(q, ops); err != nil {
		return err
	}

	if applyNow {
		res, err := cmdCtx.Store.Apply(cmd.Context(), p)
		if err != nil {
			return err
		}
		printApplyResult(cmd.OutOrStdout(), res)
		return nil
	}

	path, err := cmdCtx.Store.Propose(cmd.Context(), p)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Proposal staged: %s\nApply it with: cadence queue apply %s\n", path, path)
	return nil
}

func runQueueApply(cmd *cobra.Command, args []string) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}

	p, err := proposal.LoadArtifact(args[0])
	if err != nil {
		return err
	}

	preview, _ := cmd.Flags().GetBool("preview")
	if preview {
		q, err := cmdCtx.Store.LoadQueue()
		if err != nil {
			return err
		}
		diff, err := proposal.Preview(q, p)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), tui.DiffView(diff))
		return nil
	}

	res, err := cmdCtx.Store.Apply(cmd.Context(), p)
	if err != nil {
		return err
	}
	printApplyResult(cmd.OutOrStdout(), res)
	if res.Stale {
		return exitcode.NewSilentError(exitcode.GeneralError)
	}
	return nil
}

func readOperations(stdin io.Reader, file string) ([]queue.Operation, error) {
	var (
		data []byte
		err  error
	)
	if file == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(file)
	}
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewFileNotFoundError(file)
		}
		return nil, errors.Wrap(errors.ErrCodeFileReadFailed, "read operations", err)
	}

	var ops []queue.Operation
	if err := json.Unmarshal(data, &ops); err != nil {
		return nil, errors.NewFileUnmarshalError(file, "JSON", err)
	}
	if len(ops) == 0 {
		return nil, errors.New(errors.ErrCodeProposalInvalid, "operations file contains no operations")
	}
	return ops, nil
}

func printSubtasks(w io.Writer, subtasks []queue.Subtask, skips *validation.SkipList) {
	skipped := skips.IDs()
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tTASK\tTITLE")
	for _, s := range subtasks {
		status := "pending"
		switch {
		case s.Done:
			status = "done"
		case skipped[s.ID]:
			status = "skipped"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.ID, status, s.TaskRef, s.Title)
	}
	_ = tw.Flush()
}

func printApplyResult(w io.Writer, res *proposal.ApplyResult) {
	switch {
	case res.Stale:
		fmt.Fprintf(w, "Proposal %s is stale: the queue changed since it was generated. Nothing applied.\n", res.ProposalID)
	case res.Applied:
		fmt.Fprintf(w, "Applied proposal %s: %d → %d subtasks\n", res.ProposalID, res.CountBefore, res.CountAfter)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
