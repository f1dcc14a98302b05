package cmd

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/cadence/internal/cascade"
	"github.com/felixgeelhaar/cadence/internal/checkpoint"
	"github.com/felixgeelhaar/cadence/internal/exitcode"
	"github.com/felixgeelhaar/cadence/internal/tui"
)

var cascadeCmd = &cobra.Command{
	Use:   "cascade",
	Short: "Run pipeline levels from one level to another",
	Long: `Run the pipeline levels --from through --to in order
(roadmap, stories, tasks, subtasks, build, calibrate).

Each planning level sits behind its approval gate. A manual gate with no
terminal attached commits outstanding changes, runs the level, writes an
approval document and exits with code 10, printing the command that
resumes the cascade.

Examples:
  cadence cascade --from roadmap --to subtasks
  cadence cascade --from tasks --to build --force
  cadence cascade --resume`,
	RunE: runCascade,
}

func init() {
	cascadeCmd.Flags().String("from", "roadmap", "first level to run")
	cascadeCmd.Flags().String("to", "build", "last level to run")
	cascadeCmd.Flags().Bool("force", false, "bypass every approval gate")
	cascadeCmd.Flags().Bool("review", false, "ask before every level")
	cascadeCmd.Flags().Bool("resume", false, "continue a cascade stopped at an approval gate")
	cascadeCmd.Flags().String("provider", "", "provider passed to level commands (default from config)")
	cascadeCmd.Flags().String("model", "", "model passed to level commands (default from config)")
	rootCmd.AddCommand(cascadeCmd)
}

func runCascade(cmd *cobra.Command, _ []string) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	cfg := cmdCtx.Config

	fromFlag, _ := cmd.Flags().GetString("from")
	toFlag, _ := cmd.Flags().GetString("to")
	force, _ := cmd.Flags().GetBool("force")
	review, _ := cmd.Flags().GetBool("review")
	resume, _ := cmd.Flags().GetBool("resume")
	provider, _ := cmd.Flags().GetString("provider")
	model, _ := cmd.Flags().GetString("model")

	pauses := checkpoint.NewManager(cmdCtx.Paths.CheckpointsDir())

	if resume {
		p, err := pauses.Load()
		if err != nil {
			return err
		}
		if p.Next == "" {
			fmt.Fprintf(cmd.OutOrStdout(), "Level %s was the last level of the paused cascade; nothing left to run.\n", p.Level)
			return pauses.Clear()
		}
		fromFlag, toFlag = p.Next, p.Target
		if provider == "" {
			provider = p.Provider
		}
		if model == "" {
			model = p.Model
		}
	}
	if provider == "" {
		provider = cfg.Provider
	}
	if model == "" {
		model = cfg.Model
	}

	from, err := cascade.ParseLevel(fromFlag)
	if err != nil {
		return err
	}
	to, err := cascade.ParseLevel(toFlag)
	if err != nil {
		return err
	}
	levels, err := cascade.Between(from, to)
	if err != nil {
		return err
	}

	commands := make(map[cascade.Level]string, len(cfg.Levels))
	for name, lc := range cfg.Levels {
		commands[cascade.Level(name)] = lc.Command
	}
	dispatch := &cascade.Dispatch{
		ByLevel: map[cascade.Level]cascade.Executor{},
		Default: cascade.NewCommandExecutor(commands, cmdCtx.Paths.Root, cmd.OutOrStdout(), cmd.ErrOrStderr()),
	}

	// A configured calibrate command wins over the built-in calibrator.
	if slices.Contains(levels, cascade.Calibrate) && commands[cascade.Calibrate] == "" {
		calibrator, err := newCalibrator(cmdCtx, cmd.OutOrStdout(), "", force, review)
		if err != nil {
			return err
		}
		dispatch.ByLevel[cascade.Calibrate] = calibrator
	}

	runner := cascade.NewRunner(cascade.Options{
		Workflow:     cfg.Workflow,
		Provider:     provider,
		Model:        model,
		Policies:     cfg.Policies(),
		Force:        force,
		Review:       review,
		Executor:     dispatch,
		Prompter:     cmdCtx.Prompter,
		Notifier:     cmdCtx.Hooks,
		Checkpointer: checkpoint.NewGitCheckpointer(cmdCtx.Paths.Root),
		Pauses:       pauses,
		FeedbackDir:  cmdCtx.Paths.FeedbackDir(),
		Logger:       cmdCtx.Logger,
	})

	result := runner.Run(cmd.Context(), from, to)
	switch result.Outcome {
	case cascade.OutcomeCompleted:
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Cascade completed: %s → %s\n", from, to)
		return nil
	case cascade.OutcomeAwaitingApproval:
		fmt.Fprintln(cmd.ErrOrStderr(), tui.ApprovalBanner(tui.BannerInfo{
			Level:         string(result.StoppedAt),
			Gate:          string(result.Gate),
			FeedbackPath:  result.FeedbackPath,
			ResumeCommand: result.ResumeCommand,
		}))
		return exitcode.NewSilentError(exitcode.ApprovalRequired)
	default:
		return result.Err
	}
}
