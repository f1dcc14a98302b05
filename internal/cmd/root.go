package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/cadence/internal/log"
)

var rootCmd = &cobra.Command{
	Use:   "cadence",
	Short: "Coordinate an autonomous, gated coding workflow",
	Long: `cadence runs a planning and execution pipeline
(roadmap → stories → tasks → subtasks → build → calibrate) over a persistent
queue of subtasks. Every change to the queue is a fingerprint-stamped proposal
that is applied only to the exact queue it was computed from, and every level
sits behind an approval gate configured in .cadence/config.yaml.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: configureLogging,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// ExecuteContext runs the root command with ctx, which commands pass on to
// every blocking operation
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringP("project", "C", ".", "project root containing .cadence/")
	rootCmd.PersistentFlags().String("workflow", "", "workflow name (overrides config and CADENCE_WORKFLOW)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "text", "log format: text or json")
}

func configureLogging(cmd *cobra.Command, _ []string) error {
	levelName, _ := cmd.Flags().GetString("log-level")
	formatName, _ := cmd.Flags().GetString("log-format")

	level, err := log.ParseLevel(levelName)
	if err != nil {
		return err
	}

	cfg := log.DefaultConfig()
	cfg.Level = level
	cfg.Format = log.ParseFormat(formatName)
	cfg.Output = cmd.ErrOrStderr()
	log.SetDefaultLogger(log.New(cfg))
	return nil
}
