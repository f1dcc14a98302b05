package cmd

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/cadence/internal/audit"
	"github.com/felixgeelhaar/cadence/internal/config"
	"github.com/felixgeelhaar/cadence/internal/hooks"
	"github.com/felixgeelhaar/cadence/internal/log"
	"github.com/felixgeelhaar/cadence/internal/proposal"
	"github.com/felixgeelhaar/cadence/internal/tui"
)

// CommandContext is everything a command needs, resolved once from flags
// and configuration
type CommandContext struct {
	Config *config.Config
	Paths  config.Paths
	Logger *log.Logger
	Audit  *audit.Logger
	Hooks  *hooks.Registry
	Store  *proposal.Store

	// Prompter asks the human; it never prompts when stdin is not a terminal
	Prompter *tui.Prompter
}

// interactiveFn is replaced in tests
var interactiveFn = tui.ShouldPrompt

// NewCommandContext loads configuration for the --project directory and
// wires the shared collaborators
func NewCommandContext(cmd *cobra.Command) (*CommandContext, error) {
	project, _ := cmd.Flags().GetString("project")
	workflow, _ := cmd.Flags().GetString("workflow")

	root, err := filepath.Abs(project)
	if err != nil {
		return nil, err
	}

	cfg, err := config.NewLoader(root).Load()
	if err != nil {
		return nil, err
	}
	if workflow != "" {
		cfg.Workflow = workflow
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	logger := log.DefaultLogger().WithWorkflow(cfg.Workflow)
	registry, err := hooks.FromConfig(cfg.Hooks, logger)
	if err != nil {
		return nil, err
	}

	paths := cfg.Paths()
	auditLog := audit.NewLogger(cfg.Workflow, paths.LogsDir())
	store := proposal.NewStore(paths.QueueFile(), paths.ProposalsDir(), auditLog, logger).
		WithNotifier(registry)

	return &CommandContext{
		Config:   cfg,
		Paths:    paths,
		Logger:   logger,
		Audit:    auditLog,
		Hooks:    registry,
		Store:    store,
		Prompter: tui.NewPrompter(interactiveFn()),
	}, nil
}
