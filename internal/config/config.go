// Package config loads .cadence/config.yaml. Values are layered: built-in
// defaults, then the user file, then the project file, then CADENCE_*
// environment variables.
package config

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/felixgeelhaar/cadence/internal/errors"
	"github.com/felixgeelhaar/cadence/internal/gate"
	"github.com/felixgeelhaar/cadence/internal/hooks"
)

// Validation modes
const (
	ModeHeadless   = "headless"
	ModeSupervised = "supervised"
)

// Reviewer kinds
const (
	ReviewerExecutable = "executable"
	ReviewerAnthropic  = "anthropic"
)

// Config is the merged configuration of one project
type Config struct {
	// Workflow names the directory under .cadence/workflows
	Workflow string `yaml:"workflow"`

	// Root is the project root; relative paths below resolve against it
	Root string `yaml:"root"`

	// Milestone holds tasks/ and stories/ markdown files
	Milestone string `yaml:"milestone"`

	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`

	Approvals   map[string]string      `yaml:"approvals"`
	Reviewer    ReviewerConfig         `yaml:"reviewer"`
	Levels      map[string]LevelConfig `yaml:"levels"`
	Validation  ValidationConfig       `yaml:"validation"`
	Calibration CalibrationConfig      `yaml:"calibration"`
	Hooks       []hooks.HookConfig     `yaml:"hooks"`
}

// ReviewerConfig selects and tunes the external reviewer
type ReviewerConfig struct {
	Kind      string        `yaml:"kind"`
	Command   []string      `yaml:"command"`
	Model     string        `yaml:"model"`
	Timeout   time.Duration `yaml:"timeout"`
	MaxTokens int           `yaml:"maxTokens"`
}

// LevelConfig is the executor command of one pipeline level. The command is
// split into argv with shell word rules; $CADENCE_* variables expand.
type LevelConfig struct {
	Command string `yaml:"command"`
}

// ValidationConfig tunes the validation subsystem
type ValidationConfig struct {
	Mode string `yaml:"mode"`
}

// CalibrationConfig tunes the calibration subsystem
type CalibrationConfig struct {
	// HistoryDepth is the number of commits and completed subtasks shown to the reviewer
	HistoryDepth int `yaml:"historyDepth"`

	// Insert is the default insertion mode when the reviewer does not name one
	Insert string `yaml:"insert"`
}

// Policies converts the approvals section into gate policies
func (c *Config) Policies() gate.Policies {
	p := gate.DefaultPolicies()
	for name, policy := range c.Approvals {
		p[gate.Name(name)] = gate.Policy(policy)
	}
	return p
}

// Validate checks the merged configuration
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Workflow) == "" {
		return invalid("workflow cannot be empty")
	}
	if strings.ContainsAny(c.Workflow, `/\`) || c.Workflow == "." || c.Workflow == ".." {
		return invalid(fmt.Sprintf("workflow %q must be a plain directory name", c.Workflow))
	}

	approvals := make(gate.Policies, len(c.Approvals))
	for name, policy := range c.Approvals {
		approvals[gate.Name(name)] = gate.Policy(policy)
	}
	if err := approvals.Validate(); err != nil {
		return err
	}

	switch c.Reviewer.Kind {
	case ReviewerExecutable:
		if len(c.Reviewer.Command) == 0 {
			return errors.NewReviewerConfigError("executable reviewer needs a command")
		}
	case ReviewerAnthropic:
	default:
		return errors.NewReviewerConfigError(fmt.Sprintf("unknown reviewer kind %q", c.Reviewer.Kind))
	}
	if c.Reviewer.Timeout <= 0 {
		return errors.NewReviewerConfigError("reviewer timeout must be positive")
	}

	switch c.Validation.Mode {
	case ModeHeadless, ModeSupervised:
	default:
		return invalid(fmt.Sprintf("validation mode %q must be headless or supervised", c.Validation.Mode))
	}

	if c.Calibration.HistoryDepth < 1 {
		return invalid("calibration historyDepth must be at least 1")
	}
	switch c.Calibration.Insert {
	case "prepend", "append":
	default:
		return invalid(fmt.Sprintf("calibration insert %q must be prepend or append", c.Calibration.Insert))
	}

	levels := make([]string, 0, len(c.Levels))
	for name := range c.Levels {
		levels = append(levels, name)
	}
	sort.Strings(levels)
	for _, name := range levels {
		if !isLevel(name) {
			return errors.NewLevelUnknownError(name)
		}
	}

	return nil
}

// LevelCommand returns the configured command for a level, or ""
func (c *Config) LevelCommand(level string) string {
	return c.Levels[level].Command
}

// Paths resolves the on-disk layout of the configured workflow
func (c *Config) Paths() Paths {
	root := c.Root
	if root == "" {
		root = "."
	}
	milestone := c.Milestone
	if milestone != "" && !filepath.IsAbs(milestone) {
		milestone = filepath.Join(root, milestone)
	}
	return Paths{Root: root, Workflow: c.Workflow, Milestone: milestone}
}

// isLevel mirrors cascade.ParseLevel without importing it
func isLevel(name string) bool {
	switch name {
	case "roadmap", "stories", "tasks", "subtasks", "build", "calibrate":
		return true
	}
	return false
}

func invalid(msg string) error {
	return errors.New(errors.ErrCodeConfigInvalid, msg).
		WithSuggestion("Check .cadence/config.yaml and ~/.cadence/config.yaml")
}
