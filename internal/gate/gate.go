// Package gate decides what happens at an approval gate. Evaluate is a pure
// function of the gate name, the configured policies and the invocation
// flags; callers act on the returned Action.
package gate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/felixgeelhaar/cadence/internal/errors"
)

// Name identifies an approval gate
type Name string

const (
	CreateRoadmap   Name = "createRoadmap"
	CreateStories   Name = "createStories"
	CreateTasks     Name = "createTasks"
	CreateSubtasks  Name = "createSubtasks"
	ApplyValidation Name = "applyValidation"
	CorrectionTasks Name = "correctionTasks"
)

// Names lists every known gate
var Names = []Name{CreateRoadmap, CreateStories, CreateTasks, CreateSubtasks, ApplyValidation, CorrectionTasks}

// Policy is the configured approval mode of one gate
type Policy string

const (
	// Always approves automatically
	Always Policy = "always"

	// Manual requires a human: a prompt on a terminal, a checkpoint otherwise
	Manual Policy = "manual"

	// Notify approves automatically after sending a notification
	Notify Policy = "notify"
)

// Action is the outcome of evaluating a gate
type Action string

const (
	AutoContinue      Action = "auto-continue"
	Prompt            Action = "prompt"
	NotifyAndContinue Action = "notify-and-continue"
	CheckpointAndExit Action = "checkpoint-and-exit"
)

// Proceeds reports whether the action lets work continue without a human
func (a Action) Proceeds() bool {
	return a == AutoContinue || a == NotifyAndContinue
}

// Flags are the invocation inputs to a gate decision
type Flags struct {
	// Force approves every gate
	Force bool

	// Review turns "always" gates into prompts
	Review bool

	// TTY is true when a human can answer a prompt
	TTY bool
}

// Policies maps gates to their configured policy
type Policies map[Name]Policy

// DefaultPolicies approves every gate automatically
func DefaultPolicies() Policies {
	p := make(Policies, len(Names))
	for _, n := range Names {
		p[n] = Always
	}
	return p
}

// PolicyFor returns the policy for a gate. Missing or unparseable entries
// are treated as Always; Validate reports the latter at load time.
func (p Policies) PolicyFor(name Name) Policy {
	policy, err := ParsePolicy(string(p[name]))
	if err != nil {
		return Always
	}
	return policy
}

// Validate rejects unknown gate names and unknown policies
func (p Policies) Validate() error {
	keys := make([]string, 0, len(p))
	for n := range p {
		keys = append(keys, string(n))
	}
	sort.Strings(keys)

	for _, k := range keys {
		name := Name(k)
		if !IsKnown(name) {
			return errors.New(errors.ErrCodeGateUnknown, fmt.Sprintf("unknown approval gate %q", k)).
				WithSuggestion("Known gates: " + knownList())
		}
		if _, err := ParsePolicy(string(p[name])); err != nil {
			return err
		}
	}
	return nil
}

// ParsePolicy converts a configured string into a Policy
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case Always:
		return Always, nil
	case Manual:
		return Manual, nil
	case Notify:
		return Notify, nil
	}
	return "", errors.New(errors.ErrCodeGatePolicyInvalid, fmt.Sprintf("invalid approval policy %q", s)).
		WithSuggestion("Use one of: always, manual, notify")
}

// IsKnown reports whether name is one of the defined gates
func IsKnown(name Name) bool {
	for _, n := range Names {
		if n == name {
			return true
		}
	}
	return false
}

func knownList() string {
	parts := make([]string, len(Names))
	for i, n := range Names {
		parts[i] = string(n)
	}
	return strings.Join(parts, ", ")
}

// Evaluate decides the action for a gate.
//
// Force wins over everything. Review upgrades Always to Prompt. Manual
// prompts on a terminal and checkpoints otherwise. An empty name means the
// level has no gate and always continues.
func Evaluate(name Name, policies Policies, flags Flags) Action {
	if name == "" {
		return AutoContinue
	}
	if flags.Force {
		return AutoContinue
	}

	switch policies.PolicyFor(name) {
	case Manual:
		if flags.TTY {
			return Prompt
		}
		return CheckpointAndExit
	case Notify:
		return NotifyAndContinue
	default:
		if flags.Review {
			return Prompt
		}
		return AutoContinue
	}
}
