package tui

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"
)

// IsInteractive reports whether stdin and stdout are both terminals
func IsInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

// ShouldPrompt is IsInteractive, except that CI environments never prompt
func ShouldPrompt() bool {
	for _, envVar := range []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "BUILDKITE"} {
		if os.Getenv(envVar) != "" {
			return false
		}
	}
	return IsInteractive()
}

// Prompter asks the human at the terminal. Every question has a safe
// default that is returned when no terminal is attached or the user aborts
// with ctrl+c. Context cancellation also yields the default, together with
// the context's error.
type Prompter struct {
	interactive bool
}

// NewPrompter creates a prompter; interactive is usually ShouldPrompt()
func NewPrompter(interactive bool) *Prompter {
	return &Prompter{interactive: interactive}
}

// Interactive reports whether the prompter will actually ask
func (p *Prompter) Interactive() bool {
	return p != nil && p.interactive
}

// Confirm asks a yes/no question
func (p *Prompter) Confirm(ctx context.Context, question string, defaultValue bool) (bool, error) {
	if !p.Interactive() {
		return defaultValue, nil
	}

	confirmed := defaultValue
	form := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().
			Title(question).
			Affirmative("Yes").
			Negative("No").
			Value(&confirmed),
	))

	if err := form.RunWithContext(ctx); err != nil {
		return defaultValue, resolveAbort(ctx, err)
	}
	return confirmed, nil
}

// Choose asks the user to pick one option
func (p *Prompter) Choose(ctx context.Context, question string, options []string, defaultValue string) (string, error) {
	if len(options) == 0 {
		return "", fmt.Errorf("no options provided")
	}
	if !p.Interactive() {
		return defaultValue, nil
	}

	huhOptions := make([]huh.Option[string], len(options))
	for i, opt := range options {
		huhOptions[i] = huh.NewOption(opt, opt)
	}

	selected := defaultValue
	form := huh.NewForm(huh.NewGroup(
		huh.NewSelect[string]().
			Title(question).
			Options(huhOptions...).
			Value(&selected),
	))

	if err := form.RunWithContext(ctx); err != nil {
		return defaultValue, resolveAbort(ctx, err)
	}
	return selected, nil
}

// resolveAbort maps a failed form run to the error Confirm and Choose return.
// A user abort is an answer (the default), not an error.
func resolveAbort(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if stderrors.Is(err, huh.ErrUserAborted) {
		return nil
	}
	return fmt.Errorf("prompt failed: %w", err)
}
