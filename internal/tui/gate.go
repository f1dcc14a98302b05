package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type gateKeyMap struct {
	Approve key.Binding
	Reject  key.Binding
	Quit    key.Binding
}

var gateKeys = gateKeyMap{
	Approve: key.NewBinding(key.WithKeys("y", "Y"), key.WithHelp("y", "approve")),
	Reject:  key.NewBinding(key.WithKeys("n", "N", "q", "esc"), key.WithHelp("n", "reject")),
	Quit:    key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "abort")),
}

// gateModel shows what is about to happen and waits for y or n
type gateModel struct {
	title    string
	details  string
	approved bool
	done     bool
}

func (m gateModel) Init() tea.Cmd {
	return nil
}

func (m gateModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch {
	case key.Matches(keyMsg, gateKeys.Approve):
		m.approved = true
		m.done = true
		return m, tea.Quit
	case key.Matches(keyMsg, gateKeys.Reject), key.Matches(keyMsg, gateKeys.Quit):
		m.approved = false
		m.done = true
		return m, tea.Quit
	}
	return m, nil
}

func (m gateModel) View() string {
	if m.done {
		if m.approved {
			return successStyle.Render("✅ Approved") + "\n"
		}
		return errorStyle.Render("❌ Rejected") + "\n"
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(m.title))
	b.WriteString("\n\n")
	if m.details != "" {
		b.WriteString(m.details)
		if !strings.HasSuffix(m.details, "\n") {
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	b.WriteString(titleStyle.Render("Continue?") + " ")
	b.WriteString(successStyle.Render("(y)") + " / " + errorStyle.Render("(n)") + ": ")
	return b.String()
}

// Approve shows an approval gate and returns the decision. Without a
// terminal it rejects. ctrl+c and context cancellation also reject.
func (p *Prompter) Approve(ctx context.Context, title, details string) (bool, error) {
	if !p.Interactive() {
		return false, nil
	}

	program := tea.NewProgram(gateModel{title: title, details: details}, tea.WithContext(ctx))
	final, err := program.Run()
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		return false, fmt.Errorf("run approval gate: %w", err)
	}
	return final.(gateModel).approved, nil
}

var (
	titleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true)
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("3")).Bold(true)
)
