package tui

import (
	"context"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

func TestPrompterNonInteractiveReturnsDefaults(t *testing.T) {
	p := NewPrompter(false)
	ctx := context.Background()

	ok, err := p.Confirm(ctx, "Skip SUB-001?", true)
	if err != nil || !ok {
		t.Errorf("Confirm() = %v, %v; want default true", ok, err)
	}

	choice, err := p.Choose(ctx, "What now?", []string{"skip", "continue"}, "continue")
	if err != nil || choice != "continue" {
		t.Errorf("Choose() = %q, %v; want default", choice, err)
	}

	approved, err := p.Approve(ctx, "Run stories?", "")
	if err != nil || approved {
		t.Errorf("Approve() = %v, %v; want reject without a terminal", approved, err)
	}

	if _, err := p.Choose(ctx, "empty", nil, ""); err == nil {
		t.Error("Choose() without options should fail")
	}
}

func TestGateModelKeys(t *testing.T) {
	tests := []struct {
		name     string
		msg      tea.KeyMsg
		approved bool
		done     bool
	}{
		{"approve", tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("y")}, true, true},
		{"reject", tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("n")}, false, true},
		{"escape rejects", tea.KeyMsg{Type: tea.KeyEsc}, false, true},
		{"ctrl+c rejects", tea.KeyMsg{Type: tea.KeyCtrlC}, false, true},
		{"other keys ignored", tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("x")}, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, cmd := gateModel{title: "Run tasks?"}.Update(tt.msg)
			m := next.(gateModel)
			if m.approved != tt.approved || m.done != tt.done {
				t.Errorf("got approved=%v done=%v, want %v %v", m.approved, m.done, tt.approved, tt.done)
			}
			if tt.done && cmd == nil {
				t.Error("expected quit command")
			}
		})
	}
}

func TestGateModelView(t *testing.T) {
	view := gateModel{title: "Run stories?", details: "level: stories"}.View()
	for _, want := range []string{"Run stories?", "level: stories", "(y)", "(n)"} {
		if !strings.Contains(view, want) {
			t.Errorf("View() missing %q", want)
		}
	}
}

func TestApprovalBanner(t *testing.T) {
	out := ApprovalBanner(BannerInfo{
		Level:         "stories",
		Gate:          "createStories",
		FeedbackPath:  ".cadence/workflows/wf/feedback/approval-stories.md",
		ResumeCommand: "cadence cascade --from tasks --to build",
	})

	for _, want := range []string{"APPROVAL REQUIRED", "stories", "createStories", "approval-stories.md", "cadence cascade --from tasks"} {
		if !strings.Contains(out, want) {
			t.Errorf("banner missing %q:\n%s", want, out)
		}
	}
}

func TestVerdictView(t *testing.T) {
	out := VerdictView(VerdictInfo{SubtaskID: "SUB-010", Title: "Add billing", IssueType: "scope_creep", Reason: "not in story"})
	for _, want := range []string{"SUB-010", "scope_creep", "not in story"} {
		if !strings.Contains(out, want) {
			t.Errorf("verdict missing %q", want)
		}
	}
	if strings.Contains(out, "Suggestion") {
		t.Error("empty suggestion should be omitted")
	}
}

func TestDiffViewKeepsContent(t *testing.T) {
	out := DiffView("--- a\n+++ b\n@@ -1 +1 @@\n-old\n+new\n same\n")
	for _, want := range []string{"-old", "+new", " same"} {
		if !strings.Contains(out, want) {
			t.Errorf("diff view missing %q", want)
		}
	}
}

func TestShouldPromptDisabledInCI(t *testing.T) {
	t.Setenv("CI", "true")
	if ShouldPrompt() {
		t.Error("ShouldPrompt() should be false in CI")
	}
}
