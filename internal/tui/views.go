package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// BannerInfo is what the APPROVAL REQUIRED banner shows
type BannerInfo struct {
	Level         string
	Gate          string
	FeedbackPath  string
	ResumeCommand string
}

var bannerStyle = lipgloss.NewStyle().
	Border(lipgloss.DoubleBorder()).
	BorderForeground(lipgloss.Color("3")).
	Padding(0, 2)

// ApprovalBanner renders the block printed before a checkpoint-and-exit stop
func ApprovalBanner(info BannerInfo) string {
	var b strings.Builder
	b.WriteString(warnStyle.Render("⏸  APPROVAL REQUIRED"))
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("Level:"), info.Level)
	if info.Gate != "" {
		fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("Gate:"), info.Gate)
	}
	fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("Review:"), "git diff")
	if info.FeedbackPath != "" {
		fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("Details:"), info.FeedbackPath)
	}
	if info.ResumeCommand != "" {
		b.WriteString("\n")
		b.WriteString(labelStyle.Render("To continue once approved:"))
		b.WriteString("\n  ")
		b.WriteString(titleStyle.Render(info.ResumeCommand))
	}
	return bannerStyle.Render(b.String())
}

// VerdictInfo is one misalignment verdict, as shown to a supervising human
type VerdictInfo struct {
	SubtaskID  string
	Title      string
	IssueType  string
	Reason     string
	Suggestion string
}

// VerdictView renders a misalignment verdict
func VerdictView(v VerdictInfo) string {
	var b strings.Builder
	b.WriteString(errorStyle.Bold(true).Render(fmt.Sprintf("✗ %s %s", v.SubtaskID, v.Title)))
	b.WriteString("\n")
	fmt.Fprintf(&b, "  %s %s\n", labelStyle.Render("Issue:"), warnStyle.Render(v.IssueType))
	fmt.Fprintf(&b, "  %s %s\n", labelStyle.Render("Reason:"), v.Reason)
	if v.Suggestion != "" {
		fmt.Fprintf(&b, "  %s %s\n", labelStyle.Render("Suggestion:"), v.Suggestion)
	}
	return b.String()
}

// DiffView colors a unified diff line by line
func DiffView(diff string) string {
	lines := strings.Split(strings.TrimRight(diff, "\n"), "\n")
	for i, line := range lines {
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
			lines[i] = labelStyle.Render(line)
		case strings.HasPrefix(line, "+"):
			lines[i] = successStyle.Render(line)
		case strings.HasPrefix(line, "-"):
			lines[i] = errorStyle.Render(line)
		case strings.HasPrefix(line, "@@"):
			lines[i] = titleStyle.Render(line)
		}
	}
	return strings.Join(lines, "\n")
}
