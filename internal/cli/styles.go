package cli

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Badge styles for unit states and outcomes.
var (
	badgeSuccess = lipgloss.NewStyle().
			Background(colorSuccess).
			Foreground(colorBlack).
			Padding(0, 1).
			Bold(true)

	badgePending = lipgloss.NewStyle().
			Background(colorWarning).
			Foreground(colorBlack).
			Padding(0, 1).
			Bold(true)

	badgeError = lipgloss.NewStyle().
			Background(colorError).
			Foreground(colorWhite).
			Padding(0, 1).
			Bold(true)

	badgeMuted = lipgloss.NewStyle().
			Background(colorMuted).
			Foreground(colorWhite).
			Padding(0, 1)
)

// Panel styles
var (
	panelSuccess = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorSuccess).
			Padding(0, 1)

	panelError = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorError).
			Padding(0, 1)
)

// RenderBadge renders a styled badge, or "[TEXT]" without colors.
func RenderBadge(text string, style lipgloss.Style) string {
	if !EnableColors() {
		return "[" + text + "]"
	}
	return style.Render(text)
}

// StateBadge renders a badge for a unit state or outcome name such as
// "applied", "pending", "skipped", "missing", "reverted" or "failed".
func StateBadge(state string) string {
	label := strings.ToUpper(state)
	switch state {
	case "applied", "reverted", "ok":
		return RenderBadge(label, badgeSuccess)
	case "pending":
		return RenderBadge(label, badgePending)
	case "failed", "missing":
		return RenderBadge(label, badgeError)
	default:
		return RenderBadge(label, badgeMuted)
	}
}

// RenderSuccessPanel renders content in a success-styled panel.
func RenderSuccessPanel(title, content string) string {
	return renderPanel(panelSuccess, Success(title), content)
}

// RenderErrorPanel renders content in an error-styled panel.
func RenderErrorPanel(title, content string) string {
	return renderPanel(panelError, Error(title), content)
}

func renderPanel(style lipgloss.Style, title, content string) string {
	body := strings.TrimRight(content, "\n")
	if title != "" {
		body = title + "\n" + body
	}
	if !EnableColors() {
		return body + "\n"
	}
	return style.Render(body) + "\n"
}
