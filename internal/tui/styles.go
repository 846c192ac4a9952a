package tui

import "github.com/charmbracelet/lipgloss"

var (
	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary).
			Padding(0, 1)

	ModeStyle = lipgloss.NewStyle().
			Foreground(ColorSecondary).
			Italic(true)

	FooterStyle = lipgloss.NewStyle().
			Foreground(ColorTextMuted)

	UserLabelStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorAccent)

	AssistantLabelStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(ColorPrimary)

	StreamingStyle = lipgloss.NewStyle().
			Foreground(ColorTextMuted)

	OptionStyle = lipgloss.NewStyle().
			Foreground(ColorText).
			PaddingLeft(2)

	SelectedOptionStyle = lipgloss.NewStyle().
				Foreground(ColorText).
				Background(ColorHighlight).
				Bold(true).
				PaddingLeft(2)

	OptionsBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder).
			Padding(0, 1)

	StatusStyle = lipgloss.NewStyle().
			Foreground(ColorSuccess)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ColorError).
			Bold(true)
)
