package main

import "github.com/charmbracelet/lipgloss"

// Theme defines the colors and styles ScrollbackTerminal and the TUI's
// components render with.
type Theme struct {
	PromptBorder   lipgloss.Color
	ChatBorder     lipgloss.Color
	TextColor      lipgloss.Color
	Warning        lipgloss.Color
	ErrorColor     lipgloss.Color
	PaneBackground lipgloss.Color

	RenderUser      func(string) string
	RenderAssistant func(string) string
	RenderTool      func(string) string
	RenderError     func(string) string

	Border    lipgloss.Style
	Highlight lipgloss.Style
}

// NewTheme builds the default theme. Colors are deliberately plain so the UI
// stays legible over both dark and light terminal backgrounds.
func NewTheme(name string) *Theme {
	promptBorder := lipgloss.Color("#5FAFFF")
	chatBorder := lipgloss.Color("#5FD7AF")
	textColor := lipgloss.Color("#D0D0D0")
	warning := lipgloss.Color("#FFD75F")
	errorColor := lipgloss.Color("#FF5F5F")
	background := lipgloss.Color("#000000")

	userStyle := lipgloss.NewStyle().Foreground(promptBorder).Bold(true)
	assistantStyle := lipgloss.NewStyle().Foreground(textColor)
	toolStyle := lipgloss.NewStyle().Foreground(chatBorder).Italic(true)
	errorStyle := lipgloss.NewStyle().Foreground(errorColor).Bold(true)

	return &Theme{
		PromptBorder:   promptBorder,
		ChatBorder:     chatBorder,
		TextColor:      textColor,
		Warning:        warning,
		ErrorColor:     errorColor,
		PaneBackground: background,

		RenderUser:      func(s string) string { return userStyle.Render(s) },
		RenderAssistant: func(s string) string { return assistantStyle.Render(s) },
		RenderTool:      func(s string) string { return toolStyle.Render(s) },
		RenderError:     func(s string) string { return errorStyle.Render(s) },

		Border:    lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder()).BorderForeground(promptBorder),
		Highlight: lipgloss.NewStyle().Reverse(true),
	}
}
