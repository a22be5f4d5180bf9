package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/unigw/unigw/internal/console"
)

// palette holds the colors one theme derives its styles from.
type palette struct {
	accent  lipgloss.Color
	text    lipgloss.Color
	dim     lipgloss.Color
	good    lipgloss.Color
	bad     lipgloss.Color
	warn    lipgloss.Color
	surface lipgloss.Color
}

var palettes = map[string]palette{
	console.ThemeDark: {
		accent:  lipgloss.Color("81"),
		text:    lipgloss.Color("252"),
		dim:     lipgloss.Color("241"),
		good:    lipgloss.Color("42"),
		bad:     lipgloss.Color("203"),
		warn:    lipgloss.Color("214"),
		surface: lipgloss.Color("236"),
	},
	console.ThemeLight: {
		accent:  lipgloss.Color("25"),
		text:    lipgloss.Color("235"),
		dim:     lipgloss.Color("245"),
		good:    lipgloss.Color("28"),
		bad:     lipgloss.Color("124"),
		warn:    lipgloss.Color("130"),
		surface: lipgloss.Color("254"),
	},
}

// uiStyles bundles every lipgloss style the renderer uses, derived once
// per theme switch.
type uiStyles struct {
	title       lipgloss.Style
	tabActive   lipgloss.Style
	tabInactive lipgloss.Style
	tableHead   lipgloss.Style
	row         lipgloss.Style
	cursorRow   lipgloss.Style
	dim         lipgloss.Style
	good        lipgloss.Style
	bad         lipgloss.Style
	warn        lipgloss.Style
	badge       lipgloss.Style
	box         lipgloss.Style
	boxTitle    lipgloss.Style
	errText     lipgloss.Style
	help        lipgloss.Style
}

func buildStyles(theme string) uiStyles {
	colors, ok := palettes[theme]
	if !ok {
		colors = palettes[console.ThemeDark]
	}
	return uiStyles{
		title:       lipgloss.NewStyle().Bold(true).Foreground(colors.accent),
		tabActive:   lipgloss.NewStyle().Bold(true).Foreground(colors.accent).Underline(true),
		tabInactive: lipgloss.NewStyle().Foreground(colors.dim),
		tableHead:   lipgloss.NewStyle().Bold(true).Foreground(colors.dim),
		row:         lipgloss.NewStyle().Foreground(colors.text),
		cursorRow:   lipgloss.NewStyle().Bold(true).Foreground(colors.accent),
		dim:         lipgloss.NewStyle().Foreground(colors.dim),
		good:        lipgloss.NewStyle().Foreground(colors.good),
		bad:         lipgloss.NewStyle().Foreground(colors.bad),
		warn:        lipgloss.NewStyle().Foreground(colors.warn),
		badge:       lipgloss.NewStyle().Bold(true).Foreground(colors.warn),
		box:         lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(colors.accent).Padding(0, 2),
		boxTitle:    lipgloss.NewStyle().Bold(true).Foreground(colors.accent),
		errText:     lipgloss.NewStyle().Bold(true).Foreground(colors.bad),
		help:        lipgloss.NewStyle().Foreground(colors.dim),
	}
}
