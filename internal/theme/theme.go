package theme

import (
	"sort"

	"github.com/charmbracelet/lipgloss"
)

// DefaultName is used when the configured theme is unknown.
const DefaultName = "catppuccin-mocha"

// Theme is a colour palette for the reader.
type Theme struct {
	Name string

	Text    lipgloss.Color
	Subtle  lipgloss.Color
	Accent  lipgloss.Color // verse numbers, titles
	Playing lipgloss.Color // verse currently reciting
	Error   lipgloss.Color
	Border  lipgloss.Color
	Focus   lipgloss.Color // background of the focused verse
}

var themes = map[string]Theme{
	"catppuccin-mocha": {
		Name:    "Catppuccin Mocha",
		Text:    lipgloss.Color("#cdd6f4"),
		Subtle:  lipgloss.Color("#6c7086"),
		Accent:  lipgloss.Color("#f5c2e7"),
		Playing: lipgloss.Color("#a6e3a1"),
		Error:   lipgloss.Color("#f38ba8"),
		Border:  lipgloss.Color("#45475a"),
		Focus:   lipgloss.Color("#313244"),
	},
	"catppuccin-latte": {
		Name:    "Catppuccin Latte",
		Text:    lipgloss.Color("#4c4f69"),
		Subtle:  lipgloss.Color("#9ca0b0"),
		Accent:  lipgloss.Color("#ea76cb"),
		Playing: lipgloss.Color("#40a02b"),
		Error:   lipgloss.Color("#d20f39"),
		Border:  lipgloss.Color("#dce0e8"),
		Focus:   lipgloss.Color("#e6e9ef"),
	},
	"dracula": {
		Name:    "Dracula",
		Text:    lipgloss.Color("#f8f8f2"),
		Subtle:  lipgloss.Color("#6272a4"),
		Accent:  lipgloss.Color("#ff79c6"),
		Playing: lipgloss.Color("#50fa7b"),
		Error:   lipgloss.Color("#ff5555"),
		Border:  lipgloss.Color("#44475a"),
		Focus:   lipgloss.Color("#44475a"),
	},
	"solarized-dark": {
		Name:    "Solarized Dark",
		Text:    lipgloss.Color("#839496"),
		Subtle:  lipgloss.Color("#586e75"),
		Accent:  lipgloss.Color("#d33682"),
		Playing: lipgloss.Color("#859900"),
		Error:   lipgloss.Color("#dc322f"),
		Border:  lipgloss.Color("#073642"),
		Focus:   lipgloss.Color("#073642"),
	},
}

// Names lists the configurable theme names.
func Names() []string {
	names := make([]string, 0, len(themes))
	for name := range themes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get returns a theme by config name, defaulting to Catppuccin Mocha.
func Get(name string) Theme {
	if t, ok := themes[name]; ok {
		return t
	}
	return themes[DefaultName]
}

// Styles are the lipgloss styles the UI renders with.
type Styles struct {
	Header      lipgloss.Style
	Title       lipgloss.Style
	VerseNumber lipgloss.Style
	VerseText   lipgloss.Style
	Focused     lipgloss.Style
	Playing     lipgloss.Style
	Help        lipgloss.Style
	Error       lipgloss.Style
}

// NewStyles derives the UI styles from a theme. width bounds verse text.
func NewStyles(t Theme, width int) Styles {
	if width <= 0 {
		width = 80
	}
	return Styles{
		Header: lipgloss.NewStyle().
			Bold(true).
			Foreground(t.Accent).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(t.Border),
		Title:       lipgloss.NewStyle().Bold(true).Foreground(t.Accent),
		VerseNumber: lipgloss.NewStyle().Foreground(t.Accent),
		VerseText:   lipgloss.NewStyle().Foreground(t.Text).Width(width),
		Focused:     lipgloss.NewStyle().Background(t.Focus),
		Playing:     lipgloss.NewStyle().Foreground(t.Playing).Bold(true).Width(width),
		Help:        lipgloss.NewStyle().Foreground(t.Subtle),
		Error:       lipgloss.NewStyle().Foreground(t.Error).Bold(true),
	}
}
