package render

import (
	"os"
	"runtime"

	"github.com/charmbracelet/lipgloss"
)

// Colors holds the palette used for terminal output.
type Colors struct {
	Primary    lipgloss.Color
	Accent     lipgloss.Color
	Background lipgloss.Color
	Muted      lipgloss.Color
	Success    lipgloss.Color
	Warning    lipgloss.Color
	Error      lipgloss.Color
}

// BadgeKind enumerates badge variants.
type BadgeKind int

const (
	BadgeInfo BadgeKind = iota
	BadgeSuccess
	BadgeWarning
	BadgeError
)

// Theme styles terminal output. Plain disables colors for pipes and files.
type Theme struct {
	colors Colors
	icons  map[string]string
	plain  bool
}

// NewTheme returns the default theme; plain output carries no styling.
func NewTheme(plain bool) Theme {
	t := Theme{
		colors: Colors{
			Primary:    lipgloss.Color("#3a6b4a"),
			Accent:     lipgloss.Color("#8fc279"),
			Background: lipgloss.Color("#f8f8f8"),
			Muted:      lipgloss.Color("#9ba8c0"),
			Success:    lipgloss.Color("#5dc796"),
			Warning:    lipgloss.Color("#e0a842"),
			Error:      lipgloss.Color("#f04c56"),
		},
		icons: emojiIcons,
		plain: plain,
	}
	if plain || isLimitedTerminal() {
		t.icons = asciiIcons
	}
	return t
}

// Icon returns the icon for a media kind or status.
func (t Theme) Icon(name string) string {
	if icon, ok := t.icons[name]; ok {
		return icon
	}
	return t.icons["unknown"]
}

// Header renders a section title.
func (t Theme) Header(s string) string {
	if t.plain {
		return s
	}
	return lipgloss.NewStyle().
		Bold(true).
		Foreground(t.colors.Background).
		Background(t.colors.Primary).
		Padding(0, 1).
		Render(s)
}

// Muted renders secondary text.
func (t Theme) Muted(s string) string {
	if t.plain {
		return s
	}
	return lipgloss.NewStyle().Foreground(t.colors.Muted).Render(s)
}

// Badge renders a short status label.
func (t Theme) Badge(kind BadgeKind, s string) string {
	if t.plain {
		return "[" + s + "]"
	}
	base := lipgloss.NewStyle().Padding(0, 1).Bold(true).Foreground(t.colors.Background)
	switch kind {
	case BadgeSuccess:
		return base.Background(t.colors.Success).Render(s)
	case BadgeWarning:
		return base.Background(t.colors.Warning).Render(s)
	case BadgeError:
		return base.Background(t.colors.Error).Render(s)
	default:
		return base.Background(t.colors.Accent).Render(s)
	}
}

// Panel frames a block of text.
func (t Theme) Panel(s string) string {
	if t.plain {
		return s
	}
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.colors.Accent).
		Padding(0, 1).
		Render(s)
}

// isLimitedTerminal detects environments where ASCII icons are preferable.
func isLimitedTerminal() bool {
	if os.Getenv("SSH_CLIENT") != "" || os.Getenv("SSH_TTY") != "" || os.Getenv("SSH_CONNECTION") != "" {
		return true
	}
	return runtime.GOOS == "windows"
}

var emojiIcons = map[string]string{
	"movie":    "🎬",
	"set":      "🗂",
	"show":     "📺",
	"season":   "📁",
	"episode":  "🎞",
	"person":   "👤",
	"list":     "📋",
	"mixed":    "🎲",
	"complete": "✅",
	"partial":  "⚠️",
	"error":    "❌",
	"unknown":  "❓",
}

var asciiIcons = map[string]string{
	"movie":    "[M]",
	"set":      "[C]",
	"show":     "[TV]",
	"season":   "[S]",
	"episode":  "[E]",
	"person":   "[P]",
	"list":     "[L]",
	"mixed":    "[*]",
	"complete": "[v]",
	"partial":  "[~]",
	"error":    "[!]",
	"unknown":  "[?]",
}
