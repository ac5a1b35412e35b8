package colors

import "github.com/charmbracelet/lipgloss"

// Palette
var (
	NeonPurple = lipgloss.Color("#bd93f9")
	NeonPink   = lipgloss.Color("#ff79c6")
	NeonCyan   = lipgloss.Color("#8be9fd")
	Gray       = lipgloss.Color("#44475a")
	LightGray  = lipgloss.Color("#a9b1d6")
	White      = lipgloss.Color("#f8f8f2")
)

// Job state colors
var (
	StatePending     = lipgloss.Color("#ffb86c")
	StateDownloading = lipgloss.Color("#50fa7b")
	StateFinalizing  = lipgloss.Color("#f1fa8c")
	StateDone        = lipgloss.Color("#bd93f9")
	StateError       = lipgloss.Color("#ff5555")
	StateCancelled   = lipgloss.Color("#6272a4")
)

// Progress bar gradient
const (
	ProgressStart = "#ff79c6"
	ProgressEnd   = "#bd93f9"
)
