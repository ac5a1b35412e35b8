package components

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/saverx/saverx/internal/engine/types"
	"github.com/saverx/saverx/internal/tui/colors"
)

type statusInfo struct {
	icon  string
	label string
	color lipgloss.Color
}

var statusMap = map[types.JobState]statusInfo{
	types.StatePending:     {"⋯", "Pending", colors.StatePending},
	types.StateDownloading: {"⬇", "Downloading", colors.StateDownloading},
	types.StateFinalizing:  {"⚙", "Finalizing", colors.StateFinalizing},
	types.StateDone:        {"✔", "Done", colors.StateDone},
	types.StateFailed:      {"✖", "Failed", colors.StateError},
	types.StateCancelled:   {"⊘", "Cancelled", colors.StateCancelled},
}

func lookup(s types.JobState) statusInfo {
	if info, ok := statusMap[s]; ok {
		return info
	}
	return statusInfo{"?", "Unknown", colors.Gray}
}

// StatusLabel returns the plain label for s.
func StatusLabel(s types.JobState) string {
	return lookup(s).label
}

// StatusColor returns the color used for s.
func StatusColor(s types.JobState) lipgloss.Color {
	return lookup(s).color
}

// RenderStatus returns the styled icon and label for s.
func RenderStatus(s types.JobState) string {
	info := lookup(s)
	return lipgloss.NewStyle().Foreground(info.color).Render(info.icon + " " + info.label)
}
