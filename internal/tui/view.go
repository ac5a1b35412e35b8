package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/saverx/saverx/internal/engine/types"
	"github.com/saverx/saverx/internal/tui/colors"
	"github.com/saverx/saverx/internal/tui/components"
)

var (
	logoStyle   = lipgloss.NewStyle().Foreground(colors.NeonPink).Bold(true)
	dimStyle    = lipgloss.NewStyle().Foreground(colors.LightGray)
	titleStyle  = lipgloss.NewStyle().Foreground(colors.White).Bold(true)
	cursorStyle = lipgloss.NewStyle().Foreground(colors.NeonCyan).Bold(true)
	valueStyle  = lipgloss.NewStyle().Foreground(colors.NeonCyan)
	errorStyle  = lipgloss.NewStyle().Foreground(colors.StateError)
	panelStyle  = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colors.Gray).
			Padding(0, 1)
)

func (m RootModel) View() string {
	if m.quitting {
		return ""
	}

	header := lipgloss.JoinVertical(lipgloss.Left,
		logoStyle.Render("SaverX")+"  "+dimStyle.Render("→ "+m.destDir),
		m.viewInput(),
	)

	body := m.viewJobs()
	if m.width > 4 {
		body = panelStyle.Width(m.width - 2).Render(body)
	} else {
		body = panelStyle.Render(body)
	}

	return lipgloss.JoinVertical(lipgloss.Left, header, body, m.viewFooter())
}

func (m RootModel) viewInput() string {
	if m.state == InputState {
		return m.input.View() + dimStyle.Render("  [Enter] Start  [Esc] Back")
	}
	return dimStyle.Render("[A] Add URL  [P] Paste from clipboard")
}

func (m RootModel) viewJobs() string {
	if len(m.jobs) == 0 {
		return dimStyle.Render("No downloads yet. Press A to add a URL or P to paste one.")
	}

	visible := m.getVisibleCount()
	start := 0
	if m.cursor >= visible {
		start = m.cursor - visible + 1
	}
	end := start + visible
	if end > len(m.jobs) {
		end = len(m.jobs)
	}

	cards := make([]string, 0, end-start)
	for i := start; i < end; i++ {
		cards = append(cards, m.viewJob(m.jobs[i], i == m.cursor))
	}
	return strings.Join(cards, "\n")
}

func (m RootModel) viewJob(j *JobModel, selected bool) string {
	marker := "  "
	if selected {
		marker = cursorStyle.Render("▶ ")
	}
	title := truncateString(j.displayTitle(), MaxTitleWidth)
	line1 := fmt.Sprintf("%s%s %s  %s",
		marker,
		dimStyle.Render(fmt.Sprintf("#%d", j.ID)),
		titleStyle.Render(title),
		components.RenderStatus(j.State),
	)

	var line2 string
	switch j.State {
	case types.StateDone:
		line2 = "   " + valueStyle.Render(j.ResultPath)
	case types.StateFailed:
		line2 = "   " + errorStyle.Render(j.Err)
	case types.StateCancelled:
		line2 = "   " + dimStyle.Render("Cancelled by user")
	default:
		stats := fmt.Sprintf("%3d%%", j.Percent)
		if j.Speed != "" {
			stats += "  " + j.Speed
		}
		stats += "  ETA " + types.FormatETA(j.ETASeconds)
		if j.StatusText != "" && j.State == types.StateFinalizing {
			stats += "  " + j.StatusText
		}
		line2 = "   " + j.progress.ViewAs(float64(j.Percent)/100) + "  " + valueStyle.Render(stats)
	}
	return line1 + "\n" + line2 + "\n"
}

func (m RootModel) viewFooter() string {
	active := 0
	for _, j := range m.jobs {
		if j.State.IsActive() {
			active++
		}
	}
	status := fmt.Sprintf("Gallery: %d files  •  Active: %d", m.galleryCount, active)
	keys := "[↑/↓] Select  [C] Cancel  [Q] Quit"

	lines := []string{dimStyle.Render(status + "  •  " + keys)}
	if m.notice != "" {
		style := dimStyle
		if strings.HasPrefix(m.notice, "Error:") {
			style = errorStyle
		}
		lines = append(lines, style.Render(m.notice))
	}
	return strings.Join(lines, "\n")
}

func (j *JobModel) displayTitle() string {
	if j.Title != "" && j.Title != types.PlaceholderTitle {
		return j.Title
	}
	if j.URL != "" {
		return j.URL
	}
	return types.PlaceholderTitle
}

func truncateString(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
