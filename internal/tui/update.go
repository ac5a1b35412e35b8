package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/saverx/saverx/internal/engine/events"
	"github.com/saverx/saverx/internal/engine/types"
	"github.com/saverx/saverx/internal/utils"
)

func (m RootModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		width := msg.Width - ProgressBarWidthOffset
		if width < MinProgressBarWidth {
			width = MinProgressBarWidth
		}
		for _, j := range m.jobs {
			j.progress.Width = width
		}
		return m, nil

	case tickMsg:
		for _, e := range m.queue.Drain() {
			m.applyEvent(e)
		}
		if m.quitting {
			return m, nil
		}
		return m, tickCmd()

	case galleryChangedMsg:
		return m, tea.Batch(countGallery(m.gallery), listenGallery(m.galleryChanges))

	case galleryCountMsg:
		m.galleryCount = int(msg)
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m.quit()
		}
		if m.state == InputState {
			return m.updateInput(msg)
		}
		return m.updateDashboard(msg)
	}

	if m.state == InputState {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m RootModel) quit() (tea.Model, tea.Cmd) {
	m.quitting = true
	m.ctrl.Unsubscribe(m.queue)
	return m, tea.Quit
}

func (m RootModel) updateDashboard(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m.quit()
	case "a", "i":
		m.state = InputState
		m.input.SetValue("")
		return m, m.input.Focus()
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.jobs)-1 {
			m.cursor++
		}
	case "c", "x":
		if j := m.selected(); j != nil {
			if j.State.IsTerminal() {
				m.notice = fmt.Sprintf("#%d already %s", j.ID, j.State)
			} else {
				m.ctrl.Cancel(j.ID)
				m.notice = fmt.Sprintf("Cancelling #%d...", j.ID)
			}
		}
	case "p", "ctrl+v":
		url := m.readClipboard()
		if url == "" {
			m.notice = "Clipboard does not contain a URL"
			return m, nil
		}
		if m.autoPaste {
			m.submit(url)
			return m, nil
		}
		m.state = InputState
		m.input.SetValue(url)
		return m, m.input.Focus()
	}
	return m, nil
}

func (m RootModel) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.state = DashboardState
		m.input.Blur()
		return m, nil
	case "enter":
		url := strings.TrimSpace(m.input.Value())
		m.input.SetValue("")
		m.input.Blur()
		m.state = DashboardState
		m.submit(url)
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit hands url to the orchestrator. The row appears once the JobAdded
// event is drained.
func (m *RootModel) submit(url string) {
	id, err := m.ctrl.Submit(url)
	if err != nil {
		m.notice = "Error: " + err.Error()
		return
	}
	utils.Debug("TUI: submitted job %d for %s", id, url)
	m.notice = fmt.Sprintf("Started #%d", id)
}

func (m RootModel) selected() *JobModel {
	if m.cursor < 0 || m.cursor >= len(m.jobs) {
		return nil
	}
	return m.jobs[m.cursor]
}

func (m *RootModel) applyEvent(e events.Event) {
	if added, ok := e.(events.JobAddedMsg); ok {
		if _, exists := m.index[added.JobID]; exists {
			return
		}
		jm := newJobModel(added.JobID, added.URL, added.Title)
		if m.width > 0 {
			jm.progress.Width = max(m.width-ProgressBarWidthOffset, MinProgressBarWidth)
		}
		m.jobs = append([]*JobModel{jm}, m.jobs...)
		m.index[jm.ID] = jm
		if len(m.jobs) > 1 {
			// Keep the selection on the same job.
			m.cursor++
		}
		return
	}

	jm, ok := m.index[e.ID()]
	if !ok || jm.State.IsTerminal() {
		return
	}

	switch msg := e.(type) {
	case events.ProgressMsg:
		if msg.Title != "" {
			jm.Title = msg.Title
		}
		if msg.Percent > jm.Percent {
			jm.Percent = msg.Percent
		}
		jm.Speed = msg.Speed
		jm.ETASeconds = msg.ETASeconds
	case events.StatusChangedMsg:
		jm.StatusText = msg.Text
		if msg.Text == string(types.StateFinalizing) {
			jm.State = types.StateFinalizing
		}
	case events.JobCompletedMsg:
		jm.State = types.StateDone
		jm.Percent = 100
		jm.ResultPath = msg.Path
		jm.Speed = ""
		jm.ETASeconds = types.UnknownETA
	case events.JobFailedMsg:
		jm.State = types.StateFailed
		jm.Err = msg.Reason
		jm.Speed = ""
	case events.JobCancelledMsg:
		jm.State = types.StateCancelled
		jm.Speed = ""
	}
}
