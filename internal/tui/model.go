package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/saverx/saverx/internal/clipboard"
	"github.com/saverx/saverx/internal/engine/events"
	"github.com/saverx/saverx/internal/engine/types"
	"github.com/saverx/saverx/internal/gallery"
	"github.com/saverx/saverx/internal/tui/colors"
)

type UIState int

const (
	DashboardState UIState = iota
	InputState
)

// Controller is the part of the orchestrator the dashboard drives.
type Controller interface {
	Submit(url string) (int64, error)
	Cancel(id int64)
	ListAll() []types.Job
	Subscribe() *events.Queue
	Unsubscribe(q *events.Queue)
}

// JobModel is the dashboard's local mirror of one job, fed by events.
type JobModel struct {
	ID         int64
	URL        string
	Title      string
	State      types.JobState
	StatusText string
	Percent    int
	Speed      string
	ETASeconds int
	ResultPath string
	Err        string

	progress progress.Model
}

func newJobModel(id int64, url, title string) *JobModel {
	return &JobModel{
		ID:         id,
		URL:        url,
		Title:      title,
		State:      types.StateDownloading,
		ETASeconds: types.UnknownETA,
		progress:   progress.New(progress.WithGradient(colors.ProgressStart, colors.ProgressEnd)),
	}
}

func jobModelFromSnapshot(j types.Job) *JobModel {
	jm := newJobModel(j.ID, j.URL, j.Title)
	jm.State = j.State
	jm.Percent = j.Percent
	jm.Speed = j.Speed
	jm.ETASeconds = j.ETASeconds
	jm.ResultPath = j.ResultPath
	jm.Err = j.Error
	return jm
}

// Options carries the optional collaborators of the dashboard.
type Options struct {
	DestDir        string
	Gallery        *gallery.Lister
	GalleryChanges <-chan struct{}
	AutoPaste      bool
	// ReadClipboard defaults to clipboard.ReadURL.
	ReadClipboard func() string
}

type RootModel struct {
	ctrl  Controller
	queue *events.Queue

	jobs  []*JobModel // newest first
	index map[int64]*JobModel

	gallery        *gallery.Lister
	galleryChanges <-chan struct{}
	galleryCount   int

	width  int
	height int
	state  UIState
	input  textinput.Model
	cursor int

	destDir       string
	autoPaste     bool
	readClipboard func() string
	notice        string
	quitting      bool
}

type tickMsg time.Time

type galleryChangedMsg struct{}

type galleryCountMsg int

// NewRootModel subscribes to ctrl's events and seeds the list with the jobs
// that already exist.
func NewRootModel(ctrl Controller, opts Options) RootModel {
	input := textinput.New()
	input.Placeholder = "https://example.com/watch?v=..."
	input.Width = InputWidth
	input.Prompt = "URL: "

	read := opts.ReadClipboard
	if read == nil {
		read = clipboard.ReadURL
	}

	m := RootModel{
		ctrl:           ctrl,
		queue:          ctrl.Subscribe(),
		index:          make(map[int64]*JobModel),
		gallery:        opts.Gallery,
		galleryChanges: opts.GalleryChanges,
		state:          DashboardState,
		input:          input,
		destDir:        opts.DestDir,
		autoPaste:      opts.AutoPaste,
		readClipboard:  read,
	}
	for _, j := range ctrl.ListAll() {
		jm := jobModelFromSnapshot(j)
		m.jobs = append(m.jobs, jm)
		m.index[j.ID] = jm
	}
	return m
}

func (m RootModel) Init() tea.Cmd {
	return tea.Batch(tickCmd(), countGallery(m.gallery), listenGallery(m.galleryChanges))
}

func tickCmd() tea.Cmd {
	return tea.Tick(TickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func countGallery(l *gallery.Lister) tea.Cmd {
	if l == nil {
		return nil
	}
	return func() tea.Msg {
		n, _ := l.Count()
		return galleryCountMsg(n)
	}
}

func listenGallery(ch <-chan struct{}) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return galleryChangedMsg{}
	}
}

// Jobs returns the rows currently shown, newest first.
func (m RootModel) Jobs() []*JobModel {
	return m.jobs
}

// getVisibleCount returns how many job cards fit in the terminal.
func (m RootModel) getVisibleCount() int {
	available := m.height - HeaderHeight - FooterHeight
	n := available / CardHeight
	if n < 1 {
		n = 1
	}
	if n > len(m.jobs) {
		n = len(m.jobs)
	}
	return n
}
