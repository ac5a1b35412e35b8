package types

import (
	"fmt"
	"time"
)

// JobState is the lifecycle position of a download job.
type JobState string

const (
	StatePending     JobState = "pending"
	StateDownloading JobState = "downloading"
	StateFinalizing  JobState = "finalizing"
	StateDone        JobState = "done"
	StateFailed      JobState = "failed"
	StateCancelled   JobState = "cancelled"
)

// PlaceholderTitle is shown until the fetcher reports a real title.
const PlaceholderTitle = "Preparing..."

// UnknownETA marks a job whose remaining time cannot be estimated.
const UnknownETA = -1

func (s JobState) String() string {
	return string(s)
}

// IsTerminal reports whether no further transitions are allowed.
func (s JobState) IsTerminal() bool {
	return s == StateDone || s == StateFailed || s == StateCancelled
}

// IsActive reports whether a worker is currently driving the job.
func (s JobState) IsActive() bool {
	return s == StateDownloading || s == StateFinalizing
}

// CanTransition enforces the job state machine:
//
//	pending -> downloading -> finalizing -> done
//	downloading -> failed | cancelled
//	finalizing -> failed
func (s JobState) CanTransition(to JobState) bool {
	switch s {
	case StatePending:
		return to == StateDownloading || to == StateFailed || to == StateCancelled
	case StateDownloading:
		return to == StateFinalizing || to == StateFailed || to == StateCancelled
	case StateFinalizing:
		return to == StateDone || to == StateFailed
	default:
		return false
	}
}

// Job is a snapshot of one download request. Values handed out by the
// registry are copies; mutating them has no effect on the stored job.
type Job struct {
	ID         int64     `json:"id"`
	URL        string    `json:"url"`
	Title      string    `json:"title"`
	State      JobState  `json:"state"`
	Percent    int       `json:"percent"`
	Speed      string    `json:"speed,omitempty"`
	ETASeconds int       `json:"eta_seconds"`
	Downloaded int64     `json:"downloaded"`
	Total      int64     `json:"total"`
	ResultPath string    `json:"result_path,omitempty"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
}

// NewJob returns a pending job with the placeholder title.
func NewJob(id int64, url string) Job {
	return Job{
		ID:         id,
		URL:        url,
		Title:      PlaceholderTitle,
		State:      StatePending,
		ETASeconds: UnknownETA,
		CreatedAt:  time.Now(),
	}
}

// DisplayTitle falls back to the URL while the title is unknown.
func (j Job) DisplayTitle() string {
	if j.Title != "" && j.Title != PlaceholderTitle {
		return j.Title
	}
	if j.URL != "" {
		return j.URL
	}
	return PlaceholderTitle
}

// ETAString formats the remaining time as mm:ss or h:mm:ss.
func (j Job) ETAString() string {
	return FormatETA(j.ETASeconds)
}

// FormatETA renders seconds as mm:ss, h:mm:ss, or "--:--" when unknown.
func FormatETA(seconds int) string {
	if seconds < 0 {
		return "--:--"
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
