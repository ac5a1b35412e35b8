package events

// Kind identifies an event variant on the wire and in logs.
type Kind string

const (
	KindJobAdded      Kind = "added"
	KindProgress      Kind = "progress"
	KindStatusChanged Kind = "status"
	KindJobCompleted  Kind = "completed"
	KindJobFailed     Kind = "failed"
	KindJobCancelled  Kind = "cancelled"
)

// Event is one notification about a job. For a single job, events are
// published in this order: JobAdded, Progress*, StatusChanged?, and exactly
// one of JobCompleted, JobFailed, JobCancelled.
type Event interface {
	Kind() Kind
	ID() int64
}

// JobAddedMsg is sent once when a job is accepted.
type JobAddedMsg struct {
	JobID int64  `json:"job_id"`
	URL   string `json:"url"`
	Title string `json:"title"`
}

// ProgressMsg mirrors a fetcher progress report after it was applied to the registry.
type ProgressMsg struct {
	JobID      int64  `json:"job_id"`
	Title      string `json:"title,omitempty"`
	Percent    int    `json:"percent"`
	Speed      string `json:"speed,omitempty"`
	ETASeconds int    `json:"eta_seconds"`
	Downloaded int64  `json:"downloaded"`
	Total      int64  `json:"total"`
}

// StatusChangedMsg carries a human-readable status such as "finalizing".
type StatusChangedMsg struct {
	JobID int64  `json:"job_id"`
	Text  string `json:"text"`
}

type JobCompletedMsg struct {
	JobID int64  `json:"job_id"`
	Path  string `json:"path"`
}

type JobFailedMsg struct {
	JobID  int64  `json:"job_id"`
	Reason string `json:"reason"`
}

type JobCancelledMsg struct {
	JobID int64 `json:"job_id"`
}

func (JobAddedMsg) Kind() Kind      { return KindJobAdded }
func (ProgressMsg) Kind() Kind      { return KindProgress }
func (StatusChangedMsg) Kind() Kind { return KindStatusChanged }
func (JobCompletedMsg) Kind() Kind  { return KindJobCompleted }
func (JobFailedMsg) Kind() Kind     { return KindJobFailed }
func (JobCancelledMsg) Kind() Kind  { return KindJobCancelled }

func (m JobAddedMsg) ID() int64      { return m.JobID }
func (m ProgressMsg) ID() int64      { return m.JobID }
func (m StatusChangedMsg) ID() int64 { return m.JobID }
func (m JobCompletedMsg) ID() int64  { return m.JobID }
func (m JobFailedMsg) ID() int64     { return m.JobID }
func (m JobCancelledMsg) ID() int64  { return m.JobID }

// IsTerminal reports whether e is the final event for its job.
func IsTerminal(e Event) bool {
	switch e.Kind() {
	case KindJobCompleted, KindJobFailed, KindJobCancelled:
		return true
	}
	return false
}

// Envelope is the JSON shape used when events leave the process.
type Envelope struct {
	Kind  Kind  `json:"kind"`
	JobID int64 `json:"job_id"`
	Event Event `json:"event"`
}

func Wrap(e Event) Envelope {
	return Envelope{Kind: e.Kind(), JobID: e.ID(), Event: e}
}
