package state

import (
	"sync"

	"github.com/saverx/saverx/internal/engine/types"
)

type record struct {
	mu  sync.Mutex
	job types.Job
}

// Registry owns every job record for the lifetime of the process.
// Reads return copies; writes go through Update so each mutation is atomic
// with respect to readers of the same job.
type Registry struct {
	mu      sync.RWMutex
	nextID  int64
	records map[int64]*record
	order   []int64
}

func NewRegistry() *Registry {
	return &Registry{
		records: make(map[int64]*record),
	}
}

// Create allocates the next id (starting at 1) and stores a pending job.
func (r *Registry) Create(url string) types.Job {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	job := types.NewJob(r.nextID, url)
	r.records[job.ID] = &record{job: job}
	r.order = append(r.order, job.ID)
	return job
}

func (r *Registry) lookup(id int64) (*record, error) {
	r.mu.RLock()
	rec, ok := r.records[id]
	r.mu.RUnlock()
	if !ok {
		return nil, types.ErrNotFound
	}
	return rec, nil
}

func (r *Registry) Get(id int64) (types.Job, error) {
	rec, err := r.lookup(id)
	if err != nil {
		return types.Job{}, err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.job, nil
}

// Update applies mutate to a copy of the job and stores the result.
// Jobs in a terminal state are frozen: mutate is not called and the stored
// snapshot is returned unchanged. ID, URL and CreatedAt cannot be altered.
func (r *Registry) Update(id int64, mutate func(*types.Job)) (types.Job, error) {
	rec, err := r.lookup(id)
	if err != nil {
		return types.Job{}, err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	if rec.job.State.IsTerminal() {
		return rec.job, nil
	}

	next := rec.job
	mutate(&next)
	next.ID = rec.job.ID
	next.URL = rec.job.URL
	next.CreatedAt = rec.job.CreatedAt
	rec.job = next
	return next, nil
}

// List returns a snapshot of every job, newest first.
func (r *Registry) List() []types.Job {
	r.mu.RLock()
	recs := make([]*record, 0, len(r.order))
	for i := len(r.order) - 1; i >= 0; i-- {
		recs = append(recs, r.records[r.order[i]])
	}
	r.mu.RUnlock()

	jobs := make([]types.Job, 0, len(recs))
	for _, rec := range recs {
		rec.mu.Lock()
		jobs = append(jobs, rec.job)
		rec.mu.Unlock()
	}
	return jobs
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
