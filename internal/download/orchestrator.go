package download

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/saverx/saverx/internal/engine/events"
	"github.com/saverx/saverx/internal/engine/state"
	"github.com/saverx/saverx/internal/engine/types"
	"github.com/saverx/saverx/internal/fetcher"
	"github.com/saverx/saverx/internal/utils"
)

// activeJob tracks a job whose worker has not finished yet.
type activeJob struct {
	token  *types.CancelToken
	cancel context.CancelFunc
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithURLPolicy rejects URLs for which policy returns an error.
func WithURLPolicy(policy func(url string) error) Option {
	return func(o *Orchestrator) { o.policy = policy }
}

// WithPathCheck replaces the check that a finished file exists on disk.
func WithPathCheck(check func(path string) error) Option {
	return func(o *Orchestrator) { o.checkPath = check }
}

// WithLogger replaces the component logger.
func WithLogger(l zerolog.Logger) Option {
	return func(o *Orchestrator) { o.log = l }
}

// Orchestrator runs one worker goroutine per submitted URL and reports on
// them through a Registry and an event Bus.
type Orchestrator struct {
	fetcher   fetcher.Fetcher
	destDir   string
	registry  *state.Registry
	bus       *events.Bus
	policy    func(string) error
	checkPath func(string) error
	log       zerolog.Logger

	mu     sync.Mutex
	active map[int64]*activeJob
	wg     sync.WaitGroup
}

// New returns an Orchestrator that downloads into destDir using f.
func New(f fetcher.Fetcher, destDir string, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		fetcher:   f,
		destDir:   destDir,
		registry:  state.NewRegistry(),
		bus:       events.NewBus(),
		checkPath: fileExists,
		active:    make(map[int64]*activeJob),
	}
	o.log = utils.Logger().With().Str("component", "orchestrator").Logger()
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func fileExists(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	return nil
}

// DestDir returns the directory jobs download into.
func (o *Orchestrator) DestDir() string {
	return o.destDir
}

// Submit registers a job for url and starts its worker. It returns without
// waiting for any I/O.
func (o *Orchestrator) Submit(url string) (int64, error) {
	if strings.TrimSpace(url) == "" {
		return 0, fmt.Errorf("%w: url is empty", types.ErrInvalidInput)
	}
	if o.policy != nil {
		if err := o.policy(url); err != nil {
			return 0, fmt.Errorf("%w: %v", types.ErrInvalidInput, err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	aj := &activeJob{token: types.NewToken(), cancel: cancel}

	// The job becomes visible and cancellable under the same lock, so a
	// Cancel that finds it in the registry also finds its token.
	o.mu.Lock()
	job := o.registry.Create(url)
	o.active[job.ID] = aj
	o.mu.Unlock()

	job, _ = o.registry.Update(job.ID, func(j *types.Job) {
		j.State = types.StateDownloading
	})
	o.bus.Publish(events.JobAddedMsg{JobID: job.ID, URL: job.URL, Title: job.Title})
	o.log.Debug().Int64("job_id", job.ID).Str("url", url).Msg("job submitted")

	o.wg.Add(1)
	go o.run(ctx, job.ID, url, aj)
	return job.ID, nil
}

// Cancel asks the worker of id to stop. Unknown and finished jobs are ignored.
func (o *Orchestrator) Cancel(id int64) {
	job, err := o.registry.Get(id)
	if err != nil || job.State.IsTerminal() {
		return
	}

	o.mu.Lock()
	aj, ok := o.active[id]
	o.mu.Unlock()
	if !ok {
		return
	}
	utils.Debug("Orchestrator: cancel requested for job %d", id)
	aj.token.Signal()
}

// Snapshot returns a copy of one job.
func (o *Orchestrator) Snapshot(id int64) (types.Job, error) {
	return o.registry.Get(id)
}

// ListAll returns copies of every job, newest first.
func (o *Orchestrator) ListAll() []types.Job {
	return o.registry.List()
}

// DrainEvents empties the default event queue.
func (o *Orchestrator) DrainEvents() []events.Event {
	return o.bus.Drain()
}

// Subscribe returns a private event queue for an additional observer.
func (o *Orchestrator) Subscribe() *events.Queue {
	return o.bus.Subscribe()
}

// Unsubscribe detaches a queue returned by Subscribe.
func (o *Orchestrator) Unsubscribe(q *events.Queue) {
	o.bus.Unsubscribe(q)
}

// ActiveCount returns the number of jobs whose worker is still running.
func (o *Orchestrator) ActiveCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.active)
}

// Shutdown cancels every running job and waits for the workers to exit or
// for ctx to expire.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.mu.Lock()
	for _, aj := range o.active {
		aj.token.Signal()
	}
	o.mu.Unlock()

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		utils.Debug("Shutdown: timed out waiting for workers")
		return ctx.Err()
	}
}

func (o *Orchestrator) run(ctx context.Context, id int64, url string, aj *activeJob) {
	defer o.wg.Done()
	defer func() {
		aj.cancel()
		o.mu.Lock()
		delete(o.active, id)
		o.mu.Unlock()
	}()

	// A signalled token also interrupts blocking I/O inside the fetcher.
	go func() {
		select {
		case <-aj.token.Done():
			aj.cancel()
		case <-ctx.Done():
		}
	}()

	start := time.Now()
	path, err := o.fetch(ctx, id, url, aj.token)

	switch {
	case err == nil:
		o.finish(id, path, time.Since(start))
	case errors.Is(err, types.ErrCancelled) || aj.token.IsSignalled():
		o.terminate(id, types.StateCancelled, "")
	default:
		o.terminate(id, types.StateFailed, fetcher.Reason(err))
	}
}

// fetch runs the fetcher and converts a panic into an error so the job still
// reaches a terminal state.
func (o *Orchestrator) fetch(ctx context.Context, id int64, url string, token *types.CancelToken) (path string, err error) {
	defer func() {
		if r := recover(); r != nil {
			o.log.Error().Int64("job_id", id).Interface("panic", r).Msg("fetcher panicked")
			err = fmt.Errorf("internal error: %v", r)
		}
	}()

	return o.fetcher.Fetch(ctx, fetcher.Request{
		URL:       url,
		DestDir:   o.destDir,
		Cancelled: token.IsSignalled,
		OnProgress: func(p fetcher.Progress) error {
			if token.IsSignalled() {
				return types.ErrCancelled
			}
			o.applyProgress(id, p)
			return nil
		},
	})
}

func (o *Orchestrator) applyProgress(id int64, p fetcher.Progress) {
	applied := false
	job, err := o.registry.Update(id, func(j *types.Job) {
		if j.State != types.StateDownloading {
			return
		}
		applied = true
		if p.Title != "" {
			j.Title = p.Title
		}
		if p.Total > 0 {
			j.Total = p.Total
			pct := int(p.Downloaded * 100 / p.Total)
			if pct > 100 {
				pct = 100
			}
			if pct > j.Percent {
				j.Percent = pct
			}
		}
		if p.Downloaded > j.Downloaded {
			j.Downloaded = p.Downloaded
		}
		if p.Speed != "" {
			j.Speed = p.Speed
		}
		if p.ETA >= 0 {
			j.ETASeconds = int(p.ETA / time.Second)
		}
	})
	if err != nil || !applied {
		return
	}

	msg := events.ProgressMsg{
		JobID:      id,
		Percent:    job.Percent,
		Speed:      job.Speed,
		ETASeconds: job.ETASeconds,
		Downloaded: job.Downloaded,
		Total:      job.Total,
	}
	if p.Title != "" {
		msg.Title = job.Title
	}
	o.bus.Publish(msg)
}

// transition moves id to state `to` if the state machine allows it.
func (o *Orchestrator) transition(id int64, to types.JobState, mutate func(*types.Job)) bool {
	applied := false
	_, err := o.registry.Update(id, func(j *types.Job) {
		if !j.State.CanTransition(to) {
			return
		}
		applied = true
		j.State = to
		if to.IsTerminal() {
			j.FinishedAt = time.Now()
			j.Speed = ""
			j.ETASeconds = types.UnknownETA
		}
		if mutate != nil {
			mutate(j)
		}
	})
	return err == nil && applied
}

func (o *Orchestrator) finish(id int64, path string, elapsed time.Duration) {
	if !o.transition(id, types.StateFinalizing, nil) {
		return
	}
	o.bus.Publish(events.StatusChangedMsg{JobID: id, Text: string(types.StateFinalizing)})

	if path != "" && !filepath.IsAbs(path) {
		path = filepath.Join(o.destDir, path)
	}
	if path == "" {
		o.terminate(id, types.StateFailed, "fetcher returned no output file")
		return
	}
	if err := o.checkPath(path); err != nil {
		o.terminate(id, types.StateFailed, fmt.Sprintf("output file missing: %v", err))
		return
	}

	if o.transition(id, types.StateDone, func(j *types.Job) {
		j.ResultPath = path
		j.Percent = 100
	}) {
		o.log.Debug().Int64("job_id", id).Str("path", path).Dur("elapsed", elapsed).Msg("job done")
		o.bus.Publish(events.JobCompletedMsg{JobID: id, Path: path})
	}
}

// terminate records a failed or cancelled outcome and publishes its event.
func (o *Orchestrator) terminate(id int64, to types.JobState, reason string) {
	if !o.transition(id, to, func(j *types.Job) { j.Error = reason }) {
		return
	}

	switch to {
	case types.StateCancelled:
		o.bus.Publish(events.StatusChangedMsg{JobID: id, Text: string(types.StateCancelled)})
		o.bus.Publish(events.JobCancelledMsg{JobID: id})
		o.log.Debug().Int64("job_id", id).Msg("job cancelled")
	case types.StateFailed:
		o.bus.Publish(events.JobFailedMsg{JobID: id, Reason: reason})
		o.log.Debug().Int64("job_id", id).Str("reason", reason).Msg("job failed")
	}
}
