package server

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"team-optimizer/internal/engine"
	"team-optimizer/internal/metrics"
)

// JobStatus is the lifecycle state of an asynchronous search.
type JobStatus string

const (
	JobRunning   JobStatus = "running"
	JobDone      JobStatus = "done"
	JobCancelled JobStatus = "cancelled"
	JobFailed    JobStatus = "failed"
)

// ErrJobNotFound is returned for unknown job ids.
var ErrJobNotFound = errors.New("job not found")

// JobView is a point-in-time copy of a job, safe to serialize.
type JobView struct {
	ID       string          `json:"id"`
	Status   JobStatus       `json:"status"`
	Request  engine.Request  `json:"request"`
	Created  time.Time       `json:"created"`
	Finished *time.Time      `json:"finished,omitempty"`
	Outcome  *engine.Outcome `json:"outcome,omitempty"`
	Text     string          `json:"text,omitempty"`
	Error    string          `json:"error,omitempty"`
}

type job struct {
	view   JobView
	cancel context.CancelFunc
	done   chan struct{}
}

// Jobs runs searches in the background, each with its own cancel func.
type Jobs struct {
	eng     *engine.Engine
	log     *slog.Logger
	metrics *metrics.Metrics

	retain  int

	mu       sync.Mutex
	jobs     map[string]*job
	finished []string // ids in completion order, oldest first
	wg       sync.WaitGroup
}

// NewJobs returns an empty registry keeping the most recent
// server.job_retention finished jobs.
func NewJobs(eng *engine.Engine, log *slog.Logger, m *metrics.Metrics) *Jobs {
	return &Jobs{
		eng:     eng,
		log:     log,
		metrics: m,
		retain:  eng.Config().Server.JobRetention,
		jobs:    make(map[string]*job),
	}
}

// Start validates req and launches it. Jobs are cancellable, so the
// combination limit does not apply.
func (js *Jobs) Start(parent context.Context, req engine.Request) (JobView, error) {
	if _, err := js.eng.Estimate(req); err != nil {
		return JobView{}, err
	}
	req.Force = true

	ctx, cancel := context.WithCancel(parent)
	j := &job{
		view: JobView{
			ID:      uuid.NewString(),
			Status:  JobRunning,
			Request: req,
			Created: time.Now().UTC(),
		},
		cancel: cancel,
		done:   make(chan struct{}),
	}

	js.mu.Lock()
	js.jobs[j.view.ID] = j
	js.mu.Unlock()

	js.metrics.JobStarted()
	js.wg.Add(1)
	go js.run(ctx, j)

	js.log.Info("job started", "job", j.view.ID, "strategy", req.Strategy)
	return js.snapshot(j), nil
}

func (js *Jobs) run(ctx context.Context, j *job) {
	defer js.wg.Done()
	defer js.metrics.JobFinished()
	defer close(j.done)
	defer j.cancel()

	out, err := js.eng.Run(ctx, j.view.Request)
	now := time.Now().UTC()

	js.mu.Lock()
	defer js.mu.Unlock()
	j.view.Finished = &now
	switch {
	case err != nil:
		j.view.Status = JobFailed
		j.view.Error = err.Error()
	case out.Cancelled:
		j.view.Status = JobCancelled
	default:
		j.view.Status = JobDone
		j.view.Outcome = &out
		j.view.Text = out.Text()
	}
	js.log.Info("job finished", "job", j.view.ID, "status", j.view.Status)
	js.evict(j.view.ID)
}

// evict records id as finished and forgets the oldest finished jobs beyond
// the retention limit. js.mu must be held.
func (js *Jobs) evict(id string) {
	js.finished = append(js.finished, id)
	for js.retain > 0 && len(js.finished) > js.retain {
		old := js.finished[0]
		js.finished = js.finished[1:]
		delete(js.jobs, old)
		js.log.Debug("job expired", "job", old)
	}
}

func (js *Jobs) snapshot(j *job) JobView {
	js.mu.Lock()
	defer js.mu.Unlock()
	return j.view
}

func (js *Jobs) lookup(id string) (*job, error) {
	js.mu.Lock()
	defer js.mu.Unlock()
	j, ok := js.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	return j, nil
}

// Get returns the current state of job id.
func (js *Jobs) Get(id string) (JobView, error) {
	j, err := js.lookup(id)
	if err != nil {
		return JobView{}, err
	}
	return js.snapshot(j), nil
}

// Cancel asks job id to stop. Cancelling a finished job is a no-op.
func (js *Jobs) Cancel(id string) (JobView, error) {
	j, err := js.lookup(id)
	if err != nil {
		return JobView{}, err
	}
	j.cancel()
	return js.snapshot(j), nil
}

// Wait blocks until job id finishes or ctx is done.
func (js *Jobs) Wait(ctx context.Context, id string) (JobView, error) {
	j, err := js.lookup(id)
	if err != nil {
		return JobView{}, err
	}
	select {
	case <-j.done:
		return js.snapshot(j), nil
	case <-ctx.Done():
		return js.snapshot(j), ctx.Err()
	}
}

// Close cancels every running job and waits for them to return.
func (js *Jobs) Close() {
	js.mu.Lock()
	for _, j := range js.jobs {
		j.cancel()
	}
	js.mu.Unlock()
	js.wg.Wait()
}
