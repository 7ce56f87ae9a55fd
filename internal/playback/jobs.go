package playback

import (
	"context"
	"errors"
	"log"
	"sync"
)

var ErrExportNotFound = errors.New("export not found")

// finishedRetention bounds how many finished jobs keep their in-memory
// status. Older ones are only visible through their artifact row.
const finishedRetention = 64

type JobState string

const (
	JobRunning  JobState = "running"
	JobComplete JobState = "complete"
	JobCanceled JobState = "canceled"
	JobFailed   JobState = "failed"
)

type JobStatus struct {
	ID    string   `json:"id"`
	State JobState `json:"state"`
	Done  int      `json:"frames_done"`
	Total int      `json:"frames_total"`
	Path  string   `json:"path,omitempty"`
	Error string   `json:"error,omitempty"`
}

type runningJob struct {
	cancel context.CancelFunc
	done   chan struct{}
	status JobStatus
}

// Jobs runs exports in the background and lets callers cancel them by id.
type Jobs struct {
	exporter *Exporter

	mu       sync.Mutex
	jobs     map[string]*runningJob
	finished []string
	retain   int
}

func NewJobs(exporter *Exporter) *Jobs {
	return &Jobs{exporter: exporter, jobs: map[string]*runningJob{}, retain: finishedRetention}
}

func (j *Jobs) Start(job Job) JobStatus {
	ctx, cancel := context.WithCancel(context.Background())
	rj := &runningJob{
		cancel: cancel,
		done:   make(chan struct{}),
		status: JobStatus{ID: job.ID, State: JobRunning, Total: job.Schedule.FrameCount()},
	}

	j.mu.Lock()
	j.jobs[job.ID] = rj
	j.mu.Unlock()

	userProgress := job.Progress
	job.Progress = func(done, total int) {
		j.mu.Lock()
		rj.status.Done = done
		j.mu.Unlock()
		if userProgress != nil {
			userProgress(done, total)
		}
	}

	go func() {
		defer close(rj.done)
		defer cancel()

		res, err := j.exporter.Export(ctx, job)

		j.mu.Lock()
		defer j.mu.Unlock()
		switch {
		case err == nil:
			rj.status.State = JobComplete
			rj.status.Path = res.Path
		case errors.Is(err, ErrExportCanceled):
			rj.status.State = JobCanceled
			rj.status.Error = err.Error()
		default:
			rj.status.State = JobFailed
			rj.status.Error = err.Error()
			log.Printf("export %s failed: %v", job.ID, err)
		}
		j.retire(job.ID)
	}()

	return rj.status
}

// retire records a finished job and evicts the oldest finished ones beyond
// the retention limit. Callers hold j.mu.
func (j *Jobs) retire(id string) {
	j.finished = append(j.finished, id)
	for len(j.finished) > j.retain {
		delete(j.jobs, j.finished[0])
		j.finished = j.finished[1:]
	}
}

// Cancel requests cancellation; the export stops at the next frame boundary.
func (j *Jobs) Cancel(id string) error {
	j.mu.Lock()
	rj, ok := j.jobs[id]
	j.mu.Unlock()
	if !ok {
		return ErrExportNotFound
	}
	rj.cancel()
	return nil
}

func (j *Jobs) Status(id string) (JobStatus, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	rj, ok := j.jobs[id]
	if !ok {
		return JobStatus{}, false
	}
	return rj.status, true
}

// Wait blocks until the export finishes or ctx ends.
func (j *Jobs) Wait(ctx context.Context, id string) (JobStatus, error) {
	j.mu.Lock()
	rj, ok := j.jobs[id]
	j.mu.Unlock()
	if !ok {
		return JobStatus{}, ErrExportNotFound
	}
	select {
	case <-rj.done:
	case <-ctx.Done():
		return JobStatus{}, ctx.Err()
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	return rj.status, nil
}
