// Package api provides HTTP handlers for the orbitscene server.
package api

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/atlasmap-sc/orbitscene/internal/runstore"
)

// Reasons recorded on jobs that did not finish on their own.
const (
	reasonRestarted     = "server restarted"
	reasonShutdown      = "server shutting down"
	reasonUserCancel    = "cancelled by user"
	reasonCancelQueued  = "cancelled before start"
	reasonQueueOverflow = "job queue is full; try again later"
)

// JobManagerConfig contains configuration for the job manager.
type JobManagerConfig struct {
	MaxConcurrent int    // Max concurrent bake jobs (default 1)
	SQLitePath    string // Path to SQLite database
	RetentionDays int    // Days to keep finished jobs (default 7)
	CleanupPeriod time.Duration
}

// BakeExecutor runs one bake. It must return promptly once ctx is cancelled.
type BakeExecutor func(ctx context.Context, store *runstore.Store, jobID string) error

// JobManager queues bake jobs, runs them on a fixed set of workers and keeps
// their state in SQLite so queued work survives a restart.
type JobManager struct {
	cfg   JobManagerConfig
	store *runstore.Store

	pending chan string

	mu     sync.Mutex
	active map[string]context.CancelFunc
	closed bool

	workers   sync.WaitGroup
	closeOnce sync.Once
	done      chan struct{}

	Executor BakeExecutor
}

// NewJobManager opens the job store.
func NewJobManager(cfg JobManagerConfig) (*JobManager, error) {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 1
	}
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = 7
	}
	if cfg.CleanupPeriod <= 0 {
		cfg.CleanupPeriod = time.Hour
	}

	store, err := runstore.NewStore(cfg.SQLitePath)
	if err != nil {
		return nil, err
	}
	return &JobManager{
		cfg:     cfg,
		store:   store,
		pending: make(chan string, 100),
		active:  make(map[string]context.CancelFunc),
		done:    make(chan struct{}),
	}, nil
}

// Store returns the underlying store.
func (jm *JobManager) Store() *runstore.Store {
	return jm.store
}

// Start resumes work left by a previous process and starts the workers and
// the retention sweep.
func (jm *JobManager) Start() {
	jm.resume()

	for i := 0; i < jm.cfg.MaxConcurrent; i++ {
		jm.workers.Add(1)
		go func() {
			defer jm.workers.Done()
			for id := range jm.pending {
				jm.bake(id)
			}
		}()
	}
	go jm.sweep()
}

// resume fails bakes that were running when the last process exited and
// puts the still-queued ones back on the queue.
func (jm *JobManager) resume() {
	if err := jm.store.MarkRunningAsFailed(reasonRestarted); err != nil {
		log.Printf("[BakeJobs] failed to mark interrupted bakes: %v", err)
	}
	queued, err := jm.store.ListQueuedJobs()
	if err != nil {
		log.Printf("[BakeJobs] failed to list queued bakes: %v", err)
		return
	}

	jm.mu.Lock()
	defer jm.mu.Unlock()
	for _, job := range queued {
		if !jm.enqueueLocked(job.ID) {
			log.Printf("[BakeJobs] queue full, bake %s stays queued until next start", job.ID)
			continue
		}
		log.Printf("[BakeJobs] resumed bake %s of scene %s", job.ID, job.SceneID)
	}
}

// enqueueLocked hands id to the workers without blocking. jm.mu must be held.
func (jm *JobManager) enqueueLocked(id string) bool {
	if jm.closed {
		return false
	}
	select {
	case jm.pending <- id:
		return true
	default:
		return false
	}
}

// Stop cancels running bakes, waits for the workers and closes the store.
// Queued bakes stay queued.
func (jm *JobManager) Stop() {
	jm.closeOnce.Do(func() {
		jm.mu.Lock()
		jm.closed = true
		for _, cancel := range jm.active {
			cancel()
		}
		close(jm.pending)
		jm.mu.Unlock()

		close(jm.done)
		jm.workers.Wait()
		jm.store.Close()
	})
}

func (jm *JobManager) isClosed() bool {
	jm.mu.Lock()
	defer jm.mu.Unlock()
	return jm.closed
}

// bake runs one queued job to a terminal state.
func (jm *JobManager) bake(id string) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	jm.mu.Lock()
	if jm.closed {
		jm.mu.Unlock()
		return
	}
	jm.active[id] = cancel
	jm.mu.Unlock()
	defer func() {
		jm.mu.Lock()
		delete(jm.active, id)
		jm.mu.Unlock()
	}()

	started, err := jm.store.StartJob(id)
	if err != nil {
		log.Printf("[BakeJobs] failed to start bake %s: %v", id, err)
		return
	}
	if !started {
		// Cancelled, deleted or already taken while it waited in the queue.
		return
	}

	status, reason := jm.outcome(ctx, jm.execute(ctx, id))
	if status == runstore.JobStatusFailed {
		log.Printf("[BakeJobs] bake %s failed: %s", id, reason)
	}
	if err := jm.store.UpdateJobStatus(id, status, reason); err != nil {
		log.Printf("[BakeJobs] failed to record bake %s as %s: %v", id, status, err)
	}
}

// execute calls the executor, turning a panic into a failed bake.
func (jm *JobManager) execute(ctx context.Context, id string) (err error) {
	if jm.Executor == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("bake panicked: %v", r)
		}
	}()
	return jm.Executor(ctx, jm.store, id)
}

func (jm *JobManager) outcome(ctx context.Context, err error) (runstore.JobStatus, string) {
	switch {
	case ctx.Err() != nil:
		if jm.isClosed() {
			return runstore.JobStatusCancelled, reasonShutdown
		}
		return runstore.JobStatusCancelled, reasonUserCancel
	case err != nil:
		return runstore.JobStatusFailed, err.Error()
	default:
		return runstore.JobStatusCompleted, ""
	}
}

// sweep deletes finished bakes past the retention period.
func (jm *JobManager) sweep() {
	ticker := time.NewTicker(jm.cfg.CleanupPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-jm.done:
			return
		case <-ticker.C:
			n, err := jm.store.DeleteExpiredJobs(jm.cfg.RetentionDays)
			if err != nil {
				log.Printf("[BakeJobs] cleanup error: %v", err)
			} else if n > 0 {
				log.Printf("[BakeJobs] deleted %d expired bakes", n)
			}
		}
	}
}

// Submit persists a new bake and queues it. When the queue is full the
// bake is recorded as failed straight away.
func (jm *JobManager) Submit(params runstore.BakeJobParams) (*runstore.BakeJob, error) {
	job := &runstore.BakeJob{
		ID:        newJobID(),
		SceneID:   params.SceneID,
		Status:    runstore.JobStatusQueued,
		Params:    params,
		CreatedAt: time.Now(),
	}
	if err := jm.store.CreateJob(job); err != nil {
		return nil, err
	}

	jm.mu.Lock()
	defer jm.mu.Unlock()
	if jm.closed || jm.enqueueLocked(job.ID) {
		// A bake persisted during shutdown is resumed by the next Start.
		return job, nil
	}
	if err := jm.store.UpdateJobStatus(job.ID, runstore.JobStatusFailed, reasonQueueOverflow); err != nil {
		return nil, err
	}
	job.Status = runstore.JobStatusFailed
	job.Error = reasonQueueOverflow
	return job, nil
}

// Get returns a job by ID, or nil when it does not exist.
func (jm *JobManager) Get(id string) *runstore.BakeJob {
	job, err := jm.store.GetJob(id)
	if err != nil {
		log.Printf("[BakeJobs] error getting bake %s: %v", id, err)
		return nil
	}
	return job
}

// List returns the jobs of a scene, newest first.
func (jm *JobManager) List(sceneID string) ([]*runstore.BakeJob, error) {
	return jm.store.ListJobsByScene(sceneID)
}

// Cancel stops a running bake or cancels a queued one. It reports false for
// bakes that already finished or do not exist.
func (jm *JobManager) Cancel(id string) bool {
	jm.mu.Lock()
	cancel, running := jm.active[id]
	jm.mu.Unlock()
	if running {
		cancel()
		return true
	}

	cancelled, err := jm.store.CancelQueuedJob(id, reasonCancelQueued)
	if err != nil {
		log.Printf("[BakeJobs] failed to cancel bake %s: %v", id, err)
		return false
	}
	return cancelled
}

// Delete deletes a job and its trail.
func (jm *JobManager) Delete(id string) error {
	return jm.store.DeleteJob(id)
}

func newJobID() string {
	b := make([]byte, 8)
	rand.Read(b)
	return hex.EncodeToString(b)
}
