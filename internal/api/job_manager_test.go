package api

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/atlasmap-sc/orbitscene/internal/animator"
	"github.com/atlasmap-sc/orbitscene/internal/runstore"
)

func newTestJobManager(t *testing.T, path string) *JobManager {
	t.Helper()
	jm, err := NewJobManager(JobManagerConfig{MaxConcurrent: 1, SQLitePath: path})
	if err != nil {
		t.Fatalf("failed to create job manager: %v", err)
	}
	return jm
}

func bakeParams() runstore.BakeJobParams {
	return runstore.BakeJobParams{SceneID: "orbit", Animation: animator.DefaultParams()}
}

func TestJobManager_RunsExecutor(t *testing.T) {
	jm := newTestJobManager(t, filepath.Join(t.TempDir(), "bake.db"))
	defer jm.Stop()

	fail := errors.New("boom")
	jm.Executor = func(ctx context.Context, store *runstore.Store, jobID string) error {
		job, _ := store.GetJob(jobID)
		if job.Params.WriteTrace {
			return fail
		}
		return nil
	}
	jm.Start()

	ok, err := jm.Submit(bakeParams())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	failing := bakeParams()
	failing.WriteTrace = true
	bad, err := jm.Submit(failing)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	if got := waitForJob(t, jm, ok.ID); got.Status != runstore.JobStatusCompleted {
		t.Errorf("expected completed, got %s", got.Status)
	}
	got := waitForJob(t, jm, bad.ID)
	if got.Status != runstore.JobStatusFailed || got.Error != "boom" {
		t.Errorf("expected failed with boom, got %s %q", got.Status, got.Error)
	}
}

func TestJobManager_CancelRunning(t *testing.T) {
	jm := newTestJobManager(t, filepath.Join(t.TempDir(), "bake.db"))
	defer jm.Stop()

	started := make(chan struct{})
	jm.Executor = func(ctx context.Context, store *runstore.Store, jobID string) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}
	jm.Start()

	job, err := jm.Submit(bakeParams())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("job did not start")
	}

	if !jm.Cancel(job.ID) {
		t.Fatal("expected cancel to succeed")
	}
	got := waitForJob(t, jm, job.ID)
	if got.Status != runstore.JobStatusCancelled {
		t.Errorf("expected cancelled, got %s", got.Status)
	}
	if jm.Cancel(job.ID) {
		t.Error("expected cancelling a finished job to fail")
	}
}

func TestJobManager_CancelQueuedSkipsExecution(t *testing.T) {
	jm := newTestJobManager(t, filepath.Join(t.TempDir(), "bake.db"))
	defer jm.Stop()

	ran := make(chan string, 1)
	jm.Executor = func(ctx context.Context, store *runstore.Store, jobID string) error {
		ran <- jobID
		return nil
	}

	// Not started: the job stays queued until a worker exists.
	job, err := jm.Submit(bakeParams())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !jm.Cancel(job.ID) {
		t.Fatal("expected cancel of queued job to succeed")
	}
	jm.Start()

	// A second job proves the worker drained the cancelled one first.
	next, err := jm.Submit(bakeParams())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	waitForJob(t, jm, next.ID)
	if id := <-ran; id != next.ID {
		t.Errorf("expected only %s to run, got %s", next.ID, id)
	}
	if got := jm.Get(job.ID); got.Status != runstore.JobStatusCancelled {
		t.Errorf("expected cancelled, got %s", got.Status)
	}
}

func TestJobManager_RestartRecovery(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bake.db")

	store, err := runstore.NewStore(path)
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	for _, id := range []string{"running", "queued"} {
		store.CreateJob(&runstore.BakeJob{
			ID:        id,
			SceneID:   "orbit",
			Status:    runstore.JobStatusQueued,
			Params:    bakeParams(),
			CreatedAt: time.Now(),
		})
	}
	store.StartJob("running")
	store.Close()

	jm := newTestJobManager(t, path)
	defer jm.Stop()
	jm.Executor = func(ctx context.Context, store *runstore.Store, jobID string) error { return nil }
	jm.Start()

	if got := jm.Get("running"); got.Status != runstore.JobStatusFailed || got.Error != "server restarted" {
		t.Errorf("expected interrupted job to fail, got %s %q", got.Status, got.Error)
	}
	if got := waitForJob(t, jm, "queued"); got.Status != runstore.JobStatusCompleted {
		t.Errorf("expected re-queued job to complete, got %s", got.Status)
	}
}

func TestJobManager_PanickingBakeFails(t *testing.T) {
	jm := newTestJobManager(t, filepath.Join(t.TempDir(), "bake.db"))
	defer jm.Stop()

	jm.Executor = func(ctx context.Context, store *runstore.Store, jobID string) error {
		job, _ := store.GetJob(jobID)
		if job.Params.WriteTrace {
			panic("bad timeline")
		}
		return nil
	}
	jm.Start()

	bad := bakeParams()
	bad.WriteTrace = true
	crashed, err := jm.Submit(bad)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	got := waitForJob(t, jm, crashed.ID)
	if got.Status != runstore.JobStatusFailed || got.Error != "bake panicked: bad timeline" {
		t.Errorf("expected failed bake, got %s %q", got.Status, got.Error)
	}

	// The worker survives and keeps baking.
	next, err := jm.Submit(bakeParams())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if got := waitForJob(t, jm, next.ID); got.Status != runstore.JobStatusCompleted {
		t.Errorf("expected completed, got %s", got.Status)
	}
}
