package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/atlasmap-sc/orbitscene/internal/animator"
	"github.com/atlasmap-sc/orbitscene/internal/runstore"
	"github.com/atlasmap-sc/orbitscene/internal/tracefile"
)

// bakeBatchSize is the number of trail points written per transaction.
const bakeBatchSize = 64

// MaxBakeFrames bounds the timeline of one bake job.
const MaxBakeFrames = 100000

// ErrBakeTooLong is returned for timelines longer than MaxBakeFrames.
var ErrBakeTooLong = errors.New("bake timeline too long")

// CheckBakeParams validates p and its length for baking.
func CheckBakeParams(p animator.Params) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if n := p.FrameCount(); n > MaxBakeFrames {
		return fmt.Errorf("%w: %d frames, at most %d", ErrBakeTooLong, n, MaxBakeFrames)
	}
	return nil
}

// BakeService runs bake jobs against the configured scenes.
type BakeService struct {
	registry interface {
		Get(sceneID string) *SceneService
	}
	traceDir string
}

// NewBakeService creates a new bake service. Traces are written under traceDir.
func NewBakeService(registry interface{ Get(sceneID string) *SceneService }, traceDir string) *BakeService {
	return &BakeService{registry: registry, traceDir: traceDir}
}

// ExecuteBakeJob animates a job's timeline, storing its trail and optionally
// its trace (called by the job manager's workers).
func (s *BakeService) ExecuteBakeJob(ctx context.Context, store *runstore.Store, jobID string) error {
	job, err := store.GetJob(jobID)
	if err != nil {
		return fmt.Errorf("failed to get job: %w", err)
	}
	if job == nil {
		return fmt.Errorf("job not found: %s", jobID)
	}
	if s.registry.Get(job.Params.SceneID) == nil {
		return fmt.Errorf("scene not found: %s", job.Params.SceneID)
	}

	params := job.Params.Animation
	if err := CheckBakeParams(params); err != nil {
		return err
	}
	run, err := animator.NewRun(params)
	if err != nil {
		return err
	}
	total := params.FrameCount()

	// Phase 1: animate and persist the trail
	store.UpdateJobProgress(jobID, "animate", 0, total)

	batch := make([]runstore.TrailRow, 0, bakeBatchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := store.InsertTrailPoints(jobID, batch); err != nil {
			return fmt.Errorf("failed to store trail: %w", err)
		}
		batch = batch[:0]
		return store.UpdateJobProgress(jobID, "animate", run.Len(), total)
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		f, ok := run.Next()
		if !ok {
			break
		}
		batch = append(batch, runstore.TrailRow{Frame: f.Index, TrailPoint: f.Trail})
		if len(batch) == bakeBatchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := flush(); err != nil {
		return err
	}

	if !job.Params.WriteTrace {
		return nil
	}

	// Phase 2: trace export
	store.UpdateJobProgress(jobID, "trace", 0, 1)
	path, err := s.writeTrace(job)
	if err != nil {
		return err
	}
	if err := store.UpdateJobTrace(jobID, path); err != nil {
		return err
	}
	store.UpdateJobProgress(jobID, "trace", 1, 1)
	return nil
}

func (s *BakeService) writeTrace(job *runstore.BakeJob) (string, error) {
	if err := os.MkdirAll(s.traceDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create trace dir: %w", err)
	}
	path := filepath.Join(s.traceDir, job.ID+".ndjson.zst")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create trace: %w", err)
	}
	if err := tracefile.Write(f, job.Params.SceneID, job.Params.Animation); err != nil {
		f.Close()
		os.Remove(path)
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", err
	}
	if err := verifyTrace(path, job.Params.Animation.FrameCount()); err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}

// verifyTrace reads a written trace back and checks its frame count.
func verifyTrace(path string, frames int) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	trace, err := tracefile.Read(f)
	if err != nil {
		return fmt.Errorf("trace verification failed: %w", err)
	}
	if len(trace.Frames) != frames {
		return fmt.Errorf("trace verification failed: %d frames, want %d", len(trace.Frames), frames)
	}
	return nil
}
