package workbench

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kingrea/claims-workbench/internal/claims"
	"github.com/kingrea/claims-workbench/internal/inference"
	"github.com/kingrea/claims-workbench/internal/logbook"
	"github.com/kingrea/claims-workbench/internal/media"
)

// AssessmentJob is one in-flight assessment. Only the job issued by the most
// recent BeginAssessment can complete; undo and reset retire it.
type AssessmentJob struct {
	Request   inference.Request
	StartedAt time.Time

	generation uint64
}

// BeginAssessment marks the workbench busy and hands back the request to run.
// Pair it with Execute, or call CompleteAssessment with a result obtained
// some other way.
func (c *Controller) BeginAssessment() (*AssessmentJob, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.claim == nil {
		return nil, ErrNoClaim
	}
	if len(c.photos) < c.rules.MinPhotos {
		return nil, ErrNotEnoughPhotos
	}
	if c.running {
		return nil, ErrAssessmentRunning
	}

	c.pushSnapshot()
	c.running = true
	c.assessmentError = ""
	c.status = "Running AI assessment..."
	c.record(logbook.LevelInfo, "AI assessment started")
	c.generation++

	photos := claims.ClonePhotos(c.photos)
	uploads := make([]media.Upload, len(photos))
	for i, photo := range photos {
		uploads[i] = c.uploads[photo.ID]
	}
	job := &AssessmentJob{
		Request: inference.Request{
			Claim:   *c.claim.Clone(),
			Photos:  photos,
			Uploads: uploads,
		},
		StartedAt:  c.clock(),
		generation: c.generation,
	}
	c.logger.Info("assessment started",
		zap.String("claim_id", c.claim.ID),
		zap.Int("photos", len(photos)),
		zap.Uint64("generation", job.generation),
	)
	return job, nil
}

// Execute runs the job against the configured assessor and applies the
// result. It blocks, so presentation layers call it off their event loop.
func (c *Controller) Execute(ctx context.Context, job *AssessmentJob) error {
	if job == nil {
		return ErrStaleAssessment
	}
	var (
		runCtx context.Context
		cancel context.CancelFunc
	)
	if c.rules.AssessmentTimeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, c.rules.AssessmentTimeout)
	} else {
		runCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	c.mu.Lock()
	if c.running && job.generation == c.generation {
		c.cancelJob = cancel
	}
	c.mu.Unlock()

	result, err := c.assessor.Assess(runCtx, job.Request)
	return c.CompleteAssessment(job, result, err)
}

// RunAssessment begins and executes an assessment in one blocking call.
func (c *Controller) RunAssessment(ctx context.Context) error {
	job, err := c.BeginAssessment()
	if err != nil {
		return err
	}
	return c.Execute(ctx, job)
}

// CompleteAssessment applies the outcome of job. A job retired by undo,
// reset or a newer claim is refused with ErrStaleAssessment and changes
// nothing.
func (c *Controller) CompleteAssessment(job *AssessmentJob, result claims.Assessment, runErr error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if job == nil || !c.running || job.generation != c.generation {
		c.logger.Debug("stale assessment dropped", zap.Error(runErr))
		return ErrStaleAssessment
	}
	c.running = false
	c.cancelJob = nil
	elapsed := c.clock().Sub(job.StartedAt)

	if runErr != nil {
		runErr = inference.Wrap("assess", runErr)
		summary := inference.Summary(runErr)
		c.assessmentError = fmt.Sprintf("Assessment failed: %s. Retry when ready.", summary)
		c.status = c.assessmentError
		c.record(logbook.LevelError, "AI assessment failed: "+summary)
		c.logger.Error("assessment failed",
			zap.Error(runErr),
			zap.Bool("retryable", inference.IsRetryable(runErr)),
			zap.Duration("elapsed", elapsed),
		)
		return runErr
	}

	next := result.Clone()
	next.Recompute()
	c.assessment = next
	c.step = claims.StepDecision
	c.editingIndex = nil
	c.status = "Assessment complete."
	c.record(logbook.LevelInfo, "AI assessment completed")
	c.logger.Info("assessment completed",
		zap.Int("parts", len(next.DamagedParts)),
		zap.Int64("total_max", next.TotalMax),
		zap.String("recommendation", string(next.Recommendation.Code)),
		zap.Duration("elapsed", elapsed),
	)
	return nil
}
