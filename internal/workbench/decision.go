package workbench

import (
	"go.uber.org/zap"

	"github.com/kingrea/claims-workbench/internal/claims"
	"github.com/kingrea/claims-workbench/internal/logbook"
)

// Approve fast-tracks the claim. Approvals above the high-value threshold
// wait for Confirm.
func (c *Controller) Approve() (Outcome, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.decisionReady(); err != nil {
		return OutcomeCommitted, err
	}
	if c.assessment.TotalMax > c.rules.HighValueThreshold {
		c.pending = ConfirmApprove
		c.logger.Info("approval needs confirmation", zap.Int64("total_max", c.assessment.TotalMax))
		return OutcomeNeedsConfirmation, nil
	}
	c.commitApprove()
	return OutcomeCommitted, nil
}

// Escalate always waits for Confirm.
func (c *Controller) Escalate() (Outcome, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.decisionReady(); err != nil {
		return OutcomeCommitted, err
	}
	c.pending = ConfirmEscalate
	return OutcomeNeedsConfirmation, nil
}

// RequestPhotos sends the claim back to the photo step.
func (c *Controller) RequestPhotos() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.assessment == nil {
		return ErrNoAssessment
	}
	if c.running {
		return ErrAssessmentRunning
	}
	c.pushSnapshot()
	c.record(logbook.LevelInfo, "Additional photos requested")
	c.step = claims.StepPhotoUpload
	c.uploadHint = "Please upload additional photos for better assessment."
	c.status = "Awaiting additional photos."
	c.newClaimAllowed = false
	c.pending = ConfirmNone
	c.logger.Info("additional photos requested", zap.String("claim_id", c.claim.ID))
	return nil
}

// Confirm commits the pending action.
func (c *Controller) Confirm() (Outcome, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	pending := c.pending
	c.pending = ConfirmNone
	switch pending {
	case ConfirmApprove:
		if err := c.decisionReady(); err != nil {
			return OutcomeCommitted, err
		}
		c.commitApprove()
	case ConfirmEscalate:
		if err := c.decisionReady(); err != nil {
			return OutcomeCommitted, err
		}
		c.commitEscalate()
	case ConfirmNewClaim:
		c.reset()
	default:
		return OutcomeCommitted, ErrNothingPending
	}
	return OutcomeCommitted, nil
}

// Cancel drops the pending action without side effects.
func (c *Controller) Cancel() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pending == ConfirmNone {
		return ErrNothingPending
	}
	c.logger.Debug("confirmation cancelled", zap.Stringer("pending", c.pending))
	c.pending = ConfirmNone
	return nil
}

func (c *Controller) decisionReady() error {
	switch {
	case c.assessment == nil:
		return ErrNoAssessment
	case c.running:
		return ErrAssessmentRunning
	case c.newClaimAllowed:
		return ErrAlreadyDecided
	}
	return nil
}

func (c *Controller) commitApprove() {
	c.pushSnapshot()
	c.record(logbook.LevelInfo, "Claim approved")
	c.pending = ConfirmNone
	c.successMessage = "Claim approved successfully! Ready to process next claim."
	c.status = "Claim approved successfully."
	c.newClaimAllowed = true
	c.logger.Info("claim approved",
		zap.String("claim_id", c.claim.ID),
		zap.Int64("total_max", c.assessment.TotalMax),
	)
}

func (c *Controller) commitEscalate() {
	c.pushSnapshot()
	c.record(logbook.LevelWarn, "Claim escalated for manual review")
	c.pending = ConfirmNone
	c.successMessage = "Claim escalated to senior adjuster for manual review."
	c.status = "Claim escalated for manual review."
	c.newClaimAllowed = true
	c.logger.Info("claim escalated", zap.String("claim_id", c.claim.ID))
}
