package workbench

import (
	"fmt"

	"github.com/kingrea/claims-workbench/internal/claims"
)

// Outcome says whether an intent took effect or is waiting on the operator.
type Outcome int

const (
	OutcomeCommitted Outcome = iota
	OutcomeNeedsConfirmation
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCommitted:
		return "committed"
	case OutcomeNeedsConfirmation:
		return "needs-confirmation"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Confirmation is the action parked behind a confirm prompt.
type Confirmation int

const (
	ConfirmNone Confirmation = iota
	ConfirmApprove
	ConfirmEscalate
	ConfirmNewClaim
)

func (c Confirmation) String() string {
	switch c {
	case ConfirmNone:
		return "none"
	case ConfirmApprove:
		return "approve"
	case ConfirmEscalate:
		return "escalate"
	case ConfirmNewClaim:
		return "new-claim"
	default:
		return fmt.Sprintf("confirmation(%d)", int(c))
	}
}

// Title is the heading shown above the prompt.
func (c Confirmation) Title() string {
	switch c {
	case ConfirmApprove:
		return "Confirm High-Value Approval"
	case ConfirmEscalate:
		return "Confirm Escalation"
	case ConfirmNewClaim:
		return "Discard Current Assessment?"
	default:
		return ""
	}
}

// View is a read-only copy of the workbench. Nothing in it aliases
// controller state.
type View struct {
	Claim      *claims.Claim
	Photos     []claims.Photo
	Assessment *claims.Assessment
	Actions    []string
	Step       claims.Step

	PolicyError     string
	UploadHint      string
	Status          string
	SuccessMessage  string
	AssessmentError string
	Running         bool
	NewClaimAllowed bool
	Pending         Confirmation
	EditingIndex    *int
	UndoDepth       int
}

// CanUndo reports whether there is a snapshot to restore.
func (v View) CanUndo() bool {
	return v.UndoDepth > 0
}

// CanAssess reports whether BeginAssessment would be accepted.
func (v View) CanAssess(minPhotos int) bool {
	return v.Claim != nil && len(v.Photos) >= minPhotos && !v.Running
}

// Decided reports whether the claim was approved or escalated.
func (v View) Decided() bool {
	return v.NewClaimAllowed
}

// Prompt renders the confirmation text for the pending action.
func (v View) Prompt() string {
	switch v.Pending {
	case ConfirmApprove:
		total := int64(0)
		if v.Assessment != nil {
			total = v.Assessment.TotalMax
		}
		return fmt.Sprintf("This claim has a total estimated cost of %s. Are you sure you want to approve it for fast-track processing?", claims.FormatCents(total))
	case ConfirmEscalate:
		return "Are you sure you want to escalate this claim for manual review? This action will be logged and the claim will be assigned to a senior adjuster."
	case ConfirmNewClaim:
		return "You have an assessment in progress. Starting a new claim will discard all current data. Are you sure you want to continue?"
	default:
		return ""
	}
}

// State returns a copy of the current workbench.
func (c *Controller) State() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	var editing *int
	if c.editingIndex != nil {
		idx := *c.editingIndex
		editing = &idx
	}
	return View{
		Claim:           c.claim.Clone(),
		Photos:          claims.ClonePhotos(c.photos),
		Assessment:      c.assessment.Clone(),
		Actions:         cloneStrings(c.actions),
		Step:            c.step,
		PolicyError:     c.policyError,
		UploadHint:      c.uploadHint,
		Status:          c.status,
		SuccessMessage:  c.successMessage,
		AssessmentError: c.assessmentError,
		Running:         c.running,
		NewClaimAllowed: c.newClaimAllowed,
		Pending:         c.pending,
		EditingIndex:    editing,
		UndoDepth:       c.history.len(),
	}
}
