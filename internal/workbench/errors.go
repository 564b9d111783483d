package workbench

import (
	"errors"
	"fmt"
)

// Precondition failures. None of them mutate state.
var (
	ErrNoClaim           = errors.New("workbench: no active claim")
	ErrNotEnoughPhotos   = errors.New("workbench: not enough photos to assess")
	ErrNoAssessment      = errors.New("workbench: no assessment available")
	ErrAssessmentRunning = errors.New("workbench: assessment already running")
	ErrNothingToUndo     = errors.New("workbench: nothing to undo")
	ErrNothingPending    = errors.New("workbench: no confirmation pending")
	ErrStaleAssessment   = errors.New("workbench: assessment result no longer applies")
	ErrAlreadyDecided    = errors.New("workbench: claim already decided")
)

// ValidationError reports operator input that was rejected.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// PartIndexError reports a part index outside the current assessment.
type PartIndexError struct {
	Index int
	Len   int
}

func (e *PartIndexError) Error() string {
	return fmt.Sprintf("workbench: part index %d out of range [0,%d)", e.Index, e.Len)
}
