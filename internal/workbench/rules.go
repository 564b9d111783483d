package workbench

import (
	"time"

	"github.com/kingrea/claims-workbench/internal/claims"
)

// Rules are the business constants the controller enforces.
type Rules struct {
	// PolicyPrefix every policy number must start with, after normalization.
	PolicyPrefix string
	// HighValueThreshold in cents; approving above it requires confirmation.
	HighValueThreshold int64
	// MinPhotos needed before an assessment can run.
	MinPhotos int
	// UndoDepth caps the undo stack; zero means unbounded.
	UndoDepth int
	// AssessmentTimeout bounds a single inference call; zero disables it.
	AssessmentTimeout time.Duration
}

// DefaultRules returns the standard desk settings.
func DefaultRules() Rules {
	return Rules{
		PolicyPrefix:       claims.DefaultPolicyPrefix,
		HighValueThreshold: 100000,
		MinPhotos:          2,
		UndoDepth:          50,
		AssessmentTimeout:  30 * time.Second,
	}
}

func (r Rules) withDefaults() Rules {
	def := DefaultRules()
	if r.PolicyPrefix == "" {
		r.PolicyPrefix = def.PolicyPrefix
	}
	if r.HighValueThreshold <= 0 {
		r.HighValueThreshold = def.HighValueThreshold
	}
	if r.MinPhotos <= 0 {
		r.MinPhotos = def.MinPhotos
	}
	if r.UndoDepth < 0 {
		r.UndoDepth = 0
	}
	if r.AssessmentTimeout < 0 {
		r.AssessmentTimeout = 0
	}
	return r
}
