package inference

import (
	"context"
	"errors"
	"time"

	"github.com/kingrea/claims-workbench/internal/claims"
)

// DefaultMockDelay stands in for the latency of a real inference call.
const DefaultMockDelay = 2 * time.Second

// MockModelVersion is reported in the metadata of mock assessments.
const MockModelVersion = "mock-v1"

// Mock returns the same rear-bumper assessment for every request after Delay.
type Mock struct {
	Delay time.Duration
	Clock func() time.Time
}

// NewMock creates a mock assessor with the given delay.
func NewMock(delay time.Duration) *Mock {
	return &Mock{Delay: delay, Clock: time.Now}
}

// Assess waits for Delay (or ctx) and returns MockAssessment.
func (m *Mock) Assess(ctx context.Context, req Request) (claims.Assessment, error) {
	if len(req.Photos) == 0 {
		return claims.Assessment{}, &Error{Op: "mock assess", Err: errors.New("no photos supplied")}
	}
	if m.Delay > 0 {
		timer := time.NewTimer(m.Delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return claims.Assessment{}, Wrap("mock assess", ctx.Err())
		case <-timer.C:
		}
	} else if err := ctx.Err(); err != nil {
		return claims.Assessment{}, Wrap("mock assess", err)
	}
	now := time.Now
	if m.Clock != nil {
		now = m.Clock
	}
	return MockAssessment(now().UTC()), nil
}

// MockAssessment builds the fixed assessment: one moderately damaged rear
// bumper at 0.85 confidence, $500-$800 to replace.
func MockAssessment(at time.Time) claims.Assessment {
	bumper := claims.DamagedPart{
		PartID:           claims.PartRearBumper,
		PartLabel:        "Rear Bumper",
		Severity:         claims.SeverityModerate,
		Confidence:       0.85,
		EstimatedCostMin: 50000,
		EstimatedCostMax: 80000,
		RepairAction:     "replace",
	}
	fraud := 0.15
	a := claims.Assessment{
		DamagedParts:      []claims.DamagedPart{bumper},
		OverallConfidence: 0.85,
		Recommendation: claims.Recommendation{
			Code: claims.RecommendFastTrack,
			Text: "Approve - high confidence, low exposure",
		},
		Flags:          []string{},
		ImageQuality:   []string{"Good lighting", "Multiple angles provided"},
		CostBreakdown:  []claims.CostBreakdownEntry{claims.BreakdownFor(bumper)},
		FraudRiskScore: &fraud,
		Meta: &claims.AssessmentMeta{
			ModelVersion:     MockModelVersion,
			ProcessingTimeMS: 1500,
			Timestamp:        at,
		},
	}
	a.Recompute()
	return a
}
