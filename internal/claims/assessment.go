package claims

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Severity classifies how badly a part is damaged.
type Severity string

const (
	SeverityMinor    Severity = "minor"
	SeverityModerate Severity = "moderate"
	SeveritySevere   Severity = "severe"
)

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	switch s {
	case SeverityMinor, SeverityModerate, SeveritySevere:
		return true
	}
	return false
}

// VehiclePart identifies a damaged component.
type VehiclePart string

const (
	PartFrontBumper VehiclePart = "front_bumper"
	PartRearBumper  VehiclePart = "rear_bumper"
	PartHood        VehiclePart = "hood"
	PartTrunk       VehiclePart = "trunk"
	PartDoorFront   VehiclePart = "door_front"
	PartDoorRear    VehiclePart = "door_rear"
	PartFender      VehiclePart = "fender"
	PartQuarter     VehiclePart = "quarter_panel"
	PartHeadlight   VehiclePart = "headlight"
	PartTaillight   VehiclePart = "taillight"
	PartWindshield  VehiclePart = "windshield"
	PartMirror      VehiclePart = "side_mirror"
	PartOther       VehiclePart = "other"
)

// RecommendationCode is the machine-readable recommendation category.
type RecommendationCode string

const (
	RecommendFastTrack    RecommendationCode = "FAST_TRACK_REVIEW"
	RecommendStandard     RecommendationCode = "STANDARD_REVIEW"
	RecommendManual       RecommendationCode = "MANUAL_REVIEW"
	RecommendMorePhotos   RecommendationCode = "REQUEST_MORE_PHOTOS"
	RecommendationUnknown RecommendationCode = ""
)

// DamagedPart is one line item of an assessment. Costs are in cents.
type DamagedPart struct {
	PartID           VehiclePart `json:"part_id,omitempty" yaml:"part_id"`
	PartLabel        string      `json:"part_label" yaml:"part_label"`
	Severity         Severity    `json:"severity" yaml:"severity"`
	Confidence       float64     `json:"confidence" yaml:"confidence"`
	EstimatedCostMin int64       `json:"estimated_cost_min" yaml:"estimated_cost_min"`
	EstimatedCostMax int64       `json:"estimated_cost_max" yaml:"estimated_cost_max"`
	RepairAction     string      `json:"repair_action,omitempty" yaml:"repair_action"`
}

// Validate checks the invariants a part must hold before it enters an assessment.
func (p DamagedPart) Validate() error {
	if strings.TrimSpace(p.PartLabel) == "" && p.PartID == "" {
		return fmt.Errorf("part label is required")
	}
	if p.Severity != "" && !p.Severity.Valid() {
		return fmt.Errorf("unknown severity %q", p.Severity)
	}
	if p.Confidence < 0 || p.Confidence > 1 || math.IsNaN(p.Confidence) {
		return fmt.Errorf("confidence must be within [0,1], got %v", p.Confidence)
	}
	if p.EstimatedCostMin < 0 || p.EstimatedCostMax < 0 {
		return fmt.Errorf("estimated costs must be non-negative")
	}
	if p.EstimatedCostMin > p.EstimatedCostMax {
		return fmt.Errorf("minimum cost %d exceeds maximum cost %d", p.EstimatedCostMin, p.EstimatedCostMax)
	}
	return nil
}

// Label returns the display label, falling back to the part identifier.
func (p DamagedPart) Label() string {
	if label := strings.TrimSpace(p.PartLabel); label != "" {
		return label
	}
	return string(p.PartID)
}

// Recommendation pairs a code with operator-facing text.
type Recommendation struct {
	Code RecommendationCode `json:"code"`
	Text string             `json:"text"`
}

// CostBreakdownEntry is one block of the human-readable cost breakdown.
type CostBreakdownEntry struct {
	Label   string   `json:"label"`
	Details []string `json:"details,omitempty"`
}

// AssessmentMeta describes the run that produced an assessment.
type AssessmentMeta struct {
	ModelVersion     string    `json:"model_version"`
	ProcessingTimeMS int64     `json:"processing_time_ms"`
	Timestamp        time.Time `json:"timestamp"`
}

// Assessment is the damage estimate for a claim.
type Assessment struct {
	DamagedParts      []DamagedPart        `json:"damaged_parts"`
	TotalMin          int64                `json:"total_min"`
	TotalMax          int64                `json:"total_max"`
	OverallConfidence float64              `json:"overall_confidence"`
	Recommendation    Recommendation       `json:"recommendation"`
	Flags             []string             `json:"flags"`
	ImageQuality      []string             `json:"image_quality,omitempty"`
	CostBreakdown     []CostBreakdownEntry `json:"cost_breakdown,omitempty"`
	FraudRiskScore    *float64             `json:"fraud_risk_score,omitempty"`
	Meta              *AssessmentMeta      `json:"_meta,omitempty"`
}

// SumCosts returns the summed minimum and maximum cost over parts.
func SumCosts(parts []DamagedPart) (int64, int64) {
	var lo, hi int64
	for _, p := range parts {
		lo += p.EstimatedCostMin
		hi += p.EstimatedCostMax
	}
	return lo, hi
}

// Recompute sets the aggregate totals to the sum over the current parts.
func (a *Assessment) Recompute() {
	if a == nil {
		return
	}
	a.TotalMin, a.TotalMax = SumCosts(a.DamagedParts)
}

// Clone deep-copies the assessment. Nil slices stay nil.
func (a *Assessment) Clone() *Assessment {
	if a == nil {
		return nil
	}
	out := *a
	if a.DamagedParts != nil {
		out.DamagedParts = make([]DamagedPart, len(a.DamagedParts))
		copy(out.DamagedParts, a.DamagedParts)
	}
	out.Flags = cloneStrings(a.Flags)
	out.ImageQuality = cloneStrings(a.ImageQuality)
	if a.CostBreakdown != nil {
		out.CostBreakdown = make([]CostBreakdownEntry, len(a.CostBreakdown))
		for i, entry := range a.CostBreakdown {
			out.CostBreakdown[i] = CostBreakdownEntry{Label: entry.Label, Details: cloneStrings(entry.Details)}
		}
	}
	if a.FraudRiskScore != nil {
		score := *a.FraudRiskScore
		out.FraudRiskScore = &score
	}
	if a.Meta != nil {
		meta := *a.Meta
		out.Meta = &meta
	}
	return &out
}

// BreakdownFor renders the cost breakdown block for a single part.
func BreakdownFor(p DamagedPart) CostBreakdownEntry {
	details := []string{}
	if p.Severity != "" {
		details = append(details, fmt.Sprintf("Severity: %s", p.Severity))
	}
	details = append(details, fmt.Sprintf("Range: %s - %s", FormatCents(p.EstimatedCostMin), FormatCents(p.EstimatedCostMax)))
	if p.RepairAction != "" {
		details = append(details, fmt.Sprintf("Action: %s", p.RepairAction))
	}
	return CostBreakdownEntry{Label: p.Label(), Details: details}
}

// FormatCents renders a cent amount as whole dollars, e.g. 80000 -> "$800".
func FormatCents(cents int64) string {
	dollars := math.Round(float64(cents) / 100)
	return fmt.Sprintf("$%.0f", dollars)
}

// FraudRiskBand buckets a fraud-risk score for display.
type FraudRiskBand string

const (
	FraudRiskNone     FraudRiskBand = "none"
	FraudRiskElevated FraudRiskBand = "elevated"
	FraudRiskReview   FraudRiskBand = "review"
)

// BandForScore maps a score to its band: >0.6 review, >0.3 elevated.
func BandForScore(score float64) FraudRiskBand {
	switch {
	case score > 0.6:
		return FraudRiskReview
	case score > 0.3:
		return FraudRiskElevated
	default:
		return FraudRiskNone
	}
}

// FraudRisk returns the band for the assessment's score, if any.
func (a *Assessment) FraudRisk() FraudRiskBand {
	if a == nil || a.FraudRiskScore == nil {
		return FraudRiskNone
	}
	return BandForScore(*a.FraudRiskScore)
}

func cloneStrings(values []string) []string {
	if values == nil {
		return nil
	}
	out := make([]string, len(values))
	copy(out, values)
	return out
}
