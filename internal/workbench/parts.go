package workbench

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/kingrea/claims-workbench/internal/claims"
	"github.com/kingrea/claims-workbench/internal/logbook"
)

// OverrideMetadata lets the editor supply its own delta figures. Nil fields
// are derived from the previous and new maximum cost.
type OverrideMetadata struct {
	Delta        *float64
	DeltaPercent *float64
	HighValue    *bool
}

// OverridePart replaces the part at index with an adjuster's correction.
func (c *Controller) OverridePart(index int, updated claims.DamagedPart, meta OverrideMetadata) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.partIndexReady(index); err != nil {
		return err
	}
	if err := updated.Validate(); err != nil {
		return &ValidationError{Field: "part", Message: err.Error()}
	}
	prev := c.assessment.DamagedParts[index]

	c.pushSnapshot()
	next := c.assessment.Clone()
	next.DamagedParts[index] = updated
	if len(next.CostBreakdown) == len(next.DamagedParts) {
		next.CostBreakdown[index] = claims.BreakdownFor(updated)
	}
	next.Recompute()
	c.assessment = next
	c.editingIndex = nil

	delta := float64(updated.EstimatedCostMax-prev.EstimatedCostMax) / 100
	if meta.Delta != nil {
		delta = *meta.Delta
	}
	pct := 0.0
	if prev.EstimatedCostMax != 0 {
		pct = float64(updated.EstimatedCostMax-prev.EstimatedCostMax) / float64(prev.EstimatedCostMax)
	}
	if meta.DeltaPercent != nil {
		pct = *meta.DeltaPercent
	}
	highValue := updated.EstimatedCostMax > c.rules.HighValueThreshold
	if meta.HighValue != nil {
		highValue = *meta.HighValue
	}
	suffix := ""
	if highValue {
		suffix = ", high-value case"
	}
	c.record(logbook.LevelInfo, fmt.Sprintf("Override applied to part %d (Δ %.2f, %.1f%%%s)", index+1, delta, pct*100, suffix))
	c.logger.Info("part overridden",
		zap.Int("index", index),
		zap.Int64("previous_max", prev.EstimatedCostMax),
		zap.Int64("new_max", updated.EstimatedCostMax),
		zap.Int64("total_max", next.TotalMax),
	)
	return nil
}

// AddPart appends a part to the current assessment.
func (c *Controller) AddPart(part claims.DamagedPart) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.assessment == nil {
		return ErrNoAssessment
	}
	if c.running {
		return ErrAssessmentRunning
	}
	if err := part.Validate(); err != nil {
		return &ValidationError{Field: "part", Message: err.Error()}
	}

	c.pushSnapshot()
	next := c.assessment.Clone()
	aligned := len(next.CostBreakdown) == len(next.DamagedParts) && next.CostBreakdown != nil
	next.DamagedParts = append(next.DamagedParts, part)
	if aligned {
		next.CostBreakdown = append(next.CostBreakdown, claims.BreakdownFor(part))
	}
	next.Recompute()
	c.assessment = next
	c.editingIndex = nil
	c.record(logbook.LevelInfo, "New part added to assessment")
	c.logger.Info("part added", zap.Int("parts", len(next.DamagedParts)), zap.Int64("total_max", next.TotalMax))
	return nil
}

// RemovePart deletes the part at index.
func (c *Controller) RemovePart(index int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.partIndexReady(index); err != nil {
		return err
	}

	c.pushSnapshot()
	next := c.assessment.Clone()
	aligned := len(next.CostBreakdown) == len(next.DamagedParts)
	next.DamagedParts = append(next.DamagedParts[:index], next.DamagedParts[index+1:]...)
	if aligned {
		next.CostBreakdown = append(next.CostBreakdown[:index], next.CostBreakdown[index+1:]...)
	}
	next.Recompute()
	c.assessment = next
	c.editingIndex = nil
	c.record(logbook.LevelInfo, fmt.Sprintf("Part %d removed from assessment", index+1))
	c.logger.Info("part removed", zap.Int("index", index), zap.Int64("total_max", next.TotalMax))
	return nil
}

// SetEditingIndex opens the override editor on a part, or closes it with nil.
func (c *Controller) SetEditingIndex(index *int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if index == nil {
		c.editingIndex = nil
		return nil
	}
	if err := c.partIndexReady(*index); err != nil {
		return err
	}
	idx := *index
	c.editingIndex = &idx
	c.record(logbook.LevelInfo, fmt.Sprintf("Opening override modal for part %d", idx+1))
	return nil
}

func (c *Controller) partIndexReady(index int) error {
	if c.assessment == nil {
		return ErrNoAssessment
	}
	if c.running {
		return ErrAssessmentRunning
	}
	if index < 0 || index >= len(c.assessment.DamagedParts) {
		return &PartIndexError{Index: index, Len: len(c.assessment.DamagedParts)}
	}
	return nil
}
