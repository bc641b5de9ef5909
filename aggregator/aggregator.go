// Package aggregator reduces a raw detector analysis to the overall
// confidence and primary violation type stored on a report.
package aggregator

import (
	"fmt"

	"billboardwatch/models"
)

// CompliantConfidence is the documented default confidence that a
// billboard with no detected violations is compliant.
const CompliantConfidence = 0.95

// typePriority is the fixed tie-break order for the primary violation
// type. The order is a design decision, not a severity ranking; it only
// has to be total and stable.
var typePriority = []models.ViolationType{
	models.ViolationOversized,
	models.ViolationImproperLocation,
	models.ViolationDamaged,
	models.ViolationMissingPermit,
	models.ViolationUnauthorized,
}

// InvalidAnalysisError reports an analysis the aggregator refuses to
// score; such analyses are never enqueued.
type InvalidAnalysisError struct {
	Reason string
}

func (e *InvalidAnalysisError) Error() string {
	return fmt.Sprintf("invalid analysis: %s", e.Reason)
}

// Validate checks the structural invariants of an analysis: the
// violation set and score map carry exactly the same keys, and every
// score lies in [0,1].
func Validate(a models.AIAnalysis) error {
	seen := map[models.ViolationType]bool{}
	for _, vt := range a.DetectedViolations {
		if seen[vt] {
			return &InvalidAnalysisError{Reason: fmt.Sprintf("duplicate violation %q", vt)}
		}
		seen[vt] = true
		score, ok := a.ConfidenceScores[vt]
		if !ok {
			return &InvalidAnalysisError{Reason: fmt.Sprintf("violation %q has no confidence score", vt)}
		}
		if score < 0 || score > 1 {
			return &InvalidAnalysisError{Reason: fmt.Sprintf("confidence %f for %q out of range", score, vt)}
		}
	}
	for vt := range a.ConfidenceScores {
		if !seen[vt] {
			return &InvalidAnalysisError{Reason: fmt.Sprintf("score for %q without detected violation", vt)}
		}
	}
	return nil
}

// Aggregate computes the overall confidence and primary violation type.
// An empty violation set yields CompliantConfidence and no primary type
// (empty string). Otherwise the overall confidence is the mean of the
// scores and the primary type is the highest-priority detected type.
func Aggregate(a models.AIAnalysis) (float64, models.ViolationType, error) {
	if err := Validate(a); err != nil {
		return 0, "", err
	}

	if len(a.DetectedViolations) == 0 {
		return CompliantConfidence, "", nil
	}

	sum := 0.0
	for _, score := range a.ConfidenceScores {
		sum += score
	}
	overall := sum / float64(len(a.ConfidenceScores))

	for _, vt := range typePriority {
		if _, ok := a.ConfidenceScores[vt]; ok {
			return overall, vt, nil
		}
	}
	// Detected types outside the priority table keep detector insertion order.
	return overall, a.DetectedViolations[0], nil
}
