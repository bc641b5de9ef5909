package aggregator

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"billboardwatch/models"
)

func analysis(scores map[models.ViolationType]float64, order ...models.ViolationType) models.AIAnalysis {
	return models.AIAnalysis{
		Version:            models.AnalysisVersion,
		DetectedViolations: order,
		ConfidenceScores:   scores,
	}
}

func TestAggregateCompliant(t *testing.T) {
	overall, primary, err := Aggregate(analysis(map[models.ViolationType]float64{}))
	require.NoError(t, err)
	assert.Equal(t, CompliantConfidence, overall)
	assert.Equal(t, models.ViolationType(""), primary)
}

func TestAggregateSingleViolation(t *testing.T) {
	overall, primary, err := Aggregate(analysis(
		map[models.ViolationType]float64{models.ViolationDamaged: 0.80},
		models.ViolationDamaged,
	))
	require.NoError(t, err)
	assert.Equal(t, 0.80, overall)
	assert.Equal(t, models.ViolationDamaged, primary)
}

func TestAggregateMeanOfScores(t *testing.T) {
	overall, _, err := Aggregate(analysis(
		map[models.ViolationType]float64{
			models.ViolationDamaged:       0.72,
			models.ViolationMissingPermit: 0.96,
		},
		models.ViolationDamaged, models.ViolationMissingPermit,
	))
	require.NoError(t, err)
	assert.InDelta(t, 0.84, overall, 1e-9)
}

func TestAggregatePriorityOrder(t *testing.T) {
	// oversized wins regardless of score magnitudes or insertion order.
	overall, primary, err := Aggregate(analysis(
		map[models.ViolationType]float64{
			models.ViolationDamaged:   0.99,
			models.ViolationOversized: 0.60,
		},
		models.ViolationDamaged, models.ViolationOversized,
	))
	require.NoError(t, err)
	assert.InDelta(t, 0.795, overall, 1e-9)
	assert.Equal(t, models.ViolationOversized, primary)

	_, primary, err = Aggregate(analysis(
		map[models.ViolationType]float64{
			models.ViolationUnauthorized:  0.99,
			models.ViolationMissingPermit: 0.91,
		},
		models.ViolationUnauthorized, models.ViolationMissingPermit,
	))
	require.NoError(t, err)
	assert.Equal(t, models.ViolationMissingPermit, primary)
}

func TestAggregateRejectsInvalid(t *testing.T) {
	testCases := []struct {
		name string
		in   models.AIAnalysis
	}{
		{
			name: "score out of range",
			in: analysis(
				map[models.ViolationType]float64{models.ViolationDamaged: 1.2},
				models.ViolationDamaged,
			),
		},
		{
			name: "negative score",
			in: analysis(
				map[models.ViolationType]float64{models.ViolationDamaged: -0.1},
				models.ViolationDamaged,
			),
		},
		{
			name: "violation without score",
			in: analysis(
				map[models.ViolationType]float64{},
				models.ViolationDamaged,
			),
		},
		{
			name: "score without violation",
			in: analysis(
				map[models.ViolationType]float64{models.ViolationOversized: 0.9},
			),
		},
		{
			name: "duplicate violation entry",
			in: analysis(
				map[models.ViolationType]float64{models.ViolationDamaged: 0.8},
				models.ViolationDamaged, models.ViolationDamaged,
			),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := Aggregate(tc.in)
			var invalid *InvalidAnalysisError
			assert.True(t, errors.As(err, &invalid), "expected InvalidAnalysisError, got %v", err)
		})
	}
}
