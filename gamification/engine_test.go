package gamification

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"billboardwatch/models"
	"billboardwatch/storage"
)

func testPoints() PointsConfig {
	return PointsConfig{Verified: 50, Resolved: 75, AccuracyBonusMax: 50}
}

func outcome(id string, status models.ReportStatus, confidence float64, at time.Time) models.OutcomeEvent {
	return models.OutcomeEvent{
		ReportID:   id,
		OldStatus:  models.StatusPending,
		NewStatus:  status,
		Confidence: confidence,
		Type:       models.ViolationDamaged,
		OccurredAt: at,
	}
}

func newTestEngine(t *testing.T, catalog Catalog) (*Engine, storage.Store) {
	t.Helper()
	kv := storage.NewMemStore()
	e, err := NewEngine(kv, testPoints(), catalog)
	require.NoError(t, err)
	return e, kv
}

func TestApplyAwardsBasePlusConfidenceBonus(t *testing.T) {
	e, _ := newTestEngine(t, Catalog{})

	awarded, err := e.Apply(outcome("r1", models.StatusVerified, 0.9, time.Now().UTC()))
	require.NoError(t, err)
	// base 50 + floor(0.9 * 50) = 95, exactly.
	assert.Equal(t, int64(95), awarded)
	assert.Equal(t, int64(95), e.State().Points)

	awarded, err = e.Apply(outcome("r2", models.StatusResolved, 0.5, time.Now().UTC()))
	require.NoError(t, err)
	assert.Equal(t, int64(100), awarded)
	assert.Equal(t, int64(195), e.State().Points)
}

func TestApplyFalsePositiveAwardsNothing(t *testing.T) {
	e, _ := newTestEngine(t, Catalog{})

	awarded, err := e.Apply(outcome("r1", models.StatusFalsePositive, 0.9, time.Now().UTC()))
	require.NoError(t, err)
	assert.Equal(t, int64(0), awarded)

	state := e.State()
	assert.Equal(t, int64(0), state.Points)
	assert.Equal(t, uint64(1), state.OutcomeCount)
	assert.Equal(t, uint64(0), state.VerifiedCount)
}

func TestBadgesAreMonotonic(t *testing.T) {
	catalog := Catalog{Badges: []BadgeRule{
		{ID: "first_report", MinVerified: 1},
		{ID: "field_inspector", MinVerified: 3},
	}}
	e, _ := newTestEngine(t, catalog)

	_, err := e.Apply(outcome("r1", models.StatusVerified, 0.8, time.Now().UTC()))
	require.NoError(t, err)
	assert.Equal(t, []string{"first_report"}, e.State().Badges)

	for i := 0; i < 2; i++ {
		_, err = e.Apply(outcome("r2", models.StatusVerified, 0.8, time.Now().UTC()))
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"first_report", "field_inspector"}, e.State().Badges)

	// A later false positive never removes an earned badge.
	_, err = e.Apply(outcome("r3", models.StatusFalsePositive, 0.2, time.Now().UTC()))
	require.NoError(t, err)
	assert.Equal(t, []string{"first_report", "field_inspector"}, e.State().Badges)
}

func TestAccuracyBadgeNeedsFloor(t *testing.T) {
	catalog := Catalog{Badges: []BadgeRule{
		{ID: "sharp_eye", MinAccuracy: 0.8, AccuracyFloor: 3},
	}}
	e, _ := newTestEngine(t, catalog)

	// Two perfect outcomes: accuracy 1.0 but below the floor.
	_, err := e.Apply(outcome("r1", models.StatusVerified, 0.9, time.Now().UTC()))
	require.NoError(t, err)
	_, err = e.Apply(outcome("r2", models.StatusVerified, 0.9, time.Now().UTC()))
	require.NoError(t, err)
	assert.Empty(t, e.State().Badges)

	_, err = e.Apply(outcome("r3", models.StatusVerified, 0.9, time.Now().UTC()))
	require.NoError(t, err)
	assert.Equal(t, []string{"sharp_eye"}, e.State().Badges)
}

func TestChallengeProgressWithinWindow(t *testing.T) {
	catalog := Catalog{Challenges: []ChallengeRule{
		{ID: "weekly_patrol", Kind: "weekly", Target: 2, WindowDays: 7, Repeat: true},
	}}
	e, _ := newTestEngine(t, catalog)

	start := e.State().Challenges[0].WindowStart

	_, err := e.Apply(outcome("r1", models.StatusVerified, 0.8, start.Add(time.Hour)))
	require.NoError(t, err)
	assert.Equal(t, uint32(1), e.State().Challenges[0].Progress)

	// Outcome before the window does not count.
	_, err = e.Apply(outcome("r2", models.StatusVerified, 0.8, start.Add(-time.Hour)))
	require.NoError(t, err)
	assert.Equal(t, uint32(1), e.State().Challenges[0].Progress)

	// Progress saturates at the target.
	_, err = e.Apply(outcome("r3", models.StatusVerified, 0.8, start.Add(2*time.Hour)))
	require.NoError(t, err)
	_, err = e.Apply(outcome("r4", models.StatusVerified, 0.8, start.Add(3*time.Hour)))
	require.NoError(t, err)
	assert.Equal(t, uint32(2), e.State().Challenges[0].Progress)
}

func TestChallengeWindowExpiryArchivesAndRepeats(t *testing.T) {
	catalog := Catalog{Challenges: []ChallengeRule{
		{ID: "weekly_patrol", Kind: "weekly", Target: 5, WindowDays: 7, Repeat: true},
	}}
	e, _ := newTestEngine(t, catalog)

	first := e.State().Challenges[0]
	_, err := e.Apply(outcome("r1", models.StatusVerified, 0.8, first.WindowStart.Add(time.Hour)))
	require.NoError(t, err)

	// Jump past the window end: the old challenge is archived without
	// carry-over and a fresh one starts at the old end.
	e.now = func() time.Time { return first.WindowEnd.Add(time.Hour) }
	_, err = e.Apply(outcome("r2", models.StatusVerified, 0.8, first.WindowEnd.Add(time.Hour)))
	require.NoError(t, err)

	state := e.State()
	require.Len(t, state.Archived, 1)
	assert.Equal(t, uint32(1), state.Archived[0].Progress)

	require.Len(t, state.Challenges, 1)
	active := state.Challenges[0]
	assert.Equal(t, first.WindowEnd, active.WindowStart)
	assert.Equal(t, uint32(1), active.Progress)
}

func TestChallengeWithoutRepeatIsNotReinstantiated(t *testing.T) {
	catalog := Catalog{Challenges: []ChallengeRule{
		{ID: "launch_special", Kind: "special", Target: 3, WindowDays: 1, Repeat: false},
	}}
	e, _ := newTestEngine(t, catalog)
	first := e.State().Challenges[0]

	e.now = func() time.Time { return first.WindowEnd.Add(time.Hour) }
	_, err := e.Apply(outcome("r1", models.StatusVerified, 0.8, first.WindowEnd.Add(time.Hour)))
	require.NoError(t, err)

	state := e.State()
	assert.Empty(t, state.Challenges)
	require.Len(t, state.Archived, 1)
}

func TestStreakCounting(t *testing.T) {
	catalog := Catalog{Badges: []BadgeRule{{ID: "week_streak", MinStreakDays: 3}}}
	e, _ := newTestEngine(t, catalog)

	day := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 2; i++ {
		_, err := e.Apply(outcome("r", models.StatusVerified, 0.8, day.AddDate(0, 0, i)))
		require.NoError(t, err)
	}
	assert.Equal(t, uint32(2), e.State().StreakDays)
	assert.Empty(t, e.State().Badges)

	// Second outcome on the same day keeps the streak.
	_, err := e.Apply(outcome("r", models.StatusVerified, 0.8, day.AddDate(0, 0, 1)))
	require.NoError(t, err)
	assert.Equal(t, uint32(2), e.State().StreakDays)

	_, err = e.Apply(outcome("r", models.StatusVerified, 0.8, day.AddDate(0, 0, 2)))
	require.NoError(t, err)
	assert.Equal(t, uint32(3), e.State().StreakDays)
	assert.Equal(t, []string{"week_streak"}, e.State().Badges)

	// A gap resets the streak.
	_, err = e.Apply(outcome("r", models.StatusVerified, 0.8, day.AddDate(0, 0, 10)))
	require.NoError(t, err)
	assert.Equal(t, uint32(1), e.State().StreakDays)
	assert.Equal(t, []string{"week_streak"}, e.State().Badges)
}

func TestStatePersistsAcrossRestart(t *testing.T) {
	kv := storage.NewMemStore()
	e, err := NewEngine(kv, testPoints(), DefaultCatalog())
	require.NoError(t, err)

	_, err = e.Apply(outcome("r1", models.StatusVerified, 0.9, time.Now().UTC()))
	require.NoError(t, err)
	before := e.State()

	reopened, err := NewEngine(kv, testPoints(), DefaultCatalog())
	require.NoError(t, err)
	after := reopened.State()

	assert.Equal(t, before.Points, after.Points)
	assert.Equal(t, before.Badges, after.Badges)
	assert.Equal(t, before.VerifiedCount, after.VerifiedCount)
	require.Len(t, after.Challenges, len(before.Challenges))
}

func TestLoadCatalogDefault(t *testing.T) {
	catalog, err := LoadCatalog("")
	require.NoError(t, err)
	assert.NotEmpty(t, catalog.Badges)
	assert.NotEmpty(t, catalog.Challenges)
}
