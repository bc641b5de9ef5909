package gamification

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// BadgeRule is a threshold predicate over the cumulative counters. A
// rule matches when every configured (non-zero) condition holds.
type BadgeRule struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	MinOutcomes uint64  `json:"min_outcomes,omitempty"`
	MinVerified uint64  `json:"min_verified,omitempty"`
	MinPoints   int64   `json:"min_points,omitempty"`
	MinAccuracy float64 `json:"min_accuracy,omitempty"`
	// MinAccuracy only applies once at least AccuracyFloor outcomes
	// exist, so a single lucky report cannot earn an accuracy badge.
	AccuracyFloor uint64 `json:"accuracy_floor,omitempty"`
	MinStreakDays uint32 `json:"min_streak_days,omitempty"`
}

// ChallengeRule configures a repeating or one-off challenge.
type ChallengeRule struct {
	ID     string `json:"id"`
	Kind   string `json:"kind"` // weekly, monthly or special
	Target uint32 `json:"target"`
	// WindowDays is the rolling window length; qualifying outcomes only
	// count inside [window_start, window_end).
	WindowDays int  `json:"window_days"`
	Repeat     bool `json:"repeat"`
}

// Window computes the challenge window starting at anchor.
func (r ChallengeRule) Window(anchor time.Time) (time.Time, time.Time) {
	start := anchor.UTC()
	return start, start.AddDate(0, 0, r.WindowDays)
}

// Catalog is the loadable rule set.
type Catalog struct {
	Badges     []BadgeRule     `json:"badges"`
	Challenges []ChallengeRule `json:"challenges"`
}

// DefaultCatalog mirrors the shipped badge and challenge set.
func DefaultCatalog() Catalog {
	return Catalog{
		Badges: []BadgeRule{
			{ID: "first_report", Name: "First Report", Description: "First confirmed report", MinVerified: 1},
			{ID: "field_inspector", Name: "Field Inspector", Description: "10 confirmed reports", MinVerified: 10},
			{ID: "compliance_champion", Name: "Compliance Champion", Description: "50 confirmed reports", MinVerified: 50},
			{ID: "sharp_eye", Name: "Sharp Eye", Description: "80% accuracy over 10+ outcomes", MinAccuracy: 0.8, AccuracyFloor: 10},
			{ID: "week_streak", Name: "Weekly Streak", Description: "Confirmed reports 7 days in a row", MinStreakDays: 7},
		},
		Challenges: []ChallengeRule{
			{ID: "weekly_patrol", Kind: "weekly", Target: 5, WindowDays: 7, Repeat: true},
			{ID: "monthly_sweep", Kind: "monthly", Target: 20, WindowDays: 30, Repeat: true},
		},
	}
}

// LoadCatalog reads a rule catalog from a JSON file, or returns the
// default catalog when path is empty.
func LoadCatalog(path string) (Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("reading rules catalog: %w", err)
	}
	var catalog Catalog
	if err := json.Unmarshal(raw, &catalog); err != nil {
		return Catalog{}, fmt.Errorf("parsing rules catalog: %w", err)
	}
	return catalog, nil
}
