// Package gamification turns report outcomes into points, badges and
// challenge progress. State is mutated here only and persisted through
// the durable store.
package gamification

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/apex/log"
	"github.com/shopspring/decimal"

	"billboardwatch/models"
	"billboardwatch/storage"
)

const stateKey = "gamification/state"

// PointsConfig is the award table. It is configuration, not logic: the
// engine applies whatever values are loaded.
type PointsConfig struct {
	Verified int64 // base points for a verified outcome
	Resolved int64 // base points for a resolved outcome
	// AccuracyBonusMax scales the confidence bonus:
	// bonus = floor(confidence * AccuracyBonusMax).
	AccuracyBonusMax int64
}

// Engine consumes outcome events and maintains the gamification state.
type Engine struct {
	mu      sync.Mutex
	kv      storage.Store
	points  PointsConfig
	catalog Catalog
	state   models.GamificationState

	now func() time.Time
}

// NewEngine loads any persisted state and instantiates missing
// challenge windows.
func NewEngine(kv storage.Store, points PointsConfig, catalog Catalog) (*Engine, error) {
	e := &Engine{
		kv:      kv,
		points:  points,
		catalog: catalog,
		now:     func() time.Time { return time.Now().UTC() },
	}
	value, ok, err := kv.Get(stateKey)
	if err != nil {
		return nil, fmt.Errorf("loading gamification state: %w", err)
	}
	if ok {
		if err := json.Unmarshal(value, &e.state); err != nil {
			return nil, fmt.Errorf("decoding gamification state: %w", err)
		}
	}
	e.ensureChallenges(e.now())
	if err := e.persist(); err != nil {
		return nil, err
	}
	return e, nil
}

// State returns a copy of the current state.
func (e *Engine) State() models.GamificationState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshot()
}

// Apply books one report outcome: awards points, advances challenges
// inside their windows and evaluates badge predicates. Returns the
// points awarded.
func (e *Engine) Apply(ev models.OutcomeEvent) (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	qualifying := ev.NewStatus == models.StatusVerified || ev.NewStatus == models.StatusResolved

	e.state.OutcomeCount++
	awarded := int64(0)
	if qualifying {
		e.state.VerifiedCount++
		awarded = e.award(ev)
		e.state.Points += awarded
		e.advanceStreak(ev.OccurredAt)
	}

	e.rollWindows(e.now())
	if qualifying {
		e.advanceChallenges(ev.OccurredAt)
	}
	e.evaluateBadges()

	if err := e.persist(); err != nil {
		return 0, err
	}
	if awarded > 0 {
		log.Infof("report %s %s: +%d points (total %d)", ev.ReportID, ev.NewStatus, awarded, e.state.Points)
	}
	return awarded, nil
}

func (e *Engine) award(ev models.OutcomeEvent) int64 {
	var base int64
	switch ev.NewStatus {
	case models.StatusVerified:
		base = e.points.Verified
	case models.StatusResolved:
		base = e.points.Resolved
	}
	bonus := decimal.NewFromFloat(ev.Confidence).
		Mul(decimal.NewFromInt(e.points.AccuracyBonusMax)).
		Floor().
		IntPart()
	return base + bonus
}

func (e *Engine) advanceStreak(at time.Time) {
	day := at.UTC().Format("2006-01-02")
	switch e.state.LastOutcomeDay {
	case day:
		// Same day, streak unchanged.
	case at.UTC().AddDate(0, 0, -1).Format("2006-01-02"):
		e.state.StreakDays++
	default:
		e.state.StreakDays = 1
	}
	e.state.LastOutcomeDay = day
}

// ensureChallenges instantiates a window for every catalog rule that has
// no active challenge yet.
func (e *Engine) ensureChallenges(now time.Time) {
	active := map[string]bool{}
	for _, c := range e.state.Challenges {
		active[c.ChallengeID] = true
	}
	for _, rule := range e.catalog.Challenges {
		if active[rule.ID] {
			continue
		}
		start, end := rule.Window(now)
		e.state.Challenges = append(e.state.Challenges, models.ChallengeProgress{
			ChallengeID: rule.ID,
			WindowStart: start,
			WindowEnd:   end,
			Target:      rule.Target,
		})
	}
}

// rollWindows archives expired challenges. A repeating rule starts a
// fresh window anchored at the old window end; progress never carries
// over.
func (e *Engine) rollWindows(now time.Time) {
	rules := map[string]ChallengeRule{}
	for _, r := range e.catalog.Challenges {
		rules[r.ID] = r
	}

	kept := e.state.Challenges[:0]
	for _, c := range e.state.Challenges {
		for !now.Before(c.WindowEnd) {
			e.state.Archived = append(e.state.Archived, c)
			rule, ok := rules[c.ChallengeID]
			if !ok || !rule.Repeat {
				c = models.ChallengeProgress{}
				break
			}
			start, end := rule.Window(c.WindowEnd)
			c = models.ChallengeProgress{
				ChallengeID: rule.ID,
				WindowStart: start,
				WindowEnd:   end,
				Target:      rule.Target,
			}
		}
		if c.ChallengeID != "" {
			kept = append(kept, c)
		}
	}
	e.state.Challenges = kept
}

func (e *Engine) advanceChallenges(at time.Time) {
	for i := range e.state.Challenges {
		c := &e.state.Challenges[i]
		if at.Before(c.WindowStart) || !at.Before(c.WindowEnd) {
			continue
		}
		if c.Progress < c.Target {
			c.Progress++
		}
	}
}

// evaluateBadges runs every badge predicate. Earned badges are permanent.
func (e *Engine) evaluateBadges() {
	for _, rule := range e.catalog.Badges {
		if e.state.HasBadge(rule.ID) {
			continue
		}
		if e.matches(rule) {
			e.state.Badges = append(e.state.Badges, rule.ID)
			log.Infof("badge earned: %s", rule.ID)
		}
	}
}

func (e *Engine) matches(rule BadgeRule) bool {
	if rule.MinOutcomes > 0 && e.state.OutcomeCount < rule.MinOutcomes {
		return false
	}
	if rule.MinVerified > 0 && e.state.VerifiedCount < rule.MinVerified {
		return false
	}
	if rule.MinPoints > 0 && e.state.Points < rule.MinPoints {
		return false
	}
	if rule.MinAccuracy > 0 {
		if e.state.OutcomeCount < rule.AccuracyFloor {
			return false
		}
		if e.state.Accuracy() < rule.MinAccuracy {
			return false
		}
	}
	if rule.MinStreakDays > 0 && e.state.StreakDays < rule.MinStreakDays {
		return false
	}
	return true
}

func (e *Engine) persist() error {
	value, err := json.Marshal(&e.state)
	if err != nil {
		return fmt.Errorf("encoding gamification state: %w", err)
	}
	if err := e.kv.Set(stateKey, value); err != nil {
		return fmt.Errorf("persisting gamification state: %w", err)
	}
	return nil
}

func (e *Engine) snapshot() models.GamificationState {
	cp := e.state
	cp.Badges = append([]string(nil), e.state.Badges...)
	cp.Challenges = append([]models.ChallengeProgress(nil), e.state.Challenges...)
	cp.Archived = append([]models.ChallengeProgress(nil), e.state.Archived...)
	return cp
}
