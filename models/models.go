package models

import (
	"fmt"
	"time"

	"github.com/golang/geo/s2"
)

// AnalysisVersion is the current wire version of AIAnalysis. Persisted
// queue records and backend submissions carry it so that future detector
// changes stay decodable.
const AnalysisVersion = 1

// CellLevel is the S2 cell level attached to reports. The backend
// aggregates heat maps by cell, so the agent computes it once at
// assembly time.
const CellLevel = 23

// ViolationType identifies a category of billboard violation.
type ViolationType string

const (
	ViolationOversized        ViolationType = "oversized"
	ViolationImproperLocation ViolationType = "improper_location"
	ViolationDamaged          ViolationType = "damaged"
	ViolationMissingPermit    ViolationType = "missing_permit"
	ViolationUnauthorized     ViolationType = "unauthorized"

	// ViolationPotential is the sentinel type used when the analysis
	// resolved no concrete violation but the capture is still worth
	// submitting for review.
	ViolationPotential ViolationType = "potential_violation"
)

// Location is a geotag attached to a capture.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Address   string  `json:"address"`
}

// Validate checks the coordinate ranges.
func (l Location) Validate() error {
	if !s2.LatLngFromDegrees(l.Latitude, l.Longitude).IsValid() {
		return fmt.Errorf("invalid coordinates %f,%f", l.Latitude, l.Longitude)
	}
	return nil
}

// CellID returns the S2 cell covering the location at CellLevel.
func (l Location) CellID() s2.CellID {
	return s2.CellIDFromLatLng(s2.LatLngFromDegrees(l.Latitude, l.Longitude)).Parent(CellLevel)
}

// AIAnalysis is the structured output of a violation detector.
// DetectedViolations preserves detector insertion order; every entry has
// a matching confidence score and vice versa.
type AIAnalysis struct {
	Version            int                       `json:"analysis_version"`
	DetectedViolations []ViolationType           `json:"detected_violations"`
	ConfidenceScores   map[ViolationType]float64 `json:"confidence_scores"`
	PermitExtracted    bool                      `json:"permit_extracted"`
	PermitNumber       string                    `json:"permit_number,omitempty"`
	SizeCompliance     bool                      `json:"size_compliance"`
	LocationCompliance bool                      `json:"location_compliance"`
	DamageDetected     bool                      `json:"damage_detected"`
}

// ViolationReport is the unit that flows from capture through the queue
// to the backend. Created only by the assembler; after creation the
// status moves through the lifecycle state machine and the sync engine
// owns the sync metadata.
type ViolationReport struct {
	ID                string        `json:"id"`
	BillboardID       string        `json:"billboard_id,omitempty"`
	ReporterID        string        `json:"reporter_id"`
	Type              ViolationType `json:"type"`
	Description       string        `json:"description"`
	OverallConfidence float64       `json:"overall_confidence"`
	PhotoRef          string        `json:"photo_ref"`
	Location          Location      `json:"location"`
	CellID            uint64        `json:"cell_id"`
	Status            ReportStatus  `json:"status"`
	Analysis          AIAnalysis    `json:"analysis"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

// SyncState tracks where a queue entry is in the submission pipeline.
type SyncState string

const (
	SyncLocal   SyncState = "local"
	SyncQueued  SyncState = "queued"
	SyncSyncing SyncState = "syncing"
	SyncSynced  SyncState = "synced"
	SyncFailed  SyncState = "failed"
)

// QueueEntry is one durable record of the offline queue.
type QueueEntry struct {
	Report        ViolationReport `json:"report"`
	RetryCount    uint32          `json:"retry_count"`
	LastAttemptAt *time.Time      `json:"last_attempt_at,omitempty"`
	SyncState     SyncState       `json:"sync_state"`
}

// OutcomeEvent is emitted when a backend acknowledgement moves a report
// to a new status. The gamification engine is its only consumer.
type OutcomeEvent struct {
	ReportID   string        `json:"report_id"`
	OldStatus  ReportStatus  `json:"old_status"`
	NewStatus  ReportStatus  `json:"new_status"`
	Confidence float64       `json:"confidence"`
	Type       ViolationType `json:"type"`
	OccurredAt time.Time     `json:"occurred_at"`
}

// ChallengeProgress tracks one active or archived challenge window.
type ChallengeProgress struct {
	ChallengeID string    `json:"challenge_id"`
	WindowStart time.Time `json:"window_start"`
	WindowEnd   time.Time `json:"window_end"`
	Progress    uint32    `json:"progress"`
	Target      uint32    `json:"target"`
}

// GamificationState is the persisted progress of the device user.
type GamificationState struct {
	Points     int64               `json:"points"`
	Badges     []string            `json:"badges"`
	Challenges []ChallengeProgress `json:"challenges"`
	Archived   []ChallengeProgress `json:"archived_challenges,omitempty"`

	// Counters feeding badge predicates.
	OutcomeCount   uint64 `json:"outcome_count"`
	VerifiedCount  uint64 `json:"verified_count"`
	StreakDays     uint32 `json:"streak_days"`
	LastOutcomeDay string `json:"last_outcome_day,omitempty"` // YYYY-MM-DD, UTC
}

// HasBadge reports whether the badge was already earned.
func (s *GamificationState) HasBadge(id string) bool {
	for _, b := range s.Badges {
		if b == id {
			return true
		}
	}
	return false
}

// Accuracy is the share of outcomes the backend confirmed.
func (s *GamificationState) Accuracy() float64 {
	if s.OutcomeCount == 0 {
		return 0
	}
	return float64(s.VerifiedCount) / float64(s.OutcomeCount)
}
