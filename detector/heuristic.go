package detector

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/apex/log"

	"billboardwatch/config"
	"billboardwatch/models"
)

// Heuristic is an on-device stand-in for the real vision model. It
// samples four independent binary signals (permit, size, location,
// damage) plus an unauthorized-structure check, and assigns each firing
// signal a confidence from its configured range. Deterministic under a
// fixed seed.
type Heuristic struct {
	mu  sync.Mutex
	rnd *rand.Rand

	oversized        config.SignalPolicy
	improperLocation config.SignalPolicy
	damaged          config.SignalPolicy
	missingPermit    config.SignalPolicy
	unauthorized     config.SignalPolicy
}

// NewHeuristic builds a heuristic detector from the configured signal
// policies. seed 0 selects a time-based seed.
func NewHeuristic(cfg *config.Config, seed int64) *Heuristic {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Heuristic{
		rnd:              rand.New(rand.NewSource(seed)),
		oversized:        cfg.Oversized,
		improperLocation: cfg.ImproperLocation,
		damaged:          cfg.Damaged,
		missingPermit:    cfg.MissingPermit,
		unauthorized:     cfg.Unauthorized,
	}
}

func (h *Heuristic) Detect(ctx context.Context, imageRef string, loc models.Location) (models.AIAnalysis, error) {
	if err := ctx.Err(); err != nil {
		return models.AIAnalysis{}, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	analysis := models.AIAnalysis{
		Version:            models.AnalysisVersion,
		ConfidenceScores:   map[models.ViolationType]float64{},
		PermitExtracted:    h.rnd.Float64() >= h.missingPermit.ViolationRate,
		SizeCompliance:     h.rnd.Float64() >= h.oversized.ViolationRate,
		LocationCompliance: h.rnd.Float64() >= h.improperLocation.ViolationRate,
		DamageDetected:     h.rnd.Float64() < h.damaged.ViolationRate,
	}
	if analysis.PermitExtracted {
		analysis.PermitNumber = fmt.Sprintf("PRM-%04d", h.rnd.Intn(10000))
	}

	if !analysis.SizeCompliance {
		h.addViolation(&analysis, models.ViolationOversized, h.oversized)
	}
	if !analysis.LocationCompliance {
		h.addViolation(&analysis, models.ViolationImproperLocation, h.improperLocation)
	}
	if analysis.DamageDetected {
		h.addViolation(&analysis, models.ViolationDamaged, h.damaged)
	}
	if !analysis.PermitExtracted {
		h.addViolation(&analysis, models.ViolationMissingPermit, h.missingPermit)
	}
	if h.rnd.Float64() < h.unauthorized.ViolationRate {
		h.addViolation(&analysis, models.ViolationUnauthorized, h.unauthorized)
	}

	log.Debugf("heuristic analysis of %s: %d violation(s)", imageRef, len(analysis.DetectedViolations))
	return analysis, nil
}

func (h *Heuristic) addViolation(a *models.AIAnalysis, vt models.ViolationType, policy config.SignalPolicy) {
	a.DetectedViolations = append(a.DetectedViolations, vt)
	a.ConfidenceScores[vt] = policy.ConfidenceMin + h.rnd.Float64()*(policy.ConfidenceMax-policy.ConfidenceMin)
}
