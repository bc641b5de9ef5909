// Package assembler orchestrates one capture session: location fix,
// still capture, analysis and aggregation, producing a ViolationReport
// ready for the offline queue. At most one session runs at a time.
package assembler

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/apex/log"
	"github.com/google/uuid"

	"billboardwatch/aggregator"
	"billboardwatch/detector"
	"billboardwatch/models"
)

var (
	// ErrCaptureInProgress is returned when a second capture session is
	// started while one is still in flight.
	ErrCaptureInProgress = errors.New("capture already in progress")
	// ErrLocationUnavailable is returned by location providers that
	// cannot produce a fix.
	ErrLocationUnavailable = errors.New("location unavailable")
	// ErrCaptureFailed is returned by capture providers when the camera
	// produced no image.
	ErrCaptureFailed = errors.New("capture failed")
	// ErrBelowThreshold means the analysis resolved no violation type
	// and the confidence was too low to submit for review.
	ErrBelowThreshold = errors.New("confidence below reporting threshold")
)

// PermissionError reports a missing device capability grant. Surfaced
// directly to the caller for user action, never retried.
type PermissionError struct {
	Capability string // "camera", "location" or "storage"
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("permission denied: %s", e.Capability)
}

// LocationProvider supplies the device position.
type LocationProvider interface {
	CurrentLocation(ctx context.Context) (models.Location, error)
	// ReverseGeocode resolves coordinates to a street address. Callers
	// fall back to a coordinate string when it fails.
	ReverseGeocode(ctx context.Context, lat, lon float64) (string, error)
}

// CaptureProvider supplies still images from the camera.
type CaptureProvider interface {
	CaptureStill(ctx context.Context) (string, error)
}

// Assembler builds violation reports from capture sessions.
type Assembler struct {
	location LocationProvider
	camera   CaptureProvider
	detector detector.Detector

	reporterID string
	threshold  float64

	busy atomic.Bool
}

// New creates an assembler. threshold gates submission of captures that
// resolved no concrete violation type.
func New(loc LocationProvider, cam CaptureProvider, det detector.Detector, reporterID string, threshold float64) *Assembler {
	return &Assembler{
		location:   loc,
		camera:     cam,
		detector:   det,
		reporterID: reporterID,
		threshold:  threshold,
	}
}

// Capture runs one capture session. Fails fast with ErrCaptureInProgress
// while another session holds the busy flag.
func (a *Assembler) Capture(ctx context.Context) (*models.ViolationReport, error) {
	if !a.busy.CompareAndSwap(false, true) {
		return nil, ErrCaptureInProgress
	}
	defer a.busy.Store(false)

	loc, err := a.location.CurrentLocation(ctx)
	if err != nil {
		return nil, fmt.Errorf("getting location: %w", err)
	}
	if err := loc.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLocationUnavailable, err)
	}

	imageRef, err := a.camera.CaptureStill(ctx)
	if err != nil {
		return nil, fmt.Errorf("capturing still: %w", err)
	}

	loc.Address = a.resolveAddress(ctx, loc)

	analysis, err := a.detector.Detect(ctx, imageRef, loc)
	if err != nil {
		return nil, fmt.Errorf("analyzing %s: %w", imageRef, err)
	}

	overall, primary, err := aggregator.Aggregate(analysis)
	if err != nil {
		return nil, err
	}
	if primary == "" {
		if overall < a.threshold {
			return nil, ErrBelowThreshold
		}
		primary = models.ViolationPotential
	}

	now := time.Now().UTC()
	report := &models.ViolationReport{
		ID:                uuid.NewString(),
		ReporterID:        a.reporterID,
		Type:              primary,
		Description:       describeReport(overall),
		OverallConfidence: overall,
		PhotoRef:          imageRef,
		Location:          loc,
		CellID:            uint64(loc.CellID()),
		Status:            models.StatusPending,
		Analysis:          analysis,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	log.Infof("assembled report %s: type=%s confidence=%.2f at %s",
		report.ID, report.Type, report.OverallConfidence, loc.Address)
	return report, nil
}

func (a *Assembler) resolveAddress(ctx context.Context, loc models.Location) string {
	address, err := a.location.ReverseGeocode(ctx, loc.Latitude, loc.Longitude)
	if err != nil || address == "" {
		return FallbackAddress(loc.Latitude, loc.Longitude)
	}
	return address
}

// FallbackAddress is the fixed-precision coordinate string used when
// reverse geocoding fails.
func FallbackAddress(lat, lon float64) string {
	return fmt.Sprintf("%.6f, %.6f", lat, lon)
}

// describeReport renders the stored aggregate as the human-readable
// report description. The confidence is computed once by the aggregator;
// this only formats it.
func describeReport(confidence float64) string {
	return fmt.Sprintf("Potential billboard violation detected with %d%% confidence",
		int(math.Round(confidence*100)))
}
