// Package detector analyzes captured billboard images for regulatory
// violations. Implementations range from the on-device heuristic to a
// remote model service; callers only see the Detector contract.
package detector

import (
	"context"
	"errors"

	"billboardwatch/models"
)

// ErrUnavailable means the detector could not analyze the image at all
// (model service down, runtime missing). The capture is not assembled.
var ErrUnavailable = errors.New("detection unavailable")

// Detector produces a structured analysis for a captured image.
type Detector interface {
	Detect(ctx context.Context, imageRef string, loc models.Location) (models.AIAnalysis, error)
}
