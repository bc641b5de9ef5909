// Package providers contains the device-facing provider implementations
// the agent ships with. Real deployments substitute hardware-backed
// providers behind the same interfaces.
package providers

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"billboardwatch/assembler"
	"billboardwatch/models"
)

// StaticLocator returns a fixed position configured for the device. It
// has no reverse-geocoding backend, so callers always fall back to the
// coordinate string.
type StaticLocator struct {
	Latitude  float64
	Longitude float64
	Address   string
}

func (l *StaticLocator) CurrentLocation(ctx context.Context) (models.Location, error) {
	if err := ctx.Err(); err != nil {
		return models.Location{}, err
	}
	if l.Latitude == 0 && l.Longitude == 0 && l.Address == "" {
		return models.Location{}, assembler.ErrLocationUnavailable
	}
	return models.Location{
		Latitude:  l.Latitude,
		Longitude: l.Longitude,
		Address:   l.Address,
	}, nil
}

func (l *StaticLocator) ReverseGeocode(ctx context.Context, lat, lon float64) (string, error) {
	if l.Address != "" {
		return l.Address, nil
	}
	return "", fmt.Errorf("no geocoding backend configured")
}

// DirectoryCamera serves still images from a spool directory, oldest
// file first, in place of a camera. It is the capture provider used by
// the CLI and by integration runs.
type DirectoryCamera struct {
	Dir string
}

func (c *DirectoryCamera) CaptureStill(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	info, err := os.Stat(c.Dir)
	if err != nil {
		if os.IsPermission(err) {
			return "", &assembler.PermissionError{Capability: "storage"}
		}
		return "", fmt.Errorf("%w: %v", assembler.ErrCaptureFailed, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%w: %s is not a directory", assembler.ErrCaptureFailed, c.Dir)
	}

	entries, err := os.ReadDir(c.Dir)
	if err != nil {
		return "", fmt.Errorf("%w: %v", assembler.ErrCaptureFailed, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, e.Name())
	}
	if len(names) == 0 {
		return "", fmt.Errorf("%w: no image in %s", assembler.ErrCaptureFailed, c.Dir)
	}
	sort.Strings(names)
	return filepath.Join(c.Dir, names[0]), nil
}

// FixedClockLocator decorates another location provider with a timeout;
// a fix that takes longer than the budget counts as unavailable.
type FixedClockLocator struct {
	Inner   assembler.LocationProvider
	Timeout time.Duration
}

func (l *FixedClockLocator) CurrentLocation(ctx context.Context) (models.Location, error) {
	ctx, cancel := context.WithTimeout(ctx, l.Timeout)
	defer cancel()
	loc, err := l.Inner.CurrentLocation(ctx)
	if err != nil && ctx.Err() != nil {
		return models.Location{}, assembler.ErrLocationUnavailable
	}
	return loc, err
}

func (l *FixedClockLocator) ReverseGeocode(ctx context.Context, lat, lon float64) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, l.Timeout)
	defer cancel()
	return l.Inner.ReverseGeocode(ctx, lat, lon)
}
