package models

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApplyTransition(t *testing.T) {
	testCases := []struct {
		name    string
		from    ReportStatus
		to      ReportStatus
		allowed bool
	}{
		{name: "pending to verified", from: StatusPending, to: StatusVerified, allowed: true},
		{name: "pending to false positive", from: StatusPending, to: StatusFalsePositive, allowed: true},
		{name: "verified to resolved", from: StatusVerified, to: StatusResolved, allowed: true},
		{name: "verified to false positive", from: StatusVerified, to: StatusFalsePositive, allowed: true},
		{name: "resolved back to pending", from: StatusResolved, to: StatusPending, allowed: false},
		{name: "false positive to verified", from: StatusFalsePositive, to: StatusVerified, allowed: false},
		{name: "pending to resolved skips verification", from: StatusPending, to: StatusResolved, allowed: false},
		{name: "verified to pending", from: StatusVerified, to: StatusPending, allowed: false},
		{name: "self transition rejected", from: StatusPending, to: StatusPending, allowed: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := ApplyTransition(tc.from, tc.to)
			if tc.allowed {
				assert.NoError(t, err)
				return
			}
			var invalid *InvalidTransitionError
			assert.True(t, errors.As(err, &invalid))
			assert.Equal(t, tc.from, invalid.From)
			assert.Equal(t, tc.to, invalid.To)
		})
	}
}

func TestTerminalStatuses(t *testing.T) {
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusVerified.Terminal())
	assert.True(t, StatusResolved.Terminal())
	assert.True(t, StatusFalsePositive.Terminal())
}

func TestLocationValidate(t *testing.T) {
	assert.NoError(t, Location{Latitude: 42.44, Longitude: 19.26}.Validate())
	assert.NoError(t, Location{Latitude: -90, Longitude: 180}.Validate())
	assert.Error(t, Location{Latitude: 91, Longitude: 0}.Validate())
	assert.Error(t, Location{Latitude: 0, Longitude: -181}.Validate())
}

func TestLocationCellIDStable(t *testing.T) {
	loc := Location{Latitude: 42.442575, Longitude: 19.268646}
	assert.Equal(t, loc.CellID(), loc.CellID())
	assert.Equal(t, CellLevel, loc.CellID().Level())
}
