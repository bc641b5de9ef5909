package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"billboardwatch/config"
	"billboardwatch/models"
	"billboardwatch/storage"
)

func testConfig(t *testing.T, backendURL string) *config.Config {
	t.Helper()
	captureDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(captureDir, "001.jpg"), []byte("jpeg"), 0o644))

	cfg := config.Load()
	cfg.DeviceID = "test-device"
	cfg.DetectorSeed = 42
	cfg.CaptureDir = captureDir
	cfg.DeviceLatitude = 42.442575
	cfg.DeviceLongitude = 19.268646
	cfg.DeviceAddress = "Bulevar Ivana Crnojevica 5"
	cfg.BackendURL = backendURL
	cfg.SubmitTimeout = time.Second
	cfg.SyncInterval = time.Hour
	return cfg
}

func TestCaptureToSyncPipeline(t *testing.T) {
	// The backend verifies everything it receives.
	var received []models.ViolationReport
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var report models.ViolationReport
		require.NoError(t, json.NewDecoder(r.Body).Decode(&report))
		received = append(received, report)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"id":%q,"status":"verified"}`, report.ID)
	}))
	defer srv.Close()

	svc, err := NewWithStore(testConfig(t, srv.URL), storage.NewMemStore())
	require.NoError(t, err)

	report, err := svc.Capture(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, report.Status)
	assert.Equal(t, "test-device", report.ReporterID)

	pending, err := svc.Queue().ListPending()
	require.NoError(t, err)
	require.Len(t, pending, 1)

	require.NoError(t, svc.DrainOnce(context.Background()))

	require.Len(t, received, 1)
	assert.Equal(t, report.ID, received[0].ID)

	pending, err = svc.Queue().ListPending()
	require.NoError(t, err)
	assert.Empty(t, pending)

	// The verified acknowledgement reached the gamification engine.
	profile := svc.Profile()
	assert.Greater(t, profile.Points, int64(0))
	assert.Equal(t, uint64(1), profile.VerifiedCount)
}

func TestCaptureSurvivesAgentRestart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	kv := storage.NewMemStore()
	cfg := testConfig(t, srv.URL)

	svc, err := NewWithStore(cfg, kv)
	require.NoError(t, err)
	report, err := svc.Capture(context.Background())
	require.NoError(t, err)

	// Restart: a fresh service over the same store still sees the report.
	reopened, err := NewWithStore(cfg, kv)
	require.NoError(t, err)
	pending, err := reopened.Queue().ListPending()
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, report.ID, pending[0].Report.ID)
}

func TestCaptureFailsWithoutImage(t *testing.T) {
	cfg := testConfig(t, "http://localhost:0")
	cfg.CaptureDir = t.TempDir() // empty spool

	svc, err := NewWithStore(cfg, storage.NewMemStore())
	require.NoError(t, err)

	_, err = svc.Capture(context.Background())
	assert.Error(t, err)

	pending, listErr := svc.Queue().ListPending()
	require.NoError(t, listErr)
	assert.Empty(t, pending)
}
