package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"billboardwatch/config"
	"billboardwatch/service"
	"billboardwatch/storage"
)

func testService(t *testing.T) *service.Service {
	t.Helper()
	gin.SetMode(gin.TestMode)

	captureDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(captureDir, "001.jpg"), []byte("jpeg"), 0o644))

	cfg := config.Load()
	cfg.DeviceID = "test-device"
	cfg.DetectorMode = "heuristic"
	cfg.DetectorSeed = 42
	cfg.CaptureDir = captureDir
	cfg.DeviceLatitude = 42.442575
	cfg.DeviceLongitude = 19.268646
	cfg.DeviceAddress = "Bulevar Ivana Crnojevica 5"
	cfg.SyncInterval = time.Hour

	svc, err := service.NewWithStore(cfg, storage.NewMemStore())
	require.NoError(t, err)
	return svc
}

func doRequest(router *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	router.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	router := SetupRouter(NewHandlers(testService(t)))

	w := doRequest(router, http.MethodGet, "/health")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "field-agent", body["service"])
}

func TestCaptureAndQueue(t *testing.T) {
	router := SetupRouter(NewHandlers(testService(t)))

	w := doRequest(router, http.MethodPost, "/api/v3/capture")
	require.Equal(t, http.StatusOK, w.Code)

	var captureBody struct {
		Success bool `json:"success"`
		Report  struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"report"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &captureBody))
	assert.True(t, captureBody.Success)
	assert.NotEmpty(t, captureBody.Report.ID)
	assert.Equal(t, "pending", captureBody.Report.Status)

	w = doRequest(router, http.MethodGet, "/api/v3/queue")
	require.Equal(t, http.StatusOK, w.Code)

	var queueBody struct {
		Success bool              `json:"success"`
		Pending []json.RawMessage `json:"pending"`
		Failed  []json.RawMessage `json:"failed"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &queueBody))
	assert.Len(t, queueBody.Pending, 1)
	assert.Empty(t, queueBody.Failed)
}

func TestRetryUnknownEntry(t *testing.T) {
	router := SetupRouter(NewHandlers(testService(t)))

	w := doRequest(router, http.MethodPost, "/api/v3/queue/ghost/retry")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTriggerSync(t *testing.T) {
	router := SetupRouter(NewHandlers(testService(t)))

	w := doRequest(router, http.MethodPost, "/api/v3/sync")
	assert.Equal(t, http.StatusAccepted, w.Code)
}

func TestGetProfile(t *testing.T) {
	router := SetupRouter(NewHandlers(testService(t)))

	w := doRequest(router, http.MethodGet, "/api/v3/profile")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Success bool `json:"success"`
		Profile struct {
			Points     int64             `json:"points"`
			Challenges []json.RawMessage `json:"challenges"`
		} `json:"profile"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, int64(0), body.Profile.Points)
	assert.NotEmpty(t, body.Profile.Challenges)
}
