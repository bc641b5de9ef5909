// Package handlers is the HTTP surface of a running agent.
package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"

	"billboardwatch/assembler"
	"billboardwatch/queue"
	"billboardwatch/service"
)

// Handlers holds all HTTP handlers
type Handlers struct {
	svc *service.Service
}

// NewHandlers creates a new handlers instance
func NewHandlers(svc *service.Service) *Handlers {
	return &Handlers{svc: svc}
}

// SetupRouter builds the gin router for the agent API.
func SetupRouter(h *Handlers) *gin.Engine {
	router := gin.Default()
	router.GET("/health", h.Health)

	api := router.Group("/api/v3")
	api.POST("/capture", h.Capture)
	api.GET("/queue", h.GetQueue)
	api.POST("/queue/:id/retry", h.RetryEntry)
	api.POST("/sync", h.TriggerSync)
	api.GET("/profile", h.GetProfile)
	return router
}

// Health reports liveness.
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   "field-agent",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// Capture runs one capture session and enqueues the report.
func (h *Handlers) Capture(c *gin.Context) {
	report, err := h.svc.Capture(c.Request.Context())
	if err != nil {
		status := http.StatusInternalServerError
		var permErr *assembler.PermissionError
		switch {
		case errors.Is(err, assembler.ErrCaptureInProgress):
			status = http.StatusConflict
		case errors.As(err, &permErr):
			status = http.StatusForbidden
		case errors.Is(err, assembler.ErrLocationUnavailable),
			errors.Is(err, assembler.ErrCaptureFailed),
			errors.Is(err, assembler.ErrBelowThreshold):
			status = http.StatusUnprocessableEntity
		}
		log.Errorf("capture failed: %v", err)
		c.JSON(status, gin.H{
			"success": false,
			"message": "Capture failed",
			"error":   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"report":     report,
		"violations": len(report.Analysis.DetectedViolations),
	})
}

// GetQueue lists pending and failed entries.
func (h *Handlers) GetQueue(c *gin.Context) {
	pending, err := h.svc.Queue().ListPending()
	if err != nil {
		log.Errorf("listing pending entries: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "Failed to list queue",
			"error":   err.Error(),
		})
		return
	}
	failed, err := h.svc.Queue().ListFailed()
	if err != nil {
		log.Errorf("listing failed entries: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "Failed to list queue",
			"error":   err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"pending": pending,
		"failed":  failed,
	})
}

// RetryEntry requeues a failed entry and triggers a drain.
func (h *Handlers) RetryEntry(c *gin.Context) {
	id := c.Param("id")
	if err := h.svc.Queue().ManualRetry(id); err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, queue.ErrNotFound):
			status = http.StatusNotFound
		case errors.Is(err, queue.ErrNotFailed):
			status = http.StatusConflict
		}
		c.JSON(status, gin.H{
			"success": false,
			"message": "Failed to retry entry",
			"error":   err.Error(),
		})
		return
	}
	h.svc.Sync()
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"id":      id,
	})
}

// TriggerSync requests a coalesced drain.
func (h *Handlers) TriggerSync(c *gin.Context) {
	h.svc.Sync()
	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"message": "Sync triggered",
	})
}

// GetProfile returns points, badges and challenge progress.
func (h *Handlers) GetProfile(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"profile": h.svc.Profile(),
	})
}
