package handlers

import (
	"context"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/mellow-health/exam-analytics-service/internal/services"
	"github.com/mellow-health/exam-analytics-service/internal/utils"
)

// AnalyticsHandler serves the current analysis snapshot. The snapshot is
// replaced wholesale on refresh under a write lock; reads share a read lock,
// so GET endpoints never observe a half-updated result.
type AnalyticsHandler struct {
	runner *services.RunService
	logger utils.Logger

	mu       sync.RWMutex
	snapshot *services.AnalysisResult
}

func NewAnalyticsHandler(runner *services.RunService, logger utils.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{
		runner: runner,
		logger: logger,
	}
}

// RefreshSnapshot recomputes the snapshot. Called at startup and from the
// refresh endpoint.
func (h *AnalyticsHandler) RefreshSnapshot(ctx context.Context) error {
	result, err := h.runner.Run(ctx)
	if err != nil {
		return err
	}
	h.mu.Lock()
	h.snapshot = result
	h.mu.Unlock()
	return nil
}

func (h *AnalyticsHandler) current() (*services.AnalysisResult, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.snapshot, h.snapshot != nil
}

// Refresh handles POST /api/v1/analytics/refresh
func (h *AnalyticsHandler) Refresh(c *gin.Context) {
	if err := h.RefreshSnapshot(c.Request.Context()); err != nil {
		h.logger.LogError(err, "snapshot refresh failed")
		sendError(c, http.StatusInternalServerError, "failed to refresh analysis snapshot")
		return
	}
	snapshot, _ := h.current()
	sendData(c, http.StatusOK, gin.H{
		"total_responses": snapshot.Overview.TotalResponses,
		"unique_users":    snapshot.Overview.UniqueUsers,
		"clean":           snapshot.Report.IsClean(),
		"issues":          len(snapshot.Report.Issues),
	})
}

// Overview handles GET /api/v1/analytics/overview
func (h *AnalyticsHandler) Overview(c *gin.Context) {
	snapshot, ok := h.current()
	if !ok {
		sendError(c, http.StatusServiceUnavailable, "no analysis snapshot available yet")
		return
	}
	sendData(c, http.StatusOK, snapshot.Overview)
}

// Trends handles GET /api/v1/analytics/trends
func (h *AnalyticsHandler) Trends(c *gin.Context) {
	snapshot, ok := h.current()
	if !ok {
		sendError(c, http.StatusServiceUnavailable, "no analysis snapshot available yet")
		return
	}
	sendData(c, http.StatusOK, snapshot.Trends)
}

// Difficulty handles GET /api/v1/analytics/difficulty
func (h *AnalyticsHandler) Difficulty(c *gin.Context) {
	snapshot, ok := h.current()
	if !ok {
		sendError(c, http.StatusServiceUnavailable, "no analysis snapshot available yet")
		return
	}
	sendData(c, http.StatusOK, snapshot.Difficulty)
}

// Topics handles GET /api/v1/analytics/topics
func (h *AnalyticsHandler) Topics(c *gin.Context) {
	snapshot, ok := h.current()
	if !ok {
		sendError(c, http.StatusServiceUnavailable, "no analysis snapshot available yet")
		return
	}
	sendData(c, http.StatusOK, snapshot.Topics)
}

// Mistakes handles GET /api/v1/analytics/mistakes
func (h *AnalyticsHandler) Mistakes(c *gin.Context) {
	snapshot, ok := h.current()
	if !ok {
		sendError(c, http.StatusServiceUnavailable, "no analysis snapshot available yet")
		return
	}
	sendData(c, http.StatusOK, snapshot.Mistakes)
}

// Progression handles GET /api/v1/analytics/progression
func (h *AnalyticsHandler) Progression(c *gin.Context) {
	snapshot, ok := h.current()
	if !ok {
		sendError(c, http.StatusServiceUnavailable, "no analysis snapshot available yet")
		return
	}
	sendData(c, http.StatusOK, snapshot.Progression)
}

// Segments handles GET /api/v1/analytics/segments
func (h *AnalyticsHandler) Segments(c *gin.Context) {
	snapshot, ok := h.current()
	if !ok {
		sendError(c, http.StatusServiceUnavailable, "no analysis snapshot available yet")
		return
	}
	sendData(c, http.StatusOK, snapshot.Segmentation)
}

// Retention handles GET /api/v1/analytics/retention
func (h *AnalyticsHandler) Retention(c *gin.Context) {
	snapshot, ok := h.current()
	if !ok {
		sendError(c, http.StatusServiceUnavailable, "no analysis snapshot available yet")
		return
	}
	sendData(c, http.StatusOK, snapshot.Retention)
}

// ValidationReport handles GET /api/v1/validation/report
func (h *AnalyticsHandler) ValidationReport(c *gin.Context) {
	snapshot, ok := h.current()
	if !ok {
		sendError(c, http.StatusServiceUnavailable, "no analysis snapshot available yet")
		return
	}
	sendData(c, http.StatusOK, gin.H{
		"clean":  snapshot.Report.IsClean(),
		"report": snapshot.Report,
	})
}
