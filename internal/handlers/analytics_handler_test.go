package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mellow-health/exam-analytics-service/internal/cache"
	"github.com/mellow-health/exam-analytics-service/internal/config"
	"github.com/mellow-health/exam-analytics-service/internal/events"
	"github.com/mellow-health/exam-analytics-service/internal/models"
	"github.com/mellow-health/exam-analytics-service/internal/services"
	"github.com/mellow-health/exam-analytics-service/internal/utils"
)

type fixedRepository struct {
	ds *models.Dataset
}

func (r *fixedRepository) Load(ctx context.Context) (*models.Dataset, error) {
	return r.ds, nil
}

func testDataset() *models.Dataset {
	c := models.RawCase{
		ExamID:          "e1",
		CategoryName:    "Medicine",
		SubcategoryName: "Cardiology",
		CaseID:          "c1",
		QuestionID:      "q1",
		QuestionText:    "What is the next step?",
		CorrectOption:   "Start anticoagulation",
	}
	return &models.Dataset{
		Cases: []models.RawCase{c},
		Responses: []models.RawResponse{
			{
				UserID:          "u1",
				ExamCreatedAt:   "2024-01-01 10:00:00",
				QuestionID:      "q1",
				UserAnswer:      "Start anticoagulation",
				CorrectnessFlag: models.FlagCorrect,
			},
		},
	}
}

func newTestRouter(t *testing.T) (*gin.Engine, *AnalyticsHandler) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := utils.NewDefaultLogger()
	pipeline := services.NewPipelineService(config.DefaultAnalyticsConfig(), utils.NewValidator(), logger)
	runner := services.NewRunService(
		&fixedRepository{ds: testDataset()},
		pipeline,
		cache.NoopCacheService{},
		events.NewMockEventPublisher(),
		logger,
	)
	handler := NewAnalyticsHandler(runner, logger)

	router := gin.New()
	SetupRoutes(router, NewHandlerManager(handler), logger)
	return router, handler
}

func TestAnalyticsHandler_UnavailableBeforeFirstRun(t *testing.T) {
	router, _ := newTestRouter(t)

	for _, path := range []string{
		"/api/v1/analytics/overview",
		"/api/v1/analytics/trends",
		"/api/v1/analytics/retention",
		"/api/v1/validation/report",
	} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, path, nil)
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code, path)
	}
}

func TestAnalyticsHandler_OverviewAfterRefresh(t *testing.T) {
	router, handler := newTestRouter(t)
	require.NoError(t, handler.RefreshSnapshot(context.Background()))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/analytics/overview", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Data services.OverviewResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Data.TotalResponses)
	assert.Equal(t, 1, body.Data.UniqueUsers)
	assert.Equal(t, 1.0, body.Data.OverallAccuracy)
}

func TestAnalyticsHandler_RefreshEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/analytics/refresh", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/v1/analytics/segments", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAnalyticsHandler_ValidationReport(t *testing.T) {
	router, handler := newTestRouter(t)
	require.NoError(t, handler.RefreshSnapshot(context.Background()))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/validation/report", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Data struct {
			Clean  bool                    `json:"clean"`
			Report models.ValidationReport `json:"report"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Data.Clean)
}

func TestHealthEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
