package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mellow-health/exam-analytics-service/internal/utils"
)

// HandlerManager holds all handlers for route setup
type HandlerManager struct {
	Analytics *AnalyticsHandler
}

func NewHandlerManager(analytics *AnalyticsHandler) *HandlerManager {
	return &HandlerManager{Analytics: analytics}
}

// SetupRoutes wires every endpoint onto the engine.
func SetupRoutes(router *gin.Engine, hm *HandlerManager, logger utils.Logger) {
	router.Use(utils.LoggerMiddleware(logger))
	router.Use(gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")
	{
		analytics := v1.Group("/analytics")
		{
			analytics.GET("/overview", hm.Analytics.Overview)
			analytics.GET("/trends", hm.Analytics.Trends)
			analytics.GET("/difficulty", hm.Analytics.Difficulty)
			analytics.GET("/topics", hm.Analytics.Topics)
			analytics.GET("/mistakes", hm.Analytics.Mistakes)
			analytics.GET("/progression", hm.Analytics.Progression)
			analytics.GET("/segments", hm.Analytics.Segments)
			analytics.GET("/retention", hm.Analytics.Retention)
			analytics.POST("/refresh", hm.Analytics.Refresh)
		}

		validation := v1.Group("/validation")
		{
			validation.GET("/report", hm.Analytics.ValidationReport)
		}
	}
}
