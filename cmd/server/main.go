package main

import (
	"context"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/mellow-health/exam-analytics-service/internal/cache"
	"github.com/mellow-health/exam-analytics-service/internal/config"
	"github.com/mellow-health/exam-analytics-service/internal/events"
	"github.com/mellow-health/exam-analytics-service/internal/handlers"
	"github.com/mellow-health/exam-analytics-service/internal/repositories"
	"github.com/mellow-health/exam-analytics-service/internal/repositories/postgres"
	"github.com/mellow-health/exam-analytics-service/internal/services"
	"github.com/mellow-health/exam-analytics-service/internal/utils"
	"github.com/mellow-health/exam-analytics-service/pkg"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		utils.NewDefaultLogger().Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	var logger utils.Logger
	if cfg.Environment == "production" {
		logger = utils.NewDefaultLogger()
		gin.SetMode(gin.ReleaseMode)
	} else {
		logger = utils.NewDevelopmentLogger()
	}

	repo, err := buildRepository(cfg, logger)
	if err != nil {
		logger.Error("failed to initialize dataset source", "error", err)
		os.Exit(1)
	}

	cacheService := buildCache(cfg, logger)
	publisher := buildPublisher(cfg, logger)
	defer publisher.Close()

	pipeline := services.NewPipelineService(cfg.Analytics, utils.NewValidator(), logger)
	runner := services.NewRunService(repo, pipeline, cacheService, publisher, logger)

	analyticsHandler := handlers.NewAnalyticsHandler(runner, logger)
	if err := analyticsHandler.RefreshSnapshot(context.Background()); err != nil {
		// Serve anyway; endpoints return 503 until a refresh succeeds.
		logger.Error("initial analysis run failed", "error", err)
	}

	router := gin.New()
	handlers.SetupRoutes(router, handlers.NewHandlerManager(analyticsHandler), logger)

	logger.Info("server starting", "port", cfg.Port, "environment", cfg.Environment)
	if err := router.Run(":" + cfg.Port); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func buildRepository(cfg *config.Config, logger utils.Logger) (repositories.DatasetRepository, error) {
	if cfg.DataSource == config.SourcePostgres {
		db, err := pkg.NewGormDB(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return postgres.NewDatasetPostgreSQL(db), nil
	}
	return services.NewDatasetService(cfg.CasesPath, cfg.ResponsesPath, logger), nil
}

func buildCache(cfg *config.Config, logger utils.Logger) cache.CacheService {
	if !cfg.CacheEnabled {
		return cache.NoopCacheService{}
	}
	client, err := pkg.NewRedisClient(cfg.RedisURL)
	if err != nil {
		logger.Warn("redis unavailable, caching disabled", "error", err)
		return cache.NoopCacheService{}
	}
	return cache.NewRedisCacheService(client, logger)
}

func buildPublisher(cfg *config.Config, logger utils.Logger) events.EventPublisher {
	if !cfg.EventsEnabled {
		return events.NewMockEventPublisher()
	}
	publisher, err := events.NewKafkaEventPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
	if err != nil {
		logger.Warn("kafka unavailable, events disabled", "error", err)
		return events.NewMockEventPublisher()
	}
	return publisher
}
