package services

import (
	"context"
	"time"

	"github.com/mellow-health/exam-analytics-service/internal/cache"
	"github.com/mellow-health/exam-analytics-service/internal/events"
	"github.com/mellow-health/exam-analytics-service/internal/models"
	"github.com/mellow-health/exam-analytics-service/internal/repositories"
	"github.com/mellow-health/exam-analytics-service/internal/utils"
)

const (
	snapshotKeyPrefix = "analysis:snapshot:"
	snapshotTTL       = 24 * time.Hour

	eventSource  = "exam-analytics-service"
	eventVersion = "1"
)

// RunService ties the layers together: load the dataset, check the snapshot
// cache by fingerprint, run the pipeline on a miss, store the result, and
// announce the run on the bus. Cache and publisher failures are logged and
// swallowed; the computed snapshot is always returned.
type RunService struct {
	repo      repositories.DatasetRepository
	pipeline  *PipelineService
	cache     cache.CacheService
	publisher events.EventPublisher
	logger    utils.Logger
}

func NewRunService(
	repo repositories.DatasetRepository,
	pipeline *PipelineService,
	cacheService cache.CacheService,
	publisher events.EventPublisher,
	logger utils.Logger,
) *RunService {
	return &RunService{
		repo:      repo,
		pipeline:  pipeline,
		cache:     cacheService,
		publisher: publisher,
		logger:    logger,
	}
}

// Run produces the current analysis snapshot.
func (s *RunService) Run(ctx context.Context) (*AnalysisResult, error) {
	ds, err := s.repo.Load(ctx)
	if err != nil {
		return nil, err
	}

	fingerprint := DatasetFingerprint(ds)
	cacheKey := snapshotKeyPrefix + fingerprint

	var cached AnalysisResult
	found, err := s.cache.Get(ctx, cacheKey, &cached)
	if err != nil {
		s.logger.Warn("snapshot cache lookup failed", "error", err)
	}
	if found {
		s.logger.InfoContext(ctx, "snapshot served from cache", "fingerprint", fingerprint)
		s.publish(ctx, fingerprint, &cached, true)
		return &cached, nil
	}

	result, err := s.pipeline.Run(ctx, ds)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, cacheKey, result, snapshotTTL); err != nil {
		s.logger.Warn("snapshot cache store failed", "error", err)
	}

	s.publish(ctx, fingerprint, result, false)
	return result, nil
}

func (s *RunService) publish(ctx context.Context, fingerprint string, result *AnalysisResult, fromCache bool) {
	event := events.AnalysisCompletedEvent{
		Source:             eventSource,
		Version:            eventVersion,
		DatasetFingerprint: fingerprint,
		TotalResponses:     result.Overview.TotalResponses,
		UniqueUsers:        result.Overview.UniqueUsers,
		CriticalIssues:     result.Report.CountBySeverity(models.SeverityCritical),
		WarningIssues:      result.Report.CountBySeverity(models.SeverityWarning),
		InfoIssues:         result.Report.CountBySeverity(models.SeverityInfo),
		Clean:              result.Report.IsClean(),
		FromCache:          fromCache,
	}
	if err := s.publisher.PublishAnalysisCompleted(ctx, event); err != nil {
		s.logger.Warn("event publish failed", "error", err)
	}
}
