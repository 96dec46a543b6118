package services

import (
	"context"

	"github.com/mellow-health/exam-analytics-service/internal/config"
	"github.com/mellow-health/exam-analytics-service/internal/models"
	"github.com/mellow-health/exam-analytics-service/internal/utils"
)

// AnalysisResult is everything one pipeline run produces: the eight
// aggregations plus the validation report. It carries no wall-clock fields,
// so identical inputs serialize identically.
type AnalysisResult struct {
	Overview     OverviewResult          `json:"overview"`
	Trends       TrendsResult            `json:"trends"`
	Difficulty   DifficultyResult        `json:"difficulty"`
	Topics       TopicResult             `json:"topics"`
	Mistakes     MistakeResult           `json:"mistakes"`
	Progression  ProgressionResult       `json:"progression"`
	Segmentation SegmentationResult      `json:"segmentation"`
	Retention    RetentionResult         `json:"retention"`
	Report       models.ValidationReport `json:"report"`
}

// PipelineService runs the full sequence: schema checks, join, content
// resolution, chronological normalization, then every aggregation. Stages
// degrade rather than abort: problem rows are excluded from the narrowest
// possible scope and every exclusion shows up in the report.
type PipelineService struct {
	schema     *SchemaService
	join       *JoinService
	content    *ContentService
	chronology *ChronologyService
	analytics  *AnalyticsService
	logger     utils.Logger
}

func NewPipelineService(cfg config.AnalyticsConfig, validator *utils.Validator, logger utils.Logger) *PipelineService {
	return &PipelineService{
		schema:     NewSchemaService(validator, logger),
		join:       NewJoinService(logger),
		content:    NewContentService(logger),
		chronology: NewChronologyService(logger),
		analytics:  NewAnalyticsService(cfg, logger),
		logger:     logger,
	}
}

// Run executes the pipeline over one dataset. An empty dataset is not an
// error; aggregations come back zero-valued with whatever issues the checks
// raised.
func (p *PipelineService) Run(ctx context.Context, ds *models.Dataset) (*AnalysisResult, error) {
	if ds == nil {
		return nil, ErrNilDataset
	}

	reporter := NewValidationReporter()

	p.logger.InfoContext(ctx, "pipeline run started",
		"cases", len(ds.Cases),
		"responses", len(ds.Responses),
	)

	p.schema.Validate(ds, reporter)
	records := p.join.Join(ds, reporter)
	groups, records := p.content.Resolve(ds.Cases, records, reporter)
	records = p.chronology.Normalize(records, reporter)

	result := &AnalysisResult{
		Overview:     p.analytics.Overview(records, ds.Cases, groups),
		Trends:       p.analytics.Trends(records),
		Difficulty:   p.analytics.Difficulty(records, groups, reporter),
		Topics:       p.analytics.TopicPerformance(records),
		Mistakes:     p.analytics.Mistakes(records),
		Progression:  p.analytics.Progression(records, reporter),
		Segmentation: p.analytics.Segmentation(records),
		Retention:    p.analytics.Retention(records, reporter),
	}
	result.Report = reporter.Report()

	p.logger.InfoContext(ctx, "pipeline run finished",
		"matched_records", result.Overview.TotalResponses,
		"critical_issues", result.Report.CountBySeverity(models.SeverityCritical),
		"warning_issues", result.Report.CountBySeverity(models.SeverityWarning),
		"clean", result.Report.IsClean(),
	)

	return result, nil
}
