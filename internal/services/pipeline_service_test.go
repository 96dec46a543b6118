package services

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mellow-health/exam-analytics-service/internal/config"
	"github.com/mellow-health/exam-analytics-service/internal/models"
	"github.com/mellow-health/exam-analytics-service/internal/utils"
)

func newPipeline() *PipelineService {
	return NewPipelineService(config.DefaultAnalyticsConfig(), utils.NewValidator(), utils.NewDefaultLogger())
}

func pipelineDataset() *models.Dataset {
	return &models.Dataset{
		Cases: []models.RawCase{
			catalogCase("q1", "Shared question?", "Start anticoagulation"),
			catalogCase("q2", "Shared question?", "Start anticoagulation"),
			catalogCase("q3", "Other question?", "Order an echocardiogram"),
			catalogCase("q4", "Drifted question?", "Start beta blockers"),
			catalogCase("q5", "Drifted question?", "Stop beta blockers"),
		},
		Responses: []models.RawResponse{
			logResponse("u1", "q1", "Start anticoagulation", models.FlagCorrect, "2024-01-01 10:00:00"),
			// Flag disagrees with the answer text.
			logResponse("u1", "q2", "Start anticoagulation", models.FlagIncorrect, "2024-01-02 10:00:00"),
			logResponse("u1", "q3", "Watchful waiting", models.FlagIncorrect, "2024-01-03 10:00:00"),
			// Drifted content group: stays in id-level counts only.
			logResponse("u2", "q4", "Start beta blockers", models.FlagCorrect, "2024-01-01 12:00:00"),
			// Orphan: question id absent from the catalog.
			logResponse("u2", "q999", "Anything", models.FlagCorrect, "2024-01-02 12:00:00"),
			// Unparseable timestamp: kept, excluded from time-dependent metrics.
			logResponse("u3", "q1", "Start anticoagulation", models.FlagCorrect, "yesterday"),
		},
	}
}

func TestPipelineService_Run(t *testing.T) {
	result, err := newPipeline().Run(context.Background(), pipelineDataset())
	require.NoError(t, err)

	// Orphan excluded, everything else counted at id level.
	assert.Equal(t, 5, result.Overview.TotalResponses)
	assert.Equal(t, 3, result.Overview.UniqueUsers)
	// 4 of 5 matched rows are correct after cross-validation.
	assert.InDelta(t, 0.8, result.Overview.OverallAccuracy, 1e-9)

	codes := make([]models.IssueCode, 0, len(result.Report.Issues))
	for _, issue := range result.Report.Issues {
		codes = append(codes, issue.Code)
	}
	assert.Contains(t, codes, models.IssueOrphanRecords)
	assert.Contains(t, codes, models.IssueContentDrift)
	assert.Contains(t, codes, models.IssueFlagMismatch)
	assert.Contains(t, codes, models.IssueChronologyWarning)
	assert.False(t, result.Report.IsClean())

	// Severity ordering holds across the whole report.
	for i := 1; i < len(result.Report.Issues); i++ {
		assert.LessOrEqual(t,
			result.Report.Issues[i-1].Severity.Rank(),
			result.Report.Issues[i].Severity.Rank())
	}
}

func TestPipelineService_RunIsDeterministic(t *testing.T) {
	pipeline := newPipeline()

	first, err := pipeline.Run(context.Background(), pipelineDataset())
	require.NoError(t, err)
	second, err := pipeline.Run(context.Background(), pipelineDataset())
	require.NoError(t, err)

	firstJSON, err := json.Marshal(first)
	require.NoError(t, err)
	secondJSON, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, string(firstJSON), string(secondJSON))
}

func TestPipelineService_EmptyDataset(t *testing.T) {
	result, err := newPipeline().Run(context.Background(), &models.Dataset{})
	require.NoError(t, err)

	assert.Zero(t, result.Overview.TotalResponses)
	assert.Empty(t, result.Trends.Buckets)
	assert.Empty(t, result.Difficulty.Groups)
	assert.Zero(t, result.Retention.TotalUsers)
	assert.True(t, result.Report.IsClean())
}

func TestPipelineService_NilDataset(t *testing.T) {
	_, err := newPipeline().Run(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNilDataset)
}

func TestPipelineService_DriftedGroupStaysInIDLevelCounts(t *testing.T) {
	result, err := newPipeline().Run(context.Background(), pipelineDataset())
	require.NoError(t, err)

	// The drifted response is present in the overview but no difficulty
	// group carries its content key.
	driftKey := ContentKey("Drifted question?")
	for _, g := range result.Difficulty.Groups {
		assert.NotEqual(t, driftKey, g.ContentKey)
	}
	for _, g := range result.Difficulty.Insufficient {
		assert.NotEqual(t, driftKey, g.ContentKey)
	}
}
