package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/mellow-health/exam-analytics-service/internal/models"
	"github.com/mellow-health/exam-analytics-service/internal/repositories"
)

type datasetPostgreSQL struct {
	db *gorm.DB
}

// NewDatasetPostgreSQL creates a repository reading both source tables from
// Postgres. Column lists stay nil: the table definitions enforce the schema,
// so the column-presence check does not apply.
func NewDatasetPostgreSQL(db *gorm.DB) repositories.DatasetRepository {
	return &datasetPostgreSQL{db: db}
}

func (r *datasetPostgreSQL) Load(ctx context.Context) (*models.Dataset, error) {
	var cases []models.RawCase
	if err := r.db.WithContext(ctx).
		Order("id_question, id_exam").
		Find(&cases).Error; err != nil {
		return nil, fmt.Errorf("failed to load exam cases: %w", err)
	}

	var responses []models.RawResponse
	if err := r.db.WithContext(ctx).
		Order("id_user_hash, exam_created_at, id_question").
		Find(&responses).Error; err != nil {
		return nil, fmt.Errorf("failed to load user responses: %w", err)
	}

	return &models.Dataset{
		Cases:     cases,
		Responses: responses,
	}, nil
}
