package repositories

import (
	"context"

	"github.com/mellow-health/exam-analytics-service/internal/models"
)

// DatasetRepository loads the two source tables from wherever they live.
// Implementations must return rows in a deterministic order so a reload of
// unchanged sources produces an identical dataset.
type DatasetRepository interface {
	Load(ctx context.Context) (*models.Dataset, error)
}
