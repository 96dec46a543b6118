package services

import (
	"errors"
	"fmt"

	apperrors "github.com/mellow-health/exam-analytics-service/internal/errors"
)

// ===== COMMON SERVICE ERRORS =====

var (
	ErrNilDataset        = errors.New("dataset is nil")
	ErrUnsupportedFormat = errors.New("unsupported dataset file format")
	ErrEmptyFile         = errors.New("dataset file must have a header row and at least one data row")
)

// Use shared validation errors from errors package
type ValidationError = apperrors.ValidationError
type ValidationErrors = apperrors.ValidationErrors

// NewValidationError creates a new validation error using the shared type
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return apperrors.NewValidationError(field, message, value)
}

// DatasetLoadError wraps a failure to read one of the two source tables.
type DatasetLoadError struct {
	Table  string `json:"table"`
	Source string `json:"source"`
	Err    error  `json:"-"`
}

func (e *DatasetLoadError) Error() string {
	return fmt.Sprintf("failed to load %s from %s: %v", e.Table, e.Source, e.Err)
}

func (e *DatasetLoadError) Unwrap() error { return e.Err }
