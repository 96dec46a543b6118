package services

import (
	"sort"

	"github.com/mellow-health/exam-analytics-service/internal/models"
)

// ValidationReporter accumulates issues raised by the pipeline stages and
// assembles them into one ordered report. Issues are append-only; nothing
// mutates a prior issue, and the same input always yields the same report.
type ValidationReporter struct {
	issues []models.ValidationIssue
}

func NewValidationReporter() *ValidationReporter {
	return &ValidationReporter{}
}

func (r *ValidationReporter) Critical(code models.IssueCode, message string, rowCount int) {
	r.add(models.SeverityCritical, code, message, rowCount)
}

func (r *ValidationReporter) Warning(code models.IssueCode, message string, rowCount int) {
	r.add(models.SeverityWarning, code, message, rowCount)
}

func (r *ValidationReporter) Info(code models.IssueCode, message string, rowCount int) {
	r.add(models.SeverityInfo, code, message, rowCount)
}

func (r *ValidationReporter) add(sev models.Severity, code models.IssueCode, message string, rowCount int) {
	r.issues = append(r.issues, models.ValidationIssue{
		Severity: sev,
		Code:     code,
		Message:  message,
		RowCount: rowCount,
	})
}

// Report returns the accumulated issues ordered critical, warning, info,
// keeping insertion order within each severity.
func (r *ValidationReporter) Report() models.ValidationReport {
	ordered := make([]models.ValidationIssue, len(r.issues))
	copy(ordered, r.issues)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Severity.Rank() < ordered[j].Severity.Rank()
	})
	return models.ValidationReport{Issues: ordered}
}
