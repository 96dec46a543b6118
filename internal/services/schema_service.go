package services

import (
	"fmt"
	"sort"

	apperrors "github.com/mellow-health/exam-analytics-service/internal/errors"
	"github.com/mellow-health/exam-analytics-service/internal/models"
	"github.com/mellow-health/exam-analytics-service/internal/utils"
)

// Required source columns, by the names the export uses. File-backed sources
// are checked for column presence; database-backed sources carry nil column
// lists and the schema is enforced by the table definition instead.
var requiredCaseColumns = []string{
	"id_exam",
	"category_name",
	"subcategory_name",
	"id_case",
	"id_question",
	"question",
	"option1_correct",
}

var requiredResponseColumns = []string{
	"id_user_hash",
	"exam_created_at",
	"id_question",
	"is_user_answer_correct",
}

// SchemaService checks both source tables against the expected shape before
// any joining happens. Violations are reported once per class (field and
// rule) with the number of affected rows; rows are never dropped here, and a
// failed check never aborts the run.
type SchemaService struct {
	validator *utils.Validator
	logger    utils.Logger
}

func NewSchemaService(validator *utils.Validator, logger utils.Logger) *SchemaService {
	return &SchemaService{
		validator: validator,
		logger:    logger,
	}
}

// Validate runs column-presence and per-row checks over both tables and
// records every violation class on the reporter.
func (s *SchemaService) Validate(ds *models.Dataset, reporter *ValidationReporter) {
	s.checkColumns("cases", ds.CaseColumns, requiredCaseColumns, len(ds.Cases), reporter)
	s.checkColumns("responses", ds.ResponseColumns, requiredResponseColumns, len(ds.Responses), reporter)

	caseClasses := map[string]*violationClass{}
	for _, c := range ds.Cases {
		s.collectRowViolations(c, caseClasses)
	}
	emitViolationClasses("cases", caseClasses, reporter)

	responseClasses := map[string]*violationClass{}
	for _, r := range ds.Responses {
		s.collectRowViolations(r, responseClasses)
	}
	emitViolationClasses("responses", responseClasses, reporter)

	s.logger.Info("schema validation finished",
		"cases", len(ds.Cases),
		"responses", len(ds.Responses),
		"case_violation_classes", len(caseClasses),
		"response_violation_classes", len(responseClasses),
	)
}

type violationClass struct {
	field   string
	message string
	rows    int
}

func (s *SchemaService) checkColumns(table string, present, required []string, rowCount int, reporter *ValidationReporter) {
	if present == nil {
		return
	}
	have := make(map[string]bool, len(present))
	for _, col := range present {
		have[col] = true
	}
	for _, col := range required {
		if !have[col] {
			reporter.Critical(models.IssueSchemaError,
				fmt.Sprintf("%s: required column %q is missing", table, col), rowCount)
		}
	}
}

func (s *SchemaService) collectRowViolations(row interface{}, classes map[string]*violationClass) {
	err := s.validator.Struct(row)
	if err == nil {
		return
	}
	for _, fe := range apperrors.ToValidationErrors(err) {
		key := fe.Field + "/" + fe.Rule
		if cls, ok := classes[key]; ok {
			cls.rows++
			continue
		}
		classes[key] = &violationClass{field: fe.Field, message: fe.Message, rows: 1}
	}
}

func emitViolationClasses(table string, classes map[string]*violationClass, reporter *ValidationReporter) {
	keys := make([]string, 0, len(classes))
	for k := range classes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		cls := classes[k]
		reporter.Critical(models.IssueSchemaError,
			fmt.Sprintf("%s: field %s %s", table, cls.field, cls.message), cls.rows)
	}
}
