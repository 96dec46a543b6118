package services

import (
	"context"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/mellow-health/exam-analytics-service/internal/models"
	"github.com/mellow-health/exam-analytics-service/internal/utils"
)

// DatasetService loads the case catalog and response log from CSV or XLSX
// exports. Headers are matched case-insensitively after trimming; missing
// columns yield empty cells, which the schema checks then flag. It satisfies
// repositories.DatasetRepository so file and database sources are
// interchangeable.
type DatasetService struct {
	casesPath     string
	responsesPath string
	logger        utils.Logger
}

func NewDatasetService(casesPath, responsesPath string, logger utils.Logger) *DatasetService {
	return &DatasetService{
		casesPath:     casesPath,
		responsesPath: responsesPath,
		logger:        logger,
	}
}

func (s *DatasetService) Load(ctx context.Context) (*models.Dataset, error) {
	caseColumns, caseRows, err := readTable(s.casesPath)
	if err != nil {
		return nil, &DatasetLoadError{Table: "exam cases", Source: s.casesPath, Err: err}
	}
	responseColumns, responseRows, err := readTable(s.responsesPath)
	if err != nil {
		return nil, &DatasetLoadError{Table: "user responses", Source: s.responsesPath, Err: err}
	}

	ds := &models.Dataset{
		CaseColumns:     caseColumns,
		ResponseColumns: responseColumns,
		Cases:           make([]models.RawCase, 0, len(caseRows)),
		Responses:       make([]models.RawResponse, 0, len(responseRows)),
	}

	caseIdx := headerIndex(caseColumns)
	for _, row := range caseRows {
		ds.Cases = append(ds.Cases, rowToCase(row, caseIdx))
	}
	responseIdx := headerIndex(responseColumns)
	for _, row := range responseRows {
		ds.Responses = append(ds.Responses, rowToResponse(row, responseIdx))
	}

	s.logger.InfoContext(ctx, "dataset loaded",
		"cases_path", s.casesPath,
		"responses_path", s.responsesPath,
		"cases", len(ds.Cases),
		"responses", len(ds.Responses),
	)

	return ds, nil
}

// readTable returns the normalized header and the data rows of a CSV or
// XLSX file.
func readTable(path string) ([]string, [][]string, error) {
	var rows [][]string
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		rows, err = readCSV(path)
	case ".xlsx":
		rows, err = readXLSX(path)
	default:
		return nil, nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	if err != nil {
		return nil, nil, err
	}
	if len(rows) < 2 {
		return nil, nil, ErrEmptyFile
	}

	header := make([]string, len(rows[0]))
	for i, col := range rows[0] {
		header[i] = strings.ToLower(strings.TrimSpace(col))
	}
	return header, rows[1:], nil
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	var rows [][]string
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func readXLSX(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return f.GetRows(f.GetSheetName(0))
}

func headerIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, col := range header {
		if _, ok := idx[col]; !ok {
			idx[col] = i
		}
	}
	return idx
}

func cell(row []string, idx map[string]int, column string) string {
	i, ok := idx[column]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func rowToCase(row []string, idx map[string]int) models.RawCase {
	return models.RawCase{
		ExamID:           cell(row, idx, "id_exam"),
		ExamName:         cell(row, idx, "exam_name"),
		CategoryID:       cell(row, idx, "id_category"),
		CategoryName:     cell(row, idx, "category_name"),
		SubcategoryID:    cell(row, idx, "id_subcategory"),
		SubcategoryName:  cell(row, idx, "subcategory_name"),
		CaseID:           cell(row, idx, "id_case"),
		CaseText:         cell(row, idx, "case_text"),
		CaseFeedback:     cell(row, idx, "case_feedback"),
		QuestionID:       cell(row, idx, "id_question"),
		QuestionText:     cell(row, idx, "question"),
		QuestionFeedback: cell(row, idx, "question_feedback"),
		CorrectOption:    cell(row, idx, "option1_correct"),
		IncorrectOption2: cell(row, idx, "option2_incorrect"),
		IncorrectOption3: cell(row, idx, "option3_incorrect"),
		IncorrectOption4: cell(row, idx, "option4_incorrect"),
	}
}

func rowToResponse(row []string, idx map[string]int) models.RawResponse {
	return models.RawResponse{
		UserID:           cell(row, idx, "id_user_hash"),
		Subspecialty:     cell(row, idx, "subspecialty"),
		EducationLevel:   cell(row, idx, "education_level"),
		Gender:           cell(row, idx, "gender"),
		AgeRange:         cell(row, idx, "age_range"),
		EmploymentStatus: cell(row, idx, "employment_status"),
		UserCreatedAt:    cell(row, idx, "user_created_at"),
		ExamCreatedAt:    cell(row, idx, "exam_created_at"),
		CaseID:           cell(row, idx, "id_case"),
		QuestionID:       cell(row, idx, "id_question"),
		UserAnswer:       cell(row, idx, "user_answer"),
		CorrectnessFlag:  cell(row, idx, "is_user_answer_correct"),
		Country:          cell(row, idx, "country_user_made_the_exam"),
		City:             cell(row, idx, "city_user_made_the_exam"),
	}
}

// DatasetFingerprint hashes the dataset content. Runs over the same data
// share a fingerprint, which keys the snapshot cache.
func DatasetFingerprint(ds *models.Dataset) string {
	h := sha256.New()
	writeField := func(parts ...string) {
		for _, p := range parts {
			h.Write([]byte(p))
			h.Write([]byte{0})
		}
		h.Write([]byte{'\n'})
	}

	for _, c := range ds.Cases {
		writeField(c.ExamID, c.CategoryName, c.SubcategoryName, c.CaseID, c.CaseText,
			c.QuestionID, c.QuestionText, c.CorrectOption,
			c.IncorrectOption2, c.IncorrectOption3, c.IncorrectOption4)
	}
	for _, r := range ds.Responses {
		writeField(r.UserID, r.UserCreatedAt, r.ExamCreatedAt, r.CaseID, r.QuestionID,
			r.UserAnswer, r.CorrectnessFlag, r.Country)
	}
	return hex.EncodeToString(h.Sum(nil))
}
