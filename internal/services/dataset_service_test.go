package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mellow-health/exam-analytics-service/internal/models"
	"github.com/mellow-health/exam-analytics-service/internal/utils"
)

const casesCSV = `id_exam,exam_name,id_category,category_name,id_subcategory,subcategory_name,id_case,case_text,case_feedback,id_question,question,question_feedback,option1_correct,option2_incorrect,option3_incorrect,option4_incorrect
e1,Cardiology Mock,10,Medicine,11,Cardiology,c1,A patient presents with chest pain.,Feedback,q1,What is the next step?,Explanation,Start anticoagulation,Watchful waiting,Refer to surgery,
e1,Cardiology Mock,10,Medicine,11,Cardiology,c2,A patient presents with dyspnea.,Feedback,q2,Which drug is contraindicated?,Explanation,Aspirin,Ibuprofen,Paracetamol,
`

const responsesCSV = `id_user_hash,subspecialty,education_level,gender,age_range,employment_status,user_created_at,exam_created_at,id_case,id_question,user_answer,is_user_answer_correct,country_user_made_the_exam,city_user_made_the_exam
u1,Cardiology,Resident,F,25-34,Employed,2023-12-01 09:00:00,2024-01-01 10:00:00,c1,q1,Start anticoagulation,CORRECTA,Spain,Madrid
u1,Cardiology,Resident,F,25-34,Employed,2023-12-01 09:00:00,2024-01-02 10:00:00,c2,q2,Ibuprofen,INCORRECTA,Spain,Madrid
`

func writeTestFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDatasetService_LoadCSV(t *testing.T) {
	dir := t.TempDir()
	casesPath := writeTestFile(t, dir, "cases.csv", casesCSV)
	responsesPath := writeTestFile(t, dir, "responses.csv", responsesCSV)

	svc := NewDatasetService(casesPath, responsesPath, utils.NewDefaultLogger())
	ds, err := svc.Load(context.Background())
	require.NoError(t, err)

	require.Len(t, ds.Cases, 2)
	assert.Equal(t, "q1", ds.Cases[0].QuestionID)
	assert.Equal(t, "What is the next step?", ds.Cases[0].QuestionText)
	assert.Equal(t, "Start anticoagulation", ds.Cases[0].CorrectOption)
	assert.Equal(t, "Cardiology", ds.Cases[0].SubcategoryName)

	require.Len(t, ds.Responses, 2)
	assert.Equal(t, "u1", ds.Responses[0].UserID)
	assert.Equal(t, models.FlagCorrect, ds.Responses[0].CorrectnessFlag)
	assert.Equal(t, "2024-01-01 10:00:00", ds.Responses[0].ExamCreatedAt)
	assert.Equal(t, "Spain", ds.Responses[0].Country)

	assert.Contains(t, ds.CaseColumns, "option1_correct")
	assert.Contains(t, ds.ResponseColumns, "is_user_answer_correct")
}

func TestDatasetService_HeaderNormalization(t *testing.T) {
	dir := t.TempDir()
	// Headers with stray casing and whitespace still map.
	casesPath := writeTestFile(t, dir, "cases.csv",
		"ID_Exam, Question ,id_question,option1_correct,category_name,subcategory_name,id_case\ne1,What?,q1,A,Medicine,Cardiology,c1\n")
	responsesPath := writeTestFile(t, dir, "responses.csv", responsesCSV)

	svc := NewDatasetService(casesPath, responsesPath, utils.NewDefaultLogger())
	ds, err := svc.Load(context.Background())
	require.NoError(t, err)

	require.Len(t, ds.Cases, 1)
	assert.Equal(t, "e1", ds.Cases[0].ExamID)
	assert.Equal(t, "What?", ds.Cases[0].QuestionText)
}

func TestDatasetService_UnsupportedFormat(t *testing.T) {
	dir := t.TempDir()
	path := writeTestFile(t, dir, "cases.txt", "not a table")

	svc := NewDatasetService(path, path, utils.NewDefaultLogger())
	_, err := svc.Load(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	var loadErr *DatasetLoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, "exam cases", loadErr.Table)
}

func TestDatasetService_HeaderOnlyFile(t *testing.T) {
	dir := t.TempDir()
	casesPath := writeTestFile(t, dir, "cases.csv", "id_exam,id_question,question,option1_correct\n")
	responsesPath := writeTestFile(t, dir, "responses.csv", responsesCSV)

	svc := NewDatasetService(casesPath, responsesPath, utils.NewDefaultLogger())
	_, err := svc.Load(context.Background())

	assert.ErrorIs(t, err, ErrEmptyFile)
}

func TestDatasetFingerprint(t *testing.T) {
	ds := &models.Dataset{
		Cases: []models.RawCase{
			catalogCase("q1", "What is the next step?", "Start anticoagulation"),
		},
		Responses: []models.RawResponse{
			logResponse("u1", "q1", "Start anticoagulation", models.FlagCorrect, "2024-01-01 10:00:00"),
		},
	}

	first := DatasetFingerprint(ds)
	second := DatasetFingerprint(ds)
	assert.Equal(t, first, second)
	assert.Len(t, first, 64)

	ds.Responses[0].UserAnswer = "Watchful waiting"
	assert.NotEqual(t, first, DatasetFingerprint(ds))
}
