package services

import (
	"github.com/mellow-health/exam-analytics-service/internal/config"
	"github.com/mellow-health/exam-analytics-service/internal/models"
	"github.com/mellow-health/exam-analytics-service/internal/utils"
)

// Shared fixtures for the service tests. The catalog rows mimic the export
// shape: one row per question id, options as free text.

func catalogCase(questionID, questionText, correctOption string) models.RawCase {
	return models.RawCase{
		ExamID:           "exam-1",
		ExamName:         "Cardiology Mock Exam",
		CategoryID:       "10",
		CategoryName:     "Medicine",
		SubcategoryID:    "11",
		SubcategoryName:  "Cardiology",
		CaseID:           "case-" + questionID,
		CaseText:         "A 54-year-old patient presents with chest pain.",
		QuestionID:       questionID,
		QuestionText:     questionText,
		CorrectOption:    correctOption,
		IncorrectOption2: "Watchful waiting",
		IncorrectOption3: "Refer to surgery",
	}
}

func logResponse(userID, questionID, answer, flag, examAt string) models.RawResponse {
	return models.RawResponse{
		UserID:          userID,
		UserCreatedAt:   "2023-12-01 09:00:00",
		ExamCreatedAt:   examAt,
		CaseID:          "case-" + questionID,
		QuestionID:      questionID,
		UserAnswer:      answer,
		CorrectnessFlag: flag,
		Country:         "Spain",
	}
}

func joinedRecord(userID string, correct bool, examAt string) models.JoinedRecord {
	rec := models.JoinedRecord{
		Response: logResponse(userID, "q1", "Start anticoagulation", models.FlagCorrect, examAt),
		Case:     catalogCase("q1", "What is the next step in management?", "Start anticoagulation"),
		Correct:  correct,
	}
	rec.ContentKey = ContentKey(rec.Case.QuestionText)
	rec.ContentEligible = true
	rec.ExamAt, rec.ExamAtValid = ParseTimestamp(examAt)
	rec.AccountAt, rec.AccountAtValid = ParseTimestamp(rec.Response.UserCreatedAt)
	return rec
}

func testAnalytics(cfg config.AnalyticsConfig) *AnalyticsService {
	return NewAnalyticsService(cfg, utils.NewDefaultLogger())
}
