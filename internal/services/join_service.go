package services

import (
	"fmt"

	"github.com/mellow-health/exam-analytics-service/internal/models"
	"github.com/mellow-health/exam-analytics-service/internal/utils"
)

// JoinService attaches case attributes to each response by question id and
// cross-validates the correctness flag against the catalog's correct-option
// text. The cross-validated result is authoritative; the raw flag is only a
// fallback when the recorded answer matches none of the catalog options.
type JoinService struct {
	logger utils.Logger
}

func NewJoinService(logger utils.Logger) *JoinService {
	return &JoinService{logger: logger}
}

// Join returns one record per matched response, in response-log order.
// Orphan responses (question id absent from the catalog) are excluded and
// reported as a single critical issue with the affected row count.
func (s *JoinService) Join(ds *models.Dataset, reporter *ValidationReporter) []models.JoinedRecord {
	caseByQuestion := make(map[string]models.RawCase, len(ds.Cases))
	for _, c := range ds.Cases {
		// First occurrence wins; later duplicates of the same question id
		// surface through the content drift check, not here.
		if _, ok := caseByQuestion[c.QuestionID]; !ok {
			caseByQuestion[c.QuestionID] = c
		}
	}

	records := make([]models.JoinedRecord, 0, len(ds.Responses))
	usedQuestions := make(map[string]bool, len(caseByQuestion))
	orphans := 0
	mismatches := 0
	unknownAnswers := 0

	for _, resp := range ds.Responses {
		c, ok := caseByQuestion[resp.QuestionID]
		if !ok {
			orphans++
			continue
		}
		usedQuestions[resp.QuestionID] = true

		rec := models.JoinedRecord{
			Response:        resp,
			Case:            c,
			ContentEligible: true,
		}

		flagSaysCorrect := resp.CorrectnessFlag == models.FlagCorrect
		switch {
		case answerMatchesOption(resp.UserAnswer, c):
			rec.Correct = resp.UserAnswer == c.CorrectOption
			rec.FlagMismatch = rec.Correct != flagSaysCorrect
		default:
			// The answer text matches no catalog option, so there is nothing
			// to cross-validate against; trust the flag for this row.
			rec.Correct = flagSaysCorrect
			unknownAnswers++
		}
		if rec.FlagMismatch {
			mismatches++
		}

		records = append(records, rec)
	}

	if orphans > 0 {
		reporter.Critical(models.IssueOrphanRecords,
			"responses reference question ids absent from the case catalog; excluded from all metrics", orphans)
	}
	if mismatches > 0 {
		reporter.Warning(models.IssueFlagMismatch,
			"correctness flag disagrees with the answer text; cross-validated value used", mismatches)
	}
	if unknownAnswers > 0 {
		reporter.Warning(models.IssueFlagMismatch,
			"answer text matches no catalog option; correctness flag taken as-is", unknownAnswers)
	}
	if unused := len(caseByQuestion) - len(usedQuestions); unused > 0 {
		reporter.Info(models.IssueUnusedContent,
			fmt.Sprintf("%d catalog questions received no responses", unused), unused)
	}

	s.logger.Info("join finished",
		"matched", len(records),
		"orphans", orphans,
		"flag_mismatches", mismatches,
	)

	return records
}

func answerMatchesOption(answer string, c models.RawCase) bool {
	if answer == "" {
		return false
	}
	switch answer {
	case c.CorrectOption, c.IncorrectOption2, c.IncorrectOption3, c.IncorrectOption4:
		return true
	}
	return false
}
