package services

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"

	"github.com/mellow-health/exam-analytics-service/internal/models"
	"github.com/mellow-health/exam-analytics-service/internal/utils"
)

// ContentService resolves catalog duplication: question ids sharing identical
// question text form one content group. Multi-member groups are duplication
// by design (the same question republished under several exams); a group
// whose members disagree on case content has drifted and is excluded from
// content-level aggregation while staying in id-level counts.
type ContentService struct {
	logger utils.Logger
}

func NewContentService(logger utils.Logger) *ContentService {
	return &ContentService{logger: logger}
}

// Resolve builds the content groups from the catalog and annotates each
// joined record with its group key and eligibility. Groups come back sorted
// by key; records are annotated in place and returned for chaining.
func (s *ContentService) Resolve(cases []models.RawCase, records []models.JoinedRecord, reporter *ValidationReporter) ([]models.ContentGroup, []models.JoinedRecord) {
	byText := make(map[string][]models.RawCase)
	for _, c := range cases {
		byText[c.QuestionText] = append(byText[c.QuestionText], c)
	}

	groups := make([]models.ContentGroup, 0, len(byText))
	keyByText := make(map[string]string, len(byText))
	driftedByText := make(map[string]bool)

	for text, members := range byText {
		key := ContentKey(text)
		keyByText[text] = key

		idSet := make(map[string]bool, len(members))
		for _, m := range members {
			idSet[m.QuestionID] = true
		}
		ids := make([]string, 0, len(idSet))
		for id := range idSet {
			ids = append(ids, id)
		}
		sort.Strings(ids)

		drifted := membersDisagree(members)
		driftedByText[text] = drifted

		groups = append(groups, models.ContentGroup{
			Key:          key,
			QuestionText: text,
			QuestionIDs:  ids,
			MemberCount:  len(ids),
			Drifted:      drifted,
		})
	}

	sort.Slice(groups, func(i, j int) bool { return groups[i].Key < groups[j].Key })

	driftedGroups := 0
	driftedRows := 0
	for i := range records {
		text := records[i].Case.QuestionText
		records[i].ContentKey = keyByText[text]
		if driftedByText[text] {
			records[i].ContentEligible = false
			driftedRows++
		}
	}
	for _, g := range groups {
		if g.Drifted {
			driftedGroups++
		}
	}

	if driftedGroups > 0 {
		reporter.Critical(models.IssueContentDrift,
			"content groups disagree on case content across members; excluded from content-level metrics", driftedRows)
	}

	s.logger.Info("content resolution finished",
		"groups", len(groups),
		"drifted_groups", driftedGroups,
	)

	return groups, records
}

// ContentKey derives the stable group key for a question text.
func ContentKey(questionText string) string {
	sum := sha256.Sum256([]byte(questionText))
	return hex.EncodeToString(sum[:])
}

// membersDisagree reports whether cases sharing one question text differ on
// the content fields that should be identical across republications.
func membersDisagree(members []models.RawCase) bool {
	first := members[0]
	for _, m := range members[1:] {
		if m.CaseText != first.CaseText ||
			m.CaseFeedback != first.CaseFeedback ||
			m.QuestionFeedback != first.QuestionFeedback ||
			m.CorrectOption != first.CorrectOption {
			return true
		}
	}
	return false
}
