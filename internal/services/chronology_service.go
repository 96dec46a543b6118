package services

import (
	"sort"
	"time"

	"github.com/mellow-health/exam-analytics-service/internal/models"
	"github.com/mellow-health/exam-analytics-service/internal/utils"
)

// Timestamp layouts accepted by the normalizer, tried in order. The first is
// the export's native format.
var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ChronologyService parses the raw timestamp strings and puts every user's
// responses into a stable chronological order. Rows with unparseable exam
// timestamps survive, marked invalid; only time-dependent aggregations skip
// them.
type ChronologyService struct {
	logger utils.Logger
}

func NewChronologyService(logger utils.Logger) *ChronologyService {
	return &ChronologyService{logger: logger}
}

// Normalize annotates records with parsed timestamps and sorts them by user
// id, then exam time. Invalid exam timestamps sort after valid ones within a
// user, keeping their relative input order.
func (s *ChronologyService) Normalize(records []models.JoinedRecord, reporter *ValidationReporter) []models.JoinedRecord {
	unparseable := 0
	for i := range records {
		records[i].ExamAt, records[i].ExamAtValid = ParseTimestamp(records[i].Response.ExamCreatedAt)
		records[i].AccountAt, records[i].AccountAtValid = ParseTimestamp(records[i].Response.UserCreatedAt)
		if !records[i].ExamAtValid {
			unparseable++
		}
	}

	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if a.Response.UserID != b.Response.UserID {
			return a.Response.UserID < b.Response.UserID
		}
		if a.ExamAtValid != b.ExamAtValid {
			return a.ExamAtValid
		}
		if a.ExamAtValid && !a.ExamAt.Equal(b.ExamAt) {
			return a.ExamAt.Before(b.ExamAt)
		}
		return false
	})

	if unparseable > 0 {
		reporter.Warning(models.IssueChronologyWarning,
			"exam timestamps could not be parsed; rows excluded from time-dependent metrics only", unparseable)
	}

	if anomalous := accountAfterFirstExam(records); anomalous > 0 {
		reporter.Warning(models.IssueChronologyWarning,
			"users whose account creation postdates their earliest exam sitting", anomalous)
	}

	s.logger.Info("chronological normalization finished",
		"records", len(records),
		"unparseable_exam_timestamps", unparseable,
	)

	return records
}

// ParseTimestamp tries each accepted layout and reports whether one matched.
func ParseTimestamp(value string) (time.Time, bool) {
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// accountAfterFirstExam counts users whose account-creation timestamp is
// later than their earliest valid exam timestamp. Records must already be
// sorted by user then exam time.
func accountAfterFirstExam(records []models.JoinedRecord) int {
	type firstSeen struct {
		examAt    time.Time
		accountAt time.Time
		hasExam   bool
		hasAcct   bool
	}
	byUser := make(map[string]*firstSeen)
	order := make([]string, 0)
	for _, rec := range records {
		fs, ok := byUser[rec.Response.UserID]
		if !ok {
			fs = &firstSeen{}
			byUser[rec.Response.UserID] = fs
			order = append(order, rec.Response.UserID)
		}
		if rec.ExamAtValid && !fs.hasExam {
			fs.examAt = rec.ExamAt
			fs.hasExam = true
		}
		if rec.AccountAtValid && !fs.hasAcct {
			fs.accountAt = rec.AccountAt
			fs.hasAcct = true
		}
	}

	anomalous := 0
	for _, user := range order {
		fs := byUser[user]
		if fs.hasExam && fs.hasAcct && fs.accountAt.After(fs.examAt) {
			anomalous++
		}
	}
	return anomalous
}
