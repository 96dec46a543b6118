package services

import (
	"sort"
	"time"

	"github.com/mellow-health/exam-analytics-service/internal/config"
	"github.com/mellow-health/exam-analytics-service/internal/models"
	"github.com/mellow-health/exam-analytics-service/internal/utils"
)

// AnalyticsService computes every aggregation from the joined, normalized
// record set. All methods are pure over their inputs: no clock reads, no
// shared state, and map iteration is always followed by a deterministic
// sort, so one dataset plus one configuration yields byte-identical results.
type AnalyticsService struct {
	cfg    config.AnalyticsConfig
	logger utils.Logger
}

func NewAnalyticsService(cfg config.AnalyticsConfig, logger utils.Logger) *AnalyticsService {
	return &AnalyticsService{cfg: cfg, logger: logger}
}

// ===== OVERVIEW =====

// DatasetSummary describes the shape of the sources behind a run.
type DatasetSummary struct {
	CatalogQuestionIDs      int        `json:"catalog_question_ids"`
	UniqueQuestionTexts     int        `json:"unique_question_texts"`
	DuplicatedQuestionTexts int        `json:"duplicated_question_texts"`
	DuplicationRate         float64    `json:"duplication_rate"`
	Cases                   int        `json:"cases"`
	Categories              int        `json:"categories"`
	Subcategories           int        `json:"subcategories"`
	Countries               int        `json:"countries"`
	FirstResponseAt         *time.Time `json:"first_response_at,omitempty"`
	LastResponseAt          *time.Time `json:"last_response_at,omitempty"`
	SpanDays                int        `json:"span_days"`
}

type OverviewResult struct {
	TotalResponses      int            `json:"total_responses"`
	UniqueUsers         int            `json:"unique_users"`
	OverallAccuracy     float64        `json:"overall_accuracy"`
	AvgResponsesPerUser float64        `json:"avg_responses_per_user"`
	Summary             DatasetSummary `json:"summary"`
}

// Overview reports id-level headline counts over the matched records plus a
// summary of the catalog shape. Counts are raw: every matched response
// counts once, duplicated question ids included.
func (s *AnalyticsService) Overview(records []models.JoinedRecord, cases []models.RawCase, groups []models.ContentGroup) OverviewResult {
	users := make(map[string]bool)
	correct := 0
	var first, last time.Time
	for _, rec := range records {
		users[rec.Response.UserID] = true
		if rec.Correct {
			correct++
		}
		if rec.ExamAtValid {
			if first.IsZero() || rec.ExamAt.Before(first) {
				first = rec.ExamAt
			}
			if last.IsZero() || rec.ExamAt.After(last) {
				last = rec.ExamAt
			}
		}
	}

	result := OverviewResult{
		TotalResponses: len(records),
		UniqueUsers:    len(users),
		Summary:        summarizeDataset(records, cases, groups),
	}
	if len(records) > 0 {
		result.OverallAccuracy = float64(correct) / float64(len(records))
	}
	if len(users) > 0 {
		result.AvgResponsesPerUser = float64(len(records)) / float64(len(users))
	}
	if !first.IsZero() {
		f, l := first, last
		result.Summary.FirstResponseAt = &f
		result.Summary.LastResponseAt = &l
		result.Summary.SpanDays = int(l.Sub(f).Hours()/24) + 1
	}
	return result
}

func summarizeDataset(records []models.JoinedRecord, cases []models.RawCase, groups []models.ContentGroup) DatasetSummary {
	questionIDs := make(map[string]bool)
	caseIDs := make(map[string]bool)
	categories := make(map[string]bool)
	subcategories := make(map[string]bool)
	for _, c := range cases {
		questionIDs[c.QuestionID] = true
		caseIDs[c.CaseID] = true
		categories[c.CategoryName] = true
		subcategories[c.SubcategoryName] = true
	}
	countries := make(map[string]bool)
	for _, rec := range records {
		if rec.Response.Country != "" {
			countries[rec.Response.Country] = true
		}
	}

	duplicated := 0
	for _, g := range groups {
		if g.MemberCount > 1 {
			duplicated++
		}
	}

	summary := DatasetSummary{
		CatalogQuestionIDs:      len(questionIDs),
		UniqueQuestionTexts:     len(groups),
		DuplicatedQuestionTexts: duplicated,
		Cases:                   len(caseIDs),
		Categories:              len(categories),
		Subcategories:           len(subcategories),
		Countries:               len(countries),
	}
	if len(groups) > 0 {
		summary.DuplicationRate = float64(duplicated) / float64(len(groups))
	}
	return summary
}

// ===== TRENDS =====

type TrendBucket struct {
	Start            time.Time `json:"start"`
	Responses        int       `json:"responses"`
	CorrectResponses int       `json:"correct_responses"`
	UniqueUsers      int       `json:"unique_users"`
	Accuracy         float64   `json:"accuracy"`
	SmoothedAccuracy float64   `json:"smoothed_accuracy"`
}

type HourlyBucket struct {
	Hour      int `json:"hour"`
	Responses int `json:"responses"`
}

type TrendsResult struct {
	Granularity string         `json:"granularity"`
	Buckets     []TrendBucket  `json:"buckets"`
	Hourly      []HourlyBucket `json:"hourly"`
}

// Trends buckets the valid-timestamp records onto a calendar grid and adds a
// trailing moving average over bucket accuracy. Rows without a parseable
// exam timestamp are skipped here and only here.
func (s *AnalyticsService) Trends(records []models.JoinedRecord) TrendsResult {
	type bucketStats struct {
		responses int
		correct   int
		users     map[string]bool
	}
	byStart := make(map[time.Time]*bucketStats)
	var hourly [24]int

	for _, rec := range records {
		if !rec.ExamAtValid {
			continue
		}
		start := bucketStart(rec.ExamAt, s.cfg.TrendGranularity)
		bs, ok := byStart[start]
		if !ok {
			bs = &bucketStats{users: make(map[string]bool)}
			byStart[start] = bs
		}
		bs.responses++
		if rec.Correct {
			bs.correct++
		}
		bs.users[rec.Response.UserID] = true
		hourly[rec.ExamAt.Hour()]++
	}

	starts := make([]time.Time, 0, len(byStart))
	for start := range byStart {
		starts = append(starts, start)
	}
	sort.Slice(starts, func(i, j int) bool { return starts[i].Before(starts[j]) })

	buckets := make([]TrendBucket, 0, len(starts))
	for _, start := range starts {
		bs := byStart[start]
		b := TrendBucket{
			Start:            start,
			Responses:        bs.responses,
			CorrectResponses: bs.correct,
			UniqueUsers:      len(bs.users),
		}
		if bs.responses > 0 {
			b.Accuracy = float64(bs.correct) / float64(bs.responses)
		}
		buckets = append(buckets, b)
	}

	window := s.cfg.TrendSmoothingWindow
	for i := range buckets {
		lo := i - window + 1
		if lo < 0 {
			lo = 0
		}
		sum := 0.0
		for j := lo; j <= i; j++ {
			sum += buckets[j].Accuracy
		}
		buckets[i].SmoothedAccuracy = sum / float64(i-lo+1)
	}

	hourlyBuckets := make([]HourlyBucket, 24)
	for h := range hourlyBuckets {
		hourlyBuckets[h] = HourlyBucket{Hour: h, Responses: hourly[h]}
	}

	return TrendsResult{
		Granularity: s.cfg.TrendGranularity,
		Buckets:     buckets,
		Hourly:      hourlyBuckets,
	}
}

// bucketStart truncates a timestamp to its calendar bucket. Weekly buckets
// start on Monday.
func bucketStart(t time.Time, granularity string) time.Time {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	if granularity == "daily" {
		return day
	}
	return day.AddDate(0, 0, -int((day.Weekday()+6)%7))
}

// ===== TOPIC PERFORMANCE =====

type TopicStats struct {
	Category         string  `json:"category"`
	Subcategory      string  `json:"subcategory"`
	Responses        int     `json:"responses"`
	CorrectResponses int     `json:"correct_responses"`
	Accuracy         float64 `json:"accuracy"`
}

type TopicResult struct {
	Topics []TopicStats `json:"topics"`
}

// TopicPerformance aggregates accuracy per category and subcategory pair at
// id level, ordered weakest topic first with a deterministic tie-break.
func (s *AnalyticsService) TopicPerformance(records []models.JoinedRecord) TopicResult {
	type key struct{ category, subcategory string }
	type stats struct{ responses, correct int }
	byTopic := make(map[key]*stats)
	for _, rec := range records {
		k := key{rec.Case.CategoryName, rec.Case.SubcategoryName}
		st, ok := byTopic[k]
		if !ok {
			st = &stats{}
			byTopic[k] = st
		}
		st.responses++
		if rec.Correct {
			st.correct++
		}
	}

	topics := make([]TopicStats, 0, len(byTopic))
	for k, st := range byTopic {
		t := TopicStats{
			Category:         k.category,
			Subcategory:      k.subcategory,
			Responses:        st.responses,
			CorrectResponses: st.correct,
		}
		if st.responses > 0 {
			t.Accuracy = float64(st.correct) / float64(st.responses)
		}
		topics = append(topics, t)
	}
	sort.Slice(topics, func(i, j int) bool {
		if topics[i].Accuracy != topics[j].Accuracy {
			return topics[i].Accuracy < topics[j].Accuracy
		}
		if topics[i].Category != topics[j].Category {
			return topics[i].Category < topics[j].Category
		}
		return topics[i].Subcategory < topics[j].Subcategory
	})
	return TopicResult{Topics: topics}
}

// ===== MISTAKE ANALYSIS =====

type MistakeEntry struct {
	Answer string  `json:"answer"`
	Count  int     `json:"count"`
	Share  float64 `json:"share"`
}

type MistakeResult struct {
	TotalIncorrect int            `json:"total_incorrect"`
	Mistakes       []MistakeEntry `json:"mistakes"`
	TruncateLength int            `json:"truncate_length"`
}

// Mistakes ranks the most frequent incorrect answer texts. Entries carry the
// full text; TruncateLength is a display hint for consumers, not applied
// here.
func (s *AnalyticsService) Mistakes(records []models.JoinedRecord) MistakeResult {
	counts := make(map[string]int)
	totalIncorrect := 0
	for _, rec := range records {
		if rec.Correct {
			continue
		}
		totalIncorrect++
		if rec.Response.UserAnswer != "" {
			counts[rec.Response.UserAnswer]++
		}
	}

	entries := make([]MistakeEntry, 0, len(counts))
	for answer, count := range counts {
		e := MistakeEntry{Answer: answer, Count: count}
		if totalIncorrect > 0 {
			e.Share = float64(count) / float64(totalIncorrect)
		}
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Count != entries[j].Count {
			return entries[i].Count > entries[j].Count
		}
		return entries[i].Answer < entries[j].Answer
	})
	if len(entries) > s.cfg.MistakeTopN {
		entries = entries[:s.cfg.MistakeTopN]
	}

	return MistakeResult{
		TotalIncorrect: totalIncorrect,
		Mistakes:       entries,
		TruncateLength: s.cfg.MistakeTruncateLength,
	}
}
