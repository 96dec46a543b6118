package services

import (
	"math"
	"sort"

	"github.com/mellow-health/exam-analytics-service/internal/config"
	"github.com/mellow-health/exam-analytics-service/internal/models"
)

// ===== DIFFICULTY =====

type DifficultyGroup struct {
	ContentKey       string   `json:"content_key"`
	QuestionText     string   `json:"question_text"`
	Subcategory      string   `json:"subcategory"`
	QuestionIDs      []string `json:"question_ids"`
	Responses        int      `json:"responses"`
	CorrectResponses int      `json:"correct_responses"`
	Accuracy         float64  `json:"accuracy"`
	Band             string   `json:"band,omitempty"`
}

type BandCount struct {
	Band   string `json:"band"`
	Groups int    `json:"groups"`
}

type DifficultyResult struct {
	MinSample     int               `json:"min_sample"`
	Groups        []DifficultyGroup `json:"groups"`
	Insufficient  []DifficultyGroup `json:"insufficient"`
	BandCounts    []BandCount       `json:"band_counts"`
	MostDifficult []DifficultyGroup `json:"most_difficult"`
}

// Difficulty classifies content groups into accuracy bands. This is the
// content-level view: responses to every question id in a group pool
// together, and drifted groups never reach it. Groups under the minimum
// sample are listed separately and reported as an info finding.
func (s *AnalyticsService) Difficulty(records []models.JoinedRecord, groups []models.ContentGroup, reporter *ValidationReporter) DifficultyResult {
	type stats struct {
		responses   int
		correct     int
		subcategory string
	}
	byKey := make(map[string]*stats)
	for _, rec := range records {
		if !rec.ContentEligible || rec.ContentKey == "" {
			continue
		}
		st, ok := byKey[rec.ContentKey]
		if !ok {
			st = &stats{subcategory: rec.Case.SubcategoryName}
			byKey[rec.ContentKey] = st
		}
		st.responses++
		if rec.Correct {
			st.correct++
		}
	}

	bands := s.cfg.Bands()
	result := DifficultyResult{MinSample: s.cfg.DifficultyMinSample}
	insufficientRows := 0

	for _, g := range groups {
		st, ok := byKey[g.Key]
		if !ok {
			continue
		}
		dg := DifficultyGroup{
			ContentKey:       g.Key,
			QuestionText:     g.QuestionText,
			Subcategory:      st.subcategory,
			QuestionIDs:      g.QuestionIDs,
			Responses:        st.responses,
			CorrectResponses: st.correct,
			Accuracy:         float64(st.correct) / float64(st.responses),
		}
		if st.responses < s.cfg.DifficultyMinSample {
			result.Insufficient = append(result.Insufficient, dg)
			insufficientRows += st.responses
			continue
		}
		dg.Band = classifyBand(dg.Accuracy, bands)
		result.Groups = append(result.Groups, dg)
	}

	sort.Slice(result.Groups, func(i, j int) bool {
		if result.Groups[i].Accuracy != result.Groups[j].Accuracy {
			return result.Groups[i].Accuracy < result.Groups[j].Accuracy
		}
		return result.Groups[i].ContentKey < result.Groups[j].ContentKey
	})

	counts := make(map[string]int, len(bands))
	for _, dg := range result.Groups {
		counts[dg.Band]++
	}
	for _, band := range bands {
		result.BandCounts = append(result.BandCounts, BandCount{Band: band.Name, Groups: counts[band.Name]})
	}

	worst := s.cfg.DifficultyWorstCount
	if worst > len(result.Groups) {
		worst = len(result.Groups)
	}
	result.MostDifficult = result.Groups[:worst]

	if len(result.Insufficient) > 0 {
		reporter.Info(models.IssueInsufficientSample,
			"content groups below the difficulty sample threshold; listed but not classified", insufficientRows)
	}

	return result
}

// classifyBand places an accuracy into its band. Bands are [lower, upper)
// with the top band closed, so every rate in [0, 1] lands somewhere.
func classifyBand(accuracy float64, bands []config.DifficultyBand) string {
	for i, band := range bands {
		if i == len(bands)-1 {
			return band.Name
		}
		if accuracy >= band.Lower && accuracy < band.Upper {
			return band.Name
		}
	}
	return ""
}

// ===== LEARNING PROGRESSION =====

type ProgressionPoint struct {
	Attempt  int     `json:"attempt"`
	Accuracy float64 `json:"accuracy"`
}

type UserProgression struct {
	UserID        string             `json:"user_id"`
	Attempts      int                `json:"attempts"`
	Points        []ProgressionPoint `json:"points"`
	FinalAccuracy float64            `json:"final_accuracy"`
	Trend         string             `json:"trend"`
}

type AttemptStats struct {
	Attempt int     `json:"attempt"`
	Users   int     `json:"users"`
	Mean    float64 `json:"mean"`
	Q25     float64 `json:"q25"`
	Q75     float64 `json:"q75"`
}

type ProgressionResult struct {
	MinAttempts    int               `json:"min_attempts"`
	QualifiedUsers int               `json:"qualified_users"`
	ExcludedUsers  int               `json:"excluded_users"`
	Users          []UserProgression `json:"users"`
	ByAttempt      []AttemptStats    `json:"by_attempt"`
}

// Trend labels for a user's expanding accuracy sequence.
const (
	TrendImproving = "improving"
	TrendFlat      = "flat"
	TrendDeclining = "declining"
)

// Progression computes each qualifying user's expanding accuracy over their
// chronological attempts, labels the trajectory, and summarizes the
// distribution per attempt index. Records must be chronologically normalized
// first; rows without a valid exam timestamp do not count as attempts.
func (s *AnalyticsService) Progression(records []models.JoinedRecord, reporter *ValidationReporter) ProgressionResult {
	correctByUser := make(map[string][]bool)
	userOrder := make([]string, 0)
	for _, rec := range records {
		if !rec.ExamAtValid {
			continue
		}
		if _, ok := correctByUser[rec.Response.UserID]; !ok {
			userOrder = append(userOrder, rec.Response.UserID)
		}
		correctByUser[rec.Response.UserID] = append(correctByUser[rec.Response.UserID], rec.Correct)
	}
	sort.Strings(userOrder)

	result := ProgressionResult{MinAttempts: s.cfg.ProgressionMinAttempts}
	maxAttempts := 0
	for _, user := range userOrder {
		seq := correctByUser[user]
		if len(seq) < s.cfg.ProgressionMinAttempts {
			result.ExcludedUsers++
			continue
		}

		points := make([]ProgressionPoint, len(seq))
		running := 0
		accuracies := make([]float64, len(seq))
		for i, correct := range seq {
			if correct {
				running++
			}
			accuracies[i] = float64(running) / float64(i+1)
			points[i] = ProgressionPoint{Attempt: i + 1, Accuracy: accuracies[i]}
		}

		result.Users = append(result.Users, UserProgression{
			UserID:        user,
			Attempts:      len(seq),
			Points:        points,
			FinalAccuracy: accuracies[len(accuracies)-1],
			Trend:         s.labelTrend(accuracies),
		})
		if len(seq) > maxAttempts {
			maxAttempts = len(seq)
		}
	}
	result.QualifiedUsers = len(result.Users)

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		values := make([]float64, 0, len(result.Users))
		for _, up := range result.Users {
			if up.Attempts >= attempt {
				values = append(values, up.Points[attempt-1].Accuracy)
			}
		}
		sort.Float64s(values)
		result.ByAttempt = append(result.ByAttempt, AttemptStats{
			Attempt: attempt,
			Users:   len(values),
			Mean:    meanFloat(values),
			Q25:     quantile(values, 0.25),
			Q75:     quantile(values, 0.75),
		})
	}

	if result.ExcludedUsers > 0 {
		reporter.Info(models.IssueInsufficientSample,
			"users below the progression attempt threshold; excluded from progression only", result.ExcludedUsers)
	}

	return result
}

// labelTrend compares the mean of the first half of the expanding accuracy
// sequence against the second half.
func (s *AnalyticsService) labelTrend(accuracies []float64) string {
	half := len(accuracies) / 2
	diff := meanFloat(accuracies[half:]) - meanFloat(accuracies[:half])
	switch {
	case diff > s.cfg.ProgressionTrendDelta:
		return TrendImproving
	case diff < -s.cfg.ProgressionTrendDelta:
		return TrendDeclining
	default:
		return TrendFlat
	}
}

// ===== USER SEGMENTATION =====

// Segment display names, in classification priority order.
const (
	SegmentHighPerformers = "High Performers"
	SegmentQuickLearners  = "Quick Learners"
	SegmentStruggling     = "Struggling Users"
	SegmentAverage        = "Average Learners"
)

var segmentOrder = []string{SegmentHighPerformers, SegmentQuickLearners, SegmentAverage, SegmentStruggling}

type UserSegment struct {
	UserID         string  `json:"user_id"`
	Segment        string  `json:"segment"`
	Attempts       int     `json:"attempts"`
	Accuracy       float64 `json:"accuracy"`
	EngagementDays int     `json:"engagement_days"`
}

type SegmentSummary struct {
	Segment           string  `json:"segment"`
	Users             int     `json:"users"`
	Share             float64 `json:"share"`
	AvgAccuracy       float64 `json:"avg_accuracy"`
	AvgAttempts       float64 `json:"avg_attempts"`
	AvgEngagementDays float64 `json:"avg_engagement_days"`
}

type SegmentationResult struct {
	TotalUsers int              `json:"total_users"`
	Users      []UserSegment    `json:"users"`
	Segments   []SegmentSummary `json:"segments"`
}

// Segmentation assigns every user to exactly one segment by accuracy and
// volume thresholds, evaluated in fixed priority order so the segments
// partition the user base.
func (s *AnalyticsService) Segmentation(records []models.JoinedRecord) SegmentationResult {
	type userStats struct {
		attempts  int
		correct   int
		first     bool
		firstSeen int64
		lastSeen  int64
	}
	byUser := make(map[string]*userStats)
	for _, rec := range records {
		st, ok := byUser[rec.Response.UserID]
		if !ok {
			st = &userStats{}
			byUser[rec.Response.UserID] = st
		}
		st.attempts++
		if rec.Correct {
			st.correct++
		}
		if rec.ExamAtValid {
			ts := rec.ExamAt.Unix()
			if !st.first || ts < st.firstSeen {
				st.firstSeen = ts
			}
			if !st.first || ts > st.lastSeen {
				st.lastSeen = ts
			}
			st.first = true
		}
	}

	users := make([]UserSegment, 0, len(byUser))
	for user, st := range byUser {
		accuracy := 0.0
		if st.attempts > 0 {
			accuracy = float64(st.correct) / float64(st.attempts)
		}
		engagementDays := 0
		if st.first {
			engagementDays = int((st.lastSeen-st.firstSeen)/86400) + 1
		}
		users = append(users, UserSegment{
			UserID:         user,
			Segment:        s.classifySegment(accuracy, st.attempts),
			Attempts:       st.attempts,
			Accuracy:       accuracy,
			EngagementDays: engagementDays,
		})
	}
	sort.Slice(users, func(i, j int) bool { return users[i].UserID < users[j].UserID })

	result := SegmentationResult{TotalUsers: len(users), Users: users}
	for _, name := range segmentOrder {
		summary := SegmentSummary{Segment: name}
		var accSum, attemptSum, engagementSum float64
		for _, u := range users {
			if u.Segment != name {
				continue
			}
			summary.Users++
			accSum += u.Accuracy
			attemptSum += float64(u.Attempts)
			engagementSum += float64(u.EngagementDays)
		}
		if summary.Users > 0 {
			summary.Share = float64(summary.Users) / float64(len(users))
			summary.AvgAccuracy = accSum / float64(summary.Users)
			summary.AvgAttempts = attemptSum / float64(summary.Users)
			summary.AvgEngagementDays = engagementSum / float64(summary.Users)
		}
		result.Segments = append(result.Segments, summary)
	}
	return result
}

func (s *AnalyticsService) classifySegment(accuracy float64, attempts int) string {
	switch {
	case accuracy >= s.cfg.SegmentAccuracyHigh && attempts >= s.cfg.SegmentVolumeThreshold:
		return SegmentHighPerformers
	case accuracy >= s.cfg.SegmentAccuracyHigh:
		return SegmentQuickLearners
	case accuracy < s.cfg.SegmentAccuracyLow:
		return SegmentStruggling
	default:
		return SegmentAverage
	}
}

// ===== RETENTION =====

type RetentionHorizon struct {
	Days        int     `json:"days"`
	ActiveUsers int     `json:"active_users"`
	Rate        float64 `json:"rate"`
}

type SurvivalPoint struct {
	Day         int     `json:"day"`
	ActiveUsers int     `json:"active_users"`
	Rate        float64 `json:"rate"`
}

type RetentionResult struct {
	TotalUsers         int                `json:"total_users"`
	SingleSessionUsers int                `json:"single_session_users"`
	MeanLifespanDays   float64            `json:"mean_lifespan_days"`
	MedianLifespanDays float64            `json:"median_lifespan_days"`
	Horizons           []RetentionHorizon `json:"horizons"`
	Survival           []SurvivalPoint    `json:"survival"`
}

// Retention measures how long users stay active, from each user's first
// valid exam timestamp to their last. A user is retained at horizon N when
// their lifespan reaches N days; the rate at day zero is 1 by construction
// and the curve never increases.
func (s *AnalyticsService) Retention(records []models.JoinedRecord, reporter *ValidationReporter) RetentionResult {
	type window struct {
		first int64
		last  int64
		seen  bool
	}
	byUser := make(map[string]*window)
	negative := 0
	for _, rec := range records {
		if !rec.ExamAtValid {
			continue
		}
		w, ok := byUser[rec.Response.UserID]
		if !ok {
			w = &window{}
			byUser[rec.Response.UserID] = w
		}
		ts := rec.ExamAt.Unix()
		if w.seen && ts < w.first {
			// Elapsed days went negative against the user's first sitting,
			// which the chronological sort should have made impossible.
			negative++
			w.first = ts
		}
		if !w.seen {
			w.first, w.last, w.seen = ts, ts, true
			continue
		}
		if ts > w.last {
			w.last = ts
		}
	}

	lifespans := make([]float64, 0, len(byUser))
	for _, w := range byUser {
		lifespans = append(lifespans, float64((w.last-w.first)/86400))
	}
	sort.Float64s(lifespans)

	result := RetentionResult{TotalUsers: len(lifespans)}
	if negative > 0 {
		reporter.Critical(models.IssueNegativeElapsed,
			"responses dated before the user's first recorded sitting", negative)
	}
	if len(lifespans) == 0 {
		return result
	}

	for _, l := range lifespans {
		if l == 0 {
			result.SingleSessionUsers++
		}
	}
	result.MeanLifespanDays = meanFloat(lifespans)
	result.MedianLifespanDays = quantile(lifespans, 0.5)

	total := float64(len(lifespans))
	for _, days := range s.cfg.RetentionHorizons {
		active := activeAtDay(lifespans, days)
		result.Horizons = append(result.Horizons, RetentionHorizon{
			Days:        days,
			ActiveUsers: active,
			Rate:        float64(active) / total,
		})
	}

	maxDay := int(lifespans[len(lifespans)-1])
	if maxDay > s.cfg.RetentionMaxDays {
		maxDay = s.cfg.RetentionMaxDays
	}
	for day := 0; day <= maxDay; day++ {
		active := activeAtDay(lifespans, day)
		result.Survival = append(result.Survival, SurvivalPoint{
			Day:         day,
			ActiveUsers: active,
			Rate:        float64(active) / total,
		})
	}

	return result
}

// activeAtDay counts lifespans of at least the given day, using the sorted
// order for an early cut.
func activeAtDay(sortedLifespans []float64, day int) int {
	idx := sort.SearchFloat64s(sortedLifespans, float64(day))
	return len(sortedLifespans) - idx
}

// ===== SHARED HELPERS =====

func meanFloat(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// quantile computes the q-th quantile of sorted values with linear
// interpolation between the two nearest ranks.
func quantile(sortedValues []float64, q float64) float64 {
	n := len(sortedValues)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sortedValues[0]
	}
	pos := q * float64(n-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sortedValues[lo]
	}
	frac := pos - float64(lo)
	return sortedValues[lo]*(1-frac) + sortedValues[hi]*frac
}
