package events

import "time"

// EventType identifies the kind of event published to the message bus.
type EventType string

const (
	EventAnalysisCompleted EventType = "analysis.completed"
)

// AnalysisCompletedEvent announces that a pipeline run finished and a fresh
// snapshot is available. Downstream consumers (dashboards, alerting) key off
// the fingerprint and the issue counts.
type AnalysisCompletedEvent struct {
	ID                 string    `json:"id"`
	Type               EventType `json:"type"`
	OccurredAt         time.Time `json:"occurred_at"`
	Source             string    `json:"source"`
	Version            string    `json:"version"`
	DatasetFingerprint string    `json:"dataset_fingerprint"`
	TotalResponses     int       `json:"total_responses"`
	UniqueUsers        int       `json:"unique_users"`
	CriticalIssues     int       `json:"critical_issues"`
	WarningIssues      int       `json:"warning_issues"`
	InfoIssues         int       `json:"info_issues"`
	Clean              bool      `json:"clean"`
	FromCache          bool      `json:"from_cache"`
}
