package models

// Severity ranks a validation issue. Critical issues mark a run as not
// trustworthy; warnings and info never do.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

var severityRank = map[Severity]int{
	SeverityCritical: 0,
	SeverityWarning:  1,
	SeverityInfo:     2,
}

// Rank returns the sort position of the severity (critical first).
func (s Severity) Rank() int {
	if r, ok := severityRank[s]; ok {
		return r
	}
	return len(severityRank)
}

// IssueCode identifies a class of validation problem. Issues are emitted once
// per violation class with an affected row count, never once per row.
type IssueCode string

const (
	IssueSchemaError        IssueCode = "SCHEMA_ERROR"
	IssueOrphanRecords      IssueCode = "ORPHAN_RECORDS"
	IssueContentDrift       IssueCode = "CONTENT_DRIFT"
	IssueChronologyWarning  IssueCode = "CHRONOLOGY_WARNING"
	IssueInsufficientSample IssueCode = "INSUFFICIENT_SAMPLE"
	IssueUnusedContent      IssueCode = "UNUSED_CONTENT"
	IssueFlagMismatch       IssueCode = "ANSWER_FLAG_MISMATCH"
	IssueNegativeElapsed    IssueCode = "NEGATIVE_ELAPSED_DAYS"
)

// ValidationIssue is a single finding raised by a pipeline stage.
type ValidationIssue struct {
	Severity Severity  `json:"severity"`
	Code     IssueCode `json:"code"`
	Message  string    `json:"message"`
	RowCount int       `json:"row_count"`
}

// ValidationReport is the ordered collection of all issues from one run:
// critical first, then warnings, then info, insertion order within severity.
type ValidationReport struct {
	Issues []ValidationIssue `json:"issues"`
}

// IsClean reports whether the run produced no critical issues.
func (r ValidationReport) IsClean() bool {
	return r.CountBySeverity(SeverityCritical) == 0
}

// CountBySeverity returns the number of issues with the given severity.
func (r ValidationReport) CountBySeverity(s Severity) int {
	n := 0
	for _, issue := range r.Issues {
		if issue.Severity == s {
			n++
		}
	}
	return n
}
