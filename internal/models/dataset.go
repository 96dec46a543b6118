package models

import "time"

// Correctness flag values as they appear in the response log. The flag is a
// two-valued categorical label, not a boolean, and is cross-validated against
// the catalog's correct-option text before any metric trusts it.
const (
	FlagCorrect   = "CORRECTA"
	FlagIncorrect = "INCORRECTA"
)

// RawCase is one row of the case catalog exactly as the loading layer hands
// it over: identifiers and text as strings, no interpretation applied yet.
type RawCase struct {
	ExamID           string `json:"id_exam" gorm:"column:id_exam" validate:"required"`
	ExamName         string `json:"exam_name" gorm:"column:exam_name"`
	CategoryID       string `json:"id_category" gorm:"column:id_category"`
	CategoryName     string `json:"category_name" gorm:"column:category_name" validate:"required"`
	SubcategoryID    string `json:"id_subcategory" gorm:"column:id_subcategory"`
	SubcategoryName  string `json:"subcategory_name" gorm:"column:subcategory_name" validate:"required"`
	CaseID           string `json:"id_case" gorm:"column:id_case" validate:"required"`
	CaseText         string `json:"case_text" gorm:"column:case_text"`
	CaseFeedback     string `json:"case_feedback" gorm:"column:case_feedback"`
	QuestionID       string `json:"id_question" gorm:"column:id_question" validate:"required"`
	QuestionText     string `json:"question" gorm:"column:question" validate:"required"`
	QuestionFeedback string `json:"question_feedback" gorm:"column:question_feedback"`
	CorrectOption    string `json:"option1_correct" gorm:"column:option1_correct" validate:"required"`
	IncorrectOption2 string `json:"option2_incorrect" gorm:"column:option2_incorrect"`
	IncorrectOption3 string `json:"option3_incorrect" gorm:"column:option3_incorrect"`
	IncorrectOption4 string `json:"option4_incorrect" gorm:"column:option4_incorrect"`
}

func (RawCase) TableName() string { return "exam_cases" }

// RawResponse is one row of the response log. Timestamps stay as strings
// until the chronological normalizer parses them; demographic fields are
// passthrough dimensions only.
type RawResponse struct {
	UserID           string `json:"id_user_hash" gorm:"column:id_user_hash" validate:"required"`
	Subspecialty     string `json:"subspecialty" gorm:"column:subspecialty"`
	EducationLevel   string `json:"education_level" gorm:"column:education_level"`
	Gender           string `json:"gender" gorm:"column:gender"`
	AgeRange         string `json:"age_range" gorm:"column:age_range"`
	EmploymentStatus string `json:"employment_status" gorm:"column:employment_status"`
	UserCreatedAt    string `json:"user_created_at" gorm:"column:user_created_at"`
	ExamCreatedAt    string `json:"exam_created_at" gorm:"column:exam_created_at" validate:"required"`
	CaseID           string `json:"id_case" gorm:"column:id_case"`
	QuestionID       string `json:"id_question" gorm:"column:id_question" validate:"required"`
	UserAnswer       string `json:"user_answer" gorm:"column:user_answer"`
	CorrectnessFlag  string `json:"is_user_answer_correct" gorm:"column:is_user_answer_correct" validate:"required,oneof=CORRECTA INCORRECTA"`
	Country          string `json:"country_user_made_the_exam" gorm:"column:country_user_made_the_exam"`
	City             string `json:"city_user_made_the_exam" gorm:"column:city_user_made_the_exam"`
}

func (RawResponse) TableName() string { return "user_responses" }

// Dataset is the pair of source tables handed to the pipeline. Column lists
// are present when the source is a file (used for the column-presence check);
// a nil list means the source schema is enforced elsewhere.
type Dataset struct {
	CaseColumns     []string
	Cases           []RawCase
	ResponseColumns []string
	Responses       []RawResponse
}

// ContentGroup is the set of question ids sharing identical question text.
// Groups with more than one member are duplicate-by-design; a drifted group
// disagrees on case content and is excluded from content-level aggregation.
type ContentGroup struct {
	Key          string   `json:"key"`
	QuestionText string   `json:"question_text"`
	QuestionIDs  []string `json:"question_ids"`
	MemberCount  int      `json:"member_count"`
	Drifted      bool     `json:"drifted"`
}

// JoinedRecord is one response enriched with its case attributes and content
// group key. It is built once per pipeline run and read-only afterwards.
//
// Correct carries the cross-validated correctness (answer text against the
// catalog's correct option), which is authoritative over the raw flag.
type JoinedRecord struct {
	Response RawResponse `json:"response"`
	Case     RawCase     `json:"case"`

	ContentKey      string `json:"content_key"`
	ContentEligible bool   `json:"content_eligible"`

	Correct      bool `json:"correct"`
	FlagMismatch bool `json:"flag_mismatch"`

	ExamAt         time.Time `json:"exam_at"`
	ExamAtValid    bool      `json:"exam_at_valid"`
	AccountAt      time.Time `json:"account_at"`
	AccountAtValid bool      `json:"account_at_valid"`
}
