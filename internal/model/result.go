package model

import (
	"time"

	"github.com/google/uuid"
)

// ResultStatus enumerates the lifecycle states of a persisted result.
type ResultStatus string

const (
	ResultStatusDraft  ResultStatus = "draft"
	ResultStatusActive ResultStatus = "active"
)

// OutcomeEntry is the per-question line of a result.
type OutcomeEntry struct {
	QuestionID    uuid.UUID `json:"question_id"`
	UserAnswer    string    `json:"user_answer"`
	CorrectAnswer string    `json:"correct_answer"`
	IsCorrect     bool      `json:"is_correct"`
	QuestionText  string    `json:"question_text"`
	Explanation   string    `json:"explanation,omitempty"`
}

// ResultPayload is the body handed to the result store when a draft is created.
type ResultPayload struct {
	TestID         uuid.UUID      `json:"test_id"`
	UserID         string         `json:"user_id"`
	Answers        []OutcomeEntry `json:"answers"`
	Score          int            `json:"score"`
	CorrectAnswers int            `json:"correct_answers"`
	TotalQuestions int            `json:"total_questions"`
	TimeTaken      int            `json:"time_taken"`
	Status         ResultStatus   `json:"status"`
}

// ResultRecord is a persisted result.
type ResultRecord struct {
	ID uuid.UUID `json:"id"`
	ResultPayload
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
