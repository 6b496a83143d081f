package model

import "github.com/google/uuid"

// Correctness is the checked state of an answer record.
type Correctness string

const (
	CorrectnessUnknown   Correctness = "unknown"
	CorrectnessCorrect   Correctness = "correct"
	CorrectnessIncorrect Correctness = "incorrect"
)

// AnswerRecord is the learner's answer to one question within a session.
// Once Locked is set, SelectedLabels and Correctness never change again.
type AnswerRecord struct {
	QuestionID       uuid.UUID   `json:"question_id"`
	SelectedLabels   []string    `json:"selected_labels"`
	Locked           bool        `json:"locked"`
	Correctness      Correctness `json:"correctness"`
	TimeSpentSeconds int         `json:"time_spent_seconds"`
}

// Answered reports whether the learner selected anything.
func (r *AnswerRecord) Answered() bool {
	return len(r.SelectedLabels) > 0
}

// AnswerEvent is emitted whenever a record is locked; persisted for analytics only.
type AnswerEvent struct {
	SessionID        uuid.UUID   `json:"session_id"`
	TestID           uuid.UUID   `json:"test_id"`
	UserID           string      `json:"user_id"`
	QuestionID       uuid.UUID   `json:"question_id"`
	SelectedLabels   []string    `json:"selected_labels"`
	Correctness      Correctness `json:"correctness"`
	Forced           bool        `json:"forced"`
	TimeSpentSeconds int         `json:"time_spent_seconds"`
	RecordedAt       int64       `json:"recorded_at"`
}
