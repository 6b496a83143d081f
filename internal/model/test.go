package model

import (
	"time"

	"github.com/google/uuid"
)

// TestMeta is the descriptive metadata of a vocabulary test.
type TestMeta struct {
	ID               uuid.UUID  `json:"id"`
	Title            string     `json:"title"`
	TotalQuestions   int        `json:"total_questions"`
	TimeLimitMinutes int        `json:"time_limit_minutes"`
	Difficulty       Difficulty `json:"difficulty"`
	Topic            string     `json:"topic"`
	Subtopic         string     `json:"subtopic"`
	CreatedAt        time.Time  `json:"created_at"`
}
