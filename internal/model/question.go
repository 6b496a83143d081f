package model

import (
	"github.com/google/uuid"
)

// Difficulty tags a question or a test.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Option is a single selectable answer. The label travels with the option
// when options are shuffled, so correctness never depends on position.
type Option struct {
	Label string `json:"label" yaml:"label"`
	Text  string `json:"text" yaml:"text"`
}

// Explanation holds review text keyed by correctness and by incorrect label.
type Explanation struct {
	Correct   string            `json:"correct,omitempty" yaml:"correct"`
	Incorrect string            `json:"incorrect,omitempty" yaml:"incorrect"`
	ByLabel   map[string]string `json:"by_label,omitempty" yaml:"by_label"`
}

// Question represents a single question loaded from the question bank.
type Question struct {
	ID            uuid.UUID   `json:"id"`
	TestID        uuid.UUID   `json:"test_id"`
	Prompt        string      `json:"prompt"`
	Options       []Option    `json:"options"`
	CorrectLabels []string    `json:"correct_labels"`
	Explanation   Explanation `json:"explanation"`
	Difficulty    Difficulty  `json:"difficulty"`
	Points        int         `json:"points"`
	OrderNum      int         `json:"order_num"`
}

// Weight returns the points weight of the question (default 1).
func (q *Question) Weight() int {
	if q.Points <= 0 {
		return 1
	}
	return q.Points
}

// MultiSelect reports whether more than one label must be selected.
func (q *Question) MultiSelect() bool {
	return len(q.CorrectLabels) > 1
}

// OptionText returns the display text of the option carrying label.
func (q *Question) OptionText(label string) (string, bool) {
	for _, o := range q.Options {
		if o.Label == label {
			return o.Text, true
		}
	}
	return "", false
}

// HasLabel reports whether label denotes one of the question's options.
func (q *Question) HasLabel(label string) bool {
	_, ok := q.OptionText(label)
	return ok
}

// QuestionForLearner is a question without the correct answer, sent to learners.
type QuestionForLearner struct {
	ID          uuid.UUID  `json:"id"`
	Prompt      string     `json:"prompt"`
	Options     []Option   `json:"options"`
	MultiSelect bool       `json:"multi_select"`
	Difficulty  Difficulty `json:"difficulty,omitempty"`
	Points      int        `json:"points"`
}

// ForLearner strips the answer key from q.
func (q *Question) ForLearner() QuestionForLearner {
	opts := make([]Option, len(q.Options))
	copy(opts, q.Options)
	return QuestionForLearner{
		ID:          q.ID,
		Prompt:      q.Prompt,
		Options:     opts,
		MultiSelect: q.MultiSelect(),
		Difficulty:  q.Difficulty,
		Points:      q.Weight(),
	}
}
