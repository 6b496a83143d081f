package engine

import (
	"strings"

	"github.com/google/uuid"
	"github.com/stemsi/vocab-quiz/internal/model"
)

// Stats are the aggregate counts of a finished ledger.
//
// Incorrect includes forced-unanswered records, so Correct+Incorrect equals
// Total. Wrong is the answered-but-incorrect part of Incorrect, so
// Correct+Wrong+Unanswered also equals Total.
type Stats struct {
	Total        int `json:"total_questions"`
	Correct      int `json:"correct_count"`
	Incorrect    int `json:"incorrect_count"`
	Wrong        int `json:"wrong_count"`
	Unanswered   int `json:"unanswered_count"`
	EarnedPoints int `json:"earned_points"`
	MaxPoints    int `json:"max_points"`
}

// Result is the compiled outcome of a submitted session.
type Result struct {
	Stats            Stats                `json:"stats"`
	Percentage       int                  `json:"score"`
	TenPoint         float64              `json:"score_ten_point"`
	TimeTakenSeconds int                  `json:"time_taken"`
	Forced           bool                 `json:"forced"`
	Outcomes         []model.OutcomeEntry `json:"answers"`
}

// Payload builds the draft body handed to the result store.
func (r *Result) Payload(testID uuid.UUID, userID string) model.ResultPayload {
	answers := make([]model.OutcomeEntry, len(r.Outcomes))
	copy(answers, r.Outcomes)
	return model.ResultPayload{
		TestID:         testID,
		UserID:         userID,
		Answers:        answers,
		Score:          r.Percentage,
		CorrectAnswers: r.Stats.Correct,
		TotalQuestions: r.Stats.Total,
		TimeTaken:      r.TimeTakenSeconds,
		Status:         model.ResultStatusDraft,
	}
}

// Compile reduces the final records into a Result. It never mutates its inputs.
func Compile(questions []model.Question, records []model.AnswerRecord, timeTaken int) *Result {
	res := &Result{
		TimeTakenSeconds: timeTaken,
		Outcomes:         make([]model.OutcomeEntry, 0, len(questions)),
	}
	st := &res.Stats
	st.Total = len(questions)
	for i := range questions {
		q := &questions[i]
		rec := records[i]
		st.MaxPoints += q.Weight()

		correct := rec.Correctness == model.CorrectnessCorrect
		switch {
		case correct:
			st.Correct++
			st.EarnedPoints += q.Weight()
		case !rec.Answered():
			st.Incorrect++
			st.Unanswered++
		default:
			st.Incorrect++
			st.Wrong++
		}

		res.Outcomes = append(res.Outcomes, model.OutcomeEntry{
			QuestionID:    q.ID,
			UserAnswer:    renderLabels(q, rec.SelectedLabels),
			CorrectAnswer: renderLabels(q, q.CorrectLabels),
			IsCorrect:     correct,
			QuestionText:  q.Prompt,
			Explanation:   explanationFor(q, rec),
		})
	}
	res.Percentage = PercentageScore(st.Correct, st.Total)
	res.TenPoint = TenPointScore(st.Correct, st.Total)
	return res
}

// PercentageScore is round(correct/total*100), halves rounded up.
func PercentageScore(correct, total int) int {
	if total <= 0 {
		return 0
	}
	return (200*correct + total) / (2 * total)
}

// TenPointScore is the percentage score on a 0-10 scale with one decimal.
// It derives from PercentageScore so both scales always agree.
func TenPointScore(correct, total int) float64 {
	return float64(PercentageScore(correct, total)) / 10
}

// renderLabels joins the option texts of labels in the question's option order.
func renderLabels(q *model.Question, labels []string) string {
	if len(labels) == 0 {
		return ""
	}
	want := make(map[string]struct{}, len(labels))
	for _, l := range labels {
		want[l] = struct{}{}
	}
	parts := make([]string, 0, len(labels))
	for _, o := range q.Options {
		if _, ok := want[o.Label]; ok {
			parts = append(parts, o.Text)
		}
	}
	return strings.Join(parts, ", ")
}

func explanationFor(q *model.Question, rec model.AnswerRecord) string {
	ex := q.Explanation
	if rec.Correctness == model.CorrectnessCorrect {
		return ex.Correct
	}
	if len(rec.SelectedLabels) == 1 {
		if text, ok := ex.ByLabel[rec.SelectedLabels[0]]; ok && text != "" {
			return text
		}
	}
	return ex.Incorrect
}
