package engine

import (
	"fmt"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/vocab-quiz/internal/model"
)

var fixedNow = time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)

// makeBank builds n single-answer questions whose correct label is "A".
func makeBank(n int) []model.Question {
	testID := uuid.New()
	bank := make([]model.Question, n)
	for i := range bank {
		bank[i] = model.Question{
			ID:     uuid.New(),
			TestID: testID,
			Prompt: fmt.Sprintf("word %d", i+1),
			Options: []model.Option{
				{Label: "A", Text: fmt.Sprintf("right %d", i+1)},
				{Label: "B", Text: fmt.Sprintf("wrong %d", i+1)},
				{Label: "C", Text: fmt.Sprintf("other %d", i+1)},
			},
			CorrectLabels: []string{"A"},
			Explanation: model.Explanation{
				Correct:   "well done",
				Incorrect: "not quite",
				ByLabel:   map[string]string{"B": "B is a false friend"},
			},
			OrderNum: i + 1,
		}
	}
	return bank
}

func flexibleConfig() model.SessionConfig {
	return model.SessionConfig{
		Mode:        model.Flexible{},
		CheckTiming: model.CheckAfterSubmit,
		ShowOrdinal: true,
	}
}

func perQuestionConfig(seconds int) model.SessionConfig {
	return model.SessionConfig{
		Mode:        model.PerQuestionTimer{PerQuestionSeconds: seconds},
		CheckTiming: model.CheckAfterEach,
	}
}

func newSession(t *testing.T, n int, cfg model.SessionConfig) *Session {
	t.Helper()
	s, err := Start(makeBank(n), cfg, rand.New(rand.NewPCG(1, 2)), Options{
		UserID: "learner-1",
		Now:    func() time.Time { return fixedNow },
	})
	if err != nil {
		t.Fatalf("start session: %v", err)
	}
	return s
}

func mustApply(t *testing.T, s *Session, in Intent) {
	t.Helper()
	if err := s.Apply(in); err != nil {
		t.Fatalf("%s %q: %v", in.Action, in.Label, err)
	}
}

func countEvents(events []Event, kind EventKind) int {
	n := 0
	for _, e := range events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}
