package engine

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/stemsi/vocab-quiz/internal/model"
)

// Snapshot is what the presentation layer renders after every transition.
type Snapshot struct {
	SessionID      uuid.UUID                `json:"session_id"`
	TestID         uuid.UUID                `json:"test_id"`
	State          State                    `json:"state"`
	Mode           model.ModeName           `json:"mode"`
	CheckTiming    model.CheckTiming        `json:"check_timing"`
	CurrentIndex   int                      `json:"current_index"`
	TotalQuestions int                      `json:"total_questions"`
	Ordinal        string                   `json:"ordinal,omitempty"`
	Question       model.QuestionForLearner `json:"question"`
	Answers        []model.AnswerRecord     `json:"answers"`

	RemainingGlobalSeconds   *int `json:"remaining_global_seconds"`
	RemainingQuestionSeconds *int `json:"remaining_question_seconds"`

	CanCheck    bool `json:"can_check"`
	CanContinue bool `json:"can_continue"`
	CanAdvance  bool `json:"can_advance"`
	CanRetreat  bool `json:"can_retreat"`
	CanSubmit   bool `json:"can_submit"`
}

// Snapshot captures the session for rendering. Correct labels never leave
// the engine through it.
func (s *Session) Snapshot() Snapshot {
	cur := s.ledger.Record(s.index)
	snap := Snapshot{
		SessionID:      s.id,
		TestID:         s.testID,
		State:          s.state,
		Mode:           s.cfg.Mode.Name(),
		CheckTiming:    s.cfg.CheckTiming,
		CurrentIndex:   s.index,
		TotalQuestions: len(s.questions),
		Question:       s.questions[s.index].ForLearner(),
		Answers:        s.ledger.Snapshot(),
	}
	if s.cfg.ShowOrdinal {
		snap.Ordinal = fmt.Sprintf("%d/%d", s.index+1, len(s.questions))
	}
	if secs, ok := s.clock.RemainingGlobal(); ok {
		snap.RemainingGlobalSeconds = &secs
	}
	if secs, ok := s.clock.RemainingQuestion(); ok {
		snap.RemainingQuestionSeconds = &secs
	}

	active := s.state == StateInProgress
	perQuestion := s.cfg.PerQuestion()
	snap.CanCheck = active && !cur.Locked && cur.Answered() &&
		(perQuestion || s.cfg.CheckTiming == model.CheckAfterEach)
	snap.CanContinue = s.state == StatePaused
	snap.CanAdvance = active && !perQuestion && !s.last()
	snap.CanRetreat = active && !perQuestion && s.index > 0
	snap.CanSubmit = !s.state.Terminal() && (s.ledger.AnyAnswered() || s.ledger.AllLocked())
	return snap
}
