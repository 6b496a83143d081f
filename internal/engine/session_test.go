package engine

import (
	"errors"
	"testing"

	"github.com/stemsi/vocab-quiz/internal/model"
)

func TestFlexibleSubmitScenario(t *testing.T) {
	s := newSession(t, 5, flexibleConfig())

	answers := []string{"A", "A", "A", "B"}
	for i, label := range answers {
		mustApply(t, s, Intent{Action: ActionSelect, Label: label})
		if i < 4 {
			mustApply(t, s, Intent{Action: ActionAdvance})
		}
	}
	if got := s.CurrentIndex(); got != 4 {
		t.Fatalf("expected to be on Q5, got index %d", got)
	}
	mustApply(t, s, Intent{Action: ActionSubmit})

	res := s.Result()
	if res == nil {
		t.Fatal("expected a compiled result")
	}
	st := res.Stats
	if st.Correct != 3 || st.Incorrect != 2 || st.Unanswered != 1 || st.Wrong != 1 {
		t.Errorf("unexpected stats %+v", st)
	}
	if st.Correct+st.Wrong+st.Unanswered != st.Total {
		t.Errorf("counts do not sum to total: %+v", st)
	}
	if res.Percentage != 60 {
		t.Errorf("percentage: want 60, got %d", res.Percentage)
	}
	if res.TenPoint != 6.0 {
		t.Errorf("ten point: want 6.0, got %v", res.TenPoint)
	}
	if res.Forced {
		t.Error("learner submission must not be marked forced")
	}

	for i, rec := range s.Records() {
		if !rec.Locked {
			t.Errorf("record %d not locked after submit", i)
		}
	}
	last := s.Records()[4]
	if last.Answered() || last.Correctness != model.CorrectnessIncorrect {
		t.Errorf("Q5 should be forced unanswered, got %+v", last)
	}
}

func TestSubmitRequiresAnAnswer(t *testing.T) {
	s := newSession(t, 3, flexibleConfig())

	err := s.Submit()
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if s.State() != StateInProgress {
		t.Fatalf("state changed to %s", s.State())
	}
}

func TestDoubleSubmitCompilesOnce(t *testing.T) {
	s := newSession(t, 2, flexibleConfig())
	mustApply(t, s, Intent{Action: ActionSelect, Label: "A"})

	if err := s.Submit(); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	first := s.Result()
	events := s.Drain()

	if err := s.Submit(); err != nil {
		t.Fatalf("second submit should be a no-op, got %v", err)
	}
	if err := s.ForceSubmit(); err != nil {
		t.Fatalf("force submit after submit should be a no-op, got %v", err)
	}
	events = append(events, s.Drain()...)

	if n := countEvents(events, EventSubmitted); n != 1 {
		t.Errorf("expected exactly one submitted event, got %d", n)
	}
	if s.Result() != first {
		t.Error("result was recompiled")
	}
	if s.State() != StateSubmitted {
		t.Errorf("expected submitted, got %s", s.State())
	}
}

func TestLockIsFinal(t *testing.T) {
	cfg := flexibleConfig()
	cfg.CheckTiming = model.CheckAfterEach
	s := newSession(t, 2, cfg)

	mustApply(t, s, Intent{Action: ActionSelect, Label: "B"})
	mustApply(t, s, Intent{Action: ActionCheck})
	before := s.Records()[0]
	if !before.Locked || before.Correctness != model.CorrectnessIncorrect {
		t.Fatalf("expected locked incorrect record, got %+v", before)
	}

	for _, in := range []Intent{
		{Action: ActionSelect, Label: "A"},
		{Action: ActionSelect, Label: "B"},
		{Action: ActionCheck},
	} {
		if err := s.Apply(in); !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("%s on locked question: expected ErrInvalidTransition, got %v", in.Action, err)
		}
	}

	after := s.Records()[0]
	if after.Correctness != before.Correctness || len(after.SelectedLabels) != 1 || after.SelectedLabels[0] != "B" {
		t.Errorf("locked record changed: before %+v after %+v", before, after)
	}

	// Flexible mode never pauses after a check.
	if s.State() != StateInProgress {
		t.Errorf("expected in_progress, got %s", s.State())
	}
}

func TestCheckDeferredUntilSubmit(t *testing.T) {
	s := newSession(t, 2, flexibleConfig())
	mustApply(t, s, Intent{Action: ActionSelect, Label: "A"})

	if err := s.Check(); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected check to be rejected with after_submit timing, got %v", err)
	}
	if s.Records()[0].Correctness != model.CorrectnessUnknown {
		t.Error("correctness must stay unknown until submission")
	}
}

func TestToggle(t *testing.T) {
	bank := makeBank(1)
	bank[0].CorrectLabels = []string{"A", "C"}
	s, err := NewSession(bank, nil, flexibleConfig(), Options{})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}

	t.Run("TwiceRestores", func(t *testing.T) {
		mustApply(t, s, Intent{Action: ActionSelect, Label: "B"})
		mustApply(t, s, Intent{Action: ActionSelect, Label: "B"})
		if got := s.Records()[0].SelectedLabels; len(got) != 0 {
			t.Errorf("expected empty selection, got %v", got)
		}
	})

	t.Run("UnknownLabel", func(t *testing.T) {
		if err := s.Toggle("Z"); !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("expected ErrInvalidTransition, got %v", err)
		}
	})

	t.Run("MultiSelectNeedsExactSet", func(t *testing.T) {
		mustApply(t, s, Intent{Action: ActionSelect, Label: "C"})
		mustApply(t, s, Intent{Action: ActionSelect, Label: "A"})
		mustApply(t, s, Intent{Action: ActionSubmit})
		if got := s.Records()[0].Correctness; got != model.CorrectnessCorrect {
			t.Errorf("expected correct for {C,A}, got %s", got)
		}
	})
}

func TestSingleAnswerSelectionAccumulates(t *testing.T) {
	s, err := NewSession(makeBank(1), nil, flexibleConfig(), Options{})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	mustApply(t, s, Intent{Action: ActionSelect, Label: "B"})
	mustApply(t, s, Intent{Action: ActionSelect, Label: "A"})
	if got := s.Records()[0].SelectedLabels; len(got) != 2 || got[0] != "B" || got[1] != "A" {
		t.Fatalf("selecting a second label must add to the selection, got %v", got)
	}
	mustApply(t, s, Intent{Action: ActionSubmit})
	if got := s.Records()[0].Correctness; got != model.CorrectnessIncorrect {
		t.Errorf("{B,A} against {A} must be incorrect, got %s", got)
	}
}

func TestSupersetIsIncorrect(t *testing.T) {
	bank := makeBank(1)
	bank[0].CorrectLabels = []string{"A", "C"}
	s, err := NewSession(bank, nil, flexibleConfig(), Options{})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	for _, l := range []string{"A", "B", "C"} {
		mustApply(t, s, Intent{Action: ActionSelect, Label: l})
	}
	mustApply(t, s, Intent{Action: ActionSubmit})
	if got := s.Records()[0].Correctness; got != model.CorrectnessIncorrect {
		t.Errorf("superset must be incorrect, got %s", got)
	}
}

func TestFlexibleNavigation(t *testing.T) {
	s := newSession(t, 3, flexibleConfig())

	if err := s.Retreat(); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("retreat at first question: expected rejection, got %v", err)
	}
	mustApply(t, s, Intent{Action: ActionAdvance})
	mustApply(t, s, Intent{Action: ActionAdvance})
	if err := s.Advance(); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("advance at last question: expected rejection, got %v", err)
	}
	if s.CurrentIndex() != 2 {
		t.Fatalf("expected index 2, got %d", s.CurrentIndex())
	}
	mustApply(t, s, Intent{Action: ActionRetreat})
	if s.CurrentIndex() != 1 {
		t.Errorf("expected index 1 after retreat, got %d", s.CurrentIndex())
	}
}

func TestPerQuestionAutoAdvance(t *testing.T) {
	s := newSession(t, 3, perQuestionConfig(10))

	for i := 0; i < 9; i++ {
		s.TickQuestion()
	}
	if s.CurrentIndex() != 0 {
		t.Fatalf("advanced early, index %d", s.CurrentIndex())
	}
	s.TickQuestion()

	events := s.Drain()
	if n := countEvents(events, EventAutoAdvanced); n != 1 {
		t.Errorf("expected one auto advance, got %d", n)
	}
	if s.CurrentIndex() != 1 {
		t.Errorf("expected index 1, got %d", s.CurrentIndex())
	}
	if secs, _ := s.Clock().RemainingQuestion(); secs != 10 {
		t.Errorf("question timer should reset to 10, got %d", secs)
	}
	if rec := s.Records()[0]; !rec.Locked || rec.Answered() {
		t.Errorf("expired question should be forced unanswered, got %+v", rec)
	}
}

func TestPerQuestionLastQuestionStops(t *testing.T) {
	s := newSession(t, 1, perQuestionConfig(2))
	s.TickQuestion()
	s.TickQuestion()
	s.TickQuestion()

	if s.State() != StateInProgress {
		t.Fatalf("question timer alone must not submit, state %s", s.State())
	}
	if s.Clock().QuestionRunning() {
		t.Error("question timer should stop on the last question")
	}
	// Every question is locked, so submission needs no answer.
	if err := s.Submit(); err != nil {
		t.Fatalf("submit: %v", err)
	}
}

func TestPerQuestionRetreatRejected(t *testing.T) {
	s := newSession(t, 3, perQuestionConfig(10))
	for i := 0; i < 10; i++ {
		s.TickQuestion()
	}

	for _, a := range []Action{ActionRetreat, ActionAdvance} {
		if err := s.Apply(Intent{Action: a}); !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("%s: expected ErrInvalidTransition, got %v", a, err)
		}
	}
	if s.CurrentIndex() != 1 {
		t.Errorf("index changed to %d", s.CurrentIndex())
	}
}

func TestPerQuestionCheckPauses(t *testing.T) {
	cfg := perQuestionConfig(5)
	cfg.CheckTiming = model.CheckAfterSubmit
	s := newSession(t, 2, cfg)

	mustApply(t, s, Intent{Action: ActionSelect, Label: "A"})
	mustApply(t, s, Intent{Action: ActionCheck})
	if s.State() != StatePaused {
		t.Fatalf("expected paused, got %s", s.State())
	}
	if s.Clock().QuestionRunning() {
		t.Error("question timer should halt while paused")
	}

	s.TickQuestion()
	s.TickGlobal()
	if s.CurrentIndex() != 0 {
		t.Fatal("ticks must not move a paused session")
	}
	if err := s.Toggle("B"); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("toggle while paused: expected rejection, got %v", err)
	}

	mustApply(t, s, Intent{Action: ActionContinue})
	if s.State() != StateInProgress || s.CurrentIndex() != 1 {
		t.Errorf("continue should resume and advance, state %s index %d", s.State(), s.CurrentIndex())
	}
	if secs, _ := s.Clock().RemainingQuestion(); secs != 5 || !s.Clock().QuestionRunning() {
		t.Errorf("question timer should be rearmed, remaining %d", secs)
	}
}

func TestGlobalExpiryForcesSubmission(t *testing.T) {
	cfg := flexibleConfig()
	cfg.ShowGlobalTimer = true
	cfg.GlobalSeconds = 30
	s := newSession(t, 10, cfg)

	mustApply(t, s, Intent{Action: ActionSelect, Label: "A"})
	mustApply(t, s, Intent{Action: ActionAdvance})
	mustApply(t, s, Intent{Action: ActionSelect, Label: "A"})
	mustApply(t, s, Intent{Action: ActionAdvance})

	for i := 0; i < 30; i++ {
		s.TickGlobal()
	}
	if s.State() != StateSubmitted {
		t.Fatalf("expected submitted, got %s", s.State())
	}
	events := s.Drain()
	if countEvents(events, EventGlobalExpired) != 1 || countEvents(events, EventSubmitted) != 1 {
		t.Errorf("expected one expiry and one submission, events %v", events)
	}

	res := s.Result()
	if !res.Forced {
		t.Error("expected forced submission")
	}
	if res.Stats.Correct != 2 || res.Stats.Incorrect != 8 || res.Stats.Unanswered != 8 {
		t.Errorf("unexpected stats %+v", res.Stats)
	}
	if res.TimeTakenSeconds != 30 {
		t.Errorf("time taken: want 30, got %d", res.TimeTakenSeconds)
	}

	s.TickGlobal()
	s.TickQuestion()
	if secs, _ := s.Clock().RemainingGlobal(); secs != 0 {
		t.Errorf("global timer moved after submission: %d", secs)
	}
	if len(s.Drain()) != 0 {
		t.Error("ticks after submission must be discarded")
	}
}

func TestGlobalZeroDisablesTimer(t *testing.T) {
	cfg := flexibleConfig()
	cfg.ShowGlobalTimer = true
	cfg.GlobalSeconds = 0
	s := newSession(t, 2, cfg)

	if s.Clock().GlobalActive() {
		t.Fatal("global timer must be disabled when global seconds is 0")
	}
	mustApply(t, s, Intent{Action: ActionSelect, Label: "A"})
	s.TickGlobal()
	s.TickGlobal()
	mustApply(t, s, Intent{Action: ActionAdvance})
	s.TickGlobal()
	mustApply(t, s, Intent{Action: ActionSubmit})

	if got := s.Result().TimeTakenSeconds; got != 3 {
		t.Errorf("time taken should sum per-question time, got %d", got)
	}
	if snap := s.Snapshot(); snap.RemainingGlobalSeconds != nil {
		t.Error("snapshot should carry no global remaining time")
	}
}

func TestAbandon(t *testing.T) {
	s := newSession(t, 2, flexibleConfig())
	mustApply(t, s, Intent{Action: ActionSelect, Label: "A"})

	if err := s.Abandon(); err != nil {
		t.Fatalf("abandon: %v", err)
	}
	if s.Result() != nil {
		t.Error("abandoned session must not compile a result")
	}
	if err := s.Submit(); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("submit after abandon: expected rejection, got %v", err)
	}
	if err := s.Abandon(); err != nil {
		t.Errorf("second abandon should be a no-op, got %v", err)
	}
}

func TestEmptyQuestionSet(t *testing.T) {
	bank := makeBank(2)
	bank[0].Options = nil
	bank[1].CorrectLabels = []string{"Z"}

	_, err := Start(bank, flexibleConfig(), nil, Options{})
	if !errors.Is(err, ErrEmptyQuestionSet) {
		t.Fatalf("expected ErrEmptyQuestionSet, got %v", err)
	}
}

func TestInvalidConfig(t *testing.T) {
	_, err := Start(makeBank(1), perQuestionConfig(0), nil, Options{})
	if !errors.Is(err, model.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestSnapshotHints(t *testing.T) {
	cfg := flexibleConfig()
	cfg.CheckTiming = model.CheckAfterEach
	s := newSession(t, 3, cfg)

	snap := s.Snapshot()
	if snap.Ordinal != "1/3" {
		t.Errorf("ordinal: want 1/3, got %q", snap.Ordinal)
	}
	if snap.CanCheck || snap.CanSubmit || snap.CanRetreat || !snap.CanAdvance {
		t.Errorf("unexpected hints on a fresh session %+v", snap)
	}

	mustApply(t, s, Intent{Action: ActionSelect, Label: "A"})
	snap = s.Snapshot()
	if !snap.CanCheck || !snap.CanSubmit {
		t.Errorf("expected check and submit after selecting, got %+v", snap)
	}

	cfg.ShowOrdinal = false
	s = newSession(t, 3, cfg)
	if s.Snapshot().Ordinal != "" {
		t.Error("ordinal must be hidden")
	}
}
