package engine

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/vocab-quiz/internal/model"
)

// State is the control state of a session.
type State string

const (
	StateInProgress State = "in_progress"
	// StatePaused is only reachable in per-question mode while a checked
	// answer is displayed.
	StatePaused    State = "paused"
	StateSubmitted State = "submitted"
	StateAbandoned State = "abandoned"
)

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateSubmitted || s == StateAbandoned
}

// EventKind names a transition the session went through.
type EventKind string

const (
	EventAnswerChanged   EventKind = "answer_changed"
	EventLocked          EventKind = "locked"
	EventPaused          EventKind = "paused"
	EventResumed         EventKind = "resumed"
	EventAdvanced        EventKind = "advanced"
	EventRetreated       EventKind = "retreated"
	EventQuestionExpired EventKind = "question_expired"
	EventAutoAdvanced    EventKind = "auto_advanced"
	EventGlobalExpired   EventKind = "global_expired"
	EventSubmitted       EventKind = "submitted"
	EventAbandoned       EventKind = "abandoned"
)

// Event is emitted for every transition.
type Event struct {
	Kind  EventKind
	Index int
	// Record is set on EventLocked.
	Record *model.AnswerRecord
	// Forced is set on EventLocked for a forced-unanswered record and on
	// EventSubmitted for a timer-driven submission.
	Forced bool
	// Result is set on EventSubmitted.
	Result *Result
}

// Options identify a session and inject its wall clock.
type Options struct {
	ID     uuid.UUID
	TestID uuid.UUID
	UserID string
	Now    func() time.Time
}

// Session is the state machine of one learner attempt. It is not safe for
// concurrent use; a Runner serialises access to it.
type Session struct {
	id     uuid.UUID
	testID uuid.UUID
	userID string
	now    func() time.Time

	cfg       model.SessionConfig
	questions []model.Question
	ledger    *Ledger
	clock     *Clock

	state       State
	index       int
	startedAt   time.Time
	submittedAt time.Time
	result      *Result

	pending []Event
}

// Start loads the bank and starts a session over it.
func Start(bank []model.Question, cfg model.SessionConfig, rng *rand.Rand, opts Options) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	questions, ledger, err := Load(bank, cfg, rng)
	if err != nil {
		return nil, err
	}
	return NewSession(questions, ledger, cfg, opts)
}

// NewSession starts a session over an already loaded question list.
func NewSession(questions []model.Question, ledger *Ledger, cfg model.SessionConfig, opts Options) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(questions) == 0 {
		return nil, ErrEmptyQuestionSet
	}
	if ledger == nil {
		ledger = NewLedger(questions)
	}
	if ledger.Len() != len(questions) {
		return nil, fmt.Errorf("ledger has %d records for %d questions", ledger.Len(), len(questions))
	}
	if opts.ID == uuid.Nil {
		opts.ID = uuid.New()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	s := &Session{
		id:        opts.ID,
		testID:    opts.TestID,
		userID:    opts.UserID,
		now:       opts.Now,
		cfg:       cfg,
		questions: questions,
		ledger:    ledger,
		clock:     NewClock(cfg),
		state:     StateInProgress,
		startedAt: opts.Now(),
	}
	s.clock.Start()
	return s, nil
}

// ID returns the session id.
func (s *Session) ID() uuid.UUID { return s.id }

// TestID returns the id of the test being taken.
func (s *Session) TestID() uuid.UUID { return s.testID }

// UserID returns the opaque id of the learner.
func (s *Session) UserID() string { return s.userID }

// State returns the lifecycle state.
func (s *Session) State() State { return s.state }

// CurrentIndex returns the position of the current question.
func (s *Session) CurrentIndex() int { return s.index }

// Config returns the config the session was started with.
func (s *Session) Config() model.SessionConfig { return s.cfg }

// Clock returns the session clock. Only the runner goroutine may use it.
func (s *Session) Clock() *Clock { return s.clock }

// Result returns the compiled result once the session is submitted.
func (s *Session) Result() *Result { return s.result }

// Records returns a copy of the ledger.
func (s *Session) Records() []model.AnswerRecord { return s.ledger.Snapshot() }

// Drain returns and clears the events emitted since the last call.
func (s *Session) Drain() []Event {
	out := s.pending
	s.pending = nil
	return out
}

func (s *Session) emit(e Event) {
	s.pending = append(s.pending, e)
}

func (s *Session) last() bool { return s.index == len(s.questions)-1 }

func (s *Session) requireActive() error {
	switch s.state {
	case StateInProgress:
		return nil
	case StatePaused:
		return reject("session is paused on a checked answer")
	default:
		return reject("session is %s", s.state)
	}
}

// Toggle flips label in the current question's selection.
func (s *Session) Toggle(label string) error {
	if err := s.requireActive(); err != nil {
		return err
	}
	if err := s.ledger.Select(s.index, label); err != nil {
		return err
	}
	s.emit(Event{Kind: EventAnswerChanged, Index: s.index})
	return nil
}

// Check grades and locks the current question. In per-question mode the
// session then pauses until Continue.
func (s *Session) Check() error {
	if err := s.requireActive(); err != nil {
		return err
	}
	perQuestion := s.cfg.PerQuestion()
	if !perQuestion && s.cfg.CheckTiming != model.CheckAfterEach {
		return reject("answers are checked on submission")
	}
	rec := s.ledger.Record(s.index)
	if rec.Locked {
		return reject("question %d is locked", s.index)
	}
	if !rec.Answered() {
		return reject("question %d has no selection", s.index)
	}
	if err := s.gradeAndLock(s.index); err != nil {
		return err
	}
	if perQuestion {
		s.clock.PauseQuestion()
		s.state = StatePaused
		s.emit(Event{Kind: EventPaused, Index: s.index})
	}
	return nil
}

// Continue leaves the paused state and advances.
func (s *Session) Continue() error {
	if s.state != StatePaused {
		return reject("session is not paused")
	}
	s.state = StateInProgress
	s.emit(Event{Kind: EventResumed, Index: s.index})
	if !s.last() {
		s.moveTo(s.index + 1)
		s.emit(Event{Kind: EventAdvanced, Index: s.index})
	}
	return nil
}

// Advance moves to the next question. Manual advance exists only in flexible mode.
func (s *Session) Advance() error {
	if err := s.requireActive(); err != nil {
		return err
	}
	if s.cfg.PerQuestion() {
		return reject("manual advance is not available in per-question mode")
	}
	if s.last() {
		return reject("already at the last question")
	}
	s.moveTo(s.index + 1)
	s.emit(Event{Kind: EventAdvanced, Index: s.index})
	return nil
}

// Retreat moves to the previous question, flexible mode only.
func (s *Session) Retreat() error {
	if err := s.requireActive(); err != nil {
		return err
	}
	if s.cfg.PerQuestion() {
		return reject("retreat is not available in per-question mode")
	}
	if s.index == 0 {
		return reject("already at the first question")
	}
	s.moveTo(s.index - 1)
	s.emit(Event{Kind: EventRetreated, Index: s.index})
	return nil
}

// Submit ends the session on learner request. At least one question must
// have a selection unless every question is already locked. A repeated
// Submit is a no-op.
func (s *Session) Submit() error {
	switch s.state {
	case StateSubmitted:
		return nil
	case StateAbandoned:
		return reject("session is abandoned")
	}
	if !s.ledger.AnyAnswered() && !s.ledger.AllLocked() {
		return reject("answer at least one question before submitting")
	}
	s.finish(false)
	return nil
}

// ForceSubmit ends the session without the answered guard. It is what the
// global timer triggers.
func (s *Session) ForceSubmit() error {
	switch s.state {
	case StateSubmitted:
		return nil
	case StateAbandoned:
		return reject("session is abandoned")
	}
	s.finish(true)
	return nil
}

// Abandon cancels the session. No result is compiled.
func (s *Session) Abandon() error {
	switch s.state {
	case StateAbandoned:
		return nil
	case StateSubmitted:
		return reject("session is already submitted")
	}
	s.clock.StopAll()
	s.ledger.Freeze()
	s.state = StateAbandoned
	s.emit(Event{Kind: EventAbandoned, Index: s.index})
	return nil
}

// TickGlobal consumes one wall-clock second: it accrues time on the current
// question and advances the global countdown. Ticks after the session ended
// are discarded.
func (s *Session) TickGlobal() {
	if s.state.Terminal() {
		return
	}
	if s.state == StateInProgress {
		s.ledger.AddTime(s.index, 1)
	}
	if s.clock.TickGlobal() {
		s.emit(Event{Kind: EventGlobalExpired, Index: s.index})
		_ = s.ForceSubmit()
	}
}

// TickQuestion consumes one second of the question timer. On expiry the
// current question is locked and the session moves to the next one; on the
// last question the timer just stops.
func (s *Session) TickQuestion() {
	if s.state != StateInProgress {
		return
	}
	if !s.clock.TickQuestion() {
		return
	}
	s.emit(Event{Kind: EventQuestionExpired, Index: s.index})
	s.lockForExpiry(s.index)
	if s.last() {
		return
	}
	s.moveTo(s.index + 1)
	s.emit(Event{Kind: EventAutoAdvanced, Index: s.index})
}

func (s *Session) moveTo(i int) {
	s.index = i
	s.clock.ResetQuestion()
}

func (s *Session) gradeAndLock(i int) error {
	if _, err := s.ledger.Check(i); err != nil {
		return err
	}
	if err := s.ledger.Lock(i); err != nil {
		return err
	}
	rec := s.ledger.Record(i)
	s.emit(Event{Kind: EventLocked, Index: i, Record: &rec})
	return nil
}

func (s *Session) forceUnanswered(i int) {
	if err := s.ledger.ForceUnanswered(i); err != nil {
		return
	}
	rec := s.ledger.Record(i)
	s.emit(Event{Kind: EventLocked, Index: i, Record: &rec, Forced: true})
}

// lockForExpiry finalises a record that is about to become unreachable.
func (s *Session) lockForExpiry(i int) {
	rec := s.ledger.Record(i)
	if rec.Locked {
		return
	}
	if rec.Answered() {
		_ = s.gradeAndLock(i)
		return
	}
	s.forceUnanswered(i)
}

func (s *Session) finish(forced bool) {
	for i := range s.questions {
		s.lockForExpiry(i)
	}
	s.clock.StopAll()
	s.ledger.Freeze()
	s.state = StateSubmitted
	s.submittedAt = s.now()
	s.result = Compile(s.questions, s.ledger.Snapshot(), s.timeTaken())
	s.result.Forced = forced
	s.emit(Event{Kind: EventSubmitted, Index: s.index, Forced: forced, Result: s.result})
}

func (s *Session) timeTaken() int {
	if s.clock.GlobalActive() {
		return s.clock.GlobalElapsed()
	}
	total := 0
	for i := 0; i < s.ledger.Len(); i++ {
		total += s.ledger.Record(i).TimeSpentSeconds
	}
	return total
}
