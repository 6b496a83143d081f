package engine

import (
	"slices"

	"github.com/google/uuid"
	"github.com/stemsi/vocab-quiz/internal/model"
)

// Ledger holds one AnswerRecord per question, in session order.
type Ledger struct {
	questions []model.Question
	records   []model.AnswerRecord
	byID      map[uuid.UUID]int
	frozen    bool
}

// NewLedger creates unanswered, unlocked records for questions.
func NewLedger(questions []model.Question) *Ledger {
	l := &Ledger{
		questions: questions,
		records:   make([]model.AnswerRecord, len(questions)),
		byID:      make(map[uuid.UUID]int, len(questions)),
	}
	for i, q := range questions {
		l.records[i] = model.AnswerRecord{
			QuestionID:     q.ID,
			SelectedLabels: []string{},
			Correctness:    model.CorrectnessUnknown,
		}
		l.byID[q.ID] = i
	}
	return l
}

// Len returns the number of records.
func (l *Ledger) Len() int { return len(l.records) }

// IndexOf returns the position of a question id.
func (l *Ledger) IndexOf(id uuid.UUID) (int, bool) {
	i, ok := l.byID[id]
	return i, ok
}

func (l *Ledger) mutable(i int) error {
	if l.frozen {
		return reject("ledger is frozen")
	}
	if i < 0 || i >= len(l.records) {
		return reject("question index %d out of range", i)
	}
	if l.records[i].Locked {
		return reject("question %d is locked", i)
	}
	return nil
}

// Select toggles label in the selection of question i.
func (l *Ledger) Select(i int, label string) error {
	if err := l.mutable(i); err != nil {
		return err
	}
	if !l.questions[i].HasLabel(label) {
		return reject("unknown option %q", label)
	}
	rec := &l.records[i]
	if pos := slices.Index(rec.SelectedLabels, label); pos >= 0 {
		rec.SelectedLabels = slices.Delete(rec.SelectedLabels, pos, pos+1)
	} else {
		rec.SelectedLabels = append(rec.SelectedLabels, label)
	}
	return nil
}

// Check stamps the correctness of question i by exact set equality with the
// correct labels. It does not lock.
func (l *Ledger) Check(i int) (model.Correctness, error) {
	if err := l.mutable(i); err != nil {
		return model.CorrectnessUnknown, err
	}
	rec := &l.records[i]
	if sameSet(rec.SelectedLabels, l.questions[i].CorrectLabels) {
		rec.Correctness = model.CorrectnessCorrect
	} else {
		rec.Correctness = model.CorrectnessIncorrect
	}
	return rec.Correctness, nil
}

// Lock freezes question i.
func (l *Ledger) Lock(i int) error {
	if err := l.mutable(i); err != nil {
		return err
	}
	l.records[i].Locked = true
	return nil
}

// ForceUnanswered stamps question i as an empty, incorrect, locked record.
func (l *Ledger) ForceUnanswered(i int) error {
	if err := l.mutable(i); err != nil {
		return err
	}
	rec := &l.records[i]
	rec.SelectedLabels = []string{}
	rec.Correctness = model.CorrectnessIncorrect
	rec.Locked = true
	return nil
}

// AddTime attributes seconds to question i. Time keeps accruing on locked
// records while the learner looks at them.
func (l *Ledger) AddTime(i, seconds int) {
	if l.frozen || i < 0 || i >= len(l.records) || seconds <= 0 {
		return
	}
	l.records[i].TimeSpentSeconds += seconds
}

// Freeze rejects every later mutation.
func (l *Ledger) Freeze() { l.frozen = true }

// Record returns a copy of record i.
func (l *Ledger) Record(i int) model.AnswerRecord {
	return cloneRecord(l.records[i])
}

// Snapshot returns a copy of every record.
func (l *Ledger) Snapshot() []model.AnswerRecord {
	out := make([]model.AnswerRecord, len(l.records))
	for i, r := range l.records {
		out[i] = cloneRecord(r)
	}
	return out
}

// AnyAnswered reports whether at least one record has a selection.
func (l *Ledger) AnyAnswered() bool {
	for i := range l.records {
		if l.records[i].Answered() {
			return true
		}
	}
	return false
}

// AllLocked reports whether every record is locked.
func (l *Ledger) AllLocked() bool {
	for i := range l.records {
		if !l.records[i].Locked {
			return false
		}
	}
	return true
}

func cloneRecord(r model.AnswerRecord) model.AnswerRecord {
	r.SelectedLabels = slices.Clone(r.SelectedLabels)
	if r.SelectedLabels == nil {
		r.SelectedLabels = []string{}
	}
	return r
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]struct{}, len(a))
	for _, s := range a {
		set[s] = struct{}{}
	}
	if len(set) != len(b) {
		return false
	}
	for _, s := range b {
		if _, ok := set[s]; !ok {
			return false
		}
	}
	return true
}
